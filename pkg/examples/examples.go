// Package examples provides a small set of types for trying out the
// language: dates, people, animals and pet owners.
//
//	Date d = DateImpl(year: 1969, month: 7, day: 20);
//	Animal a = Cow(name: "Bessie");
//	PetOwner o = HumanPetOwner(pets: {a, Sheep(name: "Dolly", age: 3)});
package examples

import (
	"github.com/funvibe/infact/pkg/factory"
)

type Date interface {
	factory.Constructible
	Year() int
	Month() int
	Day() int
}

type DateImpl struct {
	year, month, day int
}

func (d *DateImpl) RegisterInitializers(in *factory.Initializers) {
	in.Required("year", &d.year)
	in.Required("month", &d.month)
	in.Required("day", &d.day)
}

func (d *DateImpl) Year() int  { return d.year }
func (d *DateImpl) Month() int { return d.month }
func (d *DateImpl) Day() int   { return d.day }

type Person interface {
	factory.Constructible
	Name() string
	CmHeight() int
	Birthday() Date
}

type PersonImpl struct {
	name     string
	cmHeight int
	birthday Date
}

func (p *PersonImpl) RegisterInitializers(in *factory.Initializers) {
	in.Required("name", &p.name)
	in.Optional("cm_height", &p.cmHeight)
	in.Optional("birthday", &p.birthday)
}

func (p *PersonImpl) Name() string   { return p.name }
func (p *PersonImpl) CmHeight() int  { return p.cmHeight }
func (p *PersonImpl) Birthday() Date { return p.birthday }

type Animal interface {
	factory.Constructible
	Name() string
	Age() int
}

// Cow is two years old unless told otherwise.
type Cow struct {
	name string
	age  int
}

func NewCow() Animal { return &Cow{age: 2} }

func (c *Cow) RegisterInitializers(in *factory.Initializers) {
	in.Required("name", &c.name)
	in.Optional("age", &c.age)
}

func (c *Cow) Name() string { return c.name }
func (c *Cow) Age() int     { return c.age }

// Sheep takes an age parameter but stores twice its value.
type Sheep struct {
	name string
	age  int
	// times someone counted this sheep while falling asleep
	counts []int
}

func (s *Sheep) RegisterInitializers(in *factory.Initializers) {
	in.Required("name", &s.name)
	in.Optional("counts", &s.counts)
	factory.Temporary[int](in, "age")
}

func (s *Sheep) PostInit(ctx factory.Context, _ string) error {
	if _, typ, ok := ctx.Lookup("age"); !ok || typ != "int" {
		return nil
	}
	age, err := factory.Get[int](ctx, "age")
	if err != nil {
		return err
	}
	s.age = 2 * age
	return nil
}

func (s *Sheep) Name() string  { return s.name }
func (s *Sheep) Age() int      { return s.age }
func (s *Sheep) Counts() []int { return s.counts }

type PetOwner interface {
	factory.Constructible
	NumPets() int
	Pet(i int) Animal
}

type HumanPetOwner struct {
	pets []Animal
}

func (h *HumanPetOwner) RegisterInitializers(in *factory.Initializers) {
	in.Required("pets", &h.pets)
}

func (h *HumanPetOwner) NumPets() int     { return len(h.pets) }
func (h *HumanPetOwner) Pet(i int) Animal { return h.pets[i] }

// Register adds the example types to r.
func Register(r *factory.Registry) {
	factory.NewFactory[Date](r, "Date").
		Register("DateImpl", func() Date { return &DateImpl{} })
	factory.NewFactory[Person](r, "Person").
		Register("PersonImpl", func() Person { return &PersonImpl{} })
	factory.NewFactory[Animal](r, "Animal").
		Register("Cow", NewCow).
		Register("Sheep", func() Animal { return &Sheep{} })
	factory.NewFactory[PetOwner](r, "PetOwner").
		Register("HumanPetOwner", func() PetOwner { return &HumanPetOwner{} })
}
