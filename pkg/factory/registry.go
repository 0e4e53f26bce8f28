// Package factory is the directory of object types the configuration
// language can construct.
//
// Each abstract type is a Go interface registered under a name with
// NewFactory; each concrete type is registered on that factory with a
// zero-argument constructor. Constructed values declare their parameters in
// RegisterInitializers, and the binder in this package fills them from an
// object literal such as
//
//	Cow(name: "Bessie", age: 3)
//
// Registration happens in an explicit phase: NewRegistry runs the given
// modules, each of which registers its types.
package factory

import (
	"fmt"
	"reflect"

	"github.com/funvibe/infact/internal/config"
	"github.com/funvibe/infact/internal/lexer"
	"github.com/funvibe/infact/internal/token"
)

// Constructible is implemented by every value a factory can build.
type Constructible interface {
	// RegisterInitializers declares the parameters an object literal may
	// supply.
	RegisterInitializers(in *Initializers)
}

// PostIniter is implemented by types that need to adjust themselves once
// all parameters are bound. init is the source text of the object literal.
type PostIniter interface {
	PostInit(ctx Context, init string) error
}

// Module registers a set of types.
type Module func(r *Registry)

// AbstractFactory is the type-erased view of a Factory.
type AbstractFactory interface {
	// Name is the abstract type name, e.g. "Animal".
	Name() string
	// Concretes lists the concrete type names in registration order.
	Concretes() []string
	// Params lists the parameters a concrete type declares.
	Params(concrete string) ([]Param, error)
	// VarMaps creates fresh stores for the abstract type and its vector.
	VarMaps() (scalar, vector VarMap)
	GoType() reflect.Type
}

// Registry is the catalog of abstract types and their concrete types.
type Registry struct {
	factories []AbstractFactory
	byName    map[string]AbstractFactory
	byType    map[reflect.Type]string
	replaced  []Replacement
}

// Replacement records a concrete type registered twice in one factory.
type Replacement struct {
	Abstract string
	Concrete string
}

// NewRegistry creates a registry and runs modules against it in order.
func NewRegistry(modules ...Module) *Registry {
	r := &Registry{
		byName: make(map[string]AbstractFactory),
		byType: make(map[reflect.Type]string),
	}
	for _, m := range modules {
		m(r)
	}
	return r
}

// Replaced lists the concrete registrations that replaced an earlier
// constructor, in the order they happened.
func (r *Registry) Replaced() []Replacement {
	return append([]Replacement(nil), r.replaced...)
}

// Factories returns the abstract factories in registration order.
func (r *Registry) Factories() []AbstractFactory {
	return append([]AbstractFactory(nil), r.factories...)
}

func (r *Registry) Factory(name string) (AbstractFactory, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// TypeName returns the language type name for a Go type: bool, int,
// double, string, a registered abstract type, or a slice of one of those.
func (r *Registry) TypeName(t reflect.Type) (string, bool) {
	if name, ok := r.byType[t]; ok {
		return name, true
	}
	switch t.Kind() {
	case reflect.Bool:
		return config.BoolTypeName, true
	case reflect.Int:
		return config.IntTypeName, true
	case reflect.Float64:
		return config.DoubleTypeName, true
	case reflect.String:
		return config.StringTypeName, true
	case reflect.Slice:
		elem, ok := r.TypeName(t.Elem())
		if !ok {
			return "", false
		}
		if _, isVector := config.ElemOf(elem); isVector {
			return "", false
		}
		return config.VectorOf(elem), true
	}
	return "", false
}

// Factory builds values of the abstract type T from object literals.
type Factory[T Constructible] struct {
	registry  *Registry
	name      string
	order     []string
	concretes map[string]func() T
}

// NewFactory registers T under name. Registering the same name again with
// the same T returns the existing factory.
func NewFactory[T Constructible](r *Registry, name string) *Factory[T] {
	for _, prim := range config.PrimitiveTypeNames {
		if name == prim {
			panic(fmt.Sprintf("factory: %q is a primitive type name", name))
		}
	}
	if existing, ok := r.byName[name]; ok {
		if f, ok := existing.(*Factory[T]); ok {
			return f
		}
		panic(fmt.Sprintf("factory: abstract type %q registered with two Go types", name))
	}
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Interface {
		panic(fmt.Sprintf("factory: abstract type %q must be an interface, got %s", name, t))
	}
	f := &Factory[T]{
		registry:  r,
		name:      name,
		concretes: make(map[string]func() T),
	}
	r.factories = append(r.factories, f)
	r.byName[name] = f
	r.byType[t] = name
	return f
}

// Register adds a concrete type. A second registration of the same name
// replaces the constructor.
func (f *Factory[T]) Register(name string, ctor func() T) *Factory[T] {
	if _, dup := f.concretes[name]; dup {
		f.registry.replaced = append(f.registry.replaced, Replacement{Abstract: f.name, Concrete: name})
	} else {
		f.order = append(f.order, name)
	}
	f.concretes[name] = ctor
	return f
}

func (f *Factory[T]) Name() string { return f.name }

func (f *Factory[T]) Concretes() []string {
	return append([]string(nil), f.order...)
}

func (f *Factory[T]) GoType() reflect.Type { return reflect.TypeFor[T]() }

func (f *Factory[T]) Params(concrete string) ([]Param, error) {
	ctor, ok := f.concretes[concrete]
	if !ok {
		return nil, fmt.Errorf("%s is not a concrete %s type", concrete, f.name)
	}
	in := newInitializers(f.registry, concrete)
	ctor().RegisterInitializers(in)
	if in.err != nil {
		return nil, in.err
	}
	return in.Params(), nil
}

func (f *Factory[T]) VarMaps() (scalar, vector VarMap) {
	scalar = newVarMap(f.name, "", true, f.read)
	vector = newVarMap(config.VectorOf(f.name), f.name, true, readVector(config.VectorOf(f.name), f.read))
	return scalar, vector
}

// read reads one value of the abstract type: a null literal, an object
// literal or the name of a variable.
func (f *Factory[T]) read(s *lexer.Scanner, env Env) (T, error) {
	var zero T
	tok := s.PeekToken()
	switch {
	case tok.Is(config.NullptrWord) || tok.Is(config.NullWord):
		s.Next()
		return zero, nil
	case tok.Type == token.IDENTIFIER:
		if _, ok := f.concretes[tok.Text]; ok {
			return f.construct(s, env)
		}
		return readVariable[T](s, env, f.name)
	}
	return zero, s.WrongType(fmt.Sprintf("concrete %s type or variable", f.name))
}
