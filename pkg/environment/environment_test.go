package environment_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/funvibe/infact/internal/diagnostics"
	"github.com/funvibe/infact/internal/lexer"
	"github.com/funvibe/infact/internal/token"
	"github.com/funvibe/infact/pkg/environment"
	"github.com/funvibe/infact/pkg/examples"
	"github.com/funvibe/infact/pkg/factory"
)

func newEnv() *environment.Environment {
	return environment.New(factory.NewRegistry(examples.Register), nil)
}

// set evaluates "name = src" with an optional explicit type.
func set(env *environment.Environment, name, typ, src string) error {
	return env.ReadAndSet(name, lexer.NewString(src), typ)
}

func mustSet(t *testing.T, env *environment.Environment, name, typ, src string) {
	t.Helper()
	if err := set(env, name, typ, src); err != nil {
		t.Fatalf("%s = %s: %v", name, src, err)
	}
}

func code(err error) diagnostics.ErrorCode {
	var de *diagnostics.DiagnosticError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func TestInferType(t *testing.T) {
	env := newEnv()
	mustSet(t, env, "owner", "", `HumanPetOwner(pets: {})`)
	mustSet(t, env, "xs", "", `{1, 2}`)

	cases := []struct {
		tok      token.Token
		inVector bool
		want     string
		object   bool
	}{
		{token.Token{Type: token.RESERVED_WORD, Text: "true"}, false, "bool", false},
		{token.Token{Type: token.RESERVED_WORD, Text: "false"}, true, "bool[]", false},
		{token.Token{Type: token.STRING, Text: "s"}, false, "string", false},
		{token.Token{Type: token.NUMBER, Text: "-12"}, false, "int", false},
		{token.Token{Type: token.NUMBER, Text: "1.5"}, true, "double[]", false},
		{token.Token{Type: token.IDENTIFIER, Text: "Cow"}, false, "Animal", true},
		{token.Token{Type: token.IDENTIFIER, Text: "DateImpl"}, true, "Date[]", true},
		{token.Token{Type: token.IDENTIFIER, Text: "owner"}, false, "PetOwner", true},
		{token.Token{Type: token.IDENTIFIER, Text: "xs"}, false, "int[]", false},
		{token.Token{Type: token.RESERVED_WORD, Text: "nullptr"}, false, "", false},
		{token.Token{Type: token.RESERVED_CHAR, Text: "}"}, true, "", false},
	}
	for _, tc := range cases {
		typ, object, err := env.InferType(tc.tok, tc.inVector)
		if err != nil {
			t.Errorf("InferType(%s) failed: %v", tc.tok, err)
			continue
		}
		if typ != tc.want || object != tc.object {
			t.Errorf("InferType(%s, %v) = %q, %v; want %q, %v", tc.tok, tc.inVector, typ, object, tc.want, tc.object)
		}
	}

	_, _, err := env.InferType(token.Token{Type: token.IDENTIFIER, Text: "stranger", Line: 1}, false)
	if code(err) != diagnostics.ErrT001 {
		t.Errorf("Expected T001 for an unknown identifier, got %v", err)
	}
}

func TestInferenceFromVariable(t *testing.T) {
	env := newEnv()
	mustSet(t, env, "x", "int", "3")
	mustSet(t, env, "y", "", "x")

	if typ, _ := env.TypeOf("y"); typ != "int" {
		t.Errorf("Expected y to be an int, got %q", typ)
	}
	y, err := environment.Get[int](env, "y")
	if err != nil || y != 3 {
		t.Errorf("Get[int](y) = %d, %v", y, err)
	}
}

func TestTypedRetrieval(t *testing.T) {
	env := newEnv()
	mustSet(t, env, "a", "Animal", `Cow(name: "Bessie")`)

	a, err := environment.Get[examples.Animal](env, "a")
	if err != nil {
		t.Fatalf("Get[Animal] failed: %v", err)
	}
	if a.Name() != "Bessie" || a.Age() != 2 {
		t.Errorf("Unexpected cow %q aged %d", a.Name(), a.Age())
	}
	if _, err := environment.Get[examples.Person](env, "a"); code(err) != diagnostics.ErrT004 {
		t.Errorf("Expected T004 for an Animal read as a Person, got %v", err)
	}
	if _, err := environment.Get[int](env, "missing"); code(err) != diagnostics.ErrT004 {
		t.Errorf("Expected T004 for an undefined variable, got %v", err)
	}
	if _, err := environment.Get[float32](env, "a"); code(err) != diagnostics.ErrT004 {
		t.Errorf("Expected T004 for a Go type with no language name, got %v", err)
	}
	if _, err := env.GetAs("a", "Animal"); err != nil {
		t.Errorf("GetAs failed: %v", err)
	}
}

func TestFailedStatementLeavesStateUnchanged(t *testing.T) {
	env := newEnv()
	mustSet(t, env, "s", "string", `"before"`)

	cases := []struct {
		typ, src string
		code     diagnostics.ErrorCode
	}{
		{"string", "5", diagnostics.ErrT002},
		{"", "nullptr", diagnostics.ErrT003},
		{"", "nobody", diagnostics.ErrT001},
		{"", "{}", diagnostics.ErrT003},
		{"string", ";", diagnostics.ErrP001},
		{"string", "import", diagnostics.ErrP001},
		{"string", "", diagnostics.ErrP003},
		{"string", `"open`, diagnostics.ErrL001},
		{"Animal", `Cow(name: "x", colour: "brown")`, diagnostics.ErrC002},
		{"int[]", `{1, "two"}`, diagnostics.ErrP002},
	}
	for _, tc := range cases {
		err := set(env, "s", tc.typ, tc.src)
		if code(err) != tc.code {
			t.Errorf("s = %s: expected %s, got %v", tc.src, tc.code, err)
		}
		s, err := environment.Get[string](env, "s")
		if err != nil || s != "before" {
			t.Errorf("s = %s: state changed to %q (err %v)", tc.src, s, err)
		}
	}
}

func TestRetyping(t *testing.T) {
	env := newEnv()
	mustSet(t, env, "v", "", "1")
	mustSet(t, env, "v", "", `"one"`)

	if typ, _ := env.TypeOf("v"); typ != "string" {
		t.Fatalf("Expected v to be a string now, got %q", typ)
	}
	if names := env.VarMapForType("int").Names(); len(names) != 0 {
		t.Errorf("Expected v to leave the int variables, got %v", names)
	}
	if diff := cmp.Diff([]string{"v"}, env.VarMapForType("string").Names()); diff != "" {
		t.Errorf("string variables mismatch (-want +got):\n%s", diff)
	}
}

func TestVectors(t *testing.T) {
	env := newEnv()
	mustSet(t, env, "ints", "", "{1, 2, 3}")
	mustSet(t, env, "empty", "double[]", "{}")
	mustSet(t, env, "copy", "", "ints")
	mustSet(t, env, "herd", "Animal[]", `{Cow(name: "a"), nullptr, Sheep(name: "b", counts: ints)}`)

	ints, _ := environment.Get[[]int](env, "ints")
	if diff := cmp.Diff([]int{1, 2, 3}, ints); diff != "" {
		t.Errorf("ints mismatch (-want +got):\n%s", diff)
	}
	empty, err := environment.Get[[]float64](env, "empty")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("Expected an empty double vector, got %v (err %v)", empty, err)
	}

	cp, _ := environment.Get[[]int](env, "copy")
	cp[0] = 100
	if ints[0] != 1 {
		t.Errorf("Expected vector variables to be copied on assignment")
	}

	herd, err := environment.Get[[]examples.Animal](env, "herd")
	if err != nil {
		t.Fatalf("Get herd failed: %v", err)
	}
	if len(herd) != 3 || herd[1] != nil {
		t.Fatalf("Unexpected herd %v", herd)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, herd[2].(*examples.Sheep).Counts()); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if typ, _ := env.TypeOf("herd"); typ != "Animal[]" {
		t.Errorf("Expected herd to be an Animal[], got %q", typ)
	}

	if err := set(env, "mixed", "", `{Cow(name: "a"), DateImpl(year: 1, month: 1, day: 1)}`); code(err) != diagnostics.ErrT001 {
		t.Errorf("Expected a Date in an Animal vector to fail, got %v", err)
	}
}

func TestObjectsAreShared(t *testing.T) {
	env := newEnv()
	mustSet(t, env, "d", "", `DateImpl(year: 2000, month: 1, day: 1)`)
	mustSet(t, env, "p", "", `PersonImpl(name: "Ann", cm_height: 170, birthday: d)`)
	mustSet(t, env, "q", "", "p")

	d, _ := environment.Get[examples.Date](env, "d")
	p, _ := environment.Get[examples.Person](env, "p")
	q, _ := environment.Get[examples.Person](env, "q")
	if p.Birthday() != d || p != q {
		t.Errorf("Expected object variables to share one value")
	}
	if p.CmHeight() != 170 {
		t.Errorf("Expected height 170, got %d", p.CmHeight())
	}
}

func TestTemporaryParameter(t *testing.T) {
	env := newEnv()
	mustSet(t, env, "s", "", `Sheep(name: "Dolly", age: 3)`)
	mustSet(t, env, "young", "", `Sheep(name: "Polly")`)

	s, _ := environment.Get[examples.Animal](env, "s")
	if s.Age() != 6 {
		t.Errorf("Expected age to be doubled, got %d", s.Age())
	}
	young, _ := environment.Get[examples.Animal](env, "young")
	if young.Age() != 0 {
		t.Errorf("Expected no age without the temporary, got %d", young.Age())
	}
	if _, ok := env.TypeOf("age"); ok {
		t.Errorf("Expected parameters to stay out of the environment")
	}
}

func TestTemporaryFallsBackToVariable(t *testing.T) {
	env := newEnv()
	mustSet(t, env, "age", "int", "5")
	mustSet(t, env, "s", "", `Sheep(name: "D")`)

	s, _ := environment.Get[examples.Animal](env, "s")
	if s.Age() != 10 {
		t.Errorf("Expected the unsupplied temporary to read the outer age, got %d", s.Age())
	}
	if age, _ := environment.Get[int](env, "age"); age != 5 {
		t.Errorf("Expected the outer age to stay 5, got %d", age)
	}
}

func TestScopeIsolation(t *testing.T) {
	env := newEnv()
	mustSet(t, env, "n", "", "1")

	scope := env.Scope()
	if err := scope.ReadAndSet("n", lexer.NewString("2"), ""); err != nil {
		t.Fatal(err)
	}
	if err := scope.ReadAndSet("extra", lexer.NewString("true"), ""); err != nil {
		t.Fatal(err)
	}
	if n, _ := environment.Get[int](env, "n"); n != 1 {
		t.Errorf("Expected the scope not to change n, got %d", n)
	}
	if diff := cmp.Diff([]string{"n"}, env.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestVarMapForType(t *testing.T) {
	env := newEnv()
	cases := map[string]string{
		"int":        "int",
		"string[]":   "string[]",
		"Animal":     "Animal",
		"Sheep":      "Animal",
		"Sheep[]":    "Animal[]",
		"PetOwner[]": "PetOwner[]",
	}
	for name, want := range cases {
		vm := env.VarMapForType(name)
		if vm == nil || vm.Name() != want {
			t.Errorf("VarMapForType(%q) = %v, want %s", name, vm, want)
		}
	}
	if env.VarMapForType("Goat") != nil || env.VarMapForType("int[][]") != nil {
		t.Errorf("Expected unknown types to have no VarMap")
	}
	want := []string{"bool", "int", "double", "string", "bool[]", "int[]", "double[]", "string[]",
		"Date", "Date[]", "Person", "Person[]", "Animal", "Animal[]", "PetOwner", "PetOwner[]"}
	if diff := cmp.Diff(want, env.Types()); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}
}

type Plant interface {
	factory.Constructible
	Grow()
}

// Cow is registered as a Plant too, to collide with the Animal Cow.
type plantCow struct{}

func (plantCow) RegisterInitializers(*factory.Initializers) {}
func (plantCow) Grow()                                      {}

func TestConcreteNameCollision(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	registry := factory.NewRegistry(examples.Register, func(r *factory.Registry) {
		factory.NewFactory[Plant](r, "Plant").Register("Cow", func() Plant { return plantCow{} })
	})
	env := environment.New(registry, logger)

	if !strings.Contains(logs.String(), "concrete=Cow") {
		t.Errorf("Expected a warning about Cow, got %q", logs.String())
	}
	if err := set(env, "c", "", "Cow()"); err != nil {
		t.Fatalf("Expected the later registration to win: %v", err)
	}
	if typ, _ := env.TypeOf("c"); typ != "Plant" {
		t.Errorf("Expected c to be a Plant, got %q", typ)
	}
}

func TestDuplicateRegistrationIsLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	registry := factory.NewRegistry(examples.Register, func(r *factory.Registry) {
		factory.NewFactory[examples.Animal](r, "Animal").
			Register("Cow", examples.NewCow)
	})
	env := environment.New(registry, logger)

	out := logs.String()
	if !strings.Contains(out, "registered twice") || !strings.Contains(out, "concrete=Cow") {
		t.Errorf("Expected a warning about Cow, got %q", out)
	}
	if !strings.Contains(out, "session="+env.Session().String()) {
		t.Errorf("Expected the warning on the session logger, got %q", out)
	}
	if strings.Contains(out, "abstract types") {
		t.Errorf("Expected no cross-factory warning, got %q", out)
	}
}

func TestReadValue(t *testing.T) {
	env := newEnv()
	v, err := env.ReadValue(lexer.NewString("{true, false}"), "bool[]")
	if err != nil {
		t.Fatalf("ReadValue failed: %v", err)
	}
	if diff := cmp.Diff([]bool{true, false}, v); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
	if len(env.Names()) != 0 {
		t.Errorf("Expected ReadValue not to assign anything")
	}
	if _, err := env.ReadValue(lexer.NewString("1"), "Goat"); code(err) != diagnostics.ErrT005 {
		t.Errorf("Expected T005 for an unknown type, got %v", err)
	}
}
