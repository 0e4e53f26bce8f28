package factory_test

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/funvibe/infact/internal/diagnostics"
	"github.com/funvibe/infact/internal/lexer"
	"github.com/funvibe/infact/pkg/environment"
	"github.com/funvibe/infact/pkg/factory"
)

type Shape interface {
	factory.Constructible
	Area() float64
}

type Rect struct {
	W, H  float64
	Label string
	Tags  []string
	Inner Shape
}

func (r *Rect) RegisterInitializers(in *factory.Initializers) {
	in.Required("w", &r.W)
	in.Required("h", &r.H)
	in.Optional("label", &r.Label)
	in.Optional("tags", &r.Tags)
	in.Optional("inner", &r.Inner)
}

func (r *Rect) Area() float64 { return r.W * r.H }

// Square keeps the source of its literal and scales its side by a
// temporary factor.
type Square struct {
	Side float64
	Init string
}

func (s *Square) RegisterInitializers(in *factory.Initializers) {
	in.Required("side", &s.Side)
	factory.Temporary[int](in, "scale")
}

func (s *Square) PostInit(ctx factory.Context, init string) error {
	s.Init = init
	if _, _, ok := ctx.Lookup("scale"); !ok {
		return nil
	}
	scale, err := factory.Get[int](ctx, "scale")
	if err != nil {
		return err
	}
	if scale <= 0 {
		return fmt.Errorf("scale must be positive, got %d", scale)
	}
	s.Side *= float64(scale)
	return nil
}

func (s *Square) Area() float64 { return s.Side * s.Side }

// Broken declares a field of a type the language has no name for.
type Broken struct {
	ch chan int
}

func (b *Broken) RegisterInitializers(in *factory.Initializers) {
	in.Required("ch", &b.ch)
}

func (b *Broken) Area() float64 { return 0 }

func shapes(r *factory.Registry) {
	factory.NewFactory[Shape](r, "Shape").
		Register("Rect", func() Shape { return &Rect{Label: "none"} }).
		Register("Square", func() Shape { return &Square{} }).
		Register("Broken", func() Shape { return &Broken{} })
}

// construct evaluates a single Shape value.
func construct(t *testing.T, src string) (Shape, error) {
	t.Helper()
	env := environment.New(factory.NewRegistry(shapes), nil)
	return constructIn(env, src)
}

func constructIn(env *environment.Environment, src string) (Shape, error) {
	s := lexer.NewString(src)
	if err := env.ReadAndSet("shape", s, "Shape"); err != nil {
		return nil, err
	}
	return environment.Get[Shape](env, "shape")
}

func expectCode(t *testing.T, err error, code diagnostics.ErrorCode) *diagnostics.DiagnosticError {
	t.Helper()
	var de *diagnostics.DiagnosticError
	if !errors.As(err, &de) {
		t.Fatalf("expected error %s, got %v", code, err)
	}
	if de.Code != code {
		t.Fatalf("expected error %s, got %s: %v", code, de.Code, err)
	}
	return de
}

func TestRequiredAndOptional(t *testing.T) {
	got, err := construct(t, `Rect(w: 2.0, h: 3.5, tags: {"a", "b"})`)
	if err != nil {
		t.Fatalf("construct failed: %v", err)
	}
	want := &Rect{W: 2, H: 3.5, Label: "none", Tags: []string{"a", "b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rect mismatch (-want +got):\n%s", diff)
	}
}

func TestOlderParameterSyntax(t *testing.T) {
	got, err := construct(t, `Rect(w(1.5), h: 2.0, label("old"))`)
	if err != nil {
		t.Fatalf("construct failed: %v", err)
	}
	if r := got.(*Rect); r.W != 1.5 || r.H != 2 || r.Label != "old" {
		t.Errorf("Unexpected Rect: %+v", r)
	}
}

func TestNestedObjects(t *testing.T) {
	got, err := construct(t, `Rect(w: 1.0, h: 1.0, inner: Square(side: 2.0, scale: 3))`)
	if err != nil {
		t.Fatalf("construct failed: %v", err)
	}
	inner, ok := got.(*Rect).Inner.(*Square)
	if !ok {
		t.Fatalf("Expected a Square inside, got %T", got.(*Rect).Inner)
	}
	if inner.Side != 6 {
		t.Errorf("Expected the temporary scale to apply, got side %v", inner.Side)
	}
	if inner.Init != "Square(side: 2.0, scale: 3)" {
		t.Errorf("Unexpected init string %q", inner.Init)
	}
}

func TestNullObject(t *testing.T) {
	got, err := construct(t, `Rect(w: 1.0, h: 1.0, inner: nullptr)`)
	if err != nil {
		t.Fatalf("construct failed: %v", err)
	}
	if got.(*Rect).Inner != nil {
		t.Errorf("Expected a nil inner shape, got %v", got.(*Rect).Inner)
	}

	got, err = construct(t, `NULL`)
	if err != nil || got != nil {
		t.Errorf("Expected NULL to give a nil Shape, got %v (err %v)", got, err)
	}
}

func TestVariablesAsValues(t *testing.T) {
	env := environment.New(factory.NewRegistry(shapes), nil)
	s := lexer.NewString(`Square(side: 4.0)`)
	if err := env.ReadAndSet("sq", s, ""); err != nil {
		t.Fatalf("ReadAndSet failed: %v", err)
	}
	if err := env.ReadAndSet("width", lexer.NewString("5.0"), ""); err != nil {
		t.Fatalf("ReadAndSet failed: %v", err)
	}

	got, err := constructIn(env, `Rect(w: width, h: 1.0, inner: sq)`)
	if err != nil {
		t.Fatalf("construct failed: %v", err)
	}
	sq, _ := environment.Get[Shape](env, "sq")
	if got.(*Rect).Inner != sq || got.(*Rect).W != 5 {
		t.Errorf("Expected w from width and inner to share sq, got %+v", got)
	}
}

func TestConstructionErrors(t *testing.T) {
	cases := []struct {
		src  string
		code diagnostics.ErrorCode
	}{
		{`Rect(w: 1.0)`, diagnostics.ErrC001},
		{`Rect(w: 1.0, h: 2.0, depth: 3)`, diagnostics.ErrC002},
		{`Rect(w: 1.0, w: 2.0, h: 3.0)`, diagnostics.ErrC003},
		{`Square(side: 1.0, scale: 0)`, diagnostics.ErrC004},
		{`Broken(ch: 1)`, diagnostics.ErrC005},
		{`Rect(w: 1.0, h: 2.0,)`, diagnostics.ErrP002},
		{`Rect(w 1.0, h: 2.0)`, diagnostics.ErrP001},
		{`Rect(w: 1.0 h: 2.0)`, diagnostics.ErrP001},
		{`Rect(w: "wide", h: 2.0)`, diagnostics.ErrT002},
		{`Rect(w: 1.0, h: 2.0, inner: circle)`, diagnostics.ErrT001},
		{`Rect(w: 1.0, h: 2.0`, diagnostics.ErrP003},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			_, err := construct(t, tc.src)
			expectCode(t, err, tc.code)
		})
	}
}

func TestMissingListsEveryParameter(t *testing.T) {
	_, err := construct(t, `Rect()`)
	de := expectCode(t, err, diagnostics.ErrC001)
	if !strings.Contains(de.Message, "w, h") {
		t.Errorf("Expected both missing parameters named, got %q", de.Message)
	}
}

func TestParams(t *testing.T) {
	r := factory.NewRegistry(shapes)
	f, ok := r.Factory("Shape")
	if !ok {
		t.Fatal("Shape not registered")
	}
	if diff := cmp.Diff([]string{"Rect", "Square", "Broken"}, f.Concretes()); diff != "" {
		t.Errorf("concretes mismatch (-want +got):\n%s", diff)
	}
	params, err := f.Params("Square")
	if err != nil {
		t.Fatalf("Params failed: %v", err)
	}
	want := []factory.Param{
		{Name: "side", Type: "double", Kind: factory.RequiredParam},
		{Name: "scale", Type: "int", Kind: factory.TemporaryParam},
	}
	if diff := cmp.Diff(want, params, cmpopts.IgnoreUnexported(factory.Param{})); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if _, err := f.Params("Broken"); err == nil {
		t.Errorf("Expected an error for an unsupported field type")
	}
	if _, err := f.Params("Circle"); err == nil {
		t.Errorf("Expected an error for an unknown concrete type")
	}
}

func TestTypeName(t *testing.T) {
	r := factory.NewRegistry(shapes)
	cases := []struct {
		typ  reflect.Type
		want string
		ok   bool
	}{
		{reflect.TypeFor[bool](), "bool", true},
		{reflect.TypeFor[int](), "int", true},
		{reflect.TypeFor[float64](), "double", true},
		{reflect.TypeFor[string](), "string", true},
		{reflect.TypeFor[[]string](), "string[]", true},
		{reflect.TypeFor[Shape](), "Shape", true},
		{reflect.TypeFor[[]Shape](), "Shape[]", true},
		{reflect.TypeFor[[][]int](), "", false},
		{reflect.TypeFor[*Rect](), "", false},
		{reflect.TypeFor[float32](), "", false},
	}
	for _, tc := range cases {
		got, ok := r.TypeName(tc.typ)
		if got != tc.want || ok != tc.ok {
			t.Errorf("TypeName(%s) = %q, %v; want %q, %v", tc.typ, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRegistration(t *testing.T) {
	r := factory.NewRegistry(shapes)
	again := factory.NewFactory[Shape](r, "Shape")
	again.Register("Rect", func() Shape { return &Rect{Label: "replaced"} })
	if got := len(r.Factories()); got != 1 {
		t.Errorf("Expected one factory, got %d", got)
	}
	if diff := cmp.Diff([]string{"Rect", "Square", "Broken"}, again.Concretes()); diff != "" {
		t.Errorf("re-registration changed the order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]factory.Replacement{{Abstract: "Shape", Concrete: "Rect"}}, r.Replaced()); diff != "" {
		t.Errorf("replacements mismatch (-want +got):\n%s", diff)
	}

	env := environment.New(r, nil)
	got, err := constructIn(env, `Rect(w: 1.0, h: 1.0)`)
	if err != nil {
		t.Fatalf("construct failed: %v", err)
	}
	if got.(*Rect).Label != "replaced" {
		t.Errorf("Expected the later constructor to win, got %q", got.(*Rect).Label)
	}

	for _, name := range []string{"int", "Shape"} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Expected NewFactory(%q) with another Go type to panic", name)
				}
			}()
			factory.NewFactory[interface{ factory.Constructible }](r, name)
		}()
	}
}

func TestGet(t *testing.T) {
	env := environment.New(factory.NewRegistry(shapes), nil)
	if err := env.ReadAndSet("n", lexer.NewString("7"), ""); err != nil {
		t.Fatal(err)
	}
	if n, err := factory.Get[int](env, "n"); err != nil || n != 7 {
		t.Errorf("Get[int] = %d, %v", n, err)
	}
	if _, err := factory.Get[string](env, "n"); err == nil {
		t.Errorf("Expected Get[string] of an int to fail")
	}
	if _, err := factory.Get[int](env, "missing"); err == nil {
		t.Errorf("Expected Get of an undefined variable to fail")
	}
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		v    any
		want string
	}{
		{3, "3"},
		{2.5, "2.5"},
		{"hi", `"hi"`},
		{[]string{"a"}, `{"a"}`},
		{[]Shape{nil}, "{nullptr}"},
		{nil, "nullptr"},
	}
	for _, tc := range cases {
		if got := factory.Describe(tc.v); got != tc.want {
			t.Errorf("Describe(%#v) = %q, want %q", tc.v, got, tc.want)
		}
	}
}
