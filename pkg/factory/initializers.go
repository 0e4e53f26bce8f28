package factory

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/funvibe/infact/internal/diagnostics"
	"github.com/funvibe/infact/internal/lexer"
	"github.com/funvibe/infact/internal/token"
)

// ParamKind says how a parameter takes part in construction.
type ParamKind int

const (
	// RequiredParam must appear in every object literal.
	RequiredParam ParamKind = iota
	// OptionalParam keeps the field's current value when absent.
	OptionalParam
	// TemporaryParam has no field; its value is only visible to PostInit
	// through its Context.
	TemporaryParam
)

func (k ParamKind) String() string {
	switch k {
	case RequiredParam:
		return "required"
	case OptionalParam:
		return "optional"
	case TemporaryParam:
		return "temporary"
	}
	return fmt.Sprintf("ParamKind(%d)", int(k))
}

// Param is a declared parameter of a concrete type.
type Param struct {
	Name string
	Type string
	Kind ParamKind

	dest reflect.Value
	set  bool
}

// Initializers collects the parameter declarations of one object.
type Initializers struct {
	registry *Registry
	owner    string
	params   []*Param
	byName   map[string]*Param
	err      error
}

func newInitializers(r *Registry, owner string) *Initializers {
	return &Initializers{
		registry: r,
		owner:    owner,
		byName:   make(map[string]*Param),
	}
}

// Required declares a parameter bound to the field ptr points to.
func (in *Initializers) Required(name string, ptr any) {
	in.add(name, ptr, RequiredParam)
}

// Optional declares a parameter bound to the field ptr points to.
func (in *Initializers) Optional(name string, ptr any) {
	in.add(name, ptr, OptionalParam)
}

// Temporary declares a parameter of type T with no field behind it. When a
// construction does not supply it, PostInit sees any variable of the same
// name in the enclosing environment.
func Temporary[T any](in *Initializers, name string) {
	typ, ok := in.registry.TypeName(reflect.TypeFor[T]())
	if !ok {
		in.fail(fmt.Errorf("parameter %s: unsupported type %s", name, reflect.TypeFor[T]()))
		return
	}
	in.declare(&Param{Name: name, Type: typ, Kind: TemporaryParam})
}

func (in *Initializers) add(name string, ptr any, kind ParamKind) {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		in.fail(fmt.Errorf("parameter %s: want a non-nil pointer, got %T", name, ptr))
		return
	}
	typ, ok := in.registry.TypeName(rv.Type().Elem())
	if !ok {
		in.fail(fmt.Errorf("parameter %s: unsupported type %s", name, rv.Type().Elem()))
		return
	}
	in.declare(&Param{Name: name, Type: typ, Kind: kind, dest: rv})
}

func (in *Initializers) declare(p *Param) {
	if _, dup := in.byName[p.Name]; dup {
		in.fail(fmt.Errorf("parameter %s declared twice", p.Name))
		return
	}
	in.params = append(in.params, p)
	in.byName[p.Name] = p
}

func (in *Initializers) fail(err error) {
	if in.err == nil {
		in.err = err
	}
}

// Params returns the declared parameters in declaration order.
func (in *Initializers) Params() []Param {
	out := make([]Param, len(in.params))
	for i, p := range in.params {
		out[i] = Param{Name: p.Name, Type: p.Type, Kind: p.Kind}
	}
	return out
}

// bind reads name/value pairs up to and including the closing paren and
// returns that paren.
func (in *Initializers) bind(s *lexer.Scanner, scope Env) (token.Token, error) {
	afterComma := false
	for {
		if tok := s.PeekToken(); tok.Is(")") && !afterComma {
			s.Next()
			return tok, nil
		}
		nameTok, err := s.ExpectType(token.IDENTIFIER)
		if err != nil {
			return nameTok, err
		}
		p, ok := in.byName[nameTok.Text]
		if !ok {
			return nameTok, diagnostics.NewError(diagnostics.ErrC002, nameTok, in.owner, nameTok.Text)
		}
		if p.set {
			return nameTok, diagnostics.NewError(diagnostics.ErrC003, nameTok, in.owner, nameTok.Text)
		}
		if err := in.bindValue(s, scope, p); err != nil {
			return nameTok, err
		}

		tok := s.PeekToken()
		switch {
		case tok.Is(","):
			s.Next()
			afterComma = true
		case tok.Is(")"):
			afterComma = false
		default:
			return tok, s.Unexpected(`"," or ")"`)
		}
	}
}

// bindValue reads either ": value" or the older "(value)" form.
func (in *Initializers) bindValue(s *lexer.Scanner, scope Env, p *Param) error {
	parens := false
	switch tok := s.PeekToken(); {
	case tok.Is(":"):
		s.Next()
	case tok.Is("("):
		s.Next()
		parens = true
	default:
		return s.Unexpected(":")
	}
	if err := scope.ReadAndSet(p.Name, s, p.Type); err != nil {
		return err
	}
	if parens {
		if _, err := s.Expect(")"); err != nil {
			return err
		}
	}
	p.set = true
	if !p.dest.IsValid() {
		return nil
	}
	v, _, _ := scope.Lookup(p.Name)
	return p.assign(v)
}

func (p *Param) assign(v any) error {
	dst := p.dest.Elem()
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(dst.Type()) {
		return fmt.Errorf("parameter %s: cannot assign %s to %s", p.Name, rv.Type(), dst.Type())
	}
	dst.Set(rv)
	return nil
}

// missing lists the required parameters that were not set.
func (in *Initializers) missing() []string {
	var names []string
	for _, p := range in.params {
		if p.Kind == RequiredParam && !p.set {
			names = append(names, p.Name)
		}
	}
	return names
}

// construct reads an object literal whose concrete type name is next.
func (f *Factory[T]) construct(s *lexer.Scanner, env Env) (T, error) {
	var zero T
	nameTok := s.NextToken()
	if _, err := s.Expect("("); err != nil {
		return zero, err
	}
	obj := f.concretes[nameTok.Text]()
	in := newInitializers(f.registry, nameTok.Text)
	obj.RegisterInitializers(in)
	if in.err != nil {
		return zero, diagnostics.Wrap(diagnostics.ErrC005, nameTok, in.err, nameTok.Text, in.err)
	}

	scope := env.Scope()
	closeTok, err := in.bind(s, scope)
	if err != nil {
		var de *diagnostics.DiagnosticError
		if !errors.As(err, &de) {
			err = diagnostics.Wrap(diagnostics.ErrC005, closeTok, err, nameTok.Text, err)
		}
		return zero, err
	}
	if missing := in.missing(); len(missing) > 0 {
		return zero, diagnostics.NewError(diagnostics.ErrC001, nameTok, nameTok.Text, strings.Join(missing, ", "))
	}

	if p, ok := any(obj).(PostIniter); ok {
		init := s.Slice(nameTok.Start, closeTok.Start+1)
		if err := p.PostInit(scope, init); err != nil {
			return zero, diagnostics.Wrap(diagnostics.ErrC004, nameTok, err, nameTok.Text, err)
		}
	}
	return obj, nil
}
