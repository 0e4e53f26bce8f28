package factory

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/funvibe/infact/internal/config"
	"github.com/funvibe/infact/internal/diagnostics"
	"github.com/funvibe/infact/internal/lexer"
	"github.com/funvibe/infact/internal/token"
)

// Context gives read access to variables. Post-init hooks receive the
// construction scope of their object as a Context.
type Context interface {
	// Lookup returns the value and type name of a variable.
	Lookup(name string) (value any, typ string, ok bool)
}

// Env is what a VarMap needs from the environment it reads values in.
type Env interface {
	Context
	// ReadAndSet reads a value of type typ (inferred when empty) and
	// assigns it to name.
	ReadAndSet(name string, s *lexer.Scanner, typ string) error
	// Scope returns a copy of the environment for constructing one object.
	Scope() Env
}

// Get returns the variable name from ctx as a T.
func Get[T any](ctx Context, name string) (T, error) {
	var zero T
	v, typ, ok := ctx.Lookup(name)
	if !ok {
		return zero, fmt.Errorf("no variable %s", name)
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("variable %s has type %s, not %s", name, typ, reflect.TypeFor[T]())
	}
	return t, nil
}

// VarMap stores the variables of one type and knows how to read values of
// that type from a scanner.
type VarMap interface {
	// Name is the type name, e.g. "int" or "Animal[]".
	Name() string
	// ElemName is the element type name of a vector type, or "".
	ElemName() string
	// IsObject reports whether values are factory-constructed objects or
	// vectors of them.
	IsObject() bool
	GoType() reflect.Type

	Read(s *lexer.Scanner, env Env) (any, error)
	Set(name string, v any) error
	Get(name string) (any, bool)
	Delete(name string)
	// Names lists the variables in sorted order.
	Names() []string
	Clone() VarMap
}

type reader[T any] func(s *lexer.Scanner, env Env) (T, error)

type varMap[T any] struct {
	name   string
	elem   string
	object bool
	read   reader[T]
	values map[string]T
}

func newVarMap[T any](name, elem string, object bool, read reader[T]) *varMap[T] {
	return &varMap[T]{
		name:   name,
		elem:   elem,
		object: object,
		read:   read,
		values: make(map[string]T),
	}
}

func (m *varMap[T]) Name() string         { return m.name }
func (m *varMap[T]) ElemName() string     { return m.elem }
func (m *varMap[T]) IsObject() bool       { return m.object }
func (m *varMap[T]) GoType() reflect.Type { return reflect.TypeFor[T]() }

func (m *varMap[T]) Read(s *lexer.Scanner, env Env) (any, error) {
	v, err := m.read(s, env)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (m *varMap[T]) Set(name string, v any) error {
	if v == nil {
		var zero T
		m.values[name] = zero
		return nil
	}
	t, ok := v.(T)
	if !ok {
		return fmt.Errorf("cannot store %T in %s variable %s", v, m.name, name)
	}
	m.values[name] = t
	return nil
}

func (m *varMap[T]) Get(name string) (any, bool) {
	v, ok := m.values[name]
	if !ok {
		return nil, false
	}
	if rv := reflect.ValueOf(&v).Elem(); rv.Kind() == reflect.Interface && rv.IsNil() {
		return nil, true
	}
	return v, true
}

func (m *varMap[T]) Delete(name string) { delete(m.values, name) }

func (m *varMap[T]) Names() []string {
	names := make([]string, 0, len(m.values))
	for name := range m.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *varMap[T]) Clone() VarMap {
	c := newVarMap(m.name, m.elem, m.object, m.read)
	for k, v := range m.values {
		c.values[k] = v
	}
	return c
}

// PrimitiveVarMaps creates stores for bool, int, double and string and
// their vectors.
func PrimitiveVarMaps() []VarMap {
	return []VarMap{
		primitive(config.BoolTypeName, readBool),
		primitive(config.IntTypeName, readInt),
		primitive(config.DoubleTypeName, readDouble),
		primitive(config.StringTypeName, readString),
		vectorOf(config.BoolTypeName, readBool),
		vectorOf(config.IntTypeName, readInt),
		vectorOf(config.DoubleTypeName, readDouble),
		vectorOf(config.StringTypeName, readString),
	}
}

func primitive[T any](name string, read reader[T]) VarMap {
	return newVarMap(name, "", false, readPrimitive(name, read))
}

func vectorOf[T any](elem string, read reader[T]) VarMap {
	name := config.VectorOf(elem)
	return newVarMap(name, elem, false, readVector(name, readPrimitive(elem, read)))
}

// readPrimitive accepts either a literal or the name of a variable of the
// same type.
func readPrimitive[T any](name string, literal reader[T]) reader[T] {
	return func(s *lexer.Scanner, env Env) (T, error) {
		if s.PeekType() == token.IDENTIFIER {
			return readVariable[T](s, env, name)
		}
		return literal(s, env)
	}
}

func readBool(s *lexer.Scanner, _ Env) (bool, error) {
	tok := s.PeekToken()
	switch {
	case tok.Is(config.TrueWord):
		s.Next()
		return true, nil
	case tok.Is(config.FalseWord):
		s.Next()
		return false, nil
	}
	return false, s.WrongType("bool literal")
}

func readInt(s *lexer.Scanner, _ Env) (int, error) {
	tok, err := s.ExpectType(token.NUMBER)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok.Text)
	if err != nil {
		return 0, diagnostics.Wrap(diagnostics.ErrP004, tok, err, config.IntTypeName, tok.Text)
	}
	return n, nil
}

func readDouble(s *lexer.Scanner, _ Env) (float64, error) {
	tok, err := s.ExpectType(token.NUMBER)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil {
		return 0, diagnostics.Wrap(diagnostics.ErrP004, tok, err, config.DoubleTypeName, tok.Text)
	}
	return f, nil
}

func readString(s *lexer.Scanner, _ Env) (string, error) {
	tok, err := s.ExpectType(token.STRING)
	if err != nil {
		return "", err
	}
	return tok.Text, nil
}

// readVector reads a brace-enclosed, comma-separated list of elements, or
// the name of a vector variable, whose contents are copied.
func readVector[T any](name string, elem reader[T]) reader[[]T] {
	return func(s *lexer.Scanner, env Env) ([]T, error) {
		if s.PeekType() == token.IDENTIFIER {
			v, err := readVariable[[]T](s, env, name)
			if err != nil {
				return nil, err
			}
			return append([]T{}, v...), nil
		}
		if _, err := s.Expect("{"); err != nil {
			return nil, err
		}
		out := []T{}
		if s.PeekToken().Is("}") {
			s.Next()
			return out, nil
		}
		for {
			v, err := elem(s, env)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			tok := s.PeekToken()
			switch {
			case tok.Is(","):
				s.Next()
			case tok.Is("}"):
				s.Next()
				return out, nil
			default:
				return nil, s.Unexpected(`"," or "}"`)
			}
		}
	}
}

// readVariable consumes an identifier naming a variable of type typ.
func readVariable[T any](s *lexer.Scanner, env Env, typ string) (T, error) {
	var zero T
	tok := s.NextToken()
	v, have, ok := env.Lookup(tok.Text)
	if !ok {
		return zero, diagnostics.NewError(diagnostics.ErrT001, tok, tok.Text)
	}
	if have != typ {
		return zero, diagnostics.NewError(diagnostics.ErrT006, tok, tok.Text, have, typ)
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, diagnostics.NewError(diagnostics.ErrT006, tok, tok.Text, fmt.Sprintf("%T", v), typ)
	}
	return t, nil
}

// Describe renders a value the way it would be written in a source file,
// where that is possible.
func Describe(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	if v == nil {
		return config.NullptrWord
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = Describe(rv.Index(i).Interface())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(v)
}
