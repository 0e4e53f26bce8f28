// Package environment holds the variables of an evaluation together with
// their types, and infers the type of a value from its first token.
package environment

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/funvibe/infact/internal/config"
	"github.com/funvibe/infact/internal/diagnostics"
	"github.com/funvibe/infact/internal/lexer"
	"github.com/funvibe/infact/internal/token"
	"github.com/funvibe/infact/pkg/factory"
)

// Environment maps variable names to typed values. Every variable lives in
// exactly one VarMap, the one named by its type.
type Environment struct {
	registry *factory.Registry
	session  uuid.UUID
	logger   *slog.Logger

	varMaps  map[string]factory.VarMap
	mapOrder []string
	// concrete type name -> abstract type name
	concretes map[string]string
	// variable name -> type name
	types map[string]string
}

// New creates an empty environment for the types in registry. A nil logger
// discards output.
func New(registry *factory.Registry, logger *slog.Logger) *Environment {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Environment{
		registry:  registry,
		session:   uuid.New(),
		varMaps:   make(map[string]factory.VarMap),
		concretes: make(map[string]string),
		types:     make(map[string]string),
	}
	e.logger = logger.With("session", e.session.String())

	for _, vm := range factory.PrimitiveVarMaps() {
		e.addVarMap(vm)
	}
	for _, f := range registry.Factories() {
		scalar, vector := f.VarMaps()
		e.addVarMap(scalar)
		e.addVarMap(vector)
		for _, c := range f.Concretes() {
			if prev, ok := e.concretes[c]; ok && prev != f.Name() {
				e.logger.Warn("concrete type registered under two abstract types; using the later one",
					"concrete", c, "previous", prev, "abstract", f.Name())
			}
			e.concretes[c] = f.Name()
		}
	}
	for _, rep := range registry.Replaced() {
		e.logger.Warn("concrete type registered twice; using the later constructor",
			"abstract", rep.Abstract, "concrete", rep.Concrete)
	}
	return e
}

func (e *Environment) addVarMap(vm factory.VarMap) {
	e.varMaps[vm.Name()] = vm
	e.mapOrder = append(e.mapOrder, vm.Name())
}

func (e *Environment) Registry() *factory.Registry { return e.registry }

// Session identifies the environment in log output.
func (e *Environment) Session() uuid.UUID { return e.session }

func (e *Environment) Logger() *slog.Logger { return e.logger }

// Types lists every type name with a VarMap: the primitives, their
// vectors, then each abstract type followed by its vector.
func (e *Environment) Types() []string {
	return append([]string(nil), e.mapOrder...)
}

// VarMapForType returns the VarMap for a type specifier. A concrete type
// name, or a vector of one, selects the VarMap of its abstract type.
func (e *Environment) VarMapForType(name string) factory.VarMap {
	if vm, ok := e.varMaps[name]; ok {
		return vm
	}
	elem, isVector := config.ElemOf(name)
	abstract, ok := e.concretes[elem]
	if !ok {
		return nil
	}
	if isVector {
		return e.varMaps[config.VectorOf(abstract)]
	}
	return e.varMaps[abstract]
}

// InferType infers a type name from the first token of a value; inVector
// means the token follows an opening brace. isObject reports whether the
// type is a factory type or a vector of one.
func (e *Environment) InferType(tok token.Token, inVector bool) (typ string, isObject bool, err error) {
	switch tok.Type {
	case token.RESERVED_WORD:
		if tok.Is(config.TrueWord) || tok.Is(config.FalseWord) {
			typ = config.BoolTypeName
		}
	case token.STRING:
		typ = config.StringTypeName
	case token.NUMBER:
		typ = config.IntTypeName
		if strings.Contains(tok.Text, ".") {
			typ = config.DoubleTypeName
		}
	case token.IDENTIFIER:
		if abstract, ok := e.concretes[tok.Text]; ok {
			typ, isObject = abstract, true
		} else if vt, ok := e.types[tok.Text]; ok {
			typ = vt
			isObject = e.varMaps[vt].IsObject()
		} else {
			return "", false, diagnostics.NewError(diagnostics.ErrT001, tok, tok.Text)
		}
	}
	if inVector && typ != "" {
		typ = config.VectorOf(typ)
	}
	return typ, isObject, nil
}

// ReadAndSet reads the value starting at the next token and assigns it to
// name. explicit is the declared type, or "" to use the inferred one; when
// both are known they must agree. Nothing is assigned on error.
func (e *Environment) ReadAndSet(name string, s *lexer.Scanner, explicit string) error {
	tok := s.PeekToken()
	inVector := tok.Is("{")
	switch {
	case tok.Type == token.ILLEGAL:
		s.Next()
		return lexer.IllegalError(tok)
	case tok.Type == token.EOF:
		return diagnostics.NewError(diagnostics.ErrP003, tok, "a value")
	case inVector:
		s.Next()
	case tok.Type == token.RESERVED_CHAR,
		tok.Type == token.RESERVED_WORD && !isLiteralWord(tok.Text):
		return s.Unexpected("literal or Factory-constructible type")
	}

	first := s.PeekToken()
	if first.Type == token.ILLEGAL {
		s.Next()
		return lexer.IllegalError(first)
	}
	inferred, isObject, err := e.InferType(first, inVector)
	if err != nil {
		s.Next()
		return err
	}
	if inVector {
		s.Putback()
	}
	e.logger.Debug("inferred type", "variable", name, "explicit", explicit, "inferred", inferred, "object", isObject)

	typ := explicit
	switch {
	case explicit == "" && inferred == "":
		return diagnostics.NewError(diagnostics.ErrT003, tok, name)
	case explicit == "":
		typ = inferred
	case inferred != "" && explicit != inferred:
		return diagnostics.NewError(diagnostics.ErrT002, tok, explicit, inferred, name)
	}

	vm, ok := e.varMaps[typ]
	if !ok {
		return diagnostics.NewError(diagnostics.ErrT005, tok, typ)
	}
	v, err := vm.Read(s, e)
	if err != nil {
		return err
	}
	return e.Set(name, typ, v)
}

func isLiteralWord(w string) bool {
	return w == config.TrueWord || w == config.FalseWord || config.IsNullWord(w)
}

// ReadValue reads a value of type typ without assigning it.
func (e *Environment) ReadValue(s *lexer.Scanner, typ string) (any, error) {
	vm, ok := e.varMaps[typ]
	if !ok {
		return nil, diagnostics.NewError(diagnostics.ErrT005, s.PeekToken(), typ)
	}
	return vm.Read(s, e)
}

// Set assigns v to name with type typ, moving the variable out of the
// VarMap of its previous type if it had one.
func (e *Environment) Set(name, typ string, v any) error {
	vm, ok := e.varMaps[typ]
	if !ok {
		return fmt.Errorf("unknown type %q", typ)
	}
	if err := vm.Set(name, v); err != nil {
		return err
	}
	if old, ok := e.types[name]; ok && old != typ {
		e.varMaps[old].Delete(name)
	}
	e.types[name] = typ
	return nil
}

// Lookup implements factory.Context.
func (e *Environment) Lookup(name string) (any, string, bool) {
	typ, ok := e.types[name]
	if !ok {
		return nil, "", false
	}
	v, _ := e.varMaps[typ].Get(name)
	return v, typ, true
}

func (e *Environment) TypeOf(name string) (string, bool) {
	typ, ok := e.types[name]
	return typ, ok
}

// Names lists every variable in sorted order.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.types))
	for name := range e.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scope returns a copy of the environment. Assignments to the copy do not
// affect e.
func (e *Environment) Scope() factory.Env {
	c := &Environment{
		registry:  e.registry,
		session:   e.session,
		logger:    e.logger,
		varMaps:   make(map[string]factory.VarMap, len(e.varMaps)),
		mapOrder:  e.mapOrder,
		concretes: e.concretes,
		types:     make(map[string]string, len(e.types)),
	}
	for name, vm := range e.varMaps {
		c.varMaps[name] = vm.Clone()
	}
	for name, typ := range e.types {
		c.types[name] = typ
	}
	return c
}

// GetAs returns the value of name, which must have type typ.
func (e *Environment) GetAs(name, typ string) (any, error) {
	have, ok := e.types[name]
	if !ok {
		return nil, diagnostics.NewError(diagnostics.ErrT004, token.Token{}, fmt.Sprintf("variable %s is not defined", name))
	}
	if have != typ {
		return nil, diagnostics.NewError(diagnostics.ErrT004, token.Token{},
			fmt.Sprintf("variable %s has type %s, not %s", name, have, typ))
	}
	v, _ := e.varMaps[have].Get(name)
	return v, nil
}

// Get returns the value of name as a T. T must be one of the language's
// types: bool, int, float64, string, a registered abstract type, or a slice
// of one of those.
func Get[T any](e *Environment, name string) (T, error) {
	var zero T
	want, ok := e.registry.TypeName(reflect.TypeFor[T]())
	if !ok {
		return zero, diagnostics.NewError(diagnostics.ErrT004, token.Token{},
			fmt.Sprintf("%s is not a type of the language", reflect.TypeFor[T]()))
	}
	v, err := e.GetAs(name, want)
	if err != nil || v == nil {
		return zero, err
	}
	return v.(T), nil
}
