package infact

import (
	"fmt"
	"math"
	"reflect"

	"github.com/funvibe/infact/internal/config"
	"github.com/funvibe/infact/pkg/factory"
)

// Marshaller converts Go values into values of the language, so a host can
// define variables that scripts then refer to by name.
type Marshaller struct {
	registry *factory.Registry
}

func NewMarshaller(r *factory.Registry) *Marshaller {
	return &Marshaller{registry: r}
}

// ToValue converts val and returns it with its type name. Integers and
// floats of every size become int and double; a value implementing exactly
// one registered abstract type gets that type.
func (m *Marshaller) ToValue(val interface{}) (interface{}, string, error) {
	if val == nil {
		return nil, "", fmt.Errorf("cannot infer the type of nil")
	}
	v := reflect.ValueOf(val)

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(v.Int()), config.IntTypeName, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Uint() > math.MaxInt {
			return nil, "", fmt.Errorf("%d overflows int", v.Uint())
		}
		return int(v.Uint()), config.IntTypeName, nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), config.DoubleTypeName, nil
	case reflect.Bool:
		return v.Bool(), config.BoolTypeName, nil
	case reflect.String:
		return v.String(), config.StringTypeName, nil
	case reflect.Slice:
		if name, ok := m.registry.TypeName(v.Type()); ok {
			return val, name, nil
		}
		return m.sliceToVector(v)
	}

	f, err := m.abstractFor(v.Type())
	if err != nil {
		return nil, "", err
	}
	return val, f.Name(), nil
}

// ToTyped converts val to a value of the named type.
func (m *Marshaller) ToTyped(val interface{}, typ string) (interface{}, error) {
	if val == nil {
		if _, isVector := config.ElemOf(typ); isVector {
			return nil, nil
		}
		if _, ok := m.registry.Factory(typ); ok {
			return nil, nil
		}
		return nil, fmt.Errorf("nil is not a %s", typ)
	}
	// An explicit object type decides on its own, even for values that
	// implement several registered types.
	if f, ok := m.registry.Factory(typ); ok {
		if !reflect.TypeOf(val).Implements(f.GoType()) {
			return nil, fmt.Errorf("%T does not implement %s", val, typ)
		}
		return val, nil
	}
	if elem, isVector := config.ElemOf(typ); isVector {
		if f, ok := m.registry.Factory(elem); ok {
			return m.objectVector(reflect.ValueOf(val), f)
		}
	}
	out, have, err := m.ToValue(val)
	if err != nil {
		return nil, err
	}
	if have == typ {
		return out, nil
	}
	if have == config.IntTypeName && typ == config.DoubleTypeName {
		return float64(out.(int)), nil
	}
	return nil, fmt.Errorf("%T is a %s, not a %s", val, have, typ)
}

// abstractFor finds the registered abstract type implemented by t.
func (m *Marshaller) abstractFor(t reflect.Type) (factory.AbstractFactory, error) {
	var found factory.AbstractFactory
	for _, f := range m.registry.Factories() {
		if !t.Implements(f.GoType()) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%s implements both %s and %s", t, found.Name(), f.Name())
		}
		found = f
	}
	if found == nil {
		return nil, fmt.Errorf("%s does not implement any registered type", t)
	}
	return found, nil
}

// sliceToVector converts slices of sized numbers and of concrete object
// types.
func (m *Marshaller) sliceToVector(v reflect.Value) (interface{}, string, error) {
	elemType := v.Type().Elem()
	switch elemType.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out := make([]int, v.Len())
		for i := range out {
			n, _, err := m.ToValue(v.Index(i).Interface())
			if err != nil {
				return nil, "", fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = n.(int)
		}
		return out, config.VectorOf(config.IntTypeName), nil
	case reflect.Float32:
		out := make([]float64, v.Len())
		for i := range out {
			out[i] = v.Index(i).Float()
		}
		return out, config.VectorOf(config.DoubleTypeName), nil
	}
	f, err := m.abstractFor(elemType)
	if err != nil {
		return nil, "", fmt.Errorf("unsupported slice type %s: %w", v.Type(), err)
	}
	out, err := m.objectVector(v, f)
	if err != nil {
		return nil, "", err
	}
	return out, config.VectorOf(f.Name()), nil
}

// objectVector copies the elements of v into a slice of f's Go type.
func (m *Marshaller) objectVector(v reflect.Value, f factory.AbstractFactory) (interface{}, error) {
	if v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s is not a slice", v.Type())
	}
	out := reflect.MakeSlice(reflect.SliceOf(f.GoType()), v.Len(), v.Len())
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		if elem.Kind() == reflect.Interface && elem.IsNil() {
			continue
		}
		if !elem.Type().Implements(f.GoType()) {
			return nil, fmt.Errorf("element %d: %s does not implement %s", i, elem.Type(), f.Name())
		}
		out.Index(i).Set(elem)
	}
	return out.Interface(), nil
}
