package layout

import (
	"fmt"
	"reflect"
	"sync"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/transcoder/internal/types"
)

// ManagedField describes one instance field of a managed value type.
type ManagedField struct {
	Name   string
	Offset uintptr
	Code   monoruntime.TypeCode
}

type Calculator struct {
	cache map[reflect.Type]types.Layout
	mu    sync.Mutex
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[reflect.Type]types.Layout),
	}
}

// Of flattens a Go struct into its primitive fields. Every field must be a
// bool or numeric kind; nested aggregates, strings and pointers are rejected.
func (c *Calculator) Of(t reflect.Type) (types.Layout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.cache[t]; ok {
		return cached, nil
	}

	if t.Kind() != reflect.Struct {
		return types.Layout{}, fmt.Errorf("%s is not a struct", t)
	}

	l := types.Layout{
		GoType: t,
		Size:   t.Size(),
		Fields: make([]types.Field, 0, t.NumField()),
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		kind, ok := types.KindOf(sf.Type.Kind())
		if !ok || !kind.IsPrimitive() {
			return types.Layout{}, fmt.Errorf("field %s has non-primitive type %s", sf.Name, sf.Type)
		}
		l.Fields = append(l.Fields, types.Field{
			Name:   sf.Name,
			Offset: sf.Offset,
			Kind:   kind,
		})
	}

	c.cache[t] = l
	return l, nil
}

// Compare returns a description of the first difference between a Go
// layout and a managed value type, or "" when they agree. Field names are
// not compared; order, kind and offset are.
func Compare(l types.Layout, managed []ManagedField, managedSize uintptr) string {
	if len(l.Fields) != len(managed) {
		return fmt.Sprintf("field count differs: Go has %d, managed has %d", len(l.Fields), len(managed))
	}
	for i, f := range l.Fields {
		m := managed[i]
		if f.Kind.Code() != m.Code {
			return fmt.Sprintf("field %d (%s/%s): kind differs: Go %s, managed %s",
				i, f.Name, m.Name, f.Kind.Code(), m.Code)
		}
		if f.Offset != m.Offset {
			return fmt.Sprintf("field %d (%s/%s): offset differs: Go %d, managed %d",
				i, f.Name, m.Name, f.Offset, m.Offset)
		}
	}
	if l.Size != managedSize {
		return fmt.Sprintf("size differs: Go %d, managed %d", l.Size, managedSize)
	}
	return ""
}
