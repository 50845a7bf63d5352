package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/config"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/runtime"
	"github.com/wippyai/mono-runtime/transcoder"
)

// session is an initialized runtime with one class selected.
type session struct {
	rt    *runtime.Runtime
	asm   *runtime.Assembly
	class *runtime.Class
}

func openSession(api monoruntime.API, cfg *config.Config, assembly, class string) (*session, error) {
	rt, err := runtime.Init(api, cfg)
	if err != nil {
		return nil, fmt.Errorf("init runtime: %w", err)
	}

	asm, err := rt.RootDomain().Assembly(cfg.ResolveAssembly(assembly))
	if err != nil {
		rt.Shutdown()
		return nil, err
	}
	cls, err := asm.Class(class)
	if err != nil {
		rt.Shutdown()
		return nil, err
	}
	return &session{rt: rt, asm: asm, class: cls}, nil
}

func (s *session) Close() {
	s.rt.Shutdown()
}

// staticMethods returns the callable static methods of the class, sorted by
// descriptor. Type initializers are skipped.
func (s *session) staticMethods() []*runtime.Method {
	var out []*runtime.Method
	for _, m := range s.class.Methods() {
		if m.IsStatic() && m.Name() != ".cctor" {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b *runtime.Method) int {
		return strings.Compare(a.Descriptor(), b.Descriptor())
	})
	return out
}

// find resolves name against the static methods. A bare name must be
// unambiguous; a descriptor such as "Identity(int)" selects one overload.
func (s *session) find(name string, argc int) (*runtime.Method, error) {
	if strings.Contains(name, "(") {
		return s.class.MethodDesc(name)
	}
	var match []*runtime.Method
	for _, m := range s.staticMethods() {
		if m.Name() == name && m.Arity() == argc {
			match = append(match, m)
		}
	}
	switch len(match) {
	case 0:
		return nil, errors.NotFound(errors.PhaseLookup, "static method", name, s.class.FullName())
	case 1:
		return match[0], nil
	}
	descs := make([]string, len(match))
	for i, m := range match {
		descs[i] = m.Descriptor()
	}
	return nil, errors.InvalidInput(errors.PhaseLookup,
		fmt.Sprintf("%s is overloaded, use one of: %s", name, strings.Join(descs, " ")))
}

// call parses raw arguments for m and invokes it.
func (s *session) call(m *runtime.Method, raw []string) (string, error) {
	params := m.Signature().Params
	if len(raw) != len(params) {
		return "", errors.Arity(errors.PhaseInvoke, m.FullName(), len(params), len(raw))
	}
	args := make([]any, len(raw))
	for i, r := range raw {
		v, err := parseArg(r, params[i])
		if err != nil {
			return "", fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	ret, err := m.Invoke(nil, args...)
	if err != nil {
		return "", err
	}
	return formatResult(m, ret), nil
}

// parseArg converts command line text into the Go value for a managed
// parameter type.
func parseArg(raw string, t monoruntime.TypeInfo) (any, error) {
	switch t.Code {
	case monoruntime.TypeBoolean:
		return strconv.ParseBool(raw)
	case monoruntime.TypeChar:
		r, size := utf8.DecodeRuneInString(raw)
		if size == 0 || size != len(raw) || r == utf8.RuneError || r > 0xFFFF {
			return nil, errors.InvalidInput(errors.PhaseEncode, fmt.Sprintf("%q is not a single UTF-16 character", raw))
		}
		return transcoder.Char(r), nil
	case monoruntime.TypeI1:
		v, err := strconv.ParseInt(raw, 0, 8)
		return int8(v), err
	case monoruntime.TypeU1:
		v, err := strconv.ParseUint(raw, 0, 8)
		return uint8(v), err
	case monoruntime.TypeI2:
		v, err := strconv.ParseInt(raw, 0, 16)
		return int16(v), err
	case monoruntime.TypeU2:
		v, err := strconv.ParseUint(raw, 0, 16)
		return uint16(v), err
	case monoruntime.TypeI4:
		v, err := strconv.ParseInt(raw, 0, 32)
		return int32(v), err
	case monoruntime.TypeU4:
		v, err := strconv.ParseUint(raw, 0, 32)
		return uint32(v), err
	case monoruntime.TypeI8:
		return strconv.ParseInt(raw, 0, 64)
	case monoruntime.TypeU8:
		return strconv.ParseUint(raw, 0, 64)
	case monoruntime.TypeI:
		v, err := strconv.ParseInt(raw, 0, strconv.IntSize)
		return int(v), err
	case monoruntime.TypeU:
		v, err := strconv.ParseUint(raw, 0, strconv.IntSize)
		return uint(v), err
	case monoruntime.TypeR4:
		v, err := strconv.ParseFloat(raw, 32)
		return float32(v), err
	case monoruntime.TypeR8:
		return strconv.ParseFloat(raw, 64)
	case monoruntime.TypeString:
		return raw, nil
	}
	return nil, errors.New(errors.PhaseEncode, errors.KindUnsupported).
		ManagedType(t.Name).
		Detail("cannot be given on the command line").
		Build()
}

func formatResult(m *runtime.Method, v any) string {
	switch x := v.(type) {
	case nil:
		if m.Signature().Return.Code == monoruntime.TypeVoid {
			return "(void)"
		}
		return "null"
	case string:
		return strconv.Quote(x)
	case transcoder.Char:
		return strconv.QuoteRune(rune(x))
	case *runtime.Object:
		if x == nil {
			return "null"
		}
		return "<" + x.Class().FullName() + ">"
	}
	return fmt.Sprint(v)
}

// typeName is the short managed type name shown to users.
func typeName(t monoruntime.TypeInfo) string {
	switch t.Code {
	case monoruntime.TypeValueType, monoruntime.TypeClass, monoruntime.TypeGeneric:
		return t.Name
	}
	return t.Code.String()
}
