package transcoder

import (
	stderrors "errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
)

// MaxArity is the largest parameter count supported for internal calls,
// not counting the receiver.
const MaxArity = 12

var errorType = reflect.TypeFor[error]()

// Signature is a compiled Go function type: one converter per parameter
// position plus the result converter, or nil for void.
type Signature struct {
	Func     reflect.Type
	Receiver Converter // internal calls on instances only
	Result   Converter
	Params   []Converter
	HasError bool
}

// Arity returns the number of managed parameters.
func (s *Signature) Arity() int {
	return len(s.Params)
}

// IsVoid reports whether the signature has no result value.
func (s *Signature) IsVoid() bool {
	return s.Result == nil
}

// Descriptor returns the method descriptor for name with this signature's
// parameter types, for example "FunctionWithIntParam(int)".
func (s *Signature) Descriptor(name string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.ManagedName())
	}
	b.WriteByte(')')
	return b.String()
}

// EncodeArgs fills f.Args with one slot per parameter.
func (s *Signature) EncodeArgs(c *Context, args []reflect.Value, f *Frame) error {
	if len(args) != len(s.Params) {
		return errors.Arity(errors.PhaseEncode, s.Func.String(), len(s.Params), len(args))
	}
	for i, conv := range s.Params {
		slot, err := conv.Encode(c, args[i], f)
		if err != nil {
			return atArg(err, i)
		}
		f.Args[i] = slot
	}
	return nil
}

// DecodeResult decodes the value returned by an invoke. Void signatures
// return the invalid reflect.Value.
func (s *Signature) DecodeResult(c *Context, ret monoruntime.ObjectRef) (reflect.Value, error) {
	if s.Result == nil {
		return reflect.Value{}, nil
	}
	v, err := DecodeBoxed(c, s.Result, ret)
	if err != nil {
		return reflect.Value{}, atPath(err, "return")
	}
	return v, nil
}

// Out builds the result list of a reflect.MakeFunc implementation. On
// error the value result is the zero value.
func (s *Signature) Out(v reflect.Value, err error) []reflect.Value {
	out := make([]reflect.Value, 0, 2)
	if s.Result != nil {
		if err != nil || !v.IsValid() {
			v = reflect.Zero(s.Func.Out(0))
		}
		out = append(out, v)
	}
	if s.HasError {
		if err == nil {
			out = append(out, reflect.Zero(errorType))
		} else {
			out = append(out, reflect.ValueOf(&err).Elem())
		}
	}
	return out
}

// Compiler turns Go function types into Signatures, caching the result.
type Compiler struct {
	registry *Registry
	cache    sync.Map // sigKey -> *Signature
}

type sigMode uint8

const (
	modeCall sigMode = iota
	modeStatic
	modeInstance
)

type sigKey struct {
	fn   reflect.Type
	mode sigMode
}

func NewCompiler(registry *Registry) *Compiler {
	return &Compiler{registry: registry}
}

// Registry returns the converter registry used by the compiler.
func (c *Compiler) Registry() *Registry {
	return c.registry
}

// CompileCall compiles the type of a function that calls into managed code.
// It must return error as its last result, optionally preceded by a value.
func (c *Compiler) CompileCall(fn reflect.Type) (*Signature, error) {
	return c.compile(fn, modeCall)
}

// CompileNative compiles the type of a Go function exposed to managed code.
// With hasThis the first parameter receives the managed instance. A
// trailing error result is optional.
func (c *Compiler) CompileNative(fn reflect.Type, hasThis bool) (*Signature, error) {
	mode := modeStatic
	if hasThis {
		mode = modeInstance
	}
	return c.compile(fn, mode)
}

func (c *Compiler) compile(fn reflect.Type, mode sigMode) (*Signature, error) {
	if fn == nil || fn.Kind() != reflect.Func {
		return nil, errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
			Detail("expected a function, got %v", fn).
			Build()
	}

	key := sigKey{fn: fn, mode: mode}
	if cached, ok := c.cache.Load(key); ok {
		return cached.(*Signature), nil
	}

	sig, err := c.build(fn, mode)
	if err != nil {
		return nil, err
	}

	c.cache.Store(key, sig)
	return sig, nil
}

func (c *Compiler) build(fn reflect.Type, mode sigMode) (*Signature, error) {
	if fn.IsVariadic() {
		return nil, errors.New(errors.PhaseCompile, errors.KindUnsupported).
			GoType(fn.String()).
			Detail("variadic functions are not supported").
			Build()
	}

	sig := &Signature{Func: fn}

	first := 0
	if mode == modeInstance {
		if fn.NumIn() == 0 {
			return nil, errors.Arity(errors.PhaseCompile, fn.String(), 1, 0)
		}
		recv, err := c.registry.Lookup(fn.In(0))
		if err != nil {
			return nil, atPath(err, "receiver")
		}
		if !recv.ByRef() {
			return nil, errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
				Path("receiver").
				GoType(fn.In(0).String()).
				Detail("receiver must be an object or shared wrapper type").
				Build()
		}
		sig.Receiver = recv
		first = 1
	}

	if mode != modeCall && fn.NumIn()-first > MaxArity {
		return nil, errors.Arity(errors.PhaseCompile, fn.String(), MaxArity, fn.NumIn()-first)
	}

	sig.Params = make([]Converter, 0, fn.NumIn()-first)
	for i := first; i < fn.NumIn(); i++ {
		conv, err := c.registry.Lookup(fn.In(i))
		if err != nil {
			return nil, atArg(err, i-first)
		}
		sig.Params = append(sig.Params, conv)
	}

	nout := fn.NumOut()
	if nout > 0 && fn.Out(nout-1) == errorType {
		sig.HasError = true
		nout--
	}
	if mode == modeCall && !sig.HasError {
		return nil, errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
			GoType(fn.String()).
			Detail("last result must be error").
			Build()
	}

	switch nout {
	case 0:
	case 1:
		conv, err := c.registry.Lookup(fn.Out(0))
		if err != nil {
			return nil, atPath(err, "return")
		}
		sig.Result = conv
	default:
		return nil, errors.New(errors.PhaseCompile, errors.KindUnsupported).
			GoType(fn.String()).
			Detail("at most one result value is supported, got %d", nout).
			Build()
	}

	return sig, nil
}

func atArg(err error, i int) error {
	return atPath(err, "arg"+strconv.Itoa(i))
}

// atPath prefixes the path of a structured error.
func atPath(err error, elem string) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		cp := *e
		cp.Path = append([]string{elem}, e.Path...)
		return &cp
	}
	return err
}
