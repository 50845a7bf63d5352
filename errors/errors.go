package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseInit     Phase = "init"     // runtime startup and shutdown
	PhaseLoad     Phase = "load"     // assembly loading
	PhaseLookup   Phase = "lookup"   // class and member resolution
	PhaseCompile  Phase = "compile"  // Go signature compilation
	PhaseEncode   Phase = "encode"   // Go to managed
	PhaseDecode   Phase = "decode"   // managed to Go
	PhaseInvoke   Phase = "invoke"   // managed calls
	PhaseBind     Phase = "bind"     // internal call registration
	PhaseRegister Phase = "register" // converter registration
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch       Kind = "type_mismatch"
	KindArity              Kind = "arity"
	KindLayoutMismatch     Kind = "layout_mismatch"
	KindInvalidUTF8        Kind = "invalid_utf8"
	KindUnsupported        Kind = "unsupported"
	KindNilHandle          Kind = "nil_handle"
	KindNotFound           Kind = "not_found"
	KindNotInitialized     Kind = "not_initialized"
	KindAlreadyInitialized Kind = "already_initialized"
	KindAlreadyShutdown    Kind = "already_shutdown"
	KindInvalidInput       Kind = "invalid_input"
	KindRegistration       Kind = "registration"
	KindManagedException   Kind = "managed_exception"
	KindInvalidData        Kind = "invalid_data"
	KindPanic              Kind = "panic"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value       any
	Cause       error
	Phase       Phase
	Kind        Kind
	GoType      string
	ManagedType string
	Detail      string
	Path        []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.ManagedType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.ManagedType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", managed type ")
			b.WriteString(e.ManagedType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("managed type ")
			b.WriteString(e.ManagedType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.ManagedType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// ManagedType sets the managed type name
func (b *Builder) ManagedType(t string) *Builder {
	b.err.ManagedType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// ManagedException carries an exception raised inside managed code.
type ManagedException struct {
	Type    string
	Message string
}

func (e *ManagedException) Error() string {
	if e.Message == "" {
		return e.Type
	}
	if e.Type == "" {
		return e.Message
	}
	return e.Type + ": " + e.Message
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, managedType string) *Error {
	return &Error{
		Phase:       phase,
		Kind:        KindTypeMismatch,
		Path:        path,
		GoType:      goType,
		ManagedType: managedType,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// Unsupported creates an unsupported-type error
func Unsupported(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		GoType: goType,
		Detail: "no converter registered",
	}
}

// NilHandle creates an error for a nil native handle
func NilHandle(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilHandle,
		Detail: fmt.Sprintf("%s handle is nil", what),
	}
}

// Arity creates an argument count mismatch error
func Arity(phase Phase, name string, want, got int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindArity,
		Path:   []string{name},
		Detail: fmt.Sprintf("expected %d arguments, got %d", want, got),
	}
}

// LayoutMismatch creates a value-type layout mismatch error
func LayoutMismatch(path []string, goType, managedType, detail string) *Error {
	return &Error{
		Phase:       PhaseRegister,
		Kind:        KindLayoutMismatch,
		Path:        path,
		GoType:      goType,
		ManagedType: managedType,
		Detail:      detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Runtime package convenience constructors

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// AlreadyInitialized creates an error for a second process-wide init
func AlreadyInitialized(component string) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindAlreadyInitialized,
		Detail: fmt.Sprintf("%s already initialized", component),
	}
}

// AlreadyShutdown creates an error for initializing a component that was
// shut down and cannot start again.
func AlreadyShutdown(component string) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindAlreadyShutdown,
		Detail: fmt.Sprintf("%s already shut down", component),
	}
}

// NotFound creates a not-found error. owner names the declaring class or
// assembly and may be empty.
func NotFound(phase Phase, what, name, owner string) *Error {
	detail := fmt.Sprintf("%s %q not found", what, name)
	if owner != "" {
		detail += " in " + owner
	}
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Path:   []string{name},
		Detail: detail,
	}
}

// AssemblyNotFound creates the load failure for an assembly path
func AssemblyNotFound(path string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindNotFound,
		Path:   []string{path},
		Detail: "could not open assembly with path : " + path,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(phase Phase, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s", name),
		Cause:  cause,
	}
}

// Panic creates the error for a Go panic recovered at the managed boundary
func Panic(phase Phase, name string, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPanic,
		Path:   []string{name},
		Value:  value,
		Detail: fmt.Sprintf("panic: %v", value),
	}
}

// Exception creates the error surfaced for a managed exception
func Exception(method string, exc *ManagedException) *Error {
	return &Error{
		Phase:       PhaseInvoke,
		Kind:        KindManagedException,
		Path:        []string{method},
		ManagedType: exc.Type,
		Detail:      exc.Message,
		Cause:       exc,
	}
}
