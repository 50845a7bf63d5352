// Package errors provides structured error types for the mono-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: member path, Go/managed type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("Tests.Vector2f", "x").
//		GoType("int32").
//		ManagedType("single").
//		Detail("field kinds differ").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.PhaseLookup, "class", "Foo", "tests_managed.dll")
//	err := errors.AssemblyNotFound("missing.dll")
//
// Exceptions raised by managed code are reported with kind KindManagedException
// and wrap a *ManagedException carrying the exception type and message:
//
//	var exc *errors.ManagedException
//	if stderrors.As(err, &exc) {
//		log.Println(exc.Message)
//	}
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
