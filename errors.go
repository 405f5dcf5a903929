package nasc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/toutaio/toutago-nasc-resolver/registry"
)

// ErrScopeDisposed is returned when resolving from a scope that was disposed.
var ErrScopeDisposed = errors.New("scope has been disposed")

// NotRegisteredError is returned when no binding exists for a type anywhere in
// the scope chain.
type NotRegisteredError = registry.NotRegisteredError

// ConflictingRegistrationError is returned by Build when an implementation is
// bound twice under the same contract.
type ConflictingRegistrationError = registry.ConflictingRegistrationError

// InvalidContractError is returned by Build when an implementation does not
// satisfy a contract it was bound as.
type InvalidContractError = registry.InvalidContractError

// InvalidBindingError is returned when a registration has invalid parameters.
type InvalidBindingError struct {
	Reason string
}

func (e *InvalidBindingError) Error() string {
	return fmt.Sprintf("invalid binding: %s", e.Reason)
}

// ResolutionError is returned when constructing an instance fails.
// It names the type that was being built and wraps what went wrong.
type ResolutionError struct {
	Type  reflect.Type
	Cause error
}

func (e *ResolutionError) Error() string {
	typeStr := "unknown"
	if e.Type != nil {
		typeStr = e.Type.String()
	}

	if e.Cause == nil {
		return fmt.Sprintf("failed to resolve %s", typeStr)
	}
	return fmt.Sprintf("failed to resolve %s: %v", typeStr, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// CircularDependencyError indicates that a type's construction depends on
// itself. Path lists the chain from the first request to the repeated type.
type CircularDependencyError struct {
	Type reflect.Type
	Path []reflect.Type
}

func (e *CircularDependencyError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("circular dependency detected for type %v", e.Type)
	}
	names := make([]string, len(e.Path))
	for i, t := range e.Path {
		names[i] = t.String()
	}
	return fmt.Sprintf("circular dependency detected for type %v: %s", e.Type, strings.Join(names, " -> "))
}

// DisposalError reports an instance whose teardown failed.
type DisposalError struct {
	Instance any
	Cause    error
}

func (e *DisposalError) Error() string {
	return fmt.Sprintf("disposal error for %T: %v", e.Instance, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *DisposalError) Unwrap() error {
	return e.Cause
}

// ValidationError collects the problems found while validating a build.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation failed: %v", e.Errors[0])
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("validation failed with %d errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		b.WriteString(fmt.Sprintf("  %d. %v\n", i+1, err))
	}
	return b.String()
}

func (e *ValidationError) Unwrap() []error {
	return e.Errors
}
