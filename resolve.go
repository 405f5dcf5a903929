package nasc

import (
	"fmt"
	"reflect"

	"github.com/toutaio/toutago-nasc-resolver/registry"
)

// TypeOf returns the reflect.Type of T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// typeOf converts a token to the type it names. A nil pointer to an interface
// names the interface; any other value names its own dynamic type.
func typeOf(token any) (reflect.Type, error) {
	if token == nil {
		return nil, &InvalidBindingError{Reason: "type token cannot be nil"}
	}
	t := reflect.TypeOf(token)
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Interface {
		return t.Elem(), nil
	}
	return t, nil
}

// Resolve resolves T from r.
//
// Example:
//
//	logger, err := nasc.Resolve[Logger](scope)
//	loggers, err := nasc.Resolve[[]Logger](scope)
func Resolve[T any](r registry.Resolver) (T, error) {
	var zero T
	instance, err := r.Resolve(TypeOf[T]())
	if err != nil {
		return zero, err
	}
	if instance == nil {
		return zero, nil
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("resolved %T is not a %v", instance, TypeOf[T]())
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on failure.
func MustResolve[T any](r registry.Resolver) T {
	instance, err := Resolve[T](r)
	if err != nil {
		panic(err)
	}
	return instance
}
