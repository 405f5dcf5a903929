package nasc

import (
	"fmt"
	"reflect"

	"github.com/toutaio/toutago-nasc-resolver/registry"
)

// Injector is the injection plan of one concrete type.
type Injector = registry.Injector

// FactoryFunc creates an instance of T using the resolver for its dependencies.
type FactoryFunc[T any] func(r Resolver) (T, error)

// factoryInjector delegates construction to a user supplied function.
type factoryInjector[T any] struct {
	fn FactoryFunc[T]
}

func (f *factoryInjector[T]) CreateInstance(r registry.Resolver) (any, error) {
	resolver, err := asResolver(r)
	if err != nil {
		return nil, err
	}
	instance, err := f.fn(resolver)
	if err != nil {
		return nil, fmt.Errorf("factory function failed: %w", err)
	}
	return instance, nil
}

func (f *factoryInjector[T]) Inject(any, registry.Resolver) error { return nil }

// Dependencies is unknown for factories; cycles through them are caught while
// resolving.
func (f *factoryInjector[T]) Dependencies() []reflect.Type { return nil }

// noopInjector is used for fixed instances that have nothing to inject.
type noopInjector struct{}

func (noopInjector) CreateInstance(registry.Resolver) (any, error) {
	return nil, fmt.Errorf("instance binding cannot create new instances")
}

func (noopInjector) Inject(any, registry.Resolver) error { return nil }

func (noopInjector) Dependencies() []reflect.Type { return nil }

// resolverInjector hands out the scope that is resolving it.
type resolverInjector struct{}

func (resolverInjector) CreateInstance(r registry.Resolver) (any, error) {
	for {
		switch v := r.(type) {
		case *chainResolver:
			return v.scope, nil
		case *Scope:
			return v, nil
		case interface{ Unwrap() registry.Resolver }:
			r = v.Unwrap()
		default:
			return r, nil
		}
	}
}

func (resolverInjector) Inject(any, registry.Resolver) error { return nil }

func (resolverInjector) Dependencies() []reflect.Type { return nil }

// resolverAdapter lets wrapped resolvers, such as the one applying binding
// parameters, still offer the full Resolver surface.
type resolverAdapter struct {
	registry.Resolver
	base Resolver
}

func (a *resolverAdapter) CreateScope(installers ...Installer) (*Scope, error) {
	return a.base.CreateScope(installers...)
}

func (a *resolverAdapter) Inject(instance any) error {
	return a.base.Inject(instance)
}

// asResolver upgrades the resolver handed to an injector to the full surface.
func asResolver(r registry.Resolver) (Resolver, error) {
	if full, ok := r.(Resolver); ok {
		return full, nil
	}
	inner := r
	for {
		u, ok := inner.(interface{ Unwrap() registry.Resolver })
		if !ok {
			return nil, fmt.Errorf("resolver %T does not support scopes", r)
		}
		inner = u.Unwrap()
		if full, ok := inner.(Resolver); ok {
			return &resolverAdapter{Resolver: r, base: full}, nil
		}
	}
}
