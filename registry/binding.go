package registry

import (
	"fmt"
	"reflect"
	"strings"
)

// Resolver is the resolution capability handed to injectors.
type Resolver interface {
	// Resolve looks the type up through the scope chain and returns an instance.
	Resolve(t reflect.Type) (any, error)

	// ResolveEntry resolves an already located entry, skipping the lookup.
	ResolveEntry(e Entry) (any, error)
}

// Injector knows how to build and populate instances of one concrete type.
// Injectors are created outside of the registry; the registry only consumes them.
type Injector interface {
	// CreateInstance constructs a new, fully populated instance.
	CreateInstance(r Resolver) (any, error)

	// Inject populates the injectable members of an existing instance.
	Inject(instance any, r Resolver) error

	// Dependencies lists the types the injector will ask the resolver for.
	Dependencies() []reflect.Type
}

// Entry is anything a Registry can return for a type: a single Binding or a
// MultiBinding.
type Entry interface {
	ImplementationType() reflect.Type
	ContractTypes() []reflect.Type
	Lifetime() Lifetime
	SpawnInstance(r Resolver) (any, error)
}

// Parameter overrides one dependency of a binding with a fixed value.
type Parameter struct {
	// Type is the dependency type the parameter answers. When nil, the
	// parameter answers every type its value is assignable to.
	Type  reflect.Type
	Value any
}

// Matches reports whether the parameter satisfies a dependency of type t.
func (p Parameter) Matches(t reflect.Type) bool {
	if p.Type != nil {
		return p.Type == t
	}
	if p.Value == nil {
		return false
	}
	return reflect.TypeOf(p.Value).AssignableTo(t)
}

// Binding maps one concrete implementation to the contract types it satisfies.
// A Binding is immutable once constructed.
type Binding struct {
	implementationType reflect.Type
	contractTypes      []reflect.Type
	lifetime           Lifetime
	injector           Injector
	instance           any
	hasInstance        bool
	parameters         []Parameter
}

// BindingOption configures optional parts of a Binding.
type BindingOption func(*Binding)

// WithInstance makes the binding return v instead of constructing instances.
// The engine never disposes such instances.
func WithInstance(v any) BindingOption {
	return func(b *Binding) {
		b.instance = v
		b.hasInstance = true
	}
}

// WithParameters attaches dependency overrides to the binding.
func WithParameters(params ...Parameter) BindingOption {
	return func(b *Binding) {
		b.parameters = append(b.parameters, params...)
	}
}

// NewBinding creates a binding. An empty contracts list means the binding is
// resolvable only by its implementation type.
func NewBinding(impl reflect.Type, contracts []reflect.Type, lifetime Lifetime, injector Injector, opts ...BindingOption) *Binding {
	b := &Binding{
		implementationType: impl,
		contractTypes:      dedupeTypes(contracts),
		lifetime:           lifetime,
		injector:           injector,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ImplementationType returns the concrete type produced by the binding.
func (b *Binding) ImplementationType() reflect.Type { return b.implementationType }

// ContractTypes returns a copy of the contract types in registration order.
func (b *Binding) ContractTypes() []reflect.Type {
	out := make([]reflect.Type, len(b.contractTypes))
	copy(out, b.contractTypes)
	return out
}

// Lifetime returns the binding lifetime.
func (b *Binding) Lifetime() Lifetime { return b.lifetime }

// Injector returns the injection plan of the binding.
func (b *Binding) Injector() Injector { return b.injector }

// IsInstance reports whether the binding serves a caller-owned instance.
func (b *Binding) IsInstance() bool { return b.hasInstance }

// Parameters returns a copy of the dependency overrides.
func (b *Binding) Parameters() []Parameter {
	out := make([]Parameter, len(b.parameters))
	copy(out, b.parameters)
	return out
}

// keys returns the registry keys the binding is stored under.
func (b *Binding) keys() []reflect.Type {
	if len(b.contractTypes) == 0 {
		return []reflect.Type{b.implementationType}
	}
	return b.contractTypes
}

// SpawnInstance returns the fixed instance after re-injecting it, or asks the
// injector for a new one.
func (b *Binding) SpawnInstance(r Resolver) (any, error) {
	if b.injector == nil {
		if b.hasInstance {
			return b.instance, nil
		}
		return nil, fmt.Errorf("binding %s has no injector", b)
	}
	if len(b.parameters) > 0 {
		r = &parameterResolver{Resolver: r, params: b.parameters}
	}
	if b.hasInstance {
		if err := b.injector.Inject(b.instance, r); err != nil {
			return nil, err
		}
		return b.instance, nil
	}
	return b.injector.CreateInstance(r)
}

func (b *Binding) String() string {
	names := make([]string, len(b.contractTypes))
	for i, t := range b.contractTypes {
		names[i] = t.String()
	}
	return fmt.Sprintf("%v as [%s] (%s)", b.implementationType, strings.Join(names, ", "), b.lifetime)
}

// parameterResolver answers matching dependencies from the binding parameters.
type parameterResolver struct {
	Resolver
	params []Parameter
}

func (p *parameterResolver) Resolve(t reflect.Type) (any, error) {
	for _, param := range p.params {
		if param.Matches(t) {
			return param.Value, nil
		}
	}
	return p.Resolver.Resolve(t)
}

// Unwrap returns the resolver the parameters were layered on.
func (p *parameterResolver) Unwrap() Resolver {
	return p.Resolver
}

func dedupeTypes(types []reflect.Type) []reflect.Type {
	out := make([]reflect.Type, 0, len(types))
	seen := make(map[reflect.Type]bool, len(types))
	for _, t := range types {
		if t == nil || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
