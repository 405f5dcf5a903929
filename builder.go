package nasc

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/toutaio/toutago-nasc-resolver/registry"
)

// Builder collects registrations and produces an immutable scope.
//
// Registration methods never fail on their own: problems are remembered and
// reported together by Build.
//
// Example:
//
//	b := nasc.NewBuilder()
//	b.Register(NewConsoleLogger, nasc.LifetimeSingleton).As((*Logger)(nil))
//	b.Register(NewUserService, nasc.LifetimeScoped)
//
//	root, err := b.Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer root.Dispose()
type Builder struct {
	settings      *settings
	parent        *Scope
	registrations []*RegistrationBuilder
	providers     []*providerEntry
	errs          error
}

// NewBuilder creates a builder for a root scope.
// Options can be provided to configure logging, validation and diagnostics.
//
// Example:
//
//	b := nasc.NewBuilder()
//	// or with options:
//	b := nasc.NewBuilder(nasc.WithDebug(), nasc.WithValidation())
func NewBuilder(options ...Option) *Builder {
	s, err := newSettings(options...)
	if err != nil {
		panic(fmt.Sprintf("failed to apply option: %v", err))
	}
	return &Builder{settings: s}
}

// newChildBuilder creates a builder whose scope will be a child of parent.
func newChildBuilder(parent *Scope) *Builder {
	return &Builder{settings: parent.settings, parent: parent}
}

// Parent returns the scope the built scope will be a child of, or nil when
// building a root scope.
func (b *Builder) Parent() *Scope { return b.parent }

// Err returns the registration errors collected so far.
func (b *Builder) Err() error { return b.errs }

func (b *Builder) fail(err error) *RegistrationBuilder {
	b.errs = multierr.Append(b.errs, err)
	return &RegistrationBuilder{builder: b, invalid: true}
}

// Register registers a constructor function. The constructor's parameters are
// resolved from the scope and its return type becomes the implementation type.
// Tagged fields of a returned struct pointer are populated afterwards.
//
// Example:
//
//	func NewUserService(repo UserRepository, logger Logger) (*UserService, error) {
//	    return &UserService{repo: repo, logger: logger}, nil
//	}
//
//	b.Register(NewUserService, nasc.LifetimeSingleton)
func (b *Builder) Register(constructor ConstructorFunc, lifetime Lifetime) *RegistrationBuilder {
	info, err := parseConstructor(constructor)
	if err != nil {
		return b.fail(&InvalidBindingError{Reason: err.Error()})
	}
	injector, err := newConstructorInjector(info, b.settings.injectors)
	if err != nil {
		return b.fail(&InvalidBindingError{Reason: err.Error()})
	}
	return b.add(info.returnType, lifetime, injector)
}

// RegisterType registers a struct pointer type that is created with new and
// populated through its `inject` tagged fields.
//
// Example:
//
//	b.RegisterType(&UserHandler{}, nasc.LifetimeTransient)
func (b *Builder) RegisterType(token any, lifetime Lifetime) *RegistrationBuilder {
	if token == nil {
		return b.fail(&InvalidBindingError{Reason: "type token cannot be nil"})
	}
	t := reflect.TypeOf(token)
	injector, err := b.settings.injectors.GetOrBuild(t)
	if err != nil {
		return b.fail(&InvalidBindingError{Reason: err.Error()})
	}
	return b.add(t, lifetime, injector)
}

// RegisterInstance registers an existing value. Every resolution returns that
// value; the scope never disposes it. Tagged fields of a struct pointer are
// populated on each resolution.
//
// Example:
//
//	b.RegisterInstance(cfg).AsSelf()
func (b *Builder) RegisterInstance(instance any) *RegistrationBuilder {
	if instance == nil {
		return b.fail(&InvalidBindingError{Reason: "instance cannot be nil"})
	}
	t := reflect.TypeOf(instance)
	var injector registry.Injector = noopInjector{}
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		fieldInjector, err := b.settings.injectors.GetOrBuild(t)
		if err != nil {
			return b.fail(&InvalidBindingError{Reason: err.Error()})
		}
		if len(fieldInjector.Dependencies()) > 0 {
			injector = fieldInjector
		}
	}
	rb := b.add(t, LifetimeSingleton, injector)
	rb.instance = instance
	rb.hasInstance = true
	return rb
}

// RegisterFactory registers a function that builds T. The implementation type
// is T itself, so register the factory of an interface type to bind that
// interface directly.
//
// Example:
//
//	nasc.RegisterFactory(b, func(r nasc.Resolver) (Connection, error) {
//	    cfg, err := nasc.Resolve[*Config](r)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return NewConnection(cfg.DSN), nil
//	}, nasc.LifetimeTransient)
func RegisterFactory[T any](b *Builder, fn func(r Resolver) (T, error), lifetime Lifetime) *RegistrationBuilder {
	if fn == nil {
		return b.fail(&InvalidBindingError{Reason: "factory function cannot be nil"})
	}
	return b.add(TypeOf[T](), lifetime, &factoryInjector[T]{fn: fn})
}

// RegisterResolver makes the resolving scope injectable as Resolver.
func (b *Builder) RegisterResolver() *RegistrationBuilder {
	rb := b.add(reflect.TypeOf((*Scope)(nil)), LifetimeTransient, resolverInjector{})
	return rb.As((*Resolver)(nil))
}

func (b *Builder) add(impl reflect.Type, lifetime Lifetime, injector registry.Injector) *RegistrationBuilder {
	if !lifetime.Valid() {
		return b.fail(&InvalidBindingError{Reason: fmt.Sprintf("invalid lifetime %q for %v", lifetime, impl)})
	}
	rb := &RegistrationBuilder{
		builder:            b,
		implementationType: impl,
		lifetime:           lifetime,
		injector:           injector,
	}
	b.registrations = append(b.registrations, rb)
	return rb
}

// Build creates the root scope. It fails when a registration was invalid, when
// two registrations conflict or when the dependency graph has a cycle.
// Bootable providers are booted against the new scope.
func (b *Builder) Build() (*Scope, error) {
	if b.parent != nil {
		return nil, errors.New("child scopes are built by Scope.CreateScope")
	}
	return b.buildScope()
}

func (b *Builder) buildScope() (*Scope, error) {
	if b.errs != nil {
		return nil, b.errs
	}

	bindings := make([]*registry.Binding, 0, len(b.registrations))
	for _, rb := range b.registrations {
		if rb.invalid {
			continue
		}
		bindings = append(bindings, rb.binding())
	}

	reg, err := registry.Build(bindings...)
	if err != nil {
		return nil, err
	}

	scope := newScope(reg, b.parent, b.settings)
	if err := validateScope(scope, b.settings.validation); err != nil {
		return nil, err
	}

	parentID := ""
	if b.parent != nil {
		parentID = b.parent.ID()
	}
	scope.logger.Debug("scope built",
		zap.String("parent", parentID),
		zap.Int("bindings", reg.Len()),
		zap.Int("providers", len(b.providers)))

	if err := b.bootProviders(scope); err != nil {
		return nil, multierr.Append(err, scope.Dispose())
	}
	return scope, nil
}

// RegistrationBuilder refines a single registration.
type RegistrationBuilder struct {
	builder            *Builder
	implementationType reflect.Type
	contracts          []reflect.Type
	asSelf             bool
	lifetime           Lifetime
	injector           registry.Injector
	instance           any
	hasInstance        bool
	parameters         []registry.Parameter
	invalid            bool
}

// As binds the registration under each contract. A contract is named by a nil
// interface pointer such as (*Logger)(nil), or by a value of the type itself.
// Without As the registration is resolvable by its implementation type only.
func (r *RegistrationBuilder) As(contracts ...any) *RegistrationBuilder {
	if r.invalid {
		return r
	}
	for _, token := range contracts {
		t, err := typeOf(token)
		if err != nil {
			r.builder.errs = multierr.Append(r.builder.errs, err)
			continue
		}
		if !r.implementationType.AssignableTo(t) {
			r.builder.errs = multierr.Append(r.builder.errs,
				&InvalidContractError{Implementation: r.implementationType, Contract: t})
			continue
		}
		r.contracts = append(r.contracts, t)
	}
	return r
}

// AsSelf also binds the registration under its own implementation type.
func (r *RegistrationBuilder) AsSelf() *RegistrationBuilder {
	r.asSelf = true
	return r
}

// WithParameter supplies value for any dependency its type is assignable to.
// Parameters take precedence over registered bindings.
func (r *RegistrationBuilder) WithParameter(value any) *RegistrationBuilder {
	if r.invalid {
		return r
	}
	if value == nil {
		r.builder.errs = multierr.Append(r.builder.errs,
			&InvalidBindingError{Reason: "untyped parameter cannot be nil"})
		return r
	}
	r.parameters = append(r.parameters, registry.Parameter{Value: value})
	return r
}

// WithTypedParameter supplies value for dependencies of exactly the type named
// by token.
func (r *RegistrationBuilder) WithTypedParameter(token any, value any) *RegistrationBuilder {
	if r.invalid {
		return r
	}
	t, err := typeOf(token)
	if err != nil {
		r.builder.errs = multierr.Append(r.builder.errs, err)
		return r
	}
	if value != nil && !reflect.TypeOf(value).AssignableTo(t) {
		r.builder.errs = multierr.Append(r.builder.errs,
			&InvalidBindingError{Reason: fmt.Sprintf("parameter of type %T is not assignable to %v", value, t)})
		return r
	}
	r.parameters = append(r.parameters, registry.Parameter{Type: t, Value: value})
	return r
}

// binding produces the immutable binding for this registration.
func (r *RegistrationBuilder) binding() *registry.Binding {
	contracts := append([]reflect.Type(nil), r.contracts...)
	if r.asSelf && len(contracts) > 0 {
		contracts = append(contracts, r.implementationType)
	}

	var opts []registry.BindingOption
	if r.hasInstance {
		opts = append(opts, registry.WithInstance(r.instance))
	}
	if len(r.parameters) > 0 {
		opts = append(opts, registry.WithParameters(r.parameters...))
	}
	return registry.NewBinding(r.implementationType, contracts, r.lifetime, r.injector, opts...)
}
