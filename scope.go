package nasc

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/toutaio/toutago-nasc-resolver/registry"
)

// Resolver is what constructors and factories receive when they need to
// resolve more dependencies, create scopes or populate instances themselves.
// *Scope implements it, and registering it with RegisterResolver makes it
// injectable.
type Resolver interface {
	registry.Resolver

	// CreateScope creates a child scope with extra registrations.
	CreateScope(installers ...Installer) (*Scope, error)

	// Inject populates the tagged fields of an existing instance.
	Inject(instance any) error
}

// Installer adds registrations to the builder of a child scope.
type Installer func(b *Builder)

// Disposable represents a service that requires cleanup.
// Services implementing this interface, or io.Closer, will have Dispose called
// when the scope that created them is disposed.
//
// Example:
//
//	type DatabaseConnection struct {}
//	func (d *DatabaseConnection) Dispose() error {
//	    return d.connection.Close()
//	}
type Disposable interface {
	Dispose() error
}

// Scope represents an isolated dependency resolution context.
// Singleton instances live in the scope that declared them, scoped instances
// live in the scope that resolved them, transient instances are never cached.
//
// Example:
//
//	scope, err := root.CreateScope(func(b *nasc.Builder) {
//	    b.Register(NewUnitOfWork, nasc.LifetimeScoped)
//	})
//	if err != nil {
//	    return err
//	}
//	defer scope.Dispose()
//
//	uow, err := nasc.Resolve[*UnitOfWork](scope)
type Scope struct {
	id       string
	registry *registry.Registry
	parent   *Scope
	root     *Scope
	settings *settings
	logger   *zap.Logger

	instances instanceCache

	mu          sync.Mutex
	disposables []any
	disposed    atomic.Bool
}

// newScope creates a scope over reg. A nil parent makes it a root scope.
func newScope(reg *registry.Registry, parent *Scope, s *settings) *Scope {
	id := uuid.NewString()
	scope := &Scope{
		id:       id,
		registry: reg,
		parent:   parent,
		settings: s,
		logger:   s.logger.With(zap.String("scope", id)),
	}
	if parent == nil {
		scope.root = scope
	} else {
		scope.root = parent.root
	}
	return scope
}

// ID returns the unique identifier of the scope.
func (s *Scope) ID() string { return s.id }

// Parent returns the parent scope, or nil for a root scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Root returns the root of the scope chain.
func (s *Scope) Root() *Scope { return s.root }

// IsRoot reports whether the scope has no parent.
func (s *Scope) IsRoot() bool { return s.parent == nil }

// IsDisposed reports whether Dispose has been called.
func (s *Scope) IsDisposed() bool { return s.disposed.Load() }

// Registry returns the registrations owned by this scope only.
func (s *Scope) Registry() *registry.Registry { return s.registry }

// Logger returns the scope's logger.
func (s *Scope) Logger() *zap.Logger { return s.logger }

// TryGetEntry looks t up in this scope's own registry, ignoring parents.
func (s *Scope) TryGetEntry(t reflect.Type) (registry.Entry, bool) {
	return s.registry.TryGet(t)
}

// Resolve returns an instance of t, searching this scope and then its
// ancestors.
func (s *Scope) Resolve(t reflect.Type) (any, error) {
	if t == nil {
		return nil, &InvalidBindingError{Reason: "cannot resolve nil type"}
	}
	return s.resolveType(t, nil)
}

// ResolveEntry builds or returns the cached instance of an already located
// entry.
func (s *Scope) ResolveEntry(e registry.Entry) (any, error) {
	return s.resolveEntry(e, nil)
}

// Make resolves the type named by token. A nil interface pointer such as
// (*Logger)(nil) names the interface; any other value names its own type.
// Make panics on failure, use MakeSafe to get an error instead.
//
// Example:
//
//	logger := scope.Make((*Logger)(nil)).(Logger)
func (s *Scope) Make(token any) any {
	instance, err := s.MakeSafe(token)
	if err != nil {
		panic(err)
	}
	return instance
}

// MakeSafe is like Make but returns an error instead of panicking.
func (s *Scope) MakeSafe(token any) (any, error) {
	t, err := typeOf(token)
	if err != nil {
		return nil, err
	}
	return s.Resolve(t)
}

// CreateScope creates a child scope. Installers register bindings that only
// the child and its descendants can see. The parent is not affected and keeps
// its own cached instances.
//
// Example:
//
//	child, err := scope.CreateScope(func(b *nasc.Builder) {
//	    b.RegisterInstance(request).AsSelf()
//	})
func (s *Scope) CreateScope(installers ...Installer) (*Scope, error) {
	if s.disposed.Load() {
		return nil, ErrScopeDisposed
	}
	b := newChildBuilder(s)
	for _, install := range installers {
		if install != nil {
			install(b)
		}
	}
	return b.buildScope()
}

// Inject populates the `inject` tagged fields of an existing struct pointer.
func (s *Scope) Inject(instance any) error {
	return s.inject(instance, nil)
}

func (s *Scope) inject(instance any, chain *resolutionChain) error {
	if instance == nil {
		return &InvalidBindingError{Reason: "cannot inject into nil instance"}
	}
	if s.disposed.Load() {
		return ErrScopeDisposed
	}
	injector, err := s.settings.injectors.GetOrBuild(reflect.TypeOf(instance))
	if err != nil {
		return err
	}
	return injector.Inject(instance, &chainResolver{scope: s, chain: chain})
}

// Dispose tears down every disposable instance this scope created, in the
// order they were created. Every instance is attempted even when earlier ones
// fail; the failures are returned together. Child scopes are not disposed.
// Calling Dispose more than once is a no-op.
func (s *Scope) Dispose() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	disposables := s.disposables
	s.disposables = nil
	s.mu.Unlock()

	var errs error
	for _, instance := range disposables {
		if err := dispose(instance); err != nil {
			s.logger.Warn("dispose failed",
				zap.String("instance", fmt.Sprintf("%T", instance)),
				zap.Error(err))
			errs = multierr.Append(errs, &DisposalError{Instance: instance, Cause: err})
		}
	}
	s.instances.clear()

	s.logger.Debug("scope disposed",
		zap.Int("instances", len(disposables)),
		zap.Int("failures", len(multierr.Errors(errs))))
	return errs
}

// dispose runs the teardown of one instance, turning a panic into an error.
func dispose(instance any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during dispose: %v", r)
		}
	}()
	switch v := instance.(type) {
	case Disposable:
		return v.Dispose()
	case io.Closer:
		return v.Close()
	}
	return nil
}

func isDisposable(instance any) bool {
	switch instance.(type) {
	case Disposable, io.Closer:
		return true
	}
	return false
}

// resolveType locates the entry for t and resolves it.
func (s *Scope) resolveType(t reflect.Type, chain *resolutionChain) (any, error) {
	entry, err := s.findEntry(t)
	if err != nil {
		s.logger.Debug("resolve failed", zap.Stringer("type", t), zap.Error(err))
		return nil, err
	}
	return s.resolveEntry(entry, chain)
}

// findEntry searches the scope chain for t. Single bindings are taken from the
// nearest scope that has one. Collections are merged from every scope, nearest
// first, until a scope binds the slice type itself. That binding answers when
// the nearer scopes contributed no members.
func (s *Scope) findEntry(t reflect.Type) (registry.Entry, error) {
	var collection *registry.CollectionBuffer
	for scope := s; scope != nil; scope = scope.parent {
		entry, ok := scope.registry.TryGet(t)
		if !ok {
			continue
		}
		multi, isCollection := entry.(*registry.MultiBinding)
		if !isCollection {
			if collection != nil && collection.Len() > 0 {
				break
			}
			return entry, nil
		}
		if collection == nil {
			collection = registry.NewCollectionBuffer(multi.ElementType())
		}
		collection.Append(multi)
	}
	if collection == nil {
		return nil, &NotRegisteredError{Type: t}
	}
	return collection.Build(), nil
}

// resolveEntry dispatches on the entry's lifetime after checking the chain
// for cycles.
func (s *Scope) resolveEntry(e registry.Entry, chain *resolutionChain) (any, error) {
	if e == nil {
		return nil, &InvalidBindingError{Reason: "cannot resolve nil entry"}
	}
	if s.disposed.Load() {
		return nil, ErrScopeDisposed
	}
	if chain.contains(e) {
		err := &CircularDependencyError{Type: e.ImplementationType(), Path: chain.path(e)}
		s.logger.Debug("circular dependency", zap.Error(err))
		return nil, err
	}
	if d := s.settings.diagnostics; d != nil {
		return d.trace(s, e, func() (any, error) {
			return s.resolveLifetime(e, chain)
		})
	}
	return s.resolveLifetime(e, chain)
}

func (s *Scope) resolveLifetime(e registry.Entry, chain *resolutionChain) (any, error) {
	switch e.Lifetime() {
	case LifetimeSingleton:
		owner := s.singletonOwner(e)
		if owner != s && owner.disposed.Load() {
			return nil, ErrScopeDisposed
		}
		return owner.shared(e, chain)
	case LifetimeScoped:
		return s.shared(e, chain)
	default:
		return s.spawn(e, chain)
	}
}

// singletonOwner returns the nearest scope that declared the binding itself.
// A binding inherited from an ancestor is owned by that ancestor, so every
// descendant shares one instance. Bindings that no scope declares are owned by
// the root.
func (s *Scope) singletonOwner(e registry.Entry) *Scope {
	b, ok := e.(*registry.Binding)
	if !ok {
		return s.root
	}
	for scope := s; scope.parent != nil; scope = scope.parent {
		if scope.registry.Exists(b.ImplementationType()) && scope.registry.Contains(b) {
			return scope
		}
	}
	return s.root
}

// shared returns the instance cached in this scope, constructing it exactly
// once. The constructing caller also records it for disposal.
func (s *Scope) shared(e registry.Entry, chain *resolutionChain) (any, error) {
	next := chain.push(e)
	slot, owner := s.instances.acquire(e, next.call)
	if !owner {
		instance, err := slot.waitFor(next.call)
		if errors.Is(err, errWaitCycle) {
			err = &CircularDependencyError{Type: e.ImplementationType(), Path: chain.path(e)}
			s.logger.Debug("circular dependency across resolutions", zap.Error(err))
		}
		return instance, err
	}

	instance, err := s.construct(e, next)
	if err == nil {
		s.track(e, instance)
	}
	s.instances.complete(e, slot, instance, err)
	return instance, err
}

// track records instance for disposal unless it was supplied by the caller.
func (s *Scope) track(e registry.Entry, instance any) {
	if b, ok := e.(*registry.Binding); ok && b.IsInstance() {
		return
	}
	if !isDisposable(instance) {
		return
	}
	s.mu.Lock()
	s.disposables = append(s.disposables, instance)
	s.mu.Unlock()
}

// spawn asks the entry for a new instance with this scope as the resolver.
func (s *Scope) spawn(e registry.Entry, chain *resolutionChain) (any, error) {
	return s.construct(e, chain.push(e))
}

// construct runs the entry's constructor with next, the chain that already
// ends with e.
func (s *Scope) construct(e registry.Entry, next *resolutionChain) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = &ResolutionError{Type: e.ImplementationType(), Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	instance, err = e.SpawnInstance(&chainResolver{scope: s, chain: next})
	if err != nil {
		var resolutionErr *ResolutionError
		if errors.As(err, &resolutionErr) && resolutionErr.Type == e.ImplementationType() {
			return nil, err
		}
		return nil, &ResolutionError{Type: e.ImplementationType(), Cause: err}
	}
	s.logger.Debug("instance created",
		zap.Stringer("type", e.ImplementationType()),
		zap.String("lifetime", e.Lifetime().String()))
	return instance, nil
}

// resolutionChain is the list of entries being constructed by one top-level
// resolve call, newest first. It is never shared between calls, so concurrent
// resolutions of the same type are not mistaken for a cycle.
type resolutionChain struct {
	entry registry.Entry
	prev  *resolutionChain
	call  *resolution
}

// push returns the chain extended with e. Pushing onto an empty chain starts
// a new top-level call.
func (c *resolutionChain) push(e registry.Entry) *resolutionChain {
	if c == nil {
		return &resolutionChain{entry: e, call: &resolution{root: e}}
	}
	return &resolutionChain{entry: e, prev: c, call: c.call}
}

func (c *resolutionChain) contains(e registry.Entry) bool {
	for n := c; n != nil; n = n.prev {
		if n.entry == e {
			return true
		}
	}
	return false
}

// path returns the chain oldest first, ending with e.
func (c *resolutionChain) path(e registry.Entry) []reflect.Type {
	var path []reflect.Type
	for n := c; n != nil; n = n.prev {
		path = append(path, n.entry.ImplementationType())
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return append(path, e.ImplementationType())
}

// chainResolver is the resolver handed to injectors. It carries the chain of
// the construction in progress.
type chainResolver struct {
	scope *Scope
	chain *resolutionChain
}

func (c *chainResolver) Resolve(t reflect.Type) (any, error) {
	if t == nil {
		return nil, &InvalidBindingError{Reason: "cannot resolve nil type"}
	}
	return c.scope.resolveType(t, c.chain)
}

func (c *chainResolver) ResolveEntry(e registry.Entry) (any, error) {
	return c.scope.resolveEntry(e, c.chain)
}

func (c *chainResolver) CreateScope(installers ...Installer) (*Scope, error) {
	return c.scope.CreateScope(installers...)
}

func (c *chainResolver) Inject(instance any) error {
	return c.scope.inject(instance, c.chain)
}
