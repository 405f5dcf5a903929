// Package nasc provides a scoped dependency resolution engine for Go.
//
// Nasc (Old Irish: "Link" or "Bond") resolves instances by type from a tree of
// immutable scopes. Each scope owns a registry of bindings built once by a
// Builder, caches the instances its lifetimes call for and disposes what it
// created when it is torn down.
//
// # Features
//
//   - Type-keyed bindings, one implementation bound under many contracts
//   - Transient, Singleton and Scoped lifetimes
//   - Collections: every implementation of a contract resolved as []Contract,
//     merged across the scope chain
//   - Constructor, field, factory and instance injection
//   - Child scopes with their own registrations
//   - Circular dependency detection at build time and while resolving
//   - Ordered, best-effort disposal
//   - Service providers for modular configuration
//   - Structured logging with zap and Prometheus diagnostics
//
// # Quick Start
//
// Register services and build a root scope:
//
//	b := nasc.NewBuilder()
//	b.Register(NewConsoleLogger, nasc.LifetimeSingleton).As((*Logger)(nil))
//	root, err := b.Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer root.Dispose()
//
//	logger := root.Make((*Logger)(nil)).(Logger)
//	// or, with generics:
//	logger, err := nasc.Resolve[Logger](root)
//
// # Lifetimes
//
// Transient - New instance each time, never tracked:
//
//	b.Register(NewRequestID, nasc.LifetimeTransient)
//
// Singleton - One instance shared by the declaring scope and its descendants:
//
//	b.Register(NewMemoryCache, nasc.LifetimeSingleton).As((*Cache)(nil))
//
// Scoped - One instance per scope that resolves it:
//
//	b.Register(NewUnitOfWork, nasc.LifetimeScoped)
//
//	scope, _ := root.CreateScope()
//	defer scope.Dispose()
//	uow, _ := nasc.Resolve[*UnitOfWork](scope)
//
// # Collections
//
// Binding several implementations under one contract makes them resolvable
// together. A single lookup returns the last registration:
//
//	b.Register(NewConsoleLogger, nasc.LifetimeSingleton).As((*Logger)(nil))
//	b.Register(NewFileLogger, nasc.LifetimeSingleton).As((*Logger)(nil))
//
//	loggers, _ := nasc.Resolve[[]Logger](root) // both, in registration order
//
// # Field Injection
//
// Exported fields tagged `inject` are populated after construction:
//
//	type UserService struct {
//	    DB     Database `inject:""`
//	    Cache  Cache    `inject:"optional"`
//	}
//
//	b.RegisterType(&UserService{}, nasc.LifetimeSingleton)
//
// # Service Providers
//
// Organize registrations in reusable modules:
//
//	type DatabaseProvider struct{}
//
//	func (p *DatabaseProvider) Register(b *nasc.Builder) error {
//	    b.Register(NewPostgresDB, nasc.LifetimeSingleton).As((*Database)(nil))
//	    return nil
//	}
//
//	b.RegisterProvider(&DatabaseProvider{})
//
// # Error Handling
//
// Safe resolution with error checking:
//
//	service, err := scope.MakeSafe((*Service)(nil))
//	var notRegistered *nasc.NotRegisteredError
//	if errors.As(err, &notRegistered) {
//	    log.Printf("%v is not registered", notRegistered.Type)
//	}
//
// # Thread Safety
//
// Resolving and disposing are safe for concurrent use. Builders are not.
package nasc
