package nasc

import (
	"fmt"
	"reflect"
)

// ServiceProvider is the interface that must be implemented by service providers.
// Service providers encapsulate related service registrations.
//
// Example:
//
//	type LoggingProvider struct{}
//
//	func (p *LoggingProvider) Register(b *nasc.Builder) error {
//	    b.Register(NewConsoleLogger, nasc.LifetimeSingleton).As((*Logger)(nil))
//	    return nil
//	}
type ServiceProvider interface {
	Register(b *Builder) error
}

// BootableProvider is an optional interface for providers that need a boot phase.
// Boot is called with the built scope once every registration is in place.
//
// Example:
//
//	type DatabaseProvider struct{}
//
//	func (p *DatabaseProvider) Register(b *nasc.Builder) error {
//	    b.Register(NewPostgresDB, nasc.LifetimeSingleton).As((*Database)(nil))
//	    return nil
//	}
//
//	func (p *DatabaseProvider) Boot(s *nasc.Scope) error {
//	    db, err := nasc.Resolve[Database](s)
//	    if err != nil {
//	        return err
//	    }
//	    return db.Connect()
//	}
type BootableProvider interface {
	ServiceProvider
	Boot(s *Scope) error
}

// DeferredProvider is an optional interface for providers that should be
// registered conditionally.
//
// Example:
//
//	type CacheProvider struct{ enabled bool }
//
//	func (p *CacheProvider) ShouldRegister(b *nasc.Builder) bool {
//	    return p.enabled
//	}
type DeferredProvider interface {
	ServiceProvider
	ShouldRegister(b *Builder) bool
}

// providerEntry tracks a registered provider.
type providerEntry struct {
	provider ServiceProvider
	booted   bool
}

// RegisterProvider registers a service provider with the builder.
// The provider's Register method is called immediately. A provider of a type
// that was already registered is skipped. Bootable providers are booted by
// Build.
//
// Example:
//
//	b.RegisterProvider(&LoggingProvider{})
//	b.RegisterProvider(&DatabaseProvider{})
//	root, err := b.Build() // boots DatabaseProvider
func (b *Builder) RegisterProvider(provider ServiceProvider) error {
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}

	if deferred, ok := provider.(DeferredProvider); ok {
		if !deferred.ShouldRegister(b) {
			return nil
		}
	}

	providerType := reflect.TypeOf(provider)
	for _, entry := range b.providers {
		if reflect.TypeOf(entry.provider) == providerType {
			return nil
		}
	}

	if err := provider.Register(b); err != nil {
		return fmt.Errorf("provider registration failed: %w", err)
	}

	b.providers = append(b.providers, &providerEntry{provider: provider})
	return nil
}

// Install returns an Installer that registers provider into a child scope.
// Registration errors are reported by CreateScope.
//
// Example:
//
//	child, err := root.CreateScope(nasc.Install(&RequestProvider{}))
func Install(provider ServiceProvider) Installer {
	return func(b *Builder) {
		if err := b.RegisterProvider(provider); err != nil {
			b.fail(err)
		}
	}
}

// bootProviders calls Boot on every bootable provider that has not booted yet.
func (b *Builder) bootProviders(scope *Scope) error {
	for _, entry := range b.providers {
		if entry.booted {
			continue
		}

		if bootable, ok := entry.provider.(BootableProvider); ok {
			if err := bootable.Boot(scope); err != nil {
				return fmt.Errorf("provider boot failed: %w", err)
			}
			entry.booted = true
		}
	}

	return nil
}

// Providers returns a list of all registered providers.
// This is useful for debugging and introspection.
func (b *Builder) Providers() []ServiceProvider {
	providers := make([]ServiceProvider, len(b.providers))
	for i, entry := range b.providers {
		providers[i] = entry.provider
	}
	return providers
}
