package nasc

import "github.com/toutaio/toutago-nasc-resolver/registry"

// Lifetime represents the sharing policy of a bound dependency.
type Lifetime = registry.Lifetime

const (
	// LifetimeTransient creates a new instance on every resolution.
	// Transient instances are owned by the caller and never disposed by a scope.
	LifetimeTransient = registry.LifetimeTransient

	// LifetimeSingleton creates a single instance in the scope that declared the
	// binding. Top-level registrations therefore live in the root scope and are
	// shared by every descendant.
	LifetimeSingleton = registry.LifetimeSingleton

	// LifetimeScoped creates one instance per scope.
	// Each scope maintains its own instance cache, isolated from other scopes.
	LifetimeScoped = registry.LifetimeScoped
)
