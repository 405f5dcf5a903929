package registry

import "fmt"

// Lifetime represents the sharing policy of a bound dependency.
type Lifetime string

const (
	// LifetimeTransient creates a new instance on every resolution.
	LifetimeTransient Lifetime = "transient"

	// LifetimeSingleton creates one instance owned by the scope that declared
	// the binding (the root scope for top-level registrations).
	LifetimeSingleton Lifetime = "singleton"

	// LifetimeScoped creates one instance per scope.
	LifetimeScoped Lifetime = "scoped"
)

// String returns the string representation of the lifetime.
func (l Lifetime) String() string {
	return string(l)
}

// Valid reports whether l is one of the known lifetimes.
func (l Lifetime) Valid() bool {
	switch l {
	case LifetimeTransient, LifetimeSingleton, LifetimeScoped:
		return true
	default:
		return false
	}
}

// ParseLifetime converts a configuration string into a Lifetime.
func ParseLifetime(s string) (Lifetime, error) {
	l := Lifetime(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown lifetime %q", s)
	}
	return l, nil
}
