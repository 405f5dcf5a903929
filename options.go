package nasc

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Option configures a Builder and the scopes it produces.
type Option func(*settings) error

// settings are shared by a root scope and every scope created under it.
type settings struct {
	logger      *zap.Logger
	validation  bool
	diagnostics *Diagnostics
	injectors   *InjectorCache
}

func newSettings(options ...Option) (*settings, error) {
	s := &settings{
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.injectors == nil {
		s.injectors = NewInjectorCache()
	}
	return s, nil
}

// WithLogger sets the logger used for build, scope and disposal events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithDebug logs every build, scope and resolution event to a development
// logger at debug level.
func WithDebug() Option {
	return func(s *settings) error {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("create debug logger: %w", err)
		}
		s.logger = logger.Named("nasc")
		return nil
	}
}

// WithValidation enables strict validation: Build fails when a dependency
// declared by an injector is not registered anywhere in the scope chain.
func WithValidation() Option {
	return func(s *settings) error {
		s.validation = true
		return nil
	}
}

// WithDiagnostics records resolution statistics into d.
func WithDiagnostics(d *Diagnostics) Option {
	return func(s *settings) error {
		if d == nil {
			return errors.New("diagnostics cannot be nil")
		}
		s.diagnostics = d
		return nil
	}
}

// WithInjectorCache shares an injector cache between builders.
func WithInjectorCache(c *InjectorCache) Option {
	return func(s *settings) error {
		if c == nil {
			return errors.New("injector cache cannot be nil")
		}
		s.injectors = c
		return nil
	}
}
