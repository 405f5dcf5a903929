// Package httpscope opens a child scope for every HTTP request.
//
// The middleware creates the scope before the handler runs, makes the request
// itself resolvable as *http.Request, stores the scope in the request context
// and disposes it once the handler returns.
//
//	r := chi.NewRouter()
//	r.Use(httpscope.Middleware(root))
//	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
//	    scope := httpscope.MustFromContext(r.Context())
//	    handler, err := nasc.Resolve[*UserHandler](scope)
//	    ...
//	})
package httpscope

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	nasc "github.com/toutaio/toutago-nasc-resolver"
)

type contextKey struct{}

// WithScope returns a copy of ctx carrying scope.
func WithScope(ctx context.Context, scope *nasc.Scope) context.Context {
	return context.WithValue(ctx, contextKey{}, scope)
}

// FromContext returns the scope stored in ctx.
func FromContext(ctx context.Context) (*nasc.Scope, bool) {
	scope, ok := ctx.Value(contextKey{}).(*nasc.Scope)
	return scope, ok && scope != nil
}

// MustFromContext is like FromContext but panics when ctx has no scope.
func MustFromContext(ctx context.Context) *nasc.Scope {
	scope, ok := FromContext(ctx)
	if !ok {
		panic("httpscope: no scope in context")
	}
	return scope
}

// InstallerFunc returns the request specific registrations of a request scope.
type InstallerFunc func(r *http.Request) []nasc.Installer

// ErrorHandler writes the response when the request scope cannot be created.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type config struct {
	installers InstallerFunc
	onError    ErrorHandler
}

// Option configures the middleware.
type Option func(*config)

// WithInstallers adds request specific registrations to every request scope.
func WithInstallers(fn InstallerFunc) Option {
	return func(c *config) {
		c.installers = fn
	}
}

// WithErrorHandler replaces the default 500 response sent when the request
// scope cannot be created.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(c *config) {
		c.onError = fn
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, _ error) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Middleware returns net/http middleware that runs every request in a child
// scope of parent.
func Middleware(parent *nasc.Scope, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{onError: defaultErrorHandler}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			installers := []nasc.Installer{
				func(b *nasc.Builder) {
					b.RegisterInstance(r).AsSelf()
				},
			}
			if cfg.installers != nil {
				installers = append(installers, cfg.installers(r)...)
			}

			scope, err := parent.CreateScope(installers...)
			if err != nil {
				parent.Logger().Error("failed to create request scope",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err))
				cfg.onError(w, r, err)
				return
			}
			defer func() {
				if err := scope.Dispose(); err != nil {
					scope.Logger().Warn("request scope disposal failed", zap.Error(err))
				}
			}()

			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), scope)))
		})
	}
}
