package httpscope

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nasc "github.com/toutaio/toutago-nasc-resolver"
)

type requestLog struct {
	mu       sync.Mutex
	disposed []string
}

func (l *requestLog) add(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disposed = append(l.disposed, path)
}

func (l *requestLog) entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.disposed...)
}

// unitOfWork lives for one request.
type unitOfWork struct {
	Request *http.Request `inject:""`
	log     *requestLog
}

func (u *unitOfWork) Dispose() error {
	u.log.add(u.Request.URL.Path)
	return nil
}

type userHandler struct {
	Work *unitOfWork `inject:""`
}

func (h *userHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(chi.URLParam(r, "id") + " " + h.Work.Request.Method))
}

func newRoot(t *testing.T, log *requestLog) *nasc.Scope {
	t.Helper()
	b := nasc.NewBuilder()
	nasc.RegisterFactory(b, func(r nasc.Resolver) (*unitOfWork, error) {
		work := &unitOfWork{log: log}
		if err := r.Inject(work); err != nil {
			return nil, err
		}
		return work, nil
	}, nasc.LifetimeScoped)
	b.RegisterType(&userHandler{}, nasc.LifetimeTransient)

	root, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Dispose() })
	return root
}

func TestMiddleware_RequestScope(t *testing.T) {
	log := &requestLog{}
	root := newRoot(t, log)

	var scopes []*nasc.Scope
	r := chi.NewRouter()
	r.Use(Middleware(root))
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		scope := MustFromContext(r.Context())
		scopes = append(scopes, scope)
		assert.Same(t, root, scope.Parent())

		handler, err := nasc.Resolve[*userHandler](scope)
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		work, err := nasc.Resolve[*unitOfWork](scope)
		require.NoError(t, err)
		assert.Same(t, handler.Work, work, "one unit of work per request")

		handler.ServeHTTP(w, r)
	})

	for _, path := range []string{"/users/1", "/users/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	require.Len(t, scopes, 2)
	assert.NotEqual(t, scopes[0].ID(), scopes[1].ID())
	for _, scope := range scopes {
		assert.True(t, scope.IsDisposed())
	}
	assert.Equal(t, []string{"/users/1", "/users/2"}, log.entries())
	assert.False(t, root.IsDisposed())
}

func TestMiddleware_ResponseBody(t *testing.T) {
	root := newRoot(t, &requestLog{})

	r := chi.NewRouter()
	r.Use(Middleware(root))
	r.Post("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		nasc.MustResolve[*userHandler](MustFromContext(r.Context())).ServeHTTP(w, r)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42 POST", rec.Body.String())
}

type requestID string

func TestMiddleware_WithInstallers(t *testing.T) {
	root := newRoot(t, &requestLog{})

	r := chi.NewRouter()
	r.Use(Middleware(root, WithInstallers(func(r *http.Request) []nasc.Installer {
		return []nasc.Installer{func(b *nasc.Builder) {
			b.RegisterInstance(requestID(r.Header.Get("X-Request-ID")))
		}}
	})))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		id := nasc.MustResolve[requestID](MustFromContext(r.Context()))
		_, _ = w.Write([]byte(id))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Body.String())
}

func TestMiddleware_ScopeCreationFails(t *testing.T) {
	root := newRoot(t, &requestLog{})
	called := false

	handler := Middleware(root, WithInstallers(func(*http.Request) []nasc.Installer {
		return []nasc.Installer{func(b *nasc.Builder) {
			b.RegisterInstance(nil)
		}}
	}))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMiddleware_CustomErrorHandler(t *testing.T) {
	root := newRoot(t, &requestLog{})
	require.NoError(t, root.Dispose())

	var got error
	handler := Middleware(root, WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusServiceUnavailable)
	}))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, errors.Is(got, nasc.ErrScopeDisposed))
}

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	assert.PanicsWithValue(t, "httpscope: no scope in context", func() {
		MustFromContext(context.Background())
	})

	root := newRoot(t, &requestLog{})
	scope, ok := FromContext(WithScope(context.Background(), root))
	assert.True(t, ok)
	assert.Same(t, root, scope)

	_, ok = FromContext(WithScope(context.Background(), nil))
	assert.False(t, ok)
}
