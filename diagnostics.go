package nasc

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/toutaio/toutago-nasc-resolver/registry"
)

// Diagnostics records how often each entry is resolved, how often that fails
// and how long it takes. Counters are exported to Prometheus; Stats returns an
// in-memory snapshot.
//
// Example:
//
//	d, err := nasc.NewDiagnostics(prometheus.DefaultRegisterer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	b := nasc.NewBuilder(nasc.WithDiagnostics(d))
type Diagnostics struct {
	resolutions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec

	mu    sync.Mutex
	stats map[reflect.Type]*ResolveStats
}

// ResolveStats summarizes the resolutions of one entry.
type ResolveStats struct {
	Type        reflect.Type
	Lifetime    Lifetime
	Resolutions int
	Failures    int
	Total       time.Duration
	LastScope   string
	LastError   error
}

// Average returns the mean resolve time.
func (s ResolveStats) Average() time.Duration {
	if s.Resolutions == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Resolutions)
}

// NewDiagnostics creates diagnostics and registers its collectors with reg.
// A nil registerer keeps the collectors unregistered.
func NewDiagnostics(reg prometheus.Registerer) (*Diagnostics, error) {
	labels := []string{"type", "lifetime"}
	d := &Diagnostics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nasc",
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Number of resolve calls per entry.",
		}, labels),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nasc",
			Subsystem: "resolver",
			Name:      "failures_total",
			Help:      "Number of failed resolve calls per entry.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nasc",
			Subsystem: "resolver",
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving an entry, dependencies included.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, labels),
		stats: make(map[reflect.Type]*ResolveStats),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{d.resolutions, d.failures, d.duration} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("failed to register diagnostics collector: %w", err)
			}
		}
	}
	return d, nil
}

// trace runs fn and records its outcome for e.
func (d *Diagnostics) trace(s *Scope, e registry.Entry, fn func() (any, error)) (any, error) {
	start := time.Now()
	instance, err := fn()
	elapsed := time.Since(start)

	t := e.ImplementationType()
	lifetime := e.Lifetime()
	values := []string{t.String(), lifetime.String()}

	d.resolutions.WithLabelValues(values...).Inc()
	d.duration.WithLabelValues(values...).Observe(elapsed.Seconds())
	if err != nil {
		d.failures.WithLabelValues(values...).Inc()
	}

	d.mu.Lock()
	stat, ok := d.stats[t]
	if !ok {
		stat = &ResolveStats{Type: t, Lifetime: lifetime}
		d.stats[t] = stat
	}
	stat.Resolutions++
	stat.Total += elapsed
	stat.LastScope = s.ID()
	if err != nil {
		stat.Failures++
		stat.LastError = err
	}
	d.mu.Unlock()

	return instance, err
}

// Stats returns a snapshot of the recorded statistics ordered by type name.
func (d *Diagnostics) Stats() []ResolveStats {
	d.mu.Lock()
	out := make([]ResolveStats, 0, len(d.stats))
	for _, stat := range d.stats {
		out = append(out, *stat)
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Type.String() < out[j].Type.String()
	})
	return out
}

// StatsFor returns the statistics of t, if it was ever resolved.
func (d *Diagnostics) StatsFor(t reflect.Type) (ResolveStats, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	stat, ok := d.stats[t]
	if !ok {
		return ResolveStats{}, false
	}
	return *stat, true
}

// Reset drops the in-memory statistics and the exported series.
func (d *Diagnostics) Reset() {
	d.resolutions.Reset()
	d.failures.Reset()
	d.duration.Reset()

	d.mu.Lock()
	d.stats = make(map[reflect.Type]*ResolveStats)
	d.mu.Unlock()
}
