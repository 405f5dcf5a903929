package nasc

import (
	"errors"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue reads one series of a counter family from reg.
func counterValue(t *testing.T, reg *prometheus.Registry, name, typeLabel string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "type" && label.GetValue() == typeLabel {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestDiagnostics_CountsResolutions(t *testing.T) {
	reg := prometheus.NewRegistry()
	d, err := NewDiagnostics(reg)
	require.NoError(t, err)

	scope := build(t, func(b *Builder) {
		b.Register(NewConsoleLogger, LifetimeSingleton).As((*Logger)(nil))
		b.Register(NewMockDB, LifetimeTransient).As((*Database)(nil))
		b.Register(NewUserService, LifetimeTransient)
	}, WithDiagnostics(d))

	for i := 0; i < 3; i++ {
		_, err := Resolve[*UserService](scope)
		require.NoError(t, err)
	}

	assert.Equal(t, 3.0, counterValue(t, reg, "nasc_resolver_resolutions_total", "*nasc.UserService"))
	assert.Equal(t, 3.0, counterValue(t, reg, "nasc_resolver_resolutions_total", "*nasc.ConsoleLogger"),
		"dependencies are traced too, cached or not")
	assert.Equal(t, 0.0, counterValue(t, reg, "nasc_resolver_failures_total", "*nasc.UserService"))

	stat, ok := d.StatsFor(reflect.TypeOf(&UserService{}))
	require.True(t, ok)
	assert.Equal(t, 3, stat.Resolutions)
	assert.Equal(t, 0, stat.Failures)
	assert.Equal(t, LifetimeTransient, stat.Lifetime)
	assert.Equal(t, scope.ID(), stat.LastScope)
	assert.Equal(t, stat.Total/3, stat.Average())
}

func TestDiagnostics_CountsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	d, err := NewDiagnostics(reg)
	require.NoError(t, err)

	scope := build(t, func(b *Builder) {
		RegisterFactory(b, func(Resolver) (*MockDB, error) {
			return nil, errors.New("connection refused")
		}, LifetimeScoped)
	}, WithDiagnostics(d))

	_, err = Resolve[*MockDB](scope)
	require.Error(t, err)

	assert.Equal(t, 1.0, counterValue(t, reg, "nasc_resolver_failures_total", "*nasc.MockDB"))

	stat, ok := d.StatsFor(reflect.TypeOf(&MockDB{}))
	require.True(t, ok)
	assert.Equal(t, 1, stat.Failures)
	assert.ErrorContains(t, stat.LastError, "connection refused")
}

func TestDiagnostics_StatsSortedAndReset(t *testing.T) {
	d, err := NewDiagnostics(nil)
	require.NoError(t, err)

	scope := build(t, func(b *Builder) {
		b.Register(NewMockDB, LifetimeSingleton).As((*Database)(nil))
		b.Register(NewConsoleLogger, LifetimeSingleton).As((*Logger)(nil))
	}, WithDiagnostics(d))

	_, err = Resolve[Database](scope)
	require.NoError(t, err)
	_, err = Resolve[Logger](scope)
	require.NoError(t, err)

	stats := d.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, reflect.TypeOf(&ConsoleLogger{}), stats[0].Type)
	assert.Equal(t, reflect.TypeOf(&MockDB{}), stats[1].Type)

	d.Reset()
	assert.Empty(t, d.Stats())
	_, ok := d.StatsFor(reflect.TypeOf(&MockDB{}))
	assert.False(t, ok)
}

func TestDiagnostics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewDiagnostics(reg)
	require.NoError(t, err)

	_, err = NewDiagnostics(reg)
	assert.ErrorContains(t, err, "failed to register diagnostics collector")

	var already prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &already)
}

func TestWithDiagnostics_Nil(t *testing.T) {
	assert.Panics(t, func() { NewBuilder(WithDiagnostics(nil)) })
}

func TestResolveStats_AverageWithoutResolutions(t *testing.T) {
	assert.Zero(t, ResolveStats{}.Average())
}
