package nasc

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectorCache_GetOrBuild(t *testing.T) {
	cache := NewInjectorCache()
	typ := reflect.TypeOf(&ServiceWithDeps{})

	first, err := cache.GetOrBuild(typ)
	require.NoError(t, err)
	second, err := cache.GetOrBuild(typ)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, []reflect.Type{TypeOf[Logger](), TypeOf[Database]()}, first.Dependencies())
}

func TestInjectorCache_RejectsNonStructPointers(t *testing.T) {
	cache := NewInjectorCache()

	for _, typ := range []reflect.Type{
		reflect.TypeOf(ServiceWithDeps{}),
		reflect.TypeOf(0),
		reflect.TypeOf(new(int)),
		TypeOf[Logger](),
	} {
		_, err := cache.GetOrBuild(typ)
		assert.ErrorContains(t, err, "requires a pointer to struct", typ.String())
	}
	assert.Equal(t, 0, cache.Len())
}

func TestInjectorCache_UnexportedTaggedField(t *testing.T) {
	cache := NewInjectorCache()

	_, err := cache.GetOrBuild(reflect.TypeOf(&ServiceUnexported{}))
	assert.EqualError(t, err,
		"field nasc.ServiceUnexported.logger is tagged for injection but not exported")
}

func TestInjectorCache_Reset(t *testing.T) {
	cache := NewInjectorCache()

	_, err := cache.GetOrBuild(reflect.TypeOf(&ServiceWithDeps{}))
	require.NoError(t, err)
	_, err = cache.GetOrBuild(reflect.TypeOf(&ServiceNoTags{}))
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	cache.Reset()
	assert.Equal(t, 0, cache.Len())
}

func TestInjectorCache_Concurrent(t *testing.T) {
	cache := NewInjectorCache()
	typ := reflect.TypeOf(&ServiceWithOptional{})

	var wg sync.WaitGroup
	injectors := make([]Injector, 20)
	for i := range injectors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			injector, err := cache.GetOrBuild(typ)
			assert.NoError(t, err)
			injectors[i] = injector
		}(i)
	}
	wg.Wait()

	for _, injector := range injectors[1:] {
		assert.Same(t, injectors[0], injector)
	}
	assert.Equal(t, 1, cache.Len())
}
