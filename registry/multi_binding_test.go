package registry

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMultiBinding(t *testing.T) {
	a := bind(implType, LifetimeTransient, interfaceType)
	b := bind(secondType, LifetimeSingleton, interfaceType)

	mb, err := NewMultiBinding(interfaceType, a, b)
	require.NoError(t, err)

	assert.Equal(t, 2, mb.Len())
	assert.Equal(t, interfaceType, mb.ElementType())
	assert.Equal(t, reflect.SliceOf(interfaceType), mb.ImplementationType())
	assert.Equal(t, []reflect.Type{reflect.SliceOf(interfaceType)}, mb.ContractTypes())
	assert.Equal(t, LifetimeTransient, mb.Lifetime())
}

func TestNewMultiBinding_DuplicateImplementation(t *testing.T) {
	a := bind(implType, LifetimeTransient, interfaceType)
	b := bind(implType, LifetimeSingleton, interfaceType)

	_, err := NewMultiBinding(interfaceType, a, b)

	var conflict *ConflictingRegistrationError
	assert.ErrorAs(t, err, &conflict)
}

func TestMultiBinding_MembersIsACopy(t *testing.T) {
	a := bind(implType, LifetimeTransient, interfaceType)
	mb, err := NewMultiBinding(interfaceType, a)
	require.NoError(t, err)

	members := mb.Members()
	members[0] = nil
	assert.Same(t, a, mb.Members()[0])
}

func TestMultiBinding_Merge(t *testing.T) {
	near := bind(implType, LifetimeTransient, interfaceType)
	farDuplicate := bind(implType, LifetimeSingleton, interfaceType)
	far := bind(secondType, LifetimeTransient, interfaceType)

	left, err := NewMultiBinding(interfaceType, near)
	require.NoError(t, err)
	right, err := NewMultiBinding(interfaceType, farDuplicate, far)
	require.NoError(t, err)

	merged := left.Merge(right)

	assert.Equal(t, []*Binding{near, far}, merged.Members())
	assert.Equal(t, 1, left.Len(), "receiver is not modified")
	assert.Equal(t, 2, right.Len(), "argument is not modified")
}

func TestMultiBinding_SpawnInstance(t *testing.T) {
	a := bind(implType, LifetimeTransient, interfaceType)
	b := bind(secondType, LifetimeTransient, interfaceType)
	reg, err := Build(a, b)
	require.NoError(t, err)

	entry, ok := reg.TryGet(reflect.SliceOf(interfaceType))
	require.True(t, ok)

	instance, err := entry.SpawnInstance(&directResolver{reg: reg})
	require.NoError(t, err)

	items, ok := instance.([]testInterface)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.IsType(t, &testImplementation{}, items[0])
	assert.IsType(t, &secondImplementation{}, items[1])
}

func TestMultiBinding_SpawnEmpty(t *testing.T) {
	mb, err := NewMultiBinding(interfaceType)
	require.NoError(t, err)

	instance, err := mb.SpawnInstance(&directResolver{})
	require.NoError(t, err)
	assert.Equal(t, []testInterface{}, instance)
}

type failingInjector struct{}

func (failingInjector) CreateInstance(Resolver) (any, error) { return nil, errors.New("boom") }
func (failingInjector) Inject(any, Resolver) error         { return nil }
func (failingInjector) Dependencies() []reflect.Type         { return nil }

func TestMultiBinding_SpawnFailure(t *testing.T) {
	ok := bind(implType, LifetimeTransient, interfaceType)
	broken := NewBinding(secondType, []reflect.Type{interfaceType}, LifetimeTransient, failingInjector{})

	mb, err := NewMultiBinding(interfaceType, ok, broken)
	require.NoError(t, err)

	instance, err := mb.SpawnInstance(&directResolver{})
	assert.Nil(t, instance)
	assert.EqualError(t, err, "boom")
}

func TestCollectionBuffer_EarlierAppendsShadowLater(t *testing.T) {
	near := bind(implType, LifetimeScoped, interfaceType)
	far := bind(implType, LifetimeSingleton, interfaceType)
	other := bind(secondType, LifetimeSingleton, interfaceType)

	nearMB, err := NewMultiBinding(interfaceType, near)
	require.NoError(t, err)
	farMB, err := NewMultiBinding(interfaceType, far, other)
	require.NoError(t, err)

	buf := NewCollectionBuffer(interfaceType)
	buf.Append(nearMB)
	buf.Append(nil)
	buf.Append(farMB)

	assert.Equal(t, 2, buf.Len())
	assert.Equal(t, []*Binding{near, other}, buf.Build().Members())
}
