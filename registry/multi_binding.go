package registry

import (
	"reflect"
)

// MultiBinding groups every binding registered for one contract type and
// resolves them together as a slice of that type.
type MultiBinding struct {
	elementType reflect.Type
	members     []*Binding
}

// NewMultiBinding creates a collection for elem with the given members in order.
// Two members with the same implementation type are a conflict.
func NewMultiBinding(elem reflect.Type, members ...*Binding) (*MultiBinding, error) {
	buf := NewCollectionBuffer(elem)
	for _, m := range members {
		if err := buf.add(m); err != nil {
			return nil, err
		}
	}
	return buf.Build(), nil
}

// ElementType returns the contract type shared by the members.
func (m *MultiBinding) ElementType() reflect.Type { return m.elementType }

// ImplementationType returns the slice type the collection materializes as.
func (m *MultiBinding) ImplementationType() reflect.Type { return reflect.SliceOf(m.elementType) }

// ContractTypes returns the slice type the collection is looked up by.
func (m *MultiBinding) ContractTypes() []reflect.Type {
	return []reflect.Type{reflect.SliceOf(m.elementType)}
}

// Lifetime is always transient: the slice is rebuilt on every resolution while
// each member keeps its own lifetime.
func (m *MultiBinding) Lifetime() Lifetime { return LifetimeTransient }

// Members returns a copy of the member bindings in order.
func (m *MultiBinding) Members() []*Binding {
	out := make([]*Binding, len(m.members))
	copy(out, m.members)
	return out
}

// Len returns the number of members.
func (m *MultiBinding) Len() int { return len(m.members) }

// Merge returns a new collection holding the receiver's members followed by
// the members of other whose implementation type is not present yet.
// Neither operand is modified.
func (m *MultiBinding) Merge(other *MultiBinding) *MultiBinding {
	buf := NewCollectionBuffer(m.elementType)
	buf.Append(m)
	buf.Append(other)
	return buf.Build()
}

// SpawnInstance resolves every member in order into a new slice.
func (m *MultiBinding) SpawnInstance(r Resolver) (any, error) {
	out := reflect.MakeSlice(reflect.SliceOf(m.elementType), len(m.members), len(m.members))
	for i, member := range m.members {
		instance, err := r.ResolveEntry(member)
		if err != nil {
			return nil, err
		}
		if instance == nil {
			continue
		}
		v := reflect.ValueOf(instance)
		if !v.Type().AssignableTo(m.elementType) {
			return nil, &InvalidContractError{Implementation: v.Type(), Contract: m.elementType}
		}
		out.Index(i).Set(v)
	}
	return out.Interface(), nil
}

// CollectionBuffer accumulates members while collections found at several
// levels are combined. Only Build publishes an immutable MultiBinding.
type CollectionBuffer struct {
	elementType reflect.Type
	members     []*Binding
	seen        map[reflect.Type]bool
}

// NewCollectionBuffer creates an empty buffer for elem.
func NewCollectionBuffer(elem reflect.Type) *CollectionBuffer {
	return &CollectionBuffer{
		elementType: elem,
		seen:        make(map[reflect.Type]bool),
	}
}

// Append adds the members of mb after the ones already buffered. Members whose
// implementation type is already buffered are skipped, so earlier appends
// shadow later ones.
func (c *CollectionBuffer) Append(mb *MultiBinding) {
	if mb == nil {
		return
	}
	for _, member := range mb.members {
		c.addShadowed(member)
	}
}

// Len returns the number of buffered members.
func (c *CollectionBuffer) Len() int { return len(c.members) }

// Build publishes the buffered members as a MultiBinding.
func (c *CollectionBuffer) Build() *MultiBinding {
	members := make([]*Binding, len(c.members))
	copy(members, c.members)
	return &MultiBinding{elementType: c.elementType, members: members}
}

// add buffers b, failing when its implementation type is already buffered.
func (c *CollectionBuffer) add(b *Binding) error {
	if c.seen[b.implementationType] {
		return &ConflictingRegistrationError{Implementation: b.implementationType, Contract: c.elementType}
	}
	c.addShadowed(b)
	return nil
}

// addShadowed buffers b unless its implementation type is already buffered.
func (c *CollectionBuffer) addShadowed(b *Binding) {
	if c.seen[b.implementationType] {
		return
	}
	c.seen[b.implementationType] = true
	c.members = append(c.members, b)
}
