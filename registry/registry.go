// Package registry provides the immutable storage and lookup of dependency bindings.
package registry

import (
	"fmt"
	"reflect"

	"go.uber.org/multierr"
)

// Registry maps type identities to bindings or collections of bindings.
// A Registry is built once and never mutated afterwards, so lookups need no
// locking.
type Registry struct {
	entries         map[reflect.Type]Entry
	implementations map[reflect.Type]struct{}
	bindings        map[*Binding]struct{}
	ordered         []*Binding
}

// Build validates the bindings and produces a Registry.
//
// Every binding is stored under each of its contract types, or under its
// implementation type when it has none. When several bindings share a type,
// the single lookup returns the last one registered and the slice of that type
// resolves all of them in registration order.
//
// Build reports every problem it finds:
//   - InvalidContractError when an implementation is not assignable to a contract
//   - ConflictingRegistrationError when an implementation is bound twice under
//     the same contract
func Build(bindings ...*Binding) (*Registry, error) {
	r := &Registry{
		entries:         make(map[reflect.Type]Entry, len(bindings)*2),
		implementations: make(map[reflect.Type]struct{}, len(bindings)),
		bindings:        make(map[*Binding]struct{}, len(bindings)),
		ordered:         make([]*Binding, 0, len(bindings)),
	}

	var errs error
	collections := make(map[reflect.Type]*CollectionBuffer)
	var collectionOrder []reflect.Type

	for _, b := range bindings {
		if b == nil {
			errs = multierr.Append(errs, fmt.Errorf("binding cannot be nil"))
			continue
		}
		if b.implementationType == nil {
			errs = multierr.Append(errs, fmt.Errorf("binding has no implementation type"))
			continue
		}
		if !b.lifetime.Valid() {
			errs = multierr.Append(errs, fmt.Errorf("binding %v has unknown lifetime %q", b.implementationType, b.lifetime))
			continue
		}

		valid := true
		for _, contract := range b.contractTypes {
			if !b.implementationType.AssignableTo(contract) {
				errs = multierr.Append(errs, &InvalidContractError{Implementation: b.implementationType, Contract: contract})
				valid = false
			}
		}
		if !valid {
			continue
		}

		for _, key := range b.keys() {
			existing, ok := r.entries[key]
			if !ok {
				r.entries[key] = b
				continue
			}
			buf, ok := collections[key]
			if !ok {
				buf = NewCollectionBuffer(key)
				collections[key] = buf
				collectionOrder = append(collectionOrder, key)
				if prev, isBinding := existing.(*Binding); isBinding {
					buf.addShadowed(prev)
				}
			}
			if err := buf.add(b); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			r.entries[key] = b
		}

		r.implementations[b.implementationType] = struct{}{}
		r.bindings[b] = struct{}{}
		r.ordered = append(r.ordered, b)
	}

	if errs != nil {
		return nil, errs
	}

	for _, key := range collectionOrder {
		sliceType := reflect.SliceOf(key)
		if _, explicit := r.entries[sliceType]; explicit {
			continue
		}
		r.entries[sliceType] = collections[key].Build()
	}

	return r, nil
}

// TryGet returns the entry stored for t.
//
// A slice type without an entry of its own resolves as a collection of the
// element's single binding, or as an empty collection, so collections are
// always found.
func (r *Registry) TryGet(t reflect.Type) (Entry, bool) {
	if e, ok := r.entries[t]; ok {
		return e, true
	}
	if t.Kind() != reflect.Slice {
		return nil, false
	}
	elem := t.Elem()
	if single, ok := r.entries[elem].(*Binding); ok {
		return &MultiBinding{elementType: elem, members: []*Binding{single}}, true
	}
	return &MultiBinding{elementType: elem}, true
}

// Exists reports whether any binding in the registry has the given
// implementation type, whatever contracts it is stored under.
func (r *Registry) Exists(impl reflect.Type) bool {
	_, ok := r.implementations[impl]
	return ok
}

// Contains reports whether b was registered in this registry.
func (r *Registry) Contains(b *Binding) bool {
	_, ok := r.bindings[b]
	return ok
}

// Bindings returns the bindings in registration order.
func (r *Registry) Bindings() []*Binding {
	out := make([]*Binding, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of bindings.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// NotRegisteredError is returned when no binding exists for a type.
type NotRegisteredError struct {
	Type reflect.Type
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("no registration for type %v", e.Type)
}

// ConflictingRegistrationError is returned when the same implementation is
// bound twice under one contract.
type ConflictingRegistrationError struct {
	Implementation reflect.Type
	Contract       reflect.Type
}

func (e *ConflictingRegistrationError) Error() string {
	return fmt.Sprintf("conflicting registration: %v is already bound as %v", e.Implementation, e.Contract)
}

// InvalidContractError is returned when an implementation does not satisfy a
// contract it was bound as.
type InvalidContractError struct {
	Implementation reflect.Type
	Contract       reflect.Type
}

func (e *InvalidContractError) Error() string {
	return fmt.Sprintf("invalid contract: %v is not assignable to %v", e.Implementation, e.Contract)
}
