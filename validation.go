package nasc

import (
	"reflect"

	"github.com/toutaio/toutago-nasc-resolver/registry"
)

// graphNode is a binding together with the scope its dependencies are
// resolved from. A singleton resolves from the scope that owns it, anything
// else from the scope that asked for it.
type graphNode struct {
	binding *registry.Binding
	scope   *Scope
}

// graphValidator walks the dependency graph of a freshly built scope.
type graphValidator struct {
	strict   bool
	visiting map[graphNode]bool
	visited  map[graphNode]bool
	path     []reflect.Type
	errs     []error
}

// validateScope checks the bindings declared by scope. The first cycle found
// is always reported; missing dependencies only when strict is set.
func validateScope(scope *Scope, strict bool) error {
	v := &graphValidator{
		strict:   strict,
		visiting: make(map[graphNode]bool),
		visited:  make(map[graphNode]bool),
	}

	for _, b := range scope.registry.Bindings() {
		node := graphNode{binding: b, scope: scope}
		if b.Lifetime() == LifetimeSingleton {
			node.scope = scope.singletonOwner(b)
		}
		if err := v.visit(node); err != nil {
			v.errs = append(v.errs, err)
			break
		}
	}

	if len(v.errs) > 0 {
		return &ValidationError{Errors: v.errs}
	}
	return nil
}

// visit performs a depth-first search from node. It returns a cycle error as
// soon as one is found; missing dependencies are collected and the search
// continues.
func (v *graphValidator) visit(node graphNode) error {
	if v.visited[node] {
		return nil
	}
	impl := node.binding.ImplementationType()
	if v.visiting[node] {
		return &CircularDependencyError{Type: impl, Path: v.cyclePath(impl)}
	}

	v.visiting[node] = true
	v.path = append(v.path, impl)

	injector := node.binding.Injector()
	if injector != nil {
		for _, dep := range injector.Dependencies() {
			if satisfiedByParameter(node.binding, dep) {
				continue
			}
			entry, err := node.scope.findEntry(dep)
			if err != nil {
				if v.strict {
					v.errs = append(v.errs, &ResolutionError{Type: impl, Cause: err})
				}
				continue
			}
			for _, target := range entryBindings(entry) {
				next := graphNode{binding: target, scope: node.scope}
				if target.Lifetime() == LifetimeSingleton {
					next.scope = node.scope.singletonOwner(target)
				}
				if err := v.visit(next); err != nil {
					return err
				}
			}
		}
	}

	v.path = v.path[:len(v.path)-1]
	v.visiting[node] = false
	v.visited[node] = true
	return nil
}

// cyclePath returns the part of the current path that starts at impl, with
// impl repeated at the end.
func (v *graphValidator) cyclePath(impl reflect.Type) []reflect.Type {
	start := 0
	for i, t := range v.path {
		if t == impl {
			start = i
			break
		}
	}
	cycle := append([]reflect.Type(nil), v.path[start:]...)
	return append(cycle, impl)
}

func satisfiedByParameter(b *registry.Binding, dep reflect.Type) bool {
	for _, p := range b.Parameters() {
		if p.Matches(dep) {
			return true
		}
	}
	return false
}

func entryBindings(e registry.Entry) []*registry.Binding {
	switch entry := e.(type) {
	case *registry.Binding:
		return []*registry.Binding{entry}
	case *registry.MultiBinding:
		return entry.Members()
	}
	return nil
}
