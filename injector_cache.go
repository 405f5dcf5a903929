package nasc

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/toutaio/toutago-nasc-resolver/registry"
)

// InjectorCache caches field injection plans per struct type so the struct
// tags of a type are analysed only once.
//
// A cache is usually created once at startup and shared by every builder with
// WithInjectorCache. Reset drops all plans, which keeps tests independent.
type InjectorCache struct {
	mu sync.RWMutex

	fields    map[reflect.Type][]fieldInfo
	injectors map[reflect.Type]registry.Injector
}

// fieldInfo stores metadata about a struct field tagged for injection.
type fieldInfo struct {
	index   int
	name    string
	typ     reflect.Type
	options tagOptions
}

// NewInjectorCache creates an empty injector cache.
func NewInjectorCache() *InjectorCache {
	return &InjectorCache{
		fields:    make(map[reflect.Type][]fieldInfo),
		injectors: make(map[reflect.Type]registry.Injector),
	}
}

// GetOrBuild returns the field injector for t, which must be a pointer to a
// struct. The injector is built on first use and reused afterwards.
func (c *InjectorCache) GetOrBuild(t reflect.Type) (registry.Injector, error) {
	c.mu.RLock()
	injector, exists := c.injectors[t]
	c.mu.RUnlock()

	if exists {
		return injector, nil
	}

	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("field injection requires a pointer to struct, got %v", t)
	}

	fields, err := c.fieldsOf(t.Elem())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have won the race.
	if injector, exists = c.injectors[t]; exists {
		return injector, nil
	}
	injector = &fieldInjector{typ: t, fields: fields}
	c.injectors[t] = injector
	return injector, nil
}

// fieldsOf retrieves or computes the injectable fields of a struct type.
func (c *InjectorCache) fieldsOf(structType reflect.Type) ([]fieldInfo, error) {
	c.mu.RLock()
	fields, exists := c.fields[structType]
	c.mu.RUnlock()

	if exists {
		return fields, nil
	}

	numFields := structType.NumField()
	fields = make([]fieldInfo, 0, numFields)

	for i := 0; i < numFields; i++ {
		field := structType.Field(i)

		tag, hasInjectTag := field.Tag.Lookup("inject")
		if !hasInjectTag {
			continue
		}
		opts := parseInjectTag(tag)
		if opts.skip {
			continue
		}
		if field.PkgPath != "" {
			return nil, fmt.Errorf("field %s.%s is tagged for injection but not exported", structType, field.Name)
		}

		fields = append(fields, fieldInfo{
			index:   i,
			name:    field.Name,
			typ:     field.Type,
			options: opts,
		})
	}

	c.mu.Lock()
	c.fields[structType] = fields
	c.mu.Unlock()

	return fields, nil
}

// Len returns the number of cached injectors.
func (c *InjectorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.injectors)
}

// Reset clears all cached plans.
func (c *InjectorCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fields = make(map[reflect.Type][]fieldInfo)
	c.injectors = make(map[reflect.Type]registry.Injector)
}
