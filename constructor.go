package nasc

import (
	"fmt"
	"reflect"

	"github.com/toutaio/toutago-nasc-resolver/registry"
)

// ConstructorFunc represents a constructor function type.
// Supported signatures:
//   - func() *T
//   - func() (*T, error)
//   - func(Dep1) *T
//   - func(Dep1, Dep2, ...) (*T, error)
//
// Parameters may be of any registered type, including collections ([]I).
type ConstructorFunc interface{}

var errorInterface = reflect.TypeOf((*error)(nil)).Elem()

// constructorInfo holds metadata about a constructor function.
type constructorInfo struct {
	fn           reflect.Value
	paramTypes   []reflect.Type
	returnsError bool
	returnType   reflect.Type
}

// parseConstructor analyzes a constructor function and extracts metadata.
func parseConstructor(constructor ConstructorFunc) (*constructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	fnValue := reflect.ValueOf(constructor)
	fnType := fnValue.Type()

	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %v", fnType.Kind())
	}
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("constructor must not be variadic")
	}

	numOut := fnType.NumOut()
	if numOut == 0 || numOut > 2 {
		return nil, fmt.Errorf("constructor must return (T) or (T, error), got %d return values", numOut)
	}

	returnsError := false
	if numOut == 2 {
		if !fnType.Out(1).Implements(errorInterface) {
			return nil, fmt.Errorf("constructor's second return value must be error, got %v", fnType.Out(1))
		}
		returnsError = true
	}

	paramTypes := make([]reflect.Type, fnType.NumIn())
	for i := range paramTypes {
		paramTypes[i] = fnType.In(i)
	}

	return &constructorInfo{
		fn:           fnValue,
		paramTypes:   paramTypes,
		returnsError: returnsError,
		returnType:   fnType.Out(0),
	}, nil
}

// constructorInjector calls a constructor with resolved parameters, then
// fills any tagged fields of the returned struct.
type constructorInjector struct {
	info   *constructorInfo
	fields []fieldInfo
}

func newConstructorInjector(info *constructorInfo, cache *InjectorCache) (*constructorInjector, error) {
	injector := &constructorInjector{info: info}
	t := info.returnType
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		fields, err := cache.fieldsOf(t.Elem())
		if err != nil {
			return nil, err
		}
		injector.fields = fields
	}
	return injector, nil
}

func (c *constructorInjector) CreateInstance(r registry.Resolver) (any, error) {
	params := make([]reflect.Value, len(c.info.paramTypes))
	for i, paramType := range c.info.paramTypes {
		resolved, err := r.Resolve(paramType)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parameter %d (%v): %w", i, paramType, err)
		}
		if resolved == nil {
			params[i] = reflect.Zero(paramType)
			continue
		}
		params[i] = reflect.ValueOf(resolved)
		if !params[i].Type().AssignableTo(paramType) {
			return nil, fmt.Errorf("resolved type %v is not assignable to parameter %d (%v)", params[i].Type(), i, paramType)
		}
	}

	results := c.info.fn.Call(params)

	if c.info.returnsError {
		if errValue := results[1]; !errValue.IsNil() {
			return nil, fmt.Errorf("constructor returned error: %w", errValue.Interface().(error))
		}
	}

	result := results[0]
	if len(c.fields) > 0 && !result.IsNil() {
		if err := injectFields(result.Elem(), c.fields, r); err != nil {
			return nil, err
		}
	}

	instance := result.Interface()
	if err := initialize(instance); err != nil {
		return nil, err
	}
	return instance, nil
}

func (c *constructorInjector) Inject(instance any, r registry.Resolver) error {
	if len(c.fields) == 0 {
		return nil
	}
	value := reflect.ValueOf(instance)
	if value.Type() != c.info.returnType || value.IsNil() {
		return fmt.Errorf("injector for %v cannot populate %T", c.info.returnType, instance)
	}
	return injectFields(value.Elem(), c.fields, r)
}

func (c *constructorInjector) Dependencies() []reflect.Type {
	deps := make([]reflect.Type, 0, len(c.info.paramTypes)+len(c.fields))
	deps = append(deps, c.info.paramTypes...)
	return append(deps, fieldDependencies(c.fields)...)
}
