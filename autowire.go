package nasc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/toutaio/toutago-nasc-resolver/registry"
)

// Initializable represents a service that requires initialization.
// Injectors call Initialize once a new instance has been created and
// populated. Fixed instances are never re-initialized.
//
// Example:
//
//	type Service struct {}
//	func (s *Service) Initialize() error {
//	    return s.setup()
//	}
type Initializable interface {
	Initialize() error
}

// tagOptions represents parsed options from an inject tag.
type tagOptions struct {
	skip     bool // Don't inject this field
	optional bool // Leave the field untouched if the type is not registered
}

// parseInjectTag parses an inject struct tag and returns options.
// Supported formats:
//   - `inject:""` - basic injection
//   - `inject:"optional"` - optional injection
//   - `inject:"-"` - never injected
func parseInjectTag(tag string) tagOptions {
	opts := tagOptions{}

	if tag == "-" {
		opts.skip = true
		return opts
	}

	for _, part := range strings.Split(tag, ",") {
		if strings.TrimSpace(part) == "optional" {
			opts.optional = true
		}
	}

	return opts
}

// fieldInjector creates a zero struct and fills its tagged fields.
type fieldInjector struct {
	typ    reflect.Type // pointer to struct
	fields []fieldInfo
}

func (f *fieldInjector) CreateInstance(r registry.Resolver) (any, error) {
	instance := reflect.New(f.typ.Elem())
	if err := injectFields(instance.Elem(), f.fields, r); err != nil {
		return nil, err
	}
	if err := initialize(instance.Interface()); err != nil {
		return nil, err
	}
	return instance.Interface(), nil
}

func (f *fieldInjector) Inject(instance any, r registry.Resolver) error {
	value := reflect.ValueOf(instance)
	if value.Type() != f.typ {
		return fmt.Errorf("injector for %v cannot populate %T", f.typ, instance)
	}
	if value.IsNil() {
		return fmt.Errorf("cannot inject into nil %v", f.typ)
	}
	return injectFields(value.Elem(), f.fields, r)
}

func (f *fieldInjector) Dependencies() []reflect.Type {
	return fieldDependencies(f.fields)
}

// injectFields resolves and sets each tagged field of structValue.
func injectFields(structValue reflect.Value, fields []fieldInfo, r registry.Resolver) error {
	for _, field := range fields {
		if err := injectField(structValue.Field(field.index), field, r); err != nil {
			return fmt.Errorf("failed to inject field %s: %w", field.name, err)
		}
	}
	return nil
}

// injectField injects a single field.
func injectField(fieldValue reflect.Value, field fieldInfo, r registry.Resolver) error {
	if !fieldValue.CanSet() {
		return fmt.Errorf("field %s is not settable", field.name)
	}

	resolved, err := r.Resolve(field.typ)
	if err != nil {
		var notRegistered *NotRegisteredError
		if field.options.optional && errors.As(err, &notRegistered) && notRegistered.Type == field.typ {
			return nil
		}
		return err
	}

	if resolved == nil {
		fieldValue.Set(reflect.Zero(field.typ))
		return nil
	}

	resolvedValue := reflect.ValueOf(resolved)
	if !resolvedValue.Type().AssignableTo(field.typ) {
		return fmt.Errorf("resolved type %v is not assignable to field type %v",
			resolvedValue.Type(), field.typ)
	}

	fieldValue.Set(resolvedValue)
	return nil
}

// fieldDependencies lists the required field types. Optional fields are left
// out since a missing registration does not fail injection.
func fieldDependencies(fields []fieldInfo) []reflect.Type {
	deps := make([]reflect.Type, 0, len(fields))
	for _, f := range fields {
		if f.options.optional {
			continue
		}
		deps = append(deps, f.typ)
	}
	return deps
}

func initialize(instance any) error {
	if initializable, ok := instance.(Initializable); ok {
		if err := initializable.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize %T: %w", instance, err)
		}
	}
	return nil
}
