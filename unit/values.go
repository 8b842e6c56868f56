package unit

import (
	"fmt"
	"reflect"

	"github.com/toejough/weavetest/fault"
)

// FromValues unpacks reflected values into plain values. Invalid values become nil.
func FromValues(values []reflect.Value) []any {
	plain := make([]any, len(values))

	for i, value := range values {
		if value.IsValid() && value.CanInterface() {
			plain[i] = value.Interface()
		}
	}

	return plain
}

// ToValues converts positional arguments to values of exactly the given types. Arity and type mismatches
// are reported as fault.ErrArgumentMismatch; nothing is coerced. A variadic parameter takes its slice as
// one positional argument.
func ToValues(args []any, types []reflect.Type) ([]reflect.Value, error) {
	if len(args) != len(types) {
		return nil, arityMismatch(len(types), len(args))
	}

	values := make([]reflect.Value, len(args))

	for i, arg := range args {
		value, err := toValue(arg, types[i])
		if err != nil {
			return nil, fault.New(fault.ErrArgumentMismatch, types[i], fmt.Sprintf("argument %d", i), err)
		}

		values[i] = value
	}

	return values, nil
}

// unexported functions.

func arityMismatch(want, got int) error {
	return fault.New(fault.ErrArgumentMismatch, nil,
		fmt.Sprintf("the number of arguments (%d) doesn't match the signature (%d)", got, want), nil)
}

func isNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return true
	default:
		return false
	}
}

func toValue(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		if !isNilable(t) {
			//nolint:err113 // dynamic context
			return reflect.Value{}, fmt.Errorf("nil is not a valid %v", t)
		}

		return reflect.Zero(t), nil
	}

	value := reflect.ValueOf(arg)
	if !value.Type().AssignableTo(t) {
		//nolint:err113 // dynamic context
		return reflect.Value{}, fmt.Errorf("%v is not assignable to %v", value.Type(), t)
	}

	typed := reflect.New(t).Elem()
	typed.Set(value)

	return typed, nil
}
