package core

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/toejough/weavetest/fault"
	introspect "github.com/toejough/weavetest/internal/synth/0_introspect"
	naming "github.com/toejough/weavetest/internal/synth/1_naming"
	"github.com/toejough/weavetest/unit"
)

// CallTarget is a validated {instance, operation, parameter types} triple. It is immutable once built.
type CallTarget struct {
	instance any
	method   reflect.Value
	sig      unit.Signature
}

// NewCallTarget resolves the exported operation name of instance whose parameter types are exactly
// argTypes. It fails with fault.ErrInvalidCallTarget for a nil instance, fault.ErrNotPubliclyCallable when
// the operation exists but can't be called on this instance, and fault.ErrTargetNotFound otherwise.
//
// Reflection can't see unexported methods, so naming one gives fault.ErrTargetNotFound, not
// fault.ErrNotPubliclyCallable. Only a pointer-receiver method on a non-pointer instance, or an internal
// operation of a generated unit, is reported as not publicly callable.
func NewCallTarget(instance any, name string, argTypes ...reflect.Type) (*CallTarget, error) {
	if isNil(instance) {
		return nil, fault.New(fault.ErrInvalidCallTarget, nil, "nil instance", nil)
	}

	if generated, ok := instance.(methodProvider); ok {
		return generatedTarget(generated, name, argTypes)
	}

	value := reflect.ValueOf(instance)

	method, found := value.Type().MethodByName(name)
	if found && method.IsExported() {
		sig := unit.SignatureOf(name, method.Type, true)
		if sig.SameParams(argTypes) {
			return &CallTarget{instance: instance, method: value.Method(method.Index), sig: sig}, nil
		}
	}

	if value.Kind() != reflect.Pointer {
		method, found = reflect.PointerTo(value.Type()).MethodByName(name)
		if found && unit.SignatureOf(name, method.Type, true).SameParams(argTypes) {
			return nil, fault.New(fault.ErrNotPubliclyCallable, value.Type(),
				fmt.Sprintf("%s has a pointer receiver and the instance is not a pointer", describe(name, argTypes)), nil)
		}
	}

	return nil, fault.New(fault.ErrTargetNotFound, value.Type(), describe(name, argTypes), nil)
}

// ClassName is the name the target's type is known by in generated caller names: the unit name without
// its package qualifier for generated instances, the simple type name otherwise.
func (c *CallTarget) ClassName() string {
	if generated, ok := c.instance.(unit.Generated); ok {
		return unqualified(generated.GeneratedUnit().Name)
	}

	return introspect.SimpleName(c.Type())
}

// Instance is the target instance.
func (c *CallTarget) Instance() any {
	return c.instance
}

// Method is the resolved operation bound to the instance.
func (c *CallTarget) Method() reflect.Value {
	return c.method
}

// MethodName is the operation name.
func (c *CallTarget) MethodName() string {
	return c.sig.Name
}

// ParamTypes are the ordered parameter types.
func (c *CallTarget) ParamTypes() []reflect.Type {
	return slices.Clone(c.sig.In)
}

// ResultTypes are the ordered result types.
func (c *CallTarget) ResultTypes() []reflect.Type {
	return slices.Clone(c.sig.Out)
}

// Signature is a copy of the resolved operation's signature.
func (c *CallTarget) Signature() unit.Signature {
	sig := c.sig
	sig.In = slices.Clone(sig.In)
	sig.Out = slices.Clone(sig.Out)

	return sig
}

// String is e.g. "ConcreteTarget.RetInt() int".
func (c *CallTarget) String() string {
	return c.ClassName() + "." + c.sig.String()
}

// Type is the instance's own runtime type.
func (c *CallTarget) Type() reflect.Type {
	return reflect.TypeOf(c.instance)
}

// methodProvider is implemented by materialized units.
type methodProvider interface {
	unit.Generated

	Method(name string) (reflect.Value, bool)
}

// unexported functions.

func describe(name string, argTypes []reflect.Type) string {
	return unit.Signature{Name: name, In: argTypes}.String()
}

func generatedTarget(generated methodProvider, name string, argTypes []reflect.Type) (*CallTarget, error) {
	u := generated.GeneratedUnit()

	op := u.Operation(name)
	if op == nil || !op.SameParams(argTypes) {
		return nil, fault.New(fault.ErrTargetNotFound, u.Base, u.Name+": "+describe(name, argTypes), nil)
	}

	if op.Internal {
		return nil, fault.New(fault.ErrNotPubliclyCallable, u.Base,
			u.Name+": "+describe(name, argTypes)+" is internal", nil)
	}

	method, _ := generated.Method(name)

	return &CallTarget{instance: generated, method: method, sig: op.Signature}, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	value := reflect.ValueOf(v)

	switch value.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return value.IsNil()
	default:
		return false
	}
}

// unqualified drops the package qualifier from a unit name. Only the part before the first delimiter can
// carry one.
func unqualified(name string) string {
	head, _, _ := strings.Cut(name, naming.Delimiter)
	if i := strings.LastIndex(head, "."); i >= 0 {
		return name[i+1:]
	}

	return name
}
