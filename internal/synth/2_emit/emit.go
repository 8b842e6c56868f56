// Package emit synthesizes unit plans: forwarding proxies, method selectors and one-shot method callers.
package emit

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/toejough/weavetest/fault"
	introspect "github.com/toejough/weavetest/internal/synth/0_introspect"
	"github.com/toejough/weavetest/unit"
)

// Field names and the internal setter name shared by every emitted unit.
const (
	CallbackField = "callback"
	DelegateField = "delegate"
	DoCall        = "DoCall"
	SetterName    = "weavetest__bind"
	TargetField   = "target"
)

// SelectionFunc receives the identity and arguments of an operation invoked on a selector. Its results
// and error become the operation's.
type SelectionFunc func(sig unit.Signature, args []reflect.Value) ([]reflect.Value, error)

// Shape is what every emission starts from: the unit name, a base type and a capability set.
type Shape struct {
	Name         string
	Base         reflect.Type
	Capabilities []reflect.Type
}

// Target is the resolved operation a caller invokes.
type Target struct {
	Type      reflect.Type
	Signature unit.Signature
}

// Forwarding emits a unit whose public operations forward to the bound delegate.
func Forwarding(shape Shape) *unit.Unit {
	base, capabilities := applyCapabilityRule(shape, proxyMarkerType)
	u := newUnit(shape.Name, base, capabilities, unit.MarkerProxy, DelegateField, anyType)

	for _, sig := range introspect.PublicMethods(base, capabilities) {
		u.Operations = append(u.Operations, &unit.Operation{
			Signature: sig,
			Kind:      unit.BodyForward,
			Body:      forward(sig),
		})
	}

	return u
}

// Invoking emits a caller unit with a single DoCall operation performing one hard-coded invocation of
// target on the bound target instance.
func Invoking(shape Shape, target Target) *unit.Unit {
	base, capabilities := applyCapabilityRule(shape, callerMarkerType)
	u := newUnit(shape.Name, base, capabilities, unit.MarkerCaller, TargetField, anyType)

	u.Operations = append(u.Operations, &unit.Operation{
		Signature: unit.Signature{Name: DoCall, In: []reflect.Type{anySliceType}, Out: target.Signature.Out},
		Kind:      unit.BodyInvoke,
		Body:      invoke,
		Site: &unit.CallSite{
			Field:      TargetField,
			TargetType: target.Type,
			Target:     target.Signature,
			Invoke:     call,
		},
	})

	return u
}

// Selecting emits a unit whose public operations report their invocation to the bound SelectionFunc
// instead of running anything.
func Selecting(shape Shape) *unit.Unit {
	base, capabilities := applyCapabilityRule(shape, selectorMarkerType)
	u := newUnit(shape.Name, base, capabilities, unit.MarkerSelector, CallbackField, selectionFuncType)

	for _, sig := range introspect.PublicMethods(base, capabilities) {
		u.Operations = append(u.Operations, &unit.Operation{
			Signature: sig,
			Kind:      unit.BodyReportSelection,
			Body:      report(sig),
		})
	}

	return u
}

// unexported functions.

// applyCapabilityRule moves an interface base into the capability set, replacing it with the object root,
// and always adds the purpose marker.
func applyCapabilityRule(shape Shape, marker reflect.Type) (reflect.Type, []reflect.Type) {
	base := shape.Base
	capabilities := make([]reflect.Type, 0, len(shape.Capabilities)+2) //nolint:mnd // base + marker

	if base == nil || base.Kind() == reflect.Interface {
		if base != nil && base != marker {
			capabilities = append(capabilities, base)
		}

		base = objectType
	}

	for _, capability := range shape.Capabilities {
		if capability != marker && !slices.Contains(capabilities, capability) {
			capabilities = append(capabilities, capability)
		}
	}

	return base, append(capabilities, marker)
}

// call is the plain call site: one dispatch of the target signature.
func call(frame unit.Frame, target reflect.Value, args []reflect.Value) ([]reflect.Value, error) {
	return unit.Dispatch(target, frame.Op.Site.Target, args)
}

func forward(sig unit.Signature) unit.Body {
	return func(frame unit.Frame, args []reflect.Value) ([]reflect.Value, error) {
		return unit.Dispatch(frame.Self.Field(DelegateField), sig, args)
	}
}

// invoke unpacks the positional arguments against the target parameter types and runs the call site.
// A panic raised past the call site is carried in a *fault.TargetError.
func invoke(frame unit.Frame, args []reflect.Value) ([]reflect.Value, error) {
	site := frame.Op.Site

	raw, _ := args[0].Interface().([]any)

	in, err := unit.ToValues(raw, site.Target.In)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", site.Target.Name, err)
	}

	return invokeSite(frame, frame.Self.Field(site.Field), in)
}

func invokeSite(frame unit.Frame, target reflect.Value, in []reflect.Value) (results []reflect.Value, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			results = nil
			err = &fault.TargetError{Op: frame.Op.Site.Target.Name, Value: recovered}
		}
	}()

	return frame.Op.Site.Invoke(frame, target, in)
}

func newUnit(
	name string, base reflect.Type, capabilities []reflect.Type, marker unit.Marker, field string, fieldType reflect.Type,
) *unit.Unit {
	return &unit.Unit{
		Name:         name,
		Base:         base,
		Capabilities: capabilities,
		Marker:       marker,
		Fields:       []unit.Field{{Name: field, Type: fieldType}},
		Operations: []*unit.Operation{{
			Signature: unit.Signature{Name: SetterName, In: []reflect.Type{fieldType}},
			Kind:      unit.BodySetter,
			Internal:  true,
			Field:     field,
			Body:      set(field),
		}},
	}
}

func report(sig unit.Signature) unit.Body {
	return func(frame unit.Frame, args []reflect.Value) ([]reflect.Value, error) {
		callback, _ := frame.Self.Field(CallbackField).Interface().(SelectionFunc)
		if callback == nil {
			return nil, fault.New(fault.ErrEngine, nil, "selector "+frame.Self.GeneratedUnit().Name+" has no callback", nil)
		}

		return callback(sig, args)
	}
}

func set(field string) unit.Body {
	return func(frame unit.Frame, args []reflect.Value) ([]reflect.Value, error) {
		value := args[0]
		if value.Kind() == reflect.Interface {
			value = value.Elem()
		}

		frame.Self.SetField(field, value)

		return nil, nil
	}
}

// unexported variables.
var (
	//nolint:gochecknoglobals // reflected type constants
	anySliceType = reflect.TypeFor[[]any]()
	//nolint:gochecknoglobals // reflected type constants
	anyType = reflect.TypeFor[any]()
	//nolint:gochecknoglobals // reflected type constants
	callerMarkerType = reflect.TypeFor[unit.MethodCaller]()
	//nolint:gochecknoglobals // reflected type constants
	objectType = reflect.TypeFor[unit.Object]()
	//nolint:gochecknoglobals // reflected type constants
	proxyMarkerType = reflect.TypeFor[unit.ForwardingProxy]()
	//nolint:gochecknoglobals // reflected type constants
	selectionFuncType = reflect.TypeFor[SelectionFunc]()
	//nolint:gochecknoglobals // reflected type constants
	selectorMarkerType = reflect.TypeFor[unit.MethodSelector]()
)
