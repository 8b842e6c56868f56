// Package unit models a generated unit: an in-memory plan for a new type (base, capabilities, fields and
// operations with tagged bodies) that the engine emits, hands to a weaver, and finally materializes into a
// dispatch-table backed instance.
package unit

import (
	"reflect"
	"slices"
	"strings"

	"github.com/toejough/weavetest/fault"
)

// BodyKind classifies what an operation body does.
type BodyKind int

// BodyKind values.
const (
	BodyForward BodyKind = iota
	BodyReportSelection
	BodyInvoke
	BodySetter
)

// Marker identifies the purpose of a unit.
type Marker int

// Marker values.
const (
	MarkerNone Marker = iota
	MarkerProxy
	MarkerSelector
	MarkerCaller
)

// Body runs an operation. Panics raised by forwarded or invoked code propagate unmodified unless the body
// itself recovers them.
type Body func(frame Frame, args []reflect.Value) ([]reflect.Value, error)

// CallSite is the single hard-coded invocation inside an invoking operation. Weavers may replace Invoke to
// advise the call.
type CallSite struct {
	Field      string
	TargetType reflect.Type
	Target     Signature
	Invoke     Invocation
}

// Field is a declared field of a unit.
type Field struct {
	Name string
	Type reflect.Type
}

// ForwardingProxy is the marker capability of forwarding proxies.
type ForwardingProxy interface {
	isForwardingProxy()
}

// Frame is what an operation body sees: the executing instance and the operation being run.
type Frame struct {
	Self Self
	Op   *Operation
}

// Generated is implemented by every instance materialized from a unit.
type Generated interface {
	GeneratedUnit() *Unit
}

// Invocation performs a call from a call site to target.
type Invocation func(frame Frame, target reflect.Value, args []reflect.Value) ([]reflect.Value, error)

// MethodCaller is the marker capability of generated callers, and the default call source type.
type MethodCaller interface {
	DoCall(args []any) ([]any, error)
}

// MethodSelector is the marker capability of selectors.
type MethodSelector interface {
	isMethodSelector()
}

// Object is the generic object root. It is never classified as generated.
type Object struct{}

// Operation is one declared operation of a unit.
type Operation struct {
	Signature

	Kind     BodyKind
	Internal bool
	Body     Body
	Field    string // written by setter operations
	Site     *CallSite
	Advice   []string
}

// Sealed marks a type that must not be used as the base of a generated unit.
type Sealed interface {
	Sealed()
}

// Self is the view an operation body has of the instance it runs on.
type Self interface {
	Generated

	Field(name string) reflect.Value
	Invoke(name string, args ...any) ([]any, error)
	SetField(name string, value reflect.Value)
}

// Signature identifies an operation: name plus ordered parameter and result types.
type Signature struct {
	Name     string
	In       []reflect.Type
	Out      []reflect.Type
	Variadic bool
}

// SignatureOf builds a signature from a method's func type, skipping the receiver when the type has one.
func SignatureOf(name string, fn reflect.Type, hasReceiver bool) Signature {
	sig := Signature{Name: name, Variadic: fn.IsVariadic()}

	start := 0
	if hasReceiver {
		start = 1
	}

	for i := start; i < fn.NumIn(); i++ {
		sig.In = append(sig.In, fn.In(i))
	}

	for i := range fn.NumOut() {
		sig.Out = append(sig.Out, fn.Out(i))
	}

	return sig
}

// FuncType is the func type of the signature, without receiver.
func (s Signature) FuncType() reflect.Type {
	return reflect.FuncOf(s.In, s.Out, s.Variadic)
}

// SameParams reports whether the parameter types are identical, in order.
func (s Signature) SameParams(types []reflect.Type) bool {
	return slices.Equal(s.In, types)
}

// String renders the signature as Go source, e.g. "RetInt() int".
func (s Signature) String() string {
	return s.Name + strings.TrimPrefix(s.FuncType().String(), "func")
}

// Unit is an emission plan for a new type.
type Unit struct {
	Name         string
	Base         reflect.Type
	Capabilities []reflect.Type
	Marker       Marker
	Fields       []Field
	Operations   []*Operation
}

// Clone deep-copies the plan. Bodies and invocations are shared function values; the slices and
// operations are fresh, so a weaver can rewrap them without touching the original.
func (u *Unit) Clone() *Unit {
	clone := &Unit{
		Name:         u.Name,
		Base:         u.Base,
		Capabilities: slices.Clone(u.Capabilities),
		Marker:       u.Marker,
		Fields:       slices.Clone(u.Fields),
		Operations:   make([]*Operation, 0, len(u.Operations)),
	}

	for _, op := range u.Operations {
		opCopy := *op
		opCopy.In = slices.Clone(op.In)
		opCopy.Out = slices.Clone(op.Out)
		opCopy.Advice = slices.Clone(op.Advice)

		if op.Site != nil {
			site := *op.Site
			opCopy.Site = &site
		}

		clone.Operations = append(clone.Operations, &opCopy)
	}

	return clone
}

// Is reports whether instances of the unit are-a t: t is the base, one of the capabilities, or an
// interface implemented by either.
func (u *Unit) Is(t reflect.Type) bool {
	if t == nil {
		return false
	}

	candidates := append([]reflect.Type{u.Base}, u.Capabilities...)

	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}

		if candidate == t || (candidate.Kind() == reflect.Pointer && candidate.Elem() == t) {
			return true
		}

		if t.Kind() == reflect.Interface && implements(candidate, t) {
			return true
		}
	}

	return false
}

// Operation returns the named operation, or nil.
func (u *Unit) Operation(name string) *Operation {
	for _, op := range u.Operations {
		if op.Name == name {
			return op
		}
	}

	return nil
}

// PublicOperations returns the operations callers may invoke, in declaration order.
func (u *Unit) PublicOperations() []*Operation {
	public := make([]*Operation, 0, len(u.Operations))

	for _, op := range u.Operations {
		if !op.Internal {
			public = append(public, op)
		}
	}

	return public
}

// Setter returns the internal field setter operation, or nil.
func (u *Unit) Setter() *Operation {
	for _, op := range u.Operations {
		if op.Kind == BodySetter {
			return op
		}
	}

	return nil
}

// String is the unit name.
func (u *Unit) String() string {
	return u.Name
}

// Dispatch invokes sig on target. Generated targets are dispatched through their own table; anything else
// through reflection. Panics from the target propagate.
func Dispatch(target reflect.Value, sig Signature, args []reflect.Value) ([]reflect.Value, error) {
	if !target.IsValid() {
		return nil, fault.New(fault.ErrEngine, nil, "dispatch "+sig.Name+": no target", nil)
	}

	if target.CanInterface() {
		if self, ok := target.Interface().(Self); ok {
			results, err := self.Invoke(sig.Name, FromValues(args)...)
			if err != nil {
				return nil, err
			}

			return ToValues(results, sig.Out)
		}
	}

	method := target.MethodByName(sig.Name)
	if !method.IsValid() {
		return nil, fault.New(fault.ErrTargetNotFound, target.Type(),
			"dispatch "+sig.Name+": has no such method", nil)
	}

	if sig.Variadic {
		return method.CallSlice(args), nil
	}

	return method.Call(args), nil
}

// implements reports whether t, or a pointer to it, implements iface.
func implements(t, iface reflect.Type) bool {
	if t.Implements(iface) {
		return true
	}

	return t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface && reflect.PointerTo(t).Implements(iface)
}
