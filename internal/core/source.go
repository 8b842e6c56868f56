package core

import (
	"reflect"

	"github.com/toejough/weavetest/fault"
	introspect "github.com/toejough/weavetest/internal/synth/0_introspect"
	"github.com/toejough/weavetest/unit"
	"github.com/toejough/weavetest/weaver"
)

// CallContext is the per-test aggregate of rule configuration and call source. Rules are registered on
// its weaver as they are added.
type CallContext struct {
	weaver weaver.Weaver
	source CallSource
}

// NewCallContext returns a context with no call source over w. A nil w weaves nothing.
func NewCallContext(w weaver.Weaver) *CallContext {
	if w == nil {
		w = weaver.NoWeaving{}
	}

	return &CallContext{weaver: w}
}

// From sets the call source, replacing any previous one.
func (c *CallContext) From(source CallSource) *CallContext {
	c.source = source

	return c
}

// FromType sets an ExistingSource for t as the call source.
func (c *CallContext) FromType(t reflect.Type) (*CallContext, error) {
	source, err := NewExistingSource(t)
	if err != nil {
		return c, err
	}

	return c.From(source), nil
}

// Source is the configured call source, or nil when calls come from the default caller.
func (c *CallContext) Source() CallSource {
	return c.source
}

// Weaver is the weaver rules are registered on and callers are transformed by.
func (c *CallContext) Weaver() weaver.Weaver {
	return c.weaver
}

// WithRule registers a rule type on the context's weaver. Rules accumulate.
func (c *CallContext) WithRule(t reflect.Type) (*CallContext, error) {
	err := c.weaver.RegisterRule(t)
	if err != nil {
		return c, err
	}

	return c, nil
}

// CallSource is the identity a simulated call comes from.
type CallSource interface {
	Name() string
	Type() reflect.Type
}

// ExistingSource is a call source backed by a real type.
type ExistingSource struct {
	t reflect.Type
}

// NewExistingSource validates t as a source type: it must be extensible.
func NewExistingSource(t reflect.Type) (*ExistingSource, error) {
	if !introspect.IsExtensible(t) || introspect.IsPrimitive(t) {
		return nil, fault.New(fault.ErrUnsupportedSourceType, t, "source type must be a named struct or interface", nil)
	}

	return &ExistingSource{t: t}, nil
}

// Name is the package-qualified name of the type.
func (s *ExistingSource) Name() string {
	return introspect.FullName(s.t)
}

// Type is the source type.
func (s *ExistingSource) Type() reflect.Type {
	return s.t
}

// FictitiousSource is a call source with an arbitrary name. Its type defaults to unit.MethodCaller.
type FictitiousSource struct {
	name string
	t    reflect.Type
}

// NewFictitiousSource names a fictitious source.
func NewFictitiousSource(name string) *FictitiousSource {
	return &FictitiousSource{name: name, t: methodCallerType}
}

// Extending sets the type the source is-a and returns the same source.
func (s *FictitiousSource) Extending(t reflect.Type) *FictitiousSource {
	s.t = t

	return s
}

// Implementing is Extending.
func (s *FictitiousSource) Implementing(t reflect.Type) *FictitiousSource {
	return s.Extending(t)
}

// Name is the name given at construction.
func (s *FictitiousSource) Name() string {
	return s.name
}

// Type is the type set by Extending, or unit.MethodCaller.
func (s *FictitiousSource) Type() reflect.Type {
	return s.t
}

// unexported variables.
var (
	//nolint:gochecknoglobals // reflected type constants
	methodCallerType = reflect.TypeFor[unit.MethodCaller]()
)
