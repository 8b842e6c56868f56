package core

import (
	"reflect"

	"github.com/toejough/weavetest/fault"
	introspect "github.com/toejough/weavetest/internal/synth/0_introspect"
	emit "github.com/toejough/weavetest/internal/synth/2_emit"
	materialize "github.com/toejough/weavetest/internal/synth/3_materialize"
	"github.com/toejough/weavetest/weaver"
)

// GenerateSelector builds a selector over template: each of its operations reports the invocation to
// onSelect instead of running. Selectors are not woven.
func (f *Factory) GenerateSelector(
	template any, declared []reflect.Type, onSelect emit.SelectionFunc,
) (*materialize.Instance, error) {
	if err := checkInstance(template, "template"); err != nil {
		return nil, err
	}

	base := introspect.ResolveBase(template)
	if introspect.IsPrimitive(base) || !introspect.IsExtensible(base) {
		return nil, fault.New(fault.ErrUncallableType, base, "cannot be the base of a selector", nil)
	}

	if err := checkDeclared(template, declared, fault.ErrUncallableType); err != nil {
		return nil, err
	}

	capabilities := introspect.Capabilities(template, declared...)
	name := f.names.Allocate(introspect.FullName(base), f.tags.Selector, typeKey(base, capabilities))
	raw := emit.Selecting(emit.Shape{Name: name, Base: base, Capabilities: capabilities})

	inst, err := f.build(name, raw, weaver.NoWeaving{}, onSelect)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("selector created", "unit", name, "instance", inst.ID())

	return inst, nil
}
