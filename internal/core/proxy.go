package core

import (
	"fmt"
	"reflect"

	"github.com/toejough/weavetest/fault"
	introspect "github.com/toejough/weavetest/internal/synth/0_introspect"
	emit "github.com/toejough/weavetest/internal/synth/2_emit"
	materialize "github.com/toejough/weavetest/internal/synth/3_materialize"
	"github.com/toejough/weavetest/weaver"
)

// CreateForwardingProxy builds a proxy over delegate whose operations forward to it unchanged, after
// passing the proxy unit through w. declared adds capability interfaces the delegate is known by.
func (f *Factory) CreateForwardingProxy(delegate any, declared []reflect.Type, w weaver.Weaver) (*materialize.Instance, error) {
	if err := checkInstance(delegate, "delegate"); err != nil {
		return nil, err
	}

	base := introspect.ResolveBase(delegate)
	if introspect.IsPrimitive(base) || !introspect.IsExtensible(base) {
		return nil, fault.New(fault.ErrUnproxiableType, base, "cannot be the base of a proxy", nil)
	}

	if err := checkDeclared(delegate, declared, fault.ErrUnproxiableType); err != nil {
		return nil, err
	}

	capabilities := introspect.Capabilities(delegate, declared...)
	name := f.names.Allocate(introspect.FullName(base), f.tags.Proxy, typeKey(base, capabilities))
	raw := emit.Forwarding(emit.Shape{Name: name, Base: base, Capabilities: capabilities})

	inst, err := f.build(name, raw, w, delegate)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("proxy created", "unit", name, "instance", inst.ID(), "delegate", fmt.Sprintf("%T", delegate))

	return inst, nil
}
