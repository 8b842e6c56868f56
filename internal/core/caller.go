package core

import (
	"fmt"

	"github.com/toejough/weavetest/fault"
	introspect "github.com/toejough/weavetest/internal/synth/0_introspect"
	naming "github.com/toejough/weavetest/internal/synth/1_naming"
	emit "github.com/toejough/weavetest/internal/synth/2_emit"
	materialize "github.com/toejough/weavetest/internal/synth/3_materialize"
)

// GenerateCaller builds a caller performing exactly the one invocation described by target, from the
// context's call source (unit.MethodCaller when none is set). The caller unit goes through the context's
// weaver.
func (f *Factory) GenerateCaller(target *CallTarget, ctx *CallContext) (*Caller, error) {
	if target == nil {
		return nil, fault.New(fault.ErrInvalidCallTarget, nil, "nil call target", nil)
	}

	if ctx == nil {
		ctx = NewCallContext(nil)
	}

	sourceType, sourceName := methodCallerType, ""
	if source := ctx.Source(); source != nil {
		sourceType, sourceName = source.Type(), source.Name()
	}

	if introspect.IsPrimitive(sourceType) || !introspect.IsExtensible(sourceType) {
		return nil, fault.New(fault.ErrUnsupportedSourceType, sourceType, "cannot be the base of a caller", nil)
	}

	prefix := naming.SourcePrefix(sourceName, introspect.FullName(methodCallerType))
	description := naming.CallerDescription(f.tags.Caller, target.ClassName(), target.MethodName())
	name := f.names.Allocate(prefix, description, fmt.Sprint(sourceType, target.Type(), target.Signature()))

	raw := emit.Invoking(
		emit.Shape{Name: name, Base: sourceType},
		emit.Target{Type: target.Type(), Signature: target.Signature()},
	)

	inst, err := f.build(name, raw, ctx.Weaver(), target.Instance())
	if err != nil {
		return nil, err
	}

	f.logger.Debug("caller created", "unit", name, "instance", inst.ID(), "target", target.String())

	return &Caller{inst: inst}, nil
}

// Caller is a materialized method caller. It implements unit.MethodCaller.
type Caller struct {
	inst *materialize.Instance
}

// DoCall performs the caller's single invocation with positional args. A panic raised by the target is
// returned as a *fault.TargetError.
func (c *Caller) DoCall(args []any) ([]any, error) {
	return c.inst.Invoke(emit.DoCall, []any{args}...)
}

// Instance is the materialized caller unit.
func (c *Caller) Instance() *materialize.Instance {
	return c.inst
}
