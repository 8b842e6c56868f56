package core

import (
	"errors"
	"reflect"

	"github.com/toejough/weavetest/fault"
	materialize "github.com/toejough/weavetest/internal/synth/3_materialize"
	"github.com/toejough/weavetest/unit"
)

// Call returns a selector over delegate. Invoking an operation on the selector performs exactly one real
// call of that operation on delegate, made by a caller generated from ctx's call source, so rules keyed
// on the caller's identity apply. The operation returns what the target returned. A panic raised by the
// target is returned as the selector operation's error, unwrapped to its cause.
func (f *Factory) Call(delegate any, declared []reflect.Type, ctx *CallContext) (*materialize.Instance, error) {
	return f.GenerateSelector(delegate, declared, func(sig unit.Signature, args []reflect.Value) ([]reflect.Value, error) {
		results, err := f.simulate(delegate, sig, args, ctx)
		if err != nil {
			return nil, translate(err, "simulated call of "+sig.Name)
		}

		return results, nil
	})
}

func (f *Factory) simulate(
	delegate any, sig unit.Signature, args []reflect.Value, ctx *CallContext,
) ([]reflect.Value, error) {
	target, err := NewCallTarget(delegate, sig.Name, sig.In...)
	if err != nil {
		return nil, err
	}

	caller, err := f.GenerateCaller(target, ctx)
	if err != nil {
		return nil, err
	}

	results, err := caller.DoCall(unit.FromValues(args))
	if err != nil {
		return nil, err
	}

	return unit.ToValues(results, sig.Out)
}

// translate unwraps a target panic to its cause, passes taxonomy errors through, and wraps anything
// else once in fault.ErrEngine.
func translate(err error, msg string) error {
	var targetErr *fault.TargetError
	if errors.As(err, &targetErr) {
		return targetErr.Cause()
	}

	return fault.Wrap(err, msg)
}
