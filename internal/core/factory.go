// Package core synthesizes forwarding proxies, method callers and selectors, and orchestrates simulated
// calls through them.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/toejough/weavetest/fault"
	"github.com/toejough/weavetest/internal/config"
	introspect "github.com/toejough/weavetest/internal/synth/0_introspect"
	naming "github.com/toejough/weavetest/internal/synth/1_naming"
	materialize "github.com/toejough/weavetest/internal/synth/3_materialize"
	"github.com/toejough/weavetest/unit"
	"github.com/toejough/weavetest/weaver"
)

// Factory emits, transforms and materializes generated units. Nothing it produces is cached: every
// request emits a fresh unit, because the transform depends on the weaver's current registrations.
type Factory struct {
	names  *naming.Registry
	tags   config.Tags
	logger *slog.Logger
}

// NewFactory returns a factory with its own naming registry.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		names:  naming.NewRegistry(),
		tags:   config.Default().Tags,
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Names is the naming registry.
func (f *Factory) Names() *naming.Registry {
	return f.names
}

func (f *Factory) build(name string, raw *unit.Unit, w weaver.Weaver, bound any) (*materialize.Instance, error) {
	if w == nil {
		w = weaver.NoWeaving{}
	}

	woven, err := w.Transform(name, raw)
	if err != nil {
		if fault.IsTaxonomy(err) {
			return nil, err
		}

		return nil, fault.New(fault.ErrTransform, raw.Base, "transform "+name, err)
	}

	if woven == nil {
		return nil, fault.New(fault.ErrEngine, raw.Base, "transform "+name+" produced no unit", nil)
	}

	if woven != raw && f.logger.Enabled(context.Background(), slog.LevelDebug) {
		rendered, renderErr := unit.Render(woven)
		f.logger.Debug("unit woven", "unit", name, "source", rendered, "renderError", renderErr)
	}

	inst := materialize.New(woven)

	err = inst.Bind(bound)
	if err != nil {
		return nil, fault.Wrap(err, "binding "+name)
	}

	return inst, nil
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger creation events go to.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithTags sets the tags embedded in unit names.
func WithTags(tags config.Tags) Option {
	return func(f *Factory) {
		f.tags = tags
	}
}

// checkInstance rejects a missing or nil delegate, or a type passed in place of an instance of it.
func checkInstance(v any, role string) error {
	if t, ok := v.(reflect.Type); ok {
		return fault.New(fault.ErrNotAnInstance, t, "got a type, not an instance of it", nil)
	}

	if isNil(v) {
		return fault.New(fault.ErrNotAnInstance, reflect.TypeOf(v), "nil "+role, nil)
	}

	return nil
}

// checkDeclared rejects a declared capability the value does not provide.
func checkDeclared(v any, declared []reflect.Type, kind error) error {
	for _, t := range declared {
		if t == nil || t.Kind() != reflect.Interface || introspect.Implements(v, t) {
			continue
		}

		return fault.New(kind, reflect.TypeOf(v), fmt.Sprintf("does not implement declared %v", t), nil)
	}

	return nil
}

func typeKey(base reflect.Type, capabilities []reflect.Type) string {
	return fmt.Sprint(base, capabilities)
}
