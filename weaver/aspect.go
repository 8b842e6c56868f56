package weaver

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/akedrou/textdiff"
	"go.uber.org/multierr"

	"github.com/toejough/weavetest/aspect"
	"github.com/toejough/weavetest/fault"
	"github.com/toejough/weavetest/unit"
)

// AspectWeaver weaves the advice of registered aspect.Rule types into generated units. Execution advice
// wraps every public operation; call advice wraps the call site of callers. Pointcuts are evaluated
// each time a join point is reached.
type AspectWeaver struct {
	logger *slog.Logger
	trace  bool

	mu    sync.Mutex
	rules []registered
}

// NewAspectWeaver returns a weaver with no rules registered.
func NewAspectWeaver(opts ...Option) *AspectWeaver {
	w := &AspectWeaver{logger: slog.New(slog.DiscardHandler)}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// RegisterRule instantiates t and registers it. Interface types and rules without a pointcut fail with
// fault.ErrNotAConcreteRule; types that don't implement aspect.Rule with fault.ErrNotARule.
func (w *AspectWeaver) RegisterRule(t reflect.Type) error {
	rule, err := instantiate(t)
	if err != nil {
		return err
	}

	_, err = aspect.Bind(t, rule)
	if err != nil {
		return fault.New(fault.ErrNotAConcreteRule, t, "no usable pointcut", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if slices.ContainsFunc(w.rules, func(r registered) bool { return r.t == t }) {
		return nil
	}

	w.rules = append(w.rules, registered{t: t, rule: rule})
	w.logger.Debug("rule registered", "rule", t.String())

	return nil
}

// Rules lists the registered rule types in registration order.
func (w *AspectWeaver) Rules() []reflect.Type {
	w.mu.Lock()
	defer w.mu.Unlock()

	types := make([]reflect.Type, 0, len(w.rules))
	for _, r := range w.rules {
		types = append(types, r.t)
	}

	return types
}

// Reset unregisters every rule.
func (w *AspectWeaver) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rules = nil
}

// Transform returns raw itself when no rules are registered. Otherwise it returns a woven clone named
// name. Failures, including panics from rule code, are collected and reported together as
// fault.ErrTransform.
func (w *AspectWeaver) Transform(name string, raw *unit.Unit) (*unit.Unit, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.rules) == 0 {
		return raw, nil
	}

	var errs error

	bindings := make([]aspect.Binding, 0, len(w.rules))

	for _, r := range w.rules {
		binding, err := aspect.Bind(r.t, r.rule)
		if err != nil {
			errs = multierr.Append(errs, err)

			continue
		}

		bindings = append(bindings, binding)
	}

	woven := raw.Clone()
	woven.Name = name

	for _, op := range woven.Operations {
		errs = multierr.Append(errs, weaveOperation(op, bindings))
	}

	if errs != nil {
		return nil, fault.New(fault.ErrTransform, raw.Base, "weaving "+name, errs)
	}

	if w.trace {
		w.logTrace(raw, woven)
	}

	return woven, nil
}

// UnregisterRule removes t.
func (w *AspectWeaver) UnregisterRule(t reflect.Type) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rules = slices.DeleteFunc(w.rules, func(r registered) bool { return r.t == t })
}

func (w *AspectWeaver) logTrace(raw, woven *unit.Unit) {
	before, err := unit.Render(raw)
	if err != nil {
		w.logger.Debug("unit transformed", "unit", woven.Name, "renderError", err)

		return
	}

	after, err := unit.Render(woven)
	if err != nil {
		w.logger.Debug("unit transformed", "unit", woven.Name, "renderError", err)

		return
	}

	w.logger.Debug("unit transformed", "unit", woven.Name, "diff", textdiff.Unified(raw.Name, woven.Name, before, after))
}

// Option configures an AspectWeaver.
type Option func(*AspectWeaver)

// WithLogger sets the logger registration and transform events go to.
func WithLogger(logger *slog.Logger) Option {
	return func(w *AspectWeaver) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithTrace logs a unified diff of the rendered raw and woven unit at debug level for every transform.
func WithTrace(trace bool) Option {
	return func(w *AspectWeaver) {
		w.trace = trace
	}
}

type registered struct {
	t    reflect.Type
	rule aspect.Rule
}

// unexported functions.

func callSiteAdvice(site *unit.CallSite, bindings []aspect.Binding) unit.Invocation {
	invoke := site.Invoke
	sig := site.Target

	return func(frame unit.Frame, target reflect.Value, args []reflect.Value) ([]reflect.Value, error) {
		jp := aspect.JoinPoint{
			Kind:      aspect.CallKind,
			Unit:      frame.Self.GeneratedUnit(),
			Signature: sig,
			This:      frame.Self,
			Target:    unit.FromValues([]reflect.Value{target})[0],
			Args:      unit.FromValues(args),
		}

		results, err := aspect.Apply(bindings, jp, func(args []any) ([]any, error) {
			in, err := unit.ToValues(args, sig.In)
			if err != nil {
				return nil, err
			}

			out, err := invoke(frame, target, in)
			if err != nil {
				return nil, err
			}

			return unit.FromValues(out), nil
		})
		if err != nil {
			return nil, err
		}

		return unit.ToValues(results, sig.Out)
	}
}

func executionAdvice(op *unit.Operation, bindings []aspect.Binding) unit.Body {
	body := op.Body
	sig := op.Signature

	return func(frame unit.Frame, args []reflect.Value) ([]reflect.Value, error) {
		jp := aspect.JoinPoint{
			Kind:      aspect.ExecutionKind,
			Unit:      frame.Self.GeneratedUnit(),
			Signature: sig,
			This:      frame.Self,
			Target:    frame.Self,
			Args:      unit.FromValues(args),
		}

		results, err := aspect.Apply(bindings, jp, func(args []any) ([]any, error) {
			in, err := unit.ToValues(args, sig.In)
			if err != nil {
				return nil, err
			}

			out, err := body(frame, in)
			if err != nil {
				return nil, err
			}

			return unit.FromValues(out), nil
		})
		if err != nil {
			return nil, err
		}

		return unit.ToValues(results, sig.Out)
	}
}

func instantiate(t reflect.Type) (aspect.Rule, error) {
	if t == nil || t.Kind() == reflect.Interface {
		return nil, fault.New(fault.ErrNotAConcreteRule, t, "cannot instantiate", nil)
	}

	var candidate any

	switch {
	case t.Kind() == reflect.Pointer:
		candidate = reflect.New(t.Elem()).Interface()
	case t.Implements(ruleType):
		candidate = reflect.New(t).Elem().Interface()
	default:
		candidate = reflect.New(t).Interface()
	}

	rule, ok := candidate.(aspect.Rule)
	if !ok {
		return nil, fault.New(fault.ErrNotARule, t, "does not implement aspect.Rule", nil)
	}

	return rule, nil
}

// weaveOperation wraps the public body with execution advice and the call site with call advice.
func weaveOperation(op *unit.Operation, bindings []aspect.Binding) error {
	if op.Internal {
		return nil
	}

	if op.Body == nil {
		//nolint:err113 // dynamic context
		return fmt.Errorf("operation %s has no body", op.Name)
	}

	for _, binding := range bindings {
		op.Advice = append(op.Advice, "execution: "+binding.Label())
	}

	op.Body = executionAdvice(op, bindings)

	if op.Site == nil {
		return nil
	}

	if op.Site.Invoke == nil {
		//nolint:err113 // dynamic context
		return fmt.Errorf("call site of %s has no invocation", op.Name)
	}

	for _, binding := range bindings {
		op.Advice = append(op.Advice, "call: "+binding.Label())
	}

	op.Site.Invoke = callSiteAdvice(op.Site, bindings)

	return nil
}

// unexported variables.
var (
	//nolint:gochecknoglobals // reflected type constants
	ruleType = reflect.TypeFor[aspect.Rule]()
)
