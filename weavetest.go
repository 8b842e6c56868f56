// Package weavetest lets tests exercise interception rules against runtime-generated stand-ins for real
// objects: forwarding proxies that mimic a delegate and are woven with the registered rules, and
// simulated calls that come from a caller of the test's choosing.
//
// This is the public API entry point. Implementation lives in internal/core.
package weavetest

import (
	"log/slog"
	"os"
	"reflect"
	"sync"

	"github.com/toejough/weavetest/aspect"
	"github.com/toejough/weavetest/fault"
	"github.com/toejough/weavetest/internal/config"
	"github.com/toejough/weavetest/internal/core"
	materialize "github.com/toejough/weavetest/internal/synth/3_materialize"
	"github.com/toejough/weavetest/weaver"
)

// Exported variables.
var (
	ErrArgumentMismatch      = fault.ErrArgumentMismatch
	ErrEngine                = fault.ErrEngine
	ErrInvalidCallTarget     = fault.ErrInvalidCallTarget
	ErrInvalidConfig         = config.ErrInvalidConfig
	ErrNotAConcreteRule      = fault.ErrNotAConcreteRule
	ErrNotARule              = fault.ErrNotARule
	ErrNotAnInstance         = fault.ErrNotAnInstance
	ErrNotPubliclyCallable   = fault.ErrNotPubliclyCallable
	ErrTargetNotFound        = fault.ErrTargetNotFound
	ErrTransform             = fault.ErrTransform
	ErrUncallableType        = fault.ErrUncallableType
	ErrUnproxiableType       = fault.ErrUnproxiableType
	ErrUnsupportedSourceType = fault.ErrUnsupportedSourceType
)

// Types re-exported from internal/core.

// CallContext is the per-test aggregate of rule configuration and call source.
type CallContext = core.CallContext

// CallSource is the identity a simulated call comes from.
type CallSource = core.CallSource

// Config is the engine configuration: generated-name tags and log level.
type Config = config.Config

// Tags are the name tags of each kind of generated unit.
type Tags = config.Tags

// Engine builds proxies and simulated calls. Its methods are safe for concurrent use; the package-level
// functions use a shared default engine.
type Engine struct {
	mu      sync.Mutex
	weaver  weaver.Weaver
	logger  *slog.Logger
	cfg     config.Config
	factory *core.Factory
}

// NewEngine builds an engine. Without options it uses the built-in configuration, logs warnings to
// stderr and weaves with an AspectWeaver.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{cfg: config.Default()}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: e.cfg.Level()}))
	}

	if e.weaver == nil {
		e.weaver = weaver.NewAspectWeaver(weaver.WithLogger(e.logger), weaver.WithTrace(e.cfg.TraceTransforms))
	}

	e.factory = core.NewFactory(core.WithLogger(e.logger), core.WithTags(e.cfg.Tags))

	return e
}

// Call returns a selector over delegate. Invoking one of its operations performs the real call on
// delegate from a caller built from ctx (see CallContext.From). Panics raised by the delegate come back as
// the operation's error.
func (e *Engine) Call(delegate any, declared []reflect.Type, ctx *CallContext) (*Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ctx == nil {
		ctx = core.NewCallContext(e.weaver)
	}

	return e.factory.Call(delegate, declared, ctx)
}

// CreateForwardingProxy resets the engine's weaver, registers exactly rules, and builds a proxy over
// delegate woven with them.
func (e *Engine) CreateForwardingProxy(delegate any, declared []reflect.Type, rules ...reflect.Type) (*Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.weaver.Reset()

	for _, rule := range rules {
		err := e.weaver.RegisterRule(rule)
		if err != nil {
			return nil, err
		}
	}

	return e.factory.CreateForwardingProxy(delegate, declared, e.weaver)
}

// ExistingSource validates t as a call source.
func (e *Engine) ExistingSource(t reflect.Type) (*core.ExistingSource, error) {
	return core.NewExistingSource(t)
}

// FictitiousSource names a call source that doesn't exist. Its type is unit.MethodCaller until set with
// Extending.
func (e *Engine) FictitiousSource(name string) *core.FictitiousSource {
	return core.NewFictitiousSource(name)
}

// NewCallContext resets the engine's weaver and returns an empty context over it.
func (e *Engine) NewCallContext() *CallContext {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.weaver.Reset()

	return core.NewCallContext(e.weaver)
}

// Weaver is the engine's weaver.
func (e *Engine) Weaver() weaver.Weaver {
	return e.weaver
}

// Instance is a materialized generated unit: a proxy, selector or caller.
type Instance = materialize.Instance

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithWeaver sets the weaver.
func WithWeaver(w weaver.Weaver) Option {
	return func(e *Engine) {
		e.weaver = w
	}
}

// Call runs Engine.Call on the default engine, with T as the declared capability.
func Call[T any](delegate T, ctx *CallContext) (*Instance, error) {
	return Default().Call(delegate, Declared[T](), ctx)
}

// CreateForwardingProxy runs Engine.CreateForwardingProxy on the default engine, with T as the declared
// capability.
func CreateForwardingProxy[T any](delegate T, rules ...reflect.Type) (*Instance, error) {
	return Default().CreateForwardingProxy(delegate, Declared[T](), rules...)
}

// Declared is the capability list for T: T itself when it is an interface, nothing otherwise.
func Declared[T any]() []reflect.Type {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Interface {
		return nil
	}

	return []reflect.Type{t}
}

// Default is the shared engine. It is configured from the file named by WEAVETEST_CONFIG, if any.
func Default() *Engine {
	defaultOnce.Do(func() {
		cfg, err := config.Load(os.Getenv, os.ReadFile)
		defaultEngine = NewEngine(WithConfig(cfg))

		if err != nil {
			defaultEngine.logger.Warn("using default configuration", "error", err)
		}
	})

	return defaultEngine
}

// FictitiousSource names a call source that doesn't exist.
func FictitiousSource(name string) *core.FictitiousSource {
	return core.NewFictitiousSource(name)
}

// First returns the first of an operation's results as a T.
//
//	n, err := weavetest.First[int](selector.Invoke("RetInt"))
func First[T any](results []any, err error) (T, error) {
	var zero T

	if err != nil {
		return zero, err
	}

	if len(results) == 0 {
		return zero, fault.New(fault.ErrArgumentMismatch, reflect.TypeFor[T](), "no results", nil)
	}

	if results[0] == nil {
		return zero, nil
	}

	value, ok := results[0].(T)
	if !ok {
		return zero, fault.New(fault.ErrArgumentMismatch, reflect.TypeFor[T](),
			"first result is a "+reflect.TypeOf(results[0]).String(), nil)
	}

	return value, nil
}

// NewCallContext runs Engine.NewCallContext on the default engine.
func NewCallContext() *CallContext {
	return Default().NewCallContext()
}

// RuleType is the reflect.Type of a rule, for registration.
func RuleType[R aspect.Rule]() reflect.Type {
	return reflect.TypeFor[R]()
}

// unexported variables.
var (
	//nolint:gochecknoglobals // lazily built shared engine
	defaultEngine *Engine
	//nolint:gochecknoglobals // guards defaultEngine
	defaultOnce sync.Once
)
