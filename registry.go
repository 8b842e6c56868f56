package weavetest

import (
	"sync"
)

// TestReporter is the minimal interface weavetest needs from test frameworks.
type TestReporter interface {
	Helper()
	Name() string
}

// For returns the engine for the given test, creating one if needed. Multiple calls with the same
// TestReporter return the same Engine, so parallel tests don't share weaver registrations. The engine
// uses the default engine's configuration and logs with the test's name.
//
// If the TestReporter supports Cleanup (like *testing.T), the Engine is removed from the registry when
// the test completes.
func For(t TestReporter, opts ...Option) *Engine {
	t.Helper()

	registryMu.Lock()
	defer registryMu.Unlock()

	if engine, ok := registry[t]; ok {
		return engine
	}

	shared := Default()
	engine := NewEngine(append([]Option{
		WithConfig(shared.cfg),
		WithLogger(shared.logger.With("test", t.Name())),
	}, opts...)...)
	registry[t] = engine

	if cr, ok := t.(cleanupRegistrar); ok {
		cr.Cleanup(func() {
			registryMu.Lock()
			delete(registry, t)
			registryMu.Unlock()
		})
	}

	return engine
}

// unexported variables.
var (
	//nolint:gochecknoglobals // Package-level registry is intentional for per-test engines
	registry = make(map[TestReporter]*Engine)
	//nolint:gochecknoglobals // Mutex for registry
	registryMu sync.Mutex
)

// cleanupRegistrar is the interface needed for registering cleanup functions.
// This is satisfied by *testing.T and *testing.B.
type cleanupRegistrar interface {
	Cleanup(cleanupFunc func())
}
