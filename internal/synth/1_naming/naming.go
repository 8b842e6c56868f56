// Package naming allocates deterministic, collision-free names for generated units.
//
// Names embed the source (or the default source), a tag identifying this engine's units, the target
// description and a short hash of a key, joined by the reserved double delimiter:
//
//	MySourceX__CallerByWeavetest__ConcreteTarget_RetInt__1f2e3d4c
//	github.com/acme/house.Building__ProxyByWeavetest__9a8b7c6d_2
package naming

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Tags identifying units generated by this engine.
const (
	CallerTag   = "CallerByWeavetest"
	ProxyTag    = "ProxyByWeavetest"
	SelectorTag = "MethodSelectorByWeavetest"
)

// Delimiter joins name parts. It is the same marker the introspector uses to recognize generated types.
const Delimiter = "__"

// EnhancedTag replaces the generated part of an already-generated target class name.
const EnhancedTag = "_Enhanced"

// Registry is the active naming registry: the set of names already handed out.
type Registry struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Allocate picks a unique name against the registry and reserves it.
func (r *Registry) Allocate(prefix, targetDescription string, key any) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := Allocate(prefix, targetDescription, key, r.has)
	r.names[name] = struct{}{}

	return name
}

// Has reports whether the name was already handed out.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.has(name)
}

// Len is the number of names handed out.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.names)
}

func (r *Registry) has(name string) bool {
	_, ok := r.names[name]

	return ok
}

// Allocate builds prefix + targetDescription + short hash of key, then appends _2, _3, … until exists
// reports the candidate free. It has no side effects beyond calling exists.
func Allocate(prefix, targetDescription string, key any, exists func(string) bool) string {
	parts := make([]string, 0, 3) //nolint:mnd // prefix, description, hash

	if prefix != "" {
		parts = append(parts, prefix)
	}

	if targetDescription != "" {
		parts = append(parts, targetDescription)
	}

	parts = append(parts, ShortHash(key))
	base := strings.Join(parts, Delimiter)

	attempt := base
	for index := 2; exists != nil && exists(attempt); index++ {
		attempt = base + "_" + strconv.Itoa(index)
	}

	return attempt
}

// CallerDescription describes a caller's target: "{tag}__{class}_{method}".
func CallerDescription(tag, targetClass, method string) string {
	return tag + Delimiter + TargetClassTag(targetClass) + "_" + method
}

// ShortHash is an 8 hex digit hash of the key's printed form.
func ShortHash(key any) string {
	//nolint:mnd // keep the low 32 bits
	return fmt.Sprintf("%08x", uint32(xxhash.Sum64String(fmt.Sprint(key))))
}

// SourcePrefix is the name of the source, or defaultSource when it is empty.
func SourcePrefix(source, defaultSource string) string {
	if source == "" {
		return defaultSource
	}

	return source
}

// TargetClassTag abbreviates a class name that was itself generated: everything from the first delimiter
// on is replaced by EnhancedTag, so proxies of proxies don't grow names without bound.
func TargetClassTag(simpleName string) string {
	before, _, found := strings.Cut(simpleName, Delimiter)
	if !found {
		return simpleName
	}

	return before + EnhancedTag
}
