// Package introspect determines the structural shape of runtime values: the nearest real (non-generated)
// base type and the capability interfaces a value exposes.
package introspect

import (
	"reflect"
	"slices"
	"strings"

	"github.com/toejough/weavetest/unit"
)

// GeneratedMarker is the reserved double delimiter. A type whose name contains it is treated as generated
// by some code-generation facility. This is a best-effort heuristic for types generated outside this
// engine; units generated here are recognized by the unit.Generated capability.
const GeneratedMarker = "__"

// Capabilities returns the capability set of v: the declared interface types (non-interface types are
// ignored) followed by the capabilities of the generated unit behind v, if any, without duplicates.
func Capabilities(v any, declared ...reflect.Type) []reflect.Type {
	var capabilities []reflect.Type

	add := func(t reflect.Type) {
		if t != nil && t.Kind() == reflect.Interface && !slices.Contains(capabilities, t) {
			capabilities = append(capabilities, t)
		}
	}

	for _, t := range declared {
		add(t)
	}

	if generated, ok := v.(unit.Generated); ok {
		for _, t := range generated.GeneratedUnit().Capabilities {
			if !isMarker(t) {
				add(t)
			}
		}
	}

	return capabilities
}

// FullName is the package-qualified name of t ("path/to/pkg.Name"), or its string form when unnamed.
func FullName(t reflect.Type) string {
	named := derefNamed(t)
	if named.Name() == "" {
		return t.String()
	}

	if named.PkgPath() == "" {
		return named.Name()
	}

	return named.PkgPath() + "." + named.Name()
}

// Implements reports whether v provides every method of the interface iface: through its method set, or
// through the public operations of its unit when v is generated.
func Implements(v any, iface reflect.Type) bool {
	if v == nil || iface == nil || iface.Kind() != reflect.Interface {
		return false
	}

	if reflect.TypeOf(v).Implements(iface) {
		return true
	}

	generated, ok := v.(unit.Generated)
	if !ok {
		return false
	}

	u := generated.GeneratedUnit()

	for i := range iface.NumMethod() {
		method := iface.Method(i)

		op := u.Operation(method.Name)
		if op == nil || op.Internal || op.FuncType() != method.Type {
			return false
		}
	}

	return true
}

// IsExtensible reports whether t may serve as the base or capability of a generated unit: a named struct
// (or pointer to one) or a named interface, not sealed.
func IsExtensible(t reflect.Type) bool {
	if t == nil {
		return false
	}

	if t.Kind() == reflect.Interface {
		return t.Name() != "" && t != sealedType
	}

	named := t
	if named.Kind() == reflect.Pointer {
		named = named.Elem()
	}

	if named.Kind() != reflect.Struct || named.Name() == "" {
		return false
	}

	return !t.Implements(sealedType) && !reflect.PointerTo(named).Implements(sealedType)
}

// IsGenerated classifies t as synthetic or generated: an anonymous struct (synthetic), a type implementing
// unit.Generated (enhanced), or a name containing GeneratedMarker (heuristic).
func IsGenerated(t reflect.Type) bool {
	if t == nil || t == objectType {
		return false
	}

	named := derefNamed(t)
	if named.Kind() == reflect.Struct && named.Name() == "" {
		return true
	}

	if t.Implements(generatedType) {
		return true
	}

	return strings.Contains(named.Name(), GeneratedMarker)
}

// IsPrimitive reports whether t is a basic kind (bool, numbers, strings) or an unsafe pointer.
func IsPrimitive(t reflect.Type) bool {
	if t == nil {
		return false
	}

	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128, reflect.String,
		reflect.UnsafePointer:
		return true
	default:
		return false
	}
}

// PublicMethods returns the exported method signatures of base and of every capability, deduplicated by
// name (first wins) and in that order. An object-root base contributes nothing.
func PublicMethods(base reflect.Type, capabilities []reflect.Type) []unit.Signature {
	var (
		methods []unit.Signature
		seen    = map[string]bool{}
	)

	collect := func(t reflect.Type) {
		if t == nil || t == objectType {
			return
		}

		hasReceiver := t.Kind() != reflect.Interface

		for i := range t.NumMethod() {
			method := t.Method(i)
			if !method.IsExported() || seen[method.Name] {
				continue
			}

			seen[method.Name] = true
			methods = append(methods, unit.SignatureOf(method.Name, method.Type, hasReceiver))
		}
	}

	collect(base)

	for _, capability := range capabilities {
		collect(capability)
	}

	return methods
}

// ResolveBase returns the nearest real type of v. A generated unit instance resolves to its unit's base;
// otherwise the walk starts at v's dynamic type and steps from each generated type to its first embedded
// field, or to unit.Object when it embeds nothing. A real value resolves to its own exact type.
func ResolveBase(v any) reflect.Type {
	if generated, ok := v.(unit.Generated); ok {
		return generated.GeneratedUnit().Base
	}

	candidate := reflect.TypeOf(v)
	if candidate == nil {
		return objectType
	}

	visited := map[reflect.Type]bool{}

	for IsGenerated(candidate) {
		if visited[candidate] {
			return objectType
		}

		visited[candidate] = true
		candidate = parentOf(candidate)
	}

	return candidate
}

// SimpleName is the unqualified name of t, dereferencing pointers.
func SimpleName(t reflect.Type) string {
	named := derefNamed(t)
	if named.Name() == "" {
		return t.String()
	}

	return named.Name()
}

// unexported functions.

func derefNamed(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer && t.Name() == "" {
		t = t.Elem()
	}

	return t
}

func isMarker(t reflect.Type) bool {
	return t == proxyMarkerType || t == selectorMarkerType || t == callerMarkerType
}

func parentOf(t reflect.Type) reflect.Type {
	named := derefNamed(t)
	if named.Kind() != reflect.Struct || named.NumField() == 0 {
		return objectType
	}

	first := named.Field(0)
	if !first.Anonymous {
		return objectType
	}

	return first.Type
}

// unexported variables.
var (
	//nolint:gochecknoglobals // reflected type constants
	callerMarkerType = reflect.TypeFor[unit.MethodCaller]()
	//nolint:gochecknoglobals // reflected type constants
	generatedType = reflect.TypeFor[unit.Generated]()
	//nolint:gochecknoglobals // reflected type constants
	objectType = reflect.TypeFor[unit.Object]()
	//nolint:gochecknoglobals // reflected type constants
	proxyMarkerType = reflect.TypeFor[unit.ForwardingProxy]()
	//nolint:gochecknoglobals // reflected type constants
	sealedType = reflect.TypeFor[unit.Sealed]()
	//nolint:gochecknoglobals // reflected type constants
	selectorMarkerType = reflect.TypeFor[unit.MethodSelector]()
)
