package aspect

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	introspect "github.com/toejough/weavetest/internal/synth/0_introspect"
	"github.com/toejough/weavetest/match"
	"github.com/toejough/weavetest/unit"
)

// Pointcut selects join points.
type Pointcut interface {
	Matches(jp JoinPoint) bool
	String() string
}

// And matches when every pointcut matches.
func And(pointcuts ...Pointcut) Pointcut {
	return &pointcut{
		desc: "(" + join(pointcuts, " && ") + ")",
		match: func(jp JoinPoint) bool {
			for _, p := range pointcuts {
				if !p.Matches(jp) {
					return false
				}
			}

			return true
		},
	}
}

// Any matches every join point.
func Any() Pointcut {
	return &pointcut{desc: "any()", match: func(JoinPoint) bool { return true }}
}

// Args matches join points whose arguments match the expectations positionally: each is a match.Matcher
// (gomega matchers qualify) or a value compared with reflect.DeepEqual.
func Args(expected ...any) Pointcut {
	return &pointcut{
		desc: fmt.Sprintf("args(%d)", len(expected)),
		match: func(jp JoinPoint) bool {
			if len(jp.Args) != len(expected) {
				return false
			}

			for i, arg := range jp.Args {
				if ok, _ := match.Value(arg, expected[i]); !ok {
					return false
				}
			}

			return true
		},
	}
}

// Call matches call sites whose called operation matches pattern. Patterns are doublestar globs over
// "Type.Method", with the type either simple ("ConcreteTarget.RetInt") or package-qualified
// ("github.com/acme/target.ConcreteTarget.RetInt", where "/" separates path segments). Call panics on a
// malformed pattern.
func Call(pattern string) Pointcut {
	mustValidate(pattern)

	return &pointcut{
		desc: "call(" + pattern + ")",
		match: func(jp JoinPoint) bool {
			return jp.Kind == CallKind && matchesAny(pattern, operationNames(typesOf(jp.Target), jp.Signature.Name))
		},
	}
}

// Execution matches the execution of public operations of generated units. Patterns are as for Call,
// over the base and capability types of the executing unit. Execution panics on a malformed pattern.
func Execution(pattern string) Pointcut {
	mustValidate(pattern)

	return &pointcut{
		desc: "execution(" + pattern + ")",
		match: func(jp JoinPoint) bool {
			if jp.Kind != ExecutionKind || jp.Unit == nil {
				return false
			}

			return matchesAny(pattern, operationNames(unitTypes(jp.Unit), jp.Signature.Name))
		},
	}
}

// Not inverts a pointcut.
func Not(p Pointcut) Pointcut {
	return &pointcut{
		desc:  "!" + p.String(),
		match: func(jp JoinPoint) bool { return !p.Matches(jp) },
	}
}

// Or matches when any pointcut matches.
func Or(pointcuts ...Pointcut) Pointcut {
	return &pointcut{
		desc: "(" + join(pointcuts, " || ") + ")",
		match: func(jp JoinPoint) bool {
			for _, p := range pointcuts {
				if p.Matches(jp) {
					return true
				}
			}

			return false
		},
	}
}

// Target matches join points whose target is-a t.
func Target(t reflect.Type) Pointcut {
	return &pointcut{
		desc:  "target(" + introspect.SimpleName(t) + ")",
		match: func(jp JoinPoint) bool { return isA(jp.Target, t) },
	}
}

// This matches join points whose executing instance is-a t. For call sites that is the caller, which
// is-a its call source type.
func This(t reflect.Type) Pointcut {
	return &pointcut{
		desc: "this(" + introspect.SimpleName(t) + ")",
		match: func(jp JoinPoint) bool {
			return jp.This != nil && jp.This.GeneratedUnit().Is(t)
		},
	}
}

// Within matches join points inside units whose name matches the doublestar pattern. Within panics on a
// malformed pattern.
func Within(pattern string) Pointcut {
	mustValidate(pattern)

	return &pointcut{
		desc: "within(" + pattern + ")",
		match: func(jp JoinPoint) bool {
			return jp.Unit != nil && matchesAny(pattern, []string{jp.Unit.Name})
		},
	}
}

// WithinType matches join points inside units that are-a t.
func WithinType(t reflect.Type) Pointcut {
	return &pointcut{
		desc:  "within(" + introspect.SimpleName(t) + "+)",
		match: func(jp JoinPoint) bool { return jp.Unit != nil && jp.Unit.Is(t) },
	}
}

type pointcut struct {
	desc  string
	match func(jp JoinPoint) bool
}

func (p *pointcut) Matches(jp JoinPoint) bool {
	return p.match(jp)
}

func (p *pointcut) String() string {
	return p.desc
}

// unexported functions.

func isA(v any, t reflect.Type) bool {
	if v == nil || t == nil {
		return false
	}

	if generated, ok := v.(unit.Generated); ok {
		return generated.GeneratedUnit().Is(t)
	}

	actual := reflect.TypeOf(v)
	if actual == t || (actual.Kind() == reflect.Pointer && actual.Elem() == t) {
		return true
	}

	return t.Kind() == reflect.Interface && actual.Implements(t)
}

func join(pointcuts []Pointcut, sep string) string {
	descs := make([]string, 0, len(pointcuts))
	for _, p := range pointcuts {
		descs = append(descs, p.String())
	}

	return strings.Join(descs, sep)
}

func matchesAny(pattern string, names []string) bool {
	for _, name := range names {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}

	return false
}

func mustValidate(pattern string) {
	if !doublestar.ValidatePattern(pattern) {
		panic(fmt.Errorf("pattern %q: %w", pattern, doublestar.ErrBadPattern))
	}
}

func operationNames(types []reflect.Type, method string) []string {
	names := make([]string, 0, 2*len(types)) //nolint:mnd // simple and qualified

	for _, t := range types {
		names = append(names, introspect.SimpleName(t)+"."+method, introspect.FullName(t)+"."+method)
	}

	return names
}

func typesOf(v any) []reflect.Type {
	if v == nil {
		return nil
	}

	if generated, ok := v.(unit.Generated); ok {
		return unitTypes(generated.GeneratedUnit())
	}

	return []reflect.Type{reflect.TypeOf(v)}
}

func unitTypes(u *unit.Unit) []reflect.Type {
	types := make([]reflect.Type, 0, len(u.Capabilities)+1)
	if u.Base != nil && u.Base != objectType {
		types = append(types, u.Base)
	}

	return append(types, u.Capabilities...)
}

// unexported variables.
var (
	//nolint:gochecknoglobals // reflected type constants
	objectType = reflect.TypeFor[unit.Object]()
)
