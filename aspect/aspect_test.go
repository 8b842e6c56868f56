package aspect_test

import (
	"errors"
	"reflect"
	"testing"

	. "github.com/onsi/gomega"
	"pgregory.net/rapid"

	"github.com/toejough/weavetest/aspect"
	"github.com/toejough/weavetest/match"
	"github.com/toejough/weavetest/unit"
)

type Target interface {
	RetInt() int
}

type concreteTarget struct{}

func (concreteTarget) RetInt() int { return 1 }

type MySource struct{}

type recorder struct{ events []string }

func (r *recorder) add(event string) { r.events = append(r.events, event) }

type logged struct{ rec *recorder }

func (logged) Pointcut() aspect.Pointcut { return aspect.Any() }

func (l logged) Advice() aspect.Advice {
	return aspect.Before(func(jp aspect.JoinPoint) { l.rec.add("logged " + jp.String()) })
}

type noPointcut struct{}

func (noPointcut) Pointcut() aspect.Pointcut { return nil }

func (noPointcut) Advice() aspect.Advice { return aspect.Advice{} }

type panicking struct{}

func (panicking) Pointcut() aspect.Pointcut { panic("no pointcut today") }

func (panicking) Advice() aspect.Advice { return aspect.Advice{} }

func TestApply_FirstBindingIsOutermost(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	rec := &recorder{}
	bindings := []aspect.Binding{
		around(rec, "outer", aspect.Any()),
		around(rec, "skipped", aspect.Not(aspect.Any())),
		around(rec, "inner", aspect.Any()),
	}

	results, err := aspect.Apply(bindings, aspect.JoinPoint{Args: []any{1}}, func(args []any) ([]any, error) {
		rec.add("proceed")

		return args, nil
	})

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(results).To(Equal([]any{1}))
	g.Expect(rec.events).To(Equal([]string{"outer in", "inner in", "proceed", "inner out", "outer out"}))
}

func TestApply_AroundCanReplaceArguments(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	double := aspect.Binding{
		Type:     reflect.TypeFor[logged](),
		Pointcut: aspect.Any(),
		Advice: aspect.Around(func(jp aspect.JoinPoint, proceed aspect.Proceed) ([]any, error) {
			n, _ := jp.Args[0].(int)

			return proceed([]any{n * 2})
		}),
	}

	var seen aspect.JoinPoint

	capture := aspect.Binding{
		Type:     reflect.TypeFor[noPointcut](),
		Pointcut: aspect.Any(),
		Advice:   aspect.Before(func(jp aspect.JoinPoint) { seen = jp }),
	}

	results, err := aspect.Apply([]aspect.Binding{double, capture}, aspect.JoinPoint{Args: []any{21}},
		func(args []any) ([]any, error) { return args, nil })

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(results).To(Equal([]any{42}))
	g.Expect(seen.Args).To(Equal([]any{42}))
	g.Expect(seen.Rule).To(Equal(reflect.TypeFor[noPointcut]()))
}

func TestAdvice_AfterRunsOnPanic(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	rec := &recorder{}
	binding := aspect.Binding{
		Type:     reflect.TypeFor[logged](),
		Pointcut: aspect.Any(),
		Advice: aspect.Advice{
			After:          func(aspect.JoinPoint) { rec.add("after") },
			AfterReturning: func(aspect.JoinPoint, []any) { rec.add("returning") },
		},
	}

	g.Expect(func() {
		_, _ = aspect.Apply([]aspect.Binding{binding}, aspect.JoinPoint{}, func([]any) ([]any, error) {
			panic("boom")
		})
	}).To(PanicWith("boom"))
	g.Expect(rec.events).To(Equal([]string{"after"}))
}

func TestAdvice_AfterReturningSkippedOnError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	boom := errors.New("boom")
	rec := &recorder{}
	binding := aspect.Binding{
		Type:     reflect.TypeFor[logged](),
		Pointcut: aspect.Any(),
		Advice: aspect.Advice{
			Before:         func(aspect.JoinPoint) { rec.add("before") },
			After:          func(aspect.JoinPoint) { rec.add("after") },
			AfterReturning: func(aspect.JoinPoint, []any) { rec.add("returning") },
		},
	}

	_, err := aspect.Apply([]aspect.Binding{binding}, aspect.JoinPoint{}, func([]any) ([]any, error) {
		return nil, boom
	})

	g.Expect(err).To(BeIdenticalTo(boom))
	g.Expect(rec.events).To(Equal([]string{"before", "after"}))
}

func TestAdvice_AfterReturningSeesResults(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	var seen []any

	binding := aspect.Binding{
		Type:     reflect.TypeFor[logged](),
		Pointcut: aspect.Any(),
		Advice:   aspect.AfterReturning(func(_ aspect.JoinPoint, results []any) { seen = results }),
	}

	_, err := aspect.Apply([]aspect.Binding{binding}, aspect.JoinPoint{}, func([]any) ([]any, error) {
		return []any{"done"}, nil
	})

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(seen).To(Equal([]any{"done"}))
}

func TestBind(t *testing.T) {
	t.Parallel()

	t.Run("evaluates the rule once", func(t *testing.T) {
		t.Parallel()
		g := NewWithT(t)

		binding, err := aspect.Bind(reflect.TypeFor[logged](), logged{rec: &recorder{}})

		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(binding.Label()).To(Equal("logged any()"))
	})

	t.Run("a nil pointcut is an error", func(t *testing.T) {
		t.Parallel()
		g := NewWithT(t)

		_, err := aspect.Bind(reflect.TypeFor[noPointcut](), noPointcut{})

		g.Expect(err).To(MatchError(ContainSubstring("has no pointcut")))
	})

	t.Run("a panicking rule is an error", func(t *testing.T) {
		t.Parallel()
		g := NewWithT(t)

		_, err := aspect.Bind(reflect.TypeFor[panicking](), panicking{})

		g.Expect(err).To(MatchError(ContainSubstring("no pointcut today")))
	})
}

func TestPointcuts(t *testing.T) {
	t.Parallel()

	caller := &unit.Unit{
		Name:         "weavetest/aspect_test.MySource__CallerByWeavetest__Target_RetInt__0a1b2c3d",
		Base:         reflect.TypeFor[MySource](),
		Capabilities: []reflect.Type{reflect.TypeFor[unit.MethodCaller]()},
	}
	proxy := &unit.Unit{
		Name:         "Target__ProxyByWeavetest__0a1b2c3d",
		Base:         reflect.TypeFor[unit.Object](),
		Capabilities: []reflect.Type{reflect.TypeFor[Target](), reflect.TypeFor[unit.ForwardingProxy]()},
	}
	call := aspect.JoinPoint{
		Kind:      aspect.CallKind,
		Unit:      caller,
		Signature: unit.Signature{Name: "RetInt"},
		This:      self{caller},
		Target:    concreteTarget{},
	}
	execution := aspect.JoinPoint{
		Kind:      aspect.ExecutionKind,
		Unit:      proxy,
		Signature: unit.Signature{Name: "RetInt"},
		This:      self{proxy},
		Target:    self{proxy},
		Args:      []any{3, "x"},
	}

	for _, tc := range []struct {
		name     string
		pointcut aspect.Pointcut
		jp       aspect.JoinPoint
		matches  bool
	}{
		{"call by simple type name", aspect.Call("*.RetInt"), call, true},
		{"call by qualified type name", aspect.Call("**/aspect_test.concreteTarget.RetInt"), call, true},
		{"call of another method", aspect.Call("*.Other"), call, false},
		{"call never matches executions", aspect.Call("*.RetInt"), execution, false},
		{"call through a generated target", aspect.Call("Target.RetInt"), withTarget(call, self{proxy}), true},
		{"execution by capability", aspect.Execution("Target.*"), execution, true},
		{"execution never matches calls", aspect.Execution("*.*"), call, false},
		{"execution skips the object root", aspect.Execution("Object.*"), execution, false},
		{"target interface", aspect.Target(reflect.TypeFor[Target]()), call, true},
		{"target concrete", aspect.Target(reflect.TypeFor[concreteTarget]()), call, true},
		{"target mismatch", aspect.Target(reflect.TypeFor[MySource]()), call, false},
		{"target generated", aspect.Target(reflect.TypeFor[Target]()), execution, true},
		{"this is the source type", aspect.This(reflect.TypeFor[MySource]()), call, true},
		{"this is a caller", aspect.This(reflect.TypeFor[unit.MethodCaller]()), call, true},
		{"this is not the target", aspect.This(reflect.TypeFor[Target]()), call, false},
		{"within across package segments", aspect.Within("**/*Source*"), call, true},
		{"within a single segment", aspect.Within("*Source*"), call, false},
		{"within by type", aspect.WithinType(reflect.TypeFor[unit.ForwardingProxy]()), execution, true},
		{"args by value", aspect.Args(3, "x"), execution, true},
		{"args by matcher", aspect.Args(match.BeAny, BeAssignableToTypeOf("")), execution, true},
		{"args arity", aspect.Args(3), execution, false},
		{"and", aspect.And(aspect.Call("*.RetInt"), aspect.Within("**/*Source*")), call, true},
		{"or", aspect.Or(aspect.Call("*.Other"), aspect.Within("**/*Source*")), call, true},
		{"not", aspect.Not(aspect.Any()), call, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			g.Expect(tc.pointcut.Matches(tc.jp)).To(Equal(tc.matches))
		})
	}
}

func TestPointcuts_DescribeThemselves(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := aspect.And(
		aspect.Call("*.RetInt"),
		aspect.Or(aspect.Within("*Source*"), aspect.Not(aspect.This(reflect.TypeFor[MySource]()))),
	)

	g.Expect(p.String()).To(Equal("(call(*.RetInt) && (within(*Source*) || !this(MySource)))"))
}

func TestPointcuts_MalformedPatternsPanic(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(func() { aspect.Call("[") }).To(Panic())
	g.Expect(func() { aspect.Execution("{a,") }).To(Panic())
	g.Expect(func() { aspect.Within("[") }).To(Panic())
}

func TestPointcuts_NotInverts(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		g := NewWithT(rt)
		name := rapid.StringMatching(`[A-Za-z]{1,8}`).Draw(rt, "name")
		jp := aspect.JoinPoint{Unit: &unit.Unit{Name: name}}
		p := aspect.Within("*Source*")

		g.Expect(aspect.Not(p).Matches(jp)).To(Equal(!p.Matches(jp)))
		g.Expect(aspect.And(p, aspect.Not(p)).Matches(jp)).To(BeFalse())
		g.Expect(aspect.Or(p, aspect.Not(p)).Matches(jp)).To(BeTrue())
	})
}

// self is a minimal executing instance for join points.
type self struct{ u *unit.Unit }

func (s self) Field(string) reflect.Value { return reflect.Value{} }

func (s self) GeneratedUnit() *unit.Unit { return s.u }

func (s self) Invoke(string, ...any) ([]any, error) { return nil, nil }

func (s self) SetField(string, reflect.Value) {}

func around(rec *recorder, name string, p aspect.Pointcut) aspect.Binding {
	return aspect.Binding{
		Type:     reflect.TypeFor[logged](),
		Pointcut: p,
		Advice: aspect.Around(func(jp aspect.JoinPoint, proceed aspect.Proceed) ([]any, error) {
			rec.add(name + " in")
			defer rec.add(name + " out")

			return proceed(jp.Args)
		}),
	}
}

func withTarget(jp aspect.JoinPoint, target any) aspect.JoinPoint {
	jp.Target = target

	return jp
}
