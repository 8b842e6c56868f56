// Package aspect is the rule vocabulary understood by weaver.AspectWeaver: pointcuts select join points
// (operation executions and call sites inside generated units), advice runs around them.
//
// A rule is a named type whose zero value answers Pointcut and Advice:
//
//	type MarkCalls struct{}
//
//	func (MarkCalls) Pointcut() aspect.Pointcut {
//	    return aspect.And(aspect.Call("*.TheMethod"), aspect.Within("*MySource*"))
//	}
//
//	func (MarkCalls) Advice() aspect.Advice {
//	    return aspect.Before(func(jp aspect.JoinPoint) { jp.Target.(Target).MarkWeaved() })
//	}
package aspect

import (
	"fmt"
	"reflect"

	introspect "github.com/toejough/weavetest/internal/synth/0_introspect"
	"github.com/toejough/weavetest/unit"
)

// Kind is the kind of join point.
type Kind int

// Kind values.
const (
	// ExecutionKind is the execution of a public operation of a generated unit.
	ExecutionKind Kind = iota
	// CallKind is the hard-coded call site inside a generated caller.
	CallKind
)

// Binding is a registered rule with its pointcut and advice evaluated once.
type Binding struct {
	Type     reflect.Type
	Pointcut Pointcut
	Advice   Advice
}

// Bind evaluates rule's pointcut and advice. A panic from rule code, or a nil pointcut, is reported as an
// error rather than propagated.
func Bind(t reflect.Type, rule Rule) (binding Binding, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			//nolint:err113 // dynamic context
			err = fmt.Errorf("rule %v panicked: %v", t, recovered)
		}
	}()

	binding = Binding{Type: t, Pointcut: rule.Pointcut(), Advice: rule.Advice()}
	if binding.Pointcut == nil {
		//nolint:err113 // dynamic context
		return Binding{}, fmt.Errorf("rule %v has no pointcut", t)
	}

	return binding, nil
}

// Label names the binding in unit renderings.
func (b Binding) Label() string {
	return introspect.SimpleName(b.Type) + " " + b.Pointcut.String()
}

// JoinPoint describes one point in the execution of a generated unit.
type JoinPoint struct {
	Kind Kind
	// Rule is the type of the rule whose pointcut is being evaluated or whose advice is running.
	Rule reflect.Type
	// Unit is the unit the join point lives in.
	Unit *unit.Unit
	// Signature is the executing operation, or the operation called from a call site.
	Signature unit.Signature
	// This is the executing instance.
	This unit.Self
	// Target is the instance operated on: This for executions, the callee for calls.
	Target any
	Args   []any
}

// String is e.g. "call(ConcreteTarget.RetInt) within Caller__x".
func (jp JoinPoint) String() string {
	kind := "execution"
	if jp.Kind == CallKind {
		kind = "call"
	}

	within := ""
	if jp.Unit != nil {
		within = " within " + jp.Unit.Name
	}

	return fmt.Sprintf("%s(%s)%s", kind, jp.Signature.Name, within)
}

// Proceed continues to the advised operation with the given arguments.
type Proceed func(args []any) ([]any, error)

// Rule is a unit of interception logic.
type Rule interface {
	Pointcut() Pointcut
	Advice() Advice
}

// Apply runs every binding whose pointcut matches jp around proceed. The first binding is outermost.
func Apply(bindings []Binding, jp JoinPoint, proceed Proceed) ([]any, error) {
	if len(bindings) == 0 {
		return proceed(jp.Args)
	}

	binding, rest := bindings[0], bindings[1:]

	next := func(args []any) ([]any, error) {
		inner := jp
		inner.Args = args

		return Apply(rest, inner, proceed)
	}

	advised := jp
	advised.Rule = binding.Type

	if !binding.Pointcut.Matches(advised) {
		return next(jp.Args)
	}

	return binding.Advice.run(advised, next)
}
