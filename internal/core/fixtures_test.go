package core_test

import (
	"reflect"

	"github.com/toejough/weavetest/aspect"
	"github.com/toejough/weavetest/internal/core"
	"github.com/toejough/weavetest/unit"
	"github.com/toejough/weavetest/weaver"
)

type Target interface {
	RetInt() int
}

type ASource struct{}

type ParentSource interface {
	Parent()
}

type concrete struct {
	n    int
	boom any
}

func (c *concrete) Bump(by int) int {
	c.n += by

	return c.n
}

func (c concrete) RetInt() int { return c.n }

func (c concrete) Throw() { panic(c.boom) }

//nolint:unused // looked up by name only
func (c concrete) hidden() int { return c.n }

// PlusTen adds ten to every RetInt called from an ASource.
type PlusTen struct{}

func (PlusTen) Pointcut() aspect.Pointcut {
	return aspect.And(aspect.Call("*.RetInt"), aspect.This(reflect.TypeFor[ASource]()))
}

func (PlusTen) Advice() aspect.Advice {
	return aspect.Around(func(jp aspect.JoinPoint, proceed aspect.Proceed) ([]any, error) {
		results, err := proceed(jp.Args)
		if err != nil {
			return nil, err
		}

		n, _ := results[0].(int)

		return []any{n + 10}, nil
	})
}

type NotARule struct{}

// stubWeaver returns a fixed transform result.
type stubWeaver struct {
	weaver.NoWeaving

	unit *unit.Unit
	err  error
}

func (s stubWeaver) Transform(string, *unit.Unit) (*unit.Unit, error) { return s.unit, s.err }

func newContext() *core.CallContext {
	return core.NewCallContext(weaver.NewAspectWeaver())
}
