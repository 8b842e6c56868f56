package fault_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	. "github.com/onsi/gomega"
	"pgregory.net/rapid"

	"github.com/toejough/weavetest/fault"
)

func TestError_IsMatchesKindAndCallTargetFamily(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	notFound := fault.New(fault.ErrTargetNotFound, reflect.TypeFor[int](), "Nope()", nil)
	notPublic := fault.New(fault.ErrNotPubliclyCallable, nil, "secret()", nil)

	g.Expect(notFound).To(MatchError(fault.ErrTargetNotFound))
	g.Expect(notFound).To(MatchError(fault.ErrInvalidCallTarget))
	g.Expect(notFound).NotTo(MatchError(fault.ErrNotPubliclyCallable))
	g.Expect(notPublic).To(MatchError(fault.ErrNotPubliclyCallable))
	g.Expect(notPublic).To(MatchError(fault.ErrInvalidCallTarget))
	g.Expect(notPublic).NotTo(MatchError(fault.ErrTargetNotFound))
}

func TestError_MessageAndUnwrap(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cause := errors.New("boom")
	err := fault.New(fault.ErrUnproxiableType, reflect.TypeFor[string](), "cannot be a base", cause)

	g.Expect(err.Error()).To(Equal("unproxiable type: cannot be a base (string): boom"))
	g.Expect(errors.Unwrap(err)).To(BeIdenticalTo(cause))
	g.Expect(errors.Is(err, cause)).To(BeTrue())
}

func TestTargetError_CauseIsThePanicValue(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	boom := errors.New("boom")
	err := &fault.TargetError{Op: "ThrowingMethod", Value: boom}

	g.Expect(err.Cause()).To(BeIdenticalTo(boom))
	g.Expect(errors.Is(err, boom)).To(BeTrue())
	g.Expect(err.Error()).To(ContainSubstring("exception thrown by target ThrowingMethod"))
}

func TestTargetError_NonErrorPanicBecomesPanicError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	err := &fault.TargetError{Op: "ThrowingMethod", Value: "kaboom"}

	var panicErr *fault.PanicError

	g.Expect(errors.As(err.Cause(), &panicErr)).To(BeTrue())
	g.Expect(panicErr.Value).To(Equal("kaboom"))
}

func TestWrap_NeverRewrapsTaxonomyErrors(t *testing.T) {
	t.Parallel()

	taxonomy := []error{
		fault.ErrArgumentMismatch, fault.ErrEngine, fault.ErrInvalidCallTarget, fault.ErrNotAConcreteRule,
		fault.ErrNotARule, fault.ErrNotAnInstance, fault.ErrNotPubliclyCallable, fault.ErrTargetNotFound,
		fault.ErrTransform, fault.ErrUncallableType, fault.ErrUnproxiableType, fault.ErrUnsupportedSourceType,
	}

	rapid.Check(t, func(rt *rapid.T) {
		kind := rapid.SampledFrom(taxonomy).Draw(rt, "kind")
		msg := rapid.String().Draw(rt, "msg")
		g := NewWithT(rt)

		direct := fmt.Errorf("context: %w", kind)
		typed := fault.New(kind, nil, msg, nil)

		g.Expect(fault.Wrap(direct, msg)).To(BeIdenticalTo(direct))
		g.Expect(fault.Wrap(typed, msg)).To(BeIdenticalTo(typed))
	})
}

func TestWrap_WrapsForeignErrorsOnceInEngineError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cause := errors.New("unexpected")

	wrapped := fault.Wrap(cause, "creating proxy")

	g.Expect(wrapped).To(MatchError(fault.ErrEngine))
	g.Expect(errors.Is(wrapped, cause)).To(BeTrue())
	g.Expect(fault.Wrap(wrapped, "again")).To(BeIdenticalTo(wrapped))
	g.Expect(fault.Wrap(nil, "nothing")).To(Succeed())
}
