// Package fault holds the error taxonomy shared by the synthesis engine, its weavers and the public facade.
//
// Every failure the engine reports is either one of the sentinels below (matched with errors.Is), an
// *Error carrying one of them as its Kind, or a *TargetError wrapping a panic raised by a real target.
package fault

import (
	"errors"
	"fmt"
	"reflect"
)

// Exported variables.
var (
	ErrArgumentMismatch      = errors.New("argument mismatch")
	ErrEngine                = errors.New("weavetest engine error")
	ErrInvalidCallTarget     = errors.New("invalid call target")
	ErrNotAConcreteRule      = errors.New("not a concrete rule")
	ErrNotARule              = errors.New("not a rule")
	ErrNotAnInstance         = errors.New("not an instance to proxy")
	ErrNotPubliclyCallable   = errors.New("method exists but is not publicly callable")
	ErrTargetNotFound        = errors.New("target method not found")
	ErrTransform             = errors.New("transform error")
	ErrUncallableType        = errors.New("uncallable type")
	ErrUnproxiableType       = errors.New("unproxiable type")
	ErrUnsupportedSourceType = errors.New("unsupported source type")
)

// Error is a taxonomy error: a Kind sentinel, the participating type when there is one, a message and the
// original cause.
type Error struct {
	Kind  error
	Type  reflect.Type
	Msg   string
	Cause error
}

// New builds a taxonomy error of the given kind.
func New(kind error, typ reflect.Type, msg string, cause error) *Error {
	return &Error{Kind: kind, Type: typ, Msg: msg, Cause: cause}
}

// Error formats as "{kind}: {msg} ({type}): {cause}", omitting empty parts.
func (e *Error) Error() string {
	text := e.Kind.Error()

	if e.Msg != "" {
		text += ": " + e.Msg
	}

	if e.Type != nil {
		text += fmt.Sprintf(" (%v)", e.Type)
	}

	if e.Cause != nil {
		text += ": " + e.Cause.Error()
	}

	return text
}

// Is matches the Kind sentinel. ErrTargetNotFound and ErrNotPubliclyCallable also match
// ErrInvalidCallTarget.
func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}

	if target == ErrInvalidCallTarget {
		return e.Kind == ErrTargetNotFound || e.Kind == ErrNotPubliclyCallable
	}

	return false
}

// Unwrap returns the original cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// PanicError reports a target panic whose value was not an error.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("target panicked: %v", e.Value)
}

// TargetError carries a panic raised by the real invoked operation, so callers can tell "the call apparatus
// failed" from "the target legitimately panicked".
type TargetError struct {
	Op    string
	Value any
}

// Cause returns the panic value when it is an error, or a *PanicError holding it otherwise.
func (e *TargetError) Cause() error {
	if err, ok := e.Value.(error); ok {
		return err
	}

	return &PanicError{Value: e.Value}
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("exception thrown by target %s: %v", e.Op, e.Value)
}

// Unwrap returns the cause.
func (e *TargetError) Unwrap() error {
	return e.Cause()
}

// IsTaxonomy reports whether err already belongs to this taxonomy.
func IsTaxonomy(err error) bool {
	var (
		typed  *Error
		target *TargetError
	)

	if errors.As(err, &typed) || errors.As(err, &target) {
		return true
	}

	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return true
		}
	}

	return false
}

// Wrap wraps an unanticipated failure in ErrEngine. Nil stays nil and taxonomy errors are returned as is.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}

	if IsTaxonomy(err) {
		return err
	}

	return New(ErrEngine, nil, msg, err)
}

// unexported variables.
var (
	//nolint:gochecknoglobals // fixed list of taxonomy sentinels
	kinds = []error{
		ErrArgumentMismatch, ErrEngine, ErrInvalidCallTarget, ErrNotAConcreteRule, ErrNotARule,
		ErrNotAnInstance, ErrNotPubliclyCallable, ErrTargetNotFound, ErrTransform, ErrUncallableType,
		ErrUnproxiableType, ErrUnsupportedSourceType,
	}
)
