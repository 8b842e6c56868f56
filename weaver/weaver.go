// Package weaver defines the transform step every generated unit passes through before it is
// materialized, and ships two implementations: NoWeaving and the rule-driven AspectWeaver.
package weaver

import (
	"reflect"

	"github.com/toejough/weavetest/unit"
)

// NoWeaving accepts every registration and transforms nothing.
type NoWeaving struct{}

// RegisterRule accepts and ignores t.
func (NoWeaving) RegisterRule(reflect.Type) error { return nil }

// Reset does nothing.
func (NoWeaving) Reset() {}

// Transform returns raw unchanged.
func (NoWeaving) Transform(_ string, raw *unit.Unit) (*unit.Unit, error) { return raw, nil }

// UnregisterRule does nothing.
func (NoWeaving) UnregisterRule(reflect.Type) {}

// Weaver transforms raw generated units. Registration changes affect only units transformed afterwards.
type Weaver interface {
	// RegisterRule adds a rule type. Registering the same type twice has no further effect.
	RegisterRule(t reflect.Type) error
	// UnregisterRule removes a rule type; unknown types are ignored.
	UnregisterRule(t reflect.Type)
	// Reset clears every registration.
	Reset()
	// Transform returns the unit to materialize under name. It never mutates raw.
	Transform(name string, raw *unit.Unit) (*unit.Unit, error)
}
