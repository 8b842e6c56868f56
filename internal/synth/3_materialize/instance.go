// Package materialize turns a (possibly transformed) unit into a callable instance: a dispatch table keyed
// by operation name over the unit's tagged bodies.
package materialize

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/toejough/weavetest/fault"
	"github.com/toejough/weavetest/unit"
)

// Instance is a materialized unit.
type Instance struct {
	id    uuid.UUID
	unit  *unit.Unit
	table map[string]*unit.Operation

	mu     sync.RWMutex
	fields map[string]reflect.Value
}

// New allocates an instance of u without running any construction logic: every declared field starts at
// its zero value.
func New(u *unit.Unit) *Instance {
	inst := &Instance{
		id:     uuid.New(),
		unit:   u,
		table:  make(map[string]*unit.Operation, len(u.Operations)),
		fields: make(map[string]reflect.Value, len(u.Fields)),
	}

	for _, op := range u.Operations {
		inst.table[op.Name] = op
	}

	for _, field := range u.Fields {
		inst.fields[field.Name] = reflect.Zero(field.Type)
	}

	return inst
}

// Bind calls the unit's internal setter with value.
func (i *Instance) Bind(value any) error {
	setter := i.unit.Setter()
	if setter == nil {
		return fault.New(fault.ErrEngine, nil, "unit "+i.unit.Name+" declares no setter", nil)
	}

	args, err := unit.ToValues([]any{value}, setter.In)
	if err != nil {
		return err
	}

	_, err = setter.Body(unit.Frame{Self: i, Op: setter}, args)

	return err
}

// Field returns the current value of a declared field.
func (i *Instance) Field(name string) reflect.Value {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.fields[name]
}

// GeneratedUnit returns the unit this instance was materialized from.
func (i *Instance) GeneratedUnit() *unit.Unit {
	return i.unit
}

// ID identifies the instance in logs.
func (i *Instance) ID() uuid.UUID {
	return i.id
}

// Invoke runs the named public operation with positional arguments, converted strictly to the
// operation's parameter types. Unknown and internal operations are rejected; panics from the body
// propagate.
func (i *Instance) Invoke(name string, args ...any) ([]any, error) {
	op, ok := i.table[name]
	if !ok || op.Internal {
		return nil, fault.New(fault.ErrTargetNotFound, nil,
			fmt.Sprintf("%s has no public operation %q", i.unit.Name, name), nil)
	}

	values, err := unit.ToValues(args, op.In)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", i.unit.Name, name, err)
	}

	results, err := op.Body(unit.Frame{Self: i, Op: op}, values)
	if err != nil {
		return nil, err
	}

	return unit.FromValues(results), nil
}

// Is reports whether the instance is-a t (see unit.Unit.Is).
func (i *Instance) Is(t reflect.Type) bool {
	return i.unit.Is(t)
}

// Method returns a func value of op's signature that invokes it through the dispatch table, so a
// generated instance can be called like any reflected method. The func panics on engine errors.
func (i *Instance) Method(name string) (reflect.Value, bool) {
	op, ok := i.table[name]
	if !ok || op.Internal {
		return reflect.Value{}, false
	}

	fn := reflect.MakeFunc(op.FuncType(), func(in []reflect.Value) []reflect.Value {
		results, err := op.Body(unit.Frame{Self: i, Op: op}, in)
		if err != nil {
			panic(err)
		}

		return results
	})

	return fn, true
}

// Name is the unit name.
func (i *Instance) Name() string {
	return i.unit.Name
}

// Operations lists the public operation signatures.
func (i *Instance) Operations() []unit.Signature {
	public := i.unit.PublicOperations()
	signatures := make([]unit.Signature, 0, len(public))

	for _, op := range public {
		signatures = append(signatures, op.Signature)
	}

	return signatures
}

// SetField replaces the value of a declared field.
func (i *Instance) SetField(name string, value reflect.Value) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.fields[name] = value
}

// String is "{unit name}#{id}".
func (i *Instance) String() string {
	return i.unit.Name + "#" + i.id.String()
}
