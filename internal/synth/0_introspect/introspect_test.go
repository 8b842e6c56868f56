package introspect_test

import (
	"reflect"
	"testing"

	. "github.com/onsi/gomega"

	introspect "github.com/toejough/weavetest/internal/synth/0_introspect"
	"github.com/toejough/weavetest/unit"
)

type Building interface {
	Floors() int
}

type House struct{}

func (House) Floors() int { return 2 }

func (*House) Paint(color string) {}

// House__Enhanced__x stands in for a type generated by another tool.
type House__Enhanced__x struct {
	House
}

type Loop__gen struct {
	*Loop__gen
}

type Vault struct{}

func (Vault) Sealed() {}

type fakeGenerated struct {
	u *unit.Unit
}

func (f fakeGenerated) GeneratedUnit() *unit.Unit { return f.u }

func TestCapabilities_DeclaredThenGeneratedWithoutMarkers(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	building := reflect.TypeFor[Building]()
	generated := fakeGenerated{u: &unit.Unit{Capabilities: []reflect.Type{
		reflect.TypeFor[unit.ForwardingProxy](), reflect.TypeFor[error](), building,
	}}}

	capabilities := introspect.Capabilities(generated, building, reflect.TypeFor[House]())

	g.Expect(capabilities).To(Equal([]reflect.Type{building, reflect.TypeFor[error]()}))
}

func TestImplements(t *testing.T) {
	t.Parallel()

	building := reflect.TypeFor[Building]()
	floors := unit.SignatureOf("Floors", reflect.TypeFor[func() int](), false)
	withFloors := fakeGenerated{u: &unit.Unit{Operations: []*unit.Operation{{Signature: floors}}}}
	withInternal := fakeGenerated{u: &unit.Unit{Operations: []*unit.Operation{{Signature: floors, Internal: true}}}}

	for _, tc := range []struct {
		name     string
		value    any
		iface    reflect.Type
		expected bool
	}{
		{"method set", House{}, building, true},
		{"missing method", Vault{}, building, false},
		{"non-interface", House{}, reflect.TypeFor[House](), false},
		{"nil value", nil, building, false},
		{"generated with the operation", withFloors, building, true},
		{"generated without it", fakeGenerated{u: &unit.Unit{}}, building, false},
		{"generated with an internal operation", withInternal, building, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			g.Expect(introspect.Implements(tc.value, tc.iface)).To(Equal(tc.expected))
		})
	}
}

func TestIsExtensible(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name       string
		t          reflect.Type
		extensible bool
	}{
		{"named struct", reflect.TypeFor[House](), true},
		{"pointer to named struct", reflect.TypeFor[*House](), true},
		{"named interface", reflect.TypeFor[Building](), true},
		{"anonymous struct", reflect.TypeFor[struct{}](), false},
		{"basic kind", reflect.TypeFor[int](), false},
		{"func", reflect.TypeFor[func()](), false},
		{"sealed", reflect.TypeFor[Vault](), false},
		{"nil", nil, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			g.Expect(introspect.IsExtensible(tc.t)).To(Equal(tc.extensible))
		})
	}
}

func TestIsPrimitive(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(introspect.IsPrimitive(reflect.TypeFor[string]())).To(BeTrue())
	g.Expect(introspect.IsPrimitive(reflect.TypeFor[float64]())).To(BeTrue())
	g.Expect(introspect.IsPrimitive(reflect.TypeFor[House]())).To(BeFalse())
	g.Expect(introspect.IsPrimitive(nil)).To(BeFalse())
}

func TestNames(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(introspect.SimpleName(reflect.TypeFor[*House]())).To(Equal("House"))
	g.Expect(introspect.FullName(reflect.TypeFor[*House]())).To(
		Equal("github.com/toejough/weavetest/internal/synth/0_introspect_test.House"))
	g.Expect(introspect.FullName(reflect.TypeFor[int]())).To(Equal("int"))
}

func TestPublicMethods_BaseThenCapabilitiesDeduplicated(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	methods := introspect.PublicMethods(reflect.TypeFor[*House](), []reflect.Type{
		reflect.TypeFor[Building](), reflect.TypeFor[unit.ForwardingProxy](),
	})

	names := make([]string, 0, len(methods))
	for _, method := range methods {
		names = append(names, method.Name)
	}

	g.Expect(names).To(Equal([]string{"Floors", "Paint"}))
	g.Expect(methods[1].In).To(Equal([]reflect.Type{reflect.TypeFor[string]()}))
	g.Expect(introspect.PublicMethods(reflect.TypeFor[unit.Object](), nil)).To(BeEmpty())
}

func TestResolveBase(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name  string
		value any
		base  reflect.Type
	}{
		{"real value is its own type", House{}, reflect.TypeFor[House]()},
		{"real pointer is its own type", &House{}, reflect.TypeFor[*House]()},
		{"name marker walks to the embedded parent", House__Enhanced__x{}, reflect.TypeFor[House]()},
		{"anonymous struct walks to the object root", struct{ n int }{}, reflect.TypeFor[unit.Object]()},
		{"self embedding terminates at the object root", Loop__gen{}, reflect.TypeFor[unit.Object]()},
		{"nil is the object root", nil, reflect.TypeFor[unit.Object]()},
		{
			"generated units resolve to their base",
			fakeGenerated{u: &unit.Unit{Base: reflect.TypeFor[House]()}},
			reflect.TypeFor[House](),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			g.Expect(introspect.ResolveBase(tc.value)).To(Equal(tc.base))
		})
	}
}
