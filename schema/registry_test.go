package schema_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/mapper"
	"github.com/syssam/mapper/internal/testmodel"
	"github.com/syssam/mapper/schema"
)

func TestRegistryLookup(t *testing.T) {
	t.Parallel()
	reg := testmodel.Registry()

	d, err := reg.Class("Employee")
	require.NoError(t, err)
	assert.Equal(t, "Employee", d.Name)

	_, err = reg.Class("Nope")
	require.Error(t, err)
	assert.True(t, mapper.IsConfigurationError(err))

	d, err = reg.ClassOf(&testmodel.Manager{})
	require.NoError(t, err)
	assert.Equal(t, "Manager", d.Name)

	d, err = schema.ClassFor[testmodel.Car](reg)
	require.NoError(t, err)
	assert.Equal(t, "Car", d.Name)

	_, err = reg.ClassOf(&struct{ ID int }{})
	assert.True(t, mapper.IsConfigurationError(err))

	assert.Len(t, reg.Classes(), len(testmodel.Classes()))
	assert.Panics(t, func() { reg.MustClass("Nope") })
}

func TestRegistryByClassID(t *testing.T) {
	t.Parallel()
	reg := testmodel.Registry()
	person := reg.MustClass("Person")

	d, ok := reg.ByClassID(person, "Manager")
	require.True(t, ok)
	assert.Equal(t, "Manager", d.Name)

	d, ok = reg.ByClassID(reg.MustClass("Employee"), "Person")
	require.True(t, ok)
	assert.Equal(t, "Person", d.Name)

	_, ok = reg.ByClassID(person, "Car")
	assert.False(t, ok)
}

func TestRegisterErrors(t *testing.T) {
	t.Parallel()

	key := schema.PrimaryKey{Properties: []string{"ID"}}
	idProps := func(extra ...string) []*schema.Property {
		ps := []*schema.Property{{Name: "ID"}}
		for _, e := range extra {
			ps = append(ps, &schema.Property{Name: e})
		}
		return ps
	}
	tests := []struct {
		name string
		defs []*schema.ClassDef
	}{
		{"no_name", []*schema.ClassDef{{}}},
		{"no_key", []*schema.ClassDef{{Name: "A", Properties: idProps()}}},
		{"unknown_key", []*schema.ClassDef{{Name: "A", PrimaryKey: schema.PrimaryKey{Properties: []string{"Code"}}, Properties: idProps()}}},
		{"duplicate", []*schema.ClassDef{
			{Name: "A", PrimaryKey: key, Properties: idProps()},
			{Name: "A", PrimaryKey: key, Properties: idProps()},
		}},
		{"unknown_super", []*schema.ClassDef{{Name: "B", SuperName: "A", Inheritance: schema.ClassTable}}},
		{"super_without_strategy", []*schema.ClassDef{
			{Name: "A", PrimaryKey: key, Properties: idProps()},
			{Name: "B", SuperName: "A"},
		}},
		{"strategy_without_super", []*schema.ClassDef{{Name: "A", Inheritance: schema.SingleTable, PrimaryKey: key, Properties: idProps()}}},
		{"cycle", []*schema.ClassDef{
			{Name: "A", SuperName: "B", Inheritance: schema.ClassTable},
			{Name: "B", SuperName: "A", Inheritance: schema.ClassTable},
		}},
		{"single_table_without_discriminator", []*schema.ClassDef{
			{Name: "A", PrimaryKey: key, Properties: idProps()},
			{Name: "B", SuperName: "A", Inheritance: schema.SingleTable},
		}},
		{"unknown_discriminator", []*schema.ClassDef{{Name: "A", Discriminator: "Kind", PrimaryKey: key, Properties: idProps()}}},
		{"property_twice", []*schema.ClassDef{
			{Name: "A", PrimaryKey: key, Properties: idProps("Name")},
			{Name: "B", SuperName: "A", Inheritance: schema.ClassTable, Properties: idProps()},
		}},
		{"duplicate_class_id", []*schema.ClassDef{
			{Name: "A", Discriminator: "Kind", PrimaryKey: key, Properties: idProps("Kind")},
			{Name: "B", SuperName: "A", Inheritance: schema.SingleTable, ClassID: "A"},
		}},
		{"missing_struct_field", []*schema.ClassDef{
			{Name: "A", PrimaryKey: key, Properties: idProps("Missing"), Type: reflect.TypeOf(struct{ ID int }{})},
		}},
		{"not_a_struct", []*schema.ClassDef{{Name: "A", PrimaryKey: key, Properties: idProps(), Type: reflect.TypeOf(0)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := schema.NewRegistry()
			err := reg.Register(tt.defs...)
			require.Error(t, err)
			assert.True(t, mapper.IsConfigurationError(err), "got %v", err)
			assert.Empty(t, reg.Classes(), "failed registration leaves the registry unchanged")
		})
	}
}

func TestRegisterAcrossCalls(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(&schema.ClassDef{
		Name:          "Shape",
		Discriminator: "Kind",
		PrimaryKey:    schema.PrimaryKey{Properties: []string{"ID"}},
		Properties:    []*schema.Property{{Name: "ID"}, {Name: "Kind"}},
	}))
	require.NoError(t, reg.Register(&schema.ClassDef{
		Name:        "Circle",
		SuperName:   "Shape",
		Inheritance: schema.SingleTable,
		Properties:  []*schema.Property{{Name: "Radius"}},
	}))

	shape := reg.MustClass("Shape")
	assert.Equal(t, []string{"Circle"}, names(shape.Descendants()))
	assert.Equal(t, "shapes", reg.MustClass("Circle").Table)
}
