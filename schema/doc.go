// Package schema describes how classes map onto tables.
//
// A ClassDef names a class, its table, its properties and their fields,
// the primary key of its hierarchy and the inheritance strategy relative
// to its super class:
//
//   - None: a hierarchy root.
//   - SingleTable: stored in the super class table, told apart by the
//     root's discriminator property.
//   - ClassTable: own table joined to the super class table by primary key.
//   - ConcreteTable: one denormalized table holding every inherited property.
//
// Definitions are registered in a Registry, either built in Go or loaded
// from YAML:
//
//	reg := schema.NewRegistry()
//	err := reg.Register(
//		&schema.ClassDef{
//			Name:          "Person",
//			Discriminator: "Type",
//			PrimaryKey:    schema.PrimaryKey{Properties: []string{"ID"}},
//			Properties:    []*schema.Property{{Name: "ID"}, {Name: "Surname"}, {Name: "Type"}},
//			Type:          reflect.TypeOf(Person{}),
//		},
//		&schema.ClassDef{
//			Name:        "Employee",
//			SuperName:   "Person",
//			Inheritance: schema.SingleTable,
//			Properties:  []*schema.Property{{Name: "Salary"}},
//			Type:        reflect.TypeOf(Employee{}),
//		},
//	)
//
// Table and field names default to the inflected class and property names
// ("Person" is stored in "people", "FirstName" in "first_name").
//
// Registration precomputes the root-to-leaf inheritance chain, the property
// index and the physical table layout of every class, so lookups never
// walk the hierarchy again. Registered definitions are immutable.
package schema
