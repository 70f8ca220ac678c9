// Package testmodel holds the mapped classes shared by package tests.
//
// Three hierarchies cover the inheritance strategies:
//
//	Person (people, discriminator Type)
//	├── Employee   single table
//	│   └── Manager single table
//	└── Contractor single table
//
//	Vehicle (vehicles, discriminator Kind)
//	├── Car   class table (cars)
//	└── Truck class table (trucks)
//
//	Document (documents)
//	└── Invoice concrete table (invoices)
//
// Person has a to-one Department relationship and a many-to-many Projects
// relationship backed by the person_projects link table.
package testmodel

import (
	"reflect"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/mapper/entity"
	"github.com/syssam/mapper/schema"
)

type (
	Person struct {
		entity.Entity
		ID           int64
		Surname      string
		Type         string
		DepartmentID *int64
	}
	Employee struct {
		Person
		Salary decimal.Decimal
	}
	Manager struct {
		Employee
		Reports int
	}
	Contractor struct {
		Person
		Agency string
	}
	Department struct {
		entity.Entity
		ID   int64
		Name string
	}
	Project struct {
		entity.Entity
		ID   int64
		Code string
	}
	Vehicle struct {
		entity.Entity
		ID   int64
		Make string
		Kind string
	}
	Car struct {
		Vehicle
		Doors int
	}
	Truck struct {
		Vehicle
		Payload float64
	}
	Document struct {
		entity.Entity
		ID    uuid.UUID
		Title string
	}
	Invoice struct {
		Document
		Total decimal.Decimal
	}
)

// fields lists the columns not named by convention.
var fields = map[string]string{
	"ID":           "id",
	"DepartmentID": "department_id",
}

func props(names ...string) []*schema.Property {
	out := make([]*schema.Property, len(names))
	for i, n := range names {
		out[i] = &schema.Property{Name: n, Field: fields[n]}
	}
	return out
}

// Classes returns fresh definitions of every test class.
func Classes() []*schema.ClassDef {
	return []*schema.ClassDef{
		{
			Name:          "Person",
			Discriminator: "Type",
			PrimaryKey:    schema.PrimaryKey{Properties: []string{"ID"}},
			Properties:    props("ID", "Surname", "Type", "DepartmentID"),
			Relationships: []*schema.Relationship{
				{Name: "Department", Class: "Department", Keys: []schema.KeyPair{{Owner: "DepartmentID", Related: "ID"}}},
				{
					Name:              "Projects",
					Class:             "Project",
					LinkTable:         "person_projects",
					LinkOwnerFields:   []string{"person_id"},
					LinkRelatedFields: []string{"project_id"},
				},
			},
			Type: reflect.TypeOf(Person{}),
		},
		{
			Name:        "Employee",
			SuperName:   "Person",
			Inheritance: schema.SingleTable,
			Properties:  props("Salary"),
			Type:        reflect.TypeOf(Employee{}),
		},
		{
			Name:        "Manager",
			SuperName:   "Employee",
			Inheritance: schema.SingleTable,
			Properties:  props("Reports"),
			Type:        reflect.TypeOf(Manager{}),
		},
		{
			Name:        "Contractor",
			SuperName:   "Person",
			Inheritance: schema.SingleTable,
			Properties:  props("Agency"),
			Type:        reflect.TypeOf(Contractor{}),
		},
		{
			Name:       "Department",
			PrimaryKey: schema.PrimaryKey{Properties: []string{"ID"}},
			Properties: props("ID", "Name"),
			Type:       reflect.TypeOf(Department{}),
		},
		{
			Name:       "Project",
			PrimaryKey: schema.PrimaryKey{Properties: []string{"ID"}},
			Properties: props("ID", "Code"),
			Type:       reflect.TypeOf(Project{}),
		},
		{
			Name:          "Vehicle",
			Discriminator: "Kind",
			PrimaryKey:    schema.PrimaryKey{Properties: []string{"ID"}},
			Properties:    props("ID", "Make", "Kind"),
			Type:          reflect.TypeOf(Vehicle{}),
		},
		{
			Name:        "Car",
			SuperName:   "Vehicle",
			Inheritance: schema.ClassTable,
			Properties:  props("Doors"),
			Type:        reflect.TypeOf(Car{}),
		},
		{
			Name:        "Truck",
			SuperName:   "Vehicle",
			Inheritance: schema.ClassTable,
			Properties:  props("Payload"),
			Type:        reflect.TypeOf(Truck{}),
		},
		{
			Name:       "Document",
			PrimaryKey: schema.PrimaryKey{Properties: []string{"ID"}, Immutable: true},
			Properties: props("ID", "Title"),
			Type:       reflect.TypeOf(Document{}),
		},
		{
			Name:        "Invoice",
			SuperName:   "Document",
			Inheritance: schema.ConcreteTable,
			Properties:  props("Total"),
			Type:        reflect.TypeOf(Invoice{}),
		},
	}
}

// Registry returns a registry with every test class registered.
func Registry() *schema.Registry {
	r := schema.NewRegistry()
	if err := r.Register(Classes()...); err != nil {
		panic(err)
	}
	return r
}

// DDL creates the sqlite tables backing the test classes.
const DDL = `
CREATE TABLE departments (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE people (
	id INTEGER PRIMARY KEY,
	surname TEXT NOT NULL,
	type TEXT NOT NULL,
	department_id INTEGER REFERENCES departments(id),
	salary TEXT,
	reports INTEGER,
	agency TEXT
);
CREATE TABLE projects (id INTEGER PRIMARY KEY, code TEXT NOT NULL UNIQUE);
CREATE TABLE person_projects (
	person_id INTEGER NOT NULL,
	project_id INTEGER NOT NULL,
	PRIMARY KEY (person_id, project_id)
);
CREATE TABLE vehicles (id INTEGER PRIMARY KEY, make TEXT NOT NULL, kind TEXT NOT NULL);
CREATE TABLE cars (id INTEGER PRIMARY KEY REFERENCES vehicles(id) DEFERRABLE INITIALLY DEFERRED, doors INTEGER NOT NULL);
CREATE TABLE trucks (id INTEGER PRIMARY KEY REFERENCES vehicles(id) DEFERRABLE INITIALLY DEFERRED, payload REAL NOT NULL);
CREATE TABLE documents (id TEXT PRIMARY KEY, title TEXT NOT NULL);
CREATE TABLE invoices (id TEXT PRIMARY KEY, title TEXT NOT NULL, total TEXT NOT NULL);
`
