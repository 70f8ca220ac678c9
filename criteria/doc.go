// Package criteria builds immutable query filters over class properties.
//
//	c := criteria.And(
//		criteria.Eq("Surname", "Mashraki"),
//		criteria.Or(
//			criteria.Gt("Salary", 1000),
//			criteria.Eq("DepartmentID", nil), // DepartmentID IS NULL
//		),
//		criteria.InValues("Type", "Employee", "Manager"),
//	)
//
// Properties are named by class property name, never by column. Dotted
// paths such as "Department.Name" navigate to-one relationships.
package criteria
