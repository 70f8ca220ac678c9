// Package session ties the loader and the committer to one identity map.
//
//	s := session.New(reg, db, session.WithLogger(log))
//	p, err := session.One[*Person](ctx, s, criteria.Eq("ID", 1))
//	...
//	p.Surname = "Lovelace"
//	ok, err := s.Commit(ctx, uow.Save(personClass, p))
package session
