// Package privacy provides policies deciding which class queries may run
// and which changes may be committed.
//
// A policy is a list of rules evaluated in order until one decides:
//
//   - Allow grants access and stops evaluation
//   - Deny refuses access and stops evaluation
//   - Skip passes to the next rule
//
// A policy running out of rules allows. Query rules may also narrow a
// query, which is how row filters such as TenantFilter work:
//
//	policy := privacy.Policy{
//	    Query: privacy.QueryPolicy{
//	        privacy.DenyIfNoViewer(),
//	        privacy.TenantFilter("TenantID"),
//	    },
//	    Change: privacy.ChangePolicy{
//	        privacy.DenyIfNoViewer(),
//	        privacy.DenyActionRule(uow.ActionDelete),
//	        privacy.HasRole("admin"),
//	        privacy.IsOwner("OwnerID"),
//	        privacy.AlwaysDenyRule(),
//	    },
//	}
//	s := session.New(reg, db, session.WithPolicy(policy))
//
// DecisionContext attaches a decision that overrides every policy, for
// example to let system jobs bypass them:
//
//	ctx = privacy.DecisionContext(ctx, privacy.Allow)
package privacy
