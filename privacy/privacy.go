package privacy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/syssam/mapper/query"
	"github.com/syssam/mapper/schema"
	"github.com/syssam/mapper/uow"
)

// Policy decision sentinel errors.
//
// Rules return these, possibly wrapped, to tell how evaluation goes on:
//
//	if errors.Is(err, privacy.Allow) { ... }
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow ends the evaluation with an allow decision.
	Allow = errors.New("mapper/privacy: allow rule")

	// Deny ends the evaluation with a deny decision.
	Deny = errors.New("mapper/privacy: deny rule")

	// Skip abstains and lets the next rule decide.
	Skip = errors.New("mapper/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

type (
	// QueryRule decides whether a class query may run, and may narrow it
	// with SelectQuery.Filter.
	QueryRule interface {
		EvalQuery(context.Context, *query.SelectQuery) error
	}

	// QueryPolicy combines query rules.
	QueryPolicy []QueryRule

	// ChangeRule decides whether a pending change may be written.
	ChangeRule interface {
		EvalChange(context.Context, *uow.Change) error
	}

	// ChangePolicy combines change rules.
	ChangePolicy []ChangeRule

	// QueryChangeRule groups query and change rules.
	QueryChangeRule interface {
		QueryRule
		ChangeRule
	}
)

// QueryRuleFunc adapts a function to a QueryRule.
type QueryRuleFunc func(context.Context, *query.SelectQuery) error

// EvalQuery returns f(ctx, q).
func (f QueryRuleFunc) EvalQuery(ctx context.Context, q *query.SelectQuery) error {
	return f(ctx, q)
}

// ChangeRuleFunc adapts a function to a ChangeRule.
type ChangeRuleFunc func(context.Context, *uow.Change) error

// EvalChange returns f(ctx, c).
func (f ChangeRuleFunc) EvalChange(ctx context.Context, c *uow.Change) error {
	return f(ctx, c)
}

// AlwaysAllowRule returns a rule allowing every query and change.
func AlwaysAllowRule() QueryChangeRule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule denying every query and change.
func AlwaysDenyRule() QueryChangeRule {
	return fixedDecision{Deny}
}

// ContextRule returns a rule deciding from the context alone. A nil
// result is the same as Skip.
func ContextRule(eval func(context.Context) error) QueryChangeRule {
	return contextDecision{eval}
}

// OnAction evaluates rule only for changes resolving to one of actions.
func OnAction(rule ChangeRule, actions ...uow.Action) ChangeRule {
	return ChangeRuleFunc(func(ctx context.Context, c *uow.Change) error {
		if slices.Contains(actions, c.Action()) {
			return rule.EvalChange(ctx, c)
		}
		return Skip
	})
}

// DenyActionRule returns a rule denying changes resolving to one of actions.
func DenyActionRule(actions ...uow.Action) ChangeRule {
	rule := ChangeRuleFunc(func(_ context.Context, c *uow.Change) error {
		return Denyf("mapper/privacy: %s of %s is not allowed", c.Action(), c.Class.Name)
	})
	return OnAction(rule, actions...)
}

// OnClass evaluates rule only for queries and changes of the named classes
// or their subclasses.
func OnClass(rule QueryChangeRule, classes ...string) QueryChangeRule {
	return classRule{rule: rule, classes: classes}
}

type classRule struct {
	rule    QueryChangeRule
	classes []string
}

func (r classRule) match(def *schema.ClassDef) bool {
	for c := def; c != nil; c = c.Super() {
		if slices.Contains(r.classes, c.Name) {
			return true
		}
	}
	return false
}

func (r classRule) EvalQuery(ctx context.Context, q *query.SelectQuery) error {
	if !r.match(q.Class) {
		return Skip
	}
	return r.rule.EvalQuery(ctx, q)
}

func (r classRule) EvalChange(ctx context.Context, c *uow.Change) error {
	if !r.match(c.Class) {
		return Skip
	}
	return r.rule.EvalChange(ctx, c)
}

// Policy groups query and change policies. It satisfies the policy hooks
// of loader, uow and session.
type Policy struct {
	Query  QueryPolicy
	Change ChangePolicy
}

// EvalQuery evaluates the query policy. An Allow decision yields nil.
func (p Policy) EvalQuery(ctx context.Context, q *query.SelectQuery) error {
	return final(ctx, p.Query.EvalQuery(ctx, q))
}

// EvalChange evaluates the change policy. An Allow decision yields nil.
func (p Policy) EvalChange(ctx context.Context, c *uow.Change) error {
	return final(ctx, p.Change.EvalChange(ctx, c))
}

// final applies a decision attached to ctx, then maps allow and skip to nil.
func final(ctx context.Context, decision error) error {
	if d, ok := DecisionFromContext(ctx); ok {
		return d
	}
	if decision == nil || errors.Is(decision, Allow) || errors.Is(decision, Skip) {
		return nil
	}
	return decision
}

// EvalQuery runs the rules in order until one decides.
func (policies QueryPolicy) EvalQuery(ctx context.Context, q *query.SelectQuery) error {
	for _, rule := range policies {
		switch decision := rule.EvalQuery(ctx, q); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

// EvalChange runs the rules in order until one decides.
func (policies ChangePolicy) EvalChange(ctx context.Context, c *uow.Change) error {
	for _, rule := range policies {
		switch decision := rule.EvalChange(ctx, c); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

type decisionCtxKey struct{}

// DecisionContext returns a context carrying decision, which then
// overrides every policy evaluated under it. Skip and nil leave parent as is.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext returns the decision attached to ctx. An Allow
// decision is reported as nil.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalQuery(context.Context, *query.SelectQuery) error {
	return f.decision
}

func (f fixedDecision) EvalChange(context.Context, *uow.Change) error {
	return f.decision
}

type contextDecision struct {
	eval func(context.Context) error
}

func (c contextDecision) EvalQuery(ctx context.Context, _ *query.SelectQuery) error {
	return c.eval(ctx)
}

func (c contextDecision) EvalChange(ctx context.Context, _ *uow.Change) error {
	return c.eval(ctx)
}
