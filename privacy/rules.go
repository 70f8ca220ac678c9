package privacy

import (
	"context"
	"slices"

	"github.com/spf13/cast"

	"github.com/syssam/mapper/criteria"
	"github.com/syssam/mapper/query"
	"github.com/syssam/mapper/uow"
)

// Viewer is the caller on whose behalf queries and changes run.
type Viewer interface {
	GetID() string
	GetRoles() []string
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a context carrying viewer.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext returns the viewer of ctx, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a Viewer holding fixed values.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

func (v *SimpleViewer) GetID() string       { return v.UserID }
func (v *SimpleViewer) GetRoles() []string  { return v.Roles }
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer denies when the context has no viewer.
func DenyIfNoViewer() QueryChangeRule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("mapper/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole allows viewers holding role.
func HasRole(role string) QueryChangeRule {
	return HasAnyRole(role)
}

// HasAnyRole allows viewers holding at least one of roles.
func HasAnyRole(roles ...string) QueryChangeRule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		for _, role := range roles {
			if slices.Contains(viewer.GetRoles(), role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner allows changes to instances whose property holds the viewer id.
func IsOwner(property string) ChangeRule {
	return ChangeRuleFunc(func(ctx context.Context, c *uow.Change) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		id, ok := propertyString(c, property)
		if !ok {
			return Skip
		}
		if id == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// TenantRule denies changes to instances whose property differs from the
// viewer tenant, and allows the rest.
func TenantRule(property string) ChangeRule {
	return ChangeRuleFunc(func(ctx context.Context, c *uow.Change) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		tenant, ok := propertyString(c, property)
		if !ok {
			return Skip
		}
		if tenant == viewer.GetTenantID() {
			return Allow
		}
		return Denyf("mapper/privacy: tenant mismatch on %s", c.Class.Name)
	})
}

// TenantFilter narrows queries to rows whose property equals the viewer
// tenant. Queries without a tenant in context are denied.
func TenantFilter(property string) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, q *query.SelectQuery) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Denyf("mapper/privacy: tenant required to query %s", q.Class.Name)
		}
		if err := q.Filter(criteria.Eq(property, viewer.GetTenantID())); err != nil {
			return err
		}
		return Skip
	})
}

func propertyString(c *uow.Change, property string) (string, bool) {
	if _, ok := c.Class.Property(property); !ok {
		return "", false
	}
	v, err := c.Class.Get(c.Obj, property)
	if err != nil {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}
