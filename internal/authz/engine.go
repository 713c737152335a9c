package authz

import (
	"context"
	"errors"
	"slices"

	"github.com/boardkit/boardkit/internal/model"
)

// ErrForbidden indicates a valid identity with insufficient permission.
// Distinct from an authentication failure: the engine assumes identity
// has already been established.
var ErrForbidden = errors.New("forbidden")

// ResourceKind identifies the type of a protected resource.
type ResourceKind string

// Resource kinds.
const (
	KindBoard ResourceKind = "board"
	KindGroup ResourceKind = "group"
)

// Resource is a reference to a protected resource and its access-control
// root. Exactly one of OwnerUserID and OwnerGroupID is set for owned
// resources; neither is set for orphaned ones.
type Resource struct {
	Kind         ResourceKind
	ID           string
	OwnerUserID  string
	OwnerGroupID string
}

// BoardResource builds a Resource reference from a board.
func BoardResource(b *model.Board) Resource {
	res := Resource{Kind: KindBoard, ID: b.ID}
	if b.OwnerID != nil {
		res.OwnerUserID = *b.OwnerID
	}
	if b.GroupID != nil {
		res.OwnerGroupID = *b.GroupID
	}
	return res
}

// GroupResource builds a Resource reference for a group itself.
// Group operations (membership changes, deletion) are authorized against
// the group as its own access-control root.
func GroupResource(g *model.Group) Resource {
	return Resource{Kind: KindGroup, ID: g.ID, OwnerGroupID: g.ID}
}

// MembershipStore looks up a user's membership in a group.
// Implementations return (nil, nil) when no membership exists.
type MembershipStore interface {
	GetMembership(ctx context.Context, groupID, userID string) (*model.GroupMembership, error)
}

// Engine resolves allow/deny decisions by walking the ownership
// hierarchy: administrator flag, then personal ownership, then group
// membership role. API-key principals are additionally capped by the
// intersection of the role-derived capabilities with the key's scopes.
type Engine struct {
	memberships MembershipStore
}

// NewEngine creates an authorization engine.
func NewEngine(memberships MembershipStore) *Engine {
	return &Engine{memberships: memberships}
}

// Authorize decides whether the principal may perform action on the
// resource. Returns nil on allow, ErrForbidden on deny, or an
// infrastructure error if the membership lookup failed.
func (e *Engine) Authorize(ctx context.Context, p *model.Principal, res Resource, action Action) error {
	required, ok := actionCapability[action]
	if !ok {
		return ErrForbidden
	}

	roleCaps, err := e.roleCapabilities(ctx, p, res)
	if err != nil {
		return err
	}

	effective := roleCaps
	if p.Source == model.SourceAPIKey {
		effective = Intersect(roleCaps, ScopeCapabilities(p.Scopes))
	}

	if !slices.Contains(effective, required) {
		return ErrForbidden
	}
	return nil
}

// roleCapabilities resolves the capability set the principal derives
// from ownership, before any scope intersection.
func (e *Engine) roleCapabilities(ctx context.Context, p *model.Principal, res Resource) ([]Capability, error) {
	// Administrators may do anything.
	if p.IsAdmin {
		return slices.Clone(allCapabilities), nil
	}

	// Personal ownership implies all actions on the resource.
	if res.OwnerUserID != "" && res.OwnerUserID == p.UserID {
		return slices.Clone(allCapabilities), nil
	}

	// Group ownership: the membership role decides.
	if res.OwnerGroupID != "" {
		membership, err := e.memberships.GetMembership(ctx, res.OwnerGroupID, p.UserID)
		if err != nil {
			return nil, err
		}
		if membership == nil {
			return nil, nil
		}
		return RoleCapabilities(membership.Role), nil
	}

	// No ownership path matched.
	return nil, nil
}
