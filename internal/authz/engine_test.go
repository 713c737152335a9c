package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/boardkit/boardkit/internal/model"
)

type fakeMembershipStore struct {
	memberships map[string]string // "groupID/userID" -> role
	err         error
}

func (s *fakeMembershipStore) GetMembership(_ context.Context, groupID, userID string) (*model.GroupMembership, error) {
	if s.err != nil {
		return nil, s.err
	}
	role, ok := s.memberships[groupID+"/"+userID]
	if !ok {
		return nil, nil
	}
	return &model.GroupMembership{GroupID: groupID, UserID: userID, Role: role}, nil
}

func sessionPrincipal(userID string) *model.Principal {
	return &model.Principal{UserID: userID, Source: model.SourceSession}
}

func keyPrincipal(userID string, scopes ...string) *model.Principal {
	return &model.Principal{UserID: userID, Source: model.SourceAPIKey, KeyID: "key-1", Scopes: scopes}
}

func personalBoard(ownerID string) Resource {
	return Resource{Kind: KindBoard, ID: "board-1", OwnerUserID: ownerID}
}

func groupBoard(groupID string) Resource {
	return Resource{Kind: KindBoard, ID: "board-1", OwnerGroupID: groupID}
}

func TestAuthorize_PersonalOwner(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&fakeMembershipStore{})
	ctx := context.Background()

	for _, action := range []Action{ActionView, ActionEdit, ActionManageMembers, ActionDelete} {
		if err := engine.Authorize(ctx, sessionPrincipal("alice"), personalBoard("alice"), action); err != nil {
			t.Errorf("Owner should be allowed %s, got: %v", action, err)
		}
	}
}

func TestAuthorize_NonOwnerDenied(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&fakeMembershipStore{})

	err := engine.Authorize(context.Background(), sessionPrincipal("bob"), personalBoard("alice"), ActionView)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Non-owner should be forbidden, got: %v", err)
	}
}

func TestAuthorize_AdminBypassesOwnership(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&fakeMembershipStore{})
	admin := &model.Principal{UserID: "root", Source: model.SourceSession, IsAdmin: true}

	if err := engine.Authorize(context.Background(), admin, personalBoard("alice"), ActionDelete); err != nil {
		t.Errorf("Admin should be allowed, got: %v", err)
	}
}

func TestAuthorize_GroupRoles(t *testing.T) {
	t.Parallel()

	store := &fakeMembershipStore{memberships: map[string]string{
		"team/owner-user":  model.RoleOwner,
		"team/admin-user":  model.RoleAdmin,
		"team/member-user": model.RoleMember,
	}}
	engine := NewEngine(store)
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  string
		action  Action
		allowed bool
	}{
		{"owner can delete", "owner-user", ActionDelete, true},
		{"owner can manage members", "owner-user", ActionManageMembers, true},
		{"admin can delete", "admin-user", ActionDelete, true},
		{"admin can manage members", "admin-user", ActionManageMembers, true},
		{"member can view", "member-user", ActionView, true},
		{"member can edit", "member-user", ActionEdit, true},
		{"member cannot delete", "member-user", ActionDelete, false},
		{"member cannot manage members", "member-user", ActionManageMembers, false},
		{"outsider cannot view", "stranger", ActionView, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := engine.Authorize(ctx, sessionPrincipal(tt.userID), groupBoard("team"), tt.action)
			if tt.allowed && err != nil {
				t.Errorf("Expected allow, got: %v", err)
			}
			if !tt.allowed && !errors.Is(err, ErrForbidden) {
				t.Errorf("Expected ErrForbidden, got: %v", err)
			}
		})
	}
}

func TestAuthorize_ScopeIntersection(t *testing.T) {
	t.Parallel()

	store := &fakeMembershipStore{memberships: map[string]string{
		"team/alice": model.RoleOwner,
	}}
	engine := NewEngine(store)
	ctx := context.Background()

	tests := []struct {
		name    string
		scopes  []string
		action  Action
		allowed bool
	}{
		// A read-only key held by a group owner can view but nothing else.
		{"read key can view", []string{model.ScopeRead}, ActionView, true},
		{"read key cannot edit", []string{model.ScopeRead}, ActionEdit, false},
		{"read key cannot delete", []string{model.ScopeRead}, ActionDelete, false},
		{"write key can edit", []string{model.ScopeWrite}, ActionEdit, true},
		{"write key cannot manage members", []string{model.ScopeWrite}, ActionManageMembers, false},
		{"admin key inherits full role", []string{model.ScopeAdmin}, ActionDelete, true},
		{"scopeless key can do nothing", nil, ActionView, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := engine.Authorize(ctx, keyPrincipal("alice", tt.scopes...), groupBoard("team"), tt.action)
			if tt.allowed && err != nil {
				t.Errorf("Expected allow, got: %v", err)
			}
			if !tt.allowed && !errors.Is(err, ErrForbidden) {
				t.Errorf("Expected ErrForbidden, got: %v", err)
			}
		})
	}
}

func TestAuthorize_ScopeCannotExceedRole(t *testing.T) {
	t.Parallel()

	store := &fakeMembershipStore{memberships: map[string]string{
		"team/bob": model.RoleMember,
	}}
	engine := NewEngine(store)

	// An admin-scoped key held by a plain member is still capped by the
	// member role.
	err := engine.Authorize(context.Background(), keyPrincipal("bob", model.ScopeAdmin), groupBoard("team"), ActionDelete)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Scope must not grant beyond the role, got: %v", err)
	}
}

func TestAuthorize_OrphanedResource(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&fakeMembershipStore{})
	orphan := Resource{Kind: KindBoard, ID: "board-1"}

	err := engine.Authorize(context.Background(), sessionPrincipal("alice"), orphan, ActionView)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Orphaned resource should deny non-admins, got: %v", err)
	}

	admin := &model.Principal{UserID: "root", Source: model.SourceSession, IsAdmin: true}
	if err := engine.Authorize(context.Background(), admin, orphan, ActionView); err != nil {
		t.Errorf("Admin should still reach orphaned resources, got: %v", err)
	}
}

func TestAuthorize_MembershipLookupError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("connection refused")
	engine := NewEngine(&fakeMembershipStore{err: wantErr})

	err := engine.Authorize(context.Background(), sessionPrincipal("alice"), groupBoard("team"), ActionView)
	if !errors.Is(err, wantErr) {
		t.Errorf("Infrastructure error should propagate, got: %v", err)
	}
}

func TestAuthorize_UnknownAction(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&fakeMembershipStore{})
	err := engine.Authorize(context.Background(), sessionPrincipal("alice"), personalBoard("alice"), Action("transmogrify"))
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Unknown action should deny, got: %v", err)
	}
}

func TestAuthorize_Deterministic(t *testing.T) {
	t.Parallel()

	store := &fakeMembershipStore{memberships: map[string]string{
		"team/alice": model.RoleMember,
	}}
	engine := NewEngine(store)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := engine.Authorize(ctx, keyPrincipal("alice", model.ScopeRead), groupBoard("team"), ActionView); err != nil {
			t.Fatalf("Decision should be stable across calls, iteration %d: %v", i, err)
		}
	}
}

func TestIntersect(t *testing.T) {
	t.Parallel()

	got := Intersect(
		[]Capability{CapRead, CapWrite, CapDelete},
		[]Capability{CapWrite, CapDelete, CapManageMembers},
	)
	want := []Capability{CapWrite, CapDelete}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
		}
	}

	if out := Intersect([]Capability{CapRead}, nil); len(out) != 0 {
		t.Errorf("Intersection with empty set should be empty, got %v", out)
	}
}

func TestScopeCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		scopes []string
		want   []Capability
	}{
		{"read", []string{model.ScopeRead}, []Capability{CapRead}},
		{"write implies read", []string{model.ScopeWrite}, []Capability{CapRead, CapWrite}},
		{"admin grants all", []string{model.ScopeAdmin}, allCapabilities},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ScopeCapabilities(tt.scopes)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}
