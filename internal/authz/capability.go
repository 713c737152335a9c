// Package authz resolves effective permissions for authenticated
// principals against board resources.
package authz

import (
	"slices"

	"github.com/boardkit/boardkit/internal/model"
)

// Capability is an atomic permission on a resource.
type Capability string

// Capabilities on boards.
const (
	CapRead          Capability = "read"
	CapWrite         Capability = "write"
	CapManageMembers Capability = "manage_members"
	CapDelete        Capability = "delete"
)

// allCapabilities is the full capability set.
var allCapabilities = []Capability{CapRead, CapWrite, CapManageMembers, CapDelete}

// Action is a requested operation on a resource.
type Action string

// Actions a handler can request authorization for.
const (
	ActionView          Action = "view"
	ActionEdit          Action = "edit"
	ActionManageMembers Action = "manage_members"
	ActionDelete        Action = "delete"
)

// actionCapability maps each action to the capability it requires.
var actionCapability = map[Action]Capability{
	ActionView:          CapRead,
	ActionEdit:          CapWrite,
	ActionManageMembers: CapManageMembers,
	ActionDelete:        CapDelete,
}

// RoleCapabilities maps a group role to its capability set.
// Owner and admin get everything; member gets content read/write but
// neither member management nor board deletion.
func RoleCapabilities(role string) []Capability {
	switch role {
	case model.RoleOwner, model.RoleAdmin:
		return slices.Clone(allCapabilities)
	case model.RoleMember:
		return []Capability{CapRead, CapWrite}
	default:
		return nil
	}
}

// ScopeCapabilities maps an API key's scope list to a capability set.
// Scopes cap what a key can ever do regardless of its owner's role.
func ScopeCapabilities(scopes []string) []Capability {
	if slices.Contains(scopes, model.ScopeAdmin) {
		return slices.Clone(allCapabilities)
	}

	var caps []Capability
	if slices.Contains(scopes, model.ScopeRead) {
		caps = append(caps, CapRead)
	}
	if slices.Contains(scopes, model.ScopeWrite) {
		caps = append(caps, CapRead, CapWrite)
	}
	return dedupe(caps)
}

// Intersect returns the capabilities present in both sets. Pure; this is
// the role-meets-scope step applied to API-key principals.
func Intersect(a, b []Capability) []Capability {
	var out []Capability
	for _, c := range a {
		if slices.Contains(b, c) {
			out = append(out, c)
		}
	}
	return dedupe(out)
}

func dedupe(caps []Capability) []Capability {
	var out []Capability
	for _, c := range caps {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
