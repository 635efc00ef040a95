package model

import (
	"sort"
)

// Actor is the identity snapshot of the user issuing a request. It is built
// once per request and never changes afterwards.
type Actor struct {
	ID          int64
	roles       map[RoleName]struct{}
	permissions map[PermissionName]struct{}
}

// NewActor normalizes and deduplicates role and permission names.
func NewActor(id int64, roles, permissions []string) *Actor {
	a := &Actor{
		ID:          id,
		roles:       make(map[RoleName]struct{}, len(roles)),
		permissions: make(map[PermissionName]struct{}, len(permissions)),
	}
	for _, r := range roles {
		if n := NormalizeRoleName(r); n != "" {
			a.roles[n] = struct{}{}
		}
	}
	for _, p := range permissions {
		if n := NormalizePermissionName(p); n != "" {
			a.permissions[n] = struct{}{}
		}
	}
	return a
}

func (a *Actor) HasRole(role RoleName) bool {
	if a == nil {
		return false
	}
	_, ok := a.roles[NormalizeRoleName(string(role))]
	return ok
}

func (a *Actor) HasPermission(perm PermissionName) bool {
	if a == nil {
		return false
	}
	_, ok := a.permissions[NormalizePermissionName(string(perm))]
	return ok
}

// HasAnyPermission reports whether the actor holds at least one of perms.
func (a *Actor) HasAnyPermission(perms ...PermissionName) bool {
	for _, p := range perms {
		if a.HasPermission(p) {
			return true
		}
	}
	return false
}

// Roles returns the role names in sorted order.
func (a *Actor) Roles() []RoleName {
	out := make([]RoleName, 0, len(a.roles))
	for r := range a.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Permissions returns the permission names in sorted order.
func (a *Actor) Permissions() []PermissionName {
	out := make([]PermissionName, 0, len(a.permissions))
	for p := range a.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ActorResponse is the JSON rendering of an Actor.
type ActorResponse struct {
	ID          int64            `json:"id"`
	Roles       []RoleName       `json:"roles"`
	Permissions []PermissionName `json:"permissions"`
}

func (a *Actor) Response() ActorResponse {
	return ActorResponse{ID: a.ID, Roles: a.Roles(), Permissions: a.Permissions()}
}
