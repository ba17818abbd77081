// Package perm computes a user's effective capabilities on a diagram.
package perm

import "github.com/kushan1992/diagram-builder/internal/store"

type Role string

const (
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// RoleOwner is only ever an effective role; it is never stored.
const RoleOwner = "owner"

// Capabilities is the computed capability set for a (user, diagram) pair.
// EffectiveRole is "owner", a collaborator role, or empty when the user has
// no relationship to the diagram.
type Capabilities struct {
	CanView       bool
	CanEdit       bool
	CanDelete     bool
	CanShare      bool
	IsOwner       bool
	EffectiveRole string
}

// Compute derives the capability set from ownership and the diagram's
// collaborator map. It must be recomputed after every diagram mutation; the
// collaborator map can change under the caller.
func Compute(user *store.User, diagram *store.Diagram) Capabilities {
	if user == nil || diagram == nil {
		return Capabilities{}
	}

	isOwner := diagram.OwnerID == user.ID
	collaboratorRole, isCollaborator := diagram.Collaborators[user.ID]

	caps := Capabilities{
		CanView:   isOwner || isCollaborator,
		CanEdit:   isOwner || collaboratorRole == string(RoleEditor),
		CanDelete: isOwner,
		CanShare:  isOwner,
		IsOwner:   isOwner,
	}
	switch {
	case isOwner:
		caps.EffectiveRole = RoleOwner
	case isCollaborator:
		caps.EffectiveRole = collaboratorRole
	}
	return caps
}

// CanCreate reports whether a global account role may create new diagrams.
// The account role only gates creation; per-diagram capabilities come from
// Compute, so a viewer account can still edit diagrams it was granted
// editor access to.
func CanCreate(role Role) bool {
	return role == RoleEditor
}

// Parse validates a role string against the closed role set.
func Parse(role string) (Role, bool) {
	switch Role(role) {
	case RoleEditor, RoleViewer:
		return Role(role), true
	default:
		return "", false
	}
}
