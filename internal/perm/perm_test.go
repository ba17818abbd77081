package perm

import (
	"testing"

	"github.com/kushan1992/diagram-builder/internal/store"
)

func TestCompute(t *testing.T) {
	owner := &store.User{ID: "u-owner", Email: "owner@x.com", Role: "editor"}
	diagram := &store.Diagram{
		ID:      "d-1",
		OwnerID: "u-owner",
		Collaborators: map[string]string{
			"u-editor": "editor",
			"u-viewer": "viewer",
		},
	}

	cases := []struct {
		name string
		user *store.User
		want Capabilities
	}{
		{
			name: "owner has every capability",
			user: owner,
			want: Capabilities{CanView: true, CanEdit: true, CanDelete: true, CanShare: true, IsOwner: true, EffectiveRole: "owner"},
		},
		{
			name: "editor collaborator can view and edit only",
			user: &store.User{ID: "u-editor"},
			want: Capabilities{CanView: true, CanEdit: true, EffectiveRole: "editor"},
		},
		{
			name: "viewer collaborator can only view",
			user: &store.User{ID: "u-viewer"},
			want: Capabilities{CanView: true, EffectiveRole: "viewer"},
		},
		{
			name: "unrelated user has nothing",
			user: &store.User{ID: "u-stranger"},
			want: Capabilities{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compute(tc.user, diagram); got != tc.want {
				t.Fatalf("Compute() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestComputeAbsentInputs(t *testing.T) {
	diagram := &store.Diagram{ID: "d-1", OwnerID: "u-owner"}
	user := &store.User{ID: "u-owner"}

	if got := Compute(nil, diagram); got != (Capabilities{}) {
		t.Fatalf("Compute(nil, diagram) = %+v, want zero", got)
	}
	if got := Compute(user, nil); got != (Capabilities{}) {
		t.Fatalf("Compute(user, nil) = %+v, want zero", got)
	}
}

func TestDeleteRequiresOwnership(t *testing.T) {
	// Even an editor collaborator must never delete or re-share.
	diagram := &store.Diagram{
		ID:            "d-1",
		OwnerID:       "u-owner",
		Collaborators: map[string]string{"u-editor": "editor"},
	}
	caps := Compute(&store.User{ID: "u-editor"}, diagram)
	if caps.CanDelete || caps.CanShare {
		t.Fatalf("editor collaborator got owner capabilities: %+v", caps)
	}
}

func TestViewerAccountCanEditWhenGrantedEditorRole(t *testing.T) {
	// Global account role gates creation only, not per-diagram capabilities.
	diagram := &store.Diagram{
		ID:            "d-1",
		OwnerID:       "u-owner",
		Collaborators: map[string]string{"u-viewer-account": "editor"},
	}
	user := &store.User{ID: "u-viewer-account", Role: "viewer"}
	if caps := Compute(user, diagram); !caps.CanEdit {
		t.Fatalf("expected viewer account with editor grant to edit, got %+v", caps)
	}
}

func TestCanCreate(t *testing.T) {
	cases := []struct {
		role  Role
		allow bool
	}{
		{role: RoleEditor, allow: true},
		{role: RoleViewer, allow: false},
		{role: Role("admin"), allow: false},
		{role: Role(""), allow: false},
	}
	for _, tc := range cases {
		if got := CanCreate(tc.role); got != tc.allow {
			t.Fatalf("CanCreate(%q) = %v, want %v", tc.role, got, tc.allow)
		}
	}
}

func TestParse(t *testing.T) {
	if role, ok := Parse("editor"); !ok || role != RoleEditor {
		t.Fatalf("Parse(editor) = %q, %v", role, ok)
	}
	if role, ok := Parse("viewer"); !ok || role != RoleViewer {
		t.Fatalf("Parse(viewer) = %q, %v", role, ok)
	}
	if _, ok := Parse("owner"); ok {
		t.Fatal("Parse(owner) should be rejected; owner is implicit")
	}
	if _, ok := Parse(""); ok {
		t.Fatal("Parse(\"\") should be rejected")
	}
}
