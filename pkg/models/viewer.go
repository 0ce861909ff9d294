package models

import "strings"

// Role is the session role of a viewer.
type Role string

const (
	RoleAnonymous   Role = ""
	RoleHelper      Role = "helper"
	RoleCoordinator Role = "coordinator"
)

// ParseRole maps a header or form value onto a role; unknown values are anonymous.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "coordinator", "lider", "leader":
		return RoleCoordinator
	case "helper", "auxiliar":
		return RoleHelper
	}
	return RoleAnonymous
}

// Viewer is the (display name, role) pair supplied per session.
type Viewer struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Anonymous returns the unresolved viewer.
func Anonymous() Viewer { return Viewer{} }

// Resolved reports whether the viewer has both a role and a name.
func (v Viewer) Resolved() bool {
	return v.Role != RoleAnonymous && strings.TrimSpace(v.Name) != ""
}

// IsCoordinator reports whether the viewer is a resolved coordinator.
func (v Viewer) IsCoordinator() bool {
	return v.Resolved() && v.Role == RoleCoordinator
}

// Key is the normalized identity used for every name comparison.
func (v Viewer) Key() string { return IdentityKey(v.Name) }

// DisplayName returns the trimmed name, or fallback when the viewer is anonymous.
func (v Viewer) DisplayName(fallback string) string {
	if !v.Resolved() {
		return fallback
	}
	return strings.TrimSpace(v.Name)
}

// IdentityKey trims and case-folds a display name.
func IdentityKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SameIdentity compares two display names after normalization.
func SameIdentity(a, b string) bool {
	ka := IdentityKey(a)
	return ka != "" && ka == IdentityKey(b)
}
