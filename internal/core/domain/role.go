package domain

import (
	"fmt"
	"sort"
)

// RoleHierarchy is a role -> parent lookup table. A role implicitly grants
// every ancestor reachable through its parent chain.
//
// It is built once at startup and only read afterwards, so concurrent reads
// need no locking.
type RoleHierarchy struct {
	parent map[string]string
}

// NewRoleHierarchy returns an empty hierarchy.
func NewRoleHierarchy() *RoleHierarchy {
	return &RoleHierarchy{parent: make(map[string]string)}
}

// Define registers name with an optional parent. The parent must already be
// known, and the resulting chain must not lead back to name.
func (h *RoleHierarchy) Define(name, parent string) error {
	if name == "" {
		return fmt.Errorf("%w: empty role name", ErrRoleNotFound)
	}
	if parent != "" {
		if _, ok := h.parent[parent]; !ok {
			return fmt.Errorf("%w: parent %q", ErrRoleNotFound, parent)
		}
		for cur := parent; cur != ""; cur = h.parent[cur] {
			if cur == name {
				return fmt.Errorf("%w: %s -> %s", ErrRoleCycle, name, parent)
			}
		}
	}
	h.parent[name] = parent
	return nil
}

// Known reports whether role has been defined.
func (h *RoleHierarchy) Known(role string) bool {
	_, ok := h.parent[role]
	return ok
}

// Parent returns the direct parent of role, or "" when it has none.
func (h *RoleHierarchy) Parent(role string) string {
	return h.parent[role]
}

// Roles returns every defined role, sorted.
func (h *RoleHierarchy) Roles() []string {
	out := make([]string, 0, len(h.parent))
	for r := range h.parent {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Effective flattens roles into the set of roles they grant. Unknown roles
// are kept as-is so a token minted under an older table still matches by name.
func (h *RoleHierarchy) Effective(roles []string) map[string]struct{} {
	out := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		// The visited check bounds the walk even if the table were corrupted.
		for cur := r; cur != ""; cur = h.parent[cur] {
			if _, seen := out[cur]; seen {
				break
			}
			out[cur] = struct{}{}
		}
	}
	return out
}

// Grants reports whether any of held grants any of required.
func (h *RoleHierarchy) Grants(held, required []string) bool {
	eff := h.Effective(held)
	for _, r := range required {
		if _, ok := eff[r]; ok {
			return true
		}
	}
	return false
}
