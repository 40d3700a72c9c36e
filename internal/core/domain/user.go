package domain

import "time"

const (
	RoleAdmin            = "ADMIN"
	RoleVet              = "VET"
	RoleOwner            = "OWNER"
	RoleInventoryManager = "INVENTORY_MANAGER"
	RoleReceptionist     = "RECEPTIONIST"
)

// DefaultRole is assigned to every self-registered account.
const DefaultRole = RoleOwner

// User models an account in the credential store.
type User struct {
	ID           string    `json:"userId"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	Verified     bool      `json:"verified"`
	Disabled     bool      `json:"disabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole reports whether role is directly assigned to the user.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Sanitized returns a copy that is safe to hand to callers outside the service.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.PasswordHash = ""
	clone.Roles = append([]string(nil), u.Roles...)
	return &clone
}

// UserFilter narrows a user listing. Empty fields match everything.
type UserFilter struct {
	UsernameContains string
}
