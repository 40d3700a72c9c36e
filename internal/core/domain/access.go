package domain

import "net/http"

// AccessRule is the static authorization requirement of one route.
type AccessRule struct {
	Method string
	Path   string // echo route pattern, e.g. /api/auth/users/:userId

	// Roles lists the roles of which the principal needs at least one.
	// Empty means any authenticated principal.
	Roles []string

	// OwnerParam names a path parameter that must equal the principal's id.
	OwnerParam string
	// BypassRoles skip the OwnerParam check.
	BypassRoles []string
}

// Key identifies the route the rule applies to.
func (r AccessRule) Key() string {
	return RouteKey(r.Method, r.Path)
}

// RouteKey builds the lookup key for a method and route pattern.
func RouteKey(method, path string) string {
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + path
}
