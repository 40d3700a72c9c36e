package domain

import "testing"

func TestRouteKey(t *testing.T) {
	r := AccessRule{Method: "DELETE", Path: "/api/auth/users/:userId"}
	if r.Key() != "DELETE /api/auth/users/:userId" {
		t.Fatalf("unexpected key %q", r.Key())
	}
	if RouteKey("", "/x") != "GET /x" {
		t.Fatalf("method should default to GET")
	}
}
