package gateway

import (
	"testing"

	"FestivalSupport/tools/security"
)

func TestIdentityRoleMapping(t *testing.T) {
	cases := []struct {
		role string
		want Role
	}{
		{"admin", RoleAgent},
		{"organizer", RoleAgent},
		{"support", RoleAgent},
		{"super_admin", RoleAgent},
		{"user", RoleUser},
		{"attendee", RoleUser},
		{"", RoleUser},
		{"Admin", RoleUser}, // role strings are exact, no case folding
	}
	for _, tc := range cases {
		got := IdentityFromClaims(&security.Claims{UserID: "u1", Role: tc.role})
		if got.Role != tc.want {
			t.Errorf("role %q: got %v, want %v", tc.role, got.Role, tc.want)
		}
	}
}

func TestIdentityDisplayNameFallback(t *testing.T) {
	id := IdentityFromClaims(&security.Claims{UserID: "u42"})
	if id.DisplayName != "u42" {
		t.Fatalf("display name fallback: got %q", id.DisplayName)
	}
	id = IdentityFromClaims(&security.Claims{UserID: "u42", DisplayName: "Ada"})
	if id.DisplayName != "Ada" {
		t.Fatalf("display name: got %q", id.DisplayName)
	}
}
