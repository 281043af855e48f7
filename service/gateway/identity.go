package gateway

import (
	"FestivalSupport/tools/security"
)

// Role is decided once at authentication time and carried on the Identity,
// instead of re-checking the raw role string at every call site.
type Role int

const (
	RoleUser Role = iota
	RoleAgent
)

func (r Role) String() string {
	if r == RoleAgent {
		return "agent"
	}
	return "user"
}

// agentRoles are the platform roles that grant support-handling privileges.
var agentRoles = map[string]struct{}{
	"admin":       {},
	"organizer":   {},
	"support":     {},
	"super_admin": {},
}

// Identity is the authenticated principal for one or more connections.
// It is re-derived from the verified credential on every connect and is
// never persisted by the gateway.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"-"`
	RawRole     string `json:"role"`
	ScopeID     string `json:"scope_id,omitempty"`
}

func (i Identity) IsAgent() bool { return i.Role == RoleAgent }

// IdentityFromClaims maps verified token claims onto an Identity.
func IdentityFromClaims(c *security.Claims) Identity {
	role := RoleUser
	if _, ok := agentRoles[c.Role]; ok {
		role = RoleAgent
	}
	name := c.DisplayName
	if name == "" {
		name = c.UserID
	}
	return Identity{
		ID:          c.UserID,
		DisplayName: name,
		Role:        role,
		RawRole:     c.Role,
		ScopeID:     c.ScopeID,
	}
}
