package gateway

import (
	"sync"
)

// PresenceRegistry owns the identity <-> connection maps. It is the single
// answer to "is this identity currently reachable". Registration side
// effects (channel joins, offline flush, mirror updates) are orchestrated
// by the Gateway; the registry itself only tracks membership.
type PresenceRegistry struct {
	mu         sync.RWMutex
	byIdentity map[string]map[string]*Client // identity_id -> conn_id -> client
	byConn     map[string]*Client            // conn_id -> client
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		byIdentity: make(map[string]map[string]*Client),
		byConn:     make(map[string]*Client),
	}
}

// Register adds the connection and reports whether it is the identity's
// first live connection (the offline-flush trigger).
func (p *PresenceRegistry) Register(c *Client) (first bool) {
	if c == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	m := p.byIdentity[c.Identity.ID]
	if m == nil {
		m = make(map[string]*Client)
		p.byIdentity[c.Identity.ID] = m
		first = true
	}
	m[c.ConnID] = c
	p.byConn[c.ConnID] = c
	return first
}

// Deregister removes the connection. Unknown handles are a no-op: a handle
// can legitimately disappear mid-operation due to a concurrent disconnect.
// Reports the owning client and whether the identity went offline.
func (p *PresenceRegistry) Deregister(connID string) (c *Client, last bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(p.byConn, connID)

	if m := p.byIdentity[c.Identity.ID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(p.byIdentity, c.Identity.ID)
			last = true
		}
	}
	return c, last
}

// IsOnline is true iff the identity has at least one live connection.
func (p *PresenceRegistry) IsOnline(identityID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byIdentity[identityID]) > 0
}

// ClientsOf snapshots every live connection of one identity.
func (p *PresenceRegistry) ClientsOf(identityID string) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m := p.byIdentity[identityID]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// GetByConn looks a client up by connection handle.
func (p *PresenceRegistry) GetByConn(connID string) (*Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.byConn[connID]
	return c, ok
}

// OnlineCount reports how many identities are reachable right now.
func (p *PresenceRegistry) OnlineCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byIdentity)
}
