package gateway

import (
	"sync"
)

// Topic names. A ticket room, a personal notification channel and the
// agents channels are all the same multicast primitive.
func ticketTopic(ticketID string) string { return "ticket:" + ticketID }
func userTopic(identityID string) string { return "user:" + identityID }
func scopeAgentsTopic(scopeID string) string {
	if scopeID == "" {
		return agentsTopic
	}
	return "agents:" + scopeID
}

const agentsTopic = "agents"

// TopicRegistry maps topic -> joined clients. Joining a topic is cheap and
// idempotent; a client disappearing mid-broadcast is tolerated because
// delivery is enqueue-only.
type TopicRegistry struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Client  // topic -> conn_id -> client
	byConn map[string]map[string]struct{} // conn_id -> topics, for LeaveAll
}

func NewTopicRegistry() *TopicRegistry {
	return &TopicRegistry{
		topics: make(map[string]map[string]*Client),
		byConn: make(map[string]map[string]struct{}),
	}
}

func (r *TopicRegistry) Join(topic string, c *Client) {
	if topic == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.topics[topic]
	if m == nil {
		m = make(map[string]*Client)
		r.topics[topic] = m
	}
	m[c.ConnID] = c

	t := r.byConn[c.ConnID]
	if t == nil {
		t = make(map[string]struct{})
		r.byConn[c.ConnID] = t
	}
	t[topic] = struct{}{}
}

func (r *TopicRegistry) Leave(topic string, c *Client) {
	if topic == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(topic, c.ConnID)
}

func (r *TopicRegistry) leaveLocked(topic, connID string) {
	if m := r.topics[topic]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.topics, topic)
		}
	}
	if t := r.byConn[connID]; t != nil {
		delete(t, topic)
		if len(t) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// LeaveAll detaches a connection from every topic it joined. Called from
// the disconnect cleanup path; unknown connections are a no-op.
func (r *TopicRegistry) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic := range r.byConn[connID] {
		r.leaveLocked(topic, connID)
	}
}

// Members snapshots the clients joined to a topic.
func (r *TopicRegistry) Members(topic string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.topics[topic]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// MembersExcept snapshots a topic's clients excluding every connection of
// one identity (broadcasts that must not echo back to the actor).
func (r *TopicRegistry) MembersExcept(topic, identityID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.topics[topic]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		if c.Identity.ID == identityID {
			continue
		}
		out = append(out, c)
	}
	return out
}
