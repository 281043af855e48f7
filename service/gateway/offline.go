package gateway

import (
	"sync"
)

// OfflineQueue is the bounded per-identity backlog for messages produced
// while the identity had no live connection. Best-effort: past capacity the
// oldest entry is dropped silently, which is policy, not a failure.
type OfflineQueue struct {
	mu  sync.Mutex
	cap int
	m   map[string][]*Message // identity_id -> FIFO backlog
}

func NewOfflineQueue(capacity int) *OfflineQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &OfflineQueue{cap: capacity, m: make(map[string][]*Message)}
}

// Enqueue appends for one identity, evicting the oldest entry when the
// backlog is at capacity.
func (q *OfflineQueue) Enqueue(identityID string, msg *Message) {
	if identityID == "" || msg == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	backlog := q.m[identityID]
	if len(backlog) >= q.cap {
		backlog = backlog[1:]
	}
	q.m[identityID] = append(backlog, msg)
}

// Flush atomically takes the whole backlog for an identity and clears it.
// Called exactly once per reconnect, from the registration path.
func (q *OfflineQueue) Flush(identityID string) []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	backlog := q.m[identityID]
	if len(backlog) == 0 {
		return nil
	}
	delete(q.m, identityID)
	return backlog
}

// Len reports the backlog size for one identity.
func (q *OfflineQueue) Len(identityID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.m[identityID])
}
