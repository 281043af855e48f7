package gateway

import (
	"sync"
	"time"
)

type typingKey struct {
	ticketID   string
	identityID string
}

type typingEntry struct {
	timer *time.Timer
	gen   uint64
}

// TypingTracker holds the ephemeral (ticket, identity) -> expiry timers.
// Re-arming atomically cancels the prior schedule, so one active period
// produces exactly one stop broadcast no matter how often start fires.
// The stop callback runs for expiry and explicit stop alike.
//
// Entries carry a generation number: an expiry callback that already fired
// but lost the race against a re-arm finds a newer generation under the
// key and clears nothing.
type TypingTracker struct {
	mu     sync.Mutex
	ttl    time.Duration
	gen    uint64
	timers map[typingKey]*typingEntry
	onStop func(ticketID string, identity Identity)
}

func NewTypingTracker(ttl time.Duration, onStop func(ticketID string, identity Identity)) *TypingTracker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &TypingTracker{
		ttl:    ttl,
		timers: make(map[typingKey]*typingEntry),
		onStop: onStop,
	}
}

// Start (re)arms the auto-expiry timer for one typist in one room and
// reports whether this opened a new typing period (callers broadcast
// "typing started" only then).
func (t *TypingTracker) Start(ticketID string, identity Identity) (started bool) {
	key := typingKey{ticketID: ticketID, identityID: identity.ID}
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.timers[key]; ok {
		old.timer.Stop()
	} else {
		started = true
	}
	t.gen++
	gen := t.gen
	t.timers[key] = &typingEntry{
		gen: gen,
		timer: time.AfterFunc(t.ttl, func() {
			t.expire(ticketID, identity, gen)
		}),
	}
	return started
}

// Stop clears the marker explicitly. Idempotent: clearing an already-clear
// key is a no-op, not an error.
func (t *TypingTracker) Stop(ticketID string, identity Identity) {
	t.clear(ticketID, identity)
}

// expire is the timer callback. It only clears when the expiring
// generation still owns the key; a re-arm that raced the callback keeps
// its fresh timer and the period stays open.
func (t *TypingTracker) expire(ticketID string, identity Identity, gen uint64) {
	key := typingKey{ticketID: ticketID, identityID: identity.ID}
	t.mu.Lock()
	e, ok := t.timers[key]
	if ok && e.gen == gen {
		delete(t.timers, key)
	} else {
		ok = false
	}
	t.mu.Unlock()

	if ok && t.onStop != nil {
		t.onStop(ticketID, identity)
	}
}

func (t *TypingTracker) clear(ticketID string, identity Identity) {
	key := typingKey{ticketID: ticketID, identityID: identity.ID}
	t.mu.Lock()
	e, ok := t.timers[key]
	if ok {
		e.timer.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()

	if ok && t.onStop != nil {
		t.onStop(ticketID, identity)
	}
}

// ClearIdentity cancels every outstanding marker one identity owns, firing
// the stop callback per room. Disconnect cleanup path.
func (t *TypingTracker) ClearIdentity(identity Identity) {
	t.mu.Lock()
	var tickets []string
	for key, e := range t.timers {
		if key.identityID != identity.ID {
			continue
		}
		e.timer.Stop()
		delete(t.timers, key)
		tickets = append(tickets, key.ticketID)
	}
	t.mu.Unlock()

	if t.onStop != nil {
		for _, ticketID := range tickets {
			t.onStop(ticketID, identity)
		}
	}
}

// Active reports whether a marker is currently set.
func (t *TypingTracker) Active(ticketID string, identity Identity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[typingKey{ticketID: ticketID, identityID: identity.ID}]
	return ok
}
