package gateway

import (
	"sort"
	"sync"
	"time"
)

// RoomStatus is the ticket conversation state machine:
// open -> in_progress -> {waiting_user, waiting_agent} -> in_progress
// (cycle) -> resolved -> closed. Closed/resolved rooms still accept status
// updates (reopen by status update, kept as observed product behavior).
type RoomStatus string

const (
	StatusOpen         RoomStatus = "open"
	StatusInProgress   RoomStatus = "in_progress"
	StatusWaitingUser  RoomStatus = "waiting_user"
	StatusWaitingAgent RoomStatus = "waiting_agent"
	StatusResolved     RoomStatus = "resolved"
	StatusClosed       RoomStatus = "closed"
)

func ValidStatus(s string) bool {
	switch RoomStatus(s) {
	case StatusOpen, StatusInProgress, StatusWaitingUser, StatusWaitingAgent, StatusResolved, StatusClosed:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Room is the in-memory conversation state bound to one support ticket.
// Rooms are created lazily on first join or first send and live for the
// process lifetime; closing only changes Status. Mutations hold mu for the
// whole unit (state change + message stamp + broadcast enqueue) so every
// live participant observes one serial order per room.
type Room struct {
	mu sync.Mutex

	TicketID          string
	ScopeID           string
	OwnerID           string // first user who touched the room, never changes
	AssignedAgentID   string
	AssignedAgentName string
	Status            RoomStatus
	Priority          Priority
	participants      map[string]struct{}
	MessageCount      int
	LastActivity      time.Time
	CreatedAt         time.Time
}

// locked helpers; callers hold r.mu.

func (r *Room) addParticipantLocked(identityID string) {
	r.participants[identityID] = struct{}{}
}

func (r *Room) removeParticipantLocked(identityID string) {
	delete(r.participants, identityID)
}

func (r *Room) touchLocked() {
	r.LastActivity = time.Now()
}

func (r *Room) participantsLocked() []string {
	out := make([]string, 0, len(r.participants))
	for id := range r.participants {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RoomView is the wire snapshot of a room used in acks and listings.
type RoomView struct {
	TicketID        string   `json:"ticket_id"`
	ScopeID         string   `json:"scope_id,omitempty"`
	OwnerID         string   `json:"owner_id"`
	AssignedAgentID string   `json:"assigned_agent_id,omitempty"`
	Status          string   `json:"status"`
	Priority        string   `json:"priority"`
	Participants    []string `json:"participants"`
	MessageCount    int      `json:"message_count"`
	LastActivity    int64    `json:"last_activity"` // unix millis
}

func (r *Room) snapshotLocked() *RoomView {
	return &RoomView{
		TicketID:        r.TicketID,
		ScopeID:         r.ScopeID,
		OwnerID:         r.OwnerID,
		AssignedAgentID: r.AssignedAgentID,
		Status:          string(r.Status),
		Priority:        string(r.Priority),
		Participants:    r.participantsLocked(),
		MessageCount:    r.MessageCount,
		LastActivity:    r.LastActivity.UnixMilli(),
	}
}

// Snapshot locks the room and returns its wire view.
func (r *Room) Snapshot() *RoomView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// CanAccess is the read-only access rule: agents may enter any room;
// non-agents only their own, or an unowned room waiting to be claimed.
func (r *Room) CanAccess(identity Identity) bool {
	if identity.IsAgent() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.OwnerID == "" || r.OwnerID == identity.ID
}

// admitLocked applies the access rule and records the entry in one step:
// a first non-agent toucher claims an unowned room, and the owner is
// re-added to the participant set on every admit so the set always carries
// them even after they left. Caller holds r.mu.
func (r *Room) admitLocked(identity Identity) bool {
	if !identity.IsAgent() {
		if r.OwnerID == "" {
			r.OwnerID = identity.ID
		} else if r.OwnerID != identity.ID {
			return false
		}
	}
	r.participants[identity.ID] = struct{}{}
	if r.OwnerID != "" {
		r.participants[r.OwnerID] = struct{}{}
	}
	return true
}

// Admit is the entry point for join and send. Check and claim happen under
// one lock so two users racing for an unowned room cannot both win.
func (r *Room) Admit(identity Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.admitLocked(identity)
}

// RoomStore is the process-wide table of rooms keyed by ticket id. Rooms
// are never deleted within a session.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for a ticket, creating it on first touch.
// A non-agent requester becomes the fixed owner. An agent touching first
// (triage before the user ever connects) leaves the room unowned; the
// first non-agent to join or send claims it.
func (s *RoomStore) GetOrCreate(ticketID string, requester Identity) (*Room, bool) {
	s.mu.RLock()
	r, ok := s.rooms[ticketID]
	s.mu.RUnlock()
	if ok {
		return r, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok = s.rooms[ticketID]; ok {
		return r, false
	}
	owner := ""
	if !requester.IsAgent() {
		owner = requester.ID
	}
	now := time.Now()
	r = &Room{
		TicketID:     ticketID,
		ScopeID:      requester.ScopeID,
		OwnerID:      owner,
		Status:       StatusOpen,
		Priority:     PriorityMedium,
		participants: map[string]struct{}{requester.ID: {}},
		LastActivity: now,
		CreatedAt:    now,
	}
	s.rooms[ticketID] = r
	return r, true
}

// Get returns an existing room without creating one.
func (s *RoomStore) Get(ticketID string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[ticketID]
	return r, ok
}

// Active snapshots every room that is not closed, newest activity first,
// optionally filtered by scope. Used by agent dashboards.
func (s *RoomStore) Active(scopeID string) []*RoomView {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	out := make([]*RoomView, 0, len(rooms))
	for _, r := range rooms {
		v := r.Snapshot()
		if v.Status == string(StatusClosed) {
			continue
		}
		if scopeID != "" && v.ScopeID != scopeID {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity > out[j].LastActivity })
	return out
}

// Count reports how many rooms exist, any status.
func (s *RoomStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
