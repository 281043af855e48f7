package gateway

import (
	"time"

	"FestivalSupport/tools/errs"
)

// JoinTicket applies the room access rule and attaches the connection to
// the room's broadcast channel. Other members (not the joiner) learn about
// it via user_joined_ticket.
func (g *Gateway) JoinTicket(identity Identity, c *Client, ticketID string) (*RoomView, error) {
	room, _ := g.rooms.GetOrCreate(ticketID, identity)
	if !room.Admit(identity) {
		return nil, errs.ErrAccessDenied
	}

	room.mu.Lock()
	room.touchLocked()
	view := room.snapshotLocked()
	room.mu.Unlock()

	if c != nil {
		g.topics.Join(ticketTopic(ticketID), c)
	}

	payload := encodeEvent(EvUserJoined, map[string]any{
		"ticket_id":    ticketID,
		"user_id":      identity.ID,
		"display_name": identity.DisplayName,
		"role":         identity.Role.String(),
	})
	g.broadcastTicketExcept(ticketID, identity.ID, payload)
	g.emit(EvUserJoined, ticketID, payload)

	return view, nil
}

// LeaveTicket detaches the connection and drops the identity from the
// participant set. Leaving is always permitted; a missing room is a no-op.
func (g *Gateway) LeaveTicket(identity Identity, c *Client, ticketID string) {
	if c != nil {
		g.topics.Leave(ticketTopic(ticketID), c)
	}
	room, ok := g.rooms.Get(ticketID)
	if !ok {
		return
	}

	room.mu.Lock()
	room.removeParticipantLocked(identity.ID)
	room.touchLocked()
	room.mu.Unlock()

	payload := encodeEvent(EvUserLeft, map[string]any{
		"ticket_id":    ticketID,
		"user_id":      identity.ID,
		"display_name": identity.DisplayName,
	})
	g.broadcastTicketExcept(ticketID, identity.ID, payload)
	g.emit(EvUserLeft, ticketID, payload)
}

// UpdateStatus is the explicit status-machine entry point, agents only.
// Closed and resolved rooms still accept updates (reopen by status update).
func (g *Gateway) UpdateStatus(actor Identity, ticketID, status, reason string) (*RoomView, error) {
	if !actor.IsAgent() {
		return nil, errs.ErrAgentOnly
	}
	if !ValidStatus(status) {
		return nil, errs.ErrBadStatus.WithDetail(status)
	}
	room, _ := g.rooms.GetOrCreate(ticketID, actor)

	var emits []pendingEmit
	room.mu.Lock()
	g.applyStatusLocked(room, RoomStatus(status), reason, actor.ID, &emits)
	view := room.snapshotLocked()
	room.mu.Unlock()

	for _, e := range emits {
		g.emit(e.event, e.key, e.payload)
	}
	return view, nil
}

// AssignAgent pins an agent to the ticket: assignee force-joins the
// participant set, status is forced to in_progress regardless of what it
// was, the room hears a system message plus agent_assigned, and the
// assignee's personal channel gets ticket_assigned even if none of their
// connections joined the room yet.
func (g *Gateway) AssignAgent(actor Identity, ticketID, agentID, agentName string) (*RoomView, error) {
	if !actor.IsAgent() {
		return nil, errs.ErrAgentOnly
	}
	if agentID == "" {
		return nil, errs.ErrBadPayload.WithDetail("missing agent_id")
	}
	room, _ := g.rooms.GetOrCreate(ticketID, actor)

	var emits []pendingEmit
	room.mu.Lock()
	room.AssignedAgentID = agentID
	room.AssignedAgentName = agentName
	room.addParticipantLocked(agentID)
	room.Status = StatusInProgress
	room.touchLocked()

	text := "agent " + agentName + " assigned to ticket"
	g.insertMessageLocked(room, NewSystemMessage(ticketID, text), &emits)

	payload := encodeEvent(EvAgentAssigned, map[string]any{
		"ticket_id":   ticketID,
		"agent_id":    agentID,
		"agent_name":  agentName,
		"assigned_by": actor.ID,
		"status":      string(StatusInProgress),
	})
	g.broadcastTicket(ticketID, payload)
	emits = append(emits, pendingEmit{event: EvAgentAssigned, key: ticketID, payload: payload})
	view := room.snapshotLocked()
	room.mu.Unlock()

	direct := encodeEvent(EvTicketAssigned, map[string]any{
		"ticket_id":  ticketID,
		"agent_id":   agentID,
		"agent_name": agentName,
		"ts":         time.Now().UnixMilli(),
	})
	g.sendToIdentity(agentID, direct)
	g.emit(EvTicketAssigned, agentID, direct)

	for _, e := range emits {
		g.emit(e.event, e.key, e.payload)
	}
	return view, nil
}

// ActiveTickets lists non-closed rooms for agent dashboards, newest
// activity first, optionally filtered by scope. Non-agents get an empty
// list, not an error.
func (g *Gateway) ActiveTickets(identity Identity, scopeID string) []*RoomView {
	if !identity.IsAgent() {
		return []*RoomView{}
	}
	return g.rooms.Active(scopeID)
}
