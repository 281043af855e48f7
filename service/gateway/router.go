package gateway

import (
	"strings"

	"FestivalSupport/logger"
	"FestivalSupport/tools/errs"
)

// previewLimit caps the ticket_activity preview.
const previewLimit = 100

type pendingEmit struct {
	event   string
	key     string
	payload []byte
}

// SendMessage validates, stamps and routes one chat message. The room lock
// is held across the whole mutation unit (participant fix-up, counters,
// auto status transition, broadcast enqueue), so all live participants
// observe acceptance order. If validation fails nothing is mutated and
// nothing is broadcast.
func (g *Gateway) SendMessage(sender Identity, senderConn *Client, ticketID, content, kind string, attachments []string) (*Message, *RoomView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, errs.ErrEmptyContent
	}
	room, _ := g.rooms.GetOrCreate(ticketID, sender)
	if !room.Admit(sender) {
		return nil, nil, errs.ErrAccessDenied
	}

	// sending implies room interest: join this connection to the broadcast
	// channel so the fan-out reaches it like any other member
	if senderConn != nil {
		g.topics.Join(ticketTopic(ticketID), senderConn)
	}

	// an inbound message ends the sender's typing period
	g.typing.Stop(ticketID, sender)

	msg := NewChatMessage(ticketID, sender, content, kind, attachments)

	var emits []pendingEmit
	room.mu.Lock()
	// re-admit at routing time: the owner stays in the participant set even
	// if they left the room between admission and here, so offline capture
	// never skips them
	room.admitLocked(sender)

	// auto transition runs before the message broadcast: an agent answering
	// a waiting_agent room (or a user answering waiting_user) flips the
	// room back to in_progress
	if sender.IsAgent() && room.Status == StatusWaitingAgent {
		g.applyStatusLocked(room, StatusInProgress, "", "system", &emits)
	} else if !sender.IsAgent() && room.Status == StatusWaitingUser {
		g.applyStatusLocked(room, StatusInProgress, "", "system", &emits)
	}

	g.insertMessageLocked(room, msg, &emits)
	view := room.snapshotLocked()
	room.mu.Unlock()

	for _, e := range emits {
		g.emit(e.event, e.key, e.payload)
	}

	// non-agent traffic surfaces on idle agent dashboards without them
	// joining every room
	if !sender.IsAgent() {
		payload := encodeEvent(EvTicketActivity, map[string]any{
			"ticket_id":   ticketID,
			"scope_id":    room.ScopeID,
			"sender_id":   sender.ID,
			"sender_name": sender.DisplayName,
			"preview":     truncate(content, previewLimit),
			"ts":          msg.CreatedAt,
		})
		g.notifyScopeAgents(room.ScopeID, payload)
		g.emit(EvTicketActivity, ticketID, payload)
	}

	return msg, view, nil
}

// insertMessageLocked appends a message to a locked room: counters, touch,
// live broadcast to the room channel, and offline backlog for every
// participant unreachable right now. No retroactive backfill: presence is
// sampled at routing time only.
func (g *Gateway) insertMessageLocked(room *Room, msg *Message, emits *[]pendingEmit) {
	room.MessageCount++
	room.touchLocked()

	payload := encodeEvent(EvNewMessage, map[string]any{"message": msg})
	g.broadcastTicket(room.TicketID, payload)

	for id := range room.participants {
		if !g.presence.IsOnline(id) {
			g.offline.Enqueue(id, msg)
		}
	}

	*emits = append(*emits, pendingEmit{event: EvNewMessage, key: room.TicketID, payload: payload})
}

// applyStatusLocked performs one status change on a locked room: system
// message first, then the structured status_updated event. changedBy is an
// identity id or "system" for automatic transitions.
func (g *Gateway) applyStatusLocked(room *Room, next RoomStatus, reason, changedBy string, emits *[]pendingEmit) {
	prev := room.Status
	room.Status = next
	room.touchLocked()

	text := "status changed from " + string(prev) + " to " + string(next)
	if reason != "" {
		text += ": " + reason
	}
	g.insertMessageLocked(room, NewSystemMessage(room.TicketID, text), emits)

	payload := encodeEvent(EvStatusUpdated, map[string]any{
		"ticket_id":  room.TicketID,
		"status":     string(next),
		"previous":   string(prev),
		"reason":     reason,
		"changed_by": changedBy,
	})
	g.broadcastTicket(room.TicketID, payload)
	*emits = append(*emits, pendingEmit{event: EvStatusUpdated, key: room.TicketID, payload: payload})

	if prev == StatusClosed || prev == StatusResolved {
		logger.Debugf("[room] %s reopened via status update (%s -> %s)", room.TicketID, prev, next)
	}
}

// MarkRead is a pure broadcast: it tells all room participants which ids
// this identity has read and leaves persistence of that fact to an external
// consumer. Stored messages are not mutated. A missing room is not an
// error; there is simply nobody to tell.
func (g *Gateway) MarkRead(reader Identity, ticketID string, messageIDs []string) {
	if len(messageIDs) == 0 {
		return
	}
	payload := encodeEvent(EvMessagesRead, map[string]any{
		"ticket_id":   ticketID,
		"message_ids": messageIDs,
		"reader_id":   reader.ID,
	})
	g.broadcastTicket(ticketID, payload)
	g.emit(EvMessagesRead, ticketID, payload)
}

// StartTyping (re)arms the sender's marker. Only the opening of a typing
// period broadcasts; re-arms are silent so one period yields exactly one
// started/stopped pair.
func (g *Gateway) StartTyping(ticketID string, identity Identity) {
	if !g.typing.Start(ticketID, identity) {
		return
	}
	payload := encodeEvent(EvTypingStarted, map[string]any{
		"ticket_id":    ticketID,
		"user_id":      identity.ID,
		"display_name": identity.DisplayName,
	})
	g.broadcastTicketExcept(ticketID, identity.ID, payload)
	g.emit(EvTypingStarted, ticketID, payload)
}

// StopTyping clears the marker; the stop broadcast rides the tracker's
// clear callback and is idempotent.
func (g *Gateway) StopTyping(ticketID string, identity Identity) {
	g.typing.Stop(ticketID, identity)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
