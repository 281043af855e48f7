package gateway

import (
	"encoding/json"
	"time"

	"FestivalSupport/tools/errs"
	"FestivalSupport/tools/ids"
)

// Inbound op names. Each maps to one registered handler.
const (
	OpJoinTicket       = "join_ticket"
	OpLeaveTicket      = "leave_ticket"
	OpSendMessage      = "send_message"
	OpMarkRead         = "mark_read"
	OpTypingStart      = "typing_start"
	OpTypingStop       = "typing_stop"
	OpUpdateStatus     = "update_status"
	OpAssignAgent      = "assign_agent"
	OpGetActiveTickets = "get_active_tickets"
)

// Outbound event names.
const (
	EvConnected      = "connected"
	EvQueuedMessages = "queued_messages"
	EvUserJoined     = "user_joined_ticket"
	EvUserLeft       = "user_left_ticket"
	EvNewMessage     = "new_message"
	EvMessagesRead   = "messages_read"
	EvTypingStarted  = "typing_started"
	EvTypingStopped  = "typing_stopped"
	EvStatusUpdated  = "status_updated"
	EvAgentAssigned  = "agent_assigned"
	EvTicketAssigned = "ticket_assigned"
	EvTicketActivity = "ticket_activity"
	EvNewTicket      = "new_ticket"
	EvAck            = "ack"
)

// Message kinds.
const (
	KindText   = "text"
	KindImage  = "image"
	KindFile   = "file"
	KindSystem = "system"
)

// Sender roles stamped onto messages.
const (
	SenderUser   = "user"
	SenderAgent  = "agent"
	SenderSystem = "system"
)

// Frame is one inbound client operation.
type Frame struct {
	Op          string   `json:"op"`
	TicketID    string   `json:"ticket_id,omitempty"`
	Content     string   `json:"content,omitempty"`
	Kind        string   `json:"kind,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
	MessageIDs  []string `json:"message_ids,omitempty"`
	Status      string   `json:"status,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	AgentID     string   `json:"agent_id,omitempty"`
	AgentName   string   `json:"agent_name,omitempty"`
	ScopeID     string   `json:"scope_id,omitempty"`
}

// ParseFrame decodes a raw inbound frame; unknown fields are ignored.
func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errs.ErrBadPayload.WithDetail(err.Error())
	}
	if f.Op == "" {
		return nil, errs.ErrBadPayload.WithDetail("missing op")
	}
	return f, nil
}

// Message is one chat entry in a room. Immutable after creation; read
// receipts are broadcast separately and never mutate the stored value.
type Message struct {
	ID          string   `json:"id"`
	TicketID    string   `json:"ticket_id"`
	SenderID    string   `json:"sender_id"`
	SenderName  string   `json:"sender_name"`
	SenderRole  string   `json:"sender_role"`
	Content     string   `json:"content"`
	Kind        string   `json:"kind"`
	Attachments []string `json:"attachments,omitempty"`
	CreatedAt   int64    `json:"created_at"` // unix millis
}

// NewChatMessage stamps a fresh message from a sender identity.
func NewChatMessage(ticketID string, sender Identity, content, kind string, attachments []string) *Message {
	if kind == "" {
		kind = KindText
	}
	role := SenderUser
	if sender.IsAgent() {
		role = SenderAgent
	}
	return &Message{
		ID:          ids.GenerateString(),
		TicketID:    ticketID,
		SenderID:    sender.ID,
		SenderName:  sender.DisplayName,
		SenderRole:  role,
		Content:     content,
		Kind:        kind,
		Attachments: attachments,
		CreatedAt:   time.Now().UnixMilli(),
	}
}

// NewSystemMessage builds the synthetic entries inserted on status changes
// and agent assignment.
func NewSystemMessage(ticketID, content string) *Message {
	return &Message{
		ID:         ids.GenerateString(),
		TicketID:   ticketID,
		SenderID:   "system",
		SenderName: "System",
		SenderRole: SenderSystem,
		Content:    content,
		Kind:       KindSystem,
		CreatedAt:  time.Now().UnixMilli(),
	}
}

// Ack is the structured acknowledgment for one inbound op.
type Ack struct {
	Event   string      `json:"event"` // always "ack"
	Op      string      `json:"op"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Room    *RoomView   `json:"room,omitempty"`
	Message *Message    `json:"message,omitempty"`
	Tickets []*RoomView `json:"tickets,omitempty"`
}

func okAck(op string) *Ack { return &Ack{Event: EvAck, Op: op, Success: true} }

func failAck(op string, err error) *Ack {
	msg := "internal error"
	if ce, ok := errs.AsCodeError(err); ok {
		msg = ce.Msg
	} else if err != nil {
		msg = err.Error()
	}
	return &Ack{Event: EvAck, Op: op, Success: false, Error: msg}
}

// encodeEvent flattens {event, ...data} into a single JSON object so every
// outbound broadcast shares one frame shape on the wire.
func encodeEvent(name string, data map[string]any) []byte {
	obj := make(map[string]any, len(data)+1)
	for k, v := range data {
		obj[k] = v
	}
	obj["event"] = name
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	return raw
}

func encodeAck(a *Ack) []byte {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil
	}
	return raw
}
