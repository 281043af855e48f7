package gateway

import (
	"FestivalSupport/tools/errs"
)

// Handlers translate inbound frames into gateway operations and answer with
// structured acks on the same connection. Access and validation failures
// stay on this connection; the websocket is never torn down for them.

type joinTicketHandler struct{}

func (joinTicketHandler) Op() string { return OpJoinTicket }

func (joinTicketHandler) Handle(ctx *OpContext, f *Frame) error {
	if f.TicketID == "" {
		ctx.C.Enqueue(encodeAck(failAck(f.Op, errs.ErrBadPayload.WithDetail("missing ticket_id"))))
		return nil
	}
	view, err := ctx.G.JoinTicket(ctx.C.Identity, ctx.C, f.TicketID)
	if err != nil {
		ctx.C.Enqueue(encodeAck(failAck(f.Op, err)))
		return nil
	}
	ack := okAck(f.Op)
	ack.Room = view
	ctx.C.Enqueue(encodeAck(ack))
	return nil
}

type leaveTicketHandler struct{}

func (leaveTicketHandler) Op() string { return OpLeaveTicket }

func (leaveTicketHandler) Handle(ctx *OpContext, f *Frame) error {
	if f.TicketID != "" {
		ctx.G.LeaveTicket(ctx.C.Identity, ctx.C, f.TicketID)
	}
	ctx.C.Enqueue(encodeAck(okAck(f.Op)))
	return nil
}

type sendMessageHandler struct{}

func (sendMessageHandler) Op() string { return OpSendMessage }

func (sendMessageHandler) Handle(ctx *OpContext, f *Frame) error {
	if f.TicketID == "" {
		ctx.C.Enqueue(encodeAck(failAck(f.Op, errs.ErrBadPayload.WithDetail("missing ticket_id"))))
		return nil
	}
	msg, view, err := ctx.G.SendMessage(ctx.C.Identity, ctx.C, f.TicketID, f.Content, f.Kind, f.Attachments)
	if err != nil {
		ctx.C.Enqueue(encodeAck(failAck(f.Op, err)))
		return nil
	}
	ack := okAck(f.Op)
	ack.Message = msg
	ack.Room = view
	ctx.C.Enqueue(encodeAck(ack))
	return nil
}

type markReadHandler struct{}

func (markReadHandler) Op() string { return OpMarkRead }

func (markReadHandler) Handle(ctx *OpContext, f *Frame) error {
	ctx.G.MarkRead(ctx.C.Identity, f.TicketID, f.MessageIDs)
	ctx.C.Enqueue(encodeAck(okAck(f.Op)))
	return nil
}

// typing ops are fire-and-forget: no ack either way.

type typingStartHandler struct{}

func (typingStartHandler) Op() string { return OpTypingStart }

func (typingStartHandler) Handle(ctx *OpContext, f *Frame) error {
	if f.TicketID == "" {
		return nil
	}
	ctx.G.StartTyping(f.TicketID, ctx.C.Identity)
	return nil
}

type typingStopHandler struct{}

func (typingStopHandler) Op() string { return OpTypingStop }

func (typingStopHandler) Handle(ctx *OpContext, f *Frame) error {
	if f.TicketID == "" {
		return nil
	}
	ctx.G.StopTyping(f.TicketID, ctx.C.Identity)
	return nil
}

type updateStatusHandler struct{}

func (updateStatusHandler) Op() string { return OpUpdateStatus }

func (updateStatusHandler) Handle(ctx *OpContext, f *Frame) error {
	if f.TicketID == "" {
		ctx.C.Enqueue(encodeAck(failAck(f.Op, errs.ErrBadPayload.WithDetail("missing ticket_id"))))
		return nil
	}
	view, err := ctx.G.UpdateStatus(ctx.C.Identity, f.TicketID, f.Status, f.Reason)
	if err != nil {
		ctx.C.Enqueue(encodeAck(failAck(f.Op, err)))
		return nil
	}
	ack := okAck(f.Op)
	ack.Room = view
	ctx.C.Enqueue(encodeAck(ack))
	return nil
}

type assignAgentHandler struct{}

func (assignAgentHandler) Op() string { return OpAssignAgent }

func (assignAgentHandler) Handle(ctx *OpContext, f *Frame) error {
	if f.TicketID == "" {
		ctx.C.Enqueue(encodeAck(failAck(f.Op, errs.ErrBadPayload.WithDetail("missing ticket_id"))))
		return nil
	}
	view, err := ctx.G.AssignAgent(ctx.C.Identity, f.TicketID, f.AgentID, f.AgentName)
	if err != nil {
		ctx.C.Enqueue(encodeAck(failAck(f.Op, err)))
		return nil
	}
	ack := okAck(f.Op)
	ack.Room = view
	ctx.C.Enqueue(encodeAck(ack))
	return nil
}

type activeTicketsHandler struct{}

func (activeTicketsHandler) Op() string { return OpGetActiveTickets }

func (activeTicketsHandler) Handle(ctx *OpContext, f *Frame) error {
	ack := okAck(f.Op)
	ack.Tickets = ctx.G.ActiveTickets(ctx.C.Identity, f.ScopeID)
	ctx.C.Enqueue(encodeAck(ack))
	return nil
}
