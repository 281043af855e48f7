package gateway

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestSendMessageAutoCreatesRoom(t *testing.T) {
	g := testGateway()
	u1 := user("u1")
	cu := connect(g, u1, "cu")
	recvEvent(t, cu, EvConnected)

	dispatch(t, g, cu, &Frame{Op: OpSendMessage, TicketID: "t1", Content: "hello there"})

	// the sender's connection was auto-joined, so it hears its own message
	// (broadcast first, then the ack)
	ev := recvEvent(t, cu, EvNewMessage)

	ack := recvAck(t, cu, OpSendMessage)
	if !ack.Success {
		t.Fatalf("send must succeed, got error %q", ack.Error)
	}
	if ack.Message == nil || ack.Message.Content != "hello there" {
		t.Fatalf("ack.Message = %+v", ack.Message)
	}
	if ack.Message.SenderRole != SenderUser {
		t.Fatalf("sender_role = %q, want %q", ack.Message.SenderRole, SenderUser)
	}
	if ack.Room == nil || ack.Room.OwnerID != "u1" || ack.Room.Status != string(StatusOpen) {
		t.Fatalf("ack.Room = %+v", ack.Room)
	}

	msg := ev["message"].(map[string]any)
	if msg["id"] != ack.Message.ID {
		t.Fatalf("broadcast id %v != ack id %v", msg["id"], ack.Message.ID)
	}

	room, ok := g.Rooms().Get("t1")
	if !ok {
		t.Fatal("room must exist after send")
	}
	if v := room.Snapshot(); v.MessageCount != 1 {
		t.Fatalf("message_count = %d, want 1", v.MessageCount)
	}
}

func TestSendMessageEmptyContentRejected(t *testing.T) {
	g := testGateway()
	u1 := user("u1")
	cu := connect(g, u1, "cu")
	recvEvent(t, cu, EvConnected)

	dispatch(t, g, cu, &Frame{Op: OpSendMessage, TicketID: "t1", Content: "   \n\t "})

	ack := recvAck(t, cu, OpSendMessage)
	if ack.Success {
		t.Fatal("whitespace-only content must be rejected")
	}
	if ack.Error == "" {
		t.Fatal("failure ack must carry an error message")
	}
	if _, ok := g.Rooms().Get("t1"); ok {
		t.Fatal("rejected send must not create the room")
	}
}

func TestSendMessageAccessDenied(t *testing.T) {
	g := testGateway()
	owner := user("u1")
	stranger := user("u2")
	co := connect(g, owner, "co")
	cs := connect(g, stranger, "cs")
	recvEvent(t, co, EvConnected)
	recvEvent(t, cs, EvConnected)

	if _, _, err := g.SendMessage(owner, co, "t1", "mine", KindText, nil); err != nil {
		t.Fatal(err)
	}

	dispatch(t, g, cs, &Frame{Op: OpSendMessage, TicketID: "t1", Content: "intruding"})
	ack := recvAck(t, cs, OpSendMessage)
	if ack.Success {
		t.Fatal("a non-owner non-agent must not post into someone else's ticket")
	}

	// an agent may post freely
	a1 := agentIdent("a1")
	ca := connect(g, a1, "ca")
	recvEvent(t, ca, EvConnected)
	if _, _, err := g.SendMessage(a1, ca, "t1", "agent reply", KindText, nil); err != nil {
		t.Fatalf("agent send: %v", err)
	}

	if room, _ := g.Rooms().Get("t1"); room.Snapshot().MessageCount != 2 {
		t.Fatalf("message_count = %d, want 2", room.Snapshot().MessageCount)
	}
}

func TestPerRoomDeliveryOrder(t *testing.T) {
	g := testGateway()
	u1 := user("u1")
	a1 := agentIdent("a1")
	cu := connect(g, u1, "cu")
	ca := connect(g, a1, "ca")
	recvEvent(t, cu, EvConnected)
	recvEvent(t, ca, EvConnected)

	if _, err := g.JoinTicket(a1, ca, "t1"); err != nil {
		t.Fatal(err)
	}

	const n = 20
	for i := 0; i < n; i++ {
		if _, _, err := g.SendMessage(u1, cu, "t1", fmt.Sprintf("msg-%02d", i), KindText, nil); err != nil {
			t.Fatal(err)
		}
	}

	for _, c := range []*Client{cu, ca} {
		got := drainEvents(t, c, EvNewMessage)
		if len(got) != n {
			t.Fatalf("conn %s received %d messages, want %d", c.ConnID, len(got), n)
		}
		for i, ev := range got {
			content := ev["message"].(map[string]any)["content"]
			if want := fmt.Sprintf("msg-%02d", i); content != want {
				t.Fatalf("conn %s position %d: got %v, want %s", c.ConnID, i, content, want)
			}
		}
	}
}

func TestOfflineParticipantQueuedAndFlushedOnce(t *testing.T) {
	g := testGateway()
	u1 := user("u1")
	a1 := agentIdent("a1")
	cu := connect(g, u1, "cu")
	ca := connect(g, a1, "ca")

	if _, err := g.JoinTicket(u1, cu, "t1"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.JoinTicket(a1, ca, "t1"); err != nil {
		t.Fatal(err)
	}
	g.DeregisterConnection(cu)

	if _, _, err := g.SendMessage(a1, ca, "t1", "are you there", KindText, nil); err != nil {
		t.Fatal(err)
	}
	if _, _, err := g.SendMessage(a1, ca, "t1", "hello?", KindText, nil); err != nil {
		t.Fatal(err)
	}
	if got := g.offline.Len("u1"); got != 2 {
		t.Fatalf("offline backlog = %d, want 2", got)
	}

	cu2 := connect(g, u1, "cu2")
	recvEvent(t, cu2, EvConnected)
	ev := recvEvent(t, cu2, EvQueuedMessages)
	if ev["count"] != float64(2) {
		t.Fatalf("queued count = %v, want 2", ev["count"])
	}
	batch := ev["messages"].([]any)
	first := batch[0].(map[string]any)
	if first["content"] != "are you there" {
		t.Fatalf("backlog order broken: first = %v", first["content"])
	}

	// second connection of the same identity gets no replay
	cu3 := connect(g, u1, "cu3")
	recvEvent(t, cu3, EvConnected)
	expectNoEvent(t, cu3, EvQueuedMessages, 50*time.Millisecond)
}

func TestUserSendsIntoAgentTriagedTicket(t *testing.T) {
	g := testGateway()
	u1 := user("u1")
	a1 := agentIdent("a1")
	cu := connect(g, u1, "cu")
	ca := connect(g, a1, "ca")

	// agent triages the ticket before its user ever connects
	if _, err := g.JoinTicket(a1, ca, "t1"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.UpdateStatus(a1, "t1", string(StatusWaitingUser), ""); err != nil {
		t.Fatal(err)
	}

	// the user must still get into their own ticket
	_, view, err := g.SendMessage(u1, cu, "t1", "sorry, was offline", KindText, nil)
	if err != nil {
		t.Fatalf("user locked out of agent-triaged ticket: %v", err)
	}
	if view.OwnerID != "u1" {
		t.Fatalf("owner = %q, want the first user", view.OwnerID)
	}

	// a different user stays locked out
	if _, _, err := g.SendMessage(user("u2"), nil, "t1", "hi", KindText, nil); err == nil {
		t.Fatal("second user must be denied once the room is claimed")
	}
}

func TestOwnerStaysInParticipantsAfterLeaving(t *testing.T) {
	g := testGateway()
	u1 := user("u1")
	a1 := agentIdent("a1")
	cu := connect(g, u1, "cu")
	ca := connect(g, a1, "ca")

	if _, _, err := g.SendMessage(u1, cu, "t1", "help", KindText, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := g.JoinTicket(a1, ca, "t1"); err != nil {
		t.Fatal(err)
	}

	g.LeaveTicket(u1, cu, "t1")
	g.DeregisterConnection(cu)

	// the agent's reply still counts the owner as a participant and lands
	// in their offline backlog
	_, view, err := g.SendMessage(a1, ca, "t1", "checking in", KindText, nil)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, p := range view.Participants {
		if p == "u1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("owner absent from participants %v after send", view.Participants)
	}
	if got := g.offline.Len("u1"); got != 1 {
		t.Fatalf("offline backlog for owner = %d, want 1", got)
	}
}

func TestTicketActivityPreviewTruncated(t *testing.T) {
	g := testGateway()
	u1 := user("u1")
	a1 := agentIdent("a1")
	cu := connect(g, u1, "cu")
	ca := connect(g, a1, "ca")
	recvEvent(t, ca, EvConnected)

	long := strings.Repeat("x", 250)
	if _, _, err := g.SendMessage(u1, cu, "t1", long, KindText, nil); err != nil {
		t.Fatal(err)
	}

	ev := recvEvent(t, ca, EvTicketActivity)
	preview := ev["preview"].(string)
	if len([]rune(preview)) != previewLimit {
		t.Fatalf("preview length = %d, want %d", len([]rune(preview)), previewLimit)
	}
	if ev["sender_id"] != "u1" {
		t.Fatalf("sender_id = %v", ev["sender_id"])
	}

	// agent traffic never pings the dashboard channel
	if _, _, err := g.SendMessage(a1, ca, "t1", "on it", KindText, nil); err != nil {
		t.Fatal(err)
	}
	expectNoEvent(t, ca, EvTicketActivity, 50*time.Millisecond)
}

func TestMarkReadBroadcast(t *testing.T) {
	g := testGateway()
	u1 := user("u1")
	a1 := agentIdent("a1")
	cu := connect(g, u1, "cu")
	ca := connect(g, a1, "ca")

	if _, err := g.JoinTicket(u1, cu, "t1"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.JoinTicket(a1, ca, "t1"); err != nil {
		t.Fatal(err)
	}
	msg, _, err := g.SendMessage(u1, cu, "t1", "read me", KindText, nil)
	if err != nil {
		t.Fatal(err)
	}

	g.MarkRead(a1, "t1", []string{msg.ID})

	ev := recvEvent(t, cu, EvMessagesRead)
	if ev["reader_id"] != "a1" || ev["ticket_id"] != "t1" {
		t.Fatalf("messages_read payload = %v", ev)
	}
	ids := ev["message_ids"].([]any)
	if len(ids) != 1 || ids[0] != msg.ID {
		t.Fatalf("message_ids = %v", ids)
	}

	// empty id list is dropped silently
	g.MarkRead(a1, "t1", nil)
	expectNoEvent(t, cu, EvMessagesRead, 50*time.Millisecond)
}

func TestWaitingStatusAutoTransitions(t *testing.T) {
	g := testGateway()
	u1 := user("u1")
	a1 := agentIdent("a1")
	cu := connect(g, u1, "cu")
	ca := connect(g, a1, "ca")

	if _, err := g.JoinTicket(u1, cu, "t1"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := g.SendMessage(u1, cu, "t1", "first", KindText, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := g.UpdateStatus(a1, "t1", string(StatusWaitingAgent), ""); err != nil {
		t.Fatal(err)
	}

	// a user message while waiting_agent does not flip the status
	if _, _, err := g.SendMessage(u1, cu, "t1", "still waiting", KindText, nil); err != nil {
		t.Fatal(err)
	}
	if room, _ := g.Rooms().Get("t1"); room.Snapshot().Status != string(StatusWaitingAgent) {
		t.Fatalf("status = %s, want waiting_agent", room.Snapshot().Status)
	}

	// the agent's answer does
	_, view, err := g.SendMessage(a1, ca, "t1", "here now", KindText, nil)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != string(StatusInProgress) {
		t.Fatalf("status = %s, want in_progress", view.Status)
	}

	// and symmetrically for waiting_user
	if _, err := g.UpdateStatus(a1, "t1", string(StatusWaitingUser), ""); err != nil {
		t.Fatal(err)
	}
	_, view, err = g.SendMessage(u1, cu, "t1", "back", KindText, nil)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != string(StatusInProgress) {
		t.Fatalf("status = %s, want in_progress", view.Status)
	}
}
