package gateway

import (
	"encoding/json"
	"testing"
	"time"
)

// test fixtures: gateways with no network and no sink; clients with a nil
// websocket whose Send channel is read directly.

func testGateway() *Gateway {
	return NewGateway(Config{TypingTTL: 50 * time.Millisecond, SendBuffer: 64}, nil, nil)
}

func user(id string) Identity {
	return Identity{ID: id, DisplayName: "User " + id, Role: RoleUser}
}

func agentIdent(id string) Identity {
	return Identity{ID: id, DisplayName: "Agent " + id, Role: RoleAgent, RawRole: "support"}
}

func connect(g *Gateway, ident Identity, connID string) *Client {
	c := NewClient(connID, ident, nil, 64)
	g.RegisterConnection(c)
	return c
}

type wire map[string]any

func decodeWire(t *testing.T, raw []byte) wire {
	t.Helper()
	var m wire
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode frame: %v (%s)", err, raw)
	}
	return m
}

// recvEvent reads frames off a client until one with the wanted event name
// arrives. Unrelated frames are skipped.
func recvEvent(t *testing.T, c *Client, want string) wire {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-c.Send:
			m := decodeWire(t, raw)
			if m["event"] == want {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", want)
		}
	}
}

// drainEvents empties the client's queue and returns every frame carrying
// the given event name, in delivery order.
func drainEvents(t *testing.T, c *Client, name string) []wire {
	t.Helper()
	var out []wire
	for {
		select {
		case raw := <-c.Send:
			m := decodeWire(t, raw)
			if m["event"] == name {
				out = append(out, m)
			}
		default:
			return out
		}
	}
}

// expectNoEvent asserts no frame with the given event name shows up within
// the window.
func expectNoEvent(t *testing.T, c *Client, name string, window time.Duration) {
	t.Helper()
	deadline := time.After(window)
	for {
		select {
		case raw := <-c.Send:
			m := decodeWire(t, raw)
			if m["event"] == name {
				t.Fatalf("unexpected event %q: %v", name, m)
			}
		case <-deadline:
			return
		}
	}
}

func recvAck(t *testing.T, c *Client, op string) *Ack {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-c.Send:
			var a Ack
			if err := json.Unmarshal(raw, &a); err != nil {
				t.Fatalf("decode ack: %v (%s)", err, raw)
			}
			if a.Event == EvAck && a.Op == op {
				return &a
			}
		case <-deadline:
			t.Fatalf("timed out waiting for ack op=%q", op)
		}
	}
}

func dispatch(t *testing.T, g *Gateway, c *Client, f *Frame) {
	t.Helper()
	if err := g.DispatchFrame(c, f); err != nil {
		t.Logf("dispatch op=%s: %v", f.Op, err)
	}
}
