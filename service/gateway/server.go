package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"FestivalSupport/logger"
	"FestivalSupport/service/sink"
	"FestivalSupport/tools/ids"
	"FestivalSupport/tools/safe"
	"FestivalSupport/tools/security"
)

// PresenceMirror optionally reflects first-online/last-offline edges into an
// external store (dashboards read it; the gateway never does).
type PresenceMirror interface {
	Online(identityID, scopeID string)
	Offline(identityID string)
}

// Config is the gateway-facing slice of the app configuration.
type Config struct {
	NodeID          string
	JWTSecret       []byte
	JWTAlg          string
	OfflineQueueCap int
	TypingTTL       time.Duration
	SendBuffer      int
	FanoutWorkers   int
}

func (c *Config) norm() {
	if c.OfflineQueueCap <= 0 {
		c.OfflineQueueCap = 100
	}
	if c.TypingTTL <= 0 {
		c.TypingTTL = 5 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.FanoutWorkers <= 0 {
		c.FanoutWorkers = 4
	}
}

// Gateway is the support-chat core: presence, rooms, routing, typing and
// offline delivery behind one websocket endpoint. All state is process
// memory; durable mirroring happens through the event sink.
type Gateway struct {
	cfg Config

	presence *PresenceRegistry
	topics   *TopicRegistry
	rooms    *RoomStore
	offline  *OfflineQueue
	typing   *TypingTracker
	fanout   *Fanout
	disp     *Dispatcher

	events sink.EventSink
	mirror PresenceMirror // nil when disabled
}

func NewGateway(cfg Config, events sink.EventSink, mirror PresenceMirror) *Gateway {
	cfg.norm()
	if events == nil {
		events = sink.Noop{}
	}
	g := &Gateway{
		cfg:      cfg,
		presence: NewPresenceRegistry(),
		topics:   NewTopicRegistry(),
		rooms:    NewRoomStore(),
		offline:  NewOfflineQueue(cfg.OfflineQueueCap),
		fanout:   NewFanout(cfg.FanoutWorkers, 4096),
		disp:     NewDispatcher(),
		events:   events,
		mirror:   mirror,
	}
	g.typing = NewTypingTracker(cfg.TypingTTL, g.onTypingStopped)
	g.registerHandlers()
	return g
}

func (g *Gateway) registerHandlers() {
	g.disp.Register(&joinTicketHandler{})
	g.disp.Register(&leaveTicketHandler{})
	g.disp.Register(&sendMessageHandler{})
	g.disp.Register(&markReadHandler{})
	g.disp.Register(&typingStartHandler{})
	g.disp.Register(&typingStopHandler{})
	g.disp.Register(&updateStatusHandler{})
	g.disp.Register(&assignAgentHandler{})
	g.disp.Register(&activeTicketsHandler{})
}

func (g *Gateway) Rooms() *RoomStore           { return g.rooms }
func (g *Gateway) Presence() *PresenceRegistry { return g.presence }

// ===== websocket lifecycle =====

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS authenticates the handshake and runs the connection. The bearer
// credential must verify before anything else happens: a failed credential
// refuses the connection outright, no event is delivered.
func (g *Gateway) HandleWS(c *gin.Context) {
	token := bearerToken(c.Request)
	if token == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	claims, err := security.Verify(security.Options{Secret: g.cfg.JWTSecret, Alg: g.cfg.JWTAlg}, token)
	if err != nil {
		logger.Infof("[ws] auth refused: %v", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	identity := IdentityFromClaims(claims)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	client := NewClient(ids.GenerateString(), identity, ws, g.cfg.SendBuffer)
	g.RegisterConnection(client)
	defer g.DeregisterConnection(client)

	g.readLoop(client)
}

// bearerToken pulls the credential from ?token= or Authorization: Bearer.
func bearerToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz != "" && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

// RegisterConnection wires a freshly authenticated client into presence and
// its broadcast channels, emits the connected event and, when this is the
// identity's first live connection, flushes the offline backlog as one
// batched event.
func (g *Gateway) RegisterConnection(c *Client) {
	first := g.presence.Register(c)

	g.topics.Join(userTopic(c.Identity.ID), c)
	if c.Identity.IsAgent() {
		g.topics.Join(agentsTopic, c)
		g.topics.Join(scopeAgentsTopic(c.Identity.ScopeID), c)
	}

	if c.WS != nil {
		c.StartWritePump()
	}

	c.Enqueue(encodeEvent(EvConnected, map[string]any{
		"conn_id":  c.ConnID,
		"identity": c.Identity,
	}))

	if first {
		if batch := g.offline.Flush(c.Identity.ID); len(batch) > 0 {
			payload := encodeEvent(EvQueuedMessages, map[string]any{
				"messages": batch,
				"count":    len(batch),
			})
			c.Enqueue(payload)
			g.emit(EvQueuedMessages, c.Identity.ID, payload)
		}
		if g.mirror != nil {
			g.mirror.Online(c.Identity.ID, c.Identity.ScopeID)
		}
	}

	logger.Infof("[ws] connected user=%s role=%s conn=%s first=%v",
		c.Identity.ID, c.Identity.Role, c.ConnID, first)
}

// DeregisterConnection is the one cleanup path for every disconnect,
// voluntary or not. It must not be skippable: typing markers the identity
// owns are cleared (with their stop broadcasts) and presence is updated.
func (g *Gateway) DeregisterConnection(c *Client) {
	c.Close()
	g.topics.LeaveAll(c.ConnID)

	cl, last := g.presence.Deregister(c.ConnID)
	if cl == nil {
		return
	}
	g.typing.ClearIdentity(c.Identity)
	if last && g.mirror != nil {
		g.mirror.Offline(c.Identity.ID)
	}
	logger.Infof("[ws] disconnected user=%s conn=%s last=%v", c.Identity.ID, c.ConnID, last)
}

func (g *Gateway) readLoop(c *Client) {
	ws := c.WS
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		g.refreshPresence(c)
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Debugf("[ws] peer closed conn=%s", c.ConnID)
			} else {
				logger.Debugf("[ws] read err conn=%s err=%v", c.ConnID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		frame, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] bad frame conn=%s err=%v sample=%q", c.ConnID, perr, sample)
			c.Enqueue(encodeAck(failAck("", perr)))
			continue
		}

		if err := g.DispatchFrame(c, frame); err != nil {
			logger.Infof("[ws] dispatch op=%s conn=%s err=%v", frame.Op, c.ConnID, err)
		}
	}
}

// DispatchFrame routes one inbound frame. Handler failures are answered on
// the same connection as structured acks; nothing crosses identities.
func (g *Gateway) DispatchFrame(c *Client, f *Frame) error {
	err := g.disp.Dispatch(&OpContext{G: g, C: c}, f)
	if err != nil && f.Op != OpTypingStart && f.Op != OpTypingStop {
		c.Enqueue(encodeAck(failAck(f.Op, err)))
	}
	return err
}

// ===== broadcast plumbing =====

// broadcastTicket enqueues a payload to every connection joined to the
// ticket room. Enqueue-only: callers may hold the room lock, which is what
// keeps per-room delivery order.
func (g *Gateway) broadcastTicket(ticketID string, payload []byte) {
	for _, c := range g.topics.Members(ticketTopic(ticketID)) {
		c.Enqueue(payload)
	}
}

// broadcastTicketExcept is broadcastTicket minus every connection of one
// identity (events that must not echo to the actor).
func (g *Gateway) broadcastTicketExcept(ticketID, identityID string, payload []byte) {
	for _, c := range g.topics.MembersExcept(ticketTopic(ticketID), identityID) {
		c.Enqueue(payload)
	}
}

// sendToIdentity delivers to every live connection of one identity via its
// personal channel.
func (g *Gateway) sendToIdentity(identityID string, payload []byte) {
	for _, c := range g.topics.Members(userTopic(identityID)) {
		c.Enqueue(payload)
	}
}

// notifyScopeAgents fans a payload out to the scope's agents channel.
// No ordering guarantee, so it rides the worker pool.
func (g *Gateway) notifyScopeAgents(scopeID string, payload []byte) {
	g.fanout.Broadcast(g.topics.Members(scopeAgentsTopic(scopeID)), payload)
}

// emit mirrors an event to the sink. Fire-and-forget; a sink outage never
// reaches clients.
func (g *Gateway) emit(event, key string, payload []byte) {
	if len(payload) == 0 {
		return
	}
	if err := g.events.Publish(context.Background(), event, key, payload); err != nil {
		logger.Warnf("[sink] publish %s failed: %v", event, err)
	}
}

// refreshPresence re-arms the mirrored presence key off the heartbeat
// path, so identities connected longer than the key TTL stay visible to
// external dashboards. Off the read loop: the mirror may block on I/O.
func (g *Gateway) refreshPresence(c *Client) {
	if g.mirror == nil {
		return
	}
	safe.SafeGo(func() {
		g.mirror.Online(c.Identity.ID, c.Identity.ScopeID)
	})
}

// onTypingStopped is the typing tracker's clear callback, shared by expiry,
// explicit stop and disconnect cleanup.
func (g *Gateway) onTypingStopped(ticketID string, identity Identity) {
	payload := encodeEvent(EvTypingStopped, map[string]any{
		"ticket_id":    ticketID,
		"user_id":      identity.ID,
		"display_name": identity.DisplayName,
	})
	g.broadcastTicketExcept(ticketID, identity.ID, payload)
	g.emit(EvTypingStopped, ticketID, payload)
}

// NotifyNewTicket is the hook for tickets created out-of-band (REST side of
// the platform): agents watching the scope get a new_ticket event. The room
// itself stays lazy until someone joins or sends.
func (g *Gateway) NotifyNewTicket(ticketID, scopeID, ownerID, subject string) {
	payload := encodeEvent(EvNewTicket, map[string]any{
		"ticket_id": ticketID,
		"scope_id":  scopeID,
		"owner_id":  ownerID,
		"subject":   subject,
		"ts":        time.Now().UnixMilli(),
	})
	g.notifyScopeAgents(scopeID, payload)
	g.emit(EvNewTicket, ticketID, payload)
}
