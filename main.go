package main

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	config "FestivalSupport/global/config"
	"FestivalSupport/logger"
	"FestivalSupport/middleware"
	"FestivalSupport/service/gateway"
	"FestivalSupport/service/sink"
	"FestivalSupport/service/storage"
	redis "FestivalSupport/service/storage/redis"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debugf("no .env file loaded: %v", err)
	}
	cfg := config.Load()
	config.ConfigIds(cfg)

	// event sink: external consumers (message store, audit) subscribe here
	var events sink.EventSink = sink.Noop{}
	switch cfg.Sink {
	case config.SinkNats:
		s, err := sink.NewNatsSink(sink.NatsConfig{
			Servers:       cfg.NatsServers,
			Name:          cfg.NodeID,
			SubjectPrefix: cfg.EventSubject,
		})
		if err != nil {
			logger.Errorf("[boot] nats sink: %v", err)
			os.Exit(1)
		}
		events = s
	case config.SinkKafka:
		s, err := sink.NewKafkaSink(sink.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.EventSubject,
		})
		if err != nil {
			logger.Errorf("[boot] kafka sink: %v", err)
			os.Exit(1)
		}
		events = s
	}
	defer func() { _ = events.Close() }()

	// optional redis presence mirror for external dashboards
	var mirror gateway.PresenceMirror
	if cfg.PresenceMirror {
		if err := redis.InitRedis(redis.Config{
			Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB,
		}); err != nil {
			logger.Warnf("[boot] redis unavailable, presence mirror disabled: %v", err)
		} else {
			mirror = storage.NewMirror()
		}
	}

	g := gateway.NewGateway(gateway.Config{
		NodeID:          cfg.NodeID,
		JWTSecret:       cfg.JWTSecret,
		JWTAlg:          cfg.JWTAlg,
		OfflineQueueCap: cfg.OfflineQueueCap,
		TypingTTL:       cfg.TypingTTL,
		SendBuffer:      cfg.SendBuffer,
		FanoutWorkers:   cfg.FanoutWorkers,
	}, events, mirror)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Origin(cfg.AllowedOrigins))

	r.GET("/ws", g.HandleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"node":   cfg.NodeID,
			"online": g.Presence().OnlineCount(),
			"rooms":  g.Rooms().Count(),
		})
	})

	// out-of-band ticket creation (REST side of the platform) surfaces to
	// agents through the gateway
	r.POST("/internal/tickets/notify", func(c *gin.Context) {
		var req struct {
			TicketID string `json:"ticket_id" binding:"required"`
			ScopeID  string `json:"scope_id"`
			OwnerID  string `json:"owner_id"`
			Subject  string `json:"subject"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		g.NotifyNewTicket(req.TicketID, req.ScopeID, req.OwnerID, req.Subject)
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	logger.Infof("[http] gateway %s listening on %s", cfg.NodeID, cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Errorf("http server failed: %v", err)
		os.Exit(1)
	}
}
