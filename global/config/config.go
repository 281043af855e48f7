package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"FestivalSupport/tools/ids"
)

// Sink backends for mirroring gateway events to external consumers.
const (
	SinkNoop  = "noop"
	SinkNats  = "nats"
	SinkKafka = "kafka"
)

// AppConfig carries everything the gateway process needs at boot.
// Defaults suit local development; env vars override per deployment.
type AppConfig struct {
	NodeID         string // gateway node id (log context, sink client name)
	HTTPAddr       string
	AllowedOrigins []string // empty = allow all (dev, native clients)

	JWTSecret []byte
	JWTAlg    string

	SnowflakeNode int64

	Sink         string // noop | nats | kafka
	NatsServers  []string
	KafkaBrokers []string
	EventSubject string // subject/topic prefix for mirrored events

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	PresenceMirror bool

	OfflineQueueCap int
	TypingTTL       time.Duration
	SendBuffer      int // per-connection outbound queue size
	FanoutWorkers   int
}

var Global = defaults()

func defaults() AppConfig {
	return AppConfig{
		NodeID:          "support_gw-1",
		HTTPAddr:        ":8080",
		JWTSecret:       []byte("mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o="),
		JWTAlg:          "HS256",
		SnowflakeNode:   1,
		Sink:            SinkNoop,
		NatsServers:     []string{"nats://127.0.0.1:4222"},
		KafkaBrokers:    []string{"127.0.0.1:9092"},
		EventSubject:    "support.events",
		RedisAddr:       "127.0.0.1:6379",
		RedisDB:         0,
		PresenceMirror:  false,
		OfflineQueueCap: 100,
		TypingTTL:       5 * time.Second,
		SendBuffer:      256,
		FanoutWorkers:   4,
	}
}

// Load applies env overrides on top of the defaults and returns the result.
// It also mutates Global so legacy call sites keep working.
func Load() AppConfig {
	c := defaults()

	if v := os.Getenv("GATEWAY_ID"); v != "" {
		c.NodeID = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = []byte(v)
	}
	if v := os.Getenv("JWT_ALG"); v != "" {
		c.JWTAlg = v
	}
	if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.SnowflakeNode = n
		}
	}
	if v := os.Getenv("EVENT_SINK"); v != "" {
		c.Sink = strings.ToLower(v)
	}
	if v := os.Getenv("NATS_SERVERS"); v != "" {
		c.NatsServers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = strings.Split(v, ",")
	}
	if v := os.Getenv("EVENT_SUBJECT"); v != "" {
		c.EventSubject = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
	if v := os.Getenv("PRESENCE_MIRROR"); v != "" {
		c.PresenceMirror = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("OFFLINE_QUEUE_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.OfflineQueueCap = n
		}
	}

	Global = c
	return c
}

func ConfigIds(c AppConfig) {
	ids.SetNodeID(c.SnowflakeNode)
}

func GetJwtSecret() []byte {
	return Global.JWTSecret
}
