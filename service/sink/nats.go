package sink

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// NatsConfig for the NATS event sink.
type NatsConfig struct {
	Servers       []string
	Name          string // connection name, usually the gateway node id
	SubjectPrefix string // e.g. "support.events"
	ReconnectWait time.Duration
	Timeout       time.Duration
}

type NatsSink struct {
	nc     *nats.Conn
	prefix string
}

func NewNatsSink(cfg NatsConfig) (*NatsSink, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "support.events"
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}
	return &NatsSink{nc: nc, prefix: cfg.SubjectPrefix}, nil
}

// Publish sends to <prefix>.<event> with the routing key as a header, so
// consumers can subscribe per event class with plain subject wildcards.
func (s *NatsSink) Publish(_ context.Context, event, key string, payload []byte) error {
	msg := nats.NewMsg(s.prefix + "." + event)
	msg.Data = payload
	if key != "" {
		msg.Header.Set("Routing-Key", key)
	}
	return s.nc.PublishMsg(msg)
}

func (s *NatsSink) Close() error {
	if s.nc != nil {
		return s.nc.Drain()
	}
	return nil
}
