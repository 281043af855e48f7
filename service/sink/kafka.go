package sink

import (
	"context"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"FestivalSupport/logger"
	"FestivalSupport/tools/safe"
)

// KafkaConfig for the Kafka event sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string // single topic; the event name travels in a header
}

type KafkaSink struct {
	client   sarama.Client
	producer sarama.AsyncProducer
	topic    string
}

func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers missing")
	}
	if cfg.Topic == "" {
		cfg.Topic = "support.events"
	}

	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Partitioner = sarama.NewHashPartitioner // key keeps per-ticket order
	sc.Net.DialTimeout = 10 * time.Second

	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, errors.Wrap(err, "kafka client")
	}
	producer, err := sarama.NewAsyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "kafka producer")
	}

	safe.SafeGo(func() {
		for perr := range producer.Errors() {
			logger.Errorf("[sink] kafka publish error: %v", perr.Err)
		}
	})

	return &KafkaSink{client: client, producer: producer, topic: cfg.Topic}, nil
}

func (s *KafkaSink) Publish(_ context.Context, event, key string, payload []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(event)},
		},
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	s.producer.Input() <- msg
	return nil
}

func (s *KafkaSink) Close() error {
	s.producer.AsyncClose()
	return s.client.Close()
}
