package sink

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"logpipe/internal/avro"
	"logpipe/internal/diag"
	"logpipe/internal/record"
)

// messageWriter abstracts the Kafka producer so tests can inject a fake.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig carries everything needed to build a Kafka sink.
type KafkaConfig struct {
	Servers             []string
	Topic               string
	SchemaRegistryURL   string
	SchemaCompatibility string
	MaxFailures         int
	WriteTimeout        time.Duration
}

// KafkaSink publishes Avro-encoded records to a topic, keyed by logger name
// so a partitioned topic keeps per-logger affinity.
type KafkaSink struct {
	writer     messageWriter
	serializer *avro.Serializer
	topic      string
	timeout    time.Duration
	breaker    *Breaker
	closed     bool
}

// NewKafka builds the producer and serializer, and performs the one-time
// best-effort schema registration. Registration failure only means payloads
// fall back to raw JSON; the sink is still constructed.
func NewKafka(cfg KafkaConfig, log *diag.Logger) (*KafkaSink, error) {
	if cfg.Topic == "" {
		cfg.Topic = "logs"
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	var registry *avro.RegistryClient
	if cfg.SchemaRegistryURL != "" {
		registry = avro.NewRegistryClient(cfg.SchemaRegistryURL, 5*time.Second)
	}
	serializer, err := avro.NewSerializer(registry, cfg.SchemaCompatibility, log)
	if err != nil {
		return nil, err
	}
	if registry != nil {
		if err := serializer.Register(cfg.Topic); err != nil {
			log.Warn("schema registration failed, falling back to JSON encoding",
				"topic", cfg.Topic, "error", err)
		}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Servers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &KafkaSink{
		writer:     writer,
		serializer: serializer,
		topic:      cfg.Topic,
		timeout:    cfg.WriteTimeout,
		breaker:    NewBreaker("kafka:"+cfg.Topic, cfg.MaxFailures, log),
	}, nil
}

func (s *KafkaSink) Name() string {
	return "kafka"
}

func (s *KafkaSink) Breaker() *Breaker {
	return s.breaker
}

// Serializer exposes the wire encoder, mainly for consumers and tests.
func (s *KafkaSink) Serializer() *avro.Serializer {
	return s.serializer
}

// Write serializes and publishes one record.
func (s *KafkaSink) Write(_ []byte, rec *record.Record) error {
	if s.closed {
		return ErrSinkClosed
	}
	value, err := s.serializer.Serialize(rec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.LoggerName),
		Value: value,
	})
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}
