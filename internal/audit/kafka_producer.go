package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducerConfig contains configurable parameters for the Kafka producer.
type KafkaProducerConfig struct {
	// Brokers is the list of Kafka broker addresses (host:port).
	Brokers []string

	// Topic is the topic audit entries are published to.
	Topic string

	// MaxAttempts is how many times the producer retries a produce on
	// transient error. Defaults to 3 if <= 0.
	MaxAttempts int

	// WriteTimeout is the per-attempt timeout for write operations.
	// Defaults to 10s if zero.
	WriteTimeout time.Duration
}

// KafkaProducer is a thin wrapper over segmentio/kafka-go Writer offering
// produce-with-retries behavior for the audit streaming sink. Entries keyed
// by domain land on the same partition, preserving per-domain ordering.
type KafkaProducer struct {
	writer      *kafka.Writer
	maxAttempts int
}

// NewKafkaProducer constructs a KafkaProducer. Returns an error if required
// params are missing.
func NewKafkaProducer(cfg KafkaProducerConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})

	return &KafkaProducer{writer: w, maxAttempts: cfg.MaxAttempts}, nil
}

// Produce writes a single message with the given key and value. If the
// produce ultimately fails after retries, a non-nil error is returned.
func (p *KafkaProducer) Produce(ctx context.Context, key []byte, value []byte) error {
	var lastErr error
	backoff := 100 * time.Millisecond

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		msg := kafka.Message{
			Key:   key,
			Value: value,
			Time:  time.Now().UTC(),
		}

		// Per-attempt context with timeout to avoid indefinite hangs.
		ctxAttempt, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.writer.WriteMessages(ctxAttempt, msg)
		cancel()

		if err == nil {
			return nil
		}

		lastErr = err
		time.Sleep(backoff)
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}

	return fmt.Errorf("produce failed after %d attempts: %w", p.maxAttempts, lastErr)
}

// ProduceJSON marshals v into compact JSON and produces it as the message value.
func (p *KafkaProducer) ProduceJSON(ctx context.Context, key []byte, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return p.Produce(ctx, key, b)
}

// Close shuts down the underlying writer and releases resources.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
