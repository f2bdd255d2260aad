// Package publish pushes each new estimate collection to a Kafka topic so
// consumers outside the HTTP server can follow refreshes.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nicktill/crowdwait/pkg/export"
)

// ErrNoBrokers is returned when a publisher is created without brokers
var ErrNoBrokers = errors.New("at least one kafka broker is required")

// Config holds Kafka publisher settings
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes estimate collections to Kafka, one message per refresh.
type Publisher struct {
	writer messageWriter
	topic  string
}

// NewKafka creates a publisher backed by a kafka-go writer
func NewKafka(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka topic must not be empty")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Publisher{writer: w, topic: cfg.Topic}, nil
}

// Publish encodes c and writes it keyed by day
func (p *Publisher) Publish(ctx context.Context, c *export.Collection) error {
	msg, err := encode(c)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish estimates to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encode(c *export.Collection) (kafka.Message, error) {
	if c == nil {
		return kafka.Message{}, errors.New("nil estimate collection")
	}
	value, err := json.Marshal(c)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode estimates: %w", err)
	}
	return kafka.Message{
		Key:   []byte(c.Day),
		Value: value,
		Time:  c.GeneratedAt,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(c.RunID)},
			{Key: "session_type", Value: []byte(c.SessionType)},
		},
	}, nil
}
