// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of *kafka.Writer the transport uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTransport implements the Transport interface by producing each result
// as a JSON message. Messages are keyed by the session key so one session
// lands on one partition.
type KafkaTransport struct {
	logger  *zap.Logger
	key     []byte
	timeout time.Duration

	mu     sync.Mutex
	w      messageWriter
	closed bool
}

// NewKafkaTransport produces to topic on brokers. The writer is
// asynchronous: delivery errors are logged, never returned by Send.
func NewKafkaTransport(brokers []string, topic, key string, logger *zap.Logger) *KafkaTransport {
	logger = logger.Named("kafka")
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Warn("delivery failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	logger.Info("producing results", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return newKafkaTransport(w, key, logger)
}

func newKafkaTransport(w messageWriter, key string, logger *zap.Logger) *KafkaTransport {
	return &KafkaTransport{
		logger:  logger,
		key:     []byte(key),
		timeout: 2 * time.Second,
		w:       w,
	}
}

// Send encodes r as JSON and hands it to the writer.
func (t *KafkaTransport) Send(r Result) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("transport: encoding result: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	msg := kafka.Message{
		Key:     t.key,
		Value:   value,
		Time:    r.Time,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte("application/json")}},
	}
	if err := t.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("transport: producing result: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (t *KafkaTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.w.Close(); err != nil {
		return fmt.Errorf("transport: closing kafka writer: %w", err)
	}
	return nil
}

// Ensure KafkaTransport satisfies the interface at compile time.
var _ Transport = (*KafkaTransport)(nil)
