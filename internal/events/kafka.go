package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/deusflow/newsqueue/internal/retry"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DefaultPublishTimeout bounds one Publish call including its retries.
const DefaultPublishTimeout = 5 * time.Second

// Kafka publishes EntryCreated as JSON, keyed by workspace so one
// workspace's events stay ordered within a partition.
type Kafka struct {
	writer  messageWriter
	topic   string
	retry   retry.RetryConfig
	timeout time.Duration
	log     *slog.Logger
}

func NewKafka(brokers []string, topic string, timeout time.Duration, log *slog.Logger) *Kafka {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		MaxAttempts:  1,
		WriteTimeout: timeout,
		Balancer:     &kafka.Hash{},
	})
	return newKafka(w, topic, timeout, log)
}

func newKafka(w messageWriter, topic string, timeout time.Duration, log *slog.Logger) *Kafka {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Kafka{
		writer:  w,
		topic:   topic,
		retry:   retry.RetryConfig{MaxAttempts: 3, Delay: 200 * time.Millisecond, Backoff: true},
		timeout: timeout,
		log:     log,
	}
}

// Publish gives up once the publish timeout passes, whatever the caller's
// deadline.
func (k *Kafka) Publish(ctx context.Context, ev EntryCreated) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.WorkspaceID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("entry_created")},
			{Key: "cycle_id", Value: []byte(ev.CycleID)},
		},
	}

	err = retry.WithRetry(ctx, k.retry, func() error {
		return k.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", k.topic, err)
	}
	k.log.Debug("event published", "topic", k.topic, "entry", ev.EntryID)
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
