package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsqueue/internal/logger"
	"github.com/deusflow/newsqueue/internal/news"
)

type stubWriter struct {
	failures int
	calls    int
	msgs     []kafka.Message
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.calls++
	if w.failures > 0 {
		w.failures--
		return errors.New("broker not available")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *stubWriter) Close() error { return nil }

func sampleEvent() EntryCreated {
	return NewEntryCreated("cycle-1", news.QueueEntry{
		ID:          9,
		WorkspaceID: 3,
		Headline:    "Harbour expansion approved by council",
		SourceURL:   "https://example.com/harbour",
		Category:    "Local",
		ImageURL:    "https://cdn.example.com/h.jpg",
		ImageMethod: "embedded:thumbnail",
		PublishedAt: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	})
}

func TestKafkaPublish(t *testing.T) {
	w := &stubWriter{failures: 1}
	k := newKafka(w, "news.entries", time.Second, logger.Nop())
	k.retry.Delay = time.Millisecond

	require.NoError(t, k.Publish(context.Background(), sampleEvent()))
	require.Equal(t, 2, w.calls)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "3", string(msg.Key))

	var got EntryCreated
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	require.Equal(t, int64(9), got.EntryID)
	require.Equal(t, "embedded:thumbnail", got.ImageMethod)
	require.Equal(t, "cycle-1", got.CycleID)
}

func TestKafkaPublishGivesUp(t *testing.T) {
	w := &stubWriter{failures: 10}
	k := newKafka(w, "news.entries", time.Second, logger.Nop())
	k.retry.Delay = time.Millisecond

	err := k.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	require.Contains(t, err.Error(), "news.entries")
	require.Equal(t, 3, w.calls)
}

type blockingWriter struct {
	calls int
}

func (w *blockingWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	w.calls++
	<-ctx.Done()
	return ctx.Err()
}

func (w *blockingWriter) Close() error { return nil }

func TestKafkaPublishIsBoundedByTimeout(t *testing.T) {
	w := &blockingWriter{}
	k := newKafka(w, "news.entries", 50*time.Millisecond, logger.Nop())
	k.retry.Delay = time.Millisecond

	start := time.Now()
	err := k.Publish(context.Background(), sampleEvent())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
	require.GreaterOrEqual(t, w.calls, 1)
}
