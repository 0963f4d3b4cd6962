package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/redisolar/internal/domain/meter"
)

func TestDecodeReadings(t *testing.T) {
	single, err := DecodeReadings([]byte(`{"siteId":1,"dateTime":"2019-07-10T00:00:00Z","whUsed":1.5,"whGenerated":2,"tempC":20}`))
	require.NoError(t, err)
	require.Len(t, single, 1)
	require.Equal(t, int64(1), single[0].SiteID)
	require.Equal(t, int64(1562716800), single[0].DateTime)
	require.Equal(t, 2.0, *single[0].WhGenerated)
	require.Equal(t, 1.5, *single[0].WhUsed)

	array, err := DecodeReadings([]byte(` [{"siteId":1,"dateTime":1},{"siteId":2,"dateTime":"2"}]`))
	require.NoError(t, err)
	require.Len(t, array, 2)
	require.Equal(t, int64(2), array[1].DateTime)

	envelope, err := DecodeReadings([]byte(`{"readings":[{"siteId":3,"dateTime":5}]}`))
	require.NoError(t, err)
	require.Len(t, envelope, 1)
	require.Equal(t, int64(3), envelope[0].SiteID)

	_, err = DecodeReadings([]byte("   "))
	require.Error(t, err)
	_, err = DecodeReadings([]byte(`{"siteId":"north"}`))
	require.Error(t, err)
}

func TestConsumerSubmitsAndCommits(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`{"siteId":1,"dateTime":10}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`[{"siteId":2,"dateTime":11},{"siteId":2,"dateTime":12}]`)},
	}}
	submitter := &stubSubmitter{}
	consumer := newConsumer(Config{Topic: "readings", PollTimeout: 50 * time.Millisecond}, reader, submitter, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, consumer.Run(context.Background()))

	require.Len(t, submitter.batches, 2)
	require.Len(t, submitter.batches[1], 2)
	require.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestConsumerStopsOnCancel(t *testing.T) {
	reader := &stubReader{block: true}
	consumer := newConsumer(Config{PollTimeout: 10 * time.Millisecond}, reader, &stubSubmitter{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

type stubReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	block     bool
}

func (r *stubReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	if r.block {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	return kafka.Message{}, io.EOF
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubSubmitter struct {
	batches [][]meter.MeterReading
}

func (s *stubSubmitter) Submit(_ context.Context, readings []meter.MeterReading) error {
	if len(readings) == 0 {
		return errors.New("empty")
	}
	s.batches = append(s.batches, readings)
	return nil
}
