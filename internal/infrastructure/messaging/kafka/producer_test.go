package kafka

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/types/common"
)

type fakeWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed    bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.writeFunc != nil {
		return w.writeFunc(ctx, msgs...)
	}
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWriter) Stats() kafka.WriterStats { return kafka.WriterStats{} }

func newTestProducer(writer WriterInterface) *Producer {
	return &Producer{
		writer: writer,
		config: ProducerConfig{
			Brokers:         []string{"localhost:9092"},
			MaxMessageBytes: 1024 * 1024,
		},
		logger: logging.NewNopLogger(),
	}
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"localhost:9092"}}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"localhost:9092"}, MaxRetries: -1}))
}

func TestPublish(t *testing.T) {
	var captured []kafka.Message
	writer := &fakeWriter{
		writeFunc: func(_ context.Context, msgs ...kafka.Message) error {
			captured = msgs
			return nil
		},
	}
	p := newTestProducer(writer)

	err := p.Publish(context.Background(), &common.ProducerMessage{
		Topic:   TopicAnnotationCompleted,
		Key:     []byte("file-1"),
		Value:   []byte(`{"file_hash_id":"file-1"}`),
		Headers: map[string]string{"cause": "user"},
	})
	require.NoError(t, err)

	require.Len(t, captured, 1)
	assert.Equal(t, TopicAnnotationCompleted, captured[0].Topic)
	assert.Equal(t, "file-1", string(captured[0].Key))
	require.Len(t, captured[0].Headers, 1)
	assert.Equal(t, "cause", captured[0].Headers[0].Key)
	assert.False(t, captured[0].Time.IsZero())
	assert.Equal(t, int64(1), p.sent.Load())
}

func TestPublish_WriteFailure(t *testing.T) {
	writer := &fakeWriter{
		writeFunc: func(context.Context, ...kafka.Message) error {
			return errors.New("broker unavailable")
		},
	}
	p := newTestProducer(writer)

	err := p.Publish(context.Background(), &common.ProducerMessage{
		Topic: TopicAnnotationFailed,
		Value: []byte("payload"),
	})
	assert.Error(t, err)
	assert.Equal(t, int64(1), p.failed.Load())
}

func TestPublish_Validation(t *testing.T) {
	p := newTestProducer(&fakeWriter{})

	assert.Error(t, p.Publish(context.Background(), &common.ProducerMessage{Value: []byte("v")}))
	assert.Error(t, p.Publish(context.Background(), &common.ProducerMessage{Topic: "t"}))

	tooLarge := &common.ProducerMessage{
		Topic: "t",
		Value: []byte(strings.Repeat("x", 2*1024*1024)),
	}
	assert.Error(t, p.Publish(context.Background(), tooLarge))
}

func TestPublish_AfterClose(t *testing.T) {
	writer := &fakeWriter{}
	p := newTestProducer(writer)

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
	// Close is idempotent.
	require.NoError(t, p.Close())

	err := p.Publish(context.Background(), &common.ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.Equal(t, ErrProducerClosed, err)
}
