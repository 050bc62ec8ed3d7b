package messaging

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
)

// fakeReader replays a fixed message sequence then blocks until the
// context is cancelled.
type fakeReader struct {
	messages []kafka.Message
	idx      int
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if r.idx < len(r.messages) {
		m := r.messages[r.idx]
		r.idx++
		return m, nil
	}
	<-ctx.Done()
	return kafka.Message{}, io.EOF
}

func (r *fakeReader) Close() error { return nil }

type recordingHandler struct {
	mu      sync.Mutex
	calls   int
	results []error
	done    chan struct{}
}

func (h *recordingHandler) Topic() string   { return "orders.status-changed" }
func (h *recordingHandler) GroupID() string { return "test-group" }

func (h *recordingHandler) Handle(_ context.Context, _ Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	if h.calls < len(h.results) {
		err = h.results[h.calls]
	}
	h.calls++
	if h.calls == len(h.results) && h.done != nil {
		close(h.done)
	}
	return err
}

func (h *recordingHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type fakeDeadLetter struct {
	mu   sync.Mutex
	sent []Message
	done chan struct{}
}

func (d *fakeDeadLetter) Send(_ context.Context, msg Message, _ error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	if d.done != nil {
		close(d.done)
		d.done = nil
	}
	return nil
}

func newTestConsumer(dl deadLetterer, reader messageReader) *Consumer {
	logger, _ := zap.NewDevelopment()
	c := NewConsumer(nil, RetryPolicy{MaxAttempts: 3, Sleep: func(context.Context, time.Duration) error { return nil }}, CircuitBreakerConfig{}, nil, logger)
	c.deadLetter = dl
	c.newReader = func(_, _ string) messageReader { return reader }
	return c
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	handler := &recordingHandler{
		results: []error{apperrors.Transient("db timeout", nil), nil},
		done:    make(chan struct{}),
	}
	reader := &fakeReader{messages: []kafka.Message{{Key: []byte("k"), Value: []byte("{}")}}}
	dl := &fakeDeadLetter{}
	consumer := newTestConsumer(dl, reader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := NewRegistry()
	registry.Register(handler)
	consumer.Start(ctx, registry)

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not complete in time")
	}
	assert.Equal(t, 2, handler.callCount())
	assert.Empty(t, dl.sent)
}

func TestConsumer_TerminalErrorGoesToDeadLetter(t *testing.T) {
	handler := &recordingHandler{
		results: []error{apperrors.StateConflict("illegal transition")},
	}
	reader := &fakeReader{messages: []kafka.Message{{Key: []byte("k"), Value: []byte("{}")}}}
	dlDone := make(chan struct{})
	dl := &fakeDeadLetter{done: dlDone}
	consumer := newTestConsumer(dl, reader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := NewRegistry()
	registry.Register(handler)
	consumer.Start(ctx, registry)

	select {
	case <-dlDone:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not dead-lettered in time")
	}
	// Terminal errors are not retried.
	assert.Equal(t, 1, handler.callCount())

	dl.mu.Lock()
	defer dl.mu.Unlock()
	assert.Len(t, dl.sent, 1)
	assert.Equal(t, "orders.status-changed", dl.sent[0].Topic)
}

func TestConsumer_OpenBreakerPausesInsteadOfDeadLettering(t *testing.T) {
	// Two transient failures trip the breaker (MinRequests 2) mid-retry.
	// The message must be re-dispatched after the reset deadline, not
	// dead-lettered, and the next message must still get its handler
	// invocations.
	handler := &recordingHandler{
		results: []error{
			apperrors.Transient("down", nil),
			apperrors.Transient("down", nil),
			nil, // half-open trial call after the reset deadline
			nil, // second message
		},
		done: make(chan struct{}),
	}
	reader := &fakeReader{messages: []kafka.Message{
		{Key: []byte("m1"), Value: []byte("{}")},
		{Key: []byte("m2"), Value: []byte("{}")},
	}}
	dl := &fakeDeadLetter{}

	logger, _ := zap.NewDevelopment()
	consumer := NewConsumer(nil,
		RetryPolicy{MaxAttempts: 3, Sleep: func(context.Context, time.Duration) error { return nil }},
		CircuitBreakerConfig{MinRequests: 2, ResetTimeout: 20 * time.Millisecond},
		nil, logger)
	consumer.deadLetter = dl
	consumer.newReader = func(_, _ string) messageReader { return reader }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := NewRegistry()
	registry.Register(handler)
	consumer.Start(ctx, registry)

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages were not delivered after the breaker reset")
	}
	assert.Equal(t, 4, handler.callCount())

	dl.mu.Lock()
	defer dl.mu.Unlock()
	assert.Empty(t, dl.sent)
}

func TestConsumer_ExhaustedRetriesGoToDeadLetter(t *testing.T) {
	handler := &recordingHandler{
		results: []error{
			apperrors.Transient("down", nil),
			apperrors.Transient("down", nil),
			apperrors.Transient("down", nil),
		},
	}
	reader := &fakeReader{messages: []kafka.Message{{Key: []byte("k"), Value: []byte("{}")}}}
	dlDone := make(chan struct{})
	dl := &fakeDeadLetter{done: dlDone}
	consumer := newTestConsumer(dl, reader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := NewRegistry()
	registry.Register(handler)
	consumer.Start(ctx, registry)

	select {
	case <-dlDone:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not dead-lettered in time")
	}
	assert.Equal(t, 3, handler.callCount())
}
