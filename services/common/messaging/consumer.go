package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
)

// deadLetterer is satisfied by DeadLetterProducer; kept narrow for tests.
type deadLetterer interface {
	Send(ctx context.Context, msg Message, cause error) error
}

// Consumer runs one reader loop per registered handler and applies the
// resilience chain uniformly to every dispatch:
//
//	retry policy -> circuit breaker -> dead-letter
type Consumer struct {
	brokers    []string
	retry      RetryPolicy
	breakerCfg CircuitBreakerConfig
	deadLetter deadLetterer
	logger     *zap.Logger

	newReader func(topic, groupID string) messageReader
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

func NewConsumer(brokers []string, retry RetryPolicy, breakerCfg CircuitBreakerConfig, deadLetter *DeadLetterProducer, logger *zap.Logger) *Consumer {
	c := &Consumer{
		brokers:    brokers,
		retry:      retry,
		breakerCfg: breakerCfg,
		logger:     logger,
	}
	if deadLetter != nil {
		c.deadLetter = deadLetter
	}
	if c.retry.ShouldRetry == nil {
		c.retry.ShouldRetry = func(err error) bool {
			return !errors.Is(err, ErrCircuitOpen) && apperrors.IsRetryable(err)
		}
	}
	c.newReader = func(topic, groupID string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 10e6,
		})
	}
	return c
}

// Start launches one consuming goroutine per handler. It returns
// immediately; loops stop when ctx is done.
func (c *Consumer) Start(ctx context.Context, registry *Registry) {
	for _, h := range registry.Handlers() {
		go c.run(ctx, h)
	}
}

func (c *Consumer) run(ctx context.Context, h EventHandler) {
	reader := c.newReader(h.Topic(), h.GroupID())
	defer reader.Close()

	breaker := NewCircuitBreaker(c.breakerCfg)
	c.logger.Info("consumer listening",
		zap.String("topic", h.Topic()),
		zap.String("group", h.GroupID()),
	)

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("read error", zap.String("topic", h.Topic()), zap.Error(err))
			continue
		}

		msg := Message{Topic: h.Topic(), Key: m.Key, Value: m.Value}
		if err := c.deliver(ctx, h, breaker, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.toDeadLetter(ctx, msg, err)
		}
	}
}

// deliver dispatches msg, pausing the loop while the breaker is open. An
// open circuit is backpressure, not a verdict on the message: the same
// message is re-dispatched once the reset deadline passes, and only
// handler verdicts (terminal errors, exhausted retries) reach the
// dead-letter topic.
func (c *Consumer) deliver(ctx context.Context, h EventHandler, breaker *CircuitBreaker, msg Message) error {
	for {
		err := c.dispatch(ctx, h, breaker, msg)
		if !errors.Is(err, ErrCircuitOpen) {
			return err
		}
		wait := breaker.RetryAfter()
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		c.logger.Warn("circuit open, pausing dispatch",
			zap.String("topic", h.Topic()),
			zap.Duration("retry_in", wait),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, h EventHandler, breaker *CircuitBreaker, msg Message) error {
	return c.retry.Do(ctx, func() error {
		return breaker.Execute(func() error {
			return h.Handle(ctx, msg)
		})
	})
}

func (c *Consumer) toDeadLetter(ctx context.Context, msg Message, cause error) {
	kind := apperrors.KindOf(cause)
	c.logger.Error("handler failed permanently",
		zap.String("topic", msg.Topic),
		zap.String("key", string(msg.Key)),
		zap.String("kind", kind.String()),
		zap.Error(cause),
	)
	if c.deadLetter == nil {
		return
	}
	if err := c.deadLetter.Send(ctx, msg, cause); err != nil {
		c.logger.Error("dead-letter routing failed", zap.Error(err))
	}
}
