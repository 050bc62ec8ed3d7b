package messaging

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DeadLetterSuffix is appended to the source topic to form the dead-letter
// destination.
const DeadLetterSuffix = ".dlq"

// DeadLetterProducer routes messages that exhausted the retry policy to a
// per-topic dead-letter destination for manual remediation. Failed messages
// are never silently dropped.
type DeadLetterProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewDeadLetterProducer(brokers []string, logger *zap.Logger) *DeadLetterProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &DeadLetterProducer{writer: w, logger: logger}
}

func (d *DeadLetterProducer) Send(ctx context.Context, msg Message, cause error) error {
	out := kafka.Message{
		Topic: msg.Topic + DeadLetterSuffix,
		Key:   msg.Key,
		Value: msg.Value,
		Headers: []kafka.Header{
			{Key: "x-origin-topic", Value: []byte(msg.Topic)},
			{Key: "x-error", Value: []byte(cause.Error())},
			{Key: "x-failed-at", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		},
	}
	if err := d.writer.WriteMessages(ctx, out); err != nil {
		d.logger.Error("dead-letter publish failed",
			zap.String("topic", msg.Topic),
			zap.Error(err),
		)
		return err
	}
	d.logger.Warn("message dead-lettered",
		zap.String("topic", msg.Topic),
		zap.String("key", string(msg.Key)),
		zap.String("cause", cause.Error()),
	)
	return nil
}

func (d *DeadLetterProducer) Close() error {
	return d.writer.Close()
}
