package messaging

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is the producer-side interface services depend on, so business
// code can be tested without a broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, value []byte) error
	PublishJSON(ctx context.Context, topic string, key string, event interface{}) error
}

// Producer wraps a kafka writer shared by all topics of a service.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewProducer(brokers []string, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("kafka producer initialized", zap.Strings("brokers", brokers))
	return &Producer{writer: w, logger: logger}
}

func (p *Producer) Publish(ctx context.Context, topic string, key string, value []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish failed",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err),
		)
		return err
	}
	p.logger.Info("event published",
		zap.String("topic", topic),
		zap.String("key", key),
	)
	return nil
}

func (p *Producer) PublishJSON(ctx context.Context, topic string, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, key, data)
}

func (p *Producer) Close() error {
	p.logger.Info("closing kafka producer")
	return p.writer.Close()
}
