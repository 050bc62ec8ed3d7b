package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	awspkg "github.com/shoplet/marketplace-backend/pkg/aws"
	"github.com/shoplet/marketplace-backend/services/common/events"
)

// snsEnvelope unwraps the SNS -> SQS message wrapper.
type snsEnvelope struct {
	Message string `json:"Message"`
}

// SQSIntake consumes the SNS-mirrored order feed from an SQS queue and
// records activity notifications.
type SQSIntake struct {
	consumer      *awspkg.SQSConsumer
	notifications NotificationService
	logger        *zap.Logger
}

func NewSQSIntake(consumer *awspkg.SQSConsumer, notifications NotificationService, logger *zap.Logger) *SQSIntake {
	return &SQSIntake{consumer: consumer, notifications: notifications, logger: logger}
}

// Start polls until the context is cancelled.
func (s *SQSIntake) Start(ctx context.Context) {
	go func() {
		if err := s.consumer.StartPolling(ctx, s.handle); err != nil && ctx.Err() == nil {
			s.logger.Error("SQS intake stopped", zap.Error(err))
		}
	}()
}

func (s *SQSIntake) handle(ctx context.Context, body string) error {
	var envelope snsEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		// Unparseable bodies are deleted rather than retried forever.
		s.logger.Error("failed to unmarshal SNS envelope", zap.Error(err))
		return nil
	}
	var evt events.OrderCreatedOrUpdatedEvent
	if err := json.Unmarshal([]byte(envelope.Message), &evt); err != nil {
		s.logger.Error("failed to unmarshal order activity payload", zap.Error(err))
		return nil
	}
	return s.notifications.RecordOrderActivity(ctx, evt)
}
