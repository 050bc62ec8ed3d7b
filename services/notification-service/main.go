package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	awspkg "github.com/shoplet/marketplace-backend/pkg/aws"
	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/logger"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
	"github.com/shoplet/marketplace-backend/services/notification-service/controllers"
	"github.com/shoplet/marketplace-backend/services/notification-service/database"
	"github.com/shoplet/marketplace-backend/services/notification-service/repository"
	"github.com/shoplet/marketplace-backend/services/notification-service/routes"
	"github.com/shoplet/marketplace-backend/services/notification-service/services"
)

func main() {
	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Initialize(cfg.Env)
	zlog := logger.Log

	db, closeDB, err := database.Connect(cfg.MongoURL, cfg.MongoDatabase)
	if err != nil {
		zlog.Fatal("document store connection failed")
	}
	defer closeDB()

	notificationRepo := repository.NewNotificationRepository(db)
	notificationService := services.NewNotificationService(notificationRepo, zlog)

	registry := messaging.NewRegistry()
	registry.Register(services.NewOrderStatusConsumer(notificationService, cfg.ConsumerGroup))
	registry.Register(services.NewPaymentStatusConsumer(notificationService, cfg.ConsumerGroup))

	deadLetter := messaging.NewDeadLetterProducer(cfg.KafkaBrokers, zlog)
	defer deadLetter.Close()

	consumer := messaging.NewConsumer(
		cfg.KafkaBrokers,
		messaging.RetryPolicy{MaxAttempts: 5, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second},
		messaging.CircuitBreakerConfig{},
		deadLetter,
		zlog,
	)
	consumer.Start(context.Background(), registry)

	if cfg.SQSQueueURL != "" {
		awsCfg, err := awspkg.LoadAWSConfig(context.Background())
		if err != nil {
			zlog.Fatal("AWS config load failed")
		}
		intake := services.NewSQSIntake(
			awspkg.NewSQSConsumer(awsCfg, cfg.SQSQueueURL),
			notificationService,
			zlog,
		)
		intake.Start(context.Background())
	}

	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(), apperrors.ErrorMiddleware())

	routes.RegisterNotificationRoutes(r, controllers.NewNotificationController(notificationService))

	if err := r.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("server stopped")
	}
}
