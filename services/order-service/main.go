package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	awspkg "github.com/shoplet/marketplace-backend/pkg/aws"
	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/logger"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
	"github.com/shoplet/marketplace-backend/services/order-service/controllers"
	"github.com/shoplet/marketplace-backend/services/order-service/models"
	"github.com/shoplet/marketplace-backend/services/order-service/repository"
	"github.com/shoplet/marketplace-backend/services/order-service/routes"
	"github.com/shoplet/marketplace-backend/services/order-service/services"
)

func main() {
	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Initialize(cfg.Env)
	zlog := logger.Log

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		zlog.Fatal("database connection failed")
	}
	if err := db.AutoMigrate(
		&models.Order{}, &models.OrderItem{},
		&models.RefundRequest{}, &models.RefundItem{},
	); err != nil {
		zlog.Fatal("migration failed")
	}

	producer := messaging.NewProducer(cfg.KafkaBrokers, zlog)
	defer producer.Close()

	var snsClient awspkg.SNSPublisher
	if cfg.SNSTopicArn != "" {
		if awsCfg, err := awspkg.LoadAWSConfig(context.Background()); err == nil {
			snsClient = awspkg.NewSNSClient(awsCfg)
		}
	}

	orderRepo := repository.NewGormOrderRepository(db)
	refundRepo := repository.NewGormRefundRepository(db)

	orderService := services.NewOrderService(orderRepo, producer, snsClient, cfg.SNSTopicArn, cfg.PlatformFeeBps, zlog)
	refundService := services.NewRefundService(refundRepo, orderRepo, producer, zlog)

	registry := messaging.NewRegistry()
	registry.Register(services.NewPaymentConsumer(orderRepo, refundRepo, producer, cfg.ConsumerGroup, zlog))
	registry.Register(services.NewStockRejectedConsumer(orderRepo, producer, cfg.ConsumerGroup, zlog))

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

	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(), apperrors.ErrorMiddleware())

	routes.RegisterOrderRoutes(r,
		controllers.NewOrderController(orderService),
		controllers.NewRefundController(refundService),
		controllers.NewDeliveryWebhookController(orderService, cfg.DeliverySecret, zlog),
	)

	if err := r.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("server stopped")
	}
}
