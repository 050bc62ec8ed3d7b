package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/logger"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
	"github.com/shoplet/marketplace-backend/services/payment-service/controllers"
	"github.com/shoplet/marketplace-backend/services/payment-service/models"
	"github.com/shoplet/marketplace-backend/services/payment-service/repository"
	"github.com/shoplet/marketplace-backend/services/payment-service/routes"
	"github.com/shoplet/marketplace-backend/services/payment-service/services"
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
	if err := db.AutoMigrate(&models.Payment{}); err != nil {
		zlog.Fatal("migration failed")
	}

	producer := messaging.NewProducer(cfg.KafkaBrokers, zlog)
	defer producer.Close()

	repo := repository.NewGormPaymentRepo(db)
	stripeClient := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey)
	paymentService := services.NewPaymentService(repo, producer, stripeClient, zlog)

	registry := messaging.NewRegistry()
	registry.Register(services.NewPaymentRequestConsumer(paymentService, stripeClient, cfg.Currency, cfg.ConsumerGroup, zlog))
	registry.Register(services.NewRefundConsumer(paymentService, cfg.ConsumerGroup, zlog))

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
	routes.RegisterPaymentRoutes(r, controllers.NewPaymentController(paymentService, stripeClient, zlog))

	if err := r.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("server stopped")
	}
}
