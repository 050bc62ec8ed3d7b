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
	"github.com/shoplet/marketplace-backend/services/product-service/controllers"
	"github.com/shoplet/marketplace-backend/services/product-service/models"
	"github.com/shoplet/marketplace-backend/services/product-service/repository"
	"github.com/shoplet/marketplace-backend/services/product-service/routes"
	"github.com/shoplet/marketplace-backend/services/product-service/services"
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
		&models.Product{}, &models.ProductVariant{}, &models.StockAdjustment{},
	); err != nil {
		zlog.Fatal("migration failed")
	}

	producer := messaging.NewProducer(cfg.KafkaBrokers, zlog)
	defer producer.Close()

	productRepo := repository.NewGormProductRepository(db)
	ledger := services.NewInventoryLedger(productRepo, producer, zlog)

	registry := messaging.NewRegistry()
	registry.Register(services.NewOrderEventConsumer(ledger, cfg.ConsumerGroup))
	registry.Register(services.NewRefundCompletedConsumer(ledger, cfg.ConsumerGroup))

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

	routes.RegisterProductRoutes(r, controllers.NewProductController(productRepo))

	if err := r.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("server stopped")
	}
}
