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
	"github.com/shoplet/marketplace-backend/services/shop-service/controllers"
	"github.com/shoplet/marketplace-backend/services/shop-service/models"
	"github.com/shoplet/marketplace-backend/services/shop-service/repository"
	"github.com/shoplet/marketplace-backend/services/shop-service/routes"
	"github.com/shoplet/marketplace-backend/services/shop-service/services"
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
		&models.Shop{}, &models.ShopRating{},
		&models.Wallet{}, &models.WalletTransaction{},
	); err != nil {
		zlog.Fatal("migration failed")
	}

	shopRepo := repository.NewGormShopRepository(db)
	walletRepo := repository.NewGormWalletRepository(db)

	settlements := services.NewSettlementService(walletRepo, zlog)
	orderClient := services.NewHTTPOrderClient(cfg.OrderServiceURL)

	registry := messaging.NewRegistry()
	registry.Register(services.NewShopPaymentConsumer(settlements, cfg.ConsumerGroup))
	registry.Register(services.NewRatingConsumer(shopRepo, orderClient, cfg.ConsumerGroup, zlog))

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

	routes.RegisterShopRoutes(r, controllers.NewShopController(shopRepo, settlements))

	if err := r.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("server stopped")
	}
}
