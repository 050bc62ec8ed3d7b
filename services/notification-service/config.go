package main

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	Port          string
	Env           string
	MongoURL      string
	MongoDatabase string
	KafkaBrokers  []string
	ConsumerGroup string
	SQSQueueURL   string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8084"),
		Env:           getEnv("APP_ENV", "development"),
		MongoURL:      os.Getenv("MONGO_URL"),
		MongoDatabase: getEnv("MONGO_DB", "notifications"),
		KafkaBrokers:  strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "notification-service"),
		SQSQueueURL:   os.Getenv("SQS_QUEUE_URL"),
	}

	if cfg.MongoURL == "" {
		return nil, fmt.Errorf("MONGO_URL is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
