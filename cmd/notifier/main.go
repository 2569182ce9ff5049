package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/notdp/franxx-store-sub000/internal/config"
	"github.com/notdp/franxx-store-sub000/internal/kafka"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/notify"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.LogDir)
	if err != nil {
		panic(err)
	}
	defer log.Close()
	if level, ok := logger.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	} else {
		log.Warn("CONFIG", fmt.Sprintf("Unknown LOG_LEVEL %q, keeping debug", cfg.LogLevel))
	}

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	if cfg.Email.SMTPUsername == "" {
		log.Warn("CONFIG", "SMTP_USERNAME not set, mail delivery will likely be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	topics := []string{cfg.Kafka.Topics.OrderDelivered, cfg.Kafka.Topics.OrderFailed}
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	mailer := notify.NewMailer(cfg.Email, log)

	log.Info("APP", fmt.Sprintf("Notifier consuming %v as group %s", topics, cfg.Kafka.GroupID))
	if err := consumer.Start(ctx, mailer.HandleOrderEvent); err != nil {
		log.Error("KAFKA", fmt.Sprintf("Consumer stopped with error: %v", err))
		return
	}
	log.Info("APP", "✅ Notifier shutdown complete")
}
