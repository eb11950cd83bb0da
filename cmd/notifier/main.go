package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"storecore/internal/config"
	"storecore/internal/logger"
	"storecore/internal/notify"
	"storecore/internal/tracing"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// notifier consumes notification topics and renders the customer and staff
// messages. Delivery is logged; wiring an SMS or email provider is left to
// deployment.
func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	shutdownTracing, err := tracing.Init(cfg.Tracing, log)
	if err != nil {
		log.Fatal("init tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	handler := func(ctx context.Context, n notify.Notification) error {
		msg, err := notify.Render(n, cfg.Sales.Currency, cfg.Notify.StaffAddress)
		if err != nil {
			return err
		}
		log.Info("notification delivered",
			zap.String("kind", string(n.Kind())),
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.String("body", msg.Body),
		)
		return nil
	}

	consumer, err := notify.NewConsumer(cfg.Kafka, handler, log)
	if err != nil {
		log.Fatal("create consumer", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := consumer.Run(ctx); err != nil {
		log.Error("consumer stopped", zap.Error(err))
	}
	if err := consumer.Close(); err != nil {
		log.Warn("close consumer", zap.Error(err))
	}
}
