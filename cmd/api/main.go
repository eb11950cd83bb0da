package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"storecore/internal/cache"
	"storecore/internal/client"
	"storecore/internal/config"
	"storecore/internal/logger"
	"storecore/internal/notify"
	"storecore/internal/repository"
	"storecore/internal/server"
	"storecore/internal/service"
	"storecore/internal/tracing"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// load .env into os.Environ
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

	if err := run(cfg, log); err != nil {
		log.Fatal("storecore api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	shutdownTracing, err := tracing.Init(cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("flush traces", zap.Error(err))
		}
	}()

	db, err := client.InitDBClient(cfg.Database, log)
	if err != nil {
		return err
	}

	store, closeStore := cache.NewStore(cfg.Redis, log)
	defer closeStore()
	cacheAccessor := cache.NewAccessor(store, log)

	publisher, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(publisher, cfg.Notify.QueueSize, log)
	defer func() {
		if err := dispatcher.Close(); err != nil {
			log.Warn("close notification dispatcher", zap.Error(err))
		}
	}()

	branchRepo := repository.NewBranchRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentTransactionRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	stockRepo := repository.NewStockRepository(db)
	deadLetterRepo := repository.NewDeadLetterRepository(db)

	if cfg.Environment.Name != "production" {
		seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := branchRepo.Seed(seedCtx, cfg.Sales.OnlineBranchID); err != nil {
			return fmt.Errorf("seed branches: %w", err)
		}
		if err := productRepo.Seed(seedCtx); err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
	}

	saleService, err := service.NewSaleService(
		db, cfg.Sales,
		client.NewFiscalClient(&cfg.Fiscal, log),
		saleRepo, stockRepo, branchRepo, deadLetterRepo,
		dispatcher, log,
	)
	if err != nil {
		return err
	}
	orderService := service.NewOrderService(
		db, cfg.Sales, saleService,
		orderRepo, productRepo, branchRepo, saleRepo, deadLetterRepo,
		dispatcher, log,
	)
	mpesaService := service.NewMpesaService(
		db, cfg.Mpesa,
		client.NewMpesaClient(&cfg.Mpesa),
		cacheAccessor, orderService,
		orderRepo, paymentRepo, deadLetterRepo,
		dispatcher, log,
	)
	stockService := service.NewStockService(db, stockRepo, branchRepo, productRepo, deadLetterRepo, dispatcher, log)
	fxService := service.NewExchangeRateService(
		client.NewExchangeRateClient(cfg.ExchangeRate.APIURL),
		cacheAccessor, cfg.ExchangeRate.TTL,
	)

	srv := server.NewServer(cfg, server.Services{
		Orders:       orderService,
		Mpesa:        mpesaService,
		Sales:        saleService,
		Stock:        stockService,
		ExchangeRate: fxService,
	}, log)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	serverErr := make(chan error, 1)

	log.Info("Starting HTTP server", zap.String("addr", serverAddr))
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		log.Info("Signal received, starting graceful shutdown", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func newPublisher(cfg *config.Config, log *zap.Logger) (notify.Publisher, error) {
	if !cfg.Kafka.Enabled {
		log.Info("Kafka disabled, notifications go to the log")
		return notify.LogPublisher{Logger: log}, nil
	}

	producer, err := notify.InitProducer(cfg.Kafka, log)
	if err != nil {
		return nil, err
	}
	return notify.NewKafkaPublisher(producer, cfg.Kafka.TopicPrefix, log), nil
}
