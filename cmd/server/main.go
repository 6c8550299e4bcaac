package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"atmledger/internal/config"
	"atmledger/internal/handler"
	"atmledger/internal/infrastructure/cache"
	"atmledger/internal/infrastructure/database"
	"atmledger/internal/infrastructure/logging"
	"atmledger/internal/infrastructure/mq"
	"atmledger/internal/job"
	"atmledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	configPath := flag.String("config", envOr("ATMLEDGER_CONFIG", "config/config.yaml"), "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Log, os.Stdout)
	slog.SetDefault(log)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	// rdb stays a nil interface when redis is off, which disables the
	// idempotency guard.
	var rdb redis.Cmdable
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		rdb = client
		log.Info("redis connected", "addr", cfg.Redis.Addr())
	}

	opts := service.OptionsFromConfig(cfg)
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(&cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()

		publisher := job.NewOutboxPublisher(db, producer, cfg.Outbox, log)
		go publisher.Start(ctx)
		defer publisher.Stop()
	}

	ledger, err := service.NewLedgerService(db, opts, log)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.SetupRouter(ledger, rdb, cfg, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
