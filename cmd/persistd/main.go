package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/danya02/multibooru-mirror/internal/bus"
	"github.com/danya02/multibooru-mirror/internal/config"
	"github.com/danya02/multibooru-mirror/internal/metrics"
	"github.com/danya02/multibooru-mirror/internal/persistence"
	"github.com/danya02/multibooru-mirror/internal/record"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// Every record lands in the append-only file pile and the latest-state
	// table, through one fan-out backend.
	filePile := persistence.NewFilePile(cfg.Records.Dir, logger)
	latest := persistence.NewPostgresLatest(db, logger)
	backend := persistence.NewDuplicater(filePile, latest, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := backend.Init(ctx); err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	sender := backend.Sender()

	metrics.Init()
	metricsServer := &http.Server{
		Addr:    cfg.Metrics.Addr,
		Handler: metrics.Handler(),
	}
	go func() {
		logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	consumer, err := bus.NewConsumer(bus.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, "imageboards.persistence-reader", logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("waiting for records")

	runErr := consumer.Run(ctx, func(ctx context.Context, body []byte) error {
		return handleRecord(ctx, sender, logger, body)
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := backend.Shutdown(shutdownCtx); err != nil {
		logger.Error("storage shutdown failed", "error", err)
	}
	_ = metricsServer.Shutdown(shutdownCtx)

	if runErr != nil {
		logger.Error("consumer failed", "error", runErr)
		os.Exit(1)
	}
}

// handleRecord decodes one delivery and waits for the storage outcome, so an
// acknowledged delivery is known to be durable.
func handleRecord(ctx context.Context, sender persistence.Sender, logger *slog.Logger, body []byte) error {
	rec, err := record.Decode(body)
	if err != nil {
		metrics.RecordFailedParse()
		return err
	}

	outcome, ok := <-sender.SubmitAndJoin(ctx, rec)
	if !ok {
		outcome = persistence.ErrSenderDropped
	}
	if outcome != nil {
		metrics.RecordFailedSave()
		return outcome
	}

	metrics.RecordOK()
	logger.Debug("record persisted", "id", rec.ID, "key", rec.Key())
	return nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
