package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/danya02/multibooru-mirror/internal/bus"
	"github.com/danya02/multibooru-mirror/internal/config"
	"github.com/danya02/multibooru-mirror/internal/media"
	"github.com/danya02/multibooru-mirror/internal/poller"
	"github.com/danya02/multibooru-mirror/internal/record"
	"github.com/danya02/multibooru-mirror/internal/source/danbooru"
	"github.com/danya02/multibooru-mirror/internal/source/rule34"
)

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

	// Initialize RabbitMQ publisher
	publisher, err := bus.NewPublisher(bus.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// Initialize media store
	store, err := media.NewStore(media.Config{
		Root:      cfg.Media.Root,
		IndexPath: cfg.Media.IndexPath,
		MaxSize:   cfg.Media.MaxSize,
		Timeout:   cfg.Media.Timeout,
		UserAgent: cfg.UserAgent,
	}, logger)
	if err != nil {
		logger.Error("failed to open media store", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	submitter := busSubmitter{publisher: publisher}
	loops := buildLoops(cfg, store, submitter, logger)
	if len(loops) == 0 {
		logger.Error("no loops enabled in config")
		os.Exit(1)
	}

	logger.Info("starting scraper", "loops", len(loops))

	errCh := make(chan error, len(loops)+1)

	// The media worker's only fatal error is an integrity violation; it
	// brings the whole process down.
	go func() {
		errCh <- store.Run(ctx)
	}()

	for _, loop := range loops {
		go func() {
			errCh <- loop.Run(ctx)
		}()
	}

	if err := <-errCh; err != nil {
		logger.Error("scraper failed", "error", err)
		cancel()
		os.Exit(1)
	}
}

// busSubmitter bridges the polling loops to the AMQP publisher.
type busSubmitter struct {
	publisher *bus.Publisher
}

func (s busSubmitter) Submit(ctx context.Context, rec record.Record) error {
	return s.publisher.Publish(ctx, rec)
}

func buildLoops(cfg *config.Config, store *media.Store, submitter poller.Submitter, logger *slog.Logger) []*poller.Loop {
	pollCfg := poller.Config{
		InitialDelay:         cfg.Poll.InitialDelay,
		MinDelay:             cfg.Poll.MinDelay,
		MaxDelay:             cfg.Poll.MaxDelay,
		Step:                 cfg.Poll.Step,
		ErrorBudget:          cfg.Poll.ErrorBudget,
		ResetErrorsOnSuccess: cfg.Poll.ResetErrorsOnSuccess,
	}
	deletedCfg := pollCfg
	deletedCfg.InitialDelay = cfg.Poll.DeletedInitialDelay

	danbooruClient := danbooru.NewClient(danbooru.Config{
		BaseURL:   cfg.Danbooru.BaseURL,
		PageSize:  cfg.Danbooru.PageSize,
		Timeout:   cfg.Danbooru.Timeout,
		UserAgent: cfg.UserAgent,
	}, logger)

	var loops []*poller.Loop
	if cfg.Danbooru.Comments {
		source := danbooru.NewComments(danbooruClient, logger)
		loops = append(loops, poller.NewLoop(source, submitter, pollCfg, logger))
	}
	if cfg.Danbooru.DeletedComments {
		source := danbooru.NewDeletedComments(danbooruClient, logger)
		loops = append(loops, poller.NewLoop(source, submitter, deletedCfg, logger))
	}
	if cfg.Danbooru.Posts {
		source := danbooru.NewPosts(danbooruClient, store, logger)
		loops = append(loops, poller.NewLoop(source, submitter, pollCfg, logger))
	}
	if cfg.Danbooru.Tags {
		source := danbooru.NewTags(danbooruClient, logger)
		loops = append(loops, poller.NewLoop(source, submitter, pollCfg, logger))
	}
	if cfg.Rule34.Comments {
		source := rule34.NewComments(rule34.Config{
			BaseURL:   cfg.Rule34.BaseURL,
			Timeout:   cfg.Rule34.Timeout,
			UserAgent: cfg.UserAgent,
		}, logger)
		loops = append(loops, poller.NewLoop(source, submitter, pollCfg, logger))
	}
	return loops
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
