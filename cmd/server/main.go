// Package main is the entry point for the WiFi registry service.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sebasr/wifi-registry/internal/bot"
	"github.com/sebasr/wifi-registry/internal/config"
	"github.com/sebasr/wifi-registry/internal/database"
	"github.com/sebasr/wifi-registry/internal/dedup"
	"github.com/sebasr/wifi-registry/internal/enrichment"
	"github.com/sebasr/wifi-registry/internal/ingest"
	"github.com/sebasr/wifi-registry/internal/logging"
	"github.com/sebasr/wifi-registry/internal/metrics"
	"github.com/sebasr/wifi-registry/internal/mqttingest"
	"github.com/sebasr/wifi-registry/internal/repository"
	"github.com/sebasr/wifi-registry/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Service)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("error closing database", zap.Error(err))
		}
	}()
	logger.Info("connected to database", zap.String("driver", cfg.Database.Driver))

	repo := repository.NewSQLAccessPointRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		return err
	}

	m := metrics.New()
	controller := ingest.NewController(repo,
		ingest.WithLogger(logger.Named("ingest")),
		ingest.WithMetrics(m),
		ingest.WithDedupEngine(dedup.NewEngine(cfg.Ingest.DedupFields...)),
		ingest.WithMaxReportedErrors(cfg.Ingest.MaxReportedErrors),
		ingest.WithProgressInterval(cfg.Ingest.ProgressInterval),
		ingest.WithHistoryDedup(cfg.Ingest.HistoryDedup),
	)

	store, closeStore, err := sessionStore(ctx, &cfg.Enrichment, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	machine := enrichment.NewMachine(store, controller,
		enrichment.WithLogger(logger.Named("enrichment")),
		enrichment.WithMetrics(m),
	)

	router := server.New(&server.Dependencies{
		Config:     cfg,
		Repo:       repo,
		Controller: controller,
		Machine:    machine,
		Metrics:    m,
		DB:         db,
		Logger:     logger.Named("http"),
	})

	var chatBot *bot.Bot
	if cfg.Telegram.BotToken != "" {
		api, err := bot.NewAPI(cfg.Telegram.BotToken)
		if err != nil {
			return err
		}
		chatBot = bot.New(api, controller, repo, machine,
			bot.WithAuthorizedChat(cfg.Telegram.AuthorizedChatID),
			bot.WithLogger(logger.Named("telegram")),
		)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.MQTT.Broker != "" {
		subscriber := mqttingest.NewSubscriber(&cfg.MQTT, controller, logger.Named("mqtt"))
		g.Go(func() error { return subscriber.Start(gctx) })
	} else {
		logger.Info("MQTT ingestion disabled")
	}

	if chatBot != nil {
		g.Go(func() error { return chatBot.Run(gctx) })
	} else {
		logger.Info("Telegram bot disabled")
	}

	return g.Wait()
}

// sessionStore builds the configured enrichment session store and its cleanup
func sessionStore(ctx context.Context, cfg *config.EnrichmentConfig, logger *zap.Logger) (enrichment.SessionStore, func(), error) {
	if cfg.SessionStore != config.SessionStoreRedis {
		return enrichment.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	}

	store := enrichment.NewRedisStore(
		enrichment.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB),
		cfg.SessionTTL,
	)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	logger.Info("using Redis session store", zap.String("addr", cfg.RedisAddr))
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("error closing Redis session store", zap.Error(err))
		}
	}, nil
}
