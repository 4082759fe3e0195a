package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/davidealbano/aria/internal/app"
	"github.com/davidealbano/aria/internal/config"
	"github.com/davidealbano/aria/internal/httpapi"
	"github.com/davidealbano/aria/internal/logging"
	"github.com/davidealbano/aria/internal/memory"
	"github.com/davidealbano/aria/internal/observability"
	"github.com/davidealbano/aria/internal/session"
	"github.com/davidealbano/aria/internal/tagger"
	"github.com/davidealbano/aria/internal/tagstore"
	"github.com/davidealbano/aria/internal/textgen"
)

func main() {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Init(logging.Config{Level: "error"}).Error("config error", "error", err)
		os.Exit(1)
	}

	log := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()

	var bufferStore memory.BufferStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		bufferStore = memory.NewRedisStore(memory.RedisStoreConfig{Client: client})
		log.Info("buffer store: redis", "addr", cfg.RedisAddr)
	} else {
		bufferStore = memory.NewInMemoryStore()
		log.Info("buffer store: in-memory")
	}

	gateway, err := tagstore.NewGateway(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("tag store init failed", "error", err)
		os.Exit(1)
	}
	defer gateway.Close()
	if cfg.DatabaseURL != "" {
		log.Info("tag store: postgres")
	} else {
		log.Info("tag store: in-memory")
	}

	gen, err := textgen.New(textgen.Config{
		Mode:    cfg.TextGenMode,
		BaseURL: cfg.TextGenBaseURL,
		APIKey:  cfg.TextGenAPIKey,
		Model:   cfg.TextGenModel,
		Timeout: cfg.TextGenTimeout,
	})
	if err != nil {
		log.Error("textgen client init failed", "error", err)
		os.Exit(1)
	}

	mem := memory.NewManager(bufferStore, gen, metrics, log, memory.Options{
		CompressEvery: cfg.CompressThreshold,
		Lookback:      cfg.CompressLookback,
		Timeout:       cfg.TextGenTimeout,
	})
	tg := tagger.New(gen, metrics, log, tagger.Options{
		MaxTranscriptChars: cfg.TranscriptMaxChars,
		DedupeTags:         cfg.DedupeTags,
		Timeout:            cfg.TextGenTimeout,
	})
	finalizer := &app.Finalizer{
		Memory:  mem,
		Tagger:  tg,
		Gateway: gateway,
		Log:     log,
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetEndHook(func(s *session.Session) {
		metrics.SessionEvents.WithLabelValues("finalized").Inc()
		finalizer.Finalize(context.Background(), s.UserID, s.ID)
	})

	api := httpapi.New(cfg, sessions, mem, finalizer, gateway, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 30*time.Second)

	go func() {
		log.Info("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen error", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	log.Info("shutdown complete")
}
