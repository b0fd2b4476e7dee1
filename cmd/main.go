package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinoosan/vodcache/api/v1"
	"github.com/tinoosan/vodcache/internal/cache"
	"github.com/tinoosan/vodcache/internal/config"
	"github.com/tinoosan/vodcache/internal/events"
	"github.com/tinoosan/vodcache/internal/fetcher"
	"github.com/tinoosan/vodcache/internal/jobs"
	"github.com/tinoosan/vodcache/internal/logging"
	"github.com/tinoosan/vodcache/internal/metrics"
	"github.com/tinoosan/vodcache/internal/recorder"
	"github.com/tinoosan/vodcache/internal/remux"
	"github.com/tinoosan/vodcache/internal/repo"
	"github.com/tinoosan/vodcache/internal/resolver"
	"github.com/tinoosan/vodcache/internal/router"
	"github.com/tinoosan/vodcache/internal/service"
	"github.com/tinoosan/vodcache/internal/stream"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to YAML config (env-only when empty)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Path)
	metrics.Register()

	store, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL)
	if err != nil {
		logger.Error("cache init", "err", err)
		os.Exit(1)
	}

	var history repo.HistoryRepo
	switch cfg.History.Backend {
	case "postgres":
		pg, err := repo.NewPostgresHistoryRepoFromEnv()
		if err != nil {
			logger.Error("postgres init", "err", err)
			os.Exit(1)
		}
		defer pg.Close()
		history = pg
	default:
		history = repo.NewInMemoryHistoryRepo()
	}

	eventCh := make(chan jobs.Event, 64)
	reporter := jobs.NewChanReporter(eventCh)
	hub := events.NewHub()
	rec := recorder.New(logger, history, hub, eventCh)
	rec.Run()
	defer rec.Stop()

	res := resolver.New(resolver.Options{
		Host:        cfg.Resolver.Host,
		APIKey:      cfg.Resolver.APIKey,
		Quality:     cfg.Resolver.Quality,
		Codec:       cfg.Resolver.Codec,
		AudioFormat: cfg.Resolver.AudioFormat,
		Attempts:    cfg.Resolver.Attempts,
		Delay:       cfg.Resolver.Delay,
	}, &http.Client{Timeout: 15 * time.Second}, logger)

	fet := &fetcher.Fetcher{
		Client:   &http.Client{Timeout: cfg.Fetch.Timeout},
		Reporter: reporter,
	}

	registry := jobs.NewRegistry(logger)
	svc := service.New(logger, store, res, fet, registry, reporter)

	gate := stream.Gate{
		Min:     cfg.Stream.PrebufferBytes,
		Timeout: cfg.Stream.PrebufferTimeout,
		Poll:    cfg.Stream.PollInterval,
	}
	tailer := stream.Tailer{Poll: cfg.Stream.PollInterval}
	remuxer := &remux.Remuxer{Log: logger}

	handler := v1.NewStreamHandler(logger, svc, history, hub, gate, tailer, remuxer)

	server := &http.Server{
		Addr:        cfg.Addr,
		Handler:     router.New(logger, handler, store),
		IdleTimeout: 120 * time.Second,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: tail streams legitimately run for hours.
	}

	go func() {
		logger.Info("starting vodcache", "addr", cfg.Addr, "cache", cfg.Cache.Dir, "ttl", cfg.Cache.TTL.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received terminate, graceful shutdown", "sig", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
