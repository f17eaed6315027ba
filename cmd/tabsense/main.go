package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tabsense/tabsense/internal/api"
	"github.com/tabsense/tabsense/internal/bus"
	"github.com/tabsense/tabsense/internal/cdp"
	"github.com/tabsense/tabsense/internal/config"
	"github.com/tabsense/tabsense/internal/netutil"
	"github.com/tabsense/tabsense/internal/pipeline"
	"github.com/tabsense/tabsense/internal/store"
	"github.com/tabsense/tabsense/internal/tracker"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("config loaded",
		"cdp_url", cfg.CDPURL(),
		"bind_addr", cfg.BindAddr,
		"classifier_url", cfg.ClassifierURL,
		"store_dsn", cfg.StoreDSN,
		"debounce_ms", cfg.DebounceMS,
		"quiet_interval_ms", cfg.QuietIntervalMS,
		"burst_threshold", cfg.BurstThreshold,
		"log_level", cfg.LogLevel,
	)

	results, err := store.Open(cfg.StoreDSN)
	if err != nil {
		slog.Error("failed to open result store", "dsn", cfg.StoreDSN, "error", err)
		os.Exit(1)
	}
	defer func() { _ = results.Close() }()

	broker := bus.NewBroker()
	notifications := bus.New(results, broker)

	collaboratorTimeout := time.Duration(cfg.CollaboratorTimeoutMS) * time.Millisecond
	httpClient := &http.Client{Timeout: collaboratorTimeout}
	summarizer := pipeline.NewOpenAISummarizer(cfg.SummarizerAPIKey, cfg.SummarizerBaseURL, cfg.SummarizerModel)
	classifier := pipeline.NewHTTPClassifier(cfg.ClassifierURL, httpClient)
	pipe := pipeline.New(summarizer, classifier, results, notifications, collaboratorTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	detector := tracker.NewDetector(
		time.Duration(cfg.QuietIntervalMS)*time.Millisecond,
		tracker.DefaultBurstWindow,
		cfg.BurstThreshold,
	)
	sched := tracker.NewScheduler(time.Duration(cfg.DebounceMS) * time.Millisecond)
	trk := tracker.New(ctx, detector, tracker.NewStateStore(), sched, pipe, results)
	defer trk.Close()

	feed := cdp.NewFeed(cfg, trk)
	if err := feed.Connect(ctx); err != nil {
		slog.Error("failed to connect tab feed", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() { _ = feed.Close() }()

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	handler := api.NewServer(notifications, results, trk, broker)
	srv := &http.Server{Addr: bindAddr, Handler: handler}

	go func() {
		slog.Info("agent listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
