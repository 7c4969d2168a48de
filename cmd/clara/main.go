package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/dvanetti/clara/internal/bridge"
	"github.com/dvanetti/clara/internal/bus"
	"github.com/dvanetti/clara/internal/config"
	"github.com/dvanetti/clara/internal/httpapi"
	"github.com/dvanetti/clara/internal/observability"
	"github.com/dvanetti/clara/internal/session"
	"github.com/dvanetti/clara/internal/syncqueue"
	"github.com/dvanetti/clara/internal/voice"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	cli.Parse()

	// Missing env file is fine; the environment itself still applies.
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	events := bus.New(metrics)
	events.Start(runCtx)

	sessions := session.NewRegistry(cfg.SessionHistoryLimit)

	store, err := syncqueue.NewStore(runCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("sync store init failed: %v", err)
	}
	defer store.Close()
	if cfg.DatabaseURL != "" {
		log.Printf("sync store: postgres")
	} else {
		log.Printf("sync store: in-memory")
	}

	var sender syncqueue.Sender
	if cfg.SyncEndpoint != "" {
		sender, err = syncqueue.NewHTTPSender(cfg.SyncEndpoint, cfg.NetworkTimeout)
		if err != nil {
			log.Fatalf("sync sender init failed: %v", err)
		}
	} else {
		// A nil sender keeps items queued until an endpoint is configured.
		log.Printf("SYNC_ENDPOINT_BASE not set, sync delivery disabled (items stay queued)")
	}

	syncEngine, err := syncqueue.NewEngine(runCtx, sender, store, metrics, cfg.SyncBatchSize)
	if err != nil {
		log.Fatalf("sync engine init failed: %v", err)
	}
	if sender != nil {
		syncEngine.StartFlusher(runCtx, cfg.SyncFlushInterval)
	}

	monitor := bridge.NewMonitor(bridge.DefaultProbe(cfg.BackendBaseURL, cfg.NetworkTimeout), cfg.ProbeInterval)
	monitor.Start(runCtx)

	var transport bridge.Transport
	switch cfg.BackendTransport {
	case "ws":
		transport, err = bridge.NewWSTransport(cfg.BackendBaseURL, cfg.NetworkTimeout)
	default:
		transport, err = bridge.NewHTTPTransport(cfg.BackendBaseURL, cfg.NetworkTimeout)
	}
	if err != nil {
		log.Fatalf("backend transport init failed: %v", err)
	}
	log.Printf("backend transport: %s (%s)", cfg.BackendTransport, cfg.BackendBaseURL)

	responder := bridge.New(transport, monitor, events, metrics, cfg.NetworkTimeout)

	// Platform audio providers live outside this process; the scriptable
	// ones are driven through the control API.
	wake := voice.NewMockWakeWordDetector()
	stt := voice.NewMockSpeechRecognizer()
	tts := voice.NewMockSpeechSynthesizer()

	coordinator := voice.NewCoordinator(voice.Options{
		WakeKeyword:        cfg.WakeKeyword,
		Locale:             cfg.Locale,
		SessionMaxDuration: cfg.SessionMaxDuration,
		SilenceWindow:      cfg.SilenceWindow,
	}, events, sessions, responder, metrics, wake, stt, tts)
	defer coordinator.StopVoiceFlow()

	api := httpapi.New(cfg, coordinator, events, sessions, syncEngine, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	// Best-effort final flush before the queue store closes.
	_ = syncEngine.Flush(context.Background())

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

