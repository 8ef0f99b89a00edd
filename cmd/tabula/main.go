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

	"github.com/antoniostano/tabula/internal/agent"
	"github.com/antoniostano/tabula/internal/archive"
	"github.com/antoniostano/tabula/internal/backend"
	"github.com/antoniostano/tabula/internal/config"
	"github.com/antoniostano/tabula/internal/httpapi"
	"github.com/antoniostano/tabula/internal/model"
	"github.com/antoniostano/tabula/internal/observability"
	"github.com/antoniostano/tabula/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	latency := observability.NewLatencyWindow(512)

	ctx := context.Background()
	store, err := archive.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("archive store init failed: %v", err)
	}
	defer store.Close()

	runner, err := backend.NewRunner(backend.Config{
		Mode:    cfg.BackendMode,
		HTTPURL: cfg.BackendHTTPURL,
	})
	if err != nil {
		log.Fatalf("backend runner init failed: %v", err)
	}
	log.Printf("query backend: %s", cfg.BackendMode)

	completer, err := model.NewCompleter(model.Config{
		Mode:          cfg.ModelMode,
		HTTPURL:       cfg.ModelHTTPURL,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIModel,
	})
	if err != nil {
		log.Fatalf("model completer init failed: %v", err)
	}
	log.Printf("model provider: %s", completer.Name())

	conversations := session.NewManager(cfg.ConversationInactivityTimeout, func(conversationID string) *agent.Agent {
		return agent.New(agent.Options{
			ID:             conversationID,
			MemorySize:     cfg.MemorySize,
			Backend:        runner,
			Model:          completer,
			Archive:        store,
			Metrics:        metrics,
			Latency:        latency,
			EnforcePrivacy: cfg.EnforcePrivacy,
		})
	})
	conversations.SetExpireHook(func(_ *session.Conversation) {
		metrics.ConversationEvents.WithLabelValues("expired").Inc()
		metrics.ActiveConversations.Set(float64(conversations.ActiveCount()))
	})

	api := httpapi.New(cfg, conversations, store, metrics, latency)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	conversations.StartJanitor(runCtx, 5*time.Second)

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

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
