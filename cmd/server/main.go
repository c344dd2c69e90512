package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/remedyloop/remedyd/internal/api/middleware"
	"github.com/remedyloop/remedyd/internal/api/rest"
	"github.com/remedyloop/remedyd/internal/api/websocket"
	"github.com/remedyloop/remedyd/internal/config"
	"github.com/remedyloop/remedyd/internal/notifications"
	"github.com/remedyloop/remedyd/internal/orchestrator"
	"github.com/remedyloop/remedyd/internal/pkg/logger"
	"github.com/remedyloop/remedyd/internal/repository"
	"github.com/remedyloop/remedyd/migrations"
)

func main() {
	log := logger.StdLogger()
	log.Info("remedyd starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	log.Info("configuration loaded", "port", cfg.Port, "driver", cfg.DatabaseDriver)

	var repo *repository.SQLRepository
	switch cfg.DatabaseDriver {
	case "postgres":
		repo, err = repository.NewPostgresRepository(cfg.DatabaseDSN)
	default:
		repo, err = repository.NewSQLiteRepository(cfg.DatabasePath)
	}
	if err != nil {
		log.Error("failed to initialize database", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	schema, err := migrations.Schema()
	if err != nil {
		log.Error("failed to read embedded migrations", "err", err)
		os.Exit(1)
	}
	if err := repo.RunMigrations(schema); err != nil {
		log.Error("failed to run migrations", "err", err)
		os.Exit(1)
	}
	log.Info("database migrations completed")

	wsHub := websocket.NewHub(ctx)
	go wsHub.Run()

	notifier := notifications.NewNotifier(repo.ListChannels, log)

	registry := orchestrator.NewRegistry()
	registerExecutors(registry, log)

	orch := orchestrator.New(
		repo,
		registry,
		orchestrator.PublisherList{notifier, wsHub},
		log,
		time.Duration(cfg.ActionTimeoutSec)*time.Second,
	)

	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"remedyd"}`))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.Tenant)
	handler := rest.NewHandler(repo, orch, log)
	rest.SetupRoutes(apiRouter, handler)

	wsHandler := websocket.NewHandler(ctx, wsHub, log)
	router.HandleFunc("/ws/incidents", wsHandler.ServeWS).Methods("GET")

	router.Use(middleware.RequestID)
	router.Use(middleware.StructuredLog)
	router.Use(middleware.Recovery)
	router.Use(middleware.RateLimit(cfg.RateLimitPerMin, cfg.RateLimitBurst))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.TenantIDHeader},
		AllowCredentials: true,
	})

	requestTimeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  requestTimeout,
		WriteTimeout: requestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	wsHub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("forced shutdown", "err", err)
	}
	log.Info("server exited")
}

// registerExecutors wires the default action set. Real integrations (campaign
// pause, feature flags, segment blocks) call out to the owning services; the
// defaults here deliver webhooks where the payload carries a url and otherwise
// record intent, so the pipeline, gating, and rollback semantics are fully
// exercised out of the box. Deployments replace these with their own.
func registerExecutors(r *orchestrator.Registry, log *slog.Logger) {
	post := func(ctx context.Context, payload json.RawMessage) error {
		var p struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.URL == "" {
			return fmt.Errorf("payload must carry a url")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("endpoint returned %d", resp.StatusCode)
		}
		return nil
	}
	record := func(actionType string) orchestrator.ExecutorFunc {
		return func(ctx context.Context, payload json.RawMessage) error {
			log.Info("action executed", "action_type", actionType, "payload", string(payload))
			return nil
		}
	}

	r.Register("notify", orchestrator.ExecutorFunc(post))

	r.Register("pause_campaign", record("pause_campaign"))
	r.RegisterInverse("pause_campaign", record("resume_campaign"))

	r.Register("disable_feature", record("disable_feature"))
	r.RegisterInverse("disable_feature", record("enable_feature"))

	r.Register("scale_down", record("scale_down"))
	r.RegisterInverse("scale_down", record("scale_up"))

	r.Register("block_segment", record("block_segment"))
	r.RegisterInverse("block_segment", record("unblock_segment"))
}
