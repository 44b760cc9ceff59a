// cmd/api/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/visionpointmarketing/troy-sandbox/internal/config"
	"github.com/visionpointmarketing/troy-sandbox/internal/handler"
	"github.com/visionpointmarketing/troy-sandbox/internal/logger"
	"github.com/visionpointmarketing/troy-sandbox/internal/registry"
	"github.com/visionpointmarketing/troy-sandbox/internal/render"
	"github.com/visionpointmarketing/troy-sandbox/internal/service"
	"github.com/visionpointmarketing/troy-sandbox/internal/storage"
)

func main() {
	// Load .env in dev only. Production injects env vars through infra.
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		panic("invalid configuration: " + err.Error())
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic("logger init failed: " + err.Error())
	}
	defer log.Sync()

	// ── Asset store (swappable: SQLite today, Postgres or Redis tomorrow) ────
	// Opened lazily on first use; handler and service code never change.
	assets := storage.NewLazy(assetOpener(cfg))
	defer func() {
		if err := assets.Close(); err != nil {
			log.Warn("closing asset store", "error", err)
		}
	}()
	log.Info("asset store configured", "backend", cfg.AssetStore)

	// ── Catalog and render surfaces ──────────────────────────────────────────
	catalog, err := registry.Load()
	if err != nil {
		log.Fatal("loading section catalog", "error", err)
	}

	fragments := render.NewFragments(cfg.HeaderFile, cfg.FooterFile, log)
	if err := fragments.Load(); err != nil {
		log.Warn("page fragments unavailable, exporting without header and footer", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.WatchFragments {
		go func() {
			if err := fragments.Watch(ctx); err != nil {
				log.Warn("fragment watcher stopped", "error", err)
			}
		}()
	}

	// ── Services & Handlers ──────────────────────────────────────────────────
	sessions := service.NewSessionService(catalog, assets, service.SessionOptions{
		MaxHistory:    cfg.MaxHistory,
		MaxImageBytes: cfg.MaxImageBytes,
	}, log)
	defer sessions.Close()

	editorHandler := &handler.EditorHandler{
		Sessions:      sessions,
		Catalog:       catalog,
		Exporter:      render.NewExporter(catalog, fragments, cfg.PageTitle, log),
		Hub:           handler.NewHub(cfg.AllowedOrigins, log),
		MaxImageBytes: cfg.MaxImageBytes,
		Log:           log.With("component", "http"),
	}

	// ── Router ───────────────────────────────────────────────────────────────
	r := mux.NewRouter()

	// Health check for load balancers. The asset store reports its lazy
	// init state; a failed store makes the service unhealthy.
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if assets.State() == storage.StateFailed {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      status,
			"asset_store": assets.State().String(),
			"sessions":    sessions.Len(),
		})
	}).Methods("GET")

	// API routes, versioned so a parent product can call /api/v1/* without conflicts.
	editorHandler.Register(r.PathPrefix("/api/v1").Subrouter())

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.ExposedHeaders([]string{"Content-Disposition"}),
	)

	// ── HTTP Server with timeouts ────────────────────────────────────────────
	// WriteTimeout is left at zero: websocket connections are long lived and
	// manage their own write deadlines.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.RecoveryHandler()(cors(r)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Warm the asset store in the background so the first request does not
	// pay for opening it.
	go func() {
		if err := assets.Init(ctx); err != nil {
			log.Error("asset store init failed", "backend", cfg.AssetStore, "error", err)
		}
	}()

	// ── Graceful Shutdown ────────────────────────────────────────────────────
	go func() {
		log.Info("editor service running", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, draining requests")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		return
	}
	log.Info("server stopped cleanly")
}

func assetOpener(cfg *config.Config) storage.Opener {
	return func(ctx context.Context) (storage.AssetStore, error) {
		var (
			store storage.AssetStore
			err   error
		)
		switch cfg.AssetStore {
		case config.StoreMemory:
			store = storage.NewMemoryStore()
		case config.StorePostgres:
			var pg *storage.PostgresStore
			if pg, err = storage.NewPostgresStore(ctx, cfg.DatabaseURL); err == nil {
				store = pg
			}
		case config.StoreRedis:
			var rs *storage.RedisStore
			if rs, err = storage.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisKey); err == nil {
				store = rs
			}
		case config.StoreLocal:
			var ls *storage.LocalStore
			if ls, err = storage.NewLocalStore(cfg.UploadDir); err == nil {
				store = ls
			}
		default:
			var sq *storage.SQLiteStore
			if sq, err = storage.NewSQLiteStore(ctx, cfg.AssetDBPath); err == nil {
				store = sq
			}
		}
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
