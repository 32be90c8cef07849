package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/retouch/retouch/internal/asset"
	"github.com/retouch/retouch/internal/auth"
	"github.com/retouch/retouch/internal/config"
	"github.com/retouch/retouch/internal/db"
	"github.com/retouch/retouch/internal/download"
	"github.com/retouch/retouch/internal/events"
	"github.com/retouch/retouch/internal/genai"
	"github.com/retouch/retouch/internal/logging"
	mw "github.com/retouch/retouch/internal/middleware"
	"github.com/retouch/retouch/internal/repair"
	"github.com/retouch/retouch/internal/store"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-access-code" {
		hashAccessCode(os.Args[2:])
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(cfg.LogLevel, cfg.LogFormat))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs, closeStore, err := openJobStore(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("open job store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	assets, err := asset.NewStore(cfg.AssetDir, cfg.MaxPixels)
	if err != nil {
		slog.Error("open asset store", "error", err)
		os.Exit(1)
	}

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		slog.Error("create generator", "error", err)
		os.Exit(1)
	}

	origins := mw.SplitOrigins(cfg.AllowedOrigins)

	hub := events.NewHub()
	go hub.Run(ctx)

	authService := auth.NewService(cfg.JWTSecret, cfg.AccessCodeHash)
	authHandler := auth.NewHandler(authService)

	repairService := repair.NewService(jobs, assets, gen, hub, repair.Options{
		MaxSendDim:    cfg.MaxSendDim,
		MinRegionSize: cfg.MinRegionSize,
		Timeout:       cfg.GenAITimeout,
		MaxConcurrent: cfg.MaxConcurrent,
	})
	repairHandler := repair.NewHandler(repairService)

	assetHandler := asset.NewHandler(assets)
	downloadHandler := download.NewHandler(assets)
	wsHandler := events.NewHandler(hub, authService, origins)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(origins))

	// CORS preflight for every route; the CORS middleware writes the headers
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Session routes (public)
	r.HandleFunc("/auth/config", authHandler.Config).Methods("GET")
	r.HandleFunc("/auth/session", authHandler.StartSession).Methods("POST")
	r.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","model":%q}`, gen.Name())
	}).Methods("GET")

	// Stored images are addressed by unguessable ids
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")
	r.HandleFunc("/download/{assetId}", downloadHandler.Download).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/assets", assetHandler.Upload).Methods("POST")
	api.HandleFunc("/assets/{assetId}", assetHandler.Get).Methods("GET")
	api.HandleFunc("/assets/{assetId}", assetHandler.Delete).Methods("DELETE")
	api.HandleFunc("/repairs", repairHandler.List).Methods("GET")
	api.HandleFunc("/repairs", repairHandler.Create).Methods("POST")
	api.HandleFunc("/repairs/{jobId}", repairHandler.Get).Methods("GET")
	api.HandleFunc("/preview", repairHandler.Preview).Methods("POST")

	// WebSocket endpoint
	r.HandleFunc("/ws", wsHandler.ServeWS)

	// Frontend bundle, including editor.wasm
	if cfg.WebDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.WebDir))).Methods("GET")
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)

		// Running jobs record their cancellation before the store closes
		slog.Info("waiting for repairs...")
		repairService.Close()
		cancel()
	}()

	slog.Info("server starting", "addr", addr, "model", gen.Name(), "persistent", cfg.DatabaseURL != "")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-ctx.Done()
}

func openJobStore(ctx context.Context, databaseURL string) (store.JobStore, func(), error) {
	if databaseURL == "" {
		slog.Warn("DATABASE_URL not set, repair history is kept in memory")
		return store.NewMemoryStore(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	pg := store.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return pg, pool.Close, nil
}

func newGenerator(ctx context.Context, cfg *config.Config) (genai.Generator, error) {
	switch strings.ToLower(cfg.GenAIBackend) {
	case config.BackendOllama:
		return genai.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel, cfg.GenAITimeout)
	default:
		return genai.NewGeminiClient(ctx, cfg.GenAIEndpoint, cfg.GenAIModel, cfg.GenAIAPIKey, cfg.GenAITimeout)
	}
}

func hashAccessCode(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: server hash-access-code <code>")
		os.Exit(2)
	}
	hash, err := auth.HashAccessCode(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
