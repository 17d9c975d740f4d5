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

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inamate/genscene/internal/api"
	"github.com/inamate/genscene/internal/asset"
	"github.com/inamate/genscene/internal/auth"
	"github.com/inamate/genscene/internal/cache"
	"github.com/inamate/genscene/internal/collab"
	"github.com/inamate/genscene/internal/config"
	"github.com/inamate/genscene/internal/db"
	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/evaluator"
	"github.com/inamate/genscene/internal/export"
	"github.com/inamate/genscene/internal/logging"
	"github.com/inamate/genscene/internal/metrics"
	mw "github.com/inamate/genscene/internal/middleware"
	"github.com/inamate/genscene/internal/scenestore"
	"github.com/inamate/genscene/internal/typeid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(logging.ParseLevel(cfg.LogLevel)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	scenes := scenestore.NewService(pool, db.New(pool))

	assets, err := asset.NewStore(cfg.AssetDir)
	if err != nil {
		slog.Error("open asset store", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	evalOpts := []evaluator.Option{
		evaluator.WithMetrics(m),
		evaluator.WithAssets(assets),
	}
	if cfg.CacheEnabled() {
		store := cache.New(cfg.RedisAddr, cfg.RedisPassword, cache.WithTTL(cfg.CacheTTL))
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			slog.Warn("render cache unreachable, continuing without it", "error", err, "addr", cfg.RedisAddr)
		} else {
			evalOpts = append(evalOpts, evaluator.WithCache(store))
			slog.Info("render cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		}
	}
	eval := evaluator.New(evalOpts...)

	authService := auth.NewService(cfg.JWTSecret, auth.WithDisabled(cfg.AuthDisabled))
	if cfg.AuthDisabled {
		slog.Warn("authentication disabled")
	}

	apiHandler := api.NewHandler(scenes, eval)
	assetHandler := asset.NewHandler(assets)
	exportHandler := export.NewHandler(eval)

	hub := collab.NewHub(sceneLoader(scenes), sceneSaver(scenes), eval)
	go hub.Run()

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.Handle("/metrics", m.Handler()).Methods("GET")

	// Font assets (public)
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.HandleFunc("/assets/{assetId}/status", assetHandler.Status).Methods("GET")
	r.HandleFunc("/assets/{assetId}", assetHandler.Remove).Methods("DELETE")
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	// Raster export (public)
	r.HandleFunc("/export/raster", exportHandler.ExportRaster).Methods("POST", "OPTIONS")
	r.HandleFunc("/export/frames", exportHandler.ExportFrames).Methods("POST", "OPTIONS")

	// Protected API routes
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(authService.AuthMiddleware)
	apiHandler.Mount(apiRouter)

	// WebSocket endpoint
	r.HandleFunc("/ws/scene/{sceneId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, scenes, cfg.Origins())
	})

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

		// Stop hub first to save all dirty scenes
		slog.Info("saving all scenes...")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func sceneLoader(scenes *scenestore.Service) collab.SceneLoader {
	return func(ctx context.Context, sceneID string) (*document.Scene, error) {
		snap, err := scenes.LatestSnapshot(ctx, sceneID)
		if err != nil {
			return nil, err
		}
		return snap.Document, nil
	}
}

func sceneSaver(scenes *scenestore.Service) collab.SceneSaver {
	return func(ctx context.Context, sceneID string, scene *document.Scene) error {
		_, err := scenes.SaveSnapshot(ctx, sceneID, scene)
		return err
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, authSvc *auth.Service, scenes *scenestore.Service, origins []string) {
	sceneID := mux.Vars(r)["sceneId"]

	var userID string
	if sceneID == collab.PlaygroundSceneID {
		// Anonymous user for playground
		userID = "anon-" + uuid.New().String()[:8]
	} else {
		var err error
		userID, err = authSvc.Authenticate(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		if !authSvc.Disabled() {
			if _, err := scenes.Get(r.Context(), sceneID, userID); err != nil {
				http.Error(w, "scene not accessible", http.StatusForbidden)
				return
			}
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(origins),
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := collab.NewClient(hub, conn, userID, sceneID, typeid.NewClientID())
	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// originPatterns strips schemes, since websocket origin patterns match
// host[:port] only.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		out = append(out, o)
	}
	return out
}
