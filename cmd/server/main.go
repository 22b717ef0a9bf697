package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"melodex/internal/cache"
	"melodex/internal/config"
	"melodex/internal/dispatch"
	"melodex/internal/engines"
	"melodex/internal/handlers"
	"melodex/internal/interactions"
	"melodex/internal/playlist"
	"melodex/internal/ratelimit"
	"melodex/internal/storage"
	"melodex/internal/unify"
)

func main() {
	// Load .env file for local development
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ranking := config.GetRankingConfig()
	unify.SetTunables(ranking.PlatformWeights, ranking.PlatformCountBonus, ranking.MaxScore)

	engineList, err := cfg.BuildEngines()
	if err != nil {
		slog.Error("Failed to build engine table", "error", err)
		os.Exit(1)
	}
	registry := engines.NewRegistry(engineList...)

	// The cache and limiter degrade to in-memory stores when no valkey is
	// configured, so a bare dev setup still works.
	var store cache.Cache
	var limiterStore ratelimit.Store
	if cfg.ValkeyURL != "" {
		valkeyStore, err := cache.NewValkeyCache(cfg.ValkeyURL)
		if err != nil {
			slog.Error("Failed to connect to valkey", "error", err)
			os.Exit(1)
		}
		store = valkeyStore
		limiterStore, err = ratelimit.NewValkeyStoreFromURL(cfg.ValkeyURL)
		if err != nil {
			slog.Error("Failed to connect limiter store", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("VALKEY_URL not set, using in-memory cache and limiter")
		store = cache.NewMemoryCache()
		limiterStore = ratelimit.NewMemoryStore()
	}
	defer store.Close()

	results := cache.NewResultCacheTTL(store, cfg.CacheTTL)
	limiter := ratelimit.NewLimiter(limiterStore)

	var events interactions.Sink
	var playlistRepo playlist.Repository
	if cfg.MongodbURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		db, err := storage.NewDatabase(ctx, cfg.MongodbURL, "melodex")
		cancel()
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close(context.Background())
		if err := db.CreateIndexes(context.Background()); err != nil {
			slog.Warn("Failed to create indexes", "error", err)
		}
		events = interactions.NewMongoSink(db.DB)
		playlistRepo = playlist.NewMongoRepository(db.DB)
	} else {
		slog.Warn("MONGODB_URL not set, playlists and interactions are in-memory only")
		events = interactions.NewMemorySink()
		playlistRepo = playlist.NewMemoryRepository()
	}

	dispatcher := dispatch.NewDispatcher(registry, engines.NewExecutor(), results, limiter,
		dispatch.DispatcherConfig{
			OverallTimeout: cfg.OverallTimeout,
			EngineTimeout:  cfg.EngineTimeout,
			Events:         events,
		})
	playlistService := playlist.NewService(playlistRepo, dispatcher, events)

	gin.SetMode(cfg.GinMode)
	router := gin.Default()
	handlers.RegisterRoutes(router,
		handlers.NewMusicHandler(dispatcher, registry, results, limiter),
		handlers.NewPlaylistHandler(playlistService),
		handlers.NewHealthHandler(store))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Forced shutdown", "error", err)
	}
}
