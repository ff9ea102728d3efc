// Package main provides the embedded player server for the RetroPlay UI.
// The UI communicates via REST/WebSocket on localhost:8090.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/retroplay/backend/cmd/player/handlers"
	"github.com/retroplay/backend/internal/catalog"
	"github.com/retroplay/backend/internal/db"
	apperrors "github.com/retroplay/backend/internal/errors"
	"github.com/retroplay/backend/internal/export"
	"github.com/retroplay/backend/internal/logging"
	"github.com/retroplay/backend/internal/reactive"
	"github.com/retroplay/backend/internal/slots"
)

// Live-query snapshot events pushed alongside the raw change events.
const (
	EventFavoritesUpdated = "favorites.updated"
	EventRecentUpdated    = "recent.updated"
)

func main() {
	logging.Init(os.Stdout, logLevel())

	dataDir := envOr("DATA_DIR", "./data")
	addr := envOr("PLAYER_ADDR", "localhost:8090")

	store := openStore(dataDir)
	defer store.Close()

	repo, err := db.InitStore(store)
	if err != nil {
		logging.Error("failed to initialize store", err)
		os.Exit(1)
	}
	defer repo.Close()

	hub := NewWSHub()
	repo.AddNotifier(hub)

	engine := reactive.NewEngine(repo)
	defer engine.Close()
	startLiveQueries(engine, hub)

	provider := loadCatalog(envOr("CATALOG_PATH", "./games.json"))

	manager := slots.NewManager(repo)
	exporter := export.NewService(repo)

	runtimePath := envOr("EMULATOR_RUNTIME", "./static/emulator/loader.js")

	mux := http.NewServeMux()
	registerRoutes(mux, repo, manager, exporter, provider, hub, runtimePath)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logging.Info("player server starting", map[string]interface{}{
			"addr":      addr,
			"in_memory": store.InMemory,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("server failed", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Error("shutdown failed", err)
	}
	logging.Info("player server stopped")
}

// openStore opens durable storage, degrading to an in-memory session store
// when the environment denies it.
func openStore(dataDir string) *db.DB {
	store, err := db.Open(dataDir)
	if err == nil {
		return store
	}
	if !apperrors.Is(err, apperrors.ErrStorageUnavailable) {
		logging.Error("failed to open store", err)
		os.Exit(1)
	}

	logging.Warn("persistent storage unavailable, state is session-only", map[string]interface{}{
		"error": err.Error(),
	})
	store, err = db.OpenMemory()
	if err != nil {
		logging.Error("failed to open in-memory store", err)
		os.Exit(1)
	}
	return store
}

// startLiveQueries keeps UI-facing snapshots flowing over the hub: whenever
// favorites or play sessions change, the recomputed result is broadcast.
func startLiveQueries(engine *reactive.Engine, hub *WSHub) {
	favorites := engine.Subscribe("favorites", func(q *reactive.Queries) (interface{}, error) {
		return q.Favorites()
	})
	go forwardUpdates(favorites, hub, EventFavoritesUpdated)

	recent := engine.Subscribe("recently-played", func(q *reactive.Queries) (interface{}, error) {
		return q.RecentlyPlayedGames(10)
	})
	go forwardUpdates(recent, hub, EventRecentUpdated)
}

func forwardUpdates(sub *reactive.Subscription, hub *WSHub, event string) {
	for res := range sub.Updates() {
		if res.Err != nil {
			continue
		}
		hub.Broadcast(event, map[string]interface{}{"result": res.Value})
	}
}

func registerRoutes(
	mux *http.ServeMux,
	repo *db.Repository,
	manager *slots.Manager,
	exporter *export.Service,
	provider catalog.Provider,
	hub *WSHub,
	runtimePath string,
) {
	saves := handlers.NewSavesHandler(manager)
	favorites := handlers.NewFavoritesHandler(repo)
	sessions := handlers.NewSessionsHandler(repo)
	settings := handlers.NewSettingsHandler(repo, exporter)
	games := handlers.NewGamesHandler(provider)
	emu := handlers.NewEmulatorHandler(runtimePath)

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"retroplay-player"}`))
	})

	mux.HandleFunc("GET /api/games", games.List)
	mux.HandleFunc("GET /api/games/{game}", games.Get)

	mux.HandleFunc("GET /api/games/{game}/slots", saves.Slots)
	mux.HandleFunc("POST /api/games/{game}/slots/{slot}", saves.Save)
	mux.HandleFunc("GET /api/games/{game}/slots/{slot}", saves.Load)
	mux.HandleFunc("DELETE /api/games/{game}/slots/{slot}", saves.Delete)
	mux.HandleFunc("GET /api/games/{game}/slots/{slot}/screenshot", saves.Screenshot)

	mux.HandleFunc("POST /api/games/{game}/favorite", favorites.Toggle)
	mux.HandleFunc("GET /api/games/{game}/favorite", favorites.Get)
	mux.HandleFunc("GET /api/favorites", favorites.List)

	mux.HandleFunc("POST /api/games/{game}/sessions", sessions.Start)
	mux.HandleFunc("POST /api/sessions/{id}/end", sessions.End)
	mux.HandleFunc("GET /api/games/{game}/sessions", sessions.List)
	mux.HandleFunc("GET /api/recent", sessions.Recent)

	mux.HandleFunc("GET /api/settings", settings.Get)
	mux.HandleFunc("PATCH /api/settings", settings.Update)
	mux.HandleFunc("POST /api/settings/reset", settings.Reset)
	mux.HandleFunc("GET /api/settings/export", settings.Export)
	mux.HandleFunc("POST /api/settings/import", settings.Import)

	mux.HandleFunc("POST /api/emulator/load", emu.Load)
	mux.HandleFunc("GET /api/emulator", emu.Status)

	mux.HandleFunc("GET /ws", HandleWebSocket(hub))
}

// loadCatalog loads the game catalog, falling back to an empty one so a
// missing file never blocks the player from starting.
func loadCatalog(path string) catalog.Provider {
	provider, err := catalog.LoadFile(path)
	if err != nil {
		logging.Warn("catalog unavailable, starting empty", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		empty, _ := catalog.Parse([]byte("[]"))
		return empty
	}
	return provider
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func logLevel() logging.LogLevel {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
