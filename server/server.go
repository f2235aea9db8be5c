package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cuebase/cache"
	"cuebase/config"
	"cuebase/core/analysis"
	"cuebase/core/ingest"
	"cuebase/core/library"
	"cuebase/core/probe"
	"cuebase/db"
	"cuebase/logger"
	"cuebase/model"
	"cuebase/repository"
	"cuebase/storage"

	"github.com/gorilla/mux"
)

// invalidatingPublisher drops cached listings before fanning an event out.
// The ingest and analysis paths mutate tracks outside the library service, so
// they need the same invalidation its own mutations get.
type invalidatingPublisher struct {
	hub      *EventHub
	listings *cache.ListingCache
}

func (p *invalidatingPublisher) Publish(event model.Event) {
	if p.listings != nil {
		p.listings.Invalidate(context.Background())
	}
	p.hub.Publish(event)
}

// Start initializes all subsystems and runs the HTTP server until interrupted.
func Start() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogPath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
	})

	ensureDirExists(cfg.DataDir)

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database schema", logger.ErrorField(err))
	}
	if err := db.ConnectGormDB(); err != nil {
		logger.Fatal("Failed to initialize ORM", logger.ErrorField(err))
	}

	var listings *cache.ListingCache
	if cfg.RedisEnabled {
		if err := cache.Connect(cfg); err != nil {
			logger.Warn("Redis unavailable, listing cache disabled", logger.ErrorField(err))
		} else {
			defer cache.Close()
			listings = cache.NewListingCache()
			logger.Info("Listing cache enabled")
		}
	}

	var mirror *storage.ArchiveMirror
	if cfg.MinioEnabled {
		var err error
		mirror, err = storage.NewArchiveMirror(cfg)
		if err != nil {
			logger.Warn("MinIO unavailable, archive mirroring disabled", logger.ErrorField(err))
			mirror = nil
		} else {
			logger.Info("Archive mirroring enabled", logger.String("bucket", cfg.MinioBucket))
		}
	}

	store, err := storage.NewContentStore(cfg.LibraryDir)
	if err != nil {
		logger.Fatal("Failed to open content store", logger.ErrorField(err))
	}

	hub := NewEventHub()
	go hub.Run()
	defer hub.Stop()

	publisher := &invalidatingPublisher{hub: hub, listings: listings}

	trackRepo := repository.NewSQLiteTrackRepository(db.DB)
	playlistRepo := repository.NewSQLitePlaylistRepository(db.DB, db.GormDB)
	settingsRepo := repository.NewGormSettingsRepository(db.GormDB)

	engine := analysis.NewProcessEngine(cfg.AnalyzerPath, time.Duration(cfg.AnalyzerTimeout)*time.Second)
	dispatcher := analysis.NewDispatcher(engine, trackRepo, publisher)
	defer dispatcher.Close()

	prober := probe.NewFileProber(cfg.FFprobePath)
	ingestSvc := ingest.NewService(trackRepo, store, prober, dispatcher, publisher, mirror)
	librarySvc := library.NewService(trackRepo, playlistRepo, settingsRepo, dispatcher, hub, listings, cfg.TargetLufs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.WatchDir != "" {
		ensureDirExists(cfg.WatchDir)
		watcher := ingest.NewWatcher(ingestSvc, cfg.WatchDir)
		go func() {
			if err := watcher.Run(ctx); err != nil && err != context.Canceled {
				logger.Error("Import watcher stopped", logger.ErrorField(err))
			}
		}()
	}

	apiHandler := NewAPIHandler(librarySvc, ingestSvc, cfg)
	router := newRouter(apiHandler, hub)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", logger.ErrorField(err))
	}
	logger.Info("Server stopped")
}

func newRouter(h *APIHandler, hub *EventHub) *mux.Router {
	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/api/tracks", h.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/ids", h.GetTrackIDsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/import", h.ImportTracksHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/bpm", h.AdjustBPMHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id:[0-9]+}", h.UpdateTrackHandler).Methods(http.MethodPatch)
	router.HandleFunc("/api/tracks/{id:[0-9]+}/reanalyze", h.ReanalyzeTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id:[0-9]+}/playlists", h.TrackPlaylistsHandler).Methods(http.MethodGet)

	router.HandleFunc("/api/library/normalize", h.NormalizeLibraryHandler).Methods(http.MethodPost)

	router.HandleFunc("/api/playlists", h.ListPlaylistsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists", h.CreatePlaylistHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists/{id:[0-9]+}", h.UpdatePlaylistHandler).Methods(http.MethodPut)
	router.HandleFunc("/api/playlists/{id:[0-9]+}", h.DeletePlaylistHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/playlists/{id:[0-9]+}/tracks", h.PlaylistTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{id:[0-9]+}/tracks", h.AddPlaylistTracksHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists/{id:[0-9]+}/tracks/{trackId:[0-9]+}", h.RemovePlaylistTrackHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/playlists/{id:[0-9]+}/order", h.ReorderPlaylistHandler).Methods(http.MethodPut)

	router.HandleFunc("/api/events", hub.EventsHandler).Methods(http.MethodGet)

	return router
}

func ensureDirExists(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("Creating directory", logger.String("path", path))
		if err := os.MkdirAll(path, 0755); err != nil {
			logger.Fatal("Failed to create directory", logger.String("path", path), logger.ErrorField(err))
		}
	} else if err != nil {
		logger.Fatal("Failed to check directory", logger.String("path", path), logger.ErrorField(err))
	}
}
