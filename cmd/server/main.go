package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/modtroubleshooter/engine/internal/archive"
	"github.com/modtroubleshooter/engine/internal/cache"
	"github.com/modtroubleshooter/engine/internal/config"
	"github.com/modtroubleshooter/engine/internal/handlers"
	"github.com/modtroubleshooter/engine/internal/nexus"
	"github.com/rs/cors"
)

// loggingMiddleware logs one line per request with method, path, status, and
// duration. It never logs headers or the request body, so the Nexus API
// credential (never sent by clients of this API, only held server-side) has
// no path into the log stream.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// clientManager manages the Nexus client lifecycle with thread-safe updates.
type clientManager struct {
	mu     sync.RWMutex
	client *nexus.Client
}

func (m *clientManager) Get() *nexus.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

func (m *clientManager) Set(client *nexus.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = client
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /api/health", healthHandler)

	// Initialize settings store with initial API key
	settingsStore := handlers.NewSettingsStore(cfg.NexusAPIKey)

	// Client manager for dynamic client updates
	clientMgr := &clientManager{}

	// Initialize Nexus client if API key is configured
	if cfg.NexusAPIKey != "" {
		nexusClient, err := nexus.NewClient(nexus.ClientConfig{
			APIKey:         cfg.NexusAPIKey,
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
		})
		if err != nil {
			log.Fatalf("Failed to create Nexus client: %v", err)
		}
		clientMgr.Set(nexusClient)
	} else {
		slog.Warn("Nexus API key not configured, collection endpoints will return errors until configured")
	}

	// Set up callback to update client when API key changes
	settingsStore.SetOnKeyChange(func(newKey string) {
		if newKey == "" {
			clientMgr.Set(nil)
			slog.Info("Nexus API key cleared")
			return
		}

		newClient, err := nexus.NewClient(nexus.ClientConfig{
			APIKey:         newKey,
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
		})
		if err != nil {
			slog.Error("failed to create new Nexus client", "error", err)
			return
		}
		clientMgr.Set(newClient)
		slog.Info("Nexus API key updated")
	})

	// Settings endpoints (always available)
	settingsHandler := handlers.NewSettingsHandler(settingsStore)
	mux.HandleFunc("GET /api/settings", settingsHandler.GetSettings)
	mux.HandleFunc("POST /api/settings", settingsHandler.UpdateSettings)
	mux.HandleFunc("POST /api/settings/validate", settingsHandler.ValidateAPIKey)

	// Collection endpoints with dynamic client lookup
	collectionHandler := handlers.NewDynamicCollectionHandler(clientMgr)
	mux.HandleFunc("GET /api/collections/{slug}", collectionHandler.GetCollection)
	mux.HandleFunc("GET /api/collections/{slug}/revisions", collectionHandler.GetCollectionRevisions)
	mux.HandleFunc("GET /api/collections/{slug}/revisions/{revision}", collectionHandler.GetCollectionRevisionMods)

	// Download endpoints (requires Premium)
	downloadHandler := handlers.NewDownloadHandler(clientMgr)
	mux.HandleFunc("GET /api/games/{game}/mods/{modId}/files/{fileId}/download", downloadHandler.GetModFileDownloadLinks)

	// Initialize archive downloader and extractor
	downloader, err := archive.NewDownloader(archive.DownloaderConfig{
		TempDir:     filepath.Join(cfg.DataDir, "downloads"),
		MaxFileSize: cfg.MaxDownloadBytes,
	})
	if err != nil {
		log.Fatalf("Failed to create downloader: %v", err)
	}

	extractor, err := archive.NewExtractor(archive.ExtractorConfig{
		TempDir:      filepath.Join(cfg.DataDir, "extracted"),
		MaxFileSize:  cfg.MaxExtractedFileBytes,
		MaxTotalSize: cfg.MaxExtractedTotalBytes,
	})
	if err != nil {
		log.Fatalf("Failed to create extractor: %v", err)
	}

	// Initialize cache for FOMOD analysis results
	fomodCache, err := cache.New(cache.Config{
		DBPath: filepath.Join(cfg.DataDir, "cache.db"),
		TTL:    time.Duration(cfg.CacheTTLHours) * time.Hour,
	})
	if err != nil {
		log.Fatalf("Failed to create cache: %v", err)
	}

	// FOMOD analysis endpoints (requires Premium)
	fomodHandler := handlers.NewFomodHandler(handlers.FomodHandlerConfig{
		ClientGetter: clientMgr,
		Downloader:   downloader,
		Extractor:    extractor,
		Cache:        fomodCache,
	})
	mux.HandleFunc("POST /api/fomod/analyze", fomodHandler.AnalyzeFomod)

	// Load order analysis endpoints (requires Premium for collection analysis)
	loadOrderHandler := handlers.NewLoadOrderHandler(handlers.LoadOrderHandlerConfig{
		ClientGetter: clientMgr,
		Downloader:   downloader,
		Extractor:    extractor,
		Cache:        fomodCache,
	})
	mux.HandleFunc("POST /api/loadorder/analyze", loadOrderHandler.AnalyzeLoadOrder)
	mux.HandleFunc("GET /api/collections/{slug}/revisions/{revision}/loadorder", loadOrderHandler.AnalyzeCollectionLoadOrder)

	// Conflict analysis endpoints (requires Premium for downloading mod archives)
	conflictHandler := handlers.NewConflictHandler(handlers.ConflictHandlerConfig{
		ClientGetter: clientMgr,
		Downloader:   downloader,
		Cache:        fomodCache,
	})
	mux.HandleFunc("POST /api/conflicts/analyze", conflictHandler.AnalyzeConflicts)
	mux.HandleFunc("GET /api/collections/{slug}/revisions/{revision}/conflicts", conflictHandler.AnalyzeCollectionConflicts)

	// Configure CORS for React frontend
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	handler := loggingMiddleware(c.Handler(mux))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Periodically sweep expired cache entries so the database doesn't grow
	// unbounded between analysis requests.
	sweepDone := make(chan struct{})
	sweepStop := make(chan struct{})
	go func() {
		defer close(sweepDone)
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := fomodCache.Sweep(sweepCtx); err != nil {
					slog.Error("cache sweep failed", "error", err)
				}
				cancel()
			case <-sweepStop:
				return
			}
		}
	}()

	// Graceful shutdown
	go func() {
		slog.Info("server starting",
			"addr", "http://localhost:"+cfg.Port,
			"environment", cfg.Environment,
			"dataDir", cfg.DataDir,
			"nexusApiKeyConfigured", cfg.NexusAPIKey != "",
		)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	close(sweepStop)
	<-sweepDone

	// Cleanup resources
	if err := fomodCache.Close(); err != nil {
		slog.Error("error closing cache", "error", err)
	}
	if err := downloader.Cleanup(); err != nil {
		slog.Error("error cleaning up downloads", "error", err)
	}

	slog.Info("server stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
