package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/modtroubleshooter/engine/internal/archive"
	"github.com/modtroubleshooter/engine/internal/cache"
	"github.com/modtroubleshooter/engine/internal/fomod"
)

// FomodAnalyzeRequest is the request body for FOMOD analysis.
type FomodAnalyzeRequest struct {
	Game   string `json:"game"`
	ModID  int    `json:"modId"`
	FileID int    `json:"fileId"`
}

// FomodAnalyzeResponse is the response from FOMOD analysis.
type FomodAnalyzeResponse struct {
	Game     string          `json:"game"`
	ModID    int             `json:"modId"`
	FileID   int             `json:"fileId"`
	HasFomod bool            `json:"hasFomod"`
	Data     *fomod.FomodData `json:"data,omitempty"`
	Cached   bool            `json:"cached"`
}

// FomodHandler handles FOMOD analysis HTTP requests.
type FomodHandler struct {
	clientGetter NexusClientGetter
	downloader   *archive.Downloader
	extractor    *archive.Extractor
	cache        *cache.Cache
}

// FomodHandlerConfig holds configuration for the FomodHandler.
type FomodHandlerConfig struct {
	ClientGetter NexusClientGetter
	Downloader   *archive.Downloader
	Extractor    *archive.Extractor
	Cache        *cache.Cache
}

// NewFomodHandler creates a new FOMOD handler.
func NewFomodHandler(cfg FomodHandlerConfig) *FomodHandler {
	return &FomodHandler{
		clientGetter: cfg.ClientGetter,
		downloader:   cfg.Downloader,
		extractor:    cfg.Extractor,
		cache:        cfg.Cache,
	}
}

// AnalyzeFomod handles POST /api/fomod/analyze
// Downloads a mod archive, extracts the FOMOD data, and returns the parsed configuration.
func (h *FomodHandler) AnalyzeFomod(w http.ResponseWriter, r *http.Request) {
	client := h.clientGetter.Get()
	if client == nil {
		WriteError(w, http.StatusServiceUnavailable, "Nexus API key not configured. Please configure it in Settings.")
		return
	}

	ctx := r.Context()

	// Parse request body
	var req FomodAnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validate request
	if req.Game == "" {
		WriteError(w, http.StatusBadRequest, "Game domain is required")
		return
	}
	if req.ModID <= 0 {
		WriteError(w, http.StatusBadRequest, "Valid mod ID is required")
		return
	}
	if req.FileID <= 0 {
		WriteError(w, http.StatusBadRequest, "Valid file ID is required")
		return
	}

	// Check cache first
	cacheKey := cache.CacheKey(req.Game, req.ModID, req.FileID)
	var cachedResult FomodAnalyzeResponse
	if h.cache != nil {
		if err := h.cache.Get(ctx, cacheKey, &cachedResult); err == nil {
			cachedResult.Cached = true
			WriteJSON(w, http.StatusOK, cachedResult)
			return
		}
	}

	// Map game ID to Nexus domain name
	gameDomain := GetNexusDomain(req.Game)

	// Get download links from Nexus
	links, err := client.GetModFileDownloadLinks(ctx, gameDomain, req.ModID, req.FileID)
	if err != nil {
		handleAPIError(w, "fetch download links", err)
		return
	}

	if len(links) == 0 {
		WriteError(w, http.StatusNotFound, "No download links available")
		return
	}

	// Use the first available download link
	downloadURL := links[0].URI

	// Download the archive
	slog.Info("downloading mod archive", "url", downloadURL)
	downloadResult, err := h.downloader.Download(ctx, downloadURL, nil)
	if err != nil {
		handleAPIError(w, "download mod archive", err)
		return
	}
	defer h.downloader.CleanupPath(downloadResult.FilePath)

	// Check if archive has FOMOD directory
	hasFomod, err := h.extractor.HasFomod(ctx, downloadResult.FilePath)
	if err != nil {
		slog.Error("error checking for FOMOD", "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to inspect archive")
		return
	}

	response := FomodAnalyzeResponse{
		Game:     req.Game,
		ModID:    req.ModID,
		FileID:   req.FileID,
		HasFomod: hasFomod,
		Cached:   false,
	}

	if !hasFomod {
		// Cache the negative result
		if h.cache != nil {
			if err := h.cache.Set(ctx, cacheKey, response); err != nil {
				slog.Error("error caching result", "error", err)
			}
		}
		WriteJSON(w, http.StatusOK, response)
		return
	}

	// Extract FOMOD directory
	extractResult, err := h.extractor.ExtractFomod(ctx, downloadResult.FilePath)
	if err != nil {
		slog.Error("error extracting FOMOD", "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to extract FOMOD data")
		return
	}
	defer h.extractor.Cleanup(extractResult.OutputDir)

	// Parse FOMOD XML
	parser, err := fomod.NewParser(extractResult.OutputDir)
	if err != nil {
		if errors.Is(err, fomod.ErrNoFomodDir) {
			// This shouldn't happen since we checked HasFomod, but handle gracefully
			response.HasFomod = false
			if h.cache != nil {
				if err := h.cache.Set(ctx, cacheKey, response); err != nil {
					slog.Error("error caching result", "error", err)
				}
			}
			WriteJSON(w, http.StatusOK, response)
			return
		}
		slog.Error("error creating FOMOD parser", "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to parse FOMOD data")
		return
	}

	fomodData, err := parser.Parse()
	if err != nil {
		if errors.Is(err, fomod.ErrNoModuleConfig) {
			// Has fomod directory but no ModuleConfig.xml
			response.HasFomod = false
			if h.cache != nil {
				if err := h.cache.Set(ctx, cacheKey, response); err != nil {
					slog.Error("error caching result", "error", err)
				}
			}
			WriteJSON(w, http.StatusOK, response)
			return
		}
		if errors.Is(err, os.ErrNotExist) {
			// info.xml doesn't exist but ModuleConfig.xml does - this is okay
			// The parse should have continued, so this is an unexpected error
			slog.Error("error parsing FOMOD", "error", err)
			WriteError(w, http.StatusInternalServerError, "Failed to parse FOMOD data")
			return
		}
		slog.Error("error parsing FOMOD", "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to parse FOMOD data")
		return
	}

	response.Data = fomodData

	// Cache the result
	if h.cache != nil {
		if err := h.cache.Set(ctx, cacheKey, response); err != nil {
			slog.Error("error caching result", "error", err)
		}
	}

	WriteJSON(w, http.StatusOK, response)
}
