package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/modtroubleshooter/engine/internal/archive"
	"github.com/modtroubleshooter/engine/internal/cache"
	"github.com/modtroubleshooter/engine/internal/loadorder"
	"github.com/modtroubleshooter/engine/internal/nexus"
	"github.com/modtroubleshooter/engine/internal/pipeline"
	"github.com/modtroubleshooter/engine/internal/plugin"
)

// LoadOrderAnalyzeRequest is the request body for load order analysis.
type LoadOrderAnalyzeRequest struct {
	// Plugins is a list of plugins to analyze in their intended load order.
	// Each plugin should include game, modId, and fileId for downloading,
	// or just filename for manual analysis.
	Plugins []PluginReference `json:"plugins"`
}

// PluginReference identifies a plugin for analysis.
type PluginReference struct {
	// Filename is the plugin filename (required).
	Filename string `json:"filename"`
	// Game is the game domain for downloading from Nexus (optional).
	Game string `json:"game,omitempty"`
	// ModID is the mod ID on Nexus (optional).
	ModID int `json:"modId,omitempty"`
	// FileID is the file ID on Nexus (optional).
	FileID int `json:"fileId,omitempty"`
}

// LoadOrderAnalyzeResponse is the response from load order analysis.
type LoadOrderAnalyzeResponse struct {
	*loadorder.AnalysisResult
	Cached bool `json:"cached"`
}

// LoadOrderHandler handles load order analysis HTTP requests.
type LoadOrderHandler struct {
	clientGetter        NexusClientGetter
	downloader          *archive.Downloader
	extractor           *archive.Extractor
	cache               *cache.Cache
	analyzer            *loadorder.Analyzer
	parser              *plugin.Parser
	collectionExtractor *pipeline.LoadOrderExtractor
}

// LoadOrderHandlerConfig holds configuration for the LoadOrderHandler.
type LoadOrderHandlerConfig struct {
	ClientGetter NexusClientGetter
	Downloader   *archive.Downloader
	Extractor    *archive.Extractor
	Cache        *cache.Cache
}

// NewLoadOrderHandler creates a new load order handler.
func NewLoadOrderHandler(cfg LoadOrderHandlerConfig) *LoadOrderHandler {
	return &LoadOrderHandler{
		clientGetter:        cfg.ClientGetter,
		downloader:          cfg.Downloader,
		extractor:           cfg.Extractor,
		cache:               cfg.Cache,
		analyzer:            loadorder.NewAnalyzer(),
		parser:              plugin.NewParser(),
		collectionExtractor: pipeline.NewLoadOrderExtractor(cfg.Downloader, cfg.Extractor),
	}
}

// AnalyzeLoadOrder handles POST /api/loadorder/analyze
// Analyzes a list of plugins and returns dependency issues and stats.
func (h *LoadOrderHandler) AnalyzeLoadOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse request body
	var req LoadOrderAnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Plugins) == 0 {
		WriteError(w, http.StatusBadRequest, "At least one plugin is required")
		return
	}

	// Build list of plugin files for analysis
	pluginFiles := make([]loadorder.PluginFile, 0, len(req.Plugins))

	for _, ref := range req.Plugins {
		if ref.Filename == "" {
			WriteError(w, http.StatusBadRequest, "Plugin filename is required")
			return
		}

		pf := loadorder.PluginFile{
			Filename: ref.Filename,
		}

		// If Nexus info is provided, try to fetch and parse the plugin
		if ref.Game != "" && ref.ModID > 0 && ref.FileID > 0 {
			header, err := h.fetchAndParsePlugin(ctx, ref)
			if err != nil {
				// Log the error but continue with just the filename
				slog.Warn("could not fetch plugin", "filename", ref.Filename, "error", err)
			} else {
				pf.Header = header
			}
		}

		pluginFiles = append(pluginFiles, pf)
	}

	// Perform analysis
	result, err := h.analyzer.Analyze(ctx, pluginFiles)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			WriteError(w, 499, "Request cancelled")
			return
		}
		slog.Error("error analyzing load order", "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to analyze load order")
		return
	}

	response := LoadOrderAnalyzeResponse{
		AnalysisResult: result,
		Cached:         false,
	}

	WriteJSON(w, http.StatusOK, response)
}

// AnalyzeCollectionLoadOrder handles GET /api/collections/{slug}/revisions/{revision}/loadorder
// Analyzes the load order of all plugins in a collection revision.
func (h *LoadOrderHandler) AnalyzeCollectionLoadOrder(w http.ResponseWriter, r *http.Request) {
	client := h.clientGetter.Get()
	if client == nil {
		WriteError(w, http.StatusServiceUnavailable, "Nexus API key not configured. Please configure it in Settings.")
		return
	}

	ctx := r.Context()

	slug := r.PathValue("slug")
	if slug == "" {
		WriteError(w, http.StatusBadRequest, "Collection slug is required")
		return
	}

	revisionStr := r.PathValue("revision")
	if revisionStr == "" {
		WriteError(w, http.StatusBadRequest, "Revision number is required")
		return
	}

	revision, err := strconv.Atoi(revisionStr)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid revision number")
		return
	}

	// Check cache
	cacheKey := cache.CollectionCacheKey("loadorder", slug, revision, "")
	var cachedResult LoadOrderAnalyzeResponse
	if h.cache != nil {
		if err := h.cache.Get(ctx, cacheKey, &cachedResult); err == nil {
			cachedResult.Cached = true
			WriteJSON(w, http.StatusOK, cachedResult)
			return
		}
	}

	// Get collection revision mods
	revisionDetails, err := client.GetCollectionRevisionMods(ctx, slug, revision)
	if err != nil {
		handleAPIError(w, "fetch collection revision", err)
		return
	}

	// Get the collection to determine the game
	collection, err := client.GetCollection(ctx, slug)
	if err != nil {
		handleAPIError(w, "fetch collection", err)
		return
	}

	gameDomain := collection.Game.DomainName

	// Extract plugin files from the collection mods
	pluginFiles, err := h.collectionExtractor.ExtractPlugins(ctx, client, gameDomain, revisionDetails)
	if err != nil {
		var modErr *pipeline.ModFailureError
		if errors.As(err, &modErr) {
			if errors.Is(modErr, nexus.ErrPremiumOnly) {
				WriteError(w, http.StatusPaymentRequired, "This feature requires a Nexus Mods Premium account")
				return
			}
			slog.Error("error extracting plugins", "error", modErr)
			WriteError(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch %s, load order analysis aborted", modErr.ModName))
			return
		}
		if errors.Is(err, context.Canceled) {
			WriteError(w, 499, "Request cancelled")
			return
		}
		slog.Error("error extracting plugins", "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to extract plugin information")
		return
	}

	// Perform analysis
	result, err := h.analyzer.Analyze(ctx, pluginFiles)
	if err != nil {
		slog.Error("error analyzing load order", "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to analyze load order")
		return
	}

	response := LoadOrderAnalyzeResponse{
		AnalysisResult: result,
		Cached:         false,
	}

	// Cache the result
	if h.cache != nil {
		if err := h.cache.Set(ctx, cacheKey, response); err != nil {
			slog.Error("error caching result", "error", err)
		}
	}

	WriteJSON(w, http.StatusOK, response)
}

// fetchAndParsePlugin downloads a plugin and parses its header.
func (h *LoadOrderHandler) fetchAndParsePlugin(ctx context.Context, ref PluginReference) (*plugin.PluginHeader, error) {
	client := h.clientGetter.Get()
	if client == nil {
		return nil, errors.New("nexus client not available")
	}

	// Get download links
	links, err := client.GetModFileDownloadLinks(ctx, ref.Game, ref.ModID, ref.FileID)
	if err != nil {
		return nil, fmt.Errorf("get download links: %w", err)
	}

	if len(links) == 0 {
		return nil, errors.New("no download links available")
	}

	// Download the file
	downloadResult, err := h.downloader.Download(ctx, links[0].URI, nil)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer h.downloader.CleanupPath(downloadResult.FilePath)

	// If it's an archive, try to extract the plugin
	if isArchive(downloadResult.FilePath) {
		return h.extractAndParsePluginFromArchive(ctx, downloadResult.FilePath, ref.Filename)
	}

	// If it's a direct plugin file, parse it
	if plugin.IsPluginFile(downloadResult.FilePath) {
		return h.parser.ParseFile(ctx, downloadResult.FilePath)
	}

	return nil, fmt.Errorf("unknown file type: %s", downloadResult.FilePath)
}

// extractAndParsePluginFromArchive extracts a specific plugin from an archive and parses it.
func (h *LoadOrderHandler) extractAndParsePluginFromArchive(ctx context.Context, archivePath, pluginFilename string) (*plugin.PluginHeader, error) {
	// List files to find the plugin
	files, err := h.extractor.ListFiles(ctx, archivePath)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}

	// Find the plugin file in the archive
	var pluginPath string
	pluginLower := strings.ToLower(pluginFilename)
	for _, f := range files {
		if strings.ToLower(filepath.Base(f)) == pluginLower {
			pluginPath = f
			break
		}
	}

	if pluginPath == "" {
		return nil, fmt.Errorf("plugin %s not found in archive", pluginFilename)
	}

	// Extract just this plugin
	result, err := h.extractor.ExtractPaths(ctx, archivePath, []string{pluginPath})
	if err != nil {
		return nil, fmt.Errorf("extract plugin: %w", err)
	}
	defer h.extractor.Cleanup(result.OutputDir)

	if len(result.Files) == 0 {
		return nil, fmt.Errorf("plugin %s not extracted", pluginFilename)
	}

	// Parse the extracted plugin
	extractedPath := filepath.Join(result.OutputDir, result.Files[0])
	return h.parser.ParseFile(ctx, extractedPath)
}

// isArchive checks if a file is an archive based on content type or extension.
func isArchive(filePath string) bool {
	// Try to identify by reading file header
	f, err := os.Open(filePath)
	if err != nil {
		return isArchiveFilename(strings.ToLower(filePath))
	}
	defer f.Close()

	// Read first few bytes
	header := make([]byte, 10)
	n, err := io.ReadFull(f, header)
	if err != nil || n < 4 {
		return isArchiveFilename(strings.ToLower(filePath))
	}

	// Check magic bytes
	// ZIP: PK\x03\x04
	if header[0] == 'P' && header[1] == 'K' && header[2] == 0x03 && header[3] == 0x04 {
		return true
	}
	// 7z: 7z\xBC\xAF\x27\x1C
	if header[0] == '7' && header[1] == 'z' && header[2] == 0xBC && header[3] == 0xAF {
		return true
	}
	// RAR: Rar!\x1A\x07
	if header[0] == 'R' && header[1] == 'a' && header[2] == 'r' && header[3] == '!' {
		return true
	}

	return isArchiveFilename(strings.ToLower(filePath))
}

// isArchiveFilename checks if a filename has an archive extension.
func isArchiveFilename(filename string) bool {
	switch {
	case strings.HasSuffix(filename, ".zip"):
		return true
	case strings.HasSuffix(filename, ".7z"):
		return true
	case strings.HasSuffix(filename, ".rar"):
		return true
	default:
		return false
	}
}
