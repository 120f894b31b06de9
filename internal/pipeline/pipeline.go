// Package pipeline fans a collection revision's mod files out to the
// downloader, archive extractor, and format parsers, and assembles the
// results for the load order and conflict analyzers.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/modtroubleshooter/engine/internal/archive"
	"github.com/modtroubleshooter/engine/internal/conflict"
	"github.com/modtroubleshooter/engine/internal/loadorder"
	"github.com/modtroubleshooter/engine/internal/manifest"
	"github.com/modtroubleshooter/engine/internal/nexus"
	"github.com/modtroubleshooter/engine/internal/plugin"
)

// maxConcurrentMods bounds how many mods in a collection are downloaded and
// processed at once.
const maxConcurrentMods = 4

// ModFailureError reports that processing a specific mod in a collection
// pipeline failed hard enough to abort the whole run.
type ModFailureError struct {
	ModName string
	Err     error
}

func (e *ModFailureError) Error() string {
	return fmt.Sprintf("mod %q: %v", e.ModName, e.Err)
}

func (e *ModFailureError) Unwrap() error { return e.Err }

// isArchiveFilename reports whether filename (already lowercased) has a
// recognized archive extension.
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

// LoadOrderExtractor resolves the plugin files contributed by every mod in a
// collection revision.
type LoadOrderExtractor struct {
	downloader *archive.Downloader
	extractor  *archive.Extractor
	parser     *plugin.Parser
}

// NewLoadOrderExtractor creates a load order extractor backed by the given
// downloader and archive extractor.
func NewLoadOrderExtractor(downloader *archive.Downloader, extractor *archive.Extractor) *LoadOrderExtractor {
	return &LoadOrderExtractor{
		downloader: downloader,
		extractor:  extractor,
		parser:     plugin.NewParser(),
	}
}

// ExtractPlugins fetches every non-optional mod file in the revision, up to
// maxConcurrentMods at a time, and returns the plugin files found, preserving
// the revision's original mod order.
//
// A download failure for any mod aborts the whole extraction with a
// *ModFailureError naming the mod: a load order that is missing one mod's
// plugins entirely should not be silently analyzed as if that mod weren't
// installed. A header-parse failure for an individual plugin is not fatal —
// the plugin is still included by filename only, the same degradation the
// analyzer already accepts for manually-entered plugins with no Nexus
// reference.
func (le *LoadOrderExtractor) ExtractPlugins(ctx context.Context, client *nexus.Client, gameDomain string, revision *nexus.RevisionDetails) ([]loadorder.PluginFile, error) {
	results := make([][]loadorder.PluginFile, len(revision.ModFiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentMods)

	for i, modFile := range revision.ModFiles {
		if modFile.File == nil || modFile.File.Mod == nil {
			continue
		}
		if modFile.Optional {
			continue
		}
		i, modFile := i, modFile

		g.Go(func() error {
			plugins, err := le.extractOne(gctx, client, gameDomain, modFile)
			if err != nil {
				return &ModFailureError{ModName: modFile.File.Name, Err: err}
			}
			results[i] = plugins
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pluginFiles []loadorder.PluginFile
	for _, r := range results {
		pluginFiles = append(pluginFiles, r...)
	}
	return pluginFiles, nil
}

func (le *LoadOrderExtractor) extractOne(ctx context.Context, client *nexus.Client, gameDomain string, modFile nexus.ModFileReference) ([]loadorder.PluginFile, error) {
	filename := modFile.File.Name
	lowerName := strings.ToLower(filename)

	links, err := client.GetModFileDownloadLinks(ctx, gameDomain, modFile.File.Mod.ModID, modFile.File.FileID)
	if err != nil {
		return nil, fmt.Errorf("get download links: %w", err)
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("no download links available")
	}

	downloadResult, err := le.downloader.Download(ctx, links[0].URI, nil)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer le.downloader.CleanupPath(downloadResult.FilePath)

	if plugin.IsPluginFile(filename) {
		pf := loadorder.PluginFile{Filename: filename}
		if header, perr := le.parser.ParseFile(ctx, downloadResult.FilePath); perr == nil {
			pf.Header = header
		}
		return []loadorder.PluginFile{pf}, nil
	}

	if !isArchiveFilename(lowerName) {
		return nil, nil
	}

	files, err := le.extractor.ListFiles(ctx, downloadResult.FilePath)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}

	var pluginPaths []string
	for _, f := range files {
		if plugin.IsPluginFile(f) {
			pluginPaths = append(pluginPaths, f)
		}
	}
	if len(pluginPaths) == 0 {
		return nil, nil
	}

	extractResult, err := le.extractor.ExtractPaths(ctx, downloadResult.FilePath, pluginPaths)
	if err != nil {
		return nil, fmt.Errorf("extract plugins: %w", err)
	}
	defer le.extractor.Cleanup(extractResult.OutputDir)

	pluginFiles := make([]loadorder.PluginFile, 0, len(extractResult.Files))
	for _, extractedFile := range extractResult.Files {
		extractedPath := filepath.Join(extractResult.OutputDir, extractedFile)
		pf := loadorder.PluginFile{Filename: filepath.Base(extractedFile)}
		if header, perr := le.parser.ParseFile(ctx, extractedPath); perr == nil {
			pf.Header = header
		}
		pluginFiles = append(pluginFiles, pf)
	}
	return pluginFiles, nil
}

// ConflictExtractor resolves the file manifests contributed by every archive
// mod file in a collection revision.
type ConflictExtractor struct {
	downloader        *archive.Downloader
	manifestExtractor *manifest.Extractor
}

// NewConflictExtractor creates a conflict extractor backed by the given
// downloader.
func NewConflictExtractor(downloader *archive.Downloader) *ConflictExtractor {
	return &ConflictExtractor{
		downloader:        downloader,
		manifestExtractor: manifest.NewExtractor(),
	}
}

// ExtractManifests fetches every archive mod file in the revision, up to
// maxConcurrentMods at a time, and returns their manifests in load order.
//
// A download failure aborts the whole run with a *ModFailureError, matching
// LoadOrderExtractor: a conflict report silently missing one mod's files
// could under-report real conflicts instead of surfacing the gap. A
// manifest-extraction failure for an archive that did download is not
// fatal — that mod is kept with an empty manifest, the same degrade the
// per-mod conflict flow has always used for unreadable archives.
func (ce *ConflictExtractor) ExtractManifests(ctx context.Context, client *nexus.Client, gameDomain string, revision *nexus.RevisionDetails, includeHashes bool) ([]conflict.ModManifest, error) {
	results := make([]*conflict.ModManifest, len(revision.ModFiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentMods)

	for i, modFile := range revision.ModFiles {
		if modFile.File == nil || modFile.File.Mod == nil {
			continue
		}

		filename := modFile.File.Name
		if !isArchiveFilename(strings.ToLower(filename)) {
			// Individual plugins and other non-archive files contribute
			// nothing to a file-conflict report.
			continue
		}

		modName := modFile.File.Mod.Name
		if modName == "" {
			modName = filename
		}
		mm := conflict.ModManifest{
			ModID:     fmt.Sprintf("%d-%d", modFile.File.Mod.ModID, modFile.File.FileID),
			ModName:   modName,
			LoadOrder: i,
		}

		i, modFile := i, modFile
		g.Go(func() error {
			manifestData, err := ce.extractOne(gctx, client, gameDomain, modFile, includeHashes)
			if err != nil {
				return &ModFailureError{ModName: filename, Err: err}
			}
			mm.Manifest = manifestData
			results[i] = &mm
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	modManifests := make([]conflict.ModManifest, 0, len(results))
	for _, r := range results {
		if r != nil {
			modManifests = append(modManifests, *r)
		}
	}
	return modManifests, nil
}

func (ce *ConflictExtractor) extractOne(ctx context.Context, client *nexus.Client, gameDomain string, modFile nexus.ModFileReference, includeHashes bool) (*manifest.Manifest, error) {
	links, err := client.GetModFileDownloadLinks(ctx, gameDomain, modFile.File.Mod.ModID, modFile.File.FileID)
	if err != nil {
		return nil, fmt.Errorf("get download links: %w", err)
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("no download links available")
	}

	downloadResult, err := ce.downloader.Download(ctx, links[0].URI, nil)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer ce.downloader.CleanupPath(downloadResult.FilePath)

	var manifestData *manifest.Manifest
	if includeHashes {
		manifestData, err = ce.manifestExtractor.ExtractManifestWithHashes(ctx, downloadResult.FilePath)
	} else {
		manifestData, err = ce.manifestExtractor.ExtractManifest(ctx, downloadResult.FilePath)
	}
	if err != nil {
		// The archive downloaded fine; only its contents couldn't be read.
		// Degrade to an empty manifest instead of aborting the collection.
		return nil, nil
	}
	return manifestData, nil
}
