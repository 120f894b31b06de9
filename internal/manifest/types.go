package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"sort"
	"strings"
)

// FileType buckets an archive entry by what role it plays in a game install,
// derived purely from its extension.
type FileType string

const (
	// FileTypePlugin covers the load-order-bearing master/plugin files
	// (.esp, .esm, .esl) that the engine itself reads at startup.
	FileTypePlugin FileType = "plugin"
	// FileTypeMesh covers 3D geometry (.nif).
	FileTypeMesh FileType = "mesh"
	// FileTypeTexture covers bitmap art assets (.dds, .png, .tga, .bmp, .jpg,
	// .jpeg).
	FileTypeTexture FileType = "texture"
	// FileTypeSound covers audio assets (.wav, .xwm, .fuz, .lip).
	FileTypeSound FileType = "sound"
	// FileTypeScript covers compiled and source Papyrus scripts (.pex,
	// .psc).
	FileTypeScript FileType = "script"
	// FileTypeInterface covers Scaleform UI files (.swf).
	FileTypeInterface FileType = "interface"
	// FileTypeSEQ covers quest sequence files (.seq).
	FileTypeSEQ FileType = "seq"
	// FileTypeBSA covers the engine's own packed archive format (.bsa,
	// .ba2) when one mod ships an archive containing another.
	FileTypeBSA FileType = "bsa"
	// FileTypeNative covers native script-extender plugin DLLs (.dll).
	// Two mods bundling different builds of the same SKSE/F4SE plugin is a
	// distinct, common conflict class from a loose-file overwrite: the
	// loser isn't merely shadowed, the wrong binary can crash the runtime
	// outright, so it gets its own bucket rather than falling into "other".
	FileTypeNative FileType = "native"
	// FileTypeOther is the bucket for anything not covered above (readmes,
	// configs, screenshots bundled in the archive, etc.).
	FileTypeOther FileType = "other"
)

// FileEntry describes one member of a mod archive, with derived fields
// filled in by NewFileEntry so callers never have to re-parse a path.
type FileEntry struct {
	// Path is the normalized in-archive path: forward slashes, lowercase.
	Path string `json:"path"`
	// OriginalPath preserves the path exactly as the archive stored it.
	OriginalPath string `json:"originalPath"`
	// Size is the file's uncompressed byte length.
	Size int64 `json:"size"`
	// Hash identifies the entry by its normalized path, not its bytes — it
	// exists so two manifests can be diffed for path-level overlap without
	// reading either archive's contents. Callers that need content-level
	// dedup should use ExtractManifestWithHashes instead.
	Hash string `json:"hash"`
	// Type is the FileType bucket derived from Extension.
	Type FileType `json:"type"`
	// Extension is the lowercase extension, dot included.
	Extension string `json:"extension"`
	// Directory is the normalized parent directory ("" at archive root).
	Directory string `json:"directory"`
	// Filename is the base name with no directory component.
	Filename string `json:"filename"`
}

// Manifest is the full, categorized file listing extracted from one mod
// archive.
type Manifest struct {
	Files       []FileEntry      `json:"files"`
	TotalSize   int64            `json:"totalSize"`
	TotalCount  int              `json:"totalCount"`
	ByType      map[FileType]int `json:"byType"`
	ByExtension map[string]int   `json:"byExtension"`
}

// NormalizePath canonicalizes an archive-internal path so two paths that
// differ only in case or slash style compare equal: backslashes become
// forward slashes, the whole thing is lowercased, filepath.Clean collapses
// "." and "..", and any leading or trailing slash is stripped.
func NormalizePath(path string) string {
	slashed := strings.ReplaceAll(path, "\\", "/")
	lowered := strings.ToLower(slashed)
	cleaned := filepath.ToSlash(filepath.Clean(lowered))
	cleaned = strings.TrimPrefix(cleaned, "/")
	cleaned = strings.TrimSuffix(cleaned, "/")
	return cleaned
}

// ComputePathHash hashes a normalized path with SHA-256. It identifies a
// path, not its bytes, so it's cheap to compute for every entry during a
// lightweight (no-content-read) extraction.
func ComputePathHash(normalizedPath string) string {
	sum := sha256.Sum256([]byte(normalizedPath))
	return hex.EncodeToString(sum[:])
}

// DetermineFileType classifies a lowercase-or-not extension into its
// FileType bucket.
func DetermineFileType(extension string) FileType {
	switch strings.ToLower(extension) {
	case ".esp", ".esm", ".esl":
		return FileTypePlugin
	case ".nif":
		return FileTypeMesh
	case ".dds", ".png", ".tga", ".bmp", ".jpg", ".jpeg":
		return FileTypeTexture
	case ".wav", ".xwm", ".fuz", ".lip":
		return FileTypeSound
	case ".pex", ".psc":
		return FileTypeScript
	case ".swf":
		return FileTypeInterface
	case ".seq":
		return FileTypeSEQ
	case ".bsa", ".ba2":
		return FileTypeBSA
	case ".dll":
		return FileTypeNative
	default:
		return FileTypeOther
	}
}

// NewFileEntry builds a FileEntry from an archive path and size, filling in
// every derived field (normalized path, hash, type, extension, directory,
// filename).
func NewFileEntry(originalPath string, size int64) FileEntry {
	normalized := NormalizePath(originalPath)
	ext := strings.ToLower(filepath.Ext(originalPath))
	parent := filepath.ToSlash(filepath.Dir(normalized))
	if parent == "." {
		parent = ""
	}
	base := filepath.Base(normalized)

	return FileEntry{
		Path:         normalized,
		OriginalPath: originalPath,
		Size:         size,
		Hash:         ComputePathHash(normalized),
		Type:         DetermineFileType(ext),
		Extension:    ext,
		Directory:    parent,
		Filename:     base,
	}
}

// NewManifest aggregates a list of entries into a Manifest, computing the
// total size, count, and per-type/per-extension tallies.
func NewManifest(entries []FileEntry) *Manifest {
	m := &Manifest{
		Files:       entries,
		TotalCount:  len(entries),
		ByType:      make(map[FileType]int),
		ByExtension: make(map[string]int),
	}

	for _, e := range entries {
		m.TotalSize += e.Size
		m.ByType[e.Type]++
		if e.Extension != "" {
			m.ByExtension[e.Extension]++
		}
	}

	return m
}

// GetFilesByType returns every entry classified as fileType.
func (m *Manifest) GetFilesByType(fileType FileType) []FileEntry {
	var out []FileEntry
	for _, e := range m.Files {
		if e.Type == fileType {
			out = append(out, e)
		}
	}
	return out
}

// GetFilesByDirectory returns every entry whose parent directory matches
// directory. Pass "" for the archive root.
func (m *Manifest) GetFilesByDirectory(directory string) []FileEntry {
	want := NormalizePath(directory)
	if want == "." {
		want = ""
	}
	var out []FileEntry
	for _, e := range m.Files {
		if e.Directory == want {
			out = append(out, e)
		}
	}
	return out
}

// GetFilesByExtension returns every entry whose extension matches,
// accepting the argument with or without its leading dot.
func (m *Manifest) GetFilesByExtension(extension string) []FileEntry {
	want := strings.ToLower(extension)
	if !strings.HasPrefix(want, ".") {
		want = "." + want
	}
	var out []FileEntry
	for _, e := range m.Files {
		if e.Extension == want {
			out = append(out, e)
		}
	}
	return out
}

// HasFile reports whether path (after normalization) is present.
func (m *Manifest) HasFile(path string) bool {
	want := NormalizePath(path)
	for _, e := range m.Files {
		if e.Path == want {
			return true
		}
	}
	return false
}

// GetFile returns the entry at path (after normalization), or nil.
func (m *Manifest) GetFile(path string) *FileEntry {
	want := NormalizePath(path)
	for i := range m.Files {
		if m.Files[i].Path == want {
			return &m.Files[i]
		}
	}
	return nil
}

// LargestFiles returns up to n entries sorted by descending size, the
// entries most likely worth flagging to a user worried about disk/download
// footprint (a BSA or a handful of oversized textures usually dominate a
// mod's installed size). n <= 0 returns nil.
func (m *Manifest) LargestFiles(n int) []FileEntry {
	if n <= 0 || len(m.Files) == 0 {
		return nil
	}

	sorted := make([]FileEntry, len(m.Files))
	copy(sorted, m.Files)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Size > sorted[j].Size
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// NativePluginCount returns the number of bundled script-extender plugin
// DLLs, a quick signal for whether this mod ships native code at all (and
// so whether it's a candidate for native-plugin version conflicts).
func (m *Manifest) NativePluginCount() int {
	return m.ByType[FileTypeNative]
}
