package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mholt/archiver/v4"
)

// Common errors returned by the extractor.
var (
	ErrNoArchivePath     = errors.New("archive path is required")
	ErrArchiveNotFound   = errors.New("archive file not found")
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	ErrExtractionFailed  = errors.New("extraction failed")
)

// Extractor builds file manifests for mod archives without writing their
// contents to disk (except when hashing requires reading a file's bytes).
type Extractor struct{}

// NewExtractor returns a ready-to-use manifest Extractor. It carries no
// state, so a single instance can be shared across goroutines.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// openForWalk identifies the archive at archivePath and returns its
// archiver.Extractor plus the opened file handle, ready for a single
// Extract() walk. Every ExtractManifest* variant shares this setup so the
// identify/format-check boilerplate is written once.
func openForWalk(ctx context.Context, archivePath string) (archiver.Extractor, *os.File, error) {
	if archivePath == "" {
		return nil, nil, ErrNoArchivePath
	}

	if _, err := os.Stat(archivePath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, archivePath)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}

	format, _, err := archiver.Identify(ctx, archivePath, file)
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	ex, ok := format.(archiver.Extractor)
	if !ok {
		file.Close()
		return nil, nil, fmt.Errorf("%w: format does not support extraction", ErrUnsupportedFormat)
	}

	return ex, file, nil
}

// walkEntries opens archivePath and invokes visit once per regular file,
// building a Manifest from whatever entries visit appends. visit is handed
// a fresh FileEntry for every archive member; it decides whether/how to
// keep it.
func walkEntries(ctx context.Context, archivePath string, visit func(f archiver.FileInfo, entry FileEntry) (FileEntry, bool, error)) (*Manifest, error) {
	ex, file, err := openForWalk(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []FileEntry

	// archiver.Identify already consumed some of file's bytes to sniff the
	// format; re-open a fresh reader rooted at the start for the walk.
	reopened, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("reopen archive: %w", err)
	}
	defer reopened.Close()

	err = ex.Extract(ctx, reopened, func(ctx context.Context, f archiver.FileInfo) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if f.IsDir() {
			return nil
		}

		entry, keep, err := visit(f, NewFileEntry(f.NameInArchive, f.Size()))
		if err != nil {
			return err
		}
		if keep {
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	return NewManifest(entries), nil
}

// ExtractManifest reads an archive's directory and returns a Manifest of
// its files. Content is never read, so this stays cheap even for
// multi-gigabyte mod archives.
func (e *Extractor) ExtractManifest(ctx context.Context, archivePath string) (*Manifest, error) {
	return walkEntries(ctx, archivePath, func(_ archiver.FileInfo, entry FileEntry) (FileEntry, bool, error) {
		return entry, true, nil
	})
}

// ExtractManifestWithHashes behaves like ExtractManifest but additionally
// reads every file's bytes to compute a content hash (FileEntry.Hash), so
// that identical files with different archive paths can be recognized as
// duplicates. This costs an extra full read of the archive.
func (e *Extractor) ExtractManifestWithHashes(ctx context.Context, archivePath string) (*Manifest, error) {
	return walkEntries(ctx, archivePath, func(f archiver.FileInfo, entry FileEntry) (FileEntry, bool, error) {
		rc, err := f.Open()
		if err != nil {
			// Can't read this one's bytes; fall back to the path hash
			// already on entry rather than failing the whole archive.
			return entry, true, nil
		}
		defer rc.Close()

		hasher := sha256.New()
		if _, err := io.Copy(hasher, rc); err != nil {
			return entry, true, nil
		}
		entry.Hash = hex.EncodeToString(hasher.Sum(nil))
		return entry, true, nil
	})
}

// ExtractManifestFiltered extracts a manifest containing only the entries
// for which filter returns true, letting callers skip content they know
// they don't need (e.g. texture-only or plugin-only manifests).
func (e *Extractor) ExtractManifestFiltered(ctx context.Context, archivePath string, filter func(FileEntry) bool) (*Manifest, error) {
	return walkEntries(ctx, archivePath, func(_ archiver.FileInfo, entry FileEntry) (FileEntry, bool, error) {
		if filter != nil && !filter(entry) {
			return entry, false, nil
		}
		return entry, true, nil
	})
}

// FilterByType returns a filter matching entries of the given category.
func FilterByType(fileType FileType) func(FileEntry) bool {
	return func(entry FileEntry) bool {
		return entry.Type == fileType
	}
}

// FilterByExtension returns a filter matching entries with the given
// extension exactly (including the leading dot).
func FilterByExtension(extension string) func(FileEntry) bool {
	return func(entry FileEntry) bool {
		return entry.Extension == extension
	}
}

// FilterByDirectory returns a filter matching entries whose normalized
// directory equals directory.
func FilterByDirectory(directory string) func(FileEntry) bool {
	want := NormalizePath(directory)
	return func(entry FileEntry) bool {
		return entry.Directory == want
	}
}

// FilterByPathPrefix returns a filter matching entries whose normalized
// path starts with prefix.
func FilterByPathPrefix(prefix string) func(FileEntry) bool {
	want := NormalizePath(prefix)
	return func(entry FileEntry) bool {
		return len(entry.Path) >= len(want) && entry.Path[:len(want)] == want
	}
}
