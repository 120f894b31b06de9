package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/modtroubleshooter/engine/internal/archive"
	"github.com/modtroubleshooter/engine/internal/nexus"
	"github.com/modtroubleshooter/engine/internal/plugin"
)

// createTestPlugin builds a minimal valid TES4 plugin file, enough to
// satisfy plugin.Parser without depending on the plugin package's own test
// fixtures.
func createTestPlugin(t *testing.T) []byte {
	t.Helper()

	var recordData bytes.Buffer
	hedr := []byte{
		0x9A, 0x99, 0xD9, 0x3F, // version 1.7 as float32
		0x00, 0x00, 0x00, 0x00, // numRecords
		0x01, 0x00, 0x00, 0x00, // nextObjectID
	}
	recordData.WriteString(plugin.SignatureHEDR)
	binary.Write(&recordData, binary.LittleEndian, uint16(len(hedr)))
	recordData.Write(hedr)

	var buf bytes.Buffer
	buf.WriteString(plugin.SignatureTES4)
	binary.Write(&buf, binary.LittleEndian, uint32(recordData.Len()))
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // flags
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // form ID
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // timestamp
	binary.Write(&buf, binary.LittleEndian, uint16(44))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	buf.Write(recordData.Bytes())
	return buf.Bytes()
}

func createTestZip(t *testing.T, files map[string][]byte) string {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "pipeline-test-*.zip")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer tmpFile.Close()

	zw := zip.NewWriter(tmpFile)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return tmpFile.Name()
}

// fakeNexusServer serves download_link.json requests and the raw file
// payloads those links point at, entirely over a single httptest.Server so
// tests never touch the real Nexus endpoints.
type fakeNexusServer struct {
	server *httptest.Server
	files  map[string][]byte // keyed by serving path, e.g. "/payload/plugin.esp"
}

func newFakeNexusServer(t *testing.T) *fakeNexusServer {
	t.Helper()
	f := &fakeNexusServer{files: make(map[string][]byte)}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/games/", func(w http.ResponseWriter, r *http.Request) {
		// path: /v1/games/{domain}/mods/{modId}/files/{fileId}/download_link.json
		parts := strings.Split(r.URL.Path, "/")
		fileID := parts[len(parts)-2]
		links := nexus.DownloadLinksResponse{
			{Name: "test", ShortName: "test", URI: f.server.URL + "/payload/" + fileID},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(links)
	})
	mux.HandleFunc("/payload/", func(w http.ResponseWriter, r *http.Request) {
		content, ok := f.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(content)
	})
	f.server = httptest.NewServer(mux)
	return f
}

func (f *fakeNexusServer) setPayload(fileID int, content []byte) {
	f.files[fmt.Sprintf("/payload/%d", fileID)] = content
}

func (f *fakeNexusServer) Close() { f.server.Close() }

// redirectTransport rewrites every outgoing request to point at a test
// server, regardless of the scheme/host the client built the request with.
// Mirrors the pattern the nexus package's own tests use to intercept calls
// to the hardcoded GraphQLEndpoint/RESTAPIBase constants.
type redirectTransport struct {
	server *httptest.Server
}

func (t *redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(t.server.URL, "http://")
	return http.DefaultTransport.RoundTrip(req)
}

func newFakeClient(t *testing.T, server *httptest.Server) *nexus.Client {
	t.Helper()
	client, err := nexus.NewClient(nexus.ClientConfig{
		APIKey: "test-api-key",
		HTTPClient: &http.Client{
			Transport: &redirectTransport{server: server},
		},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func modFileRef(fileID, modID int, name string) nexus.ModFileReference {
	return nexus.ModFileReference{
		FileID: fileID,
		File: &nexus.ModFile{
			FileID: fileID,
			Name:   name,
			Mod:    &nexus.Mod{ModID: modID, Name: name},
		},
	}
}

func newDownloader(t *testing.T) *archive.Downloader {
	t.Helper()
	d, err := archive.NewDownloader(archive.DownloaderConfig{TempDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewDownloader: %v", err)
	}
	return d
}

func newArchiveExtractor(t *testing.T) *archive.Extractor {
	t.Helper()
	e, err := archive.NewExtractor(archive.ExtractorConfig{TempDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	return e
}

func TestModFailureError(t *testing.T) {
	inner := errors.New("boom")
	err := &ModFailureError{ModName: "Some Mod", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should see through to the wrapped error")
	}
	if got := errors.Unwrap(err); got != inner {
		t.Errorf("Unwrap() = %v, want %v", got, inner)
	}
	if !strings.Contains(err.Error(), "Some Mod") {
		t.Errorf("Error() = %q, want it to mention the mod name", err.Error())
	}
}

func TestLoadOrderExtractor_ExtractPlugins_DirectPlugin(t *testing.T) {
	fake := newFakeNexusServer(t)
	defer fake.Close()

	fake.setPayload(10, createTestPlugin(t))

	client := newFakeClient(t, fake.server)
	extractor := NewLoadOrderExtractor(newDownloader(t), newArchiveExtractor(t))

	revision := &nexus.RevisionDetails{
		ModFiles: []nexus.ModFileReference{
			modFileRef(10, 1, "TestMod.esp"),
		},
	}

	plugins, err := extractor.ExtractPlugins(context.Background(), client, "skyrimspecialedition", revision)
	if err != nil {
		t.Fatalf("ExtractPlugins: %v", err)
	}
	if len(plugins) != 1 {
		t.Fatalf("got %d plugins, want 1", len(plugins))
	}
	if plugins[0].Filename != "TestMod.esp" {
		t.Errorf("Filename = %q, want TestMod.esp", plugins[0].Filename)
	}
	if plugins[0].Header == nil {
		t.Error("expected a parsed header for a valid plugin")
	}
}

func TestLoadOrderExtractor_ExtractPlugins_ArchiveWithPlugin(t *testing.T) {
	fake := newFakeNexusServer(t)
	defer fake.Close()

	zipPath := createTestZip(t, map[string][]byte{
		"TestMod.esp":   createTestPlugin(t),
		"textures/a.dds": []byte("not a plugin"),
	})
	defer os.Remove(zipPath)
	zipContent, err := os.ReadFile(zipPath)
	if err != nil {
		t.Fatalf("read zip fixture: %v", err)
	}
	fake.setPayload(20, zipContent)

	client := newFakeClient(t, fake.server)
	extractor := NewLoadOrderExtractor(newDownloader(t), newArchiveExtractor(t))

	revision := &nexus.RevisionDetails{
		ModFiles: []nexus.ModFileReference{
			modFileRef(20, 2, "TestMod-v1-0.zip"),
		},
	}

	plugins, err := extractor.ExtractPlugins(context.Background(), client, "skyrimspecialedition", revision)
	if err != nil {
		t.Fatalf("ExtractPlugins: %v", err)
	}
	if len(plugins) != 1 {
		t.Fatalf("got %d plugins, want 1", len(plugins))
	}
	if plugins[0].Filename != "TestMod.esp" {
		t.Errorf("Filename = %q, want TestMod.esp", plugins[0].Filename)
	}
}

func TestLoadOrderExtractor_ExtractPlugins_NonArchiveNonPlugin(t *testing.T) {
	fake := newFakeNexusServer(t)
	defer fake.Close()
	fake.setPayload(30, []byte("readme text"))

	client := newFakeClient(t, fake.server)
	extractor := NewLoadOrderExtractor(newDownloader(t), newArchiveExtractor(t))

	revision := &nexus.RevisionDetails{
		ModFiles: []nexus.ModFileReference{
			modFileRef(30, 3, "README.txt"),
		},
	}

	plugins, err := extractor.ExtractPlugins(context.Background(), client, "skyrimspecialedition", revision)
	if err != nil {
		t.Fatalf("ExtractPlugins: %v", err)
	}
	if len(plugins) != 0 {
		t.Fatalf("got %d plugins, want 0 for a non-archive, non-plugin file", len(plugins))
	}
}

func TestLoadOrderExtractor_ExtractPlugins_SkipsEntriesWithoutMod(t *testing.T) {
	fake := newFakeNexusServer(t)
	defer fake.Close()

	client := newFakeClient(t, fake.server)
	extractor := NewLoadOrderExtractor(newDownloader(t), newArchiveExtractor(t))

	revision := &nexus.RevisionDetails{
		ModFiles: []nexus.ModFileReference{
			{FileID: 99, File: nil},
		},
	}

	plugins, err := extractor.ExtractPlugins(context.Background(), client, "skyrimspecialedition", revision)
	if err != nil {
		t.Fatalf("ExtractPlugins: %v", err)
	}
	if len(plugins) != 0 {
		t.Fatalf("got %d plugins, want 0", len(plugins))
	}
}

func TestLoadOrderExtractor_ExtractPlugins_AbortsOnDownloadFailure(t *testing.T) {
	fake := newFakeNexusServer(t)
	defer fake.Close()
	// Deliberately leave fileID 40's payload unset so the download 404s.

	client := newFakeClient(t, fake.server)
	extractor := NewLoadOrderExtractor(newDownloader(t), newArchiveExtractor(t))

	revision := &nexus.RevisionDetails{
		ModFiles: []nexus.ModFileReference{
			modFileRef(40, 4, "BrokenMod.esp"),
		},
	}

	_, err := extractor.ExtractPlugins(context.Background(), client, "skyrimspecialedition", revision)
	if err == nil {
		t.Fatal("expected an error when a mod's download fails")
	}

	var modErr *ModFailureError
	if !errors.As(err, &modErr) {
		t.Fatalf("expected *ModFailureError, got %T: %v", err, err)
	}
	if modErr.ModName != "BrokenMod.esp" {
		t.Errorf("ModName = %q, want BrokenMod.esp", modErr.ModName)
	}
}

func TestConflictExtractor_ExtractManifests(t *testing.T) {
	fake := newFakeNexusServer(t)
	defer fake.Close()

	zipPath := createTestZip(t, map[string][]byte{
		"meshes/thing.nif": []byte("mesh data"),
		"textures/a.dds":   []byte("texture data"),
	})
	defer os.Remove(zipPath)
	zipContent, err := os.ReadFile(zipPath)
	if err != nil {
		t.Fatalf("read zip fixture: %v", err)
	}
	fake.setPayload(50, zipContent)

	client := newFakeClient(t, fake.server)
	extractor := NewConflictExtractor(newDownloader(t))

	revision := &nexus.RevisionDetails{
		ModFiles: []nexus.ModFileReference{
			modFileRef(50, 5, "MeshMod.zip"),
			// A bare plugin file contributes no manifest and should be skipped.
			modFileRef(51, 6, "Standalone.esp"),
		},
	}

	manifests, err := extractor.ExtractManifests(context.Background(), client, "skyrimspecialedition", revision, false)
	if err != nil {
		t.Fatalf("ExtractManifests: %v", err)
	}
	if len(manifests) != 1 {
		t.Fatalf("got %d manifests, want 1 (plugin-only mod should be skipped)", len(manifests))
	}
	if manifests[0].ModName != "MeshMod.zip" {
		t.Errorf("ModName = %q, want MeshMod.zip", manifests[0].ModName)
	}
	if manifests[0].Manifest == nil || len(manifests[0].Manifest.Files) != 2 {
		t.Errorf("expected a manifest with 2 files, got %+v", manifests[0].Manifest)
	}
}

func TestConflictExtractor_ExtractManifests_AbortsOnDownloadFailure(t *testing.T) {
	fake := newFakeNexusServer(t)
	defer fake.Close()
	// fileID 60 has no payload registered, so its download 404s.

	client := newFakeClient(t, fake.server)
	extractor := NewConflictExtractor(newDownloader(t))

	revision := &nexus.RevisionDetails{
		ModFiles: []nexus.ModFileReference{
			modFileRef(60, 7, "BrokenMod.zip"),
		},
	}

	_, err := extractor.ExtractManifests(context.Background(), client, "skyrimspecialedition", revision, false)
	if err == nil {
		t.Fatal("expected an error when a mod's download fails")
	}
	var modErr *ModFailureError
	if !errors.As(err, &modErr) {
		t.Fatalf("expected *ModFailureError, got %T: %v", err, err)
	}
}

func TestConflictExtractor_ExtractManifests_DegradesOnUnreadableArchive(t *testing.T) {
	fake := newFakeNexusServer(t)
	defer fake.Close()
	fake.setPayload(70, []byte("not a real zip file"))

	client := newFakeClient(t, fake.server)
	extractor := NewConflictExtractor(newDownloader(t))

	revision := &nexus.RevisionDetails{
		ModFiles: []nexus.ModFileReference{
			modFileRef(70, 8, "CorruptMod.zip"),
		},
	}

	manifests, err := extractor.ExtractManifests(context.Background(), client, "skyrimspecialedition", revision, false)
	if err != nil {
		t.Fatalf("ExtractManifests: %v", err)
	}
	if len(manifests) != 1 {
		t.Fatalf("got %d manifests, want 1 (mod kept with empty manifest)", len(manifests))
	}
	if manifests[0].Manifest != nil {
		t.Errorf("expected nil manifest for an unreadable archive, got %+v", manifests[0].Manifest)
	}
}
