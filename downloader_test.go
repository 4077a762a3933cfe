package imagesearch

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zombar/imagesearch/models"
	"github.com/zombar/imagesearch/storage"
)

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func newTestBackend(t *testing.T) storage.Backend {
	t.Helper()
	backend, err := storage.New(storage.Config{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return backend
}

func TestDownloadAll(t *testing.T) {
	imgData := testPNG(t, 320, 240)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(imgData)
	}))
	defer server.Close()

	d := NewDownloader(NewClient(fastConfig()), newTestBackend(t))

	records := []models.ImageRecord{
		{URL: server.URL + "/a.png", Title: "First Image"},
		{URL: server.URL + "/b.png", Title: "Second Image"},
	}
	saved := d.DownloadAll(context.Background(), records)
	if len(saved) != 2 {
		t.Fatalf("expected 2 saved images, got %d", len(saved))
	}

	// Input order preserved
	if saved[0].SourceURL != records[0].URL || saved[1].SourceURL != records[1].URL {
		t.Errorf("results out of order: %q, %q", saved[0].SourceURL, saved[1].SourceURL)
	}
	if saved[0].Width != 320 || saved[0].Height != 240 {
		t.Errorf("decoded dimensions = %dx%d", saved[0].Width, saved[0].Height)
	}
	if saved[0].ContentType != "image/png" {
		t.Errorf("content type = %q", saved[0].ContentType)
	}
	if saved[0].FileSizeBytes != int64(len(imgData)) {
		t.Errorf("size = %d, want %d", saved[0].FileSizeBytes, len(imgData))
	}
	if !strings.Contains(saved[0].Path, "first-image") {
		t.Errorf("path should carry the slugged title: %q", saved[0].Path)
	}
}

func TestDownloadAllSkipsFailures(t *testing.T) {
	imgData := testPNG(t, 200, 200)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(imgData)
	}))
	defer server.Close()

	d := NewDownloader(NewClient(fastConfig()), newTestBackend(t))

	records := []models.ImageRecord{
		{URL: server.URL + "/missing.png", Title: "Gone"},
		{URL: server.URL + "/present.png", Title: "Here"},
	}
	saved := d.DownloadAll(context.Background(), records)
	if len(saved) != 1 {
		t.Fatalf("expected 1 saved image, got %d", len(saved))
	}
	if saved[0].SourceURL != records[1].URL {
		t.Errorf("wrong record saved: %q", saved[0].SourceURL)
	}
}

func TestDownloadAllRejectsOversize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "20971520") // 20MB advertised
		w.Write(make([]byte, 1024))
	}))
	defer server.Close()

	d := NewDownloader(NewClient(fastConfig()), newTestBackend(t))

	saved := d.DownloadAll(context.Background(), []models.ImageRecord{{URL: server.URL, Title: "Huge"}})
	if len(saved) != 0 {
		t.Errorf("expected oversize image rejected, got %d saved", len(saved))
	}
}

func TestDownloadAllEmptyInput(t *testing.T) {
	d := NewDownloader(NewClient(fastConfig()), newTestBackend(t))
	if got := d.DownloadAll(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}
