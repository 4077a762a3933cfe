package imagesearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPinOriginalURL(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		srcset string
		want   string
	}{
		{
			"srcset last entry wins",
			"https://i.pinimg.com/236x/ab/cd/ef.jpg",
			"https://i.pinimg.com/236x/ab/cd/ef.jpg 1x, https://i.pinimg.com/originals/ab/cd/ef.jpg 4x",
			"https://i.pinimg.com/originals/ab/cd/ef.jpg",
		},
		{
			"sized src rewritten",
			"https://i.pinimg.com/564x/ab/cd/ef.jpg",
			"",
			"https://i.pinimg.com/originals/ab/cd/ef.jpg",
		},
		{
			"unsized src unchanged",
			"https://i.pinimg.com/videos/thumbnails/ab.jpg",
			"",
			"https://i.pinimg.com/videos/thumbnails/ab.jpg",
		},
		{
			"empty input",
			"",
			"",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pinOriginalURL(tt.src, tt.srcset); got != tt.want {
				t.Errorf("pinOriginalURL(%q, %q) = %q, want %q", tt.src, tt.srcset, got, tt.want)
			}
		})
	}
}

func TestSearchPinterestHTTPFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "vintage posters" {
			t.Errorf("query = %q", got)
		}
		fmt.Fprint(w, `<html><body>
			<img src="https://i.pinimg.com/236x/aa/bb/cc.jpg" alt="Vintage poster">
			<img src="https://static.example.com/layout.png" alt="not a pin">
			<img src="https://i.pinimg.com/236x/aa/bb/cc.jpg" alt="duplicate">
			<img src="https://i.pinimg.com/474x/dd/ee/ff.jpg" alt="Another poster">
		</body></html>`)
	}))
	defer server.Close()

	config := fastConfig()
	config.DisableHeadless = true
	e := New(config)
	e.pinterestBaseURL = server.URL

	records := e.searchPinterest(context.Background(), "vintage posters", 5, "")
	if len(records) != 2 {
		t.Fatalf("expected 2 unique pin records, got %d", len(records))
	}
	if records[0].URL != "https://i.pinimg.com/originals/aa/bb/cc.jpg" {
		t.Errorf("sized URL not rewritten: %q", records[0].URL)
	}
	if records[0].Title != "Vintage poster" {
		t.Errorf("title = %q", records[0].Title)
	}
	if records[0].Thumbnail != "https://i.pinimg.com/236x/aa/bb/cc.jpg" {
		t.Errorf("thumbnail should keep the sized URL: %q", records[0].Thumbnail)
	}
	if records[1].URL != "https://i.pinimg.com/originals/dd/ee/ff.jpg" {
		t.Errorf("second record = %q", records[1].URL)
	}
}

func TestSearchPinterestPlaceholders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>client-side app shell, no pins</body></html>`)
	}))
	defer server.Close()

	config := fastConfig()
	config.DisableHeadless = true
	e := New(config)
	e.pinterestBaseURL = server.URL

	records := e.searchPinterest(context.Background(), "rare query", 3, "")
	if len(records) != 3 {
		t.Fatalf("expected 3 placeholder records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.Source != "Pinterest (Fallback)" {
			t.Errorf("record %d source = %q", i, rec.Source)
		}
		if !strings.HasPrefix(rec.URL, "https://i.pinimg.com/originals/sample-") {
			t.Errorf("record %d url = %q", i, rec.URL)
		}
		if rec.Width != 800 || rec.Height != 600 {
			t.Errorf("record %d dims = %dx%d", i, rec.Width, rec.Height)
		}
	}
}

func TestSearchPinterestZeroBudget(t *testing.T) {
	config := fastConfig()
	config.DisableHeadless = true
	e := New(config)

	if got := e.searchPinterest(context.Background(), "q", 0, ""); len(got) != 0 {
		t.Errorf("expected empty result for zero budget, got %d", len(got))
	}
}
