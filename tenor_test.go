package imagesearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchTenorV2(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/search" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("media_filter") != "gif,webp" {
			t.Errorf("media_filter = %q", r.URL.Query().Get("media_filter"))
		}
		fmt.Fprint(w, `{"results":[
			{"title":"dancing cat","content_description":"A cat dancing","itemurl":"https://tenor.com/view/cat-1","media_formats":{"gif":{"url":"https://media.tenor.com/cat.gif","dims":[498,280]},"webp":{"url":"https://media.tenor.com/cat.webp","dims":[498,280]}}},
			{"title":"no gif","content_description":"","itemurl":"https://tenor.com/view/2","media_formats":{"webp":{"url":"https://media.tenor.com/only.webp","dims":[320,180]}}}
		]}`)
	}))
	defer server.Close()

	e := New(fastConfig())
	e.tenorV2BaseURL = server.URL

	records := e.searchTenor(context.Background(), "dancing cat", 5, "")
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.URL != "https://media.tenor.com/cat.gif" {
		t.Errorf("gif should win over webp: %q", first.URL)
	}
	if first.Type != "gif" {
		t.Errorf("type = %q, want gif", first.Type)
	}
	if first.Title != "A cat dancing" {
		t.Errorf("content_description should win over title: %q", first.Title)
	}
	if first.Width != 498 || first.Height != 280 {
		t.Errorf("dims not mapped: %dx%d", first.Width, first.Height)
	}

	if records[1].URL != "https://media.tenor.com/only.webp" || records[1].Type != "webp" {
		t.Errorf("webp fallback not applied: %+v", records[1])
	}
	if records[1].Title != "no gif" {
		t.Errorf("title fallback not applied: %q", records[1].Title)
	}
}

func TestSearchTenorFallsBackToV1(t *testing.T) {
	v2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer v2.Close()

	v1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/search" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("key") != tenorV1Key {
			t.Errorf("v1 key = %q", r.URL.Query().Get("key"))
		}
		fmt.Fprint(w, `{"results":[
			{"title":"small one","itemurl":"https://tenor.com/view/3","media":[{"tinygif":{"url":"https://media.tenor.com/tiny.gif","dims":[220,124]}}]}
		]}`)
	}))
	defer v1.Close()

	e := New(fastConfig())
	e.tenorV2BaseURL = v2.URL
	e.tenorV1BaseURL = v1.URL

	records := e.searchTenor(context.Background(), "q", 3, "")
	if len(records) != 1 {
		t.Fatalf("expected v1 fallback record, got %d", len(records))
	}
	if records[0].URL != "https://media.tenor.com/tiny.gif" {
		t.Errorf("url = %q", records[0].URL)
	}
	// tinygif is still reported as a gif
	if records[0].Type != "gif" {
		t.Errorf("type = %q, want gif", records[0].Type)
	}
}

func TestSearchTenorV1SkipsEmptyMediaEntries(t *testing.T) {
	v2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer v2.Close()

	v1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[
			{"title":"no media","itemurl":"https://tenor.com/view/1","media":[]},
			{"title":"good one","itemurl":"https://tenor.com/view/2","media":[{"gif":{"url":"https://media.tenor.com/good.gif","dims":[320,240]}}]}
		]}`)
	}))
	defer v1.Close()

	e := New(fastConfig())
	e.tenorV2BaseURL = v2.URL
	e.tenorV1BaseURL = v1.URL

	records := e.searchTenor(context.Background(), "q", 3, "")
	if len(records) != 1 {
		t.Fatalf("expected the valid result after an empty-media entry, got %d", len(records))
	}
	if records[0].URL != "https://media.tenor.com/good.gif" {
		t.Errorf("url = %q", records[0].URL)
	}
}

func TestSearchTenorFallsBackToScrape(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer failing.Close()

	var gotPath string
	scrape := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `<html><body>
			<img src="https://media.tenor.com/abc/visible.gif" alt="Visible gif">
			<script>var data = {"url":"https://media1.tenor.com/def/inline.gif"};</script>
			<script>var dup = {"url":"https://media1.tenor.com/def/inline.gif"};</script>
		</body></html>`)
	}))
	defer scrape.Close()

	e := New(fastConfig())
	e.tenorV2BaseURL = failing.URL
	e.tenorV1BaseURL = failing.URL
	e.tenorScrapeBaseURL = scrape.URL

	records := e.searchTenor(context.Background(), "happy dance", 5, "")
	if gotPath != "/search/happy-dance-gifs" {
		t.Errorf("scrape path = %q", gotPath)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 unique records, got %d", len(records))
	}
	if records[0].URL != "https://media.tenor.com/abc/visible.gif" {
		t.Errorf("img tag record = %q", records[0].URL)
	}
	if records[0].Title != "Visible gif" {
		t.Errorf("alt text not used: %q", records[0].Title)
	}
	if records[1].URL != "https://media1.tenor.com/def/inline.gif" {
		t.Errorf("inline script record = %q", records[1].URL)
	}
}

func TestSearchTenorFirstTierShortCircuits(t *testing.T) {
	var v1Hits int
	v2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"title":"ok","itemurl":"","media_formats":{"gif":{"url":"https://media.tenor.com/ok.gif"}}}]}`)
	}))
	defer v2.Close()
	v1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v1Hits++
	}))
	defer v1.Close()

	e := New(fastConfig())
	e.tenorV2BaseURL = v2.URL
	e.tenorV1BaseURL = v1.URL

	records := e.searchTenor(context.Background(), "q", 3, "")
	if len(records) != 1 {
		t.Fatalf("expected 1 record from v2, got %d", len(records))
	}
	if v1Hits != 0 {
		t.Errorf("v1 should not be hit when v2 delivers, got %d hits", v1Hits)
	}
}

func TestSearchTenorZeroBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for a zero budget")
	}))
	defer server.Close()

	e := New(fastConfig())
	e.tenorV2BaseURL = server.URL
	e.tenorV1BaseURL = server.URL
	e.tenorScrapeBaseURL = server.URL

	if got := e.searchTenor(context.Background(), "q", 0, ""); len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}
