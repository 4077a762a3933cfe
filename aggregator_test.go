package imagesearch

import (
	"context"
	"fmt"
	"testing"

	"github.com/zombar/imagesearch/models"
)

// stubProvider returns n records named after the provider.
func stubProvider(name string, n int) searchFunc {
	return func(ctx context.Context, query string, maxResults int, proxyBaseURL string) []models.ImageRecord {
		if maxResults < n {
			n = maxResults
		}
		records := make([]models.ImageRecord, 0, n)
		for i := 0; i < n; i++ {
			records = append(records, models.ImageRecord{
				URL:   fmt.Sprintf("https://example.com/%s/%d.jpg", name, i),
				Title: name,
			})
		}
		return records
	}
}

func newStubEngine(providers map[string]searchFunc) *Engine {
	e := New(DefaultConfig())
	e.providers = providers
	return e
}

func TestAggregateSingleProvider(t *testing.T) {
	var gotMax int
	e := newStubEngine(map[string]searchFunc{
		"duckduckgo": func(ctx context.Context, query string, maxResults int, proxyBaseURL string) []models.ImageRecord {
			gotMax = maxResults
			return stubProvider("duckduckgo", 10)(ctx, query, maxResults, proxyBaseURL)
		},
	})

	records := e.Aggregate(context.Background(), "sunset", 7, models.SelectEngine("duckduckgo"), "")
	if gotMax != 7 {
		t.Errorf("single mode should hand the full budget to the adapter, got %d", gotMax)
	}
	if len(records) != 7 {
		t.Fatalf("expected 7 records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Query != "sunset" {
			t.Errorf("record not stamped with query: %+v", rec)
		}
		if rec.SearchEngine != "duckduckgo" {
			t.Errorf("record not stamped with provider: %+v", rec)
		}
	}
}

func TestAggregateMultiProviderSplit(t *testing.T) {
	calls := make(map[string]int)
	providers := map[string]searchFunc{}
	for _, name := range []string{"duckduckgo", "pixabay"} {
		name := name
		providers[name] = func(ctx context.Context, query string, maxResults int, proxyBaseURL string) []models.ImageRecord {
			calls[name] = maxResults
			return stubProvider(name, maxResults)(ctx, query, maxResults, proxyBaseURL)
		}
	}
	e := newStubEngine(providers)

	selection := models.EngineSelection{Engines: []string{"duckduckgo", "pixabay"}}
	records := e.Aggregate(context.Background(), "forest", 5, selection, "")

	// floor(5/2) = 2 each, capped at 5 overall
	if calls["duckduckgo"] != 2 || calls["pixabay"] != 2 {
		t.Errorf("expected 2 per provider, got %v", calls)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}

	// Caller order is preserved: duckduckgo's block first
	if records[0].SearchEngine != "duckduckgo" || records[3].SearchEngine != "pixabay" {
		t.Errorf("provider blocks out of order: %s ... %s", records[0].SearchEngine, records[3].SearchEngine)
	}
}

func TestAggregateMultiProviderMinimumOne(t *testing.T) {
	providers := map[string]searchFunc{
		"duckduckgo": stubProvider("duckduckgo", 5),
		"pixabay":    stubProvider("pixabay", 5),
		"tenor":      stubProvider("tenor", 5),
	}
	e := newStubEngine(providers)

	selection := models.EngineSelection{Engines: []string{"duckduckgo", "pixabay", "tenor"}}
	records := e.Aggregate(context.Background(), "cats", 2, selection, "")

	// Each provider gets at least 1; total capped at maxResults
	if len(records) != 2 {
		t.Fatalf("expected cap at 2 records, got %d", len(records))
	}
}

func TestAggregatePanicIsolation(t *testing.T) {
	providers := map[string]searchFunc{
		"duckduckgo": stubProvider("duckduckgo", 2),
		"pixabay": func(ctx context.Context, query string, maxResults int, proxyBaseURL string) []models.ImageRecord {
			panic("adapter bug")
		},
	}
	e := newStubEngine(providers)

	selection := models.EngineSelection{Engines: []string{"duckduckgo", "pixabay"}}
	records := e.Aggregate(context.Background(), "dogs", 4, selection, "")

	if len(records) != 2 {
		t.Fatalf("expected the healthy provider's 2 records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.SearchEngine != "duckduckgo" {
			t.Errorf("unexpected provider in results: %s", rec.SearchEngine)
		}
	}

	// A second identical call behaves the same
	again := e.Aggregate(context.Background(), "dogs", 4, selection, "")
	if len(again) != len(records) {
		t.Errorf("repeat call returned %d records, first returned %d", len(again), len(records))
	}
}

func TestAggregateDropsEmptyURLs(t *testing.T) {
	e := newStubEngine(map[string]searchFunc{
		"duckduckgo": func(ctx context.Context, query string, maxResults int, proxyBaseURL string) []models.ImageRecord {
			return []models.ImageRecord{
				{URL: "https://example.com/ok.jpg"},
				{URL: ""},
				{URL: "https://example.com/ok2.jpg"},
			}
		},
	})

	records := e.Aggregate(context.Background(), "q", 5, models.SelectEngine("duckduckgo"), "")
	if len(records) != 2 {
		t.Fatalf("expected empty-URL record dropped, got %d records", len(records))
	}
}

func TestAggregateZeroBudget(t *testing.T) {
	e := newStubEngine(map[string]searchFunc{"duckduckgo": stubProvider("duckduckgo", 5)})

	if got := e.Aggregate(context.Background(), "q", 0, models.SelectEngine("duckduckgo"), ""); len(got) != 0 {
		t.Errorf("expected no records for zero budget, got %d", len(got))
	}
	if got := e.Aggregate(context.Background(), "q", 5, models.EngineSelection{}, ""); len(got) != 0 {
		t.Errorf("expected no records for empty selection, got %d", len(got))
	}
}

func TestAggregateUnknownProviderDefaults(t *testing.T) {
	called := false
	e := newStubEngine(map[string]searchFunc{
		"duckduckgo": func(ctx context.Context, query string, maxResults int, proxyBaseURL string) []models.ImageRecord {
			called = true
			return stubProvider("duckduckgo", 1)(ctx, query, maxResults, proxyBaseURL)
		},
	})

	records := e.Aggregate(context.Background(), "q", 3, models.SelectEngine("altavista"), "")
	if !called {
		t.Fatal("expected unknown provider to fall back to duckduckgo")
	}
	if len(records) != 1 || records[0].SearchEngine != "duckduckgo" {
		t.Errorf("fallback records mis-stamped: %+v", records)
	}
}
