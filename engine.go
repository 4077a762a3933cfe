package imagesearch

import (
	"context"
	"log"
	"time"

	"github.com/zombar/imagesearch/models"
)

// searchFunc is the adapter contract: fetch up to maxResults records for
// a query. Adapters never return an error; total failure is an empty
// list plus a log line. proxyBaseURL is the caller's preferred
// metasearch instance; only the searxng adapter reads it.
type searchFunc func(ctx context.Context, query string, maxResults int, proxyBaseURL string) []models.ImageRecord

// Engine fans image searches out to provider adapters.
type Engine struct {
	config    Config
	client    *Client
	providers map[string]searchFunc

	// Endpoint bases, overridable in tests
	duckduckgoBaseURL  string
	pixabayBaseURL     string
	pinterestBaseURL   string
	tenorV2BaseURL     string
	tenorV1BaseURL     string
	tenorScrapeBaseURL string
	searxngFallbacks   []string
}

// New creates an Engine with all provider adapters registered.
func New(config Config) *Engine {
	e := &Engine{
		config:             config,
		client:             NewClient(config),
		duckduckgoBaseURL:  "https://duckduckgo.com",
		pixabayBaseURL:     "https://pixabay.com",
		pinterestBaseURL:   "https://www.pinterest.com",
		tenorV2BaseURL:     "https://tenor.googleapis.com",
		tenorV1BaseURL:     "https://g.tenor.com",
		tenorScrapeBaseURL: "https://tenor.com",
		searxngFallbacks: []string{
			"https://searx.be",
			"https://searxng.site",
			"https://searx.tiekoetter.com",
			"https://opnxng.com",
		},
	}
	e.providers = map[string]searchFunc{
		"duckduckgo": e.searchDuckDuckGo,
		"pixabay":    e.searchPixabay,
		"pinterest":  e.searchPinterest,
		"searxng":    e.searchSearxng,
		"tenor":      e.searchTenor,
	}
	return e
}

// ProviderNames lists the registered provider identifiers.
func (e *Engine) ProviderNames() []string {
	return []string{"duckduckgo", "pixabay", "pinterest", "searxng", "tenor"}
}

// lookupProvider resolves a provider name, defaulting to duckduckgo for
// unrecognized names.
func (e *Engine) lookupProvider(name string) (string, searchFunc) {
	if fn, ok := e.providers[name]; ok {
		return name, fn
	}
	log.Printf("Unknown provider %q, defaulting to duckduckgo", name)
	return "duckduckgo", e.providers["duckduckgo"]
}

// callProvider runs one adapter with panic isolation and metrics. A
// panicking adapter contributes zero records.
func (e *Engine) callProvider(ctx context.Context, name string, fn searchFunc, query string, maxResults int, proxyBaseURL string) (records []models.ImageRecord) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Provider %s panicked for query %q: %v", name, query, r)
			searchesTotal.WithLabelValues(name, "panic").Inc()
			records = nil
		}
		searchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	records = fn(ctx, query, maxResults, proxyBaseURL)
	if len(records) == 0 {
		searchesTotal.WithLabelValues(name, "empty").Inc()
	} else {
		searchesTotal.WithLabelValues(name, "ok").Inc()
		imagesReturned.WithLabelValues(name).Add(float64(len(records)))
	}
	return records
}
