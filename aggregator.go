package imagesearch

import (
	"context"

	"github.com/zombar/imagesearch/models"
)

// Aggregate runs one query against the selected providers and merges
// the results.
//
// Single-provider mode hands the full maxResults to that adapter.
// Multi-provider mode splits maxResults evenly (floor, minimum 1 per
// provider), calls the adapters in the caller-given order, and
// concatenates their blocks in that order before capping the total at
// maxResults. Under-delivering providers can make the total come up
// short of maxResults; that is accepted behavior.
//
// Every returned record is stamped with the query and the originating
// provider's name. Records with an empty URL are dropped.
func (e *Engine) Aggregate(ctx context.Context, query string, maxResults int, selection models.EngineSelection, proxyBaseURL string) []models.ImageRecord {
	if maxResults <= 0 || len(selection.Engines) == 0 {
		return []models.ImageRecord{}
	}

	if !selection.IsMulti() {
		name, fn := e.lookupProvider(selection.Engines[0])
		records := e.callProvider(ctx, name, fn, query, maxResults, proxyBaseURL)
		return stamp(records, query, name)
	}

	perProvider := maxResults / len(selection.Engines)
	if perProvider < 1 {
		perProvider = 1
	}

	merged := make([]models.ImageRecord, 0, maxResults)
	for _, engine := range selection.Engines {
		name, fn := e.lookupProvider(engine)
		records := e.callProvider(ctx, name, fn, query, perProvider, proxyBaseURL)
		merged = append(merged, stamp(records, query, name)...)
	}

	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged
}

// stamp tags records with their query and provider, dropping any record
// whose URL is empty.
func stamp(records []models.ImageRecord, query, provider string) []models.ImageRecord {
	stamped := make([]models.ImageRecord, 0, len(records))
	for _, rec := range records {
		if rec.URL == "" {
			continue
		}
		rec.Query = query
		rec.SearchEngine = provider
		stamped = append(stamped, rec)
	}
	return stamped
}
