package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"regexp"
	"time"

	"github.com/zombar/imagesearch/models"
)

// vqdPattern extracts the per-query token the image endpoint requires.
var vqdPattern = regexp.MustCompile(`vqd=["']?([\d-]+)`)

const maxTokenPageBytes = 512 * 1024

// searchDuckDuckGo queries DuckDuckGo image search. The token page is
// fetched first to obtain a vqd value, then the JSON image endpoint is
// queried with it. On a rate-limit signal the whole call is retried
// exactly once after a long wait.
func (e *Engine) searchDuckDuckGo(ctx context.Context, query string, maxResults int, _ string) []models.ImageRecord {
	if maxResults <= 0 {
		return []models.ImageRecord{}
	}

	records, err := e.duckduckgoOnce(ctx, query, maxResults)
	if err != nil && isRateLimited(err) {
		wait := 2*e.config.RateLimitWait + randomDelay(e.config.RateLimitJitterMax)
		log.Printf("DuckDuckGo rate limited for %q, waiting %v before one retry", query, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return []models.ImageRecord{}
		}
		records, err = e.duckduckgoOnce(ctx, query, maxResults)
	}
	if err != nil {
		log.Printf("DuckDuckGo search failed for %q: %v", query, err)
		return []models.ImageRecord{}
	}
	return records
}

func (e *Engine) duckduckgoOnce(ctx context.Context, query string, maxResults int) ([]models.ImageRecord, error) {
	vqd, err := e.duckduckgoToken(ctx, query)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"l":   {"us-en"},
		"o":   {"json"},
		"q":   {query},
		"vqd": {vqd},
		"f":   {",,,"},
		"p":   {"1"}, // Moderate safe search
	}
	headers := map[string]string{"Referer": e.duckduckgoBaseURL + "/"}

	resp, err := e.client.Fetch(ctx, e.duckduckgoBaseURL+"/i.js", headers, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Title     string `json:"title"`
			Image     string `json:"image"`
			Thumbnail string `json:"thumbnail"`
			URL       string `json:"url"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode image results: %w", err)
	}

	records := make([]models.ImageRecord, 0, maxResults)
	for _, r := range payload.Results {
		if len(records) >= maxResults {
			break
		}
		records = append(records, models.ImageRecord{
			URL:       r.Image,
			Title:     r.Title,
			Source:    r.URL,
			Thumbnail: r.Thumbnail,
			Width:     r.Width,
			Height:    r.Height,
			Author:    "DuckDuckGo",
		})
	}
	return records, nil
}

// duckduckgoToken fetches the search landing page and pulls the vqd
// token out of its markup.
func (e *Engine) duckduckgoToken(ctx context.Context, query string) (string, error) {
	resp, err := e.client.Fetch(ctx, e.duckduckgoBaseURL+"/", nil, url.Values{"q": {query}})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read token page: %w", err)
	}

	m := vqdPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("no vqd token in response for %q", query)
	}
	return string(m[1]), nil
}
