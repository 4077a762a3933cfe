package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/zombar/imagesearch/models"
)

// tenorV1Key is the public demo key for the legacy v1 API.
const tenorV1Key = "LIVDSRZULELA"

// tenorGifPattern finds direct media URLs embedded in inline scripts on
// the search results page.
var tenorGifPattern = regexp.MustCompile(`https://media1?\.tenor\.com/[^"'\\]+?\.gif`)

// tenorFormatOrder is the media format preference. tinygif is accepted
// only by the v1 tier, which lists it last.
var tenorFormatOrder = []string{"gif", "webp", "mp4"}

type tenorMediaFormat struct {
	URL  string `json:"url"`
	Dims []int  `json:"dims"`
}

// searchTenor tries three strategies in order: the v2 API, the legacy
// v1 API, then an HTML scrape of the search page. The first tier that
// produces at least one record short-circuits; each tier absorbs its
// own failure and falls through to the next.
func (e *Engine) searchTenor(ctx context.Context, query string, maxResults int, _ string) []models.ImageRecord {
	if maxResults <= 0 {
		return []models.ImageRecord{}
	}

	tiers := []struct {
		name string
		fn   func(context.Context, string, int) ([]models.ImageRecord, error)
	}{
		{"api-v2", e.tenorAPIv2},
		{"api-v1", e.tenorAPIv1},
		{"scrape", e.tenorScrape},
	}

	for _, tier := range tiers {
		records, err := tier.fn(ctx, query, maxResults)
		if err != nil {
			log.Printf("Tenor %s tier failed for %q: %v", tier.name, query, err)
			continue
		}
		if len(records) > 0 {
			return records
		}
	}
	return []models.ImageRecord{}
}

func (e *Engine) tenorAPIv2(ctx context.Context, query string, maxResults int) ([]models.ImageRecord, error) {
	params := url.Values{
		"q":            {query},
		"key":          {e.config.TenorKey},
		"limit":        {strconv.Itoa(maxResults)},
		"media_filter": {"gif,webp"},
	}

	resp, err := e.client.Fetch(ctx, e.tenorV2BaseURL+"/v2/search", nil, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Title              string                      `json:"title"`
			ContentDescription string                      `json:"content_description"`
			ItemURL            string                      `json:"itemurl"`
			MediaFormats       map[string]tenorMediaFormat `json:"media_formats"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode v2 results: %w", err)
	}

	records := make([]models.ImageRecord, 0, maxResults)
	for _, r := range payload.Results {
		if len(records) >= maxResults {
			break
		}
		format, media := pickTenorFormat(r.MediaFormats, tenorFormatOrder)
		if media.URL == "" {
			continue
		}
		title := r.ContentDescription
		if title == "" {
			title = r.Title
		}
		records = append(records, tenorRecord(media, format, title, r.ItemURL))
	}
	return records, nil
}

func (e *Engine) tenorAPIv1(ctx context.Context, query string, maxResults int) ([]models.ImageRecord, error) {
	params := url.Values{
		"q":     {query},
		"key":   {tenorV1Key},
		"limit": {strconv.Itoa(maxResults)},
	}

	resp, err := e.client.Fetch(ctx, e.tenorV1BaseURL+"/v1/search", nil, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Title   string                        `json:"title"`
			ItemURL string                        `json:"itemurl"`
			Media   []map[string]tenorMediaFormat `json:"media"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode v1 results: %w", err)
	}

	order := append(append([]string{}, tenorFormatOrder...), "tinygif")
	records := make([]models.ImageRecord, 0, maxResults)
	for _, r := range payload.Results {
		if len(records) >= maxResults {
			break
		}
		if len(r.Media) == 0 {
			continue
		}
		format, media := pickTenorFormat(r.Media[0], order)
		if media.URL == "" {
			continue
		}
		records = append(records, tenorRecord(media, format, r.Title, r.ItemURL))
	}
	return records, nil
}

func (e *Engine) tenorScrape(ctx context.Context, query string, maxResults int) ([]models.ImageRecord, error) {
	slugged := strings.ReplaceAll(strings.TrimSpace(query), " ", "-")
	pageURL := e.tenorScrapeBaseURL + "/search/" + url.PathEscape(slugged) + "-gifs"

	resp, err := e.client.Fetch(ctx, pageURL, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search page: %w", err)
	}

	seen := make(map[string]bool)
	records := make([]models.ImageRecord, 0, maxResults)
	add := func(mediaURL, title string) {
		if mediaURL == "" || seen[mediaURL] || len(records) >= maxResults {
			return
		}
		seen[mediaURL] = true
		records = append(records, models.ImageRecord{
			URL:       mediaURL,
			Title:     title,
			Source:    pageURL,
			Thumbnail: mediaURL,
			Author:    "Tenor",
			Type:      "gif",
		})
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body))); err == nil {
		doc.Find("img[src*='media.tenor.com']").Each(func(_ int, sel *goquery.Selection) {
			add(sel.AttrOr("src", ""), sel.AttrOr("alt", ""))
		})
	}

	// Results rendered client-side still carry media URLs in inline
	// script JSON
	for _, match := range tenorGifPattern.FindAllString(string(body), -1) {
		add(match, "")
	}

	return records, nil
}

// pickTenorFormat returns the first present format by preference order.
func pickTenorFormat(formats map[string]tenorMediaFormat, order []string) (string, tenorMediaFormat) {
	for _, name := range order {
		if media, ok := formats[name]; ok && media.URL != "" {
			return name, media
		}
	}
	return "", tenorMediaFormat{}
}

func tenorRecord(media tenorMediaFormat, format, title, itemURL string) models.ImageRecord {
	rec := models.ImageRecord{
		URL:       media.URL,
		Title:     title,
		Source:    itemURL,
		Thumbnail: media.URL,
		Author:    "Tenor",
		Type:      normalizeTenorFormat(format),
	}
	if len(media.Dims) == 2 {
		rec.Width = media.Dims[0]
		rec.Height = media.Dims[1]
	}
	return rec
}

// normalizeTenorFormat maps API format names onto the record's type
// vocabulary; tinygif is still a gif.
func normalizeTenorFormat(format string) string {
	if format == "tinygif" {
		return "gif"
	}
	return format
}
