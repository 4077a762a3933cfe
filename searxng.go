package imagesearch

import (
	"context"
	"io"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/zombar/imagesearch/models"
)

// avoidDomains are social hosts whose thumbnails leak into metasearch
// results but rarely resolve to usable images.
var avoidDomains = []string{
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"tiktok.com",
}

// searchSearxng scrapes the HTML results page of a SearXNG instance.
// The caller's instance is tried first, then the public fallbacks; the
// first instance yielding at least one image wins. The JSON response
// mode is deliberately not used: public instances block it.
//
// A failing instance (error, timeout, 403) is skipped, never retried.
func (e *Engine) searchSearxng(ctx context.Context, query string, maxResults int, proxyBaseURL string) []models.ImageRecord {
	if maxResults <= 0 {
		return []models.ImageRecord{}
	}

	preferred := proxyBaseURL
	if preferred == "" {
		preferred = e.config.SearxngURL
	}
	instances := make([]string, 0, 1+len(e.searxngFallbacks))
	if preferred != "" {
		instances = append(instances, preferred)
	}
	instances = append(instances, e.searxngFallbacks...)

	params := url.Values{
		"q":          {query},
		"categories": {"images"},
		"pageno":     {"1"},
	}

	for _, instance := range instances {
		base := strings.TrimRight(instance, "/")
		resp, err := e.client.FetchOnce(ctx, base+"/search", nil, params)
		if err != nil {
			log.Printf("SearXNG instance %s skipped for %q: %v", base, query, err)
			continue
		}

		records := e.parseSearxngResults(resp.Body, base, maxResults)
		resp.Body.Close()
		if len(records) > 0 {
			return records
		}
		log.Printf("SearXNG instance %s returned no images for %q", base, query)
	}

	return []models.ImageRecord{}
}

func (e *Engine) parseSearxngResults(body io.Reader, base string, maxResults int) []models.ImageRecord {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		log.Printf("SearXNG instance %s returned unparseable HTML: %v", base, err)
		return nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	records := make([]models.ImageRecord, 0, maxResults)
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src := sel.AttrOr("src", "")
		if src == "" {
			src = sel.AttrOr("data-src", "")
		}
		if src == "" || isChromeImage(src) {
			return true
		}

		resolved := resolveAgainst(baseURL, src)
		if resolved == "" || seen[resolved] || isAvoidedDomain(resolved) {
			return true
		}
		if belowMinSize(sel.AttrOr("width", ""), sel.AttrOr("height", "")) {
			return true
		}

		seen[resolved] = true
		title := sel.AttrOr("alt", "")
		if title == "" {
			title = sel.AttrOr("title", "")
		}
		records = append(records, models.ImageRecord{
			URL:       resolved,
			Title:     title,
			Source:    base,
			Thumbnail: resolved,
			Author:    "SearXNG",
		})
		return len(records) < maxResults
	})
	return records
}

// isChromeImage filters instance UI assets out of scraped results.
func isChromeImage(src string) bool {
	lower := strings.ToLower(src)
	for _, marker := range []string{"logo", "icon", "favicon", "/static/", "/themes/", "data:image"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isAvoidedDomain(imageURL string) bool {
	lower := strings.ToLower(imageURL)
	for _, domain := range avoidDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}

// belowMinSize reports whether advertised dimensions fall under 100px.
// Missing or malformed dimension attributes are not disqualifying.
func belowMinSize(widthAttr, heightAttr string) bool {
	if w, err := strconv.Atoi(widthAttr); err == nil && w < 100 {
		return true
	}
	if h, err := strconv.Atoi(heightAttr); err == nil && h < 100 {
		return true
	}
	return false
}

// resolveAgainst makes a possibly relative or protocol-relative image
// URL absolute.
func resolveAgainst(base *url.URL, src string) string {
	parsed, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}
