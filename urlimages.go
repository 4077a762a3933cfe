package imagesearch

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"

	"github.com/zombar/imagesearch/models"
	"golang.org/x/net/html"
)

// urlPattern matches http(s) URLs in free text. Trailing punctuation is
// accepted as part of the match, a known imprecision.
var urlPattern = regexp.MustCompile("https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")

// maxURLsPerParagraph bounds how many linked pages one paragraph will
// pull images from.
const maxURLsPerParagraph = 3

// ExtractURLs returns every http(s) URL found in text, in order of
// appearance.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// ImagesFromText extracts URLs from paragraph text, fetches each linked
// page, and collects the images it references. At most the first three
// URLs are processed; a page that fails to fetch contributes zero
// records and processing continues.
func (e *Engine) ImagesFromText(ctx context.Context, text string, maxImagesPerURL int) []models.ImageRecord {
	urls := ExtractURLs(text)
	if len(urls) > maxURLsPerParagraph {
		urls = urls[:maxURLsPerParagraph]
	}

	records := make([]models.ImageRecord, 0, len(urls)*maxImagesPerURL)
	for _, pageURL := range urls {
		images, err := e.pageImages(ctx, pageURL, maxImagesPerURL)
		if err != nil {
			log.Printf("Skipping linked page %s: %v", pageURL, err)
			continue
		}
		records = append(records, images...)
	}
	return records
}

// pageImages fetches one page and returns up to maxImages of its <img>
// sources. Relative and protocol-relative sources are resolved against
// the page URL; images advertising a width or height under 100px are
// skipped.
func (e *Engine) pageImages(ctx context.Context, pageURL string, maxImages int) ([]models.ImageRecord, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	resp, err := e.client.Fetch(ctx, pageURL, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var records []models.ImageRecord
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(records) >= maxImages {
			return
		}
		if n.Type == html.ElementNode && n.Data == "img" {
			var src, dataSrc, dataLazySrc, alt, widthAttr, heightAttr string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "src":
					src = attr.Val
				case "data-src":
					dataSrc = attr.Val
				case "data-lazy-src":
					dataLazySrc = attr.Val
				case "alt":
					alt = attr.Val
				case "width":
					widthAttr = attr.Val
				case "height":
					heightAttr = attr.Val
				}
			}

			// Lazy-load attributes are fallbacks only; src wins
			if src == "" {
				src = dataSrc
			}
			if src == "" {
				src = dataLazySrc
			}

			if src != "" && !belowMinSize(widthAttr, heightAttr) {
				if resolved := resolveAgainst(base, src); resolved != "" {
					title := alt
					if title == "" {
						title = "Image from " + base.Host
					}
					width, _ := strconv.Atoi(widthAttr)
					height, _ := strconv.Atoi(heightAttr)
					records = append(records, models.ImageRecord{
						URL:       resolved,
						Title:     title,
						Source:    pageURL,
						Thumbnail: resolved,
						Width:     width,
						Height:    height,
						Author:    base.Host,
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return records, nil
}
