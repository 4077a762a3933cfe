package imagesearch

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strconv"

	"github.com/zombar/imagesearch/models"
)

// searchPixabay queries the Pixabay REST API.
func (e *Engine) searchPixabay(ctx context.Context, query string, maxResults int, _ string) []models.ImageRecord {
	if maxResults <= 0 {
		return []models.ImageRecord{}
	}

	params := url.Values{
		"key":        {e.config.PixabayKey},
		"q":          {query},
		"image_type": {"photo"},
		"per_page":   {strconv.Itoa(maxResults)},
		"safesearch": {"true"},
	}

	resp, err := e.client.Fetch(ctx, e.pixabayBaseURL+"/api/", nil, params)
	if err != nil {
		log.Printf("Pixabay search failed for %q: %v", query, err)
		return []models.ImageRecord{}
	}
	defer resp.Body.Close()

	var payload struct {
		Hits []struct {
			WebformatURL    string `json:"webformatURL"`
			WebformatWidth  int    `json:"webformatWidth"`
			WebformatHeight int    `json:"webformatHeight"`
			PreviewURL      string `json:"previewURL"`
			Tags            string `json:"tags"`
			User            string `json:"user"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Printf("Pixabay returned malformed JSON for %q: %v", query, err)
		return []models.ImageRecord{}
	}

	records := make([]models.ImageRecord, 0, maxResults)
	for _, hit := range payload.Hits {
		if len(records) >= maxResults {
			break
		}
		records = append(records, models.ImageRecord{
			URL:       hit.WebformatURL,
			Title:     hit.Tags,
			Source:    "Pixabay",
			Thumbnail: hit.PreviewURL,
			Width:     hit.WebformatWidth,
			Height:    hit.WebformatHeight,
			Author:    hit.User,
		})
	}
	return records
}
