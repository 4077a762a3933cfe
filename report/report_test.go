package report

import (
	"strings"
	"testing"

	"github.com/zombar/imagesearch/models"
)

func TestRenderBasicReport(t *testing.T) {
	results := []models.ParagraphResult{
		{
			Text:    "A walk through the old town.",
			Queries: []string{"old town street", "cobblestone alley"},
			Images: []models.ImageRecord{
				{
					URL:          "https://img.example.com/full.jpg",
					Thumbnail:    "https://img.example.com/thumb.jpg",
					Title:        "Old town",
					Author:       "someone",
					SearchEngine: "pixabay",
				},
			},
			URLImages: []models.ImageRecord{},
		},
	}

	html, err := Render(results, models.DefaultSettings())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	for _, want := range []string{
		"A walk through the old town.",
		"old town street",
		"cobblestone alley",
		`src="https://img.example.com/thumb.jpg"`,
		`href="https://img.example.com/full.jpg"`,
		"pixabay",
		"Paragraphs: 1",
		"Images: 1",
		`loading="lazy"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRenderEmptyParagraphShowsNotice(t *testing.T) {
	results := []models.ParagraphResult{
		{Text: "Nothing matched here.", Queries: []string{}, Images: []models.ImageRecord{}, URLImages: []models.ImageRecord{}},
	}

	html, err := Render(results, models.DefaultSettings())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(html, "No images found for this paragraph") {
		t.Error("empty paragraph should render an explicit notice")
	}
	if !strings.Contains(html, "Nothing matched here.") {
		t.Error("paragraph text missing from report")
	}
}

func TestRenderEscapesText(t *testing.T) {
	results := []models.ParagraphResult{
		{Text: `<script>alert("x")</script>`, Images: []models.ImageRecord{}, URLImages: []models.ImageRecord{}},
	}

	html, err := Render(results, models.DefaultSettings())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(html, `<script>alert`) {
		t.Error("paragraph text was not escaped")
	}
}

func TestRenderURLImagesShowSourcePage(t *testing.T) {
	results := []models.ParagraphResult{
		{
			Text: "see https://example.com",
			URLImages: []models.ImageRecord{
				{URL: "https://example.com/a.png", Thumbnail: "https://example.com/a.png", Source: "https://example.com"},
			},
			Images: []models.ImageRecord{},
		},
	}

	html, err := Render(results, models.DefaultSettings())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(html, "from https://example.com") {
		t.Error("URL image missing its source page attribution")
	}
}
