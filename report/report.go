// Package report renders a processing run into a standalone HTML page.
package report

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/zombar/imagesearch/models"
)

// data is the template context for one rendered report.
type data struct {
	Results         []models.ParagraphResult
	Settings        models.Settings
	TotalParagraphs int
	TotalImages     int
	GenerationTime  string
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Illustrated Text Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; line-height: 1.6; }
        .header { background: #f4f4f4; padding: 20px; border-radius: 8px; margin-bottom: 20px; }
        .paragraph { margin-bottom: 30px; border: 1px solid #ddd; padding: 15px; border-radius: 8px; }
        .text { background: #f9f9f9; padding: 10px; border-radius: 4px; margin-bottom: 15px; }
        .queries { margin-bottom: 15px; }
        .query-tag { background: #007bff; color: white; padding: 4px 8px; border-radius: 4px; margin: 2px; display: inline-block; font-size: 12px; }
        .images { display: grid; grid-template-columns: repeat(auto-fill, minmax(200px, 1fr)); gap: 15px; }
        .image-item { border: 1px solid #ddd; border-radius: 8px; overflow: hidden; }
        .image-item img { width: 100%; height: 150px; object-fit: cover; }
        .image-meta { padding: 10px; font-size: 12px; background: #f8f9fa; }
        .empty-state { color: #888; font-style: italic; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Illustrated Text Report</h1>
        <p>Generated: {{.GenerationTime}}</p>
        <p>Paragraphs: {{.TotalParagraphs}} &middot; Images: {{.TotalImages}} &middot; Providers: {{.Settings.SearchEngine.Label}}</p>
    </div>
{{range .Results}}
    <div class="paragraph">
        <div class="text">{{.Text}}</div>
{{if .Queries}}
        <div class="queries">
{{range .Queries}}            <span class="query-tag">{{.}}</span>
{{end}}        </div>
{{end}}
{{if or .Images .URLImages}}
        <div class="images">
{{range .Images}}            <div class="image-item">
                <a href="{{.URL}}"><img src="{{.Thumbnail}}" alt="{{.Title}}" loading="lazy"></a>
                <div class="image-meta">{{.SearchEngine}}{{if .Author}} &middot; {{.Author}}{{end}}</div>
            </div>
{{end}}{{range .URLImages}}            <div class="image-item">
                <a href="{{.URL}}"><img src="{{.Thumbnail}}" alt="{{.Title}}" loading="lazy"></a>
                <div class="image-meta">from {{.Source}}</div>
            </div>
{{end}}        </div>
{{else}}
        <p class="empty-state">No images found for this paragraph</p>
{{end}}
    </div>
{{end}}
</body>
</html>
`))

// Render produces the HTML report for a run's results.
func Render(results []models.ParagraphResult, settings models.Settings) (string, error) {
	var buf strings.Builder
	err := reportTemplate.Execute(&buf, data{
		Results:         results,
		Settings:        settings,
		TotalParagraphs: len(results),
		TotalImages:     models.TotalImages(results),
		GenerationTime:  time.Now().Format("2006-01-02 15:04:05"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}
