package imagesearch

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/zombar/imagesearch/models"
)

// QueryGenerator produces short search phrases for a paragraph of text.
type QueryGenerator interface {
	GenerateQueries(ctx context.Context, paragraph string, settings models.Settings) ([]string, error)
}

// Processor runs the paragraph pipeline: split text, derive queries,
// allocate the image budget, search, and attach linked-page images.
// Paragraphs are processed sequentially in input order.
type Processor struct {
	engine    *Engine
	generator QueryGenerator // nil disables smart queries
}

// NewProcessor creates a text processor on top of a search engine.
// generator can be nil if LLM-backed queries are not available; the
// naive heuristic is used instead.
func NewProcessor(engine *Engine, generator QueryGenerator) *Processor {
	return &Processor{engine: engine, generator: generator}
}

// ProcessText splits text into paragraphs and produces one result per
// paragraph. A paragraph that finds no images still yields a result
// with its text; the run never aborts because one paragraph failed.
func (p *Processor) ProcessText(ctx context.Context, text string, settings models.Settings) []models.ParagraphResult {
	paragraphs := SplitParagraphs(text, settings.SplitLongEnabled())

	results := make([]models.ParagraphResult, 0, len(paragraphs))
	for i, paragraph := range paragraphs {
		results = append(results, p.processParagraph(ctx, i, paragraph, settings))
	}
	return results
}

func (p *Processor) processParagraph(ctx context.Context, index int, paragraph string, settings models.Settings) models.ParagraphResult {
	result := models.ParagraphResult{
		Index:     index,
		Text:      paragraph,
		Queries:   []string{},
		Images:    []models.ImageRecord{},
		URLImages: []models.ImageRecord{},
	}

	queries := p.queriesFor(ctx, paragraph, settings, &result)
	result.Queries = queries

	counts := AllocateBudget(queries, settings.ImageCount)
	for i, query := range queries {
		if query == "" {
			continue
		}

		if settings.SearchEngine.IsMulti() {
			// Multi-provider runs use each provider's own configured
			// count rather than the shared allocation
			for _, engine := range settings.SearchEngine.Engines {
				images := p.engine.Aggregate(ctx, query, settings.EngineCount(engine),
					models.SelectEngine(engine), settings.SearxngURL)
				result.Images = append(result.Images, images...)
			}
		} else {
			images := p.engine.Aggregate(ctx, query, counts[i],
				settings.SearchEngine, settings.SearxngURL)
			result.Images = append(result.Images, images...)
		}
	}

	if settings.URLParsingEnabled() {
		result.URLImages = p.engine.ImagesFromText(ctx, paragraph, p.engine.config.MaxImagesPerPage)
	}

	return result
}

// queriesFor derives search phrases for a paragraph. Smart mode asks
// the query generator; a generator failure is recorded as a warning and
// the paragraph proceeds with no queries. Naive mode takes the first
// three words of the paragraph as a single phrase.
func (p *Processor) queriesFor(ctx context.Context, paragraph string, settings models.Settings, result *models.ParagraphResult) []string {
	if settings.SmartQueriesEnabled() && p.generator != nil {
		queries, err := p.generator.GenerateQueries(ctx, paragraph, settings)
		if err != nil {
			log.Printf("Query generation failed for paragraph %d: %v", result.Index, err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("query generation failed: %v", err))
			return []string{}
		}
		return queries
	}

	words := strings.Fields(paragraph)
	if len(words) > 3 {
		words = words[:3]
	}
	if len(words) == 0 {
		return []string{}
	}
	return []string{strings.Join(words, " ")}
}

// SplitParagraphs breaks text on blank lines. Single newlines inside a
// block are kept; the single-newline split is tried only when the
// blank-line split yields no paragraphs at all. With splitLong,
// paragraphs over 500 characters are re-chunked at sentence boundaries.
func SplitParagraphs(text string, splitLong bool) []string {
	paragraphs := splitNonEmpty(text, "\n\n")
	if len(paragraphs) == 0 {
		paragraphs = splitNonEmpty(text, "\n")
	}

	if !splitLong {
		return paragraphs
	}

	split := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if len(p) <= 500 {
			split = append(split, p)
			continue
		}
		split = append(split, chunkSentences(p)...)
	}
	return split
}

func splitNonEmpty(text, sep string) []string {
	var out []string
	for _, part := range strings.Split(text, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// chunkSentences regroups a long paragraph into chunks under 500
// characters, splitting at sentence boundaries.
func chunkSentences(paragraph string) []string {
	sentences := strings.Split(paragraph, ". ")

	var chunks []string
	var current strings.Builder
	for _, sentence := range sentences {
		if current.Len()+len(sentence) < 500 {
			current.WriteString(sentence)
			current.WriteString(". ")
			continue
		}
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
		current.WriteString(". ")
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}
