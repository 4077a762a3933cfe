package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ImageRecord is the normalized unit returned by every search provider.
// Width/Height of 0 mean "unknown" and are never guessed. Query and
// SearchEngine are stamped by the aggregator after the provider returns.
type ImageRecord struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Source       string `json:"source"`
	Thumbnail    string `json:"thumbnail"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Author       string `json:"author"`
	Query        string `json:"query,omitempty"`
	SearchEngine string `json:"search_engine,omitempty"`
	Type         string `json:"type,omitempty"` // gif|webp|mp4 for animated media
}

// ParagraphResult is the per-paragraph output of a processing run.
type ParagraphResult struct {
	Index     int           `json:"paragraph_index"`
	Text      string        `json:"text"`
	Queries   []string      `json:"queries"`
	Images    []ImageRecord `json:"images"`
	URLImages []ImageRecord `json:"url_images"`
	Warnings  []string      `json:"warnings,omitempty"`
}

// TotalImages counts search and URL-extracted images across results.
func TotalImages(results []ParagraphResult) int {
	total := 0
	for _, r := range results {
		total += len(r.Images) + len(r.URLImages)
	}
	return total
}

// Budget is an image quota: either a single total or a per-provider
// map. JSON accepts a bare integer or an object of "<provider>_count"
// keys, matching the settings file format.
type Budget struct {
	Total       int
	PerProvider map[string]int
}

// IsPerProvider reports whether the budget carries per-provider counts.
func (b Budget) IsPerProvider() bool {
	return b.PerProvider != nil
}

// Sum returns the total quota regardless of shape.
func (b Budget) Sum() int {
	if b.PerProvider == nil {
		return b.Total
	}
	total := 0
	for _, n := range b.PerProvider {
		total += n
	}
	return total
}

// MarshalJSON encodes an integer budget as a bare number and a
// per-provider budget as {"<provider>_count": n, ...}.
func (b Budget) MarshalJSON() ([]byte, error) {
	if b.PerProvider == nil {
		return json.Marshal(b.Total)
	}
	m := make(map[string]int, len(b.PerProvider))
	for name, n := range b.PerProvider {
		m[name+"_count"] = n
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts either form.
func (b *Budget) UnmarshalJSON(data []byte) error {
	var total int
	if err := json.Unmarshal(data, &total); err == nil {
		b.Total = total
		b.PerProvider = nil
		return nil
	}
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("budget must be an integer or a per-provider map: %w", err)
	}
	b.Total = 0
	b.PerProvider = make(map[string]int, len(m))
	for key, n := range m {
		b.PerProvider[strings.TrimSuffix(key, "_count")] = n
	}
	return nil
}

// EngineSelection names one provider or an ordered set of providers.
// JSON accepts a bare string or a list of strings.
type EngineSelection struct {
	Engines []string
}

// SelectEngine builds a single-provider selection.
func SelectEngine(name string) EngineSelection {
	return EngineSelection{Engines: []string{name}}
}

// SelectEngines builds an ordered multi-provider selection.
func SelectEngines(names ...string) EngineSelection {
	return EngineSelection{Engines: names}
}

// IsMulti reports whether more than one provider is selected.
func (s EngineSelection) IsMulti() bool {
	return len(s.Engines) > 1
}

// Label is a human-readable form used in history rows and reports.
func (s EngineSelection) Label() string {
	return strings.Join(s.Engines, ",")
}

func (s EngineSelection) MarshalJSON() ([]byte, error) {
	if len(s.Engines) == 1 {
		return json.Marshal(s.Engines[0])
	}
	return json.Marshal(s.Engines)
}

func (s *EngineSelection) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		s.Engines = []string{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("search_engine must be a string or list of strings: %w", err)
	}
	s.Engines = list
	return nil
}

// Bool returns a pointer to v, for setting optional boolean fields.
func Bool(v bool) *bool { return &v }

// Settings is the recognized options bundle for a processing run.
// Boolean options are pointers so that a key absent from stored or
// request JSON is distinguishable from an explicit false and takes its
// default on merge.
type Settings struct {
	LLMURL              string          `json:"llm_url"`
	LLMModel            string          `json:"llm_model"`
	ImageCount          Budget          `json:"image_count"`
	SearchEngine        EngineSelection `json:"search_engine"`
	SearchLanguage      string          `json:"search_language"`
	URLParsing          *bool           `json:"url_parsing,omitempty"`
	SystemPrompt        string          `json:"system_prompt"`
	SplitLongParagraphs *bool           `json:"split_long_paragraphs,omitempty"`
	SmartQueries        *bool           `json:"smart_queries,omitempty"`
	SearxngURL          string          `json:"searxng_url"`
	DuckDuckGoCount     int             `json:"duckduckgo_count"`
	PixabayCount        int             `json:"pixabay_count"`
	PinterestCount      int             `json:"pinterest_count"`
	TenorCount          int             `json:"tenor_count"`
}

// DefaultSystemPrompt instructs the model to answer with bare search
// phrases, one per line.
const DefaultSystemPrompt = "Create short search queries (at most 3 words each) " +
	"for finding images that illustrate the text. One query per line. " +
	"Answer ONLY with the keywords, no explanations."

// DefaultSettings returns the baseline settings bundle.
func DefaultSettings() Settings {
	return Settings{
		LLMURL:              "http://localhost:1234/v1/chat/completions",
		LLMModel:            "local-llm",
		ImageCount:          Budget{Total: 4},
		SearchEngine:        SelectEngine("duckduckgo"),
		SearchLanguage:      "auto",
		URLParsing:          Bool(true),
		SystemPrompt:        DefaultSystemPrompt,
		SplitLongParagraphs: Bool(false),
		SmartQueries:        Bool(true),
		SearxngURL:          "http://localhost:8080",
		DuckDuckGoCount:     3,
		PixabayCount:        3,
		PinterestCount:      3,
		TenorCount:          3,
	}
}

// EngineCount returns the per-provider count for multi-provider runs.
// Unknown providers get 3, matching the stored settings default.
func (s Settings) EngineCount(name string) int {
	switch name {
	case "duckduckgo":
		if s.DuckDuckGoCount > 0 {
			return s.DuckDuckGoCount
		}
	case "pixabay":
		if s.PixabayCount > 0 {
			return s.PixabayCount
		}
	case "pinterest":
		if s.PinterestCount > 0 {
			return s.PinterestCount
		}
	case "tenor":
		if s.TenorCount > 0 {
			return s.TenorCount
		}
	}
	return 3
}

// MergeDefaults fills zero-valued fields from DefaultSettings. Stored
// settings written by older versions may be missing keys; each missing
// key takes its default instead of failing the load.
func (s Settings) MergeDefaults() Settings {
	d := DefaultSettings()
	if s.LLMURL == "" {
		s.LLMURL = d.LLMURL
	}
	if s.LLMModel == "" {
		s.LLMModel = d.LLMModel
	}
	if s.ImageCount.Total == 0 && s.ImageCount.PerProvider == nil {
		s.ImageCount = d.ImageCount
	}
	if len(s.SearchEngine.Engines) == 0 {
		s.SearchEngine = d.SearchEngine
	}
	if s.SearchLanguage == "" {
		s.SearchLanguage = d.SearchLanguage
	}
	if s.SystemPrompt == "" {
		s.SystemPrompt = d.SystemPrompt
	}
	if s.URLParsing == nil {
		s.URLParsing = d.URLParsing
	}
	if s.SplitLongParagraphs == nil {
		s.SplitLongParagraphs = d.SplitLongParagraphs
	}
	if s.SmartQueries == nil {
		s.SmartQueries = d.SmartQueries
	}
	if s.SearxngURL == "" {
		s.SearxngURL = d.SearxngURL
	}
	if s.DuckDuckGoCount == 0 {
		s.DuckDuckGoCount = d.DuckDuckGoCount
	}
	if s.PixabayCount == 0 {
		s.PixabayCount = d.PixabayCount
	}
	if s.PinterestCount == 0 {
		s.PinterestCount = d.PinterestCount
	}
	if s.TenorCount == 0 {
		s.TenorCount = d.TenorCount
	}
	return s
}

// URLParsingEnabled reports whether linked-page image extraction is on;
// an unset value means the default (on).
func (s Settings) URLParsingEnabled() bool { return boolOr(s.URLParsing, true) }

// SmartQueriesEnabled reports whether LLM query generation is on; an
// unset value means the default (on).
func (s Settings) SmartQueriesEnabled() bool { return boolOr(s.SmartQueries, true) }

// SplitLongEnabled reports whether long paragraphs are re-chunked at
// sentence boundaries; an unset value means the default (off).
func (s Settings) SplitLongEnabled() bool { return boolOr(s.SplitLongParagraphs, false) }

func boolOr(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

// HistoryEntry is one row of the rolling run history.
type HistoryEntry struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	TextPreview    string    `json:"text_preview"`
	ParagraphCount int       `json:"paragraphs_count"`
	ImageCount     int       `json:"images_count"`
	SearchEngine   string    `json:"search_engine"`
	Language       string    `json:"language"`
}

// Preview truncates run input text for history listings.
func Preview(text string) string {
	const max = 100
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

// RunRecord is a complete persisted processing run.
type RunRecord struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Text      string            `json:"text"`
	Settings  Settings          `json:"settings"`
	Results   []ParagraphResult `json:"results"`
}

// Entry derives the history listing row for a run.
func (r RunRecord) Entry() HistoryEntry {
	return HistoryEntry{
		ID:             r.ID,
		Timestamp:      r.CreatedAt,
		TextPreview:    Preview(r.Text),
		ParagraphCount: len(r.Results),
		ImageCount:     TotalImages(r.Results),
		SearchEngine:   r.Settings.SearchEngine.Label(),
		Language:       r.Settings.SearchLanguage,
	}
}

// EXIFData is attribution metadata pulled from a downloaded image file.
type EXIFData struct {
	DateTime  string `json:"date_time,omitempty"`
	Make      string `json:"make,omitempty"`
	Model     string `json:"model,omitempty"`
	Artist    string `json:"artist,omitempty"`
	Copyright string `json:"copyright,omitempty"`
}

// SavedImage describes an image persisted by the bulk downloader.
type SavedImage struct {
	SourceURL     string    `json:"source_url"`
	Path          string    `json:"path"`
	ContentType   string    `json:"content_type,omitempty"`
	Width         int       `json:"width,omitempty"`
	Height        int       `json:"height,omitempty"`
	FileSizeBytes int64     `json:"file_size_bytes,omitempty"`
	EXIF          *EXIFData `json:"exif,omitempty"`
}
