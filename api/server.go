package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zombar/imagesearch"
	"github.com/zombar/imagesearch/db"
	"github.com/zombar/imagesearch/llm"
	"github.com/zombar/imagesearch/models"
	"github.com/zombar/imagesearch/report"
	"github.com/zombar/imagesearch/storage"
)

// Store is the persistence surface the server needs. *db.DB satisfies
// it; a memory store stands in when no database is configured.
type Store interface {
	SaveRun(run *models.RunRecord) error
	GetRun(id string) (*models.RunRecord, error)
	ListRuns() ([]models.HistoryEntry, error)
	ClearRuns() error
	GetSettings() (models.Settings, error)
	SaveSettings(s models.Settings) error
	GetPrompt(name string) (string, error)
	SavePrompt(name, content string) error
	DeletePrompt(name string) error
	ListPrompts() ([]string, error)
}

// Processor runs the text-to-images pipeline.
type Processor interface {
	ProcessText(ctx context.Context, text string, settings models.Settings) []models.ParagraphResult
}

// Downloader persists discovered images.
type Downloader interface {
	DownloadAll(ctx context.Context, records []models.ImageRecord) []models.SavedImage
}

// ReportSaver stores rendered reports. storage.Backend satisfies it.
type ReportSaver interface {
	SaveReport(html, slug string) (string, error)
}

// Server represents the API server
type Server struct {
	store       Store
	processor   Processor
	downloader  Downloader
	reports     ReportSaver
	addr        string
	server      *http.Server
	mux         *http.ServeMux
	corsEnabled bool
}

// Config contains server configuration
type Config struct {
	Addr         string
	DatabaseDSN  string // Empty disables persistence; history lives in memory
	EngineConfig imagesearch.Config
	StoragePath  string
	S3           storage.S3Config // Bucket set selects object storage over the filesystem
	LLMURL       string
	LLMModel     string
	CORSEnabled  bool
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		EngineConfig: imagesearch.DefaultConfig(),
		StoragePath:  storage.DefaultConfig().BasePath,
		LLMURL:       models.DefaultSettings().LLMURL,
		LLMModel:     models.DefaultSettings().LLMModel,
		CORSEnabled:  true,
	}
}

// NewServer creates a new API server
func NewServer(config Config) (*Server, error) {
	var store Store
	if config.DatabaseDSN != "" {
		database, err := db.New(db.Config{DSN: config.DatabaseDSN})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		store = database
	} else {
		log.Println("No database configured, run history is in-memory only")
		store = newMemoryStore()
	}

	var backend storage.Backend
	var err error
	if config.S3.Bucket != "" {
		backend, err = storage.NewS3Storage(context.Background(), config.S3)
	} else {
		backend, err = storage.New(storage.Config{BasePath: config.StoragePath})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	engine := imagesearch.New(config.EngineConfig)
	queries := llm.NewClient(config.LLMURL, "", config.LLMModel)

	return newServer(config,
		store,
		imagesearch.NewProcessor(engine, queries),
		imagesearch.NewDownloader(imagesearch.NewClient(config.EngineConfig), backend),
		backend,
	), nil
}

// newServer wires a Server from its collaborators. Tests inject stubs
// here.
func newServer(config Config, store Store, processor Processor, downloader Downloader, reports ReportSaver) *Server {
	s := &Server{
		store:       store,
		processor:   processor,
		downloader:  downloader,
		reports:     reports,
		addr:        config.Addr,
		mux:         http.NewServeMux(),
		corsEnabled: config.CORSEnabled,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.middleware(s.mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // Runs with many paragraphs take a while
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/api/history/", s.handleHistoryItem) // /api/history/{id} and /api/history/{id}/download
	s.mux.HandleFunc("/api/report/", s.handleReport)       // /api/report/{id}
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/prompts", s.handlePromptList)
	s.mux.HandleFunc("/api/prompts/", s.handlePrompt) // /api/prompts/{name}
}

// Start starts the API server
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.server.Shutdown(ctx)
}

// middleware applies common middleware to all routes
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsEnabled {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		start := time.Now()
		if r.URL.Path != "/health" && r.URL.Path != "/metrics" {
			log.Printf("%s %s", r.Method, r.URL.Path)
			defer func() {
				log.Printf("%s %s - completed in %v", r.Method, r.URL.Path, time.Since(start))
			}()
		}

		next.ServeHTTP(w, r)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now(),
	})
}

// AnalyzeRequest represents a text analysis request. Settings fields
// left out of the request take the stored settings' values.
type AnalyzeRequest struct {
	Text     string           `json:"text"`
	Settings *models.Settings `json:"settings,omitempty"`
}

// handleAnalyze runs the full pipeline for a block of text
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	settings, err := s.store.GetSettings()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if req.Settings != nil {
		settings = req.Settings.MergeDefaults()
	}

	results := s.processor.ProcessText(r.Context(), req.Text, settings)

	run := &models.RunRecord{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Text:      req.Text,
		Settings:  settings,
		Results:   results,
	}
	if err := s.store.SaveRun(run); err != nil {
		// The run already succeeded; history is best-effort
		log.Printf("Failed to save run %s: %v", run.ID, err)
	}

	respondJSON(w, http.StatusOK, run)
}

// handleHistory lists or clears the run history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := s.store.ListRuns()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list history")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"history": entries,
			"count":   len(entries),
		})
	case http.MethodDelete:
		if err := s.store.ClearRuns(); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to clear history")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleHistoryItem serves one run, or downloads its images
func (s *Server) handleHistoryItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/history/")
	if path == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	if id, ok := strings.CutSuffix(path, "/download"); ok {
		s.downloadRunImages(w, r, id)
		return
	}

	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	run, err := s.store.GetRun(path)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// downloadRunImages stores all of a run's images via the downloader
func (s *Server) downloadRunImages(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	run, err := s.store.GetRun(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}

	var records []models.ImageRecord
	for _, result := range run.Results {
		records = append(records, result.Images...)
		records = append(records, result.URLImages...)
	}

	saved := s.downloader.DownloadAll(r.Context(), records)

	// Keep a rendered report alongside the downloaded images
	reportPath := ""
	if html, err := report.Render(run.Results, run.Settings); err == nil {
		if path, err := s.reports.SaveReport(html, "run-"+run.ID); err == nil {
			reportPath = path
		} else {
			log.Printf("Failed to save report for run %s: %v", run.ID, err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"requested":   len(records),
		"saved":       saved,
		"report_path": reportPath,
	})
}

// handleReport renders a stored run as a standalone HTML page
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/report/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	run, err := s.store.GetRun(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}

	html, err := report.Render(run.Results, run.Settings)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

// handleSettings reads or replaces the stored settings bundle
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := s.store.GetSettings()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		respondJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var settings models.Settings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		settings = settings.MergeDefaults()
		if err := s.store.SaveSettings(settings); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
		respondJSON(w, http.StatusOK, settings)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handlePromptList lists saved system prompt names
func (s *Server) handlePromptList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	names, err := s.store.ListPrompts()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list prompts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"prompts": names})
}

// PromptRequest carries a system prompt body
type PromptRequest struct {
	Content string `json:"content"`
}

// handlePrompt reads, saves, or deletes one named system prompt
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/prompts/")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		content, err := s.store.GetPrompt(name)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "database error")
			return
		}
		if content == "" {
			respondError(w, http.StatusNotFound, "prompt not found")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"name": name, "content": content})
	case http.MethodPut:
		var req PromptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			respondError(w, http.StatusBadRequest, "content is required")
			return
		}
		if err := s.store.SavePrompt(name, req.Content); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to save prompt")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"name": name, "content": req.Content})
	case http.MethodDelete:
		if err := s.store.DeletePrompt(name); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to delete prompt")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// memoryStore keeps history and settings in process memory for runs
// without a database.
type memoryStore struct {
	mu       sync.Mutex
	runs     []*models.RunRecord // Newest first
	settings *models.Settings
	prompts  map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{prompts: map[string]string{}}
}

func (m *memoryStore) SaveRun(run *models.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append([]*models.RunRecord{run}, m.runs...)
	if len(m.runs) > 50 {
		m.runs = m.runs[:50]
	}
	return nil
}

func (m *memoryStore) GetRun(id string) (*models.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) ListRuns() ([]models.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]models.HistoryEntry, 0, len(m.runs))
	for _, run := range m.runs {
		entries = append(entries, run.Entry())
	}
	return entries, nil
}

func (m *memoryStore) ClearRuns() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = nil
	return nil
}

func (m *memoryStore) GetSettings() (models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return models.DefaultSettings(), nil
	}
	return *m.settings, nil
}

func (m *memoryStore) SaveSettings(s models.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *memoryStore) GetPrompt(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[name], nil
}

func (m *memoryStore) SavePrompt(name, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts[name] = content
	return nil
}

func (m *memoryStore) DeletePrompt(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.prompts, name)
	return nil
}

func (m *memoryStore) ListPrompts() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.prompts))
	for name := range m.prompts {
		names = append(names, name)
	}
	return names, nil
}
