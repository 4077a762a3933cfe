package db

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zombar/imagesearch/models"
)

// testDB connects to the database named by TEST_DATABASE_DSN, skipping
// the test when it is unset.
func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping database integration test")
	}

	db, err := New(Config{DSN: dsn})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() {
		db.conn.Exec("DELETE FROM runs")
		db.conn.Exec("DELETE FROM prompts")
		db.Close()
	})
	return db
}

func testRun(text string, createdAt time.Time) *models.RunRecord {
	return &models.RunRecord{
		ID:        uuid.New().String(),
		CreatedAt: createdAt,
		Text:      text,
		Settings:  models.DefaultSettings(),
		Results: []models.ParagraphResult{
			{Text: text, Queries: []string{"q"}, Images: []models.ImageRecord{{URL: "https://example.com/a.jpg"}}},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := testDB(t)

	run := testRun("integration test paragraph", time.Now().UTC())
	if err := db.SaveRun(run); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := db.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("run not found after save")
	}
	if got.Text != run.Text {
		t.Errorf("text mismatch: %q != %q", got.Text, run.Text)
	}
	if len(got.Results) != 1 || got.Results[0].Images[0].URL != "https://example.com/a.jpg" {
		t.Errorf("results did not round-trip: %+v", got.Results)
	}
}

func TestGetRunMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetRun(uuid.New().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing run")
	}
}

func TestHistoryPruning(t *testing.T) {
	db := testDB(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < historyLimit+5; i++ {
		run := testRun(fmt.Sprintf("run %d", i), base.Add(time.Duration(i)*time.Second))
		if err := db.SaveRun(run); err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}

	entries, err := db.ListRuns()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != historyLimit {
		t.Errorf("expected history pruned to %d, got %d", historyLimit, len(entries))
	}
	// Newest first
	if entries[0].TextPreview != fmt.Sprintf("run %d", historyLimit+4) {
		t.Errorf("unexpected newest entry: %q", entries[0].TextPreview)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	db := testDB(t)

	s := models.DefaultSettings()
	s.SearchEngine = models.SelectEngines("pixabay", "tenor")
	s.ImageCount = models.Budget{PerProvider: map[string]int{"pixabay": 2, "tenor": 3}}
	if err := db.SaveSettings(s); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := db.GetSettings()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.SearchEngine.Label() != "pixabay,tenor" {
		t.Errorf("engine selection lost: %q", got.SearchEngine.Label())
	}
	if !got.ImageCount.IsPerProvider() || got.ImageCount.PerProvider["tenor"] != 3 {
		t.Errorf("budget lost: %+v", got.ImageCount)
	}
}

func TestPromptCRUD(t *testing.T) {
	db := testDB(t)

	if err := db.SavePrompt("landscape", "find scenic views"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := db.GetPrompt("landscape")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != "find scenic views" {
		t.Errorf("unexpected prompt: %q", got)
	}

	if err := db.SavePrompt("landscape", "updated"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, _ = db.GetPrompt("landscape")
	if got != "updated" {
		t.Errorf("prompt not replaced: %q", got)
	}

	names, err := db.ListPrompts()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(names) != 1 || names[0] != "landscape" {
		t.Errorf("unexpected prompt list: %v", names)
	}

	if err := db.DeletePrompt("landscape"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	got, _ = db.GetPrompt("landscape")
	if got != "" {
		t.Errorf("prompt survived delete: %q", got)
	}
}
