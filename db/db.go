package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/zombar/imagesearch/models"
)

// historyLimit is the number of runs kept in the rolling history.
const historyLimit = 50

// DB wraps the database connection and provides data access methods
type DB struct {
	conn *sql.DB
}

// Config contains database configuration
type Config struct {
	DSN string // PostgreSQL connection string
}

// New creates a new database connection
func New(config Config) (*DB, error) {
	conn, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// DB returns the underlying database connection
func (db *DB) DB() *sql.DB {
	return db.conn
}

// SaveRun persists a completed processing run and prunes the history
// down to the most recent entries.
func (db *DB) SaveRun(run *models.RunRecord) error {
	settingsJSON, err := json.Marshal(run.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, created_at, input_text, settings, results)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.CreatedAt, run.Text, settingsJSON, resultsJSON)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	// Rolling history: drop everything past the newest historyLimit
	_, err = tx.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY created_at DESC LIMIT $1
		)
	`, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	return tx.Commit()
}

// GetRun retrieves one run by ID. Returns nil if not found.
func (db *DB) GetRun(id string) (*models.RunRecord, error) {
	var run models.RunRecord
	var settingsJSON, resultsJSON []byte

	err := db.conn.QueryRow(`
		SELECT id, created_at, input_text, settings, results
		FROM runs WHERE id = $1
	`, id).Scan(&run.ID, &run.CreatedAt, &run.Text, &settingsJSON, &resultsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if err := json.Unmarshal(settingsJSON, &run.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if err := json.Unmarshal(resultsJSON, &run.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	return &run, nil
}

// ListRuns returns history entries for the stored runs, newest first.
func (db *DB) ListRuns() ([]models.HistoryEntry, error) {
	rows, err := db.conn.Query(`
		SELECT id, created_at, input_text, settings, results
		FROM runs ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var run models.RunRecord
		var settingsJSON, resultsJSON []byte
		if err := rows.Scan(&run.ID, &run.CreatedAt, &run.Text, &settingsJSON, &resultsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal(settingsJSON, &run.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
		if err := json.Unmarshal(resultsJSON, &run.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results: %w", err)
		}
		entries = append(entries, run.Entry())
	}
	return entries, rows.Err()
}

// ClearRuns deletes the whole run history.
func (db *DB) ClearRuns() error {
	if _, err := db.conn.Exec("DELETE FROM runs"); err != nil {
		return fmt.Errorf("failed to clear runs: %w", err)
	}
	return nil
}

// GetSettings loads the stored settings bundle. Missing settings return
// the defaults rather than an error; stored settings are merged over
// the defaults so keys added since the save still have values.
func (db *DB) GetSettings() (models.Settings, error) {
	var data []byte
	err := db.conn.QueryRow("SELECT data FROM app_settings WHERE name = 'default'").Scan(&data)
	if err == sql.ErrNoRows {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	var s models.Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return models.Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return s.MergeDefaults(), nil
}

// SaveSettings stores the settings bundle.
func (db *DB) SaveSettings(s models.Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO app_settings (name, data, updated_at)
		VALUES ('default', $1, $2)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, data, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// GetPrompt retrieves a saved system prompt by name. Returns empty
// string if not found.
func (db *DB) GetPrompt(name string) (string, error) {
	var content string
	err := db.conn.QueryRow("SELECT content FROM prompts WHERE name = $1", name).Scan(&content)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get prompt: %w", err)
	}
	return content, nil
}

// SavePrompt stores or replaces a named system prompt.
func (db *DB) SavePrompt(name, content string) error {
	_, err := db.conn.Exec(`
		INSERT INTO prompts (name, content, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT(name) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at
	`, name, content, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save prompt: %w", err)
	}
	return nil
}

// DeletePrompt removes a named system prompt.
func (db *DB) DeletePrompt(name string) error {
	if _, err := db.conn.Exec("DELETE FROM prompts WHERE name = $1", name); err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	return nil
}

// ListPrompts returns the names of all saved prompts.
func (db *DB) ListPrompts() ([]string, error) {
	rows, err := db.conn.Query("SELECT name FROM prompts ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan prompt name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
