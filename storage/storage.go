package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backend abstracts where downloaded images and generated reports live.
// Both the filesystem and S3 implementations satisfy it.
type Backend interface {
	SaveImage(imageData []byte, slug, contentType string) (string, error)
	SaveReport(html, slug string) (string, error)
	ReadImage(relPath string) ([]byte, error)
	ReadReport(relPath string) (string, error)
	DeleteImage(relPath string) error
	DeleteReport(relPath string) error
	GetFullPath(relPath string) string
}

// Config contains storage configuration
type Config struct {
	BasePath string // Base directory for all stored files
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		BasePath: "./storage",
	}
}

// Storage handles filesystem storage operations
type Storage struct {
	config Config
}

// New creates a new Storage instance
func New(config Config) (*Storage, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory: %w", err)
	}
	return &Storage{config: config}, nil
}

// SaveImage saves a downloaded image under images/YYYY/MM/.
// Returns the relative file path from the base storage directory.
func (s *Storage) SaveImage(imageData []byte, slug, contentType string) (string, error) {
	ext := extensionFromContentType(contentType)
	if ext == "" {
		ext = ".jpg" // Default extension
	}
	return s.save(imageData, "images", slug, ext)
}

// SaveReport saves a generated HTML report under reports/YYYY/MM/.
// Returns the relative file path from the base storage directory.
func (s *Storage) SaveReport(html, slug string) (string, error) {
	return s.save([]byte(html), "reports", slug, ".html")
}

func (s *Storage) save(data []byte, kind, slug, ext string) (string, error) {
	dirPath := filepath.Join(s.config.BasePath, kind, datedSubdir())
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	// Make the filename unique if the slug collides
	filePath := filepath.Join(dirPath, slug+ext)
	counter := 1
	for fileExists(filePath) {
		filePath = filepath.Join(dirPath, fmt.Sprintf("%s-%d%s", slug, counter, ext))
		counter++
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", kind, err)
	}

	relPath, err := filepath.Rel(s.config.BasePath, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}
	return relPath, nil
}

// ReadImage reads an image from the filesystem
func (s *Storage) ReadImage(relPath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.config.BasePath, relPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}

// ReadReport reads a report from the filesystem
func (s *Storage) ReadReport(relPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.config.BasePath, relPath))
	if err != nil {
		return "", fmt.Errorf("failed to read report file: %w", err)
	}
	return string(data), nil
}

// DeleteImage deletes an image from the filesystem
func (s *Storage) DeleteImage(relPath string) error {
	if err := os.Remove(filepath.Join(s.config.BasePath, relPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}

// DeleteReport deletes a report from the filesystem
func (s *Storage) DeleteReport(relPath string) error {
	if err := os.Remove(filepath.Join(s.config.BasePath, relPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete report file: %w", err)
	}
	return nil
}

// GetFullPath returns the full filesystem path for a relative path
func (s *Storage) GetFullPath(relPath string) string {
	return filepath.Join(s.config.BasePath, relPath)
}

// datedSubdir returns the YYYY/MM subdirectory for newly stored files.
func datedSubdir() string {
	now := time.Now()
	return filepath.Join(fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", int(now.Month())))
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// extensionFromContentType returns the file extension for a content type
func extensionFromContentType(contentType string) string {
	contentType = strings.ToLower(strings.Split(contentType, ";")[0])
	contentType = strings.TrimSpace(contentType)

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	case "image/bmp":
		return ".bmp"
	case "video/mp4":
		return ".mp4"
	default:
		return ""
	}
}
