package imagesearch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"strings"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/zombar/imagesearch/models"
	"github.com/zombar/imagesearch/slug"
	"github.com/zombar/imagesearch/storage"
	_ "golang.org/x/image/webp"
)

const (
	// maxDownloadWorkers bounds concurrent image downloads.
	maxDownloadWorkers = 5
	// maxImageBytes is the largest image the downloader will accept.
	maxImageBytes = 10 * 1024 * 1024
)

// Downloader persists discovered images to a storage backend. It is an
// optional post-processing step, not part of the search path.
type Downloader struct {
	client  *Client
	backend storage.Backend
}

// NewDownloader creates a bulk image downloader.
func NewDownloader(client *Client, backend storage.Backend) *Downloader {
	return &Downloader{client: client, backend: backend}
}

// DownloadAll fetches and stores every record's image using a small
// worker pool. A record that fails to download is logged and skipped;
// the returned slice preserves input order for the records that
// succeeded.
func (d *Downloader) DownloadAll(ctx context.Context, records []models.ImageRecord) []models.SavedImage {
	if len(records) == 0 {
		return []models.SavedImage{}
	}

	type job struct {
		index int
		rec   models.ImageRecord
	}

	numWorkers := maxDownloadWorkers
	if len(records) < numWorkers {
		numWorkers = len(records)
	}

	jobs := make(chan job, len(records))
	saved := make([]*models.SavedImage, len(records))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				img, err := d.downloadOne(ctx, j.rec)
				if err != nil {
					log.Printf("Failed to download %s: %v", j.rec.URL, err)
					downloadsTotal.WithLabelValues("failed").Inc()
					continue
				}
				downloadsTotal.WithLabelValues("ok").Inc()
				saved[j.index] = img
			}
		}()
	}

	for i, rec := range records {
		jobs <- job{index: i, rec: rec}
	}
	close(jobs)
	wg.Wait()

	out := make([]models.SavedImage, 0, len(records))
	for _, img := range saved {
		if img != nil {
			out = append(out, *img)
		}
	}
	return out
}

func (d *Downloader) downloadOne(ctx context.Context, rec models.ImageRecord) (*models.SavedImage, error) {
	resp, err := d.client.FetchOnce(ctx, rec.URL, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.ContentLength > maxImageBytes {
		return nil, fmt.Errorf("image too large: %d bytes", resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > maxImageBytes {
		return nil, fmt.Errorf("image too large: exceeds %d bytes", maxImageBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	name := slug.FromImage(rec.Title, rec.URL)
	if name == "" {
		name = "image"
	}

	path, err := d.backend.SaveImage(data, name, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	img := &models.SavedImage{
		SourceURL:     rec.URL,
		Path:          path,
		ContentType:   contentType,
		FileSizeBytes: int64(len(data)),
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
	}
	if strings.Contains(strings.ToLower(contentType), "jpeg") {
		img.EXIF = extractEXIF(data)
	}

	return img, nil
}

// extractEXIF pulls attribution fields from JPEG metadata. A missing or
// unreadable EXIF block returns nil, not an error.
func extractEXIF(data []byte) *models.EXIFData {
	meta, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	read := func(field exif.FieldName) string {
		tag, err := meta.Get(field)
		if err != nil {
			return ""
		}
		if s, err := tag.StringVal(); err == nil {
			return s
		}
		return ""
	}

	out := &models.EXIFData{
		DateTime:  read(exif.DateTime),
		Make:      read(exif.Make),
		Model:     read(exif.Model),
		Artist:    read(exif.Artist),
		Copyright: read(exif.Copyright),
	}
	if *out == (models.EXIFData{}) {
		return nil
	}
	return out
}
