package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"immo_scrooper/models"
	"immo_scrooper/storage"
)

const maxImageAttempts = 3

// Uploader stores an object in S3 compatible storage.
type Uploader interface {
	Exists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// MediaWorker mirrors listing images: it downloads the image, hashes it and
// uploads it under a content addressed key.
type MediaWorker struct {
	trigger
	store      storage.ListingStore
	httpClient *http.Client
	uploader   Uploader
	logFunc    LogFunc

	mu       sync.Mutex
	attempts map[string]int
}

func NewMediaWorker(store storage.ListingStore, uploader Uploader, client *http.Client) *MediaWorker {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &MediaWorker{
		trigger:    newTrigger(),
		store:      store,
		httpClient: client,
		uploader:   uploader,
		logFunc:    NoOpLogger,
		attempts:   make(map[string]int),
	}
}

func (w *MediaWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

type MediaProcessResult struct {
	Key         string
	ContentHash string
	Size        int64
	// Reused is set when the object was already in the bucket.
	Reused bool
	Error  error
}

// Process downloads imageURL, computes its hash and uploads it.
func (w *MediaWorker) Process(ctx context.Context, imageURL string) MediaProcessResult {
	var result MediaProcessResult

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		result.Error = fmt.Errorf("create request: %w", err)
		return result
	}
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("download: %w", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("download status: %d", resp.StatusCode)
		return result
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 20*1024*1024))
	if err != nil {
		result.Error = fmt.Errorf("read body: %w", err)
		return result
	}
	result.Size = int64(len(data))

	hash := sha256.Sum256(data)
	result.ContentHash = hex.EncodeToString(hash[:])

	contentType := resp.Header.Get("Content-Type")
	ext := guessExtension(imageURL, contentType)
	result.Key = fmt.Sprintf("listings/%s/%s%s", result.ContentHash[:2], result.ContentHash, ext)

	exists, err := w.uploader.Exists(ctx, result.Key)
	if err != nil {
		result.Error = fmt.Errorf("check existing: %w", err)
		return result
	}
	if exists {
		result.Reused = true
		return result
	}

	if contentType == "" {
		contentType = "image/jpeg"
	}
	if err := w.uploader.Upload(ctx, result.Key, bytes.NewReader(data), contentType); err != nil {
		result.Error = fmt.Errorf("upload: %w", err)
		return result
	}
	return result
}

// guessExtension determines file extension from URL or content-type
func guessExtension(rawURL, contentType string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	ext := strings.ToLower(path.Ext(rawURL))
	if isImageExt(ext) {
		return ext
	}

	switch strings.TrimSpace(strings.Split(contentType, ";")[0]) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

// RunOnce mirrors up to limit pending images. A listing whose image failed
// three times in this process is skipped until restart.
func (w *MediaWorker) RunOnce(ctx context.Context, limit int) (processed, failed int, err error) {
	listings, err := w.store.ListPendingImages(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending images: %w", err)
	}

	for _, l := range listings {
		if ctx.Err() != nil {
			break
		}
		if l.ImageURL == nil || w.exhausted(l.URL) {
			continue
		}

		result := w.Process(ctx, *l.ImageURL)
		if result.Error != nil {
			failed++
			n := w.fail(l.URL)
			report(w.logFunc, models.LogLevelWarn, "media", fmt.Sprintf("image for %s failed (attempt %d): %v", l.URL, n, result.Error))
			continue
		}
		if err := w.store.SetImageKey(ctx, l.ID, result.Key); err != nil {
			failed++
			report(w.logFunc, models.LogLevelError, "media", fmt.Sprintf("store key for %s: %v", l.URL, err))
			continue
		}
		processed++
	}

	if processed > 0 || failed > 0 {
		report(w.logFunc, models.LogLevelInfo, "media", fmt.Sprintf("processed %d, failed %d", processed, failed))
	}
	return processed, failed, nil
}

func (w *MediaWorker) exhausted(url string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts[url] >= maxImageAttempts
}

func (w *MediaWorker) fail(url string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[url]++
	return w.attempts[url]
}

// Run starts the media worker loop
func (w *MediaWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.ch:
		}
		if _, _, err := w.RunOnce(ctx, batchSize); err != nil {
			report(w.logFunc, models.LogLevelError, "media", err.Error())
		}
	}
}
