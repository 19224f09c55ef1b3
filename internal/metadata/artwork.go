package metadata

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nfnt/resize"
)

// ArtworkCache downloads cover art and keeps resized thumbnails on disk.
// The player UI asks for the same artwork on every track change, so
// thumbnails are cached keyed by URL and size.
type ArtworkCache struct {
	cacheDir   string
	httpClient *http.Client
}

// NewArtworkCache creates a new artwork cache
func NewArtworkCache(cacheDir string) (*ArtworkCache, error) {
	if cacheDir == "" {
		return nil, fmt.Errorf("cache directory cannot be empty")
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &ArtworkCache{
		cacheDir: cacheDir,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Thumbnail returns artwork for the URL resized to the target dimension.
// Cached copies are served without a network round trip.
func (ac *ArtworkCache) Thumbnail(url string, size int) ([]byte, string, error) {
	if url == "" {
		return nil, "", fmt.Errorf("artwork URL cannot be empty")
	}

	cacheKey := ac.generateCacheKey(url, size)
	cachePath := filepath.Join(ac.cacheDir, cacheKey)

	if data, mimeType, err := ac.loadFromCache(cachePath); err == nil {
		return data, mimeType, nil
	}

	resp, err := ac.httpClient.Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download artwork: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read artwork data: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	if size > 0 {
		resizedData, err := ac.resizeImage(imageData, size)
		if err == nil {
			imageData = resizedData
		}
	}

	if err := ac.saveToCache(cachePath, imageData); err != nil {
		// Cache write failure is not fatal; serve the downloaded copy
		fmt.Printf("Warning: failed to cache artwork: %v\n", err)
	}

	return imageData, mimeType, nil
}

// generateCacheKey generates a cache key from URL and size
func (ac *ArtworkCache) generateCacheKey(url string, size int) string {
	hash := md5.Sum([]byte(fmt.Sprintf("%s_%d", url, size)))
	return hex.EncodeToString(hash[:]) + ".jpg"
}

// loadFromCache loads artwork from cache
func (ac *ArtworkCache) loadFromCache(cachePath string) ([]byte, string, error) {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, "", err
	}

	ext := strings.ToLower(filepath.Ext(cachePath))
	mimeType := "image/jpeg"
	if ext == ".png" {
		mimeType = "image/png"
	}

	return data, mimeType, nil
}

// saveToCache saves artwork to cache
func (ac *ArtworkCache) saveToCache(cachePath string, data []byte) error {
	dir := filepath.Dir(cachePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Write to temporary file first, rename is atomic
	tempPath := cachePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	if err := os.Rename(tempPath, cachePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	return nil
}

// resizeImage resizes an image to the target size
func (ac *ArtworkCache) resizeImage(imageData []byte, targetSize int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width == targetSize && height == targetSize {
		return imageData, nil
	}

	// Maintain aspect ratio, use target as max dimension
	var resized image.Image
	if width > height {
		resized = resize.Resize(uint(targetSize), 0, img, resize.Lanczos3)
	} else {
		resized = resize.Resize(0, uint(targetSize), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 95})
	case "png":
		err = png.Encode(&buf, resized)
	default:
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 95})
	}

	if err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), nil
}

// ClearCache clears all cached artwork
func (ac *ArtworkCache) ClearCache() error {
	entries, err := os.ReadDir(ac.cacheDir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			path := filepath.Join(ac.cacheDir, entry.Name())
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove cache file: %w", err)
			}
		}
	}

	return nil
}

// CacheSize returns the total size of cached artwork in bytes
func (ac *ArtworkCache) CacheSize() (int64, error) {
	var totalSize int64

	entries, err := os.ReadDir(ac.cacheDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			totalSize += info.Size()
		}
	}

	return totalSize, nil
}

// CleanOldCache removes cached artwork older than the specified duration
func (ac *ArtworkCache) CleanOldCache(maxAge time.Duration) error {
	entries, err := os.ReadDir(ac.cacheDir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > maxAge {
			path := filepath.Join(ac.cacheDir, entry.Name())
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove old cache file: %w", err)
			}
		}
	}

	return nil
}
