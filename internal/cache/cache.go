package cache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/resona/resona-go/internal/config"
	apperrors "github.com/resona/resona-go/internal/errors"
	"github.com/resona/resona-go/internal/metadata"
	"github.com/resona/resona-go/internal/monitoring"
	"github.com/resona/resona-go/internal/player"
	"github.com/resona/resona-go/internal/stream"
)

// Cache stores downloaded audio on disk for offline playback.
// Blobs live under the cache directory named by a BLAKE2b digest of
// their source URL; the sqlite index maps track IDs to blobs and
// carries probed tags so offline browsing needs no decoding.
type Cache struct {
	db         *sql.DB
	dir        string
	maxBytes   int64
	probeTags  bool
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates an audio cache backed by an initialized database
func New(db *sql.DB, cfg config.CacheConfig, logger *zap.Logger) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, apperrors.NewValidationError("cache directory cannot be empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, apperrors.NewCacheError("failed to create cache directory", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Cache{
		db:         db,
		dir:        cfg.Dir,
		maxBytes:   int64(cfg.MaxSizeMB) << 20,
		probeTags:  cfg.ProbeMetadata,
		httpClient: stream.GetAudioClient(0),
		logger:     logger,
	}, nil
}

// blobName builds the on-disk file name for a source URL
func blobName(url string) string {
	sum := blake2b.Sum256([]byte(url))
	name := hex.EncodeToString(sum[:16])
	ext := strings.ToLower(filepath.Ext(strippedPath(url)))
	switch ext {
	case ".mp3", ".flac", ".ogg", ".m4a", ".wav":
		return name + ext
	default:
		return name + ".mp3"
	}
}

// strippedPath drops the query from a URL so the extension is visible
func strippedPath(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}

// Has reports whether a track is fully cached
func (c *Cache) Has(trackID string) bool {
	_, ok := c.Resolve(trackID)
	return ok
}

// Resolve returns the local file path for a cached track.
// A stale index row whose blob vanished is dropped on the spot.
func (c *Cache) Resolve(trackID string) (string, bool) {
	var filePath string
	err := c.db.QueryRow(
		"SELECT file_path FROM cached_tracks WHERE track_id = ?", trackID,
	).Scan(&filePath)
	if err != nil {
		monitoring.RecordCacheOp("resolve", "miss")
		return "", false
	}

	if _, err := os.Stat(filePath); err != nil {
		c.logger.Warn("Cached blob missing, dropping index row",
			zap.String("track_id", trackID),
			zap.String("path", filePath))
		c.db.Exec("DELETE FROM cached_tracks WHERE track_id = ?", trackID)
		monitoring.RecordCacheOp("resolve", "stale")
		return "", false
	}

	c.db.Exec("UPDATE cached_tracks SET last_access = CURRENT_TIMESTAMP WHERE track_id = ?", trackID)
	monitoring.RecordCacheOp("resolve", "hit")
	return filePath, true
}

// Put stores audio read from r as the cached copy for the track
func (c *Cache) Put(track player.Track, sourceURL string, r io.Reader) error {
	filePath := filepath.Join(c.dir, blobName(sourceURL))

	tempPath := filePath + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		monitoring.RecordCacheOp("put", "error")
		return apperrors.NewCacheError("failed to create cache file", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tempPath)
		monitoring.RecordCacheOp("put", "error")
		return apperrors.NewCacheError("failed to write cache file", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		os.Remove(tempPath)
		monitoring.RecordCacheOp("put", "error")
		return apperrors.NewCacheError("failed to finalize cache file", err)
	}

	title, artist, album := track.Title, track.Artist, track.Album
	duration := track.Duration
	if c.probeTags {
		if info, err := metadata.ProbeFile(filePath); err == nil {
			if info.Title != "" {
				title = info.Title
			}
			if info.Artist != "" {
				artist = info.Artist
			}
			if info.Album != "" {
				album = info.Album
			}
			if info.Duration > 0 {
				duration = info.Duration
			}
		}
	}

	sum := blake2b.Sum256([]byte(sourceURL))
	_, err = c.db.Exec(`
		INSERT INTO cached_tracks
			(track_id, url, url_hash, file_path, size_bytes, title, artist, album, duration, cached_at, last_access)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(track_id) DO UPDATE SET
			url = excluded.url,
			url_hash = excluded.url_hash,
			file_path = excluded.file_path,
			size_bytes = excluded.size_bytes,
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			duration = excluded.duration,
			last_access = CURRENT_TIMESTAMP
	`, track.ID, sourceURL, hex.EncodeToString(sum[:]), filePath, size, title, artist, album, duration)
	if err != nil {
		os.Remove(filePath)
		monitoring.RecordCacheOp("put", "error")
		return apperrors.NewCacheError("failed to index cached track", err)
	}

	monitoring.RecordCacheOp("put", "ok")
	if err := c.evictIfNeeded(); err != nil {
		c.logger.Warn("Cache eviction failed", zap.Error(err))
	}
	return nil
}

// Download fetches the URL and stores it as the cached copy for the track
func (c *Cache) Download(ctx context.Context, track player.Track, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperrors.NewCacheError("failed to build download request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		monitoring.RecordCacheOp("download", "error")
		return apperrors.NewCacheError("audio download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		monitoring.RecordCacheOp("download", "error")
		return apperrors.NewCacheError(
			fmt.Sprintf("audio download returned status %d", resp.StatusCode), nil)
	}

	return c.Put(track, url, resp.Body)
}

// Remove deletes a track's cached blob and index row
func (c *Cache) Remove(trackID string) error {
	var filePath string
	err := c.db.QueryRow(
		"SELECT file_path FROM cached_tracks WHERE track_id = ?", trackID,
	).Scan(&filePath)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return apperrors.NewCacheError("failed to look up cached track", err)
	}

	if _, err := c.db.Exec("DELETE FROM cached_tracks WHERE track_id = ?", trackID); err != nil {
		return apperrors.NewCacheError("failed to drop cache index row", err)
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return apperrors.NewCacheError("failed to delete cached blob", err)
	}
	monitoring.RecordCacheOp("remove", "ok")
	return nil
}

// TrackIDs returns the IDs of all cached tracks
func (c *Cache) TrackIDs() ([]string, error) {
	rows, err := c.db.Query("SELECT track_id FROM cached_tracks ORDER BY cached_at")
	if err != nil {
		return nil, apperrors.NewCacheError("failed to list cached tracks", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewCacheError("failed to scan cached track", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Size returns the total bytes indexed in the cache
func (c *Cache) Size() (int64, error) {
	var total sql.NullInt64
	if err := c.db.QueryRow("SELECT SUM(size_bytes) FROM cached_tracks").Scan(&total); err != nil {
		return 0, apperrors.NewCacheError("failed to sum cache size", err)
	}
	return total.Int64, nil
}

// evictIfNeeded drops least recently played tracks until under budget
func (c *Cache) evictIfNeeded() error {
	if c.maxBytes <= 0 {
		return nil
	}

	total, err := c.Size()
	if err != nil {
		return err
	}

	for total > c.maxBytes {
		var trackID string
		var size int64
		err := c.db.QueryRow(`
			SELECT track_id, size_bytes FROM cached_tracks
			ORDER BY last_access ASC, rowid ASC LIMIT 1
		`).Scan(&trackID, &size)
		if err != nil {
			return err
		}
		if err := c.Remove(trackID); err != nil {
			return err
		}
		c.logger.Info("Evicted cached track",
			zap.String("track_id", trackID),
			zap.Int64("size_bytes", size))
		monitoring.RecordCacheOp("evict", "ok")
		total -= size
	}
	return nil
}
