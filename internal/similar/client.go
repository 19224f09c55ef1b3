package similar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/resona/resona-go/internal/config"
	apperrors "github.com/resona/resona-go/internal/errors"
	"github.com/resona/resona-go/internal/player"
	"github.com/resona/resona-go/internal/stream"
)

// Client fetches similar-track recommendations from the streaming API.
// It satisfies player.SimilarProvider so the store can extend playback
// when the queue runs out.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a similar-tracks API client
func NewClient(cfg config.StreamingConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient:  stream.GetDefaultClient(),
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:      cfg.APIKey,
		rateLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5), // 5 requests per second
		logger:      logger,
	}
}

type similarResponse struct {
	Tracks []struct {
		ID         string  `json:"id"`
		Title      string  `json:"title"`
		Artist     string  `json:"artist"`
		Album      string  `json:"album"`
		StreamRef  string  `json:"stream_ref"`
		ArtworkURL string  `json:"artwork_url"`
		Duration   float64 `json:"duration"`
	} `json:"tracks"`
}

// SimilarTracks returns up to limit tracks similar to the given one
func (c *Client) SimilarTracks(ctx context.Context, track player.Track, limit int) ([]player.Track, error) {
	if c.endpoint == "" {
		return nil, apperrors.NewValidationError("no streaming endpoint configured")
	}
	if limit <= 0 {
		limit = 10
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/tracks/%s/similar?limit=%d",
		c.endpoint, url.PathEscape(track.ID), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewResolutionError("similar tracks request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewResolutionError(
			fmt.Sprintf("similar tracks request returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperrors.NewResolutionError("failed to read similar tracks response", err)
	}

	var result similarResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.NewResolutionError("failed to decode similar tracks response", err)
	}

	tracks := make([]player.Track, 0, len(result.Tracks))
	for _, t := range result.Tracks {
		if t.ID == "" || t.ID == track.ID {
			continue
		}
		tracks = append(tracks, player.Track{
			ID:         t.ID,
			Title:      t.Title,
			Artist:     t.Artist,
			Album:      t.Album,
			StreamRef:  t.StreamRef,
			ArtworkURL: t.ArtworkURL,
			Duration:   t.Duration,
		})
	}

	c.logger.Debug("Fetched similar tracks",
		zap.String("track_id", track.ID),
		zap.Int("count", len(tracks)))
	return tracks, nil
}
