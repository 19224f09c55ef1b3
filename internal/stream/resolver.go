package stream

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

	"github.com/resona/resona-go/internal/config"
	apperrors "github.com/resona/resona-go/internal/errors"
	"github.com/resona/resona-go/internal/monitoring"
	"github.com/resona/resona-go/internal/player"
)

// Resolver turns a track's stream reference into a playable URL.
// Absolute references pass through untouched. Bucket references are
// exchanged for a signed URL at the streaming endpoint, falling back
// to the public bucket URL when signing is unavailable.
type Resolver struct {
	httpClient *http.Client
	cfg        config.StreamingConfig
	logger     *zap.Logger
	retry      apperrors.RetryConfig
}

// NewResolver creates a stream URL resolver
func NewResolver(cfg config.StreamingConfig, logger *zap.Logger) *Resolver {
	clientCfg := DefaultClientConfig()

	retry := apperrors.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	return &Resolver{
		httpClient: NewClient(clientCfg),
		cfg:        cfg,
		logger:     logger,
		retry:      retry,
	}
}

type signedURLResponse struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

// Resolve returns a playable URL for the track
func (r *Resolver) Resolve(ctx context.Context, track player.Track) (string, error) {
	ref := strings.TrimSpace(track.StreamRef)
	if ref == "" {
		monitoring.RecordURLResolution("invalid")
		return "", apperrors.NewResolutionError(
			fmt.Sprintf("track %s has no stream reference", track.ID), nil)
	}

	// Absolute URLs need no resolution
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		monitoring.RecordURLResolution("passthrough")
		return ref, nil
	}

	signed, err := r.fetchSignedURL(ctx, ref)
	if err == nil {
		monitoring.RecordURLResolution("signed")
		return signed, nil
	}

	r.logger.Warn("Signed URL fetch failed, trying public fallback",
		zap.String("track_id", track.ID),
		zap.Error(err))

	if r.cfg.PublicBaseURL != "" {
		monitoring.RecordURLResolution("public_fallback")
		return r.publicURL(ref), nil
	}

	monitoring.RecordURLResolution("failed")
	return "", apperrors.NewResolutionError(
		fmt.Sprintf("could not resolve stream URL for track %s", track.ID), err)
}

// fetchSignedURL asks the streaming endpoint to sign a bucket reference
func (r *Resolver) fetchSignedURL(ctx context.Context, ref string) (string, error) {
	if r.cfg.Endpoint == "" {
		return "", fmt.Errorf("no streaming endpoint configured")
	}

	endpoint := fmt.Sprintf("%s/v1/sign?bucket=%s&object=%s&ttl=%d",
		strings.TrimRight(r.cfg.Endpoint, "/"),
		url.QueryEscape(r.cfg.Bucket),
		url.QueryEscape(ref),
		r.cfg.SignedTTL)

	var signed string
	err := apperrors.RetryWithBackoff(ctx, r.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return apperrors.NewValidationError(err.Error())
		}
		if r.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
		}

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return apperrors.NewResolutionError("signed URL request failed", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return apperrors.NewValidationError(
				fmt.Sprintf("object %s not found", ref))
		}
		if resp.StatusCode != http.StatusOK {
			return apperrors.NewResolutionError(
				fmt.Sprintf("signed URL request returned status %d", resp.StatusCode), nil)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return apperrors.NewResolutionError("failed to read signing response", err)
		}

		var result signedURLResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return apperrors.NewResolutionError("failed to decode signing response", err)
		}
		if result.URL == "" {
			return apperrors.NewResolutionError("signing response had no URL", nil)
		}
		if result.ExpiresAt > 0 && time.Unix(result.ExpiresAt, 0).Before(time.Now()) {
			return apperrors.NewResolutionError("signing response already expired", nil)
		}

		signed = result.URL
		return nil
	})
	if err != nil {
		return "", err
	}
	return signed, nil
}

// publicURL builds the unsigned bucket URL for a reference
func (r *Resolver) publicURL(ref string) string {
	base := strings.TrimRight(r.cfg.PublicBaseURL, "/")
	if r.cfg.Bucket != "" {
		return fmt.Sprintf("%s/%s/%s", base, r.cfg.Bucket, ref)
	}
	return fmt.Sprintf("%s/%s", base, ref)
}
