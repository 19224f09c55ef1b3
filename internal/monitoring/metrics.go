package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TracksPlayedTotal tracks completed plays by completion status and source
	TracksPlayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resona_tracks_played_total",
			Help: "Total number of tracks played to their natural end",
		},
		[]string{"completed", "source"},
	)

	// TrackLoadDuration tracks how long loading a track into a channel takes
	TrackLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resona_track_load_duration_seconds",
			Help:    "Track load duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	// LoadRetriesTotal tracks load retry attempts
	LoadRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resona_load_retries_total",
			Help: "Total number of audio load retry attempts",
		},
	)

	// URLResolutionsTotal tracks signed-URL resolutions by outcome
	URLResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resona_url_resolutions_total",
			Help: "Total number of stream URL resolutions",
		},
		[]string{"outcome"},
	)

	// CrossfadesTotal tracks started crossfade transitions
	CrossfadesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resona_crossfades_total",
			Help: "Total number of crossfade transitions",
		},
	)

	// QueueSize tracks current playback queue size
	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resona_queue_size",
			Help: "Current playback queue size",
		},
	)

	// CacheOpsTotal tracks offline cache lookups by result
	CacheOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resona_cache_ops_total",
			Help: "Total number of offline cache operations",
		},
		[]string{"op", "result"},
	)

	// ErrorsTotal tracks errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resona_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

// RecordTrackPlayed records a track that reached its natural end
func RecordTrackPlayed(completed bool, source string) {
	label := "false"
	if completed {
		label = "true"
	}
	TracksPlayedTotal.WithLabelValues(label, source).Inc()
}

// RecordTrackLoad records a completed track load
func RecordTrackLoad(duration time.Duration) {
	TrackLoadDuration.Observe(duration.Seconds())
}

// RecordLoadRetry records a load retry attempt
func RecordLoadRetry() {
	LoadRetriesTotal.Inc()
}

// RecordURLResolution records a stream URL resolution outcome
// (signed, fallback, or failed)
func RecordURLResolution(outcome string) {
	URLResolutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordCrossfade records a started crossfade transition
func RecordCrossfade() {
	CrossfadesTotal.Inc()
}

// UpdateQueueSize updates the queue size gauge
func UpdateQueueSize(size int) {
	QueueSize.Set(float64(size))
}

// RecordCacheOp records an offline cache operation
func RecordCacheOp(op, result string) {
	CacheOpsTotal.WithLabelValues(op, result).Inc()
}

// RecordError records an error
func RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}
