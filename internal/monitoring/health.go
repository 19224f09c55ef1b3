package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a health check response
type HealthCheck struct {
	Status        HealthStatus     `json:"status"`
	Version       string           `json:"version"`
	Uptime        int64            `json:"uptime"`
	UptimeHuman   string           `json:"uptime_human"`
	QueueSize     int              `json:"queue_size"`
	CachedTracks  int              `json:"cached_tracks"`
	AudioOutput   bool             `json:"audio_output"`
	MemoryUsageMB uint64           `json:"memory_usage_mb"`
	Checks        map[string]Check `json:"checks"`
	Timestamp     time.Time        `json:"timestamp"`
}

// Check represents an individual health check
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthChecker performs health checks for the playback core
type HealthChecker struct {
	version     string
	startTime   time.Time
	db          *sql.DB
	cacheDir    string
	audioOutput bool
}

// NewHealthChecker creates a new health checker. audioOutput reports
// whether this build can actually produce sound.
func NewHealthChecker(version string, db *sql.DB, cacheDir string, audioOutput bool) *HealthChecker {
	return &HealthChecker{
		version:     version,
		startTime:   time.Now(),
		db:          db,
		cacheDir:    cacheDir,
		audioOutput: audioOutput,
	}
}

// Check performs all health checks and returns the result
func (h *HealthChecker) Check(queueSize, cachedTracks int) *HealthCheck {
	checks := make(map[string]Check)
	overallStatus := HealthStatusHealthy

	dbCheck := h.checkDatabase()
	checks["database"] = dbCheck
	if dbCheck.Status != "healthy" {
		overallStatus = HealthStatusUnhealthy
	}

	cacheCheck := h.checkCacheDir()
	checks["cache"] = cacheCheck
	if cacheCheck.Status != "healthy" && overallStatus == HealthStatusHealthy {
		overallStatus = HealthStatusDegraded
	}

	audioCheck := h.checkAudio()
	checks["audio"] = audioCheck
	if audioCheck.Status != "healthy" && overallStatus == HealthStatusHealthy {
		overallStatus = HealthStatusDegraded
	}

	memCheck := h.checkMemory()
	checks["memory"] = memCheck
	if memCheck.Status == "unhealthy" {
		overallStatus = HealthStatusUnhealthy
	} else if memCheck.Status == "degraded" && overallStatus == HealthStatusHealthy {
		overallStatus = HealthStatusDegraded
	}

	uptime := time.Since(h.startTime)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &HealthCheck{
		Status:        overallStatus,
		Version:       h.version,
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatDuration(uptime),
		QueueSize:     queueSize,
		CachedTracks:  cachedTracks,
		AudioOutput:   h.audioOutput,
		MemoryUsageMB: m.Alloc / 1024 / 1024,
		Checks:        checks,
		Timestamp:     time.Now(),
	}
}

// checkDatabase checks database connectivity
func (h *HealthChecker) checkDatabase() Check {
	if h.db == nil {
		return Check{
			Status:  "unhealthy",
			Message: "Database connection not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		return Check{
			Status:  "unhealthy",
			Message: "Database ping failed: " + err.Error(),
		}
	}

	return Check{
		Status:  "healthy",
		Message: "Database connection is healthy",
	}
}

// checkCacheDir checks that the offline cache directory is writable
func (h *HealthChecker) checkCacheDir() Check {
	if h.cacheDir == "" {
		return Check{
			Status:  "degraded",
			Message: "No cache directory configured",
		}
	}

	probe := filepath.Join(h.cacheDir, ".health")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return Check{
			Status:  "degraded",
			Message: "Cache directory not writable: " + err.Error(),
		}
	}
	os.Remove(probe)

	return Check{
		Status:  "healthy",
		Message: "Cache directory is writable",
	}
}

// checkAudio reports whether an audio output is available
func (h *HealthChecker) checkAudio() Check {
	if !h.audioOutput {
		return Check{
			Status:  "degraded",
			Message: "No audio output in this build",
		}
	}
	return Check{
		Status:  "healthy",
		Message: "Audio output available",
	}
}

// checkMemory checks memory usage
func (h *HealthChecker) checkMemory() Check {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	memoryMB := m.Alloc / 1024 / 1024

	const (
		warningThresholdMB  = 500
		criticalThresholdMB = 1000
	)

	if memoryMB > criticalThresholdMB {
		return Check{
			Status:  "unhealthy",
			Message: "Memory usage is critically high",
		}
	}

	if memoryMB > warningThresholdMB {
		return Check{
			Status:  "degraded",
			Message: "Memory usage is elevated",
		}
	}

	return Check{
		Status:  "healthy",
		Message: "Memory usage is normal",
	}
}

// formatDuration formats a duration into a human-readable string
func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
