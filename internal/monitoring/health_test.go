package monitoring

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func newHealthDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewHealthChecker(t *testing.T) {
	db := newHealthDB(t)

	healthChecker := NewHealthChecker("1.0.0", db, t.TempDir(), true)
	if healthChecker == nil {
		t.Fatal("Expected health checker, got nil")
	}

	if healthChecker.version != "1.0.0" {
		t.Errorf("Expected version 1.0.0, got %s", healthChecker.version)
	}
}

func TestHealthCheckHealthy(t *testing.T) {
	db := newHealthDB(t)

	healthChecker := NewHealthChecker("1.0.0", db, t.TempDir(), true)

	healthCheck := healthChecker.Check(25, 12)

	if healthCheck.Status != HealthStatusHealthy {
		t.Errorf("Expected status healthy, got %s", healthCheck.Status)
	}

	if healthCheck.Version != "1.0.0" {
		t.Errorf("Expected version 1.0.0, got %s", healthCheck.Version)
	}

	if healthCheck.QueueSize != 25 {
		t.Errorf("Expected queue size 25, got %d", healthCheck.QueueSize)
	}

	if healthCheck.CachedTracks != 12 {
		t.Errorf("Expected 12 cached tracks, got %d", healthCheck.CachedTracks)
	}

	if !healthCheck.AudioOutput {
		t.Error("Expected audio output to be reported")
	}
}

func TestHealthCheckDegradedWithoutAudio(t *testing.T) {
	db := newHealthDB(t)

	healthChecker := NewHealthChecker("1.0.0", db, t.TempDir(), false)

	healthCheck := healthChecker.Check(0, 0)

	if healthCheck.Status != HealthStatusDegraded {
		t.Errorf("Expected status degraded, got %s", healthCheck.Status)
	}

	if audioCheck, ok := healthCheck.Checks["audio"]; ok {
		if audioCheck.Status != "degraded" {
			t.Errorf("Expected audio check degraded, got %s", audioCheck.Status)
		}
	} else {
		t.Error("Audio check not found")
	}
}

func TestHealthCheckDegradedWithoutCacheDir(t *testing.T) {
	db := newHealthDB(t)

	healthChecker := NewHealthChecker("1.0.0", db, "", true)

	healthCheck := healthChecker.Check(0, 0)

	if healthCheck.Status != HealthStatusDegraded {
		t.Errorf("Expected status degraded, got %s", healthCheck.Status)
	}

	if cacheCheck, ok := healthCheck.Checks["cache"]; ok {
		if cacheCheck.Status != "degraded" {
			t.Errorf("Expected cache check degraded, got %s", cacheCheck.Status)
		}
	} else {
		t.Error("Cache check not found")
	}
}

func TestHealthCheckUnhealthy(t *testing.T) {
	healthChecker := NewHealthChecker("1.0.0", nil, t.TempDir(), true)

	healthCheck := healthChecker.Check(0, 0)

	if healthCheck.Status != HealthStatusUnhealthy {
		t.Errorf("Expected status unhealthy, got %s", healthCheck.Status)
	}

	if dbCheck, ok := healthCheck.Checks["database"]; ok {
		if dbCheck.Status != "unhealthy" {
			t.Errorf("Expected database check unhealthy, got %s", dbCheck.Status)
		}
	} else {
		t.Error("Database check not found")
	}
}

func TestHealthCheckUptime(t *testing.T) {
	db := newHealthDB(t)

	healthChecker := NewHealthChecker("1.0.0", db, t.TempDir(), true)

	time.Sleep(1 * time.Second)

	healthCheck := healthChecker.Check(0, 0)

	if healthCheck.Uptime < 1 {
		t.Errorf("Expected uptime >= 1, got %d", healthCheck.Uptime)
	}

	if healthCheck.UptimeHuman == "" {
		t.Error("Expected non-empty uptime human string")
	}
}

func TestHealthCheckMemoryUsage(t *testing.T) {
	db := newHealthDB(t)

	healthChecker := NewHealthChecker("1.0.0", db, t.TempDir(), true)

	healthCheck := healthChecker.Check(0, 0)

	if _, ok := healthCheck.Checks["memory"]; !ok {
		t.Error("Memory check not found")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
		{3661 * time.Second, "1h 1m 1s"},
		{86400 * time.Second, "1d 0h 0m 0s"},
		{90061 * time.Second, "1d 1h 1m 1s"},
	}

	for _, tt := range tests {
		result := formatDuration(tt.duration)
		if result != tt.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", tt.duration, result, tt.expected)
		}
	}
}

func TestHealthCheckTimestamp(t *testing.T) {
	db := newHealthDB(t)

	healthChecker := NewHealthChecker("1.0.0", db, t.TempDir(), true)

	before := time.Now()
	healthCheck := healthChecker.Check(0, 0)
	after := time.Now()

	if healthCheck.Timestamp.Before(before) || healthCheck.Timestamp.After(after) {
		t.Error("Health check timestamp is not within expected range")
	}
}
