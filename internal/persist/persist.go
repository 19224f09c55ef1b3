package persist

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/resona/resona-go/internal/errors"
	"github.com/resona/resona-go/internal/player"
)

const stateKey = "playback"

// Repository stores playback state snapshots and history in sqlite
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRepository creates a state repository on an initialized database
func NewRepository(db *sql.DB, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, logger: logger}
}

// SaveState persists a playback state snapshot, replacing any previous one
func (r *Repository) SaveState(state player.PersistedState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return apperrors.NewStorageError("failed to encode playback state", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO player_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, stateKey, string(data))
	if err != nil {
		return apperrors.NewStorageError("failed to save playback state", err)
	}
	return nil
}

// LoadState returns the last saved playback state.
// A missing snapshot is not an error; ok reports whether one was found.
func (r *Repository) LoadState() (player.PersistedState, bool, error) {
	var raw string
	err := r.db.QueryRow("SELECT value FROM player_state WHERE key = ?", stateKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return player.PersistedState{}, false, nil
	}
	if err != nil {
		return player.PersistedState{}, false, apperrors.NewStorageError("failed to load playback state", err)
	}

	var state player.PersistedState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// A corrupt snapshot should not brick startup. Start fresh.
		r.logger.Warn("Discarding corrupt playback state snapshot", zap.Error(err))
		return player.PersistedState{}, false, nil
	}
	return state, true, nil
}

// AppendHistory records a finished playback in the durable history log
func (r *Repository) AppendHistory(entry player.HistoryEntry) error {
	completed := 0
	if entry.Completed {
		completed = 1
	}
	_, err := r.db.Exec(`
		INSERT INTO playback_history (track_id, title, artist, album, play_duration, completed, played_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.Track.ID, entry.Track.Title, entry.Track.Artist, entry.Track.Album,
		entry.PlayDuration, completed, entry.PlayedAt)
	if err != nil {
		return apperrors.NewStorageError("failed to append history", err)
	}
	return nil
}

// RecentHistory returns the most recent playback history entries, newest first
func (r *Repository) RecentHistory(limit int) ([]player.HistoryEntry, error) {
	rows, err := r.db.Query(`
		SELECT track_id, title, artist, album, play_duration, completed, played_at
		FROM playback_history
		ORDER BY played_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query history", err)
	}
	defer rows.Close()

	var entries []player.HistoryEntry
	for rows.Next() {
		var e player.HistoryEntry
		var completed int
		if err := rows.Scan(&e.Track.ID, &e.Track.Title, &e.Track.Artist, &e.Track.Album,
			&e.PlayDuration, &completed, &e.PlayedAt); err != nil {
			return nil, apperrors.NewStorageError("failed to scan history row", err)
		}
		e.Completed = completed != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("history iteration failed", err)
	}
	return entries, nil
}

// PruneHistory deletes history entries beyond the newest keep rows
func (r *Repository) PruneHistory(keep int) error {
	_, err := r.db.Exec(`
		DELETE FROM playback_history
		WHERE id NOT IN (
			SELECT id FROM playback_history ORDER BY played_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to prune history to %d rows", keep), err)
	}
	return nil
}
