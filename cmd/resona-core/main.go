package main

/*
#include <stdlib.h>

// Callback function types for host-app interop
typedef void (*NoticeCallback)(char* kind, char* message, char* trackID);
typedef void (*StateCallback)(char* stateJson);

static inline void call_notice_callback(NoticeCallback cb, char* kind, char* message, char* trackID) {
	if (cb != NULL) {
		cb(kind, message, trackID);
	}
}

static inline void call_state_callback(StateCallback cb, char* stateJson) {
	if (cb != NULL) {
		cb(stateJson);
	}
}
*/
import "C"
import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/resona/resona-go/internal/cache"
	"github.com/resona/resona-go/internal/config"
	"github.com/resona/resona-go/internal/engine"
	"github.com/resona/resona-go/internal/metadata"
	"github.com/resona/resona-go/internal/monitoring"
	"github.com/resona/resona-go/internal/netwatch"
	"github.com/resona/resona-go/internal/notify"
	"github.com/resona/resona-go/internal/persist"
	"github.com/resona/resona-go/internal/player"
	"github.com/resona/resona-go/internal/similar"
	"github.com/resona/resona-go/internal/store"
	"github.com/resona/resona-go/internal/stream"
	_ "github.com/mattn/go-sqlite3"
)

// Global state for the shared library
var (
	ctx         context.Context
	cancel      context.CancelFunc
	cfg         *config.Config
	logger      *zap.Logger
	db          *sql.DB
	playerStore *player.Store
	eng         *engine.Engine
	audioCache  *cache.Cache
	artwork     *metadata.ArtworkCache
	resolver    *stream.Resolver
	repo        *persist.Repository
	health      *monitoring.HealthChecker
	watcher     *netwatch.Watcher
	initialized bool
	mu          sync.RWMutex

	// Callbacks
	noticeCb   C.NoticeCallback
	stateCb    C.StateCallback
	callbackMu sync.RWMutex

	// History entries older than this have already been flushed to sqlite
	lastHistoryFlush time.Time
)

const coreVersion = "1.0.0"

// flushInterval is how often the persisted snapshot is written to sqlite
const flushInterval = 30 * time.Second

// historyKeep bounds the playback_history table
const historyKeep = 500

// cNotifier bridges playback notices to the host-app callback
type cNotifier struct{}

func (cNotifier) Notify(notice notify.Notice) {
	callbackMu.RLock()
	cb := noticeCb
	callbackMu.RUnlock()

	if cb == nil {
		return
	}

	cKind := C.CString(string(notice.Kind))
	cMessage := C.CString(notice.Message)
	cTrackID := C.CString(notice.TrackID)
	defer C.free(unsafe.Pointer(cKind))
	defer C.free(unsafe.Pointer(cMessage))
	defer C.free(unsafe.Pointer(cTrackID))

	C.call_notice_callback(cb, cKind, cMessage, cTrackID)
}

// playerSnapshot is the state payload pushed to the host app
type playerSnapshot struct {
	Track       *player.Track       `json:"track,omitempty"`
	IsPlaying   bool                `json:"is_playing"`
	CurrentTime float64             `json:"current_time"`
	Duration    float64             `json:"duration"`
	Buffered    float64             `json:"buffered"`
	Error       string              `json:"error,omitempty"`
	Volume      float64             `json:"volume"`
	Muted       bool                `json:"muted"`
	Repeat      player.RepeatMode   `json:"repeat"`
	Shuffle     bool                `json:"shuffle"`
	Settings    player.Settings     `json:"settings"`
	Queue       []player.QueueItem  `json:"queue"`
	UpNext      []player.QueueItem  `json:"up_next"`
	QueueIndex  int                 `json:"queue_index"`
	NextTrack   *player.Track       `json:"next_track,omitempty"`
	Offline     bool                `json:"offline"`
	CanNext     bool                `json:"can_next"`
	CanPrevious bool                `json:"can_previous"`
}

func snapshot() playerSnapshot {
	status := playerStore.Status()
	queue := playerStore.Queue()
	audio := playerStore.Audio()
	controls := playerStore.Controls()

	return playerSnapshot{
		Track:       status.Track,
		IsPlaying:   status.IsPlaying,
		CurrentTime: status.CurrentTime,
		Duration:    status.Duration,
		Buffered:    status.Buffered,
		Error:       status.Error,
		Volume:      audio.Volume,
		Muted:       audio.Muted,
		Repeat:      controls.Repeat,
		Shuffle:     controls.Shuffle,
		Settings:    controls.Settings,
		Queue:       queue.Items,
		UpNext:      queue.UpNext,
		QueueIndex:  queue.CurrentIndex,
		NextTrack:   playerStore.GetNextTrack(),
		Offline:     playerStore.IsOffline(),
		CanNext:     playerStore.CanPlayNext(),
		CanPrevious: playerStore.CanPlayPrevious(),
	}
}

func pushState() {
	callbackMu.RLock()
	cb := stateCb
	callbackMu.RUnlock()

	if cb == nil {
		return
	}

	data, err := json.Marshal(snapshot())
	if err != nil {
		logger.Error("Failed to marshal state snapshot", zap.Error(err))
		return
	}

	cState := C.CString(string(data))
	defer C.free(unsafe.Pointer(cState))
	C.call_state_callback(cb, cState)
}

// statePump forwards every store event to the host app as a fresh
// snapshot. Events carry deltas; the host always gets the full picture.
func statePump(ctx context.Context) {
	events, unsubscribe := playerStore.Subscribe(64)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			pushState()
		}
	}
}

// flushLoop periodically writes the persisted snapshot and any new
// history entries to sqlite
func flushLoop(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flushState()
		}
	}
}

func flushState() {
	if err := repo.SaveState(playerStore.ExportPersisted()); err != nil {
		logger.Warn("Failed to save player state", zap.Error(err))
	}

	cutoff := lastHistoryFlush
	var newest time.Time
	for _, entry := range playerStore.History() {
		if !entry.PlayedAt.After(cutoff) {
			continue
		}
		if err := repo.AppendHistory(entry); err != nil {
			logger.Warn("Failed to append history entry", zap.Error(err))
			continue
		}
		if entry.PlayedAt.After(newest) {
			newest = entry.PlayedAt
		}
	}
	if !newest.IsZero() {
		lastHistoryFlush = newest
		if err := repo.PruneHistory(historyKeep); err != nil {
			logger.Warn("Failed to prune history", zap.Error(err))
		}
	}
}

//export InitializeApp
func InitializeApp(configPath *C.char) C.int {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "[PANIC] InitializeApp panicked: %v\n", r)
		}
	}()

	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return 0
	}

	var err error
	cfg, err = config.Load(C.GoString(configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] Failed to load config: %v\n", err)
		return -3
	}

	logger, err = monitoring.NewLogger(&monitoring.LogConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] Failed to build logger: %v\n", err)
		return -2
	}

	db, err = store.InitDB(store.GetDefaultDBPath())
	if err != nil {
		logger.Error("Failed to open database", zap.Error(err))
		return -4
	}

	repo = persist.NewRepository(db, logger)

	audioCache, err = cache.New(db, cfg.Cache, logger)
	if err != nil {
		logger.Error("Failed to open audio cache", zap.Error(err))
		db.Close()
		return -5
	}

	playerStore = player.NewStore(
		player.WithLogger(logger),
		player.WithSimilarProvider(similar.NewClient(cfg.Streaming, logger)),
	)

	if state, ok, err := repo.LoadState(); err != nil {
		logger.Warn("Failed to load persisted state", zap.Error(err))
	} else if ok {
		playerStore.ApplyPersisted(state)
		lastHistoryFlush = time.Now()
	}

	// The cache index is authoritative for what is available offline.
	if ids, err := audioCache.TrackIDs(); err == nil {
		for _, id := range ids {
			playerStore.MarkCached(id)
		}
	}

	// Artwork thumbnails are a convenience; playback works without them.
	artwork, err = metadata.NewArtworkCache(filepath.Join(cfg.Cache.Dir, "artwork"))
	if err != nil {
		logger.Warn("Artwork cache unavailable", zap.Error(err))
		artwork = nil
	}

	resolver = stream.NewResolver(cfg.Streaming, logger)

	eng, err = engine.New(playerStore, resolver, engine.NewBeepOutput, cfg.Playback,
		engine.WithLogger(logger),
		engine.WithNotifier(cNotifier{}),
		engine.WithCache(audioCache),
	)
	if err != nil {
		logger.Error("Failed to build playback engine", zap.Error(err))
		db.Close()
		return -6
	}

	ctx, cancel = context.WithCancel(context.Background())
	eng.Start(ctx)

	watcher = netwatch.New(cfg.Network.ProbeURL,
		netwatch.WithLogger(logger),
		netwatch.WithInterval(time.Duration(cfg.Network.ProbeIntervalSeconds)*time.Second),
	)
	watcher.Subscribe(func(online bool) {
		playerStore.SetOffline(!online)
	})
	watcher.Start(ctx)

	health = monitoring.NewHealthChecker(coreVersion, db, cfg.Cache.Dir, engine.AudioAvailable)

	go statePump(ctx)
	go flushLoop(ctx)

	initialized = true
	logger.Info("Playback core initialized",
		zap.Bool("audio_output", engine.AudioAvailable),
		zap.String("cache_dir", cfg.Cache.Dir))
	return 0
}

//export ShutdownApp
func ShutdownApp() {
	mu.Lock()
	defer mu.Unlock()

	if !initialized {
		return
	}

	logger.Info("Shutting down playback core")

	flushState()

	if eng != nil {
		eng.Stop()
	}
	if watcher != nil {
		watcher.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if db != nil {
		db.Close()
	}
	logger.Sync()

	initialized = false
}

//export SetNoticeCallback
func SetNoticeCallback(callback C.NoticeCallback) {
	callbackMu.Lock()
	noticeCb = callback
	callbackMu.Unlock()
}

//export SetStateCallback
func SetStateCallback(callback C.StateCallback) {
	callbackMu.Lock()
	stateCb = callback
	callbackMu.Unlock()
}

//export FreeString
func FreeString(str *C.char) {
	C.free(unsafe.Pointer(str))
}

// currentConfig snapshots the config pointer, which UpdateSettings
// swaps under the write lock
func currentConfig() *config.Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

func checkInitialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return initialized
}

func errJSON(msg string) *C.char {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return C.CString(string(data))
}

//export LoadQueue
func LoadQueue(tracksJSON *C.char, startIndex C.int, source *C.char) C.int {
	if !checkInitialized() {
		return -1
	}

	var tracks []player.Track
	if err := json.Unmarshal([]byte(C.GoString(tracksJSON)), &tracks); err != nil {
		logger.Warn("Rejected malformed queue payload", zap.Error(err))
		return -2
	}

	playerStore.SetQueue(tracks, int(startIndex), parseSource(C.GoString(source)))
	return 0
}

//export EnqueueTrack
func EnqueueTrack(trackJSON *C.char, playNext C.int, source *C.char) C.int {
	if !checkInitialized() {
		return -1
	}

	var track player.Track
	if err := json.Unmarshal([]byte(C.GoString(trackJSON)), &track); err != nil {
		return -2
	}

	position := player.PositionEnd
	if playNext != 0 {
		position = player.PositionNext
	}
	playerStore.AddToQueue(track, position, parseSource(C.GoString(source)))
	return 0
}

//export QueueUpNext
func QueueUpNext(trackJSON *C.char, source *C.char) C.int {
	if !checkInitialized() {
		return -1
	}

	var track player.Track
	if err := json.Unmarshal([]byte(C.GoString(trackJSON)), &track); err != nil {
		return -2
	}

	playerStore.AddUpNext(track, parseSource(C.GoString(source)))
	return 0
}

//export RemoveQueueItem
func RemoveQueueItem(queueID *C.char) C.int {
	if !checkInitialized() {
		return -1
	}
	playerStore.RemoveFromQueue(C.GoString(queueID))
	return 0
}

//export MoveQueueItem
func MoveQueueItem(from, to C.int) C.int {
	if !checkInitialized() {
		return -1
	}
	playerStore.ReorderQueue(int(from), int(to))
	return 0
}

//export ClearPlaybackQueue
func ClearPlaybackQueue() C.int {
	if !checkInitialized() {
		return -1
	}
	playerStore.ClearQueue()
	return 0
}

//export Play
func Play() C.int {
	if !checkInitialized() {
		return -1
	}
	playerStore.SetIsPlaying(true)
	return 0
}

//export Pause
func Pause() C.int {
	if !checkInitialized() {
		return -1
	}
	playerStore.SetIsPlaying(false)
	return 0
}

//export TogglePlayback
func TogglePlayback() C.int {
	if !checkInitialized() {
		return -1
	}
	playerStore.TogglePlay()
	return 0
}

//export NextTrack
func NextTrack() C.int {
	if !checkInitialized() {
		return -1
	}
	playerStore.Next(true)
	return 0
}

//export PreviousTrack
func PreviousTrack() C.int {
	if !checkInitialized() {
		return -1
	}
	playerStore.Previous(true)
	return 0
}

//export SeekTo
func SeekTo(position C.double) C.int {
	if !checkInitialized() {
		return -1
	}
	playerStore.Seek(float64(position))
	return 0
}

//export SetVolume
func SetVolume(volume C.double) C.int {
	if !checkInitialized() {
		return -1
	}
	playerStore.SetVolume(float64(volume))
	return 0
}

//export ToggleMute
func ToggleMute() C.int {
	if !checkInitialized() {
		return -1
	}
	playerStore.ToggleMute()
	return 0
}

//export SetRepeatMode
func SetRepeatMode(mode *C.char) C.int {
	if !checkInitialized() {
		return -1
	}

	m := player.RepeatMode(C.GoString(mode))
	switch m {
	case player.RepeatNone, player.RepeatOne, player.RepeatAll:
		playerStore.SetRepeat(m)
		return 0
	default:
		return -2
	}
}

//export ToggleShuffle
func ToggleShuffle() C.int {
	if !checkInitialized() {
		return -1
	}
	playerStore.ToggleShuffle()
	return 0
}

// settingsPatch mirrors player.SettingsPatch with JSON tags for the
// host-app payload; absent fields stay untouched
type settingsPatch struct {
	CrossfadeEnabled  *bool    `json:"crossfade_enabled,omitempty"`
	CrossfadeDuration *float64 `json:"crossfade_duration,omitempty"`
	Gapless           *bool    `json:"gapless,omitempty"`
	Autoplay          *bool    `json:"autoplay,omitempty"`
	NormalizeVolume   *bool    `json:"normalize_volume,omitempty"`
	ReplayGain        *bool    `json:"replay_gain,omitempty"`
}

//export UpdatePlaybackSettings
func UpdatePlaybackSettings(patchJSON *C.char) C.int {
	if !checkInitialized() {
		return -1
	}

	var patch settingsPatch
	if err := json.Unmarshal([]byte(C.GoString(patchJSON)), &patch); err != nil {
		return -2
	}

	playerStore.UpdateSettings(player.SettingsPatch{
		CrossfadeEnabled:  patch.CrossfadeEnabled,
		CrossfadeDuration: patch.CrossfadeDuration,
		Gapless:           patch.Gapless,
		Autoplay:          patch.Autoplay,
		NormalizeVolume:   patch.NormalizeVolume,
		ReplayGain:        patch.ReplayGain,
	})
	return 0
}

//export GetPlayerState
func GetPlayerState() *C.char {
	if !checkInitialized() {
		return errJSON("not initialized")
	}

	data, err := json.Marshal(snapshot())
	if err != nil {
		return errJSON("failed to marshal state")
	}
	return C.CString(string(data))
}

//export GetHistory
func GetHistory(limit C.int) *C.char {
	if !checkInitialized() {
		return errJSON("not initialized")
	}

	n := int(limit)
	if n <= 0 {
		n = 50
	}

	entries, err := repo.RecentHistory(n)
	if err != nil {
		return errJSON(err.Error())
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return errJSON("failed to marshal history")
	}
	return C.CString(string(data))
}

//export CacheTrackOffline
func CacheTrackOffline(trackJSON *C.char) C.int {
	if !checkInitialized() {
		return -1
	}

	var track player.Track
	if err := json.Unmarshal([]byte(C.GoString(trackJSON)), &track); err != nil {
		return -2
	}
	if playerStore.IsOffline() {
		return -3
	}

	go func() {
		dlCtx, done := context.WithTimeout(ctx, 10*time.Minute)
		defer done()

		url, err := resolver.Resolve(dlCtx, track)
		if err != nil {
			logger.Warn("Offline caching failed to resolve track",
				zap.String("track_id", track.ID), zap.Error(err))
			return
		}
		if err := audioCache.Download(dlCtx, track, url); err != nil {
			logger.Warn("Offline caching download failed",
				zap.String("track_id", track.ID), zap.Error(err))
			return
		}
		playerStore.MarkCached(track.ID)
	}()
	return 0
}

//export RemoveOfflineTrack
func RemoveOfflineTrack(trackID *C.char) C.int {
	if !checkInitialized() {
		return -1
	}

	id := C.GoString(trackID)
	if err := audioCache.Remove(id); err != nil {
		logger.Warn("Failed to remove cached track", zap.String("track_id", id), zap.Error(err))
		return -2
	}
	playerStore.UnmarkCached(id)
	return 0
}

//export GetCacheUsage
func GetCacheUsage() *C.char {
	if !checkInitialized() {
		return errJSON("not initialized")
	}

	size, err := audioCache.Size()
	if err != nil {
		return errJSON(err.Error())
	}
	ids, err := audioCache.TrackIDs()
	if err != nil {
		return errJSON(err.Error())
	}

	data, _ := json.Marshal(map[string]interface{}{
		"bytes":       size,
		"max_bytes":   int64(currentConfig().Cache.MaxSizeMB) << 20,
		"track_count": len(ids),
	})
	return C.CString(string(data))
}

//export GetSettings
func GetSettings() *C.char {
	if !checkInitialized() {
		return errJSON("not initialized")
	}

	data, err := json.Marshal(currentConfig())
	if err != nil {
		return errJSON("failed to marshal settings")
	}
	return C.CString(string(data))
}

//export UpdateSettings
func UpdateSettings(settingsJSON *C.char) C.int {
	if !checkInitialized() {
		return -1
	}

	var newCfg config.Config
	if err := json.Unmarshal([]byte(C.GoString(settingsJSON)), &newCfg); err != nil {
		return -2
	}
	if err := newCfg.Validate(); err != nil {
		logger.Warn("Rejected invalid settings update", zap.Error(err))
		return -3
	}
	if err := newCfg.Save(config.GetConfigPath()); err != nil {
		logger.Warn("Failed to save settings", zap.Error(err))
		return -4
	}

	mu.Lock()
	cfg = &newCfg
	mu.Unlock()
	return 0
}

//export GetHealth
func GetHealth() *C.char {
	if !checkInitialized() {
		return errJSON("not initialized")
	}

	queue := playerStore.Queue()
	cached := 0
	if ids, err := audioCache.TrackIDs(); err == nil {
		cached = len(ids)
	}

	data, err := json.Marshal(health.Check(len(queue.Items), cached))
	if err != nil {
		return errJSON("failed to marshal health check")
	}
	return C.CString(string(data))
}

//export GetArtworkThumbnail
func GetArtworkThumbnail(url *C.char, size C.int) *C.char {
	if !checkInitialized() {
		return errJSON("not initialized")
	}

	mu.RLock()
	ac := artwork
	mu.RUnlock()
	if ac == nil {
		return errJSON("artwork cache unavailable")
	}

	data, mimeType, err := ac.Thumbnail(C.GoString(url), int(size))
	if err != nil {
		return errJSON(err.Error())
	}

	payload, err := artworkPayload(data, mimeType)
	if err != nil {
		return errJSON("failed to marshal artwork")
	}
	return C.CString(payload)
}

// artworkPayload encodes image bytes for the host, which cannot take
// raw binary across the C boundary
func artworkPayload(data []byte, mimeType string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"mime_type":   mimeType,
		"data_base64": base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

//export GetVersion
func GetVersion() *C.char {
	return C.CString(coreVersion)
}

func parseSource(s string) player.TrackSource {
	switch player.TrackSource(s) {
	case player.SourceAutoplay, player.SourceRadio, player.SourcePlaylist:
		return player.TrackSource(s)
	default:
		return player.SourceUser
	}
}

// Required for c-shared compilation
func main() {}
