package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration. Constructed once at
// startup and passed into each component's constructor.
type Config struct {
	MusicRoot    string
	DatabasePath string

	ServerPort  int
	CORSOrigins []string

	// Tag polling time constants. Clamped to safe ranges at load time
	// so a bad value can neither busy-loop the sensor bus nor make the
	// reader unresponsive.
	PollSlowInterval time.Duration // 0.5s-5s
	PollFastInterval time.Duration // 100ms-1s
	ActivityTimeout  time.Duration // 5s-30s

	// Playback tuning.
	NearEndThreshold time.Duration // remaining time treated as "ended"
	SettleDelay      time.Duration // wait after a decode session rebuild
	DispatchTick     time.Duration
	DefaultSkipMs    int64

	// Catalog persistence.
	FlushInterval time.Duration // debounce window for deferred saves
	WatchMusicDir bool

	// Tag reader. When ReaderDevice names an existing character device
	// or FIFO the hardware-backed reader is used, otherwise the
	// keyboard-simulated reader.
	ReaderDevice string

	// Downloader.
	DownloaderEnabled bool
	SpotdlPath        string

	// Logging.
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvDuration gets an environment variable as duration or returns a
// default value.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// splitList splits a comma-separated env value, dropping empty items.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// clampDuration bounds d to [min, max].
func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

// Load loads configuration from environment variables (via .env file)
// or defaults. Returns an error only for settings without a usable
// default, such as a missing music root.
func Load() (*Config, error) {
	// godotenv.Load() will not override existing env vars.
	_ = godotenv.Load()

	cfg := &Config{
		MusicRoot:    getEnv("MUSICBOX_MUSIC_DIR", "music"),
		DatabasePath: getEnv("MUSICBOX_DB_PATH", filepath.Join("config", "musicbox.json")),

		ServerPort: getEnvInt("MUSICBOX_PORT", 8000),
		CORSOrigins: splitList(getEnv("MUSICBOX_CORS_ORIGINS",
			"http://localhost:3000,http://localhost:5173")),

		PollSlowInterval: getEnvDuration("MUSICBOX_POLL_SLOW", 2*time.Second),
		PollFastInterval: getEnvDuration("MUSICBOX_POLL_FAST", 200*time.Millisecond),
		ActivityTimeout:  getEnvDuration("MUSICBOX_ACTIVITY_TIMEOUT", 10*time.Second),

		NearEndThreshold: getEnvDuration("MUSICBOX_NEAR_END", 3*time.Second),
		SettleDelay:      getEnvDuration("MUSICBOX_SETTLE_DELAY", 150*time.Millisecond),
		DispatchTick:     getEnvDuration("MUSICBOX_DISPATCH_TICK", 100*time.Millisecond),
		DefaultSkipMs:    int64(getEnvInt("MUSICBOX_SKIP_MS", 15000)),

		FlushInterval: getEnvDuration("MUSICBOX_FLUSH_INTERVAL", 5*time.Second),
		WatchMusicDir: getEnvBool("MUSICBOX_WATCH_MUSIC_DIR", true),

		ReaderDevice: getEnv("MUSICBOX_READER_DEVICE", ""),

		DownloaderEnabled: getEnvBool("MUSICBOX_DOWNLOADER", false),
		SpotdlPath:        getEnv("MUSICBOX_SPOTDL_PATH", "spotdl"),

		LogLevel:      getEnv("MUSICBOX_LOG_LEVEL", "info"),
		LogFile:       getEnv("MUSICBOX_LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("MUSICBOX_LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getEnvInt("MUSICBOX_LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getEnvInt("MUSICBOX_LOG_MAX_AGE_DAYS", 14),
	}

	cfg.PollSlowInterval = clampDuration(cfg.PollSlowInterval, 500*time.Millisecond, 5*time.Second)
	cfg.PollFastInterval = clampDuration(cfg.PollFastInterval, 100*time.Millisecond, time.Second)
	cfg.ActivityTimeout = clampDuration(cfg.ActivityTimeout, 5*time.Second, 30*time.Second)
	cfg.NearEndThreshold = clampDuration(cfg.NearEndThreshold, time.Second, 10*time.Second)
	cfg.SettleDelay = clampDuration(cfg.SettleDelay, 50*time.Millisecond, 500*time.Millisecond)
	cfg.DispatchTick = clampDuration(cfg.DispatchTick, 50*time.Millisecond, time.Second)
	cfg.FlushInterval = clampDuration(cfg.FlushInterval, time.Second, time.Minute)

	if cfg.MusicRoot == "" {
		return nil, fmt.Errorf("MUSICBOX_MUSIC_DIR must not be empty")
	}
	abs, err := filepath.Abs(cfg.MusicRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving music root %q: %w", cfg.MusicRoot, err)
	}
	cfg.MusicRoot = abs

	return cfg, nil
}
