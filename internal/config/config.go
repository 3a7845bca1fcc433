package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Faces     FacesConfig
	Embedding EmbeddingConfig
	Roster    RosterConfig
	Match     MatchConfig
	Web       WebConfig
	Log       LogConfig
}

type FacesConfig struct {
	Dir                  string // directory holding one image per known identity
	BootstrapConcurrency int    // parallel extractions during startup scan
}

type EmbeddingConfig struct {
	URL          string        // defaults to http://localhost:8000
	Timeout      time.Duration // per-request timeout against the embedding server
	RPS          float64       // request rate limit towards the embedding server
	MaxImageSize int           // longest side in pixels before downscaling, 0 disables
}

type RosterConfig struct {
	URL     string        // attendance API base URL
	Timeout time.Duration // per-request timeout
}

type MatchConfig struct {
	Tolerance float64 // maximum euclidean distance still considered the same person
}

type WebConfig struct {
	Host           string
	Port           int
	MaxUploadMB    int
	AllowedOrigins []string // CORS whitelist, localhost is always allowed
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// envString returns the env var value or defaultVal when it is unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads a positive time.Duration such as "30s", falling back to defaultVal.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// envList splits a comma-separated env var, dropping blank items.
func envList(key string) []string {
	var items []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func Load() *Config {
	return &Config{
		Faces: FacesConfig{
			Dir:                  envString("FACES_DIR", "/root/faces"),
			BootstrapConcurrency: envInt("BOOTSTRAP_CONCURRENCY", 4),
		},
		Embedding: EmbeddingConfig{
			URL:          envString("EMBEDDING_URL", "http://localhost:8000"),
			Timeout:      envDuration("EMBEDDING_TIMEOUT", 60*time.Second),
			RPS:          envFloat("EMBEDDING_RPS", 10),
			MaxImageSize: envInt("EMBEDDING_MAX_IMAGE_SIZE", 1600),
		},
		Roster: RosterConfig{
			URL:     envString("ROSTER_URL", "http://attendance_api"),
			Timeout: envDuration("ROSTER_TIMEOUT", 15*time.Second),
		},
		Match: MatchConfig{
			Tolerance: envFloat("MATCH_TOLERANCE", 0.6),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			MaxUploadMB:    envInt("WEB_MAX_UPLOAD_MB", 16),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
	}
}

// MaxUploadBytes returns the multipart upload limit in bytes.
func (c *WebConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
