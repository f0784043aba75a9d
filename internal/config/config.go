package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	SIS         SISConfig
	Detector    DetectorConfig
	Camera      CameraConfig
	Gemini      GeminiConfig
	OpenAI      OpenAIConfig
	Sync        SyncConfig
	Recognition RecognitionConfig
	Stream      StreamConfig
}

type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type SISConfig struct {
	DSN string // MySQL DSN of the school information system (e.g., sis_ro:secret@tcp(sis-db:3306)/sis)
}

type DetectorConfig struct {
	URL     string // face detection/embedding service, defaults to http://localhost:8000
	Timeout time.Duration
}

type CameraConfig struct {
	URL string // default MJPEG camera URL when no per-class camera is configured
}

// URLFor returns the camera URL for a class. Per-class cameras are
// configured as CAMERA_URL_<CLASS> with the class id uppercased and
// non-alphanumeric runes replaced by underscores.
func (c *CameraConfig) URLFor(classID string) string {
	key := "CAMERA_URL_" + envKey(classID)
	if url := os.Getenv(key); url != "" {
		return url
	}
	return c.URL
}

type GeminiConfig struct {
	APIKey string
}

type OpenAIConfig struct {
	Token string
}

type SyncConfig struct {
	Schedule string // daily time ("02:00") or cron spec ("0 2 * * *"), empty disables
}

// RecognitionConfig carries the tunables of the matching pipeline.
// Defaults ship in the embedded defaults.yaml and can be overridden
// per environment.
type RecognitionConfig struct {
	Tolerance    float64 `yaml:"tolerance"`
	FrameSkip    int     `yaml:"frame_skip"`
	Downscale    float64 `yaml:"downscale"`
	CooldownSecs int     `yaml:"cooldown_seconds"`
	EmbeddingDim int     `yaml:"embedding_dim"`
}

// Cooldown returns the debounce cooldown window.
func (r *RecognitionConfig) Cooldown() time.Duration {
	return time.Duration(r.CooldownSecs) * time.Second
}

type StreamConfig struct {
	JPEGQuality  int `yaml:"jpeg_quality"`
	BufferFrames int `yaml:"buffer_frames"`
}

type defaultsFile struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Stream      StreamConfig      `yaml:"stream"`
}

// envKey converts a class id to the env var suffix form (uppercase,
// non-alphanumeric runes become underscores).
func envKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
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

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
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

// envList reads a comma-separated environment variable.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func Load() *Config {
	var defaults defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	rec := defaults.Recognition
	rec.Tolerance = envFloat("RECOGNITION_TOLERANCE", rec.Tolerance)
	rec.FrameSkip = envInt("RECOGNITION_FRAME_SKIP", rec.FrameSkip)
	rec.Downscale = envFloat("RECOGNITION_DOWNSCALE", rec.Downscale)
	rec.CooldownSecs = envInt("RECOGNITION_COOLDOWN_SECONDS", rec.CooldownSecs)

	detectorURL := os.Getenv("DETECTOR_URL")
	if detectorURL == "" {
		detectorURL = "http://localhost:8000"
	}

	return &Config{
		Server: ServerConfig{
			Port:           envInt("CLASSEYE_PORT", 8080),
			Host:           envStr("CLASSEYE_HOST", "0.0.0.0"),
			AllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		SIS: SISConfig{
			DSN: os.Getenv("SIS_DSN"),
		},
		Detector: DetectorConfig{
			URL:     detectorURL,
			Timeout: time.Duration(envInt("DETECTOR_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Camera: CameraConfig{
			URL: os.Getenv("CAMERA_URL"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Sync: SyncConfig{
			Schedule: os.Getenv("SYNC_SCHEDULE"),
		},
		Recognition: rec,
		Stream:      defaults.Stream,
	}
}

// envStr reads an environment variable with a fallback.
func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}
