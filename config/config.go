package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration
type Config struct {
	Port            int
	RedisURL        string
	RedisPassword   string
	SessionTimeout  time.Duration
	GeminiAPIKey    string
	AllowedOrigins  []string
	KeepAlivePeriod time.Duration
	LogLevel        slog.Level

	// Live session
	LiveModel     string
	Voice         string
	Language      string // target language code, empty for transcribe-only
	LanguagesFile string
	Languages     []Language
	MaxRetries    int
	RetryDelay    time.Duration

	// Audio pipeline
	CaptureRate  int // 0 uses the microphone's native rate
	TargetRate   int
	OutputRate   int
	ChunkSize    int
	CaptureQueue int

	// render_image tool
	ImageProvider string // "gemini" or "openai"
	ImageModel    string
	OpenAIAPIKey  string
}

// LoadConfig loads configuration from environment variables with defaults.
// GEMINI_API_KEY may be empty; starting a session checks for it.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:            8080,
		RedisURL:        "localhost:6379",
		SessionTimeout:  30 * time.Minute,
		AllowedOrigins:  []string{"*"},
		KeepAlivePeriod: 30 * time.Second,
		LogLevel:        slog.LevelInfo,
		MaxRetries:      3,
		RetryDelay:      2000 * time.Millisecond,
		TargetRate:      16000,
		OutputRate:      24000,
		ChunkSize:       2048,
		CaptureQueue:    32,
		ImageProvider:   "gemini",
		Languages:       DefaultLanguages(),
	}

	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	config.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	config.LiveModel = os.Getenv("LIVE_MODEL")
	config.Voice = os.Getenv("VOICE")
	config.Language = os.Getenv("LANGUAGE")
	config.ImageModel = os.Getenv("IMAGE_MODEL")

	// Optional: REDIS_URL ("none" disables the status registry)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		if redisURL == "none" {
			redisURL = ""
		}
		config.RedisURL = redisURL
	}

	// Optional: REDIS_PASSWORD
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	ints := []struct {
		name string
		dst  *int
		min  int
	}{
		{"PORT", &config.Port, 1},
		{"MAX_RETRIES", &config.MaxRetries, 1},
		{"CAPTURE_RATE", &config.CaptureRate, 0},
		{"TARGET_RATE", &config.TargetRate, 1},
		{"OUTPUT_RATE", &config.OutputRate, 1},
		{"CHUNK_SIZE", &config.ChunkSize, 1},
		{"CAPTURE_QUEUE", &config.CaptureQueue, 1},
	}
	for _, v := range ints {
		if err := intFromEnv(v.name, v.dst, v.min); err != nil {
			return nil, err
		}
	}

	// Optional: RETRY_DELAY_MS
	if delay := os.Getenv("RETRY_DELAY_MS"); delay != "" {
		d, err := strconv.Atoi(delay)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid RETRY_DELAY_MS: %q", delay)
		}
		config.RetryDelay = time.Duration(d) * time.Millisecond
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: KEEPALIVE_PERIOD (in seconds)
	if keepalive := os.Getenv("KEEPALIVE_PERIOD"); keepalive != "" {
		k, err := strconv.Atoi(keepalive)
		if err != nil {
			return nil, fmt.Errorf("invalid KEEPALIVE_PERIOD: %w", err)
		}
		config.KeepAlivePeriod = time.Duration(k) * time.Second
	}

	// Optional: LOG_LEVEL (debug, info, warn, error)
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if err := config.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
	}

	// Optional: IMAGE_PROVIDER ("gemini" or "openai")
	if provider := os.Getenv("IMAGE_PROVIDER"); provider != "" {
		switch provider {
		case "gemini", "openai":
			config.ImageProvider = provider
		default:
			return nil, fmt.Errorf("invalid IMAGE_PROVIDER: must be 'gemini' or 'openai'")
		}
	}

	// Optional: LANGUAGES_FILE (YAML list of target languages)
	if file := os.Getenv("LANGUAGES_FILE"); file != "" {
		langs, err := LoadLanguages(file)
		if err != nil {
			return nil, err
		}
		config.LanguagesFile = file
		config.Languages = langs
	}

	if config.Language != "" {
		if _, ok := FindLanguage(config.Languages, config.Language); !ok {
			return nil, fmt.Errorf("invalid LANGUAGE: %q is not in the language list", config.Language)
		}
	}

	return config, nil
}

func intFromEnv(name string, dst *int, min int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if v < min {
		return fmt.Errorf("invalid %s: must be at least %d", name, min)
	}
	*dst = v
	return nil
}
