// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backend selectors.
const (
	StoreSupabase = "supabase"
	StoreSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	CORSOrigins []string

	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	OpenAIAPIKey string
	OpenAIModel  string

	SignModelURL        string
	SignModelToken      string
	ConfidenceThreshold float64
	MaxRepeats          int
	Cooldown            time.Duration

	StoreBackend string
	DBPath       string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "*")),
		SupabaseURL:         strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:     getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey:  getEnv("SUPABASE_SERVICE_KEY", ""),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		SignModelURL:        getEnv("SIGN_MODEL_URL", "https://api-inference.huggingface.co/models/prithivMLmods/Alphabet-Sign-Language-Detection"),
		SignModelToken:      getEnv("SIGN_MODEL_TOKEN", ""),
		ConfidenceThreshold: getEnvFloat("SIGN_CONFIDENCE_THRESHOLD", 0.6),
		MaxRepeats:          getEnvInt("SIGN_MAX_REPEATS", 2),
		Cooldown:            getEnvDuration("SIGN_COOLDOWN", 2*time.Second),
		StoreBackend:        getEnv("STORE_BACKEND", StoreSupabase),
		DBPath:              getEnv("DB_PATH", "./data/signlink.db"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.StoreBackend {
	case StoreSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required when STORE_BACKEND=supabase")
		}
		if c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_KEY is required when STORE_BACKEND=supabase")
		}
	case StoreSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("SIGN_CONFIDENCE_THRESHOLD must be in [0,1]")
	}
	if c.MaxRepeats < 1 {
		return fmt.Errorf("SIGN_MAX_REPEATS must be >= 1")
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("SIGN_COOLDOWN must be > 0")
	}
	return nil
}

// AuthEnabled reports whether Supabase-backed authentication is configured.
// Without it the API runs open, which is only acceptable for local development.
func (c *Config) AuthEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
