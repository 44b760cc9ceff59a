// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Asset store backends selectable with ASSET_STORE.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreLocal    = "local"
)

// Config holds every setting the api command needs.
type Config struct {
	Env            string
	Port           string
	AllowedOrigins []string
	LogMode        string

	MaxHistory    int
	MaxImageBytes int64

	AssetStore  string
	AssetDBPath string
	DatabaseURL string
	RedisAddr   string
	RedisKey    string
	UploadDir   string

	HeaderFile     string
	FooterFile     string
	WatchFragments bool
	PageTitle      string
}

// Load builds a Config from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Env:            String("APP_ENV", "development"),
		Port:           String("PORT", "8083"),
		AllowedOrigins: List("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		LogMode:        String("LOG_MODE", "dev"),
		MaxHistory:     Int("MAX_HISTORY", 50),
		MaxImageBytes:  int64(Int("MAX_IMAGE_BYTES", 10<<20)),
		AssetStore:     strings.ToLower(String("ASSET_STORE", StoreSQLite)),
		AssetDBPath:    String("ASSET_DB_PATH", "./data/assets.db"),
		DatabaseURL:    String("DATABASE_URL", ""),
		RedisAddr:      String("REDIS_ADDR", ""),
		RedisKey:       String("REDIS_KEY", "troy-sandbox:images"),
		UploadDir:      String("UPLOAD_DIR", "./uploads"),
		HeaderFile:     String("HEADER_FILE", "./assets/header.html"),
		FooterFile:     String("FOOTER_FILE", "./assets/footer.html"),
		WatchFragments: Bool("WATCH_FRAGMENTS", false),
		PageTitle:      String("PAGE_TITLE", "Troy University Landing Page"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AssetStore {
	case StoreMemory, StoreSQLite, StoreLocal:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for ASSET_STORE=%s", c.AssetStore)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for ASSET_STORE=%s", c.AssetStore)
		}
	default:
		return fmt.Errorf("unknown ASSET_STORE %q", c.AssetStore)
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("MAX_HISTORY must be at least 1, got %d", c.MaxHistory)
	}
	if c.MaxImageBytes < 1 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be positive")
	}
	return nil
}

// IsProduction reports whether APP_ENV selects production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func String(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func Int(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func Bool(name string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// List splits a comma separated variable, dropping empty items.
func List(name string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
