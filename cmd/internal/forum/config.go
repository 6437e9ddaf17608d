package forum

import (
	"os"
	"strconv"
	"strings"
)

// Config controls forum API behavior.
type Config struct {
	MaxBodyBytes int64
	ListLimit    int
}

// LoadConfigFromEnv loads forum config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes: envInt64("AGRI_FORUM_MAX_BODY_BYTES", 64<<10), // 64 KiB
		ListLimit:    envInt("AGRI_FORUM_LIST_LIMIT", 50),
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.ListLimit <= 0 || cfg.ListLimit > 500 {
		cfg.ListLimit = 50
	}
	return cfg
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
