package advisory

import (
	"os"
	"strings"
	"time"
)

// Config holds the upstream endpoints and credentials for the advisory
// proxies. Empty URLs disable the corresponding route.
type Config struct {
	WeatherURL    string
	WeatherAPIKey string

	MandiURL    string
	MandiAPIKey string

	Timeout time.Duration
}

// LoadConfigFromEnv loads advisory config from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		WeatherURL:    strings.TrimSpace(os.Getenv("AGRI_WEATHER_URL")),
		WeatherAPIKey: strings.TrimSpace(os.Getenv("AGRI_WEATHER_API_KEY")),
		MandiURL:      strings.TrimSpace(os.Getenv("AGRI_MANDI_URL")),
		MandiAPIKey:   strings.TrimSpace(os.Getenv("AGRI_MANDI_API_KEY")),
		Timeout:       8 * time.Second,
	}
	if raw := strings.TrimSpace(os.Getenv("AGRI_ADVISORY_TIMEOUT")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}
