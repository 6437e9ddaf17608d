package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"agrimitra/cmd/internal/metrics"
)

// Config controls the upstream translation endpoint.
type Config struct {
	// Endpoint is the LibreTranslate-style /translate URL. Empty disables
	// the client entirely.
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// LoadConfigFromEnv loads translation config from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Endpoint: strings.TrimSpace(os.Getenv("AGRI_TRANSLATE_URL")),
		APIKey:   strings.TrimSpace(os.Getenv("AGRI_TRANSLATE_API_KEY")),
		Timeout:  5 * time.Second,
	}
	if raw := strings.TrimSpace(os.Getenv("AGRI_TRANSLATE_TIMEOUT")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

// Client talks to a LibreTranslate-compatible endpoint.
type Client struct {
	log  *slog.Logger
	cfg  Config
	http *http.Client
}

// NewClient constructs a translation client. Returns an error when the
// endpoint is not configured; callers that tolerate a missing translator
// should check Config.Endpoint first.
func NewClient(log *slog.Logger, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("translate: empty endpoint")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		log:  log,
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type upstreamRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

// upstreamResponse tolerates both field spellings seen in the wild.
type upstreamResponse struct {
	TranslatedText    string `json:"translatedText"`
	TranslatedTextAlt string `json:"translated_text"`
}

// Translate translates text from source ("auto" to detect) to target.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	const op = "translate.Translate"

	if c == nil || c.http == nil {
		return "", fmt.Errorf("%s: nil client", op)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("%s: empty target language", op)
	}
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if source = strings.TrimSpace(source); source == "" {
		source = "auto"
	}

	body, err := json.Marshal(upstreamRequest{
		Q:      text,
		Source: source,
		Target: target,
		Format: "text",
		APIKey: c.cfg.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("translate", "error").Inc()
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequestsTotal.WithLabelValues("translate", "error").Inc()
		return "", fmt.Errorf("%s: upstream status %d", op, resp.StatusCode)
	}

	var out upstreamResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("translate", "error").Inc()
		return "", fmt.Errorf("%s: %w", op, err)
	}

	translated := out.TranslatedText
	if translated == "" {
		translated = out.TranslatedTextAlt
	}
	if translated == "" {
		metrics.UpstreamRequestsTotal.WithLabelValues("translate", "error").Inc()
		return "", fmt.Errorf("%s: empty upstream response", op)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("translate", "ok").Inc()
	return translated, nil
}

// Localize translates text to target with auto-detected source, returning
// the original text on any failure. Satisfies forum.Translator.
func (c *Client) Localize(ctx context.Context, text, target string) string {
	out, err := c.Translate(ctx, text, "auto", target)
	if err != nil {
		c.log.Warn("translate.fallback", slog.String("target", target), slog.String("err", err.Error()))
		return text
	}
	return out
}
