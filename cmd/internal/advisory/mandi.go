package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agrimitra/cmd/internal/metrics"
)

// MandiRecord is one wholesale market price row. Prices are rupees per
// quintal, kept as strings because the upstream dataset mixes numeric and
// textual values.
type MandiRecord struct {
	State      string `json:"state"`
	District   string `json:"district"`
	Market     string `json:"market"`
	Commodity  string `json:"commodity"`
	MinPrice   string `json:"min_price"`
	MaxPrice   string `json:"max_price"`
	ModalPrice string `json:"modal_price"`
}

// MandiClient fetches commodity prices from a data.gov.in-style resource API.
type MandiClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewMandiClient constructs a mandi price client; endpoint must be non-empty.
func NewMandiClient(cfg Config) (*MandiClient, error) {
	if strings.TrimSpace(cfg.MandiURL) == "" {
		return nil, errors.New("advisory: empty mandi URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &MandiClient{
		endpoint: cfg.MandiURL,
		apiKey:   cfg.MandiAPIKey,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

type mandiUpstream struct {
	Records []MandiRecord `json:"records"`
}

// Prices fetches price records, optionally filtered by state and commodity.
func (c *MandiClient) Prices(ctx context.Context, state, commodity string) ([]MandiRecord, error) {
	const op = "advisory.Mandi"

	if c == nil || c.http == nil {
		return nil, fmt.Errorf("%s: nil client", op)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	q := u.Query()
	q.Set("api-key", c.apiKey)
	q.Set("format", "json")
	q.Set("limit", "100")
	if state = strings.TrimSpace(state); state != "" {
		q.Set("filters[state]", state)
	}
	if commodity = strings.TrimSpace(commodity); commodity != "" {
		q.Set("filters[commodity]", commodity)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("mandi", "error").Inc()
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequestsTotal.WithLabelValues("mandi", "error").Inc()
		return nil, fmt.Errorf("%s: %w: status %d", op, ErrUpstream, resp.StatusCode)
	}

	var doc mandiUpstream
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&doc); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("mandi", "error").Inc()
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("mandi", "ok").Inc()
	if doc.Records == nil {
		return []MandiRecord{}, nil
	}
	return doc.Records, nil
}
