package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"agrimitra/cmd/internal/metrics"
)

// ErrUpstream marks failures of an upstream advisory API. Handlers map it
// to 502.
var ErrUpstream = errors.New("upstream failure")

// WeatherReport is the shaped current-weather payload served to clients.
type WeatherReport struct {
	Location     string  `json:"location"`
	TemperatureC float64 `json:"temperature_c"`
	Condition    string  `json:"condition"`
	Humidity     int     `json:"humidity"`
	WindKPH      float64 `json:"wind_kph"`
}

// WeatherClient fetches current conditions from a weatherapi.com-compatible
// endpoint.
type WeatherClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewWeatherClient constructs a weather client; endpoint must be non-empty.
func NewWeatherClient(cfg Config) (*WeatherClient, error) {
	if strings.TrimSpace(cfg.WeatherURL) == "" {
		return nil, errors.New("advisory: empty weather URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &WeatherClient{
		endpoint: cfg.WeatherURL,
		apiKey:   cfg.WeatherAPIKey,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// weatherUpstream mirrors the upstream document; only the fields we serve.
type weatherUpstream struct {
	Location struct {
		Name   string `json:"name"`
		Region string `json:"region"`
	} `json:"location"`
	Current struct {
		TempC     float64 `json:"temp_c"`
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
		Humidity int     `json:"humidity"`
		WindKPH  float64 `json:"wind_kph"`
	} `json:"current"`
}

// Current fetches the current weather for a coordinate.
func (c *WeatherClient) Current(ctx context.Context, lat, lon float64) (WeatherReport, error) {
	const op = "advisory.Weather"

	if c == nil || c.http == nil {
		return WeatherReport{}, fmt.Errorf("%s: nil client", op)
	}
	if err := ctx.Err(); err != nil {
		return WeatherReport{}, err
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return WeatherReport{}, fmt.Errorf("%s: %w", op, err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	q.Set("q", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lon, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return WeatherReport{}, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("weather", "error").Inc()
		return WeatherReport{}, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequestsTotal.WithLabelValues("weather", "error").Inc()
		return WeatherReport{}, fmt.Errorf("%s: %w: status %d", op, ErrUpstream, resp.StatusCode)
	}

	var doc weatherUpstream
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("weather", "error").Inc()
		return WeatherReport{}, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}

	location := doc.Location.Name
	if doc.Location.Region != "" {
		location += ", " + doc.Location.Region
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("weather", "ok").Inc()
	return WeatherReport{
		Location:     location,
		TemperatureC: doc.Current.TempC,
		Condition:    doc.Current.Condition.Text,
		Humidity:     doc.Current.Humidity,
		WindKPH:      doc.Current.WindKPH,
	}, nil
}
