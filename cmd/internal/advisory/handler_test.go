package advisory

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrimitra/cmd/internal/auth/gate"
	"agrimitra/cmd/internal/auth/token"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGateAndToken(t *testing.T) (*gate.Gate, string) {
	t.Helper()

	cfg := token.DefaultConfig()
	cfg.Secret = []byte("0123456789abcdef0123456789abcdef")
	mgr, err := token.NewHMACManager(cfg)
	require.NoError(t, err)
	g, err := gate.New(discardLogger(), mgr)
	require.NoError(t, err)

	bearer, _, err := mgr.Issue("acc-1", time.Now().UTC())
	require.NoError(t, err)
	return g, bearer
}

func newMux(t *testing.T, cfg Config) (*http.ServeMux, string) {
	t.Helper()

	g, bearer := newGateAndToken(t)

	var (
		weather *WeatherClient
		mandi   *MandiClient
		err     error
	)
	if cfg.WeatherURL != "" {
		weather, err = NewWeatherClient(cfg)
		require.NoError(t, err)
	}
	if cfg.MandiURL != "" {
		mandi, err = NewMandiClient(cfg)
		require.NoError(t, err)
	}

	h, err := NewHandler(discardLogger(), weather, mandi, g)
	require.NoError(t, err)
	mux := http.NewServeMux()
	h.Register(mux)
	return mux, bearer
}

func get(mux *http.ServeMux, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestWeatherProxy(t *testing.T) {
	t.Parallel()

	var gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{
			"location": {"name": "Nashik", "region": "Maharashtra"},
			"current": {"temp_c": 31.5, "condition": {"text": "Partly cloudy"}, "humidity": 58, "wind_kph": 12.2}
		}`))
	}))
	t.Cleanup(upstream.Close)

	mux, bearer := newMux(t, Config{WeatherURL: upstream.URL, WeatherAPIKey: "k", Timeout: time.Second})

	// Gate applies.
	assert.Equal(t, http.StatusUnauthorized, get(mux, "/api/weather?lat=20&lon=73.8", "").Code)

	rr := get(mux, "/api/weather?lat=20&lon=73.8", bearer)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "20,73.8", gotQuery)

	var report WeatherReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, "Nashik, Maharashtra", report.Location)
	assert.Equal(t, 31.5, report.TemperatureC)
	assert.Equal(t, "Partly cloudy", report.Condition)
	assert.Equal(t, 58, report.Humidity)
	assert.Equal(t, 12.2, report.WindKPH)
}

func TestWeatherProxy_Validation(t *testing.T) {
	t.Parallel()

	mux, bearer := newMux(t, Config{WeatherURL: "http://127.0.0.1:1", Timeout: time.Second})

	for _, path := range []string{
		"/api/weather",
		"/api/weather?lat=20",
		"/api/weather?lat=abc&lon=73",
		"/api/weather?lat=91&lon=73",
		"/api/weather?lat=20&lon=181",
	} {
		rr := get(mux, path, bearer)
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

func TestWeatherProxy_UpstreamFailure(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(upstream.Close)

	mux, bearer := newMux(t, Config{WeatherURL: upstream.URL, Timeout: time.Second})

	rr := get(mux, "/api/weather?lat=20&lon=73.8", bearer)
	require.Equal(t, http.StatusBadGateway, rr.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "upstream_error", resp.Code)
}

func TestMandiProxy(t *testing.T) {
	t.Parallel()

	var gotState, gotCommodity string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotState = r.URL.Query().Get("filters[state]")
		gotCommodity = r.URL.Query().Get("filters[commodity]")
		_, _ = w.Write([]byte(`{"records": [
			{"state": "Maharashtra", "district": "Nashik", "market": "Lasalgaon",
			 "commodity": "Onion", "min_price": "900", "max_price": "1600", "modal_price": "1350"}
		]}`))
	}))
	t.Cleanup(upstream.Close)

	mux, bearer := newMux(t, Config{MandiURL: upstream.URL, MandiAPIKey: "k", Timeout: time.Second})

	rr := get(mux, "/api/mandi?state=Maharashtra&commodity=Onion", bearer)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Maharashtra", gotState)
	assert.Equal(t, "Onion", gotCommodity)

	var resp mandiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.MandiData, 1)
	assert.Equal(t, "Onion", resp.MandiData[0].Commodity)
	assert.Equal(t, "1350", resp.MandiData[0].ModalPrice)
}

func TestMandiProxy_EmptyRecords(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(upstream.Close)

	mux, bearer := newMux(t, Config{MandiURL: upstream.URL, Timeout: time.Second})

	rr := get(mux, "/api/mandi", bearer)
	require.Equal(t, http.StatusOK, rr.Code)
	// mandi_data is always an array, never null.
	assert.JSONEq(t, `{"mandi_data": []}`, rr.Body.String())
}

func TestHandler_SkipsUnconfiguredRoutes(t *testing.T) {
	t.Parallel()

	mux, bearer := newMux(t, Config{Timeout: time.Second})

	rr := get(mux, "/api/weather?lat=1&lon=1", bearer)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = get(mux, "/api/mandi", bearer)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
