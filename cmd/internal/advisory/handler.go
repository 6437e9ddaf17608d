package advisory

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"agrimitra/cmd/internal/auth/gate"
)

// Handler exposes the advisory proxy routes. Either client may be nil, in
// which case the corresponding route is not registered.
type Handler struct {
	log     *slog.Logger
	weather *WeatherClient
	mandi   *MandiClient
	gate    *gate.Gate
}

// NewHandler constructs the advisory HTTP handler.
func NewHandler(log *slog.Logger, weather *WeatherClient, mandi *MandiClient, g *gate.Gate) (*Handler, error) {
	if g == nil {
		return nil, errors.New("advisory: nil gate")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, weather: weather, mandi: mandi, gate: g}, nil
}

// Register wires the configured advisory routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	if h.weather != nil {
		mux.Handle("/api/weather", h.gate.Middleware(http.HandlerFunc(h.handleWeather)))
	}
	if h.mandi != nil {
		mux.Handle("/api/mandi", h.gate.Middleware(http.HandlerFunc(h.handleMandi)))
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type mandiResponse struct {
	MandiData []MandiRecord `json:"mandi_data"`
}

func (h *Handler) handleWeather(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	lat, latErr := parseCoord(r.URL.Query().Get("lat"), 90)
	lon, lonErr := parseCoord(r.URL.Query().Get("lon"), 180)
	if latErr != nil || lonErr != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "lat and lon must be valid coordinates", Code: "invalid_request",
		})
		return
	}

	report, err := h.weather.Current(r.Context(), lat, lon)
	if err != nil {
		h.upstreamError(w, r, "advisory.weather", err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleMandi(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	records, err := h.mandi.Prices(r.Context(), r.URL.Query().Get("state"), r.URL.Query().Get("commodity"))
	if err != nil {
		h.upstreamError(w, r, "advisory.mandi", err)
		return
	}
	h.writeJSON(w, http.StatusOK, mandiResponse{MandiData: records})
}

func (h *Handler) upstreamError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.Error(op, slog.String("path", r.URL.Path), slog.String("err", err.Error()))
	if errors.Is(err, ErrUpstream) {
		h.writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: "Upstream service unavailable", Code: "upstream_error",
		})
		return
	}
	h.writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error: "Internal server error", Code: "internal_error",
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseCoord parses a required coordinate query value within [-bound, bound].
func parseCoord(raw string, bound float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("missing coordinate")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if v < -bound || v > bound {
		return 0, errors.New("coordinate out of range")
	}
	return v, nil
}
