package translate

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"agrimitra/cmd/internal/auth/gate"
)

const maxRequestBytes = 64 << 10

// Handler exposes POST /api/translate.
type Handler struct {
	log    *slog.Logger
	client *Client
	gate   *gate.Gate
}

// NewHandler constructs the translation HTTP handler.
func NewHandler(log *slog.Logger, client *Client, g *gate.Gate) (*Handler, error) {
	if client == nil {
		return nil, errors.New("translate: nil client")
	}
	if g == nil {
		return nil, errors.New("translate: nil gate")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, client: client, gate: g}, nil
}

// Register wires the translate route onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.Handle("/api/translate", h.gate.Middleware(http.HandlerFunc(h.handleTranslate)))
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *Handler) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req translateRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Code: "invalid_json"})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Code: "invalid_json"})
		return
	}

	if strings.TrimSpace(req.Q) == "" || strings.TrimSpace(req.Target) == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "q and target are required", Code: "invalid_request"})
		return
	}

	// Best effort: a failed translation echoes the original text back rather
	// than surfacing the upstream error to the client.
	out, err := h.client.Translate(r.Context(), req.Q, req.Source, req.Target)
	if err != nil {
		h.log.Warn("translate.fallback", slog.String("target", req.Target), slog.String("err", err.Error()))
		out = req.Q
	}
	h.writeJSON(w, http.StatusOK, translateResponse{TranslatedText: out})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
