package forum

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agrimitra/cmd/identity"
	"agrimitra/cmd/internal/auth/gate"
)

// Translator localizes user-visible text. Implementations must fall back to
// the original text when translation is unavailable.
type Translator interface {
	Localize(ctx context.Context, text, target string) string
}

// Handler wires the Q&A HTTP surface to the forum store.
type Handler struct {
	log        *slog.Logger
	cfg        Config
	store      Store
	accounts   identity.Store
	gate       *gate.Gate
	translator Translator // optional
}

// NewHandler constructs a forum Handler. translator may be nil; responses
// are then served untranslated.
func NewHandler(log *slog.Logger, cfg Config, store Store, accounts identity.Store, g *gate.Gate, translator Translator) (*Handler, error) {
	if store == nil {
		return nil, errors.New("forum: nil store")
	}
	if accounts == nil {
		return nil, errors.New("forum: nil account store")
	}
	if g == nil {
		return nil, errors.New("forum: nil gate")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:        log,
		cfg:        cfg,
		store:      store,
		accounts:   accounts,
		gate:       g,
		translator: translator,
	}, nil
}

// Register wires forum routes onto the provided mux. All routes require a
// valid session token.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.Handle("/api/questions", h.gate.Middleware(http.HandlerFunc(h.handleQuestions)))
	mux.Handle("/api/questions/", h.gate.Middleware(http.HandlerFunc(h.handleQuestionsSubtree)))
}

// ---- wire models ----

type questionRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type answerRequest struct {
	Text string `json:"text"`
}

type answerResponse struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	Author     string    `json:"author"`
	Text       string    `json:"text"`
	Upvotes    int       `json:"upvotes"`
	CreatedAt  time.Time `json:"created_at"`
}

type questionResponse struct {
	ID        string           `json:"id"`
	Author    string           `json:"author"`
	Title     string           `json:"title"`
	Text      string           `json:"text"`
	CreatedAt time.Time        `json:"created_at"`
	Answers   []answerResponse `json:"answers"`
}

// ---- handlers ----

// handleQuestions serves GET (list) and POST (create) on /api/questions.
func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listQuestions(w, r, "")
	case http.MethodPost:
		h.createQuestion(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleQuestionsSubtree dispatches the id-scoped routes:
//
//	GET  /api/questions/search?q=
//	GET  /api/questions/{id}
//	GET  /api/questions/{id}/answers
//	POST /api/questions/{id}/answers
//	POST /api/questions/answers/{id}/like
func (h *Handler) handleQuestionsSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/questions/"), "/")

	if rest == "search" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.listQuestions(w, r, r.URL.Query().Get("q"))
		return
	}

	if after, ok := strings.CutPrefix(rest, "answers/"); ok {
		id, action, _ := strings.Cut(after, "/")
		if action != "like" || id == "" {
			writeError(w, http.StatusNotFound, "not_found", "Not found")
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.likeAnswer(w, r, id)
		return
	}

	id, tail, hasTail := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "Not found")
		return
	}
	switch {
	case !hasTail:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.getQuestion(w, r, id)
	case tail == "answers":
		switch r.Method {
		case http.MethodGet:
			h.listAnswers(w, r, id)
		case http.MethodPost:
			h.createAnswer(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		writeError(w, http.StatusNotFound, "not_found", "Not found")
	}
}

func (h *Handler) listQuestions(w http.ResponseWriter, r *http.Request, query string) {
	var (
		qs  []Question
		err error
	)
	if strings.TrimSpace(query) == "" {
		qs, err = h.store.ListQuestions(r.Context(), h.cfg.ListLimit)
	} else {
		qs, err = h.store.SearchQuestions(r.Context(), query, h.cfg.ListLimit)
	}
	if err != nil {
		h.serverError(w, r, "forum.list", err)
		return
	}

	lang := h.targetLang(r)
	out := make([]questionResponse, 0, len(qs))
	for _, q := range qs {
		out = append(out, h.toQuestionResponse(r.Context(), q, lang))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getQuestion(w http.ResponseWriter, r *http.Request, id string) {
	q, err := h.store.GetQuestion(r.Context(), id)
	if err != nil {
		h.storeError(w, r, "forum.get", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toQuestionResponse(r.Context(), q, h.targetLang(r)))
}

func (h *Handler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := ValidateQuestion(req.Title, req.Text); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", errMessage(err))
		return
	}

	acc, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	q, err := h.store.CreateQuestion(r.Context(), CreateQuestionInput{
		AuthorID:   acc.ID,
		AuthorName: accountDisplay(acc),
		Title:      req.Title,
		Text:       req.Text,
	})
	if err != nil {
		h.storeError(w, r, "forum.create_question", err)
		return
	}

	h.log.Info("forum.question_created", slog.String("question_id", q.ID), slog.String("author_id", q.AuthorID))
	writeJSON(w, http.StatusCreated, h.toQuestionResponse(r.Context(), q, ""))
}

func (h *Handler) listAnswers(w http.ResponseWriter, r *http.Request, questionID string) {
	q, err := h.store.GetQuestion(r.Context(), questionID)
	if err != nil {
		h.storeError(w, r, "forum.list_answers", err)
		return
	}

	lang := h.targetLang(r)
	out := make([]answerResponse, 0, len(q.Answers))
	for _, a := range q.Answers {
		out = append(out, h.toAnswerResponse(r.Context(), a, lang))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createAnswer(w http.ResponseWriter, r *http.Request, questionID string) {
	var req answerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := ValidateAnswer(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", errMessage(err))
		return
	}

	acc, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	a, err := h.store.CreateAnswer(r.Context(), CreateAnswerInput{
		QuestionID: questionID,
		AuthorID:   acc.ID,
		AuthorName: accountDisplay(acc),
		Text:       req.Text,
	})
	if err != nil {
		h.storeError(w, r, "forum.create_answer", err)
		return
	}

	h.log.Info("forum.answer_created", slog.String("answer_id", a.ID), slog.String("question_id", a.QuestionID))
	writeJSON(w, http.StatusCreated, h.toAnswerResponse(r.Context(), a, ""))
}

func (h *Handler) likeAnswer(w http.ResponseWriter, r *http.Request, answerID string) {
	a, err := h.store.LikeAnswer(r.Context(), answerID)
	if err != nil {
		h.storeError(w, r, "forum.like_answer", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toAnswerResponse(r.Context(), a, ""))
}

// ---- helpers ----

// requireAccount resolves the authenticated account for write operations.
func (h *Handler) requireAccount(w http.ResponseWriter, r *http.Request) (identity.Account, bool) {
	ac, ok := gate.FromContext(r.Context())
	if !ok {
		// Middleware guarantees this; treat absence as a programming error.
		writeError(w, http.StatusUnauthorized, "invalid_credential", "Invalid or expired token")
		return identity.Account{}, false
	}
	acc, err := h.accounts.GetAccountByID(r.Context(), ac.AccountID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "invalid_credential", "Invalid or expired token")
			return identity.Account{}, false
		}
		h.serverError(w, r, "forum.resolve_account", err)
		return identity.Account{}, false
	}
	return acc, true
}

// targetLang resolves the translation target: explicit ?lang= wins, then the
// account's preferred language when it is not English.
func (h *Handler) targetLang(r *http.Request) string {
	if h.translator == nil {
		return ""
	}
	if l := identity.NormalizeLanguage(r.URL.Query().Get("lang")); l != "" {
		return l
	}
	ac, ok := gate.FromContext(r.Context())
	if !ok {
		return ""
	}
	acc, err := h.accounts.GetAccountByID(r.Context(), ac.AccountID)
	if err != nil || acc.PreferredLanguage == "" || acc.PreferredLanguage == "en" {
		return ""
	}
	return acc.PreferredLanguage
}

func (h *Handler) localize(ctx context.Context, text, lang string) string {
	if h.translator == nil || lang == "" {
		return text
	}
	return h.translator.Localize(ctx, text, lang)
}

func (h *Handler) toQuestionResponse(ctx context.Context, q Question, lang string) questionResponse {
	out := questionResponse{
		ID:        q.ID,
		Author:    q.AuthorName,
		Title:     h.localize(ctx, q.Title, lang),
		Text:      h.localize(ctx, q.Text, lang),
		CreatedAt: q.CreatedAt,
		Answers:   make([]answerResponse, 0, len(q.Answers)),
	}
	for _, a := range q.Answers {
		out.Answers = append(out.Answers, h.toAnswerResponse(ctx, a, lang))
	}
	return out
}

func (h *Handler) toAnswerResponse(ctx context.Context, a Answer, lang string) answerResponse {
	return answerResponse{
		ID:         a.ID,
		QuestionID: a.QuestionID,
		Author:     a.AuthorName,
		Text:       h.localize(ctx, a.Text, lang),
		Upvotes:    a.Upvotes,
		CreatedAt:  a.CreatedAt,
	}
}

// storeError maps store failures to HTTP, treating not-found as 404.
func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "Not found")
	case IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_request", errMessage(err))
	default:
		h.serverError(w, r, op, err)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.Error(op, slog.String("path", r.URL.Path), slog.String("err", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
}

// errMessage extracts the human part of an OpError for client echo.
func errMessage(err error) string {
	var oe OpError
	if errors.As(err, &oe) && oe.Msg != "" {
		return oe.Msg
	}
	return "invalid input"
}

// accountDisplay picks the public author name for forum posts.
func accountDisplay(acc identity.Account) string {
	if acc.DisplayName != nil && strings.TrimSpace(*acc.DisplayName) != "" {
		return strings.TrimSpace(*acc.DisplayName)
	}
	return acc.Username
}
