package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"agrimitra/cmd/internal/auth/gate"
	chatv1 "agrimitra/shared/contracts/chat/v1"
)

const (
	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 5 * time.Minute
	wsMaxFrameBytes       = 16 << 10
	wsMaxMessageChars     = 2000

	// Origin is required by default; only localhost is allowed out of the box.
	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// Gateway is the WebSocket entrypoint for the farming assistant.
//
// It enforces origin policy, token authentication, frame and message size
// limits, and answers each user message with one assistant message.
type Gateway struct {
	log     *slog.Logger
	gate    *gate.Gate
	advisor *Advisor

	originRequired bool
	allowedOrigins []string
	originPatterns []string

	writeTimeout    time.Duration
	readIdleTimeout time.Duration
}

// NewGateway constructs a gateway with secure defaults, reading its knobs
// from AGRI_CHAT_* environment variables.
func NewGateway(log *slog.Logger, g *gate.Gate, advisor *Advisor) (*Gateway, error) {
	if g == nil {
		return nil, errors.New("chat: nil gate")
	}
	if advisor == nil {
		advisor = NewAdvisor()
	}
	if log == nil {
		log = slog.Default()
	}

	gw := &Gateway{log: log, gate: g, advisor: advisor}

	gw.originRequired = envBoolWS("AGRI_CHAT_ORIGIN_REQUIRED", wsDefaultOriginRequired)
	gw.allowedOrigins = envCSVWS("AGRI_CHAT_ALLOWED_ORIGINS", wsDefaultAllowedOrigins)

	// websocket.Accept enforces its own origin policy: same-host is ok,
	// cross-origin requires OriginPatterns. Derive the patterns from the
	// allowlist so the two layers agree.
	gw.originPatterns = originPatternsFromAllowed(gw.allowedOrigins)

	gw.writeTimeout = envDurationWS("AGRI_CHAT_WRITE_TIMEOUT", wsDefaultWriteTimeout)
	gw.readIdleTimeout = envDurationWS("AGRI_CHAT_READ_IDLE_TIMEOUT", wsDefaultReadIdle)

	return gw, nil
}

// ServeHTTP adapter so the gateway can be mounted as http.Handler.
func (gw *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gw.HandleWS(w, r)
}

// HandleWS authenticates, upgrades and runs the assistant loop.
func (gw *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	// Origin policy first: a disallowed origin learns nothing about
	// whether its token would have been accepted.
	if err := gw.enforceOrigin(r); err != nil {
		gw.log.Info("chat.reject.origin", slog.String("origin", r.Header.Get("Origin")), slog.String("err", err.Error()))
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ac, err := gw.authenticate(r)
	if err != nil {
		gw.log.Info("chat.reject.auth", slog.String("remote", r.RemoteAddr))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "Invalid or expired token", "code": "invalid_credential",
		})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{chatv1.Subprotocol},
		OriginPatterns: gw.originPatterns,
	})
	if err != nil {
		gw.log.Error("chat.accept.fail", slog.String("err", err.Error()))
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	conn.SetReadLimit(wsMaxFrameBytes)

	gw.log.Info("chat.session.start", slog.String("account_id", ac.AccountID))

	ctx := r.Context()
	for {
		readCtx, cancel := context.WithTimeout(ctx, gw.readIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		cancel()
		if err != nil {
			switch classifyReadErr(err) {
			case readErrBadJSON:
				gw.writeError(ctx, conn, "bad_json", "invalid JSON")
				continue
			case readErrClose, readErrCtxDone, readErrConnClosed:
				gw.log.Info("chat.session.end", slog.String("account_id", ac.AccountID))
			default:
				gw.log.Info("chat.read.fail", slog.String("account_id", ac.AccountID), slog.String("err", err.Error()))
			}
			return
		}

		if env.Type != chatv1.TypeUserMessage {
			gw.writeError(ctx, conn, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
			continue
		}
		text := strings.TrimSpace(env.Text)
		if text == "" {
			gw.writeError(ctx, conn, "empty_message", "text is required")
			continue
		}
		if len([]rune(text)) > wsMaxMessageChars {
			gw.writeError(ctx, conn, "message_too_long", fmt.Sprintf("max %d chars", wsMaxMessageChars))
			continue
		}

		reply := chatv1.Envelope{
			Type:    chatv1.TypeAssistantMessage,
			ID:      uuid.NewString(),
			TS:      time.Now().UTC(),
			Text:    gw.advisor.Advise(text),
			ReplyTo: env.ID,
		}
		if err := gw.writeEnvelope(ctx, conn, reply); err != nil {
			gw.log.Info("chat.write.fail", slog.String("account_id", ac.AccountID), slog.String("err", err.Error()))
			return
		}
	}
}

// authenticate accepts the bearer token from the Authorization header or,
// because browser WebSocket clients cannot set headers, a token query
// parameter.
func (gw *Gateway) authenticate(r *http.Request) (gate.AuthContext, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		if tok := strings.TrimSpace(r.URL.Query().Get("token")); tok != "" {
			authz = "Bearer " + tok
		}
	}
	return gw.gate.Authenticate(authz, time.Now().UTC())
}

func (gw *Gateway) writeError(ctx context.Context, conn *websocket.Conn, code, msg string) {
	_ = gw.writeEnvelope(ctx, conn, chatv1.Envelope{
		Type: chatv1.TypeError,
		ID:   uuid.NewString(),
		TS:   time.Now().UTC(),
		Text: msg,
		Code: code,
	})
}

func (gw *Gateway) writeEnvelope(parent context.Context, conn *websocket.Conn, env chatv1.Envelope) error {
	ctx, cancel := context.WithTimeout(parent, gw.writeTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

func readEnvelope(ctx context.Context, conn *websocket.Conn) (chatv1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return chatv1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return chatv1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env chatv1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return chatv1.Envelope{}, errBadJSON
	}
	return env, nil
}

// ---- read error classification ----

var errBadJSON = errors.New("bad json")

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if errors.Is(err, errBadJSON) {
		return readErrBadJSON
	}
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}

// ---- origin policy ----

func (gw *Gateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if gw.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}
	if len(gw.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)
	for _, a := range gw.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			return nil
		}
		if origin == a {
			return nil
		}
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func originPatternsFromAllowed(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
