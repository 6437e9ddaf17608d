// Package main provides a CI-friendly smoke test for the chat advisor.
//
// It validates:
//   - signup + signin over the HTTP JSON API
//   - WebSocket handshake with token auth + subprotocol selection
//   - user.message -> assistant.message round trip with reply_to linkage
//   - error envelopes for empty messages and invalid JSON
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"

	chatv1 "agrimitra/shared/contracts/chat/v1"
)

const maxReadBytes = 1 << 20 // 1MiB

func main() {
	var (
		baseURL  = flag.String("base", "http://127.0.0.1:8080", "HTTP base URL of the server")
		wsURL    = flag.String("ws", "ws://127.0.0.1:8080/ws/chat", "WebSocket URL")
		origin   = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		email    = flag.String("email", "", "Account email (default: generated throwaway)")
		password = flag.String("password", "smoke-Passw0rd!", "Account password")
		text     = flag.String("text", "how much water does my wheat need?", "Message text to send")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -ws: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	acctEmail := strings.TrimSpace(*email)
	username := ""
	if acctEmail == "" {
		tag := fmt.Sprintf("smoke%d", time.Now().UnixNano())
		acctEmail = tag + "@example.com"
		username = tag
	} else {
		username = strings.SplitN(acctEmail, "@", 2)[0]
	}

	root := context.Background()

	token := mustToken(root, *baseURL, username, acctEmail, *password, *timeout)
	if *verbose {
		fmt.Printf("signed in: email=%s token_len=%d\n", acctEmail, len(token))
	}

	conn := mustConnect(root, *wsURL, *origin, token, *timeout)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	userMsgID := fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	mustWrite(root, conn, chatv1.Envelope{
		Type: chatv1.TypeUserMessage,
		ID:   userMsgID,
		TS:   time.Now().UTC(),
		Text: *text,
	}, *timeout)

	reply := mustRead(root, conn, *timeout)
	if reply.Type != chatv1.TypeAssistantMessage {
		fatalf("expected %s, got %q (code=%q text=%q)", chatv1.TypeAssistantMessage, reply.Type, reply.Code, reply.Text)
	}
	if reply.ReplyTo != userMsgID {
		fatalf("reply_to mismatch: got=%q want=%q", reply.ReplyTo, userMsgID)
	}
	if strings.TrimSpace(reply.Text) == "" {
		fatalf("assistant message has empty text")
	}

	mustWrite(root, conn, chatv1.Envelope{
		Type: chatv1.TypeUserMessage,
		ID:   userMsgID + "-empty",
		TS:   time.Now().UTC(),
	}, *timeout)
	mustErrorCode(root, conn, "empty_message", *timeout)

	mustWriteRaw(root, conn, []byte("{not json"), *timeout)
	mustErrorCode(root, conn, "bad_json", *timeout)

	fmt.Printf("OK: email=%s reply_to=%s advice=%q\n", acctEmail, reply.ReplyTo, reply.Text)
}

// mustToken registers the throwaway account (tolerating an existing one)
// and signs in, returning the bearer token.
func mustToken(parent context.Context, baseURL, username, email, password string, stepTimeout time.Duration) string {
	signupBody := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	status, raw, err := postJSON(parent, baseURL+"/api/users/signup", signupBody, stepTimeout)
	if err != nil {
		fatalf("signup: %v", err)
	}
	if status != http.StatusOK && !isConflictBody(raw) {
		fatalf("signup: unexpected status %d: %s", status, raw)
	}

	signinBody := map[string]string{"email": email, "password": password}
	status, raw, err = postJSON(parent, baseURL+"/api/users/signin", signinBody, stepTimeout)
	if err != nil {
		fatalf("signin: %v", err)
	}
	if status != http.StatusOK {
		fatalf("signin: unexpected status %d: %s", status, raw)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		fatalf("signin: decode response: %v", err)
	}
	if strings.TrimSpace(resp.Token) == "" {
		fatalf("signin: missing token in response")
	}
	return resp.Token
}

// isConflictBody reports whether an error response says the account
// already exists, which the smoke test tolerates when reusing an email.
func isConflictBody(raw []byte) bool {
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return false
	}
	return resp.Code == "conflict"
}

func postJSON(parent context.Context, target string, body any, stepTimeout time.Duration) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(b))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func mustConnect(parent context.Context, wsURL, origin, token string, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{chatv1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}

	if resp != nil {
		got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
		if got != "" && got != chatv1.Subprotocol {
			fatalf("subprotocol mismatch: got=%q", got)
		}
	}

	conn.SetReadLimit(maxReadBytes)
	return conn
}

func mustRead(parent context.Context, conn *websocket.Conn, stepTimeout time.Duration) chatv1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	mt, data, err := conn.Read(ctx)
	if err != nil {
		fatalf("read: %v", err)
	}
	if mt != websocket.MessageText {
		fatalf("read: unexpected message type: %v", mt)
	}

	var env chatv1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		fatalf("read: bad json: %v", err)
	}
	return env
}

func mustErrorCode(parent context.Context, conn *websocket.Conn, wantCode string, stepTimeout time.Duration) {
	env := mustRead(parent, conn, stepTimeout)
	if env.Type != chatv1.TypeError {
		fatalf("expected error envelope, got %q", env.Type)
	}
	if env.Code != wantCode {
		fatalf("error code mismatch: got=%q want=%q", env.Code, wantCode)
	}
}

func mustWrite(parent context.Context, conn *websocket.Conn, env chatv1.Envelope, stepTimeout time.Duration) {
	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	mustWriteRaw(parent, conn, b, stepTimeout)
}

func mustWriteRaw(parent context.Context, conn *websocket.Conn, b []byte, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
