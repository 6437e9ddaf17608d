// Package v1 defines the wire contract for the chat advisor WebSocket.
// Both the server and external clients (smoke tools, the mobile app)
// speak this shape.
package v1

import "time"

const (
	Subprotocol = "agrimitra.chat.v1"

	TypeUserMessage      = "user.message"
	TypeAssistantMessage = "assistant.message"
	TypeError            = "error"
)

// Envelope is the chat wire format, both directions.
//
// Server-to-client error envelopes carry Code; assistant replies carry
// ReplyTo referencing the triggering user message ID.
type Envelope struct {
	Type    string    `json:"type"`
	ID      string    `json:"id"`
	TS      time.Time `json:"ts"`
	Text    string    `json:"text,omitempty"`
	ReplyTo string    `json:"reply_to,omitempty"`
	Code    string    `json:"code,omitempty"`
}
