// Package chat serves the farming assistant over an authenticated WebSocket
// at /ws/chat. The assistant is a rule-based placeholder: it matches crop
// and problem keywords against a small advice table so the product surface
// works end to end before a real model is plugged in. The wire format is
// defined in shared/contracts/chat/v1.
package chat
