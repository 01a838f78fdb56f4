// Package provider talks to the WhatsApp bridge, the process that owns the
// messaging protocol, and turns its messages into bus events.
//
// Every frame in either direction is one JSON envelope:
//
//	{"type": "messages.upsert", "id": 12, "data": {...}, "error": ""}
//
// The bridge can be reached over a websocket or run as a child process
// speaking Content-Length framed envelopes on stdin/stdout.
package provider

import "encoding/json"

// Envelope types sent by the bridge.
const (
	TypeCredsUpdate      = "creds.update"
	TypeConnectionUpdate = "connection.update"
	TypeMessagesUpsert   = "messages.upsert"
	TypeChatsSet         = "chats.set"
	TypeChatsUpsert      = "chats.upsert"
	TypeResponse         = "response"
)

// Envelope types sent to the bridge.
const (
	TypeOpen        = "open"
	TypeCredsAck    = "creds.ack"
	TypeGroupsFetch = "groups.fetch"
	TypeClose       = "close"
)

type Envelope struct {
	Type  string          `json:"type"`
	ID    uint64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// frameConn carries whole envelopes.
type frameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
}
