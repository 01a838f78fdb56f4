package bus

import "encoding/json"

// EventKind names a provider event.
type EventKind string

const (
	EventCredentialsUpdated EventKind = "credentials-updated"
	EventConnectionUpdate   EventKind = "connection-state-changed"
	EventMessagesReceived   EventKind = "messages-received"
	EventChatsSet           EventKind = "chats-set"
	EventChatsUpserted      EventKind = "chats-upserted"
)

// ConnectionStatus is the provider's view of the socket.
type ConnectionStatus string

const (
	ConnectionConnecting ConnectionStatus = "connecting"
	ConnectionOpen       ConnectionStatus = "open"
	ConnectionClose      ConnectionStatus = "close"
)

// Version is the messaging-service protocol version the provider
// announces, e.g. [2, 3000, 1023223821].
type Version [3]int

// DisconnectInfo describes why a connection closed. StatusCode is zero
// when the provider could not name a cause (transport loss).
type DisconnectInfo struct {
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message,omitempty"`
}

type ConnectionUpdate struct {
	Connection     ConnectionStatus `json:"connection,omitempty"`
	QR             string           `json:"qr,omitempty"` // pairing challenge payload
	LastDisconnect *DisconnectInfo  `json:"lastDisconnect,omitempty"`
}

// CredentialsUpdate carries the opaque credential blob and any changed
// signal keys. A null key value means the key was removed.
type CredentialsUpdate struct {
	Creds json.RawMessage            `json:"creds,omitempty"`
	Keys  map[string]json.RawMessage `json:"keys,omitempty"`
}

// MessagesUpsert is one batch of messages. Type is "notify" for new
// traffic and "append" for history backfill.
type MessagesUpsert struct {
	Type     string            `json:"type"`
	Messages []json.RawMessage `json:"messages"`
}

// Chat is a conversation as reported by chat snapshots, upserts and
// group metadata.
type Chat struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// Event is one item on the ordered stream between a provider session
// and the session manager. Exactly one payload field is set, matching
// Kind.
type Event struct {
	Kind EventKind
	// Generation identifies the provider session that produced the
	// event; the publisher handed to Open stamps it.
	Generation uint64

	Credentials *CredentialsUpdate
	Connection  *ConnectionUpdate
	Messages    *MessagesUpsert
	Chats       []Chat

	// Ack, when set, must be called once the event has been handled.
	// Providers use it to hold back network traffic until credentials
	// are on disk.
	Ack func(error)
}
