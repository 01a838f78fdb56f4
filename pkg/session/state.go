package session

// SessionState is the manager's view of the session.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateAwaitingPairing
	StateConnected
	StateClosing
	StateReconnectPending
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingPairing:
		return "awaiting-pairing"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateReconnectPending:
		return "reconnect-pending"
	default:
		return "unknown"
	}
}

// Mode selects what the manager does once a session is open.
type Mode int

const (
	// ModeListen ingests messages until the process is stopped.
	ModeListen Mode = iota
	// ModeListChats prints the chat directory once and exits.
	ModeListChats
	// ModePair exits as soon as credentials are linked.
	ModePair
)

func (m Mode) String() string {
	switch m {
	case ModeListen:
		return "listen"
	case ModeListChats:
		return "list-chats"
	case ModePair:
		return "pair"
	default:
		return "unknown"
	}
}
