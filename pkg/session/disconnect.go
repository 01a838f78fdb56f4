package session

import "fmt"

// Disconnect status codes reported by the messaging service.
const (
	StatusLoggedOut           = 401
	StatusConnectionLost      = 408
	StatusConflict            = 409
	StatusMultideviceMismatch = 411
	StatusConnectionClosed    = 428
	StatusConnectionReplaced  = 440
	StatusBadSession          = 500
	StatusUnavailableService  = 503
	StatusRestartRequired     = 515
)

var statusNames = map[int]string{
	StatusLoggedOut:           "logged out",
	StatusConnectionLost:      "connection lost",
	StatusConflict:            "conflict",
	StatusMultideviceMismatch: "multidevice mismatch",
	StatusConnectionClosed:    "connection closed",
	StatusConnectionReplaced:  "connection replaced",
	StatusBadSession:          "bad session",
	StatusUnavailableService:  "unavailable service",
	StatusRestartRequired:     "restart required",
}

// DisconnectKind is what the manager does after a close.
type DisconnectKind int

const (
	ActionBackoff DisconnectKind = iota
	ActionRestartRequired
	ActionFatal
)

func (k DisconnectKind) String() string {
	switch k {
	case ActionFatal:
		return "fatal"
	case ActionRestartRequired:
		return "restart-required"
	default:
		return "backoff"
	}
}

type DisconnectAction struct {
	Kind DisconnectKind
	// Reason is set for ActionFatal.
	Reason string
}

// ClassifyDisconnect maps a close status code to an action. Zero means the
// provider gave no code.
func ClassifyDisconnect(code int) DisconnectAction {
	switch code {
	case StatusConnectionReplaced, StatusConflict:
		return DisconnectAction{
			Kind:   ActionFatal,
			Reason: "session replaced: another client is using the same credentials",
		}
	case StatusRestartRequired:
		return DisconnectAction{Kind: ActionRestartRequired}
	default:
		return DisconnectAction{Kind: ActionBackoff}
	}
}

// DescribeStatus renders a status code for logs.
func DescribeStatus(code int) string {
	if code == 0 {
		return "no status"
	}
	if name, ok := statusNames[code]; ok {
		return fmt.Sprintf("%d %s", code, name)
	}
	return fmt.Sprintf("%d", code)
}
