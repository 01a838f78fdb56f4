package session

import "errors"

var (
	// ErrSessionReplaced means another client took over the credentials.
	// The manager never reconnects after it.
	ErrSessionReplaced = errors.New("session replaced")
	// ErrRestartRequired is returned in chat listing mode when the service
	// asks for a restart; the caller should run the command again.
	ErrRestartRequired = errors.New("restart required")
	ErrRetryExhausted  = errors.New("reconnect attempts exhausted")
)
