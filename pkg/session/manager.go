// Package session owns the lifecycle of one messaging session: it opens the
// provider, persists credentials, reconnects with backoff after transient
// closes and routes provider events to the ingest pipeline or the chat
// directory.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tinyland-inc/chatsink/pkg/bus"
	"github.com/tinyland-inc/chatsink/pkg/channels"
	"github.com/tinyland-inc/chatsink/pkg/clock"
	"github.com/tinyland-inc/chatsink/pkg/credentials"
	"github.com/tinyland-inc/chatsink/pkg/directory"
	"github.com/tinyland-inc/chatsink/pkg/logger"
)

const component = "session"

const (
	DefaultSettleDelay = 3 * time.Second
	listGrace          = 200 * time.Millisecond
	pairGrace          = time.Second
	previewLength      = 120
)

// Provider opens sessions with the messaging service.
type Provider interface {
	Open(ctx context.Context, req OpenRequest) (Handle, error)
}

type OpenRequest struct {
	Auth    *credentials.AuthState
	Version bus.Version
	// Events receives every event of the opened session. Events published
	// after the session is closed are discarded by the manager.
	Events bus.Publisher
}

// Handle is one open session.
type Handle interface {
	FetchGroupMetadata(ctx context.Context) ([]bus.Chat, error)
	Close() error
}

type CredentialStore interface {
	Load() (*credentials.AuthState, error)
	Save(creds json.RawMessage, keys map[string]json.RawMessage) error
}

// PairingPresenter shows a pairing challenge to the operator.
type PairingPresenter interface {
	PresentQR(code string)
}

// RecordWriter receives normalized message records.
type RecordWriter interface {
	Append(v any) error
}

type Option func(*Manager)

func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

func WithVersion(v bus.Version) Option {
	return func(m *Manager) { m.version = v }
}

func WithPresenter(p PairingPresenter) Option {
	return func(m *Manager) { m.presenter = p }
}

// WithMessageSink enables ingestion: every incoming message accepted by n
// is written to w.
func WithMessageSink(n *channels.Normalizer, w RecordWriter) Option {
	return func(m *Manager) {
		m.normalizer = n
		m.writer = w
	}
}

// WithMessageLog turns on one log line per saved message.
func WithMessageLog(enabled bool) Option {
	return func(m *Manager) { m.logMessages = enabled }
}

// WithChatDirectory sets the directory filled in chat listing mode and
// the function that prints its final snapshot.
func WithChatDirectory(b *directory.Builder, print func([]directory.ChatRecord) error) Option {
	return func(m *Manager) {
		m.dir = b
		m.printChats = print
	}
}

func WithSettleDelay(d time.Duration) Option {
	return func(m *Manager) { m.settleDelay = d }
}

// WithStateHook registers fn to be called, on the manager goroutine, after
// every state transition.
func WithStateHook(fn func(SessionState)) Option {
	return func(m *Manager) { m.stateHook = fn }
}

// Manager runs the session state machine. All fields below are owned by
// the goroutine executing Run.
type Manager struct {
	mode      Mode
	provider  Provider
	store     CredentialStore
	clock     clock.Clock
	policy    RetryPolicy
	version   bus.Version
	presenter PairingPresenter
	events    *bus.EventBus

	normalizer  *channels.Normalizer
	writer      RecordWriter
	logMessages bool

	dir         *directory.Builder
	printChats  func([]directory.ChatRecord) error
	settleDelay time.Duration
	stateHook   func(SessionState)

	state         SessionState
	attempt       int
	generation    uint64
	handle        Handle
	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	reconnectC <-chan time.Time
	settleC    <-chan time.Time
	graceC     <-chan time.Time
	groupsC    chan []bus.Chat
	groups     []bus.Chat

	wg sync.WaitGroup
}

func NewManager(mode Mode, provider Provider, store CredentialStore, opts ...Option) *Manager {
	m := &Manager{
		mode:        mode,
		provider:    provider,
		store:       store,
		clock:       clock.Real(),
		policy:      DefaultRetryPolicy(),
		settleDelay: DefaultSettleDelay,
		state:       StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events = bus.NewEventBus()
	if m.mode == ModeListChats && m.dir == nil {
		m.dir = directory.NewBuilder(0)
	}
	return m
}

// Run drives sessions until a terminal outcome. It returns nil when ctx is
// cancelled or the mode's work is done, ErrSessionReplaced,
// ErrRestartRequired or ErrRetryExhausted (wrapped) on terminal failures,
// and an error when credentials cannot be loaded.
func (m *Manager) Run(ctx context.Context) error {
	defer m.events.Close()
	defer m.drain()
	defer m.wg.Wait()
	defer m.closeSession()

	logger.InfoCF(component, "Starting session manager", map[string]any{
		"mode":         m.mode.String(),
		"max_attempts": m.policy.MaxAttempts,
		"base_delay":   m.policy.BaseDelay.String(),
	})

	if stop, err := m.connect(ctx); stop {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			logger.InfoC(component, "Shutting down")
			m.setState(StateClosing)
			return nil

		case ev := <-m.events.Events():
			if stop, err := m.dispatch(ev); stop {
				return err
			}

		case <-m.reconnectC:
			m.reconnectC = nil
			if stop, err := m.connect(ctx); stop {
				return err
			}

		case chats := <-m.groupsC:
			m.groupsC = nil
			m.groups = chats
			m.settleC = m.clock.After(m.settleDelay)

		case <-m.settleC:
			m.settleC = nil
			if stop, err := m.finishListing(); stop {
				return err
			}

		case <-m.graceC:
			m.setState(StateDisconnected)
			return nil
		}
	}
}

func (m *Manager) connect(ctx context.Context) (bool, error) {
	auth, err := m.store.Load()
	if err != nil {
		m.setState(StateDisconnected)
		return true, fmt.Errorf("loading credentials: %w", err)
	}

	m.generation++
	m.setState(StateConnecting)

	sctx, cancel := context.WithCancel(ctx)
	h, err := m.provider.Open(sctx, OpenRequest{
		Auth:    auth,
		Version: m.version,
		Events:  m.events.Stamped(m.generation),
	})
	if err != nil {
		cancel()
		logger.WarnCF(component, "Opening session failed", map[string]any{
			"error": err.Error(),
		})
		m.setState(StateClosing)
		return m.scheduleReconnect()
	}

	m.handle = h
	m.sessionCtx = sctx
	m.sessionCancel = cancel
	logger.DebugCF(component, "Session opened", map[string]any{
		"generation": m.generation,
		"paired":     auth.Paired(),
	})
	return false, nil
}

// closeSession closes the current handle. Anything the handle publishes
// afterwards is stale.
func (m *Manager) closeSession() {
	if m.handle == nil {
		return
	}
	h := m.handle
	m.handle = nil
	m.generation++
	// A group fetch still running belongs to this session; the next open
	// starts a new one.
	m.groupsC = nil

	if err := h.Close(); err != nil {
		logger.DebugCF(component, "Closing session", map[string]any{"error": err.Error()})
	}
	if m.sessionCancel != nil {
		m.sessionCancel()
		m.sessionCancel = nil
		m.sessionCtx = nil
	}
}

func (m *Manager) dispatch(ev bus.Event) (bool, error) {
	// Credentials are persisted whichever session produced them.
	if ev.Kind == bus.EventCredentialsUpdated {
		m.saveCredentials(ev)
		return false, nil
	}
	defer ack(ev, nil)

	if m.handle == nil || ev.Generation != m.generation {
		logger.DebugCF(component, "Dropping stale event", map[string]any{
			"kind":       string(ev.Kind),
			"generation": ev.Generation,
			"current":    m.generation,
		})
		return false, nil
	}

	switch ev.Kind {
	case bus.EventConnectionUpdate:
		if ev.Connection != nil {
			return m.onConnection(ev.Connection)
		}
	case bus.EventMessagesReceived:
		m.onMessages(ev.Messages)
	case bus.EventChatsSet, bus.EventChatsUpserted:
		if m.dir != nil {
			m.dir.Observe(ev.Chats...)
		}
	}
	return false, nil
}

func ack(ev bus.Event, err error) {
	if ev.Ack != nil {
		ev.Ack(err)
	}
}

func (m *Manager) saveCredentials(ev bus.Event) {
	var err error
	if ev.Credentials != nil {
		err = m.store.Save(ev.Credentials.Creds, ev.Credentials.Keys)
	}
	if err != nil {
		logger.ErrorCF(component, "Saving credentials failed", map[string]any{"error": err.Error()})
	} else if ev.Credentials != nil {
		logger.DebugCF(component, "Credentials saved", map[string]any{
			"creds": len(ev.Credentials.Creds) > 0,
			"keys":  len(ev.Credentials.Keys),
		})
	}
	ack(ev, err)
}

func (m *Manager) onConnection(u *bus.ConnectionUpdate) (bool, error) {
	if u.QR != "" {
		m.setState(StateAwaitingPairing)
		logger.DebugC(component, "Pairing code received")
		if m.presenter != nil {
			m.presenter.PresentQR(u.QR)
		}
	}

	switch u.Connection {
	case bus.ConnectionOpen:
		return m.onOpen()
	case bus.ConnectionClose:
		return m.onClose(u.LastDisconnect)
	}
	return false, nil
}

func (m *Manager) onOpen() (bool, error) {
	m.attempt = 0
	m.setState(StateConnected)
	logger.InfoC(component, "Connected")

	switch m.mode {
	case ModePair:
		logger.InfoC(component, "Login successful")
		m.finish(pairGrace)
	case ModeListChats:
		if m.groupsC == nil && m.settleC == nil && !m.dir.Finalized() {
			m.fetchGroups()
		}
	}
	return false, nil
}

func (m *Manager) fetchGroups() {
	h, ctx := m.handle, m.sessionCtx
	ch := make(chan []bus.Chat, 1)
	m.groupsC = ch
	logger.DebugCF(component, "Fetching group metadata", map[string]any{"known_chats": m.dir.Len()})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		chats, err := h.FetchGroupMetadata(ctx)
		if err != nil {
			logger.WarnCF(component, "Fetching group metadata failed", map[string]any{"error": err.Error()})
			chats = nil
		}
		ch <- chats
	}()
}

func (m *Manager) finishListing() (bool, error) {
	records, ok := m.dir.Finalize(m.groups)
	if ok {
		if m.printChats != nil {
			if err := m.printChats(records); err != nil {
				return true, fmt.Errorf("printing chats: %w", err)
			}
		}
		logger.InfoCF(component, "Chat listing complete", map[string]any{"chats": len(records)})
	}
	m.finish(listGrace)
	return false, nil
}

// finish closes the session and ends Run after grace.
func (m *Manager) finish(grace time.Duration) {
	m.closeSession()
	m.reconnectC = nil
	m.setState(StateClosing)
	m.graceC = m.clock.After(grace)
}

func (m *Manager) onClose(info *bus.DisconnectInfo) (bool, error) {
	var code int
	var reason string
	if info != nil {
		code, reason = info.StatusCode, info.Message
	}
	action := ClassifyDisconnect(code)

	m.closeSession()
	m.setState(StateClosing)

	fields := map[string]any{"status": DescribeStatus(code)}
	if reason != "" {
		fields["reason"] = reason
	}

	switch action.Kind {
	case ActionFatal:
		logger.ErrorCF(component,
			"Session replaced: another client is using the same credentials. Stop the other listener or use a separate auth dir",
			fields)
		m.setState(StateDisconnected)
		return true, fmt.Errorf("%w (%s)", ErrSessionReplaced, DescribeStatus(code))
	case ActionRestartRequired:
		if m.mode == ModeListChats {
			logger.WarnCF(component, "Restart required; run the command again", fields)
			m.setState(StateDisconnected)
			return true, ErrRestartRequired
		}
		logger.InfoCF(component, "Restart required", fields)
	default:
		logger.InfoCF(component, "Connection closed", fields)
	}
	return m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() (bool, error) {
	if m.reconnectC != nil {
		logger.DebugC(component, "Reconnect already pending")
		return false, nil
	}

	m.attempt++
	if m.policy.Exhausted(m.attempt) {
		logger.ErrorCF(component, "Max reconnect attempts reached; giving up", map[string]any{
			"max_attempts": m.policy.MaxAttempts,
		})
		m.setState(StateDisconnected)
		return true, fmt.Errorf("%w after %d attempts", ErrRetryExhausted, m.policy.MaxAttempts)
	}

	delay := m.policy.Delay(m.attempt)
	m.setState(StateReconnectPending)
	logger.InfoCF(component, "Reconnecting", map[string]any{
		"delay":        delay.String(),
		"attempt":      m.attempt,
		"max_attempts": m.policy.MaxAttempts,
	})
	m.reconnectC = m.clock.After(delay)
	return false, nil
}

func (m *Manager) onMessages(u *bus.MessagesUpsert) {
	if u == nil || m.normalizer == nil || m.writer == nil {
		return
	}
	if u.Type != "notify" {
		logger.DebugCF(component, "Skipping message batch", map[string]any{
			"type":  u.Type,
			"count": len(u.Messages),
		})
		return
	}

	for _, raw := range u.Messages {
		rec, ok := m.normalizer.Normalize(raw)
		if !ok {
			continue
		}
		if err := m.writer.Append(rec); err != nil {
			logger.ErrorCF(component, "Writing message failed", map[string]any{
				"chat":  rec.Chat(),
				"id":    rec.ID(),
				"error": err.Error(),
			})
			continue
		}
		if m.logMessages {
			logger.InfoCF("whatsapp", "Saved message", map[string]any{
				"chat": rec.Chat(),
				"id":   rec.ID(),
				"text": channels.Preview(rec.Text, previewLength),
			})
		}
	}
}

// drain persists credentials still queued when Run returns.
func (m *Manager) drain() {
	for {
		select {
		case ev := <-m.events.Events():
			if ev.Kind == bus.EventCredentialsUpdated {
				m.saveCredentials(ev)
				continue
			}
			ack(ev, nil)
		default:
			return
		}
	}
}

func (m *Manager) setState(s SessionState) {
	if s == m.state {
		return
	}
	logger.DebugCF(component, "State change", map[string]any{
		"from": m.state.String(),
		"to":   s.String(),
	})
	m.state = s
	if m.stateHook != nil {
		m.stateHook(s)
	}
}
