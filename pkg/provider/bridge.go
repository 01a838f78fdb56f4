package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/tinyland-inc/chatsink/pkg/bus"
	"github.com/tinyland-inc/chatsink/pkg/logger"
	"github.com/tinyland-inc/chatsink/pkg/session"
)

const (
	DefaultBridgeURL    = "ws://localhost:3001"
	defaultFetchTimeout = 30 * time.Second
)

// ErrSessionClosed is returned by requests on a closed session.
var ErrSessionClosed = errors.New("bridge session closed")

// Browser identifies this client to the messaging service.
var Browser = [3]string{"Mac OS", "Desktop", "10.15.7"}

type BridgeOption func(*Bridge)

// WithFetchTimeout bounds FetchGroupMetadata.
func WithFetchTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) { b.fetchTimeout = d }
}

// Bridge is a session.Provider backed by a bridge process.
type Bridge struct {
	transport    string
	dial         func(ctx context.Context) (frameConn, error)
	fetchTimeout time.Duration
}

// NewWebsocketBridge connects to a running bridge at url.
func NewWebsocketBridge(url string, opts ...BridgeOption) *Bridge {
	if url == "" {
		url = DefaultBridgeURL
	}
	return newBridge("websocket", func(ctx context.Context) (frameConn, error) {
		return dialWebsocket(ctx, url)
	}, opts)
}

// NewCommandBridge starts command for every session and talks to it over
// its standard streams.
func NewCommandBridge(command string, opts ...BridgeOption) *Bridge {
	return newBridge("process", func(ctx context.Context) (frameConn, error) {
		return startProcess(ctx, command)
	}, opts)
}

func newBridge(transport string, dial func(context.Context) (frameConn, error), opts []BridgeOption) *Bridge {
	b := &Bridge{
		transport:    transport,
		dial:         dial,
		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type openPayload struct {
	SessionID       string                     `json:"session_id"`
	Creds           json.RawMessage            `json:"creds,omitempty"`
	Keys            map[string]json.RawMessage `json:"keys,omitempty"`
	Version         bus.Version                `json:"version"`
	Browser         [3]string                  `json:"browser"`
	SyncFullHistory bool                       `json:"syncFullHistory"`
}

// Open connects to the bridge and asks it to start a session with the
// stored credentials. Events flow to req.Events until Close.
func (b *Bridge) Open(ctx context.Context, req session.OpenRequest) (session.Handle, error) {
	conn, err := b.dial(ctx)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &bridgeSession{
		id:           uuid.NewString(),
		conn:         conn,
		events:       req.Events,
		ctx:          sctx,
		cancel:       cancel,
		pending:      make(map[uint64]chan Envelope),
		done:         make(chan struct{}),
		fetchTimeout: b.fetchTimeout,
	}

	payload := openPayload{
		SessionID: s.id,
		Version:   req.Version,
		Browser:   Browser,
	}
	if req.Auth != nil {
		payload.Creds = req.Auth.Creds
		payload.Keys = req.Auth.Keys
	}
	if err := s.send(TypeOpen, 0, payload); err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("sending open: %w", err)
	}

	go s.readLoop()

	logger.InfoCF("bridge", "Bridge session opened", map[string]any{
		"transport":  b.transport,
		"session_id": s.id,
	})
	return s, nil
}

type bridgeSession struct {
	id           string
	conn         frameConn
	events       bus.Publisher
	ctx          context.Context
	cancel       context.CancelFunc
	fetchTimeout time.Duration

	nextID    atomic.Uint64
	pendingMu sync.Mutex
	pending   map[uint64]chan Envelope

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func (s *bridgeSession) send(typ string, id uint64, data any) error {
	env := Envelope{Type: typ, ID: id}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", typ, err)
		}
		env.Data = raw
	}
	return s.write(env)
}

func (s *bridgeSession) write(env Envelope) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.conn.WriteFrame(frame)
}

func (s *bridgeSession) readLoop() {
	defer close(s.done)
	defer s.failPending()

	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			if !s.closing.Load() {
				logger.WarnCF("bridge", "Bridge connection lost", map[string]any{
					"session_id": s.id,
					"error":      err.Error(),
				})
				s.publish(bus.Event{
					Kind: bus.EventConnectionUpdate,
					Connection: &bus.ConnectionUpdate{
						Connection:     bus.ConnectionClose,
						LastDisconnect: &bus.DisconnectInfo{Message: err.Error()},
					},
				})
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			logger.WarnCF("bridge", "Invalid envelope", map[string]any{"error": err.Error()})
			continue
		}
		if err := s.dispatch(env); err != nil {
			logger.WarnCF("bridge", "Dropping envelope", map[string]any{
				"type":  env.Type,
				"error": err.Error(),
			})
		}
	}
}

func (s *bridgeSession) dispatch(env Envelope) error {
	switch env.Type {
	case TypeCredsUpdate:
		var u bus.CredentialsUpdate
		if err := json.Unmarshal(env.Data, &u); err != nil {
			return err
		}
		s.publish(bus.Event{
			Kind:        bus.EventCredentialsUpdated,
			Credentials: &u,
			Ack:         s.ackFunc(env.ID),
		})

	case TypeConnectionUpdate:
		s.publish(bus.Event{
			Kind:       bus.EventConnectionUpdate,
			Connection: decodeConnection(env.Data),
		})

	case TypeMessagesUpsert:
		var u bus.MessagesUpsert
		if err := json.Unmarshal(env.Data, &u); err != nil {
			return err
		}
		s.publish(bus.Event{Kind: bus.EventMessagesReceived, Messages: &u})

	case TypeChatsSet:
		var p struct {
			Chats []bus.Chat `json:"chats"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		s.publish(bus.Event{Kind: bus.EventChatsSet, Chats: p.Chats})

	case TypeChatsUpsert:
		var chats []bus.Chat
		if err := json.Unmarshal(env.Data, &chats); err != nil {
			return err
		}
		s.publish(bus.Event{Kind: bus.EventChatsUpserted, Chats: chats})

	case TypeResponse:
		s.resolve(env)

	default:
		logger.DebugCF("bridge", "Ignoring envelope", map[string]any{"type": env.Type})
	}
	return nil
}

// decodeConnection reads a connection update. The disconnect status is
// taken from lastDisconnect.statusCode or, as forwarded verbatim by some
// bridges, lastDisconnect.error.output.statusCode.
func decodeConnection(data json.RawMessage) *bus.ConnectionUpdate {
	doc := gjson.ParseBytes(data)
	u := &bus.ConnectionUpdate{
		Connection: bus.ConnectionStatus(doc.Get("connection").String()),
		QR:         doc.Get("qr").String(),
	}
	if ld := doc.Get("lastDisconnect"); ld.IsObject() {
		code := ld.Get("statusCode")
		if !code.Exists() {
			code = ld.Get("error.output.statusCode")
		}
		msg := ld.Get("message").String()
		if msg == "" {
			msg = ld.Get("error.message").String()
		}
		u.LastDisconnect = &bus.DisconnectInfo{StatusCode: int(code.Int()), Message: msg}
	}
	return u
}

func (s *bridgeSession) publish(ev bus.Event) {
	if err := s.events.Publish(s.ctx, ev); err != nil && !s.closing.Load() {
		logger.DebugCF("bridge", "Event not delivered", map[string]any{
			"kind":  string(ev.Kind),
			"error": err.Error(),
		})
	}
}

// ackFunc tells the bridge that a credentials update has been persisted.
// The bridge holds back further network traffic until it arrives.
func (s *bridgeSession) ackFunc(id uint64) func(error) {
	return func(err error) {
		env := Envelope{Type: TypeCredsAck, ID: id}
		if err != nil {
			env.Error = err.Error()
		}
		if werr := s.write(env); werr != nil && !s.closing.Load() {
			logger.WarnCF("bridge", "Failed to ack credentials", map[string]any{"error": werr.Error()})
		}
	}
}

// request sends an envelope and waits for the response with the same id.
func (s *bridgeSession) request(ctx context.Context, typ string, data any) (Envelope, error) {
	id := s.nextID.Add(1)
	ch := make(chan Envelope, 1)

	s.pendingMu.Lock()
	if s.pending == nil {
		s.pendingMu.Unlock()
		return Envelope{}, ErrSessionClosed
	}
	s.pending[id] = ch
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		if s.pending != nil {
			delete(s.pending, id)
		}
		s.pendingMu.Unlock()
	}()

	if err := s.send(typ, id, data); err != nil {
		return Envelope{}, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Envelope{}, ErrSessionClosed
		}
		if resp.Error != "" {
			return resp, fmt.Errorf("bridge: %s", resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func (s *bridgeSession) resolve(env Envelope) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if ch, ok := s.pending[env.ID]; ok {
		ch <- env
		delete(s.pending, env.ID)
	}
}

func (s *bridgeSession) failPending() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
	s.pending = nil
}

// FetchGroupMetadata returns every group the account participates in, in
// the order the bridge lists them.
func (s *bridgeSession) FetchGroupMetadata(ctx context.Context) ([]bus.Chat, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	resp, err := s.request(ctx, TypeGroupsFetch, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching groups: %w", err)
	}

	var chats []bus.Chat
	gjson.ParseBytes(resp.Data).ForEach(func(key, value gjson.Result) bool {
		id := value.Get("id").String()
		if id == "" && key.Type == gjson.String {
			id = key.String()
		}
		if id != "" {
			chats = append(chats, bus.Chat{
				ID:      id,
				Name:    value.Get("name").String(),
				Subject: value.Get("subject").String(),
			})
		}
		return true
	})
	return chats, nil
}

// Close ends the session. It is safe to call more than once.
func (s *bridgeSession) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		if err := s.send(TypeClose, 0, nil); err != nil {
			logger.DebugCF("bridge", "Close not sent", map[string]any{"error": err.Error()})
		}
		s.cancel()
		s.closeErr = s.conn.Close()
		<-s.done
		logger.DebugCF("bridge", "Bridge session closed", map[string]any{"session_id": s.id})
	})
	return s.closeErr
}
