package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymmrac/telego"

	"github.com/tinyland-inc/chatsink/pkg/channels"
	"github.com/tinyland-inc/chatsink/pkg/clock"
	"github.com/tinyland-inc/chatsink/pkg/logger"
	"github.com/tinyland-inc/chatsink/pkg/session"
)

const previewLength = 120

var errUpdatesClosed = errors.New("update stream closed")

// UpdateSource starts a stream of Bot API updates. The stream must end
// when ctx is done.
type UpdateSource interface {
	Updates(ctx context.Context) (<-chan telego.Update, error)
}

type Option func(*Listener)

func WithClock(c clock.Clock) Option {
	return func(l *Listener) { l.clock = c }
}

func WithRetryPolicy(p session.RetryPolicy) Option {
	return func(l *Listener) { l.policy = p }
}

// WithMessageLog turns on one log line per saved message.
func WithMessageLog(enabled bool) Option {
	return func(l *Listener) { l.logMessages = enabled }
}

// Listener appends every accepted message to a record writer until its
// context ends or reconnects are exhausted.
type Listener struct {
	source      UpdateSource
	normalizer  *channels.TelegramNormalizer
	writer      session.RecordWriter
	clock       clock.Clock
	policy      session.RetryPolicy
	logMessages bool
}

func NewListener(src UpdateSource, n *channels.TelegramNormalizer, w session.RecordWriter, opts ...Option) *Listener {
	l := &Listener{
		source:     src,
		normalizer: n,
		writer:     w,
		clock:      clock.Real(),
		policy:     session.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run returns nil when ctx is cancelled and wraps
// session.ErrRetryExhausted once the stream could not be kept up. The
// attempt counter resets every time polling starts.
func (l *Listener) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := l.poll(ctx, &attempt)
		if ctx.Err() != nil {
			logger.InfoC(component, "Listener stopped")
			return nil
		}
		logger.WarnCF(component, "Disconnected", map[string]any{"error": err.Error()})

		attempt++
		if l.policy.Exhausted(attempt) {
			logger.ErrorCF(component, "Max reconnect attempts reached; giving up", map[string]any{
				"max_attempts": l.policy.MaxAttempts,
			})
			return fmt.Errorf("%w after %d attempts: %v", session.ErrRetryExhausted, l.policy.MaxAttempts, err)
		}

		delay := l.policy.Delay(attempt)
		logger.InfoCF(component, "Reconnecting", map[string]any{
			"delay":        delay.String(),
			"attempt":      attempt,
			"max_attempts": l.policy.MaxAttempts,
		})
		select {
		case <-ctx.Done():
			logger.InfoC(component, "Listener stopped")
			return nil
		case <-l.clock.After(delay):
		}
	}
}

func (l *Listener) poll(ctx context.Context, attempt *int) error {
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := l.source.Updates(pollCtx)
	if err != nil {
		return err
	}
	*attempt = 0
	logger.InfoC(component, "Listener started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return errUpdatesClosed
			}
			l.handle(u)
		}
	}
}

func (l *Listener) handle(u telego.Update) {
	msg := u.Message
	if msg == nil {
		msg = u.ChannelPost
	}
	if msg == nil {
		logger.DebugCF(component, "Skipping update", map[string]any{"update_id": u.UpdateID})
		return
	}

	rec, ok := l.normalizer.Normalize(msg)
	if !ok {
		return
	}
	if err := l.writer.Append(rec); err != nil {
		logger.ErrorCF(component, "Writing message failed", map[string]any{
			"chat":  rec.Chat(),
			"id":    rec.ID(),
			"error": err.Error(),
		})
		return
	}
	if l.logMessages {
		logger.InfoCF(component, "Saved message", map[string]any{
			"chat": rec.Chat(),
			"id":   rec.ID(),
			"text": channels.Preview(rec.Text, previewLength),
		})
	}
}
