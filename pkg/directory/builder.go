// Package directory collects the chats a session reports and renders them
// as a list for picking allow-list entries.
package directory

import (
	"strings"

	"github.com/tinyland-inc/chatsink/pkg/bus"
)

// ChatRecord is one entry of the chat listing.
type ChatRecord struct {
	ID      string  `json:"id"`
	Name    *string `json:"name"`
	IsGroup bool    `json:"is_group"`
	IsUser  bool    `json:"is_user"`
}

// Kind is "group", "user" or "chat".
func (r ChatRecord) Kind() string {
	switch {
	case r.IsGroup:
		return "group"
	case r.IsUser:
		return "user"
	default:
		return "chat"
	}
}

func RecordFromChat(c bus.Chat) ChatRecord {
	rec := ChatRecord{
		ID:      c.ID,
		IsGroup: strings.HasSuffix(c.ID, "@g.us"),
		IsUser:  strings.HasSuffix(c.ID, "@s.whatsapp.net"),
	}
	name := c.Name
	if name == "" {
		name = c.Subject
	}
	if name != "" {
		rec.Name = &name
	}
	return rec
}

// Builder is an insertion-ordered map of chats. A later observation of the
// same id replaces the record but keeps its original position.
type Builder struct {
	limit     int
	order     []string
	chats     map[string]ChatRecord
	finalized bool
}

// NewBuilder returns an empty builder. limit <= 0 means no limit.
func NewBuilder(limit int) *Builder {
	return &Builder{
		limit: limit,
		chats: make(map[string]ChatRecord),
	}
}

// Observe merges chats into the directory. Chats without an id are
// ignored.
func (b *Builder) Observe(chats ...bus.Chat) {
	for _, c := range chats {
		if c.ID == "" {
			continue
		}
		if _, seen := b.chats[c.ID]; !seen {
			b.order = append(b.order, c.ID)
		}
		b.chats[c.ID] = RecordFromChat(c)
	}
}

func (b *Builder) Len() int {
	return len(b.order)
}

// Snapshot returns the current list in first-seen order, cut to the
// limit.
func (b *Builder) Snapshot() []ChatRecord {
	n := len(b.order)
	if b.limit > 0 && b.limit < n {
		n = b.limit
	}
	out := make([]ChatRecord, 0, n)
	for _, id := range b.order[:n] {
		out = append(out, b.chats[id])
	}
	return out
}

// Finalize merges extra and returns the final list. It succeeds once;
// later calls return ok false and leave the directory untouched.
func (b *Builder) Finalize(extra []bus.Chat) (records []ChatRecord, ok bool) {
	if b.finalized {
		return nil, false
	}
	b.finalized = true
	b.Observe(extra...)
	return b.Snapshot(), true
}

func (b *Builder) Finalized() bool {
	return b.finalized
}
