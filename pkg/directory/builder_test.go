package directory

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/chatsink/pkg/bus"
)

func name(s string) *string { return &s }

func TestRecordFromChat(t *testing.T) {
	tests := []struct {
		in   bus.Chat
		want ChatRecord
	}{
		{
			bus.Chat{ID: "1-2@g.us", Subject: "Family"},
			ChatRecord{ID: "1-2@g.us", Name: name("Family"), IsGroup: true},
		},
		{
			bus.Chat{ID: "49@s.whatsapp.net", Name: "Alice", Subject: "ignored"},
			ChatRecord{ID: "49@s.whatsapp.net", Name: name("Alice"), IsUser: true},
		},
		{
			bus.Chat{ID: "status@broadcast"},
			ChatRecord{ID: "status@broadcast"},
		},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, RecordFromChat(tt.in)); diff != "" {
			t.Errorf("RecordFromChat(%q) mismatch (-want +got):\n%s", tt.in.ID, diff)
		}
	}
}

func TestBuilder_LastWriteWinsFirstSeenOrder(t *testing.T) {
	b := NewBuilder(0)
	b.Observe(bus.Chat{ID: "a", Name: "A1"}, bus.Chat{ID: "b", Name: "B"})
	b.Observe(bus.Chat{ID: "a", Name: "A2"})
	b.Observe(bus.Chat{ID: ""})

	want := []ChatRecord{
		{ID: "a", Name: name("A2")},
		{ID: "b", Name: name("B")},
	}
	if diff := cmp.Diff(want, b.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, b.Len())
}

func TestBuilder_LimitKeepsFirstObserved(t *testing.T) {
	b := NewBuilder(1)
	b.Observe(bus.Chat{ID: "first"}, bus.Chat{ID: "second"})
	b.Observe(bus.Chat{ID: "first", Name: "renamed"})

	got := b.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].ID)
	assert.Equal(t, "renamed", *got[0].Name)
}

func TestBuilder_FinalizeOnce(t *testing.T) {
	b := NewBuilder(0)
	b.Observe(bus.Chat{ID: "x@g.us"})

	got, ok := b.Finalize([]bus.Chat{{ID: "x@g.us", Subject: "Team"}, {ID: "y@g.us", Subject: "Ops"}})
	require.True(t, ok)
	want := []ChatRecord{
		{ID: "x@g.us", Name: name("Team"), IsGroup: true},
		{ID: "y@g.us", Name: name("Ops"), IsGroup: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("finalize mismatch (-want +got):\n%s", diff)
	}

	again, ok := b.Finalize([]bus.Chat{{ID: "z@g.us"}})
	assert.False(t, ok)
	assert.Nil(t, again)
	assert.Equal(t, 2, b.Len())
	assert.True(t, b.Finalized())
}

func TestPrinter_Text(t *testing.T) {
	var buf bytes.Buffer
	err := NewPrinter(&buf, false).Print([]ChatRecord{
		{ID: "1-2@g.us", Name: name("Family"), IsGroup: true},
		{ID: "49@s.whatsapp.net", IsUser: true},
		{ID: "status@broadcast", Name: name("Status")},
	})
	require.NoError(t, err)

	want := strings.Join([]string{
		"1-2@g.us\tgroup\tFamily",
		"49@s.whatsapp.net\tuser\t",
		"status@broadcast\tchat\tStatus",
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	err := NewPrinter(&buf, true).Print([]ChatRecord{
		{ID: "1-2@g.us", Name: name("A&B"), IsGroup: true},
		{ID: "49@s.whatsapp.net", IsUser: true},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"id":"1-2@g.us","name":"A&B","is_group":true,"is_user":false}`, lines[0])
	assert.JSONEq(t, `{"id":"49@s.whatsapp.net","name":null,"is_group":false,"is_user":true}`, lines[1])
}
