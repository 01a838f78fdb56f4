package channels

import (
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramNormalizer_GroupMessage(t *testing.T) {
	n := NewTelegramNormalizer("run-1", NewTelegramAllowList(nil))
	sent := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	rec, ok := n.Normalize(&telego.Message{
		MessageID:      42,
		Date:           sent.Unix(),
		Chat:           telego.Chat{ID: -1001234567890, Type: "supergroup", Title: "Ops", Username: "opsroom"},
		From:           &telego.User{ID: 777, FirstName: "Ana", Username: "ana"},
		Text:           "deploy done",
		ReplyToMessage: &telego.Message{MessageID: 41},
	})
	require.True(t, ok)

	assert.Equal(t, SourceTelegram, rec.Source)
	assert.Equal(t, "-1001234567890", deref(rec.ChatID))
	assert.Equal(t, "Ops", deref(rec.ChatTitle))
	assert.Equal(t, "opsroom", deref(rec.ChatUsername))
	assert.Equal(t, "42", deref(rec.MessageID))
	assert.Equal(t, "2026-03-04T05:06:07.000Z", deref(rec.Date))
	assert.Equal(t, "777", deref(rec.SenderID))
	assert.Equal(t, "ana", deref(rec.SenderUsername))
	assert.Equal(t, "deploy done", rec.Text)
	assert.Equal(t, "41", deref(rec.ReplyToMsgID))
	assert.False(t, rec.IsService)
	assert.False(t, rec.HasMedia)
	assert.Equal(t, "run-1", rec.RunID)
}

func TestTelegramNormalizer_ChannelPostWithCaption(t *testing.T) {
	n := NewTelegramNormalizer("run-1", NewTelegramAllowList(nil))

	rec, ok := n.Normalize(&telego.Message{
		MessageID:  7,
		Chat:       telego.Chat{ID: -1009, Type: "channel", Title: "News"},
		SenderChat: &telego.Chat{ID: -1009, Title: "News", Username: "newsfeed"},
		Caption:    "photo caption",
		Photo:      []telego.PhotoSize{{FileID: "f1", Width: 10, Height: 10}},
	})
	require.True(t, ok)

	assert.Equal(t, "photo caption", rec.Text)
	assert.True(t, rec.HasMedia)
	assert.Equal(t, "-1009", deref(rec.SenderID))
	assert.Equal(t, "newsfeed", deref(rec.SenderUsername))
	assert.Nil(t, rec.ChatUsername)
	assert.Nil(t, rec.Date)
	assert.Nil(t, rec.ReplyToMsgID)
}

func TestTelegramNormalizer_ServiceMessage(t *testing.T) {
	n := NewTelegramNormalizer("run-1", NewTelegramAllowList(nil))

	rec, ok := n.Normalize(&telego.Message{
		MessageID:      3,
		Chat:           telego.Chat{ID: 5, Type: "private", FirstName: "Ana", LastName: "Lima"},
		NewChatMembers: []telego.User{{ID: 9, FirstName: "Bo"}},
	})
	require.True(t, ok)
	assert.True(t, rec.IsService)
	assert.Equal(t, "Ana Lima", deref(rec.ChatTitle))
	assert.Equal(t, "", rec.Text)
	assert.Nil(t, rec.SenderID)
}

func TestTelegramNormalizer_AllowList(t *testing.T) {
	n := NewTelegramNormalizer("run-1", NewTelegramAllowList([]string{"@OpsRoom", "-1002"}))

	_, ok := n.Normalize(&telego.Message{Chat: telego.Chat{ID: -1001, Username: "opsroom"}})
	assert.True(t, ok, "allowed by username")

	_, ok = n.Normalize(&telego.Message{Chat: telego.Chat{ID: -1002}})
	assert.True(t, ok, "allowed by id")

	_, ok = n.Normalize(&telego.Message{Chat: telego.Chat{ID: -1003, Username: "elsewhere"}})
	assert.False(t, ok)

	_, ok = n.Normalize(nil)
	assert.False(t, ok)
}
