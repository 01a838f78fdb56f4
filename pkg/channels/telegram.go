package channels

import (
	"strconv"
	"time"

	"github.com/mymmrac/telego"
)

// TelegramNormalizer builds records from Bot API messages for one run.
type TelegramNormalizer struct {
	runID string
	allow AllowList
}

func NewTelegramNormalizer(runID string, allow AllowList) *TelegramNormalizer {
	return &TelegramNormalizer{runID: runID, allow: allow}
}

// Normalize returns false for nil messages and for chats outside the
// allow-list. A chat is allowed by numeric id or by username.
func (n *TelegramNormalizer) Normalize(msg *telego.Message) (MessageRecord, bool) {
	if msg == nil {
		return MessageRecord{}, false
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	if !n.allow.IsAllowed(chatID) && (msg.Chat.Username == "" || !n.allow.IsAllowed(msg.Chat.Username)) {
		return MessageRecord{}, false
	}

	rec := MessageRecord{
		Source:       SourceTelegram,
		ChatID:       strPtr(chatID),
		ChatTitle:    strPtr(telegramChatTitle(msg.Chat)),
		ChatUsername: strPtr(msg.Chat.Username),
		MessageID:    strPtr(strconv.Itoa(msg.MessageID)),
		Text:         msg.Text,
		IsService:    isTelegramService(msg),
		HasMedia:     hasTelegramMedia(msg),
		RunID:        n.runID,
	}
	if rec.Text == "" {
		rec.Text = msg.Caption
	}
	if msg.Date > 0 {
		rec.Date = strPtr(time.Unix(msg.Date, 0).UTC().Format(TimeLayout))
	}

	switch {
	case msg.From != nil:
		rec.SenderID = strPtr(strconv.FormatInt(msg.From.ID, 10))
		rec.SenderUsername = strPtr(msg.From.Username)
	case msg.SenderChat != nil:
		rec.SenderID = strPtr(strconv.FormatInt(msg.SenderChat.ID, 10))
		rec.SenderUsername = strPtr(msg.SenderChat.Username)
	}
	if msg.ReplyToMessage != nil {
		rec.ReplyToMsgID = strPtr(strconv.Itoa(msg.ReplyToMessage.MessageID))
	}
	return rec, true
}

// Private chats have no title; the peer's name stands in for it.
func telegramChatTitle(c telego.Chat) string {
	if c.Title != "" {
		return c.Title
	}
	if c.LastName != "" {
		return c.FirstName + " " + c.LastName
	}
	return c.FirstName
}

func isTelegramService(m *telego.Message) bool {
	return len(m.NewChatMembers) > 0 ||
		m.LeftChatMember != nil ||
		m.NewChatTitle != "" ||
		len(m.NewChatPhoto) > 0 ||
		m.DeleteChatPhoto ||
		m.GroupChatCreated ||
		m.SupergroupChatCreated ||
		m.ChannelChatCreated ||
		m.MigrateToChatID != 0 ||
		m.MigrateFromChatID != 0 ||
		m.PinnedMessage != nil
}

func hasTelegramMedia(m *telego.Message) bool {
	return len(m.Photo) > 0 ||
		m.Animation != nil ||
		m.Audio != nil ||
		m.Document != nil ||
		m.Sticker != nil ||
		m.Video != nil ||
		m.VideoNote != nil ||
		m.Voice != nil ||
		m.Contact != nil ||
		m.Location != nil ||
		m.Venue != nil ||
		m.Poll != nil
}
