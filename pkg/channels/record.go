package channels

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Source tags written on every record.
const (
	SourceWhatsApp = "whatsapp"
	SourceTelegram = "telegram"
)

// TimeLayout is the record timestamp format: ISO-8601 UTC with
// milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// MessageRecord is one line of the output log. The key names are shared
// with the other ingest sources, so absent values are written as null
// rather than omitted.
type MessageRecord struct {
	Source         string  `json:"source"`
	ChatID         *string `json:"chat_id"`
	ChatTitle      *string `json:"chat_title"`
	ChatUsername   *string `json:"chat_username"`
	MessageID      *string `json:"message_id"`
	Date           *string `json:"date"`
	SenderID       *string `json:"sender_id"`
	SenderUsername *string `json:"sender_username"`
	Text           string  `json:"text"`
	IsService      bool    `json:"is_service"`
	HasMedia       bool    `json:"has_media"`
	ReplyToMsgID   *string `json:"reply_to_msg_id"`
	RunID          string  `json:"run_id"`
}

func (r MessageRecord) Chat() string { return deref(r.ChatID) }

func (r MessageRecord) ID() string { return deref(r.MessageID) }

// NewRunID formats the start time of a run.
func NewRunID(start time.Time) string {
	return start.UTC().Format(TimeLayout)
}

// Preview collapses whitespace in text and cuts it to at most max runes,
// for log lines.
func Preview(text string, max int) string {
	s := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
