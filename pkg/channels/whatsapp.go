// Package channels turns raw WhatsApp bridge payloads and Telegram Bot API
// messages into flat MessageRecords.
package channels

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var mediaTypes = map[string]bool{
	"imageMessage":    true,
	"videoMessage":    true,
	"audioMessage":    true,
	"documentMessage": true,
	"stickerMessage":  true,
}

// ContentType returns the content variant of a message object: the first
// key, in document order, that is "conversation" or names a *Message
// payload. Key-distribution and context-info keys never count.
func ContentType(message gjson.Result) string {
	if !message.IsObject() {
		return ""
	}
	var found string
	message.ForEach(func(key, _ gjson.Result) bool {
		k := key.String()
		if k == "senderKeyDistributionMessage" || k == "messageContextInfo" {
			return true
		}
		if k == "conversation" || strings.Contains(k, "Message") {
			found = k
			return false
		}
		return true
	})
	return found
}

// ExtractText returns the human-readable text of a message object, or ""
// for variants that carry none.
func ExtractText(message gjson.Result) string {
	typ := ContentType(message)
	body := message.Get(gjson.Escape(typ))

	switch typ {
	case "conversation":
		return body.String()
	case "extendedTextMessage":
		return body.Get("text").String()
	case "imageMessage", "videoMessage", "documentMessage":
		return body.Get("caption").String()
	case "buttonsResponseMessage":
		return body.Get("selectedButtonId").String()
	case "listResponseMessage":
		return body.Get("singleSelectReply.selectedRowId").String()
	case "templateButtonReplyMessage":
		return body.Get("selectedId").String()
	default:
		return ""
	}
}

// HasMedia reports whether the message variant carries an attachment.
func HasMedia(message gjson.Result) bool {
	return mediaTypes[ContentType(message)]
}

// Normalizer builds records for one run.
type Normalizer struct {
	runID string
	allow AllowList
}

func NewNormalizer(runID string, allow AllowList) *Normalizer {
	return &Normalizer{runID: runID, allow: allow}
}

// Normalize converts one raw message. ok is false when the message must
// not be written: it was sent by this account, or its chat is outside the
// allow-list. Unknown or malformed payloads still yield a record.
func (n *Normalizer) Normalize(raw json.RawMessage) (MessageRecord, bool) {
	msg := gjson.ParseBytes(raw)
	key := msg.Get("key")

	if key.Get("fromMe").Bool() {
		return MessageRecord{}, false
	}

	chatID := key.Get("remoteJid").String()
	if !n.allow.IsAllowed(chatID) {
		return MessageRecord{}, false
	}

	senderID := key.Get("participant").String()
	if senderID == "" {
		senderID = chatID
	}

	content := msg.Get("message")
	rec := MessageRecord{
		Source:       SourceWhatsApp,
		ChatID:       strPtr(chatID),
		MessageID:    strPtr(key.Get("id").String()),
		Date:         formatTimestamp(msg.Get("messageTimestamp")),
		SenderID:     strPtr(senderID),
		IsService:    isService(msg.Get("messageStubType")),
		HasMedia:     HasMedia(content),
		ReplyToMsgID: strPtr(replyTo(content)),
		RunID:        n.runID,
	}
	if !rec.IsService {
		rec.Text = ExtractText(content)
	}
	return rec, true
}

func isService(stub gjson.Result) bool {
	switch stub.Type {
	case gjson.Number:
		return stub.Int() != 0
	case gjson.String:
		s := stub.String()
		return s != "" && s != "0"
	case gjson.True:
		return true
	default:
		return false
	}
}

func replyTo(content gjson.Result) string {
	if id := content.Get("extendedTextMessage.contextInfo.stanzaId").String(); id != "" {
		return id
	}
	typ := ContentType(content)
	if typ == "" || typ == "conversation" {
		return ""
	}
	return content.Get(gjson.Escape(typ) + ".contextInfo.stanzaId").String()
}

// formatTimestamp accepts seconds as a number, a numeric string or a
// {low, high} 64-bit pair. Zero or missing yields nil.
func formatTimestamp(ts gjson.Result) *string {
	var secs int64
	switch {
	case ts.Type == gjson.Number:
		secs = ts.Int()
	case ts.Type == gjson.String:
		v, err := strconv.ParseInt(strings.TrimSpace(ts.String()), 10, 64)
		if err != nil {
			return nil
		}
		secs = v
	case ts.IsObject():
		low := uint32(ts.Get("low").Int())
		high := uint32(ts.Get("high").Int())
		secs = int64(uint64(high)<<32 | uint64(low))
	}
	if secs <= 0 {
		return nil
	}
	s := time.Unix(secs, 0).UTC().Format(TimeLayout)
	return &s
}
