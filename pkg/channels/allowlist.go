package channels

import "strings"

const (
	groupSuffix = "@g.us"
	userSuffix  = "@s.whatsapp.net"
)

// NormalizeChatID turns a configured chat identifier into its canonical
// local@domain form. Ids that already carry a domain are kept, ids with a
// dash are group ids, anything else is a phone number.
func NormalizeChatID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.Contains(id, "@") {
		return id
	}
	if strings.Contains(id, "-") {
		return id + groupSuffix
	}
	return strings.ReplaceAll(id, "+", "") + userSuffix
}

// NormalizeTelegramChat reduces a configured Telegram chat to the form
// compared against incoming chats: numeric ids are kept, usernames lose
// their @ or t.me prefix and are lowercased.
func NormalizeTelegramChat(id string) string {
	id = strings.TrimSpace(id)
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/", "@"} {
		id = strings.TrimPrefix(id, prefix)
	}
	return strings.ToLower(id)
}

// AllowList restricts ingestion to a set of chats. The zero value allows
// everything.
type AllowList struct {
	ids       map[string]struct{}
	normalize func(string) string
}

// NewAllowList builds a WhatsApp allow-list.
func NewAllowList(ids []string) AllowList {
	return newAllowList(ids, NormalizeChatID)
}

// NewTelegramAllowList builds an allow-list of Telegram chat ids and
// usernames.
func NewTelegramAllowList(ids []string) AllowList {
	return newAllowList(ids, NormalizeTelegramChat)
}

func newAllowList(ids []string, normalize func(string) string) AllowList {
	a := AllowList{normalize: normalize}
	for _, id := range ids {
		n := normalize(id)
		if n == "" {
			continue
		}
		if a.ids == nil {
			a.ids = make(map[string]struct{}, len(ids))
		}
		a.ids[n] = struct{}{}
	}
	return a
}

func (a AllowList) Empty() bool {
	return len(a.ids) == 0
}

func (a AllowList) Len() int {
	return len(a.ids)
}

// IsAllowed reports whether messages from chatID may be ingested. When the
// list is configured, a message without a chat id is not allowed.
func (a AllowList) IsAllowed(chatID string) bool {
	if a.Empty() {
		return true
	}
	normalize := a.normalize
	if normalize == nil {
		normalize = NormalizeChatID
	}
	n := normalize(chatID)
	if n == "" {
		return false
	}
	_, ok := a.ids[n]
	return ok
}
