package repositories

import (
	"fmt"
	"strings"
	"time"
)

// Describe decodes a raw record for read-only inspection. It returns the record
// kind and a one line summary; ok is false when the value cannot be decoded.
func Describe(key string, val []byte) (kind string, detail string, ok bool) {
	switch {
	case strings.HasPrefix(key, chatPrefix):
		var d diskChat
		if err := unmarshal(val, &d); err != nil {
			return "CHAT", "", false
		}
		kind = "DIRECT"
		if d.IsGroup {
			kind = "GROUP"
		}
		detail = fmt.Sprintf("%q members=%s", d.Name, strings.Join(d.Members, ","))
		if d.LatestMessage != nil {
			detail += fmt.Sprintf(" latest=%s@%s", d.LatestMessage.SenderID,
				time.Unix(0, d.LatestMessage.CreatedAt).UTC().Format(time.RFC3339))
		}
		return kind, detail, true
	case strings.HasPrefix(key, messageIDPrefix):
		return "MSGID", string(val), true
	case strings.HasPrefix(key, messagePrefix):
		var d diskMessage
		if err := unmarshal(val, &d); err != nil {
			return "MESSAGE", "", false
		}
		return "MESSAGE", fmt.Sprintf("%s: %s (read by %d)", d.SenderID, d.Content, len(d.ReadBy)), true
	case strings.HasPrefix(key, pairPrefix):
		return "PAIR", string(val), true
	case strings.HasPrefix(key, memberPrefix):
		return "MEMBER", "", true
	}
	return "RAW", "", false
}
