package storage

import (
	"strings"

	"github.com/google/uuid"
)

// Origin identifies one open store in change notifications, so that a
// Watcher can skip the writes its own process made. Notifications carry
// "<origin>|<key>".
type Origin string

const originSep = "|"

// NewOrigin returns a random Origin.
func NewOrigin() Origin {
	return Origin(uuid.NewString())
}

// Tag formats the notification payload for a write of key.
func (o Origin) Tag(key string) string {
	return string(o) + originSep + key
}

// Foreign parses a notification payload. ok is false when the write was
// made through o. Payloads without an origin are treated as foreign.
func (o Origin) Foreign(payload string) (key string, ok bool) {
	from, key, found := strings.Cut(payload, originSep)
	if !found {
		return payload, true
	}
	if Origin(from) == o {
		return "", false
	}
	return key, true
}

// Filter wraps fn so that it only sees writes made by other stores.
func (o Origin) Filter(fn func(key string)) func(payload string) {
	return func(payload string) {
		if key, ok := o.Foreign(payload); ok {
			fn(key)
		}
	}
}
