package scheduler

import "strings"

// Control events are delivered through the same channel as tag ids.
// They never collide with real tags because device uids are normalized
// with the TAG_ prefix.
const (
	EventQuit  = "QUIT"
	EventLearn = "LEARN"
	EventNext  = "NEXT"
	EventPrev  = "PREV"
)

// TagReader is polled by the scheduler. ReadTag never blocks: it
// returns the next pending tag id or control event, or an empty string
// when nothing is waiting.
type TagReader interface {
	ReadTag() (string, error)
	Close() error
}

// NormalizeTagID uppercases a raw reader uid and ensures the TAG_
// prefix, matching the form mappings are stored under.
func NormalizeTagID(raw string) string {
	id := strings.ToUpper(strings.TrimSpace(raw))
	id = strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return -1
	}, id)
	if id == "" {
		return ""
	}
	if !strings.HasPrefix(id, "TAG_") {
		id = "TAG_" + id
	}
	return id
}
