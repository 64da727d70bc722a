package types

import "time"

// Topic names for WebSocket subscriptions.
const (
	TopicStatus    = "status"
	TopicDownloads = "downloads"
)

// Event is a WebSocket push message on a topic: a playback status
// snapshot, a download job update, or both absent for plain notices.
type Event struct {
	Topic     string        `json:"topic"`
	Type      string        `json:"type"` // "status", "progress", "complete", "error"
	Message   string        `json:"message,omitempty"`
	Playback  *PlayerStatus `json:"playback,omitempty"`
	Job       *DownloadJob  `json:"job,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
