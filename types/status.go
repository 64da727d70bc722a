package types

// PlayerState is the playback state machine's state.
type PlayerState string

const (
	StateStopped PlayerState = "stopped"
	StatePlaying PlayerState = "playing"
	StatePaused  PlayerState = "paused"
)

// PlayerStatus is a point-in-time snapshot of the playback controller.
type PlayerStatus struct {
	State           PlayerState   `json:"state"`
	IsPlaying       bool          `json:"isPlaying"`
	HasEnded        bool          `json:"hasEnded"`
	PositionMs      int64         `json:"positionMs"`
	DurationMs      int64         `json:"durationMs"`
	PositionPercent int           `json:"positionPercent"`
	Volume          int           `json:"volume"`
	Filename        string        `json:"filename,omitempty"`
	Metadata        TrackMetadata `json:"metadata"`
}

// DisplayInfo is a compact rendering of the status for small screens.
type DisplayInfo struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Time     string `json:"time"`
	Progress string `json:"progress"`
	State    string `json:"state"`
	Volume   string `json:"volume"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
}
