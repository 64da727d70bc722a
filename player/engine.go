package player

// Engine opens audio files into playable sessions. Exactly one session
// is live at a time; the controller closes the old one before opening
// the next.
type Engine interface {
	Open(path string) (Session, error)
}

// Session is a single decoded track wired to the output device. A
// session starts silent; Start begins emitting audio from the current
// offset.
type Session interface {
	Start() error
	Pause()
	Resume()
	Paused() bool
	SeekMs(ms int64) error
	PositionMs() int64
	DurationMs() int64
	Ended() bool
	SetVolume(level float64)
	Close() error
}
