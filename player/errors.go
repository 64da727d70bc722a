package player

import "errors"

var (
	// ErrNotFound means the requested audio file does not exist.
	ErrNotFound = errors.New("track not found")

	// ErrPlayback wraps failures inside the audio engine.
	ErrPlayback = errors.New("playback error")
)
