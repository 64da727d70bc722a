package types

import "time"

// TrackMetadata represents metadata for an audio file in the catalog.
type TrackMetadata struct {
	Title      string    `json:"title,omitempty"`
	Artist     string    `json:"artist,omitempty"`
	Album      string    `json:"album,omitempty"`
	SizeBytes  int64     `json:"sizeBytes"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// TrackRecord is one entry in the catalog database, keyed by its path
// relative to the music root.
type TrackRecord struct {
	Metadata       TrackMetadata `json:"metadata"`
	LastPositionMs int64         `json:"lastPositionMs"`
}

// TrackInfo is the listing shape returned to API consumers: one audio
// file plus the tag mapped to it, if any.
type TrackInfo struct {
	Filename string        `json:"filename"`
	Path     string        `json:"path"`
	Metadata TrackMetadata `json:"metadata"`
	MappedTo string        `json:"mappedTo,omitempty"`
}
