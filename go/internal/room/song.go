package room

import "time"

// StreamURL is one playable rendition of a song, as returned by the
// catalog API (multiple qualities per song).
type StreamURL struct {
	Quality string `json:"quality,omitempty"`
	URL     string `json:"url"`
}

// Song is an immutable catalog entry. The ID is the playlist key; two
// songs with the same ID are never stored twice.
type Song struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	PrimaryArtists string      `json:"primaryArtists,omitempty"`
	DownloadURL    []StreamURL `json:"downloadUrl"`
	DurationSec    float64     `json:"duration,omitempty"`
}

// Validate checks the fields the sync engine depends on.
func (s Song) Validate() error {
	if s.ID == "" {
		return ErrInvalidSong
	}
	return nil
}

// ChatMessage is a single chat entry. Field names match the wire shape
// the web client sends ({user, text, time}).
type ChatMessage struct {
	User string    `json:"user"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}
