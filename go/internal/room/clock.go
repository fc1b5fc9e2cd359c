package room

import "time"

// Elapsed playback time is never advanced by a running timer. While a
// room is playing it stores only the anchor instant the current
// playback logically started at; the elapsed value is reconstructed
// from the anchor on every read. While paused the stored elapsed value
// is authoritative and the anchor is unset. This keeps the position
// well defined for a read made any amount of time after a state
// change, with no drift accumulation.

// PlaybackStatus is the room-wide play/pause state.
type PlaybackStatus string

const (
	StatusPlaying PlaybackStatus = "playing"
	StatusPaused  PlaybackStatus = "paused"
)

// anchorFor returns the anchor instant for a playback that has already
// run for elapsed at time now.
func anchorFor(now time.Time, elapsed time.Duration) time.Time {
	return now.Add(-elapsed)
}

// elapsedAt reconstructs the current playback position.
func elapsedAt(status PlaybackStatus, anchor time.Time, stored time.Duration, now time.Time) time.Duration {
	if status == StatusPlaying {
		return now.Sub(anchor)
	}
	return stored
}
