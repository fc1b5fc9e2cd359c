package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnchorForRoundTrips(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	anchor := anchorFor(now, 42*time.Second)

	assert.Equal(t, now.Add(-42*time.Second), anchor)
	assert.Equal(t, 42*time.Second, elapsedAt(StatusPlaying, anchor, 0, now))
}

func TestElapsedAtWhilePlaying(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	anchor := anchorFor(now, 10*time.Second)

	// Elapsed grows with the reading instant, stored value is ignored
	assert.Equal(t, 10*time.Second, elapsedAt(StatusPlaying, anchor, 99*time.Second, now))
	assert.Equal(t, 15*time.Second, elapsedAt(StatusPlaying, anchor, 99*time.Second, now.Add(5*time.Second)))
}

func TestElapsedAtWhilePaused(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// Paused ignores the anchor entirely
	assert.Equal(t, 7*time.Second, elapsedAt(StatusPaused, now.Add(-time.Hour), 7*time.Second, now))
	assert.Equal(t, 7*time.Second, elapsedAt(StatusPaused, time.Time{}, 7*time.Second, now.Add(time.Minute)))
}

func TestElapsedAtZeroTimeAfterAnchor(t *testing.T) {
	// A read made zero time after a state change is well-defined
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	anchor := anchorFor(now, 0)

	assert.Equal(t, time.Duration(0), elapsedAt(StatusPlaying, anchor, 0, now))
}
