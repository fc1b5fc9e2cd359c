package room

import "time"

// EventType identifies a room-wide broadcast. The names are the wire
// event names the web client listens for.
type EventType string

const (
	EventUsersUpdated    EventType = "usersUpdated"
	EventUserJoined      EventType = "userJoined"
	EventUserLeft        EventType = "userLeft"
	EventHostChanged     EventType = "hostChanged"
	EventSongChanged     EventType = "songChanged"
	EventPlaylistUpdated EventType = "playlistUpdated"
	EventPlaybackUpdate  EventType = "playbackUpdate"
	EventNewChat         EventType = "newChat"
)

// Event is a state-change notification fanned out to every member of a
// room. Events are published while the emitting operation still holds
// the room lock, so the broadcaster observes them in the room's
// processing order.
type Event struct {
	RoomID    string      `json:"roomId"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`

	// ExcludeConn suppresses delivery to the originating connection.
	// Used for playbackUpdate, where the caller already holds the value.
	ExcludeConn string `json:"-"`
}

// SongChangedData accompanies EventSongChanged.
type SongChangedData struct {
	Song           Song           `json:"song"`
	CurrentTime    float64        `json:"currentTime"`
	PlaybackStatus PlaybackStatus `json:"playbackStatus"`
}

// PlaybackUpdateData accompanies EventPlaybackUpdate.
type PlaybackUpdateData struct {
	Status      PlaybackStatus `json:"status"`
	CurrentTime float64        `json:"currentTime"`
}

// Broadcaster delivers events to the current members of a room.
// Delivery is fire-and-forget: a failed delivery to one member must
// not affect other members or the outcome of the triggering operation.
type Broadcaster interface {
	Publish(ev Event)
}
