package room

import "errors"

var (
	// ErrRoomNotFound is returned when an operation references a room
	// that does not exist. Read-only operations never create rooms.
	ErrRoomNotFound = errors.New("room not found")

	// ErrNotHost is returned when a connection that is not the current
	// host attempts an authoritative playback mutation.
	ErrNotHost = errors.New("only the host can control playback")

	// ErrEmptyPlaylist is returned by Advance when the room has no songs.
	ErrEmptyPlaylist = errors.New("playlist is empty")

	// ErrInvalidSong is returned when a song payload has no id.
	ErrInvalidSong = errors.New("song is missing an id")

	// ErrRoomClosed is returned by Join when the room was evicted
	// between resolution and join. Registry.Join retries on it.
	ErrRoomClosed = errors.New("room closed")
)
