package gateway

import (
	"encoding/json"

	"github.com/mcdev12/listenroom/go/internal/room"
)

// RequestType identifies a client request. The names match the events
// the web client emits.
type RequestType string

const (
	ReqJoinRoom       RequestType = "joinRoom"
	ReqLeaveRoom      RequestType = "leaveRoom"
	ReqRoomState      RequestType = "requestRoomState"
	ReqChatHistory    RequestType = "requestChat"
	ReqSendChat       RequestType = "sendChat"
	ReqPlaySong       RequestType = "playSong"
	ReqUpdatePlayback RequestType = "updatePlayback"
	ReqNextSong       RequestType = "nextSong"
	ReqPrevSong       RequestType = "prevSong"
	ReqAddSong        RequestType = "addSong"
)

// Request is the client-to-server envelope. ID is echoed on the ack so
// the client can match responses to requests.
type Request struct {
	ID      string          `json:"id,omitempty"`
	Type    RequestType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Ack is the synchronous result of one request: a success value or a
// recoverable error, never both. A failed request has not mutated any
// room state and has produced no broadcast.
type Ack struct {
	ID      string      `json:"id,omitempty"`
	Type    string      `json:"type"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func okAck(id string, data interface{}) Ack {
	return Ack{ID: id, Type: "ack", Success: true, Data: data}
}

func errAck(id string, err error) Ack {
	return Ack{ID: id, Type: "ack", Success: false, Error: err.Error()}
}

// JoinRoomPayload carries joinRoom fields. Both are required.
type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// RoomIDPayload carries the requests that only name a room.
type RoomIDPayload struct {
	RoomID string `json:"roomId"`
}

// PlaySongPayload carries playSong fields. StartOffset is in seconds;
// a client seizing hostship mid-song passes its local position.
type PlaySongPayload struct {
	RoomID      string    `json:"roomId"`
	Song        room.Song `json:"song"`
	StartOffset float64   `json:"startOffset"`
}

// UpdatePlaybackPayload carries the host's reported playback state.
type UpdatePlaybackPayload struct {
	RoomID      string              `json:"roomId"`
	Status      room.PlaybackStatus `json:"status"`
	CurrentTime float64             `json:"currentTime"`
}

// AddSongPayload carries addSong fields.
type AddSongPayload struct {
	RoomID string    `json:"roomId"`
	Song   room.Song `json:"song"`
}

// SendChatPayload carries sendChat fields.
type SendChatPayload struct {
	RoomID string           `json:"roomId"`
	Msg    room.ChatMessage `json:"msg"`
}

// JoinRoomData is the joinRoom ack payload.
type JoinRoomData struct {
	RoomState room.Snapshot `json:"roomState"`
}

// ChatHistoryData is the requestChat ack payload.
type ChatHistoryData struct {
	History []room.ChatMessage `json:"history"`
}
