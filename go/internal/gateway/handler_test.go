package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/listenroom/go/internal/room"
)

func newTestService(t *testing.T) (*Service, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewService(DefaultConfig(), clock), clock
}

func newTestConn(svc *Service, id string) *Connection {
	return &Connection{
		ID:      id,
		Send:    make(chan []byte, 64),
		Manager: svc.manager,
	}
}

func mustPayload(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func testSong(id string) room.Song {
	return room.Song{
		ID:   id,
		Name: "song " + id,
		DownloadURL: []room.StreamURL{
			{Quality: "320kbps", URL: "https://cdn.example.com/" + id + ".mp3"},
		},
	}
}

func join(t *testing.T, svc *Service, conn *Connection, roomID, username string) Ack {
	t.Helper()
	ack := svc.router.dispatch(conn, Request{
		ID:      "req-join",
		Type:    ReqJoinRoom,
		Payload: mustPayload(t, JoinRoomPayload{RoomID: roomID, Username: username}),
	})
	require.True(t, ack.Success, "join failed: %s", ack.Error)
	return ack
}

func TestJoinRoomReturnsSnapshot(t *testing.T) {
	svc, _ := newTestService(t)
	conn := newTestConn(svc, "conn-a")

	ack := join(t, svc, conn, "jam", "alice")

	assert.Equal(t, "req-join", ack.ID)
	data, ok := ack.Data.(JoinRoomData)
	require.True(t, ok)
	assert.Equal(t, "jam", data.RoomState.RoomID)
	assert.Equal(t, []string{"alice"}, data.RoomState.Users)
	assert.Equal(t, "conn-a", data.RoomState.HostID)
	assert.Equal(t, room.DefaultSyncPolicy(), data.RoomState.Sync)
	assert.Equal(t, "jam", conn.RoomID())
}

func TestJoinRoomValidatesFields(t *testing.T) {
	svc, _ := newTestService(t)
	conn := newTestConn(svc, "conn-a")

	ack := svc.router.dispatch(conn, Request{
		Type:    ReqJoinRoom,
		Payload: mustPayload(t, JoinRoomPayload{RoomID: "jam"}),
	})

	assert.False(t, ack.Success)
	assert.Equal(t, errMissingUsername.Error(), ack.Error)
	// validation failures never create the room
	_, err := svc.registry.Get("jam")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestRoomStateRequiresExistingRoom(t *testing.T) {
	svc, _ := newTestService(t)
	conn := newTestConn(svc, "conn-a")

	ack := svc.router.dispatch(conn, Request{
		Type:    ReqRoomState,
		Payload: mustPayload(t, RoomIDPayload{RoomID: "nowhere"}),
	})

	assert.False(t, ack.Success)
	assert.Equal(t, room.ErrRoomNotFound.Error(), ack.Error)
	// requestRoomState never creates a room
	assert.Equal(t, 0, svc.registry.Len())
}

func TestRoomStateDoesNotMutateMembership(t *testing.T) {
	svc, _ := newTestService(t)
	alice := newTestConn(svc, "conn-a")
	join(t, svc, alice, "jam", "alice")

	bob := newTestConn(svc, "conn-b")
	ack := svc.router.dispatch(bob, Request{
		Type:    ReqRoomState,
		Payload: mustPayload(t, RoomIDPayload{RoomID: "jam"}),
	})

	require.True(t, ack.Success)
	data := ack.Data.(JoinRoomData)
	assert.Equal(t, []string{"alice"}, data.RoomState.Users)
}

func TestPlaySongAndSnapshotElapsed(t *testing.T) {
	svc, clock := newTestService(t)
	conn := newTestConn(svc, "conn-a")
	join(t, svc, conn, "jam", "alice")

	ack := svc.router.dispatch(conn, Request{
		Type:    ReqPlaySong,
		Payload: mustPayload(t, PlaySongPayload{RoomID: "jam", Song: testSong("s1")}),
	})
	require.True(t, ack.Success, ack.Error)

	clock.Advance(8 * time.Second)
	stateAck := svc.router.dispatch(conn, Request{
		Type:    ReqRoomState,
		Payload: mustPayload(t, RoomIDPayload{RoomID: "jam"}),
	})
	require.True(t, stateAck.Success)
	snap := stateAck.Data.(JoinRoomData).RoomState
	assert.Equal(t, room.StatusPlaying, snap.PlaybackStatus)
	assert.InDelta(t, 8.0, snap.CurrentTime, 0.05)
}

func TestPlaySongRejectsInvalidSong(t *testing.T) {
	svc, _ := newTestService(t)
	conn := newTestConn(svc, "conn-a")
	join(t, svc, conn, "jam", "alice")

	ack := svc.router.dispatch(conn, Request{
		Type:    ReqPlaySong,
		Payload: mustPayload(t, PlaySongPayload{RoomID: "jam", Song: room.Song{Name: "no id"}}),
	})

	assert.False(t, ack.Success)
	assert.Equal(t, room.ErrInvalidSong.Error(), ack.Error)
}

func TestUpdatePlaybackNotHost(t *testing.T) {
	svc, _ := newTestService(t)
	alice := newTestConn(svc, "conn-a")
	bob := newTestConn(svc, "conn-b")
	join(t, svc, alice, "jam", "alice")
	join(t, svc, bob, "jam", "bob")

	playAck := svc.router.dispatch(alice, Request{
		Type:    ReqPlaySong,
		Payload: mustPayload(t, PlaySongPayload{RoomID: "jam", Song: testSong("s1")}),
	})
	require.True(t, playAck.Success)

	ack := svc.router.dispatch(bob, Request{
		Type: ReqUpdatePlayback,
		Payload: mustPayload(t, UpdatePlaybackPayload{
			RoomID: "jam", Status: room.StatusPaused, CurrentTime: 10,
		}),
	})

	assert.False(t, ack.Success)
	assert.Equal(t, room.ErrNotHost.Error(), ack.Error)
}

func TestUpdatePlaybackValidatesStatus(t *testing.T) {
	svc, _ := newTestService(t)
	conn := newTestConn(svc, "conn-a")
	join(t, svc, conn, "jam", "alice")

	ack := svc.router.dispatch(conn, Request{
		Type: ReqUpdatePlayback,
		Payload: mustPayload(t, UpdatePlaybackPayload{
			RoomID: "jam", Status: "rewinding", CurrentTime: 1,
		}),
	})

	assert.False(t, ack.Success)
	assert.Equal(t, errBadStatus.Error(), ack.Error)
}

func TestUpdatePlaybackClampsNegativeTime(t *testing.T) {
	svc, _ := newTestService(t)
	conn := newTestConn(svc, "conn-a")
	join(t, svc, conn, "jam", "alice")

	playAck := svc.router.dispatch(conn, Request{
		Type:    ReqPlaySong,
		Payload: mustPayload(t, PlaySongPayload{RoomID: "jam", Song: testSong("s1")}),
	})
	require.True(t, playAck.Success)

	ack := svc.router.dispatch(conn, Request{
		Type: ReqUpdatePlayback,
		Payload: mustPayload(t, UpdatePlaybackPayload{
			RoomID: "jam", Status: room.StatusPaused, CurrentTime: -42,
		}),
	})
	require.True(t, ack.Success, ack.Error)

	stateAck := svc.router.dispatch(conn, Request{
		Type:    ReqRoomState,
		Payload: mustPayload(t, RoomIDPayload{RoomID: "jam"}),
	})
	require.True(t, stateAck.Success)
	snap := stateAck.Data.(JoinRoomData).RoomState
	assert.Equal(t, room.StatusPaused, snap.PlaybackStatus)
	assert.Equal(t, 0.0, snap.CurrentTime)
}

func TestNextPrevRouting(t *testing.T) {
	svc, _ := newTestService(t)
	conn := newTestConn(svc, "conn-a")
	join(t, svc, conn, "jam", "alice")

	for _, s := range []string{"s1", "s2"} {
		ack := svc.router.dispatch(conn, Request{
			Type:    ReqAddSong,
			Payload: mustPayload(t, AddSongPayload{RoomID: "jam", Song: testSong(s)}),
		})
		require.True(t, ack.Success)
	}

	nextAck := svc.router.dispatch(conn, Request{
		Type:    ReqNextSong,
		Payload: mustPayload(t, RoomIDPayload{RoomID: "jam"}),
	})
	require.True(t, nextAck.Success, nextAck.Error)

	stateAck := svc.router.dispatch(conn, Request{
		Type:    ReqRoomState,
		Payload: mustPayload(t, RoomIDPayload{RoomID: "jam"}),
	})
	snap := stateAck.Data.(JoinRoomData).RoomState
	require.NotNil(t, snap.CurrentSong)
	assert.Equal(t, "s2", snap.CurrentSong.ID)

	prevAck := svc.router.dispatch(conn, Request{
		Type:    ReqPrevSong,
		Payload: mustPayload(t, RoomIDPayload{RoomID: "jam"}),
	})
	require.True(t, prevAck.Success)
}

func TestChatRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	conn := newTestConn(svc, "conn-a")
	join(t, svc, conn, "jam", "alice")

	sendAck := svc.router.dispatch(conn, Request{
		Type: ReqSendChat,
		Payload: mustPayload(t, SendChatPayload{
			RoomID: "jam",
			Msg:    room.ChatMessage{User: "alice", Text: "hello"},
		}),
	})
	require.True(t, sendAck.Success)

	histAck := svc.router.dispatch(conn, Request{
		Type:    ReqChatHistory,
		Payload: mustPayload(t, RoomIDPayload{RoomID: "jam"}),
	})
	require.True(t, histAck.Success)
	data := histAck.Data.(ChatHistoryData)
	require.Len(t, data.History, 1)
	assert.Equal(t, "hello", data.History[0].Text)
}

func TestChatHistoryUnknownRoom(t *testing.T) {
	svc, _ := newTestService(t)
	conn := newTestConn(svc, "conn-a")

	ack := svc.router.dispatch(conn, Request{
		Type:    ReqChatHistory,
		Payload: mustPayload(t, RoomIDPayload{RoomID: "nowhere"}),
	})

	// unknown-room policy is uniform across the read-only requests
	assert.False(t, ack.Success)
	assert.Equal(t, room.ErrRoomNotFound.Error(), ack.Error)
}

func TestSendChatValidatesText(t *testing.T) {
	svc, _ := newTestService(t)
	conn := newTestConn(svc, "conn-a")
	join(t, svc, conn, "jam", "alice")

	ack := svc.router.dispatch(conn, Request{
		Type:    ReqSendChat,
		Payload: mustPayload(t, SendChatPayload{RoomID: "jam"}),
	})

	assert.False(t, ack.Success)
	assert.Equal(t, errEmptyMessage.Error(), ack.Error)
}

func TestUnknownRequestType(t *testing.T) {
	svc, _ := newTestService(t)
	conn := newTestConn(svc, "conn-a")

	ack := svc.router.dispatch(conn, Request{ID: "r1", Type: "danceBattle"})

	assert.False(t, ack.Success)
	assert.Equal(t, "r1", ack.ID)
}

func TestDisconnectLeavesRoom(t *testing.T) {
	svc, _ := newTestService(t)
	alice := newTestConn(svc, "conn-a")
	bob := newTestConn(svc, "conn-b")
	join(t, svc, alice, "jam", "alice")
	join(t, svc, bob, "jam", "bob")

	svc.router.HandleDisconnect(alice)

	r, err := svc.registry.Get("jam")
	require.NoError(t, err)
	snap, err := r.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, snap.Users)
	assert.Equal(t, "conn-b", snap.HostID)
	assert.Empty(t, alice.RoomID())
}

func TestSwitchingRoomsLeavesPrevious(t *testing.T) {
	svc, _ := newTestService(t)
	alice := newTestConn(svc, "conn-a")
	bob := newTestConn(svc, "conn-b")
	join(t, svc, alice, "jam", "alice")
	join(t, svc, bob, "jam", "bob")

	join(t, svc, alice, "other", "alice")

	r, err := svc.registry.Get("jam")
	require.NoError(t, err)
	snap, err := r.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, snap.Users)
	assert.Equal(t, "other", alice.RoomID())
}
