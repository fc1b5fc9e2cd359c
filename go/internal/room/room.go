package room

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// chatLogCap bounds the in-memory chat log per room. Oldest entries
// are evicted first.
const chatLogCap = 200

// SyncPolicy carries the playback sync constants clients follow: how
// often the host reports its position and how far a follower may drift
// before it hard-resyncs. Delivered with every snapshot so clients do
// not hardcode them.
type SyncPolicy struct {
	ReportIntervalSec float64 `json:"reportIntervalSec"`
	DriftThresholdSec float64 `json:"driftThresholdSec"`
}

// DefaultSyncPolicy matches the web client's historical behavior:
// 1-second host reports, 1-second follower drift threshold.
func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{ReportIntervalSec: 1, DriftThresholdSec: 1}
}

// Snapshot is the full observable state of a room at one instant, as
// returned to a joining or resyncing client.
type Snapshot struct {
	RoomID         string         `json:"roomId"`
	Playlist       []Song         `json:"playlist"`
	CurrentSong    *Song          `json:"currentSong"`
	PlaybackStatus PlaybackStatus `json:"playbackStatus"`
	CurrentTime    float64        `json:"currentTime"`
	Users          []string       `json:"users"`
	HostID         string         `json:"hostId"`
	Sync           SyncPolicy     `json:"sync"`
}

type member struct {
	ConnID   string
	Username string
}

// Room is the authoritative state of one listening session. All
// mutation goes through its methods; each method runs under the room
// mutex, so operations on one room are serialized in arrival order
// while different rooms proceed fully concurrently.
type Room struct {
	id     string
	clock  clockwork.Clock
	bc     Broadcaster
	policy SyncPolicy

	mu          sync.Mutex
	playlist    []Song
	currentIdx  int
	currentSong *Song
	status      PlaybackStatus
	anchor      time.Time     // valid only while playing
	stored      time.Duration // authoritative only while paused
	hostID      string        // empty only when members is empty
	members     []member      // join order, drives host election
	chatLog     []ChatMessage
	closed      bool // set by the eviction sweep, terminal
}

func newRoom(id string, clock clockwork.Clock, bc Broadcaster, policy SyncPolicy) *Room {
	return &Room{
		id:     id,
		clock:  clock,
		bc:     bc,
		policy: policy,
		status: StatusPaused,
	}
}

// ID returns the registry key of the room.
func (r *Room) ID() string { return r.id }

// Join adds the connection to the room and returns a full snapshot.
// Idempotent for a connection that is already a member. The first
// joiner becomes host. Returns ErrRoomClosed if the room was evicted
// concurrently; Registry.Join retries in that case.
func (r *Room) Join(connID, username string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Snapshot{}, ErrRoomClosed
	}

	if !r.isMemberLocked(connID) {
		r.members = append(r.members, member{ConnID: connID, Username: username})
		r.publishLocked(EventUserJoined, username, "")
	}
	r.publishLocked(EventUsersUpdated, r.usernamesLocked(), "")

	if r.hostID == "" {
		r.hostID = connID
		r.publishLocked(EventHostChanged, r.hostID, "")
	}

	log.Debug().
		Str("room_id", r.id).
		Str("conn_id", connID).
		Str("username", username).
		Int("members", len(r.members)).
		Msg("member joined")

	return r.snapshotLocked(r.clock.Now()), nil
}

// Leave removes the connection. If it was the host, the earliest-joined
// remaining member is promoted; an in-flight playback position survives
// the promotion unchanged.
func (r *Room) Leave(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, m := range r.members {
		if m.ConnID == connID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}

	username := r.members[idx].Username
	r.members = append(r.members[:idx], r.members[idx+1:]...)
	r.publishLocked(EventUserLeft, username, "")
	r.publishLocked(EventUsersUpdated, r.usernamesLocked(), "")

	if r.hostID == connID {
		r.electHostLocked()
	}

	log.Debug().
		Str("room_id", r.id).
		Str("conn_id", connID).
		Int("members", len(r.members)).
		Msg("member left")
}

// electHostLocked promotes the earliest-joined remaining member, or
// clears the host when the room is empty. If playback is running, the
// position is frozen at its value at the instant of promotion and
// re-anchored so no member observes a timeline jump.
func (r *Room) electHostLocked() {
	prev := r.hostID
	if len(r.members) == 0 {
		r.hostID = ""
	} else {
		r.hostID = r.members[0].ConnID
	}
	if r.hostID == prev {
		return
	}

	if r.status == StatusPlaying {
		now := r.clock.Now()
		r.anchor = anchorFor(now, elapsedAt(r.status, r.anchor, r.stored, now))
	}

	if r.hostID != "" {
		r.publishLocked(EventHostChanged, r.hostID, "")
		log.Info().
			Str("room_id", r.id).
			Str("host_id", r.hostID).
			Msg("host promoted")
	}
}

// Snapshot returns the room state without mutating membership.
func (r *Room) Snapshot() (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Snapshot{}, ErrRoomNotFound
	}
	return r.snapshotLocked(r.clock.Now()), nil
}

// Play starts the given song at startOffset seconds. The song is
// appended to the playlist if its id is new. Issuing a play action
// always seizes timekeeping authority for the caller, whoever the
// previous host was; concurrent plays resolve deterministically
// through the room lock.
func (r *Room) Play(song Song, startOffset float64, connID string) error {
	if err := song.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}

	if r.appendSongLocked(song) {
		r.publishLocked(EventPlaylistUpdated, r.playlistCopyLocked(), "")
	}

	for i := range r.playlist {
		if r.playlist[i].ID == song.ID {
			r.currentIdx = i
			break
		}
	}
	s := r.playlist[r.currentIdx]
	r.currentSong = &s
	r.status = StatusPlaying
	r.anchor = anchorFor(r.clock.Now(), secondsToDuration(startOffset))

	if r.hostID != connID {
		r.hostID = connID
		r.publishLocked(EventHostChanged, r.hostID, "")
	}

	r.publishLocked(EventSongChanged, SongChangedData{
		Song:           s,
		CurrentTime:    startOffset,
		PlaybackStatus: StatusPlaying,
	}, "")

	log.Info().
		Str("room_id", r.id).
		Str("song_id", song.ID).
		Float64("start_offset", startOffset).
		Str("host_id", r.hostID).
		Msg("song playing")
	return nil
}

// UpdatePlayback applies the host's reported play/pause state and
// position. A negative reported position is clamped to zero, so the
// stored elapsed value never goes negative. Non-host callers are
// rejected with no state change and no broadcast. The update is
// broadcast to every member except the caller, which already holds
// the exact value locally.
func (r *Room) UpdatePlayback(status PlaybackStatus, currentTime float64, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	if connID != r.hostID {
		return ErrNotHost
	}
	if currentTime < 0 {
		currentTime = 0
	}

	switch status {
	case StatusPlaying:
		r.status = StatusPlaying
		r.anchor = anchorFor(r.clock.Now(), secondsToDuration(currentTime))
	case StatusPaused:
		r.status = StatusPaused
		r.stored = secondsToDuration(currentTime)
		r.anchor = time.Time{}
	}

	r.publishLocked(EventPlaybackUpdate, PlaybackUpdateData{
		Status:      status,
		CurrentTime: currentTime,
	}, connID)
	return nil
}

// Direction selects the Advance target relative to the current index.
type Direction int

const (
	Next     Direction = 1
	Previous Direction = -1
)

// Advance moves to the adjacent playlist entry with wraparound in both
// directions and restarts playback from offset zero. Host only.
func (r *Room) Advance(dir Direction, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	if connID != r.hostID {
		return ErrNotHost
	}
	if len(r.playlist) == 0 {
		return ErrEmptyPlaylist
	}

	n := len(r.playlist)
	r.currentIdx = ((r.currentIdx+int(dir))%n + n) % n
	s := r.playlist[r.currentIdx]
	r.currentSong = &s
	r.status = StatusPlaying
	r.stored = 0
	r.anchor = anchorFor(r.clock.Now(), 0)

	r.publishLocked(EventSongChanged, SongChangedData{
		Song:           s,
		CurrentTime:    0,
		PlaybackStatus: StatusPlaying,
	}, "")

	log.Debug().
		Str("room_id", r.id).
		Str("song_id", s.ID).
		Int("index", r.currentIdx).
		Msg("playlist advanced")
	return nil
}

// AddSong appends the song to the playlist if its id is new. No
// playback side effects; playlistUpdated is broadcast only when an
// entry was actually appended.
func (r *Room) AddSong(song Song) error {
	if err := song.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}

	if r.appendSongLocked(song) {
		r.publishLocked(EventPlaylistUpdated, r.playlistCopyLocked(), "")
	}
	return nil
}

// SendChat appends the message to the chat log, evicting the oldest
// entry past capacity. The message is broadcast to every member
// including the sender, which serves as the sender's confirmation.
func (r *Room) SendChat(msg ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}

	if msg.Time.IsZero() {
		msg.Time = r.clock.Now()
	}
	r.chatLog = append(r.chatLog, msg)
	if len(r.chatLog) > chatLogCap {
		r.chatLog = r.chatLog[len(r.chatLog)-chatLogCap:]
	}

	r.publishLocked(EventNewChat, msg, "")
	return nil
}

// ChatHistory returns a copy of the current chat log.
func (r *Room) ChatHistory() ([]ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomNotFound
	}
	out := make([]ChatMessage, len(r.chatLog))
	copy(out, r.chatLog)
	return out, nil
}

func (r *Room) appendSongLocked(song Song) bool {
	for _, s := range r.playlist {
		if s.ID == song.ID {
			return false
		}
	}
	r.playlist = append(r.playlist, song)
	return true
}

func (r *Room) isMemberLocked(connID string) bool {
	for _, m := range r.members {
		if m.ConnID == connID {
			return true
		}
	}
	return false
}

func (r *Room) usernamesLocked() []string {
	users := make([]string, len(r.members))
	for i, m := range r.members {
		users[i] = m.Username
	}
	return users
}

func (r *Room) playlistCopyLocked() []Song {
	out := make([]Song, len(r.playlist))
	copy(out, r.playlist)
	return out
}

func (r *Room) snapshotLocked(now time.Time) Snapshot {
	var cur *Song
	if r.currentSong != nil {
		s := *r.currentSong
		cur = &s
	}
	return Snapshot{
		RoomID:         r.id,
		Playlist:       r.playlistCopyLocked(),
		CurrentSong:    cur,
		PlaybackStatus: r.status,
		CurrentTime:    elapsedAt(r.status, r.anchor, r.stored, now).Seconds(),
		Users:          r.usernamesLocked(),
		HostID:         r.hostID,
		Sync:           r.policy,
	}
}

// publishLocked hands the event to the broadcaster while the room lock
// is still held, which pins the broadcast order to the room's
// operation order. The broadcaster must not block.
func (r *Room) publishLocked(t EventType, data interface{}, exclude string) {
	if r.bc == nil {
		return
	}
	r.bc.Publish(Event{
		RoomID:      r.id,
		Type:        t,
		Timestamp:   r.clock.Now(),
		Data:        data,
		ExcludeConn: exclude,
	})
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
