package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Registry is the keyed store of rooms. Rooms are created lazily on
// first reference and evicted by a periodic sweep once empty. The
// registry lock covers only the map; room state is guarded by each
// room's own lock, so operations on different rooms never contend.
type Registry struct {
	clock  clockwork.Clock
	bc     Broadcaster
	policy SyncPolicy

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry creates an empty registry. Events from every room are
// published through bc.
func NewRegistry(clock clockwork.Clock, bc Broadcaster, policy SyncPolicy) *Registry {
	return &Registry{
		clock:  clock,
		bc:     bc,
		policy: policy,
		rooms:  make(map[string]*Room),
	}
}

// Resolve returns the room for id, creating it if absent. Check and
// create are a single step under the registry lock, so concurrent
// resolvers for the same id observe the same instance.
func (g *Registry) Resolve(id string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[id]
	if !ok {
		r = newRoom(id, g.clock, g.bc, g.policy)
		g.rooms[id] = r
		log.Info().Str("room_id", id).Msg("room created")
	}
	return r
}

// Get returns the room for id, or ErrRoomNotFound. Never creates.
func (g *Registry) Get(id string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Join resolves the room and adds the connection. If the sweep evicted
// the room between resolution and join, the stale instance reports
// ErrRoomClosed and Join resolves a fresh one, so a joiner never lands
// in a deleted room.
func (g *Registry) Join(roomID, connID, username string) (Snapshot, error) {
	for {
		snap, err := g.Resolve(roomID).Join(connID, username)
		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		return snap, err
	}
}

// Sweep removes every room with zero members and returns how many were
// removed. Each room's lock is taken before the emptiness check and
// the closed flag is set under it, so a join racing the sweep either
// repopulates the room first (the check fails) or observes the closed
// flag and retries against a fresh instance.
func (g *Registry) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, r := range g.rooms {
		r.mu.Lock()
		if len(r.members) == 0 {
			r.closed = true
			delete(g.rooms, id)
			removed++
			log.Info().Str("room_id", id).Msg("empty room evicted")
		}
		r.mu.Unlock()
	}
	return removed
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// RunSweeper runs the eviction sweep every interval until ctx is
// cancelled.
func (g *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := g.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("room sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("room sweeper stopped")
			return
		case <-ticker.Chan():
			if n := g.Sweep(); n > 0 {
				log.Debug().Int("removed", n).Msg("sweep complete")
			}
		}
	}
}
