package server

import (
	"context"
	"sync"
	"time"

	"github.com/npezzotti/harmony-hub/internal/stats"
	"github.com/npezzotti/harmony-hub/internal/types"
	"github.com/rs/zerolog"
)

const defaultPresenceWriteTimeout = 5 * time.Second

type PresenceStore interface {
	SetUserPresence(ctx context.Context, userId int, status string) error
}

type transition struct {
	userId int
	status types.Status
	rooms  []RoomId
}

// PresenceTracker owns the live status of every user. Transitions are
// persisted and then broadcast by a single writer goroutine, so they reach
// both the store and the rooms in the order they were decided.
type PresenceTracker struct {
	log          zerolog.Logger
	store        PresenceStore
	reg          *Registry
	relay        *Relay
	stats        stats.StatsProvider
	writeTimeout time.Duration

	mu     sync.Mutex
	states map[int]types.Status
	// announced holds, per user with an announced session, every room that
	// has heard about their status since.
	announced map[int][]RoomId

	writes   chan transition
	done     chan struct{}
	runOnce  sync.Once
	stopOnce sync.Once
}

func NewPresenceTracker(logger zerolog.Logger, store PresenceStore, reg *Registry, relay *Relay, su stats.StatsProvider, writeTimeout time.Duration) *PresenceTracker {
	if writeTimeout <= 0 {
		writeTimeout = defaultPresenceWriteTimeout
	}

	return &PresenceTracker{
		log:          logger.With().Str("component", "presence").Logger(),
		store:        store,
		reg:          reg,
		relay:        relay,
		stats:        su,
		writeTimeout: writeTimeout,
		states:       make(map[int]types.Status),
		announced:    make(map[int][]RoomId),
		writes:       make(chan transition, 256),
		done:         make(chan struct{}),
	}
}

// Status returns the tracked status; users never seen are offline.
func (p *PresenceTracker) Status(userId int) types.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st, ok := p.states[userId]; ok {
		return st
	}
	return types.StatusOffline
}

// setStatus records st and reports the previous value.
func (p *PresenceTracker) setStatus(userId int, st types.Status) types.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev, ok := p.states[userId]
	if !ok {
		prev = types.StatusOffline
	}

	if st == types.StatusOffline {
		delete(p.states, userId)
	} else {
		p.states[userId] = st
	}

	switch {
	case prev == types.StatusOffline && st != types.StatusOffline:
		p.stats.Incr(stats.NumOnlineUsers)
	case prev != types.StatusOffline && st == types.StatusOffline:
		p.stats.Decr(stats.NumOnlineUsers)
	}

	return prev
}

// OnConnect moves an offline user online. It is a no-op when another of the
// user's sessions has already announced itself, even if the user has since
// chosen to appear offline, or when the user holds a live status set while
// no session was connected.
func (p *PresenceTracker) OnConnect(userId int) bool {
	_, live := p.remember(userId, p.reg.RoomsForUser(userId))
	if live || p.Status(userId) != types.StatusOffline {
		return false
	}

	p.setStatus(userId, types.StatusOnline)
	p.enqueue(userId, types.StatusOnline, p.audience(userId))
	return true
}

// OnDisconnect moves the user offline once no sessions remain. rooms are the
// rooms the user had joined before the session was deregistered; they are
// merged with the rooms that heard the user come online, so a last session
// that never joined anything still reaches them.
func (p *PresenceTracker) OnDisconnect(userId int, rooms []RoomId) bool {
	if len(p.reg.SessionsForUser(userId)) > 0 {
		return false
	}

	p.mu.Lock()
	audience := mergeRooms(p.announced[userId], presenceRooms(userId, rooms))
	delete(p.announced, userId)
	p.mu.Unlock()

	if p.setStatus(userId, types.StatusOffline) == types.StatusOffline {
		return false
	}

	p.enqueue(userId, types.StatusOffline, audience)
	return true
}

// OnExplicitUpdate applies a status chosen by the user regardless of how
// many sessions they hold.
func (p *PresenceTracker) OnExplicitUpdate(userId int, requested string) error {
	st, ok := types.ParseStatus(requested)
	if !ok {
		return &InvalidStatusError{Status: requested}
	}

	rooms := presenceRooms(userId, p.reg.RoomsForUser(userId))
	if audience, live := p.remember(userId, rooms); live {
		rooms = audience
	}

	p.setStatus(userId, st)
	p.enqueue(userId, st, rooms)
	return nil
}

// remember folds the user's presence rooms into their announced audience
// when they have a live session, and reports whether one had already
// announced itself. A user with no sessions is left untouched.
func (p *PresenceTracker) remember(userId int, joined []RoomId) ([]RoomId, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev, live := p.announced[userId]
	if len(p.reg.SessionsForUser(userId)) == 0 {
		return prev, live
	}

	p.announced[userId] = mergeRooms(prev, presenceRooms(userId, joined))
	return p.announced[userId], live
}

func (p *PresenceTracker) audience(userId int) []RoomId {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rooms, ok := p.announced[userId]; ok {
		return rooms
	}
	return []RoomId{User(userId)}
}

func (p *PresenceTracker) enqueue(userId int, st types.Status, rooms []RoomId) {
	p.writes <- transition{
		userId: userId,
		status: st,
		rooms:  rooms,
	}
}

// presenceRooms narrows joined rooms to the ones that should hear about a
// status change: every guild the user shares plus the user's own inbox.
func presenceRooms(userId int, joined []RoomId) []RoomId {
	rooms := []RoomId{User(userId)}
	for _, room := range joined {
		if room.Kind == GuildRoom {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// mergeRooms returns a new slice holding a followed by the rooms of b that
// a lacks.
func mergeRooms(a, b []RoomId) []RoomId {
	out := make([]RoomId, 0, len(a)+len(b))
	seen := make(map[RoomId]struct{}, len(a)+len(b))
	for _, rooms := range [][]RoomId{a, b} {
		for _, room := range rooms {
			if _, ok := seen[room]; ok {
				continue
			}
			seen[room] = struct{}{}
			out = append(out, room)
		}
	}
	return out
}

func (p *PresenceTracker) Run() {
	p.runOnce.Do(func() {
		go p.writeLoop()
	})
}

func (p *PresenceTracker) writeLoop() {
	defer close(p.done)

	for t := range p.writes {
		p.persist(t)

		p.relay.PublishToMany(t.rooms, EventPresenceUpdate, types.PresenceUpdate{
			UserId: t.userId,
			Status: t.status,
		})
	}
}

func (p *PresenceTracker) persist(t transition) {
	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()

	if err := p.store.SetUserPresence(ctx, t.userId, string(t.status)); err != nil {
		p.log.Error().
			Err(err).
			Int("user_id", t.userId).
			Str("status", string(t.status)).
			Msg("failed to persist presence")
	}
}

// Stop drains pending transitions and waits for the writer to exit. No
// transition may be enqueued afterwards.
func (p *PresenceTracker) Stop() {
	p.stopOnce.Do(func() {
		close(p.writes)
	})
	p.Run()
	<-p.done
}
