package server

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/teris-io/shortid"
)

type SessionId string

// Conn is the transport handle a session delivers through. Deliver must not
// block.
type Conn interface {
	Deliver(msg *ServerMessage) bool
	Close() error
}

type Session struct {
	id        SessionId
	userId    int
	conn      Conn
	rooms     map[RoomId]struct{}
	createdAt time.Time
}

func (s *Session) Id() SessionId        { return s.id }
func (s *Session) UserId() int          { return s.userId }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Registry owns every live session and the room index built from them.
// Writes come from the chat server loop; the relay reads concurrently.
type Registry struct {
	mu       sync.RWMutex
	log      zerolog.Logger
	ids      *shortid.Shortid
	seq      atomic.Uint64
	sessions map[SessionId]*Session
	users    map[int]map[SessionId]struct{}
	rooms    map[RoomId]map[SessionId]struct{}
}

func NewRegistry(logger zerolog.Logger) *Registry {
	ids, err := shortid.New(1, shortid.DefaultABC, uint64(time.Now().UnixNano()))
	if err != nil {
		logger.Warn().Err(err).Msg("shortid unavailable, falling back to sequential session ids")
	}

	return &Registry{
		log:      logger.With().Str("component", "registry").Logger(),
		ids:      ids,
		sessions: make(map[SessionId]*Session),
		users:    make(map[int]map[SessionId]struct{}),
		rooms:    make(map[RoomId]map[SessionId]struct{}),
	}
}

func (r *Registry) newSessionId() SessionId {
	if r.ids != nil {
		if id, err := r.ids.Generate(); err == nil {
			return SessionId(id)
		}
	}
	return SessionId("s" + strconv.FormatUint(r.seq.Add(1), 36))
}

// Register creates a session for an already authenticated user. A user may
// hold any number of sessions.
func (r *Registry) Register(conn Conn, userId int) SessionId {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newSessionId()
	for _, taken := r.sessions[id]; taken; _, taken = r.sessions[id] {
		id = r.newSessionId()
	}

	r.sessions[id] = &Session{
		id:        id,
		userId:    userId,
		conn:      conn,
		rooms:     make(map[RoomId]struct{}),
		createdAt: time.Now().UTC(),
	}

	if r.users[userId] == nil {
		r.users[userId] = make(map[SessionId]struct{})
	}
	r.users[userId][id] = struct{}{}

	r.log.Debug().Str("sid", string(id)).Int("user_id", userId).Msg("registered session")
	return id
}

// Deregister removes the session and all of its room memberships. It
// reports the owning user and whether the session existed.
func (r *Registry) Deregister(id SessionId) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return 0, false
	}

	for room := range s.rooms {
		r.removeFromRoom(id, room)
	}
	delete(r.sessions, id)

	if userSessions, ok := r.users[s.userId]; ok {
		delete(userSessions, id)
		if len(userSessions) == 0 {
			delete(r.users, s.userId)
		}
	}

	r.log.Debug().Str("sid", string(id)).Int("user_id", s.userId).Msg("deregistered session")
	return s.userId, true
}

func (r *Registry) SessionsForUser(userId int) []SessionId {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]SessionId, 0, len(r.users[userId]))
	for id := range r.users[userId] {
		ids = append(ids, id)
	}
	return ids
}

// JoinRoom adds the session to room. Joining twice is a no-op. It returns
// false if the session is not registered.
func (r *Registry) JoinRoom(id SessionId, room RoomId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}

	if _, joined := s.rooms[room]; joined {
		return true
	}

	s.rooms[room] = struct{}{}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[SessionId]struct{})
	}
	r.rooms[room][id] = struct{}{}

	r.log.Debug().Str("sid", string(id)).Stringer("room", room).Msg("joined room")
	return true
}

func (r *Registry) LeaveRoom(id SessionId, room RoomId) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}

	if _, joined := s.rooms[room]; !joined {
		return
	}

	delete(s.rooms, room)
	r.removeFromRoom(id, room)

	r.log.Debug().Str("sid", string(id)).Stringer("room", room).Msg("left room")
}

// removeFromRoom drops id from the room index. Caller holds r.mu.
func (r *Registry) removeFromRoom(id SessionId, room RoomId) {
	if members, ok := r.rooms[room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}

func (r *Registry) SessionsInRoom(room RoomId) []SessionId {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]SessionId, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		ids = append(ids, id)
	}
	return ids
}

// RoomsForUser returns the union of rooms joined by the user's sessions.
func (r *Registry) RoomsForUser(userId int) []RoomId {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[RoomId]struct{})
	rooms := make([]RoomId, 0)
	for id := range r.users[userId] {
		for room := range r.sessions[id].rooms {
			if _, dup := seen[room]; dup {
				continue
			}
			seen[room] = struct{}{}
			rooms = append(rooms, room)
		}
	}
	return rooms
}

func (r *Registry) Session(id SessionId) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// deliver calls fn once for every session joined to any of rooms, skipping
// skip. Membership is read at call time under the read lock.
func (r *Registry) deliver(rooms []RoomId, skip SessionId, fn func(s *Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var seen map[SessionId]struct{}
	if len(rooms) > 1 {
		seen = make(map[SessionId]struct{})
	}

	for _, room := range rooms {
		for id := range r.rooms[room] {
			if id == skip {
				continue
			}
			if seen != nil {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			}
			fn(r.sessions[id])
		}
	}
}

// all returns a snapshot of every registered session.
func (r *Registry) all() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}
