package server

import (
	"context"
	"sync"
	"time"

	"github.com/npezzotti/harmony-hub/internal/stats"
	"github.com/rs/zerolog"
)

// Store is the slice of persistence the realtime layer depends on.
type Store interface {
	MembershipStore
	PresenceStore
}

type registerReq struct {
	conn   Conn
	userId int
	reply  chan SessionId
}

type joinReq struct {
	sid      SessionId
	rooms    []RoomId
	announce bool
	reply    chan error
}

type leaveReq struct {
	sid   SessionId
	rooms []RoomId
	done  chan struct{}
}

type statusReq struct {
	userId int
	status string
	reply  chan error
}

// ChatServer serializes every session lifecycle change through Run. Lookups
// against the store happen on the caller's goroutine before a request is
// queued, so the loop itself never waits on I/O.
type ChatServer struct {
	log      zerolog.Logger
	registry *Registry
	resolver *Resolver
	presence *PresenceTracker
	relay    *Relay
	signals  *SignalHandler
	stats    stats.StatsProvider

	registerChan   chan *registerReq
	joinChan       chan *joinReq
	leaveChan      chan *leaveReq
	deRegisterChan chan SessionId
	statusChan     chan *statusReq
	stop           chan struct{}
	stopOnce       sync.Once
	done           chan struct{}
}

func NewChatServer(logger zerolog.Logger, db Store, su stats.StatsProvider, presenceWriteTimeout time.Duration) (*ChatServer, error) {
	for _, name := range []string{
		stats.NumActiveSessions,
		stats.NumOnlineUsers,
		stats.NumEventsPublished,
		stats.NumEventsDropped,
	} {
		su.RegisterMetric(name)
	}

	logger = logger.With().Str("component", "chat-server").Logger()
	reg := NewRegistry(logger)
	relay := NewRelay(reg, logger, su)

	return &ChatServer{
		log:            logger,
		registry:       reg,
		resolver:       NewResolver(db),
		presence:       NewPresenceTracker(logger, db, reg, relay, su, presenceWriteTimeout),
		relay:          relay,
		signals:        NewSignalHandler(relay, logger),
		stats:          su,
		registerChan:   make(chan *registerReq),
		joinChan:       make(chan *joinReq),
		leaveChan:      make(chan *leaveReq),
		deRegisterChan: make(chan SessionId),
		statusChan:     make(chan *statusReq),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

// Relay is the publishing surface handed to the application layer.
func (cs *ChatServer) Relay() *Relay {
	return cs.relay
}

func (cs *ChatServer) Presence() *PresenceTracker {
	return cs.presence
}

func (cs *ChatServer) Registry() *Registry {
	return cs.registry
}

func (cs *ChatServer) Run() {
	defer close(cs.done)
	cs.presence.Run()

	for {
		select {
		case req := <-cs.registerChan:
			sid := cs.registry.Register(req.conn, req.userId)
			cs.stats.Incr(stats.NumActiveSessions)
			cs.log.Info().Str("sid", string(sid)).Int("user_id", req.userId).Msg("session connected")
			req.reply <- sid
		case req := <-cs.joinChan:
			req.reply <- cs.handleJoin(req)
		case req := <-cs.leaveChan:
			for _, room := range req.rooms {
				cs.registry.LeaveRoom(req.sid, room)
			}
			close(req.done)
		case sid := <-cs.deRegisterChan:
			cs.handleDeregister(sid)
		case req := <-cs.statusChan:
			req.reply <- cs.presence.OnExplicitUpdate(req.userId, req.status)
		case <-cs.stop:
			cs.log.Info().Int("sessions", cs.registry.Len()).Msg("closing sessions")
			for _, s := range cs.registry.all() {
				cs.handleDeregister(s.id)
				if err := s.conn.Close(); err != nil {
					cs.log.Debug().Err(err).Str("sid", string(s.id)).Msg("close session")
				}
			}
			cs.presence.Stop()
			return
		}
	}
}

func (cs *ChatServer) handleJoin(req *joinReq) error {
	s, ok := cs.registry.Session(req.sid)
	if !ok {
		return ErrNoSession
	}

	for _, room := range req.rooms {
		cs.registry.JoinRoom(req.sid, room)
	}

	if req.announce {
		cs.presence.OnConnect(s.userId)
	}
	return nil
}

func (cs *ChatServer) handleDeregister(sid SessionId) {
	s, ok := cs.registry.Session(sid)
	if !ok {
		return
	}

	rooms := cs.registry.RoomsForUser(s.userId)
	if _, ok := cs.registry.Deregister(sid); !ok {
		return
	}

	cs.stats.Decr(stats.NumActiveSessions)
	cs.log.Info().Str("sid", string(sid)).Int("user_id", s.userId).Msg("session disconnected")
	cs.presence.OnDisconnect(s.userId, rooms)
}

func submit[T any](ctx context.Context, cs *ChatServer, ch chan T, req T) error {
	select {
	case ch <- req:
		return nil
	case <-cs.stop:
		return ErrServerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect registers conn for userId and joins the session to its initial
// rooms. If the rooms cannot be resolved the session is torn down again and
// the *LookupError is returned.
func (cs *ChatServer) Connect(ctx context.Context, conn Conn, userId int) (SessionId, error) {
	reg := &registerReq{conn: conn, userId: userId, reply: make(chan SessionId, 1)}
	if err := submit(ctx, cs, cs.registerChan, reg); err != nil {
		return "", err
	}
	sid := <-reg.reply

	rooms, err := cs.resolver.InitialRooms(ctx, userId)
	if err != nil {
		cs.log.Error().Err(err).Str("sid", string(sid)).Msg("failed to resolve initial rooms")
		cs.Disconnect(sid)
		return "", err
	}

	if err := cs.join(ctx, sid, rooms, true); err != nil {
		cs.Disconnect(sid)
		return "", err
	}

	return sid, nil
}

func (cs *ChatServer) join(ctx context.Context, sid SessionId, rooms []RoomId, announce bool) error {
	req := &joinReq{sid: sid, rooms: rooms, announce: announce, reply: make(chan error, 1)}
	if err := submit(ctx, cs, cs.joinChan, req); err != nil {
		return err
	}
	return <-req.reply
}

// Disconnect deregisters the session. Unknown or already removed sessions
// are ignored.
func (cs *ChatServer) Disconnect(sid SessionId) {
	select {
	case cs.deRegisterChan <- sid:
	case <-cs.stop:
	}
}

func (cs *ChatServer) UpdateStatus(ctx context.Context, userId int, status string) error {
	req := &statusReq{userId: userId, status: status, reply: make(chan error, 1)}
	if err := submit(ctx, cs, cs.statusChan, req); err != nil {
		return err
	}
	return <-req.reply
}

// Subscribe joins the session to a channel's typing room after checking the
// user belongs to the channel's guild.
func (cs *ChatServer) Subscribe(ctx context.Context, sid SessionId, userId, channelId int) (RoomId, error) {
	room, err := cs.resolver.ChannelRoom(ctx, userId, channelId)
	if err != nil {
		return RoomId{}, err
	}

	if err := cs.join(ctx, sid, []RoomId{room}, false); err != nil {
		return RoomId{}, err
	}
	return room, nil
}

func (cs *ChatServer) Unsubscribe(ctx context.Context, sid SessionId, channelId int) error {
	req := &leaveReq{sid: sid, rooms: []RoomId{Channel(channelId)}, done: make(chan struct{})}
	if err := submit(ctx, cs, cs.leaveChan, req); err != nil {
		return err
	}
	<-req.done
	return nil
}

func (cs *ChatServer) Typing(sid SessionId, userId int, t *Typing) int {
	return cs.signals.OnTyping(sid, userId, t)
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Info().Msg("received shutdown signal")
	cs.stopOnce.Do(func() {
		close(cs.stop)
	})

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
