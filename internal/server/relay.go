package server

import (
	"sync"

	"github.com/npezzotti/harmony-hub/internal/stats"
	"github.com/rs/zerolog"
)

// Relay is the only path from the application layer to connected clients.
// Callers publish after their write has committed.
type Relay struct {
	// mu orders publishes so every member of a room sees the same sequence.
	mu    sync.Mutex
	reg   *Registry
	log   zerolog.Logger
	stats stats.StatsProvider
}

func NewRelay(reg *Registry, logger zerolog.Logger, su stats.StatsProvider) *Relay {
	return &Relay{
		reg:   reg,
		log:   logger.With().Str("component", "relay").Logger(),
		stats: su,
	}
}

// Publish delivers payload to every session in room at the time of the
// call and returns the number of sessions it was queued for.
func (r *Relay) Publish(room RoomId, event string, payload any) int {
	return r.publish([]RoomId{room}, event, payload, "")
}

// PublishToMany delivers one copy per session across the union of rooms.
func (r *Relay) PublishToMany(rooms []RoomId, event string, payload any) int {
	return r.publish(rooms, event, payload, "")
}

// PublishExcept is Publish without the skipped session.
func (r *Relay) PublishExcept(room RoomId, event string, payload any, skip SessionId) int {
	return r.publish([]RoomId{room}, event, payload, skip)
}

func (r *Relay) publish(rooms []RoomId, event string, payload any, skip SessionId) int {
	msg := NewEvent(event, payload)

	r.mu.Lock()
	defer r.mu.Unlock()

	delivered := 0
	r.reg.deliver(rooms, skip, func(s *Session) {
		if s.conn.Deliver(msg) {
			delivered++
			return
		}
		r.stats.Incr(stats.NumEventsDropped)
		r.log.Warn().
			Str("sid", string(s.id)).
			Str("event", event).
			Msg("send queue full, dropping event")
	})

	r.stats.Incr(stats.NumEventsPublished)
	r.log.Debug().
		Str("event", event).
		Interface("rooms", rooms).
		Int("delivered", delivered).
		Msg("published event")
	return delivered
}
