package server

import (
	"github.com/npezzotti/harmony-hub/internal/types"
	"github.com/rs/zerolog"
)

// SignalHandler forwards transient signals that are never stored.
type SignalHandler struct {
	relay *Relay
	log   zerolog.Logger
}

func NewSignalHandler(relay *Relay, logger zerolog.Logger) *SignalHandler {
	return &SignalHandler{
		relay: relay,
		log:   logger.With().Str("component", "signals").Logger(),
	}
}

// OnTyping relays a typing indicator to a channel or a single recipient,
// never back to the session that sent it. Malformed targets are dropped.
func (h *SignalHandler) OnTyping(sid SessionId, userId int, t *Typing) int {
	if t == nil {
		return 0
	}

	var (
		room    RoomId
		payload = types.TypingIndicator{UserId: userId, IsTyping: t.IsTyping}
	)

	switch {
	case t.ChannelId > 0:
		room = AdHocRoom(ChannelRoom, t.ChannelId)
		payload.ChannelId = t.ChannelId
	case t.RecipientId > 0:
		room = AdHocRoom(UserRoom, t.RecipientId)
	default:
		h.log.Debug().Str("sid", string(sid)).Msg("dropping typing signal without target")
		return 0
	}

	return h.relay.PublishExcept(room, EventTyping, payload, sid)
}
