package api

import (
	"net/http"
	"strings"

	"github.com/npezzotti/harmony-hub/internal/database"
	"github.com/npezzotti/harmony-hub/internal/server"
	"github.com/npezzotti/harmony-hub/internal/types"
)

type SendMessageRequest struct {
	Content string `json:"content"`
}

type SendDirectMessageRequest struct {
	RecipientId int    `json:"recipient_id"`
	Content     string `json:"content"`
}

func (s *HarmonyApp) sendChannelMessage(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	channelId, ok := pathId(r, "channelId")
	if !ok {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SendMessageRequest
	if err := s.readJson(w, r, &req); err != nil || strings.TrimSpace(req.Content) == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ch, err := s.db.GetChannel(r.Context(), channelId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	member, err := s.db.IsGuildMember(r.Context(), ch.GuildId, userId)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !member {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.CreateMessage(r.Context(), database.CreateMessageParams{
		Content:   req.Content,
		SenderId:  userId,
		ChannelId: ch.Id,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := toMessage(msg)
	s.relay.Publish(server.Guild(ch.GuildId), server.EventMessage, out)
	s.writeJson(w, http.StatusCreated, out)
}

func (s *HarmonyApp) sendDirectMessage(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req SendDirectMessageRequest
	if err := s.readJson(w, r, &req); err != nil ||
		req.RecipientId <= 0 ||
		req.RecipientId == userId ||
		strings.TrimSpace(req.Content) == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	recipient, err := s.db.GetAccountById(r.Context(), req.RecipientId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	msg, err := s.db.CreateMessage(r.Context(), database.CreateMessageParams{
		Content:     req.Content,
		SenderId:    userId,
		RecipientId: recipient.Id,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := toMessage(msg)
	pub := toPublicUser(recipient)
	out.Recipient = &pub

	// the sender's other sessions get a copy too
	s.relay.PublishToMany(
		[]server.RoomId{server.User(recipient.Id), server.User(userId)},
		server.EventDirectMessage,
		out,
	)
	s.writeJson(w, http.StatusCreated, out)
}

func (s *HarmonyApp) deleteDirectMessage(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	messageId, ok := pathId(r, "messageId")
	if !ok {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.GetMessage(r.Context(), messageId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if msg.RecipientId == 0 {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if msg.Sender.Id != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteMessage(r.Context(), messageId); err != nil {
		s.writeError(w, err)
		return
	}

	s.relay.Publish(server.User(msg.RecipientId), server.EventDirectMessageDeleted, types.DirectMessageDeleted{
		MessageId: msg.Id,
		SenderId:  userId,
	})
	w.WriteHeader(http.StatusNoContent)
}

// directMessages pages through the conversation with another user, newest
// first.
func (s *HarmonyApp) directMessages(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	otherId, ok := pathId(r, "userId")
	if !ok || otherId == userId {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	page, ok := pageFromQuery(r)
	if !ok {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	msgs, err := s.db.GetDirectMessages(r.Context(), userId, otherId, page)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(m))
	}
	s.writeJson(w, http.StatusOK, out)
}
