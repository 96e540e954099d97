package api

import (
	"net/http"
	"strings"

	"github.com/npezzotti/harmony-hub/internal/database"
	"github.com/npezzotti/harmony-hub/internal/server"
	"github.com/npezzotti/harmony-hub/internal/types"
)

type ChannelRequest struct {
	Name string `json:"name"`
}

// guildChannel loads the channel named in the path and checks it belongs to
// guild g.
func (s *HarmonyApp) guildChannel(w http.ResponseWriter, r *http.Request, g database.Guild) (database.Channel, bool) {
	channelId, ok := pathId(r, "channelId")
	if !ok {
		s.writeApiError(w, NewBadRequestError())
		return database.Channel{}, false
	}

	ch, err := s.db.GetChannel(r.Context(), channelId)
	if err != nil {
		s.writeError(w, err)
		return database.Channel{}, false
	}

	if ch.GuildId != g.Id {
		s.writeApiError(w, NewNotFoundError())
		return database.Channel{}, false
	}

	return ch, true
}

func (s *HarmonyApp) createChannel(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req ChannelRequest
	if err := s.readJson(w, r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	g, ok := s.memberGuild(w, r, userId)
	if !ok {
		return
	}

	ch, err := s.db.CreateChannel(r.Context(), g.Id, strings.TrimSpace(req.Name))
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := toChannel(ch)
	s.relay.Publish(server.Guild(g.Id), server.EventChannelCreate, out)
	s.writeJson(w, http.StatusCreated, out)
}

func (s *HarmonyApp) listChannels(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	g, ok := s.memberGuild(w, r, userId)
	if !ok {
		return
	}

	channels, err := s.db.GetGuildChannels(r.Context(), g.Id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]types.Channel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, toChannel(ch))
	}
	s.writeJson(w, http.StatusOK, out)
}

func (s *HarmonyApp) getChannel(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	g, ok := s.memberGuild(w, r, userId)
	if !ok {
		return
	}

	ch, ok := s.guildChannel(w, r, g)
	if !ok {
		return
	}

	s.writeJson(w, http.StatusOK, toChannel(ch))
}

func (s *HarmonyApp) updateChannel(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req ChannelRequest
	if err := s.readJson(w, r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	g, ok := s.memberGuild(w, r, userId)
	if !ok {
		return
	}

	ch, ok := s.guildChannel(w, r, g)
	if !ok {
		return
	}

	updated, err := s.db.UpdateChannel(r.Context(), database.UpdateChannelParams{
		Id:   ch.Id,
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := toChannel(updated)
	s.relay.Publish(server.Guild(g.Id), server.EventChannelUpdate, out)
	s.writeJson(w, http.StatusOK, out)
}

func (s *HarmonyApp) deleteChannel(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	g, ok := s.ownedGuild(w, r, userId)
	if !ok {
		return
	}

	ch, ok := s.guildChannel(w, r, g)
	if !ok {
		return
	}

	if err := s.db.DeleteChannel(r.Context(), ch.Id); err != nil {
		s.writeError(w, err)
		return
	}

	s.relay.Publish(server.Guild(g.Id), server.EventChannelDelete, types.ChannelDeleted{
		ChannelId: ch.Id,
		GuildId:   g.Id,
	})
	w.WriteHeader(http.StatusNoContent)
}

// channelMessages pages through a channel's history, newest first.
func (s *HarmonyApp) channelMessages(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	channelId, ok := pathId(r, "channelId")
	if !ok {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	page, ok := pageFromQuery(r)
	if !ok {
		s.writeApiError(w, NewBadRequestError())
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
		s.writeApiError(w, NewForbiddenError())
		return
	}

	msgs, err := s.db.GetChannelMessages(r.Context(), ch.Id, page)
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
