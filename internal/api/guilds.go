package api

import (
	"net/http"
	"strings"

	"github.com/npezzotti/harmony-hub/internal/database"
	"github.com/npezzotti/harmony-hub/internal/server"
	"github.com/npezzotti/harmony-hub/internal/types"
)

type GuildRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type AddMemberRequest struct {
	UserId int `json:"user_id"`
}

// memberGuild loads the guild named by the guildId path value and checks the
// caller belongs to it. It writes the error response itself and reports
// whether the handler may continue.
func (s *HarmonyApp) memberGuild(w http.ResponseWriter, r *http.Request, userId int) (database.Guild, bool) {
	guildId, ok := pathId(r, "guildId")
	if !ok {
		s.writeApiError(w, NewBadRequestError())
		return database.Guild{}, false
	}

	g, err := s.db.GetGuild(r.Context(), guildId)
	if err != nil {
		s.writeError(w, err)
		return database.Guild{}, false
	}

	member, err := s.db.IsGuildMember(r.Context(), g.Id, userId)
	if err != nil {
		s.writeError(w, err)
		return database.Guild{}, false
	}
	if !member {
		s.writeApiError(w, NewForbiddenError())
		return database.Guild{}, false
	}

	return g, true
}

// ownedGuild is memberGuild restricted to the guild owner.
func (s *HarmonyApp) ownedGuild(w http.ResponseWriter, r *http.Request, userId int) (database.Guild, bool) {
	guildId, ok := pathId(r, "guildId")
	if !ok {
		s.writeApiError(w, NewBadRequestError())
		return database.Guild{}, false
	}

	g, err := s.db.GetGuild(r.Context(), guildId)
	if err != nil {
		s.writeError(w, err)
		return database.Guild{}, false
	}

	if g.OwnerId != userId {
		s.writeApiError(w, NewForbiddenError())
		return database.Guild{}, false
	}

	return g, true
}

func (s *HarmonyApp) createGuild(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req GuildRequest
	if err := s.readJson(w, r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	params := database.CreateGuildParams{
		Name:    strings.TrimSpace(req.Name),
		OwnerId: userId,
	}
	if req.Description != nil {
		params.Description = *req.Description
	}

	g, err := s.db.CreateGuild(r.Context(), params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info().Int("guild_id", g.Id).Int("owner_id", userId).Msg("guild created")
	s.writeJson(w, http.StatusCreated, toGuild(g))
}

func (s *HarmonyApp) listGuilds(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	guilds, err := s.db.GetUserGuilds(r.Context(), userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]types.Guild, 0, len(guilds))
	for _, g := range guilds {
		out = append(out, toGuild(g))
	}
	s.writeJson(w, http.StatusOK, out)
}

func (s *HarmonyApp) getGuild(w http.ResponseWriter, r *http.Request) {
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

	out := toGuild(g)
	out.Channels = make([]types.Channel, 0, len(channels))
	for _, ch := range channels {
		out.Channels = append(out.Channels, toChannel(ch))
	}
	s.writeJson(w, http.StatusOK, out)
}

func (s *HarmonyApp) updateGuild(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req GuildRequest
	if err := s.readJson(w, r, &req); err != nil {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	g, ok := s.ownedGuild(w, r, userId)
	if !ok {
		return
	}

	updated, err := s.db.UpdateGuild(r.Context(), database.UpdateGuildParams{
		Id:          g.Id,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := toGuild(updated)
	s.relay.Publish(server.Guild(g.Id), server.EventGuildUpdate, out)
	s.writeJson(w, http.StatusOK, out)
}

func (s *HarmonyApp) deleteGuild(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	g, ok := s.ownedGuild(w, r, userId)
	if !ok {
		return
	}

	if err := s.db.DeleteGuild(r.Context(), g.Id); err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info().Int("guild_id", g.Id).Msg("guild deleted")
	s.relay.Publish(server.Guild(g.Id), server.EventGuildDelete, types.GuildDeleted{GuildId: g.Id})
	w.WriteHeader(http.StatusNoContent)
}

// addMember lets any member bring another user into the guild. Live sessions
// keep the rooms they joined at connect, so the new member is told through
// their personal room.
func (s *HarmonyApp) addMember(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req AddMemberRequest
	if err := s.readJson(w, r, &req); err != nil || req.UserId <= 0 {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	g, ok := s.memberGuild(w, r, userId)
	if !ok {
		return
	}

	if _, err := s.db.GetAccountById(r.Context(), req.UserId); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.db.AddGuildMember(r.Context(), g.Id, req.UserId); err != nil {
		s.writeError(w, err)
		return
	}

	s.publishMemberChange(server.EventGuildMemberAdd, g.Id, req.UserId)
	w.WriteHeader(http.StatusNoContent)
}

// removeMember is allowed for the owner, or for a member leaving on their
// own. The owner cannot be removed.
func (s *HarmonyApp) removeMember(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	guildId, ok := pathId(r, "guildId")
	memberId, ok2 := pathId(r, "userId")
	if !ok || !ok2 {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	g, err := s.db.GetGuild(r.Context(), guildId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if g.OwnerId != userId && memberId != userId {
		s.writeApiError(w, NewForbiddenError())
		return
	}

	if memberId == g.OwnerId {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	if err := s.db.RemoveGuildMember(r.Context(), g.Id, memberId); err != nil {
		s.writeError(w, err)
		return
	}

	s.publishMemberChange(server.EventGuildMemberRemove, g.Id, memberId)
	w.WriteHeader(http.StatusNoContent)
}

func (s *HarmonyApp) publishMemberChange(event string, guildId, userId int) {
	s.relay.PublishToMany(
		[]server.RoomId{server.Guild(guildId), server.User(userId)},
		event,
		types.GuildMember{GuildId: guildId, UserId: userId},
	)
}
