package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/harmony-hub/internal/auth"
	"github.com/npezzotti/harmony-hub/internal/database"
	"github.com/npezzotti/harmony-hub/internal/server"
	"github.com/npezzotti/harmony-hub/internal/types"
)

const maxBodySize = 1 << 20

func (s *HarmonyApp) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("json encode")
	}
}

func (s *HarmonyApp) readJson(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// writeError maps repository errors onto API errors.
func (s *HarmonyApp) writeError(w http.ResponseWriter, err error) {
	var errResp *ApiError
	switch {
	case errors.Is(err, database.ErrNotFound):
		errResp = NewNotFoundError()
	case errors.Is(err, database.ErrDuplicate):
		errResp = NewConflictError()
	default:
		s.log.Error().Err(err).Msg("request failed")
		errResp = NewInternalServerError(err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *HarmonyApp) writeApiError(w http.ResponseWriter, e *ApiError) {
	s.writeJson(w, e.StatusCode, e)
}

func pathId(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func toUser(u database.User) types.User {
	return types.User{
		Id:            u.Id,
		Username:      u.Username,
		Discriminator: u.Discriminator,
		Avatar:        u.Avatar,
		Status:        types.Status(u.Status),
		EmailAddress:  u.EmailAddress,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// toPublicUser drops fields only the account owner may see.
func toPublicUser(u database.User) types.User {
	pub := toUser(u)
	pub.EmailAddress = ""
	return pub
}

func toMessage(m database.Message) types.Message {
	return types.Message{
		Id:          m.Id,
		Content:     m.Content,
		Sender:      toPublicUser(m.Sender),
		ChannelId:   m.ChannelId,
		RecipientId: m.RecipientId,
		CreatedAt:   m.CreatedAt,
	}
}

func toFriendRequest(fr database.FriendRequest) types.FriendRequest {
	return types.FriendRequest{
		Id:          fr.Id,
		Sender:      toPublicUser(fr.Sender),
		RecipientId: fr.RecipientId,
		Status:      fr.Status,
		CreatedAt:   fr.CreatedAt,
	}
}

func toChannel(ch database.Channel) types.Channel {
	return types.Channel{
		Id:        ch.Id,
		GuildId:   ch.GuildId,
		Name:      ch.Name,
		CreatedAt: ch.CreatedAt,
	}
}

func toGuild(g database.Guild) types.Guild {
	return types.Guild{
		Id:          g.Id,
		Name:        g.Name,
		Description: g.Description,
		OwnerId:     g.OwnerId,
		MemberCount: g.MemberCount,
		CreatedAt:   g.CreatedAt,
	}
}

func toInvite(inv database.Invite) types.Invite {
	out := types.Invite{
		Code:      inv.Code,
		GuildId:   inv.GuildId,
		InviterId: inv.InviterId,
		Uses:      inv.Uses,
		MaxUses:   inv.MaxUses,
		CreatedAt: inv.CreatedAt,
	}
	if !inv.ExpiresAt.IsZero() {
		exp := inv.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}

// pageFromQuery reads the limit and before query parameters. Malformed
// values are rejected rather than silently defaulted.
func pageFromQuery(r *http.Request) (database.Page, bool) {
	var page database.Page
	q := r.URL.Query()

	for name, dst := range map[string]*int{"limit": &page.Limit, "before": &page.Before} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return database.Page{}, false
		}
		*dst = v
	}

	return page.Normalize(), true
}

// liveStatus overlays the tracked presence on a stored user. Invisible users
// are reported as offline to everyone but themselves.
func (s *HarmonyApp) liveStatus(u types.User, viewerId int) types.User {
	if s.cs != nil {
		u.Status = s.cs.Presence().Status(u.Id)
	}
	if u.Status == types.StatusInvisible && u.Id != viewerId {
		u.Status = types.StatusOffline
	}
	return u
}

func (s *HarmonyApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *HarmonyApp) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	return slices.Contains(s.allowedOrigins, origin)
}

// serveWs authenticates before upgrading; a rejected token never reaches
// the chat server.
func (s *HarmonyApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, err := s.tokens.VerifyConnectionToken(auth.TokenFromRequest(r))
	if err != nil {
		s.log.Debug().Err(err).Msg("rejected websocket connection")
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(r.Context(), userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("error upgrading connection")
		return
	}

	client := server.NewClient(toUser(user), conn, s.cs, s.log)
	if err := client.Start(r.Context()); err != nil {
		s.log.Error().Err(err).Int("user_id", userId).Msg("failed to start session")
	}
}
