package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/npezzotti/harmony-hub/internal/database"
	"github.com/npezzotti/harmony-hub/internal/server"
	"github.com/npezzotti/harmony-hub/internal/types"
	"github.com/teris-io/shortid"
)

const defaultInviteMaxAge = 24 * time.Hour

type CreateInviteRequest struct {
	MaxUses int `json:"max_uses"`
	// MaxAge is in seconds; zero picks the default and a negative value
	// never expires.
	MaxAge int `json:"max_age"`
}

func inviteExpiry(now time.Time, maxAge int) time.Time {
	switch {
	case maxAge < 0:
		return time.Time{}
	case maxAge == 0:
		return now.Add(defaultInviteMaxAge)
	}
	return now.Add(time.Duration(maxAge) * time.Second)
}

// usableInvite loads the invite for the code path value and rejects codes
// that expired or ran out of uses with 410.
func (s *HarmonyApp) usableInvite(w http.ResponseWriter, r *http.Request) (database.Invite, bool) {
	inv, err := s.db.GetInvite(r.Context(), r.PathValue("code"))
	if err != nil {
		s.writeError(w, err)
		return database.Invite{}, false
	}

	if inv.Expired(time.Now()) || inv.Exhausted() {
		s.writeApiError(w, NewGoneError())
		return database.Invite{}, false
	}

	return inv, true
}

func (s *HarmonyApp) createInvite(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	req := CreateInviteRequest{}
	if r.ContentLength != 0 {
		if err := s.readJson(w, r, &req); err != nil || req.MaxUses < 0 {
			s.writeApiError(w, NewBadRequestError())
			return
		}
	}

	g, ok := s.memberGuild(w, r, userId)
	if !ok {
		return
	}

	code, err := shortid.Generate()
	if err != nil {
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	inv, err := s.db.CreateInvite(r.Context(), database.CreateInviteParams{
		Code:      code,
		GuildId:   g.Id,
		InviterId: userId,
		MaxUses:   req.MaxUses,
		ExpiresAt: inviteExpiry(time.Now().UTC(), req.MaxAge),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, toInvite(inv))
}

// getInvite is public so a link can be previewed before signing in.
func (s *HarmonyApp) getInvite(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.usableInvite(w, r)
	if !ok {
		return
	}

	g, err := s.db.GetGuild(r.Context(), inv.GuildId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, types.InvitePreview{
		Invite:      toInvite(inv),
		GuildName:   g.Name,
		MemberCount: g.MemberCount,
	})
}

func (s *HarmonyApp) acceptInvite(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	inv, ok := s.usableInvite(w, r)
	if !ok {
		return
	}

	err := s.db.UseInvite(r.Context(), inv.Id, userId)
	switch {
	case errors.Is(err, database.ErrNotFound):
		// used up or expired between the read and the update
		s.writeApiError(w, NewGoneError())
		return
	case err != nil:
		s.writeError(w, err)
		return
	}

	s.publishMemberChange(server.EventGuildMemberAdd, inv.GuildId, userId)

	g, err := s.db.GetGuild(r.Context(), inv.GuildId)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJson(w, http.StatusOK, toGuild(g))
}

// deleteInvite is allowed for the inviter and the guild owner.
func (s *HarmonyApp) deleteInvite(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	inv, err := s.db.GetInvite(r.Context(), r.PathValue("code"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if inv.InviterId != userId {
		g, err := s.db.GetGuild(r.Context(), inv.GuildId)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if g.OwnerId != userId {
			s.writeApiError(w, NewForbiddenError())
			return
		}
	}

	if err := s.db.DeleteInvite(r.Context(), inv.Id); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
