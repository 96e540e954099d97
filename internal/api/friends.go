package api

import (
	"context"
	"net/http"

	"github.com/npezzotti/harmony-hub/internal/database"
	"github.com/npezzotti/harmony-hub/internal/server"
	"github.com/npezzotti/harmony-hub/internal/types"
)

type FriendRequestRequest struct {
	Username string `json:"username"`
}

func (s *HarmonyApp) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req FriendRequestRequest
	if err := s.readJson(w, r, &req); err != nil || req.Username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	recipient, err := s.db.GetAccountByUsername(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if recipient.Id == userId {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	fr, err := s.db.CreateFriendRequest(r.Context(), userId, recipient.Id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := toFriendRequest(fr)
	s.relay.Publish(server.User(recipient.Id), server.EventFriendRequest, out)
	s.writeJson(w, http.StatusCreated, out)
}

func (s *HarmonyApp) acceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	s.resolveFriendRequest(w, r, s.db.AcceptFriendRequest, server.EventFriendRequestAccepted)
}

func (s *HarmonyApp) rejectFriendRequest(w http.ResponseWriter, r *http.Request) {
	s.resolveFriendRequest(w, r, s.db.RejectFriendRequest, server.EventFriendRequestRejected)
}

// resolveFriendRequest lets the recipient of a pending request settle it and
// notifies the sender.
func (s *HarmonyApp) resolveFriendRequest(w http.ResponseWriter, r *http.Request, resolve func(context.Context, int) error, event string) {
	userId, _ := UserId(r.Context())

	requestId, ok := pathId(r, "requestId")
	if !ok {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	fr, err := s.db.GetFriendRequest(r.Context(), requestId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if fr.RecipientId != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if fr.Status != database.FriendRequestPending {
		errResp := NewConflictError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := resolve(r.Context(), requestId); err != nil {
		s.writeError(w, err)
		return
	}

	s.relay.Publish(server.User(fr.Sender.Id), event, types.FriendRequestResolved{
		RequestId: fr.Id,
		UserId:    userId,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *HarmonyApp) removeFriend(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	friendId, ok := pathId(r, "friendId")
	if !ok || friendId == userId {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.RemoveFriend(r.Context(), userId, friendId); err != nil {
		s.writeError(w, err)
		return
	}

	s.relay.Publish(server.User(friendId), server.EventFriendRemoved, types.FriendRemoved{UserId: userId})
	w.WriteHeader(http.StatusNoContent)
}

func (s *HarmonyApp) listFriends(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	friends, err := s.db.GetFriends(r.Context(), userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]types.User, 0, len(friends))
	for _, f := range friends {
		out = append(out, s.liveStatus(toPublicUser(f), userId))
	}
	s.writeJson(w, http.StatusOK, out)
}
