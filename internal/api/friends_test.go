package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/npezzotti/harmony-hub/internal/database"
	"github.com/npezzotti/harmony-hub/internal/server"
	"github.com/npezzotti/harmony-hub/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSendFriendRequest(t *testing.T) {
	tcases := []struct {
		name     string
		body     string
		lookup   *database.User
		lookupEr error
		createEr error
		status   int
	}{
		{name: "created", body: `{"username":"bob"}`, lookup: &bob, status: http.StatusCreated},
		{name: "duplicate", body: `{"username":"bob"}`, lookup: &bob, createEr: database.ErrDuplicate, status: http.StatusConflict},
		{name: "unknown user", body: `{"username":"bob"}`, lookupEr: database.ErrNotFound, status: http.StatusNotFound},
		{name: "self", body: `{"username":"alice"}`, lookup: &alice, status: http.StatusBadRequest},
		{name: "empty", body: `{}`, status: http.StatusBadRequest},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockHarmonyRepository{}
			defer db.AssertExpectations(t)
			app, pub := newTestApp(t, db)
			defer pub.AssertExpectations(t)

			if tc.lookup != nil {
				db.On("GetAccountByUsername", tc.lookup.Username).Return(*tc.lookup, nil).Once()
			} else if tc.lookupEr != nil {
				db.On("GetAccountByUsername", "bob").Return(database.User{}, tc.lookupEr).Once()
			}

			if tc.lookup != nil && tc.lookup.Id != 1 {
				fr := database.FriendRequest{Id: 9, Sender: alice, RecipientId: 2, Status: database.FriendRequestPending}
				db.On("CreateFriendRequest", 1, 2).Return(fr, tc.createEr).Once()
				if tc.createEr == nil {
					pub.On("Publish", server.User(2), server.EventFriendRequest, mock.MatchedBy(func(fr types.FriendRequest) bool {
						return fr.Id == 9 && fr.Sender.Id == 1
					})).Return(1).Once()
				}
			}

			req := httptest.NewRequest(http.MethodPost, "/api/friends/requests", strings.NewReader(tc.body))
			assert.Equal(t, tc.status, serve(app, authed(t, app, req, 1)).Code)
		})
	}
}

func TestResolveFriendRequest(t *testing.T) {
	pending := database.FriendRequest{Id: 9, Sender: alice, RecipientId: 2, Status: database.FriendRequestPending}

	for _, action := range []struct {
		path   string
		method string
		event  string
	}{
		{"accept", "AcceptFriendRequest", server.EventFriendRequestAccepted},
		{"reject", "RejectFriendRequest", server.EventFriendRequestRejected},
	} {
		t.Run(action.path, func(t *testing.T) {
			db := &database.MockHarmonyRepository{}
			defer db.AssertExpectations(t)
			app, pub := newTestApp(t, db)
			defer pub.AssertExpectations(t)

			db.On("GetFriendRequest", 9).Return(pending, nil).Once()
			db.On(action.method, 9).Return(nil).Once()
			pub.On("Publish", server.User(1), action.event, types.FriendRequestResolved{RequestId: 9, UserId: 2}).
				Return(1).Once()

			req := httptest.NewRequest(http.MethodPost, "/api/friends/requests/9/"+action.path, nil)
			assert.Equal(t, http.StatusNoContent, serve(app, authed(t, app, req, 2)).Code)
		})
	}

	t.Run("only the recipient", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		app, pub := newTestApp(t, db)
		db.On("GetFriendRequest", 9).Return(pending, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/friends/requests/9/accept", nil)
		assert.Equal(t, http.StatusForbidden, serve(app, authed(t, app, req, 1)).Code)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("already resolved", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		app, _ := newTestApp(t, db)
		resolved := pending
		resolved.Status = database.FriendRequestAccepted
		db.On("GetFriendRequest", 9).Return(resolved, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/friends/requests/9/reject", nil)
		assert.Equal(t, http.StatusConflict, serve(app, authed(t, app, req, 2)).Code)
		db.AssertNotCalled(t, "RejectFriendRequest", mock.Anything)
	})

	t.Run("unknown request", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		app, _ := newTestApp(t, db)
		db.On("GetFriendRequest", 9).Return(database.FriendRequest{}, database.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/friends/requests/9/accept", nil)
		assert.Equal(t, http.StatusNotFound, serve(app, authed(t, app, req, 2)).Code)
	})
}

func TestRemoveFriend(t *testing.T) {
	db := &database.MockHarmonyRepository{}
	defer db.AssertExpectations(t)
	app, pub := newTestApp(t, db)
	defer pub.AssertExpectations(t)

	db.On("RemoveFriend", 1, 2).Return(nil).Once()
	pub.On("Publish", server.User(2), server.EventFriendRemoved, types.FriendRemoved{UserId: 1}).Return(0).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/friends/2", nil)
	assert.Equal(t, http.StatusNoContent, serve(app, authed(t, app, req, 1)).Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/friends/1", nil)
	assert.Equal(t, http.StatusBadRequest, serve(app, authed(t, app, req, 1)).Code)
}

func TestListFriends(t *testing.T) {
	db := &database.MockHarmonyRepository{}
	defer db.AssertExpectations(t)
	app, _ := newTestApp(t, db)

	hidden := bob
	hidden.Status = string(types.StatusInvisible)
	db.On("GetFriends", 1).Return([]database.User{hidden}, nil).Once()

	rr := serve(app, authed(t, app, httptest.NewRequest(http.MethodGet, "/api/friends", nil), 1))
	require.Equal(t, http.StatusOK, rr.Code)

	var friends []types.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&friends))
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].Username)
	assert.Empty(t, friends[0].EmailAddress)
	assert.Equal(t, types.StatusOffline, friends[0].Status, "expected invisible friends to look offline")
}
