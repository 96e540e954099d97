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

func TestCreateChannel(t *testing.T) {
	t.Run("member creates", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		defer db.AssertExpectations(t)
		app, pub := newTestApp(t, db)
		defer pub.AssertExpectations(t)

		db.On("GetGuild", 10).Return(guild, nil).Once()
		db.On("IsGuildMember", 10, 2).Return(true, nil).Once()
		db.On("CreateChannel", 10, "random").Return(database.Channel{Id: 6, GuildId: 10, Name: "random"}, nil).Once()
		pub.On("Publish", server.Guild(10), server.EventChannelCreate, mock.MatchedBy(func(ch types.Channel) bool {
			return ch.Id == 6 && ch.GuildId == 10
		})).Return(2).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/guilds/10/channels", strings.NewReader(`{"name":"random"}`))
		rr := serve(app, authed(t, app, req, 2))
		require.Equal(t, http.StatusCreated, rr.Code)

		var ch types.Channel
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&ch))
		assert.Equal(t, "random", ch.Name)
	})

	t.Run("outsider", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		app, _ := newTestApp(t, db)
		db.On("GetGuild", 10).Return(guild, nil).Once()
		db.On("IsGuildMember", 10, 3).Return(false, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/guilds/10/channels", strings.NewReader(`{"name":"random"}`))
		assert.Equal(t, http.StatusForbidden, serve(app, authed(t, app, req, 3)).Code)
		db.AssertNotCalled(t, "CreateChannel", mock.Anything, mock.Anything)
	})
}

func TestListChannels(t *testing.T) {
	db := &database.MockHarmonyRepository{}
	defer db.AssertExpectations(t)
	app, _ := newTestApp(t, db)

	db.On("GetGuild", 10).Return(guild, nil).Once()
	db.On("IsGuildMember", 10, 2).Return(true, nil).Once()
	db.On("GetGuildChannels", 10).Return([]database.Channel{{Id: 5, GuildId: 10, Name: "general"}}, nil).Once()

	rr := serve(app, authed(t, app, httptest.NewRequest(http.MethodGet, "/api/guilds/10/channels", nil), 2))
	require.Equal(t, http.StatusOK, rr.Code)

	var channels []types.Channel
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&channels))
	assert.Len(t, channels, 1)
}

func TestGetChannel(t *testing.T) {
	db := &database.MockHarmonyRepository{}
	defer db.AssertExpectations(t)
	app, _ := newTestApp(t, db)

	db.On("GetGuild", 10).Return(guild, nil).Twice()
	db.On("IsGuildMember", 10, 2).Return(true, nil).Twice()
	db.On("GetChannel", 5).Return(database.Channel{Id: 5, GuildId: 10, Name: "general"}, nil).Once()
	db.On("GetChannel", 9).Return(database.Channel{Id: 9, GuildId: 11, Name: "elsewhere"}, nil).Once()

	rr := serve(app, authed(t, app, httptest.NewRequest(http.MethodGet, "/api/guilds/10/channels/5", nil), 2))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(app, authed(t, app, httptest.NewRequest(http.MethodGet, "/api/guilds/10/channels/9", nil), 2))
	assert.Equal(t, http.StatusNotFound, rr.Code, "expected channels of other guilds to be hidden")
}

func TestUpdateChannel(t *testing.T) {
	db := &database.MockHarmonyRepository{}
	defer db.AssertExpectations(t)
	app, pub := newTestApp(t, db)
	defer pub.AssertExpectations(t)

	db.On("GetGuild", 10).Return(guild, nil).Once()
	db.On("IsGuildMember", 10, 2).Return(true, nil).Once()
	db.On("GetChannel", 5).Return(database.Channel{Id: 5, GuildId: 10, Name: "general"}, nil).Once()
	db.On("UpdateChannel", database.UpdateChannelParams{Id: 5, Name: "lobby"}).
		Return(database.Channel{Id: 5, GuildId: 10, Name: "lobby"}, nil).Once()
	pub.On("Publish", server.Guild(10), server.EventChannelUpdate, mock.MatchedBy(func(ch types.Channel) bool {
		return ch.Name == "lobby"
	})).Return(2).Once()

	req := httptest.NewRequest(http.MethodPut, "/api/guilds/10/channels/5", strings.NewReader(`{"name":"lobby"}`))
	assert.Equal(t, http.StatusOK, serve(app, authed(t, app, req, 2)).Code)
}

func TestDeleteChannel(t *testing.T) {
	db := &database.MockHarmonyRepository{}
	defer db.AssertExpectations(t)
	app, pub := newTestApp(t, db)
	defer pub.AssertExpectations(t)

	db.On("GetGuild", 10).Return(guild, nil).Twice()
	db.On("GetChannel", 5).Return(database.Channel{Id: 5, GuildId: 10, Name: "general"}, nil).Once()
	db.On("DeleteChannel", 5).Return(nil).Once()
	pub.On("Publish", server.Guild(10), server.EventChannelDelete, types.ChannelDeleted{ChannelId: 5, GuildId: 10}).
		Return(2).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/guilds/10/channels/5", nil)
	assert.Equal(t, http.StatusForbidden, serve(app, authed(t, app, req, 2)).Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/guilds/10/channels/5", nil)
	assert.Equal(t, http.StatusNoContent, serve(app, authed(t, app, req, 1)).Code)
}

func TestChannelMessages(t *testing.T) {
	channel := database.Channel{Id: 5, GuildId: 10, Name: "general"}

	t.Run("pages newest first", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		defer db.AssertExpectations(t)
		app, _ := newTestApp(t, db)

		db.On("GetChannel", 5).Return(channel, nil).Once()
		db.On("IsGuildMember", 10, 2).Return(true, nil).Once()
		db.On("GetChannelMessages", 5, database.Page{Limit: 2, Before: 100}).Return([]database.Message{
			{Id: 99, Content: "second", Sender: alice, ChannelId: 5},
			{Id: 98, Content: "first", Sender: alice, ChannelId: 5},
		}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/channels/5/messages?limit=2&before=100", nil)
		rr := serve(app, authed(t, app, req, 2))
		require.Equal(t, http.StatusOK, rr.Code)

		var msgs []types.Message
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&msgs))
		require.Len(t, msgs, 2)
		assert.Equal(t, 99, msgs[0].Id)
		assert.Empty(t, msgs[0].Sender.EmailAddress)
	})

	t.Run("outsider", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		app, _ := newTestApp(t, db)
		db.On("GetChannel", 5).Return(channel, nil).Once()
		db.On("IsGuildMember", 10, 3).Return(false, nil).Once()

		rr := serve(app, authed(t, app, httptest.NewRequest(http.MethodGet, "/api/channels/5/messages", nil), 3))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("bad paging", func(t *testing.T) {
		app, _ := newTestApp(t, &database.MockHarmonyRepository{})

		rr := serve(app, authed(t, app, httptest.NewRequest(http.MethodGet, "/api/channels/5/messages?limit=x", nil), 2))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
