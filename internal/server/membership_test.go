package server

import (
	"context"
	"errors"
	"testing"

	"github.com/npezzotti/harmony-hub/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_InitialRooms(t *testing.T) {
	t.Run("personal and guild rooms", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		defer db.AssertExpectations(t)
		db.On("GetUserGuildMemberships", 1).Return([]int{10, 11}, nil).Once()

		rooms, err := NewResolver(db).InitialRooms(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, []RoomId{User(1), Guild(10), Guild(11)}, rooms)
	})

	t.Run("no guilds", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		db.On("GetUserGuildMemberships", 1).Return([]int{}, nil).Once()

		rooms, err := NewResolver(db).InitialRooms(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, []RoomId{User(1)}, rooms)
	})

	t.Run("lookup failure", func(t *testing.T) {
		dbErr := errors.New("connection refused")
		db := &database.MockHarmonyRepository{}
		db.On("GetUserGuildMemberships", 1).Return(nil, dbErr).Once()

		rooms, err := NewResolver(db).InitialRooms(context.Background(), 1)
		assert.Nil(t, rooms)

		var lookupErr *LookupError
		require.ErrorAs(t, err, &lookupErr)
		assert.Equal(t, 1, lookupErr.UserId)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestResolver_ChannelRoom(t *testing.T) {
	ctx := context.Background()
	channel := database.Channel{Id: 5, GuildId: 10, Name: "general"}

	t.Run("member", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		defer db.AssertExpectations(t)
		db.On("GetChannel", 5).Return(channel, nil).Once()
		db.On("IsGuildMember", 10, 1).Return(true, nil).Once()

		room, err := NewResolver(db).ChannelRoom(ctx, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, Channel(5), room)
	})

	t.Run("not a member", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		db.On("GetChannel", 5).Return(channel, nil).Once()
		db.On("IsGuildMember", 10, 1).Return(false, nil).Once()

		_, err := NewResolver(db).ChannelRoom(ctx, 1, 5)
		assert.ErrorIs(t, err, ErrNotMember)
	})

	t.Run("unknown channel", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		db.On("GetChannel", 5).Return(database.Channel{}, database.ErrNotFound).Once()

		_, err := NewResolver(db).ChannelRoom(ctx, 1, 5)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("store failure", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		db.On("GetChannel", 5).Return(channel, nil).Once()
		db.On("IsGuildMember", 10, 1).Return(false, errors.New("timeout")).Once()

		_, err := NewResolver(db).ChannelRoom(ctx, 1, 5)
		var lookupErr *LookupError
		assert.ErrorAs(t, err, &lookupErr)
	})
}

func TestAdHocRoom(t *testing.T) {
	assert.Equal(t, Channel(5), AdHocRoom(ChannelRoom, 5))
	assert.Equal(t, User(3), AdHocRoom(UserRoom, 3))
}
