package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/npezzotti/harmony-hub/internal/database"
	"github.com/npezzotti/harmony-hub/internal/stats"
	"github.com/npezzotti/harmony-hub/internal/testutil"
	"github.com/npezzotti/harmony-hub/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func startTestChatServer(t *testing.T, db Store) *ChatServer {
	cs := newTestChatServer(t, db)
	go cs.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		cs.Shutdown(ctx)
	})
	return cs
}

func shutdown(t *testing.T, cs *ChatServer) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, cs.Shutdown(ctx))
}

func TestNewChatServer(t *testing.T) {
	db := &database.MockHarmonyRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", stats.NumActiveSessions).Return().Once()
	su.On("RegisterMetric", stats.NumOnlineUsers).Return().Once()
	su.On("RegisterMetric", stats.NumEventsPublished).Return().Once()
	su.On("RegisterMetric", stats.NumEventsDropped).Return().Once()

	cs, err := NewChatServer(testutil.TestLogger(t), db, su, 0)
	assert.NoError(t, err, "expected no error creating ChatServer")
	assert.NotNil(t, cs.registry, "expected registry to be initialized")
	assert.NotNil(t, cs.resolver, "expected resolver to be initialized")
	assert.NotNil(t, cs.presence, "expected presence tracker to be initialized")
	assert.NotNil(t, cs.signals, "expected signal handler to be initialized")
	assert.Equal(t, cs.relay, cs.Relay())
	assert.NotNil(t, cs.stop, "expected stop channel to be initialized")
}

func TestChatServer_Connect(t *testing.T) {
	db := &database.MockHarmonyRepository{}
	db.On("GetUserGuildMemberships", 1).Return([]int{10}, nil).Once()
	db.On("GetUserGuildMemberships", 2).Return([]int{10}, nil).Once()
	db.On("SetUserPresence", mock.Anything, mock.Anything).Return(nil)

	cs := startTestChatServer(t, db)
	ctx := context.Background()

	observer := &fakeConn{}
	_, err := cs.Connect(ctx, observer, 2)
	require.NoError(t, err)

	conn := &fakeConn{}
	sid, err := cs.Connect(ctx, conn, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, sid)

	assert.Contains(t, cs.registry.SessionsInRoom(User(1)), sid)
	assert.Contains(t, cs.registry.SessionsInRoom(Guild(10)), sid)
	assert.Equal(t, types.StatusOnline, cs.Presence().Status(1))

	cs.Disconnect(sid)
	assert.Eventually(t, func() bool {
		return cs.Presence().Status(1) == types.StatusOffline
	}, time.Second, 10*time.Millisecond)

	shutdown(t, cs)
	assert.Equal(t, []types.Status{types.StatusOnline, types.StatusOffline}, presenceStatuses(observer, 1))
	db.AssertExpectations(t)
}

func TestChatServer_ConnectLookupError(t *testing.T) {
	db := &database.MockHarmonyRepository{}
	db.On("GetUserGuildMemberships", 1).Return(nil, errors.New("db down")).Once()

	cs := startTestChatServer(t, db)
	conn := &fakeConn{}

	sid, err := cs.Connect(context.Background(), conn, 1)
	assert.Empty(t, sid)

	var lookupErr *LookupError
	require.ErrorAs(t, err, &lookupErr)

	assert.Eventually(t, func() bool {
		return cs.registry.Len() == 0
	}, time.Second, 10*time.Millisecond, "expected failed session to be removed")
	assert.Equal(t, types.StatusOffline, cs.Presence().Status(1))

	shutdown(t, cs)
	db.AssertNotCalled(t, "SetUserPresence", mock.Anything, mock.Anything)
	assert.Empty(t, conn.messages())
}

func TestChatServer_OfflineAfterFailedSecondSession(t *testing.T) {
	release := make(chan time.Time)
	db := &database.MockHarmonyRepository{}
	db.On("GetUserGuildMemberships", 2).Return([]int{10}, nil).Once()
	db.On("GetUserGuildMemberships", 1).Return([]int{10}, nil).Once()
	db.On("GetUserGuildMemberships", 1).WaitUntil(release).Return(nil, errors.New("db down")).Once()
	db.On("SetUserPresence", mock.Anything, mock.Anything).Return(nil)

	cs := startTestChatServer(t, db)
	ctx := context.Background()

	observer := &fakeConn{}
	_, err := cs.Connect(ctx, observer, 2)
	require.NoError(t, err)

	first, err := cs.Connect(ctx, &fakeConn{}, 1)
	require.NoError(t, err)

	failed := make(chan error, 1)
	go func() {
		_, err := cs.Connect(ctx, &fakeConn{}, 1)
		failed <- err
	}()
	require.Eventually(t, func() bool {
		return len(cs.registry.SessionsForUser(1)) == 2
	}, time.Second, 10*time.Millisecond, "expected the second session to register")

	cs.Disconnect(first)
	require.Eventually(t, func() bool {
		return len(cs.registry.SessionsForUser(1)) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, types.StatusOnline, cs.Presence().Status(1))

	close(release)
	var lookupErr *LookupError
	require.ErrorAs(t, <-failed, &lookupErr)

	assert.Eventually(t, func() bool {
		return cs.Presence().Status(1) == types.StatusOffline
	}, time.Second, 10*time.Millisecond)

	shutdown(t, cs)
	assert.Equal(t, []types.Status{types.StatusOnline, types.StatusOffline}, presenceStatuses(observer, 1))
}

func TestChatServer_Subscribe(t *testing.T) {
	db := &database.MockHarmonyRepository{}
	db.On("GetUserGuildMemberships", 1).Return([]int{10}, nil).Once()
	db.On("SetUserPresence", mock.Anything, mock.Anything).Return(nil)
	db.On("GetChannel", 5).Return(database.Channel{Id: 5, GuildId: 10}, nil)
	db.On("GetChannel", 6).Return(database.Channel{Id: 6, GuildId: 11}, nil)
	db.On("IsGuildMember", 10, 1).Return(true, nil)
	db.On("IsGuildMember", 11, 1).Return(false, nil)

	cs := startTestChatServer(t, db)
	ctx := context.Background()

	sid, err := cs.Connect(ctx, &fakeConn{}, 1)
	require.NoError(t, err)

	room, err := cs.Subscribe(ctx, sid, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, Channel(5), room)
	assert.Contains(t, cs.registry.SessionsInRoom(Channel(5)), sid)

	_, err = cs.Subscribe(ctx, sid, 1, 6)
	assert.ErrorIs(t, err, ErrNotMember)
	assert.Empty(t, cs.registry.SessionsInRoom(Channel(6)))

	_, err = cs.Subscribe(ctx, "missing", 1, 5)
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, cs.Unsubscribe(ctx, sid, 5))
	assert.Empty(t, cs.registry.SessionsInRoom(Channel(5)))
	assert.ElementsMatch(t, []RoomId{User(1), Guild(10)}, cs.registry.RoomsForUser(1))
}

func TestChatServer_UpdateStatus(t *testing.T) {
	db := &database.MockHarmonyRepository{}
	db.On("GetUserGuildMemberships", 1).Return([]int{}, nil).Once()
	db.On("SetUserPresence", mock.Anything, mock.Anything).Return(nil)

	cs := startTestChatServer(t, db)
	ctx := context.Background()

	conn := &fakeConn{}
	_, err := cs.Connect(ctx, conn, 1)
	require.NoError(t, err)

	require.NoError(t, cs.UpdateStatus(ctx, 1, "idle"))
	assert.Equal(t, types.StatusIdle, cs.Presence().Status(1))

	var invalid *InvalidStatusError
	assert.ErrorAs(t, cs.UpdateStatus(ctx, 1, "busy"), &invalid)
	assert.Equal(t, types.StatusIdle, cs.Presence().Status(1))

	shutdown(t, cs)
	assert.Equal(t, []types.Status{types.StatusOnline, types.StatusIdle}, presenceStatuses(conn, 1),
		"expected the session to be gone before the offline broadcast")
}

func TestChatServer_Shutdown(t *testing.T) {
	t.Run("closes sessions", func(t *testing.T) {
		db := &database.MockHarmonyRepository{}
		db.On("GetUserGuildMemberships", 1).Return([]int{}, nil).Once()
		db.On("SetUserPresence", 1, "online").Return(nil).Once()
		db.On("SetUserPresence", 1, "offline").Return(nil).Once()

		cs := newTestChatServer(t, db)
		go cs.Run()

		conn := &fakeConn{}
		_, err := cs.Connect(context.Background(), conn, 1)
		require.NoError(t, err)

		shutdown(t, cs)
		assert.True(t, conn.isClosed(), "expected session to be closed")
		assert.Equal(t, 0, cs.registry.Len())
		db.AssertExpectations(t)

		_, err = cs.Connect(context.Background(), &fakeConn{}, 1)
		assert.ErrorIs(t, err, ErrServerStopped)
		assert.ErrorIs(t, cs.UpdateStatus(context.Background(), 1, "idle"), ErrServerStopped)
		cs.Disconnect("anything")
	})

	t.Run("context deadline", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockHarmonyRepository{})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded, "expected deadline when the loop is not running")
	})
}
