package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/npezzotti/harmony-hub/internal/database"
)

type MembershipStore interface {
	GetUserGuildMemberships(ctx context.Context, userId int) ([]int, error)
	GetChannel(ctx context.Context, channelId int) (database.Channel, error)
	IsGuildMember(ctx context.Context, guildId, userId int) (bool, error)
}

// Resolver translates persisted guild membership into room ids. It keeps no
// state of its own.
type Resolver struct {
	store MembershipStore
}

func NewResolver(store MembershipStore) *Resolver {
	return &Resolver{store: store}
}

// InitialRooms returns the user's personal room plus one room per guild the
// user belongs to.
func (r *Resolver) InitialRooms(ctx context.Context, userId int) ([]RoomId, error) {
	guilds, err := r.store.GetUserGuildMemberships(ctx, userId)
	if err != nil {
		return nil, &LookupError{UserId: userId, Err: err}
	}

	rooms := make([]RoomId, 0, len(guilds)+1)
	rooms = append(rooms, User(userId))
	for _, g := range guilds {
		rooms = append(rooms, Guild(g))
	}
	return rooms, nil
}

// ChannelRoom resolves the typing room of a channel the user can see.
func (r *Resolver) ChannelRoom(ctx context.Context, userId, channelId int) (RoomId, error) {
	ch, err := r.store.GetChannel(ctx, channelId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return RoomId{}, fmt.Errorf("channel %d: %w", channelId, database.ErrNotFound)
		}
		return RoomId{}, &LookupError{UserId: userId, Err: err}
	}

	ok, err := r.store.IsGuildMember(ctx, ch.GuildId, userId)
	if err != nil {
		return RoomId{}, &LookupError{UserId: userId, Err: err}
	}
	if !ok {
		return RoomId{}, ErrNotMember
	}

	return Channel(ch.Id), nil
}

// AdHocRoom builds a room id without any lookup.
func AdHocRoom(kind RoomKind, id int) RoomId {
	return RoomId{Kind: kind, Id: id}
}
