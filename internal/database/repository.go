package database

import "context"

type HarmonyRepository interface {
	Ping() error
	CreateAccount(ctx context.Context, params CreateAccountParams) (User, error)
	GetAccountById(ctx context.Context, userId int) (User, error)
	GetAccountByEmail(ctx context.Context, email string) (User, error)
	GetAccountByUsername(ctx context.Context, username string) (User, error)
	UpdateAccount(ctx context.Context, params UpdateAccountParams) (User, error)
	GetUserGuildMemberships(ctx context.Context, userId int) ([]int, error)
	SetUserPresence(ctx context.Context, userId int, status string) error
	GetChannel(ctx context.Context, channelId int) (Channel, error)
	IsGuildMember(ctx context.Context, guildId, userId int) (bool, error)
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessage(ctx context.Context, messageId int) (Message, error)
	DeleteMessage(ctx context.Context, messageId int) error
	CreateFriendRequest(ctx context.Context, senderId, recipientId int) (FriendRequest, error)
	GetFriendRequest(ctx context.Context, requestId int) (FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, requestId int) error
	RejectFriendRequest(ctx context.Context, requestId int) error
	RemoveFriend(ctx context.Context, userId, friendId int) error
	GetFriends(ctx context.Context, userId int) ([]User, error)
	GetChannelMessages(ctx context.Context, channelId int, page Page) ([]Message, error)
	GetDirectMessages(ctx context.Context, userId, otherId int, page Page) ([]Message, error)

	CreateGuild(ctx context.Context, params CreateGuildParams) (Guild, error)
	GetGuild(ctx context.Context, guildId int) (Guild, error)
	GetUserGuilds(ctx context.Context, userId int) ([]Guild, error)
	UpdateGuild(ctx context.Context, params UpdateGuildParams) (Guild, error)
	DeleteGuild(ctx context.Context, guildId int) error
	AddGuildMember(ctx context.Context, guildId, userId int) error
	RemoveGuildMember(ctx context.Context, guildId, userId int) error

	CreateChannel(ctx context.Context, guildId int, name string) (Channel, error)
	GetGuildChannels(ctx context.Context, guildId int) ([]Channel, error)
	UpdateChannel(ctx context.Context, params UpdateChannelParams) (Channel, error)
	DeleteChannel(ctx context.Context, channelId int) error

	CreateInvite(ctx context.Context, params CreateInviteParams) (Invite, error)
	GetInvite(ctx context.Context, code string) (Invite, error)
	UseInvite(ctx context.Context, inviteId, userId int) error
	DeleteInvite(ctx context.Context, inviteId int) error
}
