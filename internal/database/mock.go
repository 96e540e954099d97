package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockHarmonyRepository struct {
	mock.Mock
}

func (m *MockHarmonyRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockHarmonyRepository) CreateAccount(_ context.Context, params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockHarmonyRepository) GetAccountById(_ context.Context, userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockHarmonyRepository) GetAccountByEmail(_ context.Context, email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockHarmonyRepository) GetAccountByUsername(_ context.Context, username string) (User, error) {
	args := m.Called(username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockHarmonyRepository) GetUserGuildMemberships(_ context.Context, userId int) ([]int, error) {
	args := m.Called(userId)
	if guilds, ok := args.Get(0).([]int); ok {
		return guilds, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockHarmonyRepository) SetUserPresence(_ context.Context, userId int, status string) error {
	args := m.Called(userId, status)
	return args.Error(0)
}
func (m *MockHarmonyRepository) GetChannel(_ context.Context, channelId int) (Channel, error) {
	args := m.Called(channelId)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockHarmonyRepository) IsGuildMember(_ context.Context, guildId, userId int) (bool, error) {
	args := m.Called(guildId, userId)
	return args.Bool(0), args.Error(1)
}
func (m *MockHarmonyRepository) CreateMessage(_ context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockHarmonyRepository) GetMessage(_ context.Context, messageId int) (Message, error) {
	args := m.Called(messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockHarmonyRepository) DeleteMessage(_ context.Context, messageId int) error {
	args := m.Called(messageId)
	return args.Error(0)
}
func (m *MockHarmonyRepository) CreateFriendRequest(_ context.Context, senderId, recipientId int) (FriendRequest, error) {
	args := m.Called(senderId, recipientId)
	return args.Get(0).(FriendRequest), args.Error(1)
}
func (m *MockHarmonyRepository) GetFriendRequest(_ context.Context, requestId int) (FriendRequest, error) {
	args := m.Called(requestId)
	return args.Get(0).(FriendRequest), args.Error(1)
}
func (m *MockHarmonyRepository) AcceptFriendRequest(_ context.Context, requestId int) error {
	args := m.Called(requestId)
	return args.Error(0)
}
func (m *MockHarmonyRepository) RejectFriendRequest(_ context.Context, requestId int) error {
	args := m.Called(requestId)
	return args.Error(0)
}
func (m *MockHarmonyRepository) RemoveFriend(_ context.Context, userId, friendId int) error {
	args := m.Called(userId, friendId)
	return args.Error(0)
}
func (m *MockHarmonyRepository) UpdateAccount(_ context.Context, params UpdateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockHarmonyRepository) GetFriends(_ context.Context, userId int) ([]User, error) {
	args := m.Called(userId)
	if friends, ok := args.Get(0).([]User); ok {
		return friends, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockHarmonyRepository) GetChannelMessages(_ context.Context, channelId int, page Page) ([]Message, error) {
	args := m.Called(channelId, page)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockHarmonyRepository) GetDirectMessages(_ context.Context, userId, otherId int, page Page) ([]Message, error) {
	args := m.Called(userId, otherId, page)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockHarmonyRepository) CreateGuild(_ context.Context, params CreateGuildParams) (Guild, error) {
	args := m.Called(params)
	return args.Get(0).(Guild), args.Error(1)
}
func (m *MockHarmonyRepository) GetGuild(_ context.Context, guildId int) (Guild, error) {
	args := m.Called(guildId)
	return args.Get(0).(Guild), args.Error(1)
}
func (m *MockHarmonyRepository) GetUserGuilds(_ context.Context, userId int) ([]Guild, error) {
	args := m.Called(userId)
	if guilds, ok := args.Get(0).([]Guild); ok {
		return guilds, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockHarmonyRepository) UpdateGuild(_ context.Context, params UpdateGuildParams) (Guild, error) {
	args := m.Called(params)
	return args.Get(0).(Guild), args.Error(1)
}
func (m *MockHarmonyRepository) DeleteGuild(_ context.Context, guildId int) error {
	args := m.Called(guildId)
	return args.Error(0)
}
func (m *MockHarmonyRepository) AddGuildMember(_ context.Context, guildId, userId int) error {
	args := m.Called(guildId, userId)
	return args.Error(0)
}
func (m *MockHarmonyRepository) RemoveGuildMember(_ context.Context, guildId, userId int) error {
	args := m.Called(guildId, userId)
	return args.Error(0)
}
func (m *MockHarmonyRepository) CreateChannel(_ context.Context, guildId int, name string) (Channel, error) {
	args := m.Called(guildId, name)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockHarmonyRepository) GetGuildChannels(_ context.Context, guildId int) ([]Channel, error) {
	args := m.Called(guildId)
	if channels, ok := args.Get(0).([]Channel); ok {
		return channels, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockHarmonyRepository) UpdateChannel(_ context.Context, params UpdateChannelParams) (Channel, error) {
	args := m.Called(params)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockHarmonyRepository) DeleteChannel(_ context.Context, channelId int) error {
	args := m.Called(channelId)
	return args.Error(0)
}
func (m *MockHarmonyRepository) CreateInvite(_ context.Context, params CreateInviteParams) (Invite, error) {
	args := m.Called(params)
	return args.Get(0).(Invite), args.Error(1)
}
func (m *MockHarmonyRepository) GetInvite(_ context.Context, code string) (Invite, error) {
	args := m.Called(code)
	return args.Get(0).(Invite), args.Error(1)
}
func (m *MockHarmonyRepository) UseInvite(_ context.Context, inviteId, userId int) error {
	args := m.Called(inviteId, userId)
	return args.Error(0)
}
func (m *MockHarmonyRepository) DeleteInvite(_ context.Context, inviteId int) error {
	args := m.Called(inviteId)
	return args.Error(0)
}
