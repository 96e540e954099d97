package database

import "time"

type User struct {
	Id            int
	Username      string
	Discriminator string
	Avatar        string
	Status        string
	EmailAddress  string
	PasswordHash  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Channel struct {
	Id        int
	GuildId   int
	Name      string
	CreatedAt time.Time
}

// Message is either a channel message (ChannelId set) or a direct message
// (RecipientId set).
type Message struct {
	Id          int
	Content     string
	SenderId    int
	Sender      User
	ChannelId   int
	RecipientId int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type FriendRequest struct {
	Id          int
	SenderId    int
	Sender      User
	RecipientId int
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	FriendRequestPending  = "pending"
	FriendRequestAccepted = "accepted"
	FriendRequestRejected = "rejected"
)

type CreateAccountParams struct {
	Username      string
	Discriminator string
	EmailAddress  string
	PasswordHash  string
}

type CreateMessageParams struct {
	Content     string
	SenderId    int
	ChannelId   int
	RecipientId int
}

type Guild struct {
	Id          int
	Name        string
	Description string
	OwnerId     int
	MemberCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Invite is a shareable code that adds its bearer to a guild. MaxUses of
// zero means unlimited; a zero ExpiresAt never expires.
type Invite struct {
	Id        int
	Code      string
	GuildId   int
	InviterId int
	Uses      int
	MaxUses   int
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (i Invite) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

func (i Invite) Exhausted() bool {
	return i.MaxUses > 0 && i.Uses >= i.MaxUses
}

type CreateGuildParams struct {
	Name        string
	Description string
	OwnerId     int
}

type UpdateGuildParams struct {
	Id          int
	Name        string
	Description *string
}

type UpdateChannelParams struct {
	Id   int
	Name string
}

type UpdateAccountParams struct {
	Id       int
	Username string
	Avatar   *string
}

type CreateInviteParams struct {
	Code      string
	GuildId   int
	InviterId int
	MaxUses   int
	ExpiresAt time.Time
}

// Page bounds a history read. Before of zero starts from the newest row.
type Page struct {
	Limit  int
	Before int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Before < 0 {
		p.Before = 0
	}
	return p
}
