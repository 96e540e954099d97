package types

import (
	"time"
)

type Status string

const (
	StatusOnline    Status = "online"
	StatusIdle      Status = "idle"
	StatusDnd       Status = "dnd"
	StatusInvisible Status = "invisible"
	StatusOffline   Status = "offline"
)

// ParseStatus reports whether s names one of the five presence states.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusOnline, StatusIdle, StatusDnd, StatusInvisible, StatusOffline:
		return st, true
	}
	return "", false
}

type User struct {
	Id            int       `json:"id"`
	Username      string    `json:"username"`
	Discriminator string    `json:"discriminator,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	Status        Status    `json:"status,omitempty"`
	EmailAddress  string    `json:"email_address,omitempty"`
	Password      string    `json:"-"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	Id          int       `json:"id"`
	Content     string    `json:"content"`
	Sender      User      `json:"sender"`
	ChannelId   int       `json:"channel_id,omitempty"`
	RecipientId int       `json:"recipient_id,omitempty"`
	Recipient   *User     `json:"recipient,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type FriendRequest struct {
	Id          int       `json:"id"`
	Sender      User      `json:"sender"`
	RecipientId int       `json:"recipient_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// PresenceUpdate is the payload of a presenceUpdate event.
type PresenceUpdate struct {
	UserId int    `json:"user_id"`
	Status Status `json:"status"`
}

type TypingIndicator struct {
	UserId    int  `json:"user_id"`
	ChannelId int  `json:"channel_id,omitempty"`
	IsTyping  bool `json:"is_typing"`
}

type DirectMessageDeleted struct {
	MessageId int `json:"message_id"`
	SenderId  int `json:"sender_id"`
}

type FriendRequestResolved struct {
	RequestId int `json:"request_id"`
	UserId    int `json:"user_id"`
}

type FriendRemoved struct {
	UserId int `json:"user_id"`
}

type Guild struct {
	Id          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerId     int       `json:"owner_id"`
	MemberCount int       `json:"member_count"`
	Channels    []Channel `json:"channels,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Channel struct {
	Id        int       `json:"id"`
	GuildId   int       `json:"guild_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Invite struct {
	Code      string     `json:"code"`
	GuildId   int        `json:"guild_id"`
	InviterId int        `json:"inviter_id"`
	Uses      int        `json:"uses"`
	MaxUses   int        `json:"max_uses"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// InvitePreview is what an invite code reveals before it is accepted.
type InvitePreview struct {
	Invite
	GuildName   string `json:"guild_name"`
	MemberCount int    `json:"member_count"`
}

type GuildMember struct {
	GuildId int `json:"guild_id"`
	UserId  int `json:"user_id"`
}

type GuildDeleted struct {
	GuildId int `json:"guild_id"`
}

type ChannelDeleted struct {
	ChannelId int `json:"channel_id"`
	GuildId   int `json:"guild_id"`
}
