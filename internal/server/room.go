package server

import "fmt"

// RoomKind tags the address space a RoomId belongs to.
type RoomKind uint8

const (
	GuildRoom RoomKind = iota + 1
	UserRoom
	ChannelRoom
)

func (k RoomKind) String() string {
	switch k {
	case GuildRoom:
		return "guild"
	case UserRoom:
		return "user"
	case ChannelRoom:
		return "channel"
	}
	return "unknown"
}

// RoomId is a logical broadcast group. It is never persisted; its membership
// is whatever sessions have joined it.
type RoomId struct {
	Kind RoomKind
	Id   int
}

func Guild(id int) RoomId   { return RoomId{Kind: GuildRoom, Id: id} }
func User(id int) RoomId    { return RoomId{Kind: UserRoom, Id: id} }
func Channel(id int) RoomId { return RoomId{Kind: ChannelRoom, Id: id} }

func (r RoomId) Valid() bool {
	return r.Kind >= GuildRoom && r.Kind <= ChannelRoom && r.Id > 0
}

func (r RoomId) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.Id)
}

func (r RoomId) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
