package server

import (
	"net/http"
	"time"
)

// Outbound event names.
const (
	EventMessage               = "message"
	EventDirectMessage         = "directMessage"
	EventDirectMessageDeleted  = "directMessageDeleted"
	EventFriendRequest         = "friendRequest"
	EventFriendRequestAccepted = "friendRequestAccepted"
	EventFriendRequestRejected = "friendRequestRejected"
	EventFriendRemoved         = "friendRemoved"
	EventTyping                = "typing"
	EventPresenceUpdate        = "presenceUpdate"
	EventGuildUpdate           = "guildUpdate"
	EventGuildDelete           = "guildDelete"
	EventGuildMemberAdd        = "guildMemberAdd"
	EventGuildMemberRemove     = "guildMemberRemove"
	EventChannelCreate         = "channelCreate"
	EventChannelUpdate         = "channelUpdate"
	EventChannelDelete         = "channelDelete"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Typing       *Typing       `json:"typing,omitempty"`
	UpdateStatus *UpdateStatus `json:"update_status,omitempty"`
	Subscribe    *Subscribe    `json:"subscribe,omitempty"`
	Unsubscribe  *Subscribe    `json:"unsubscribe,omitempty"`
}

// Typing targets either a channel or a single recipient. When both are set
// the channel wins.
type Typing struct {
	ChannelId   int  `json:"channel_id,omitempty"`
	RecipientId int  `json:"recipient_id,omitempty"`
	IsTyping    bool `json:"is_typing"`
}

type UpdateStatus struct {
	Status string `json:"status"`
}

type Subscribe struct {
	ChannelId int `json:"channel_id"`
}

type ServerMessage struct {
	BaseMessage
	Event    string    `json:"event,omitempty"`
	Data     any       `json:"data,omitempty"`
	Response *Response `json:"response,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

func NewEvent(event string, payload any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: event,
		Data:  payload,
	}
}

func response(id, code int, errMsg string, data any) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        errMsg,
			Data:         data,
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func NoErrOK(id int, data any) *ServerMessage {
	return response(id, http.StatusOK, "", data)
}

func ErrBadRequest(id int, err error) *ServerMessage {
	return response(id, http.StatusBadRequest, err.Error(), nil)
}

func ErrInvalidMessage(id int) *ServerMessage {
	return response(id, http.StatusBadRequest, "invalid message format", nil)
}

func ErrForbidden(id int) *ServerMessage {
	return response(id, http.StatusForbidden, "forbidden", nil)
}

func ErrNotFound(id int) *ServerMessage {
	return response(id, http.StatusNotFound, "not found", nil)
}

func ErrInternalError(id int) *ServerMessage {
	return response(id, http.StatusInternalServerError, "internal server error", nil)
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return response(id, http.StatusServiceUnavailable, "service unavailable", nil)
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
