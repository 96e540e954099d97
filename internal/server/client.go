package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/harmony-hub/internal/database"
	"github.com/npezzotti/harmony-hub/internal/types"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	requestTimeout = 10 * time.Second
)

// chatService is what a client needs from the chat server.
type chatService interface {
	Connect(ctx context.Context, conn Conn, userId int) (SessionId, error)
	Disconnect(sid SessionId)
	UpdateStatus(ctx context.Context, userId int, status string) error
	Subscribe(ctx context.Context, sid SessionId, userId, channelId int) (RoomId, error)
	Unsubscribe(ctx context.Context, sid SessionId, channelId int) error
	Typing(sid SessionId, userId int, t *Typing) int
}

// Client is a single websocket session.
type Client struct {
	conn     *websocket.Conn
	cs       chatService
	log      zerolog.Logger
	user     types.User
	sid      SessionId
	send     chan *ServerMessage
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l zerolog.Logger) *Client {
	return newClient(user, conn, cs, l)
}

func newClient(user types.User, conn *websocket.Conn, cs chatService, l zerolog.Logger) *Client {
	return &Client{
		conn: conn,
		cs:   cs,
		log:  l.With().Int("user_id", user.Id).Logger(),
		user: user,
		send: make(chan *ServerMessage, 256),
		stop: make(chan struct{}),
	}
}

// Start registers the session and starts both pumps. The websocket is
// closed if the session could not be established.
func (c *Client) Start(ctx context.Context) error {
	sid, err := c.cs.Connect(ctx, c, c.user.Id)
	if err != nil {
		c.conn.Close()
		return err
	}
	c.sid = sid

	go c.Write()
	go c.Read()
	return nil
}

// Deliver queues msg without blocking.
func (c *Client) Deliver(msg *ServerMessage) bool {
	return c.queueMessage(msg)
}

// Close stops the write pump, which in turn closes the websocket.
func (c *Client) Close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	return nil
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug().Str("sid", string(c.sid)).Msg("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Error().Err(err).Msg("failed to serialize message")
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.sendMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Debug().Str("sid", string(c.sid)).Msg("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("ws read")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Debug().Err(err).Msg("error parsing message")
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.Timestamp = Now()
		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *ClientMessage) {
	switch {
	case msg.Typing != nil:
		c.cs.Typing(c.sid, c.user.Id, msg.Typing)
	case msg.UpdateStatus != nil:
		c.updateStatus(msg)
	case msg.Subscribe != nil:
		c.subscribe(msg)
	case msg.Unsubscribe != nil:
		c.unsubscribe(msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (c *Client) updateStatus(msg *ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	err := c.cs.UpdateStatus(ctx, c.user.Id, msg.UpdateStatus.Status)
	var invalid *InvalidStatusError
	switch {
	case err == nil:
		c.queueMessage(NoErrOK(msg.Id, nil))
	case errors.As(err, &invalid):
		c.queueMessage(ErrBadRequest(msg.Id, err))
	default:
		c.log.Error().Err(err).Msg("failed to update status")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) subscribe(msg *ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	room, err := c.cs.Subscribe(ctx, c.sid, c.user.Id, msg.Subscribe.ChannelId)
	switch {
	case err == nil:
		c.queueMessage(NoErrOK(msg.Id, map[string]string{"room": room.String()}))
	case errors.Is(err, ErrNotMember):
		c.queueMessage(ErrForbidden(msg.Id))
	case errors.Is(err, database.ErrNotFound):
		c.queueMessage(ErrNotFound(msg.Id))
	case errors.Is(err, ErrServerStopped):
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	default:
		c.log.Error().Err(err).Int("channel_id", msg.Subscribe.ChannelId).Msg("failed to subscribe")
		c.queueMessage(ErrInternalError(msg.Id))
	}
}

func (c *Client) unsubscribe(msg *ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := c.cs.Unsubscribe(ctx, c.sid, msg.Unsubscribe.ChannelId); err != nil {
		c.queueMessage(ErrServiceUnavailable(msg.Id))
		return
	}
	c.queueMessage(NoErrOK(msg.Id, nil))
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Warn().Err(err).Msg("write message")
		}
		return false
	}

	return true
}

func (c *Client) cleanup() {
	c.cs.Disconnect(c.sid)
	c.Close()
}
