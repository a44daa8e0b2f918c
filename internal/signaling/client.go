package signaling

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-callsignal/internal/auth"
	"github.com/rs/zerolog"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	// SDP offers with many candidates run to tens of kilobytes.
	maxMessageSize = 64 * 1024
	sendQueueSize  = 256
)

// Client is one websocket connection. Read dispatches inbound events into the
// SignalingServer on the connection's own goroutine; Write drains the send queue.
type Client struct {
	id       string
	identity *auth.Identity
	conn     *websocket.Conn
	cs       *SignalingServer
	log      zerolog.Logger
	send     chan *ServerMessage
	stop     chan struct{}
	stopOnce sync.Once
}

// NewClient assigns the connection a fresh opaque id. A nil identity marks a guest.
func NewClient(identity *auth.Identity, conn *websocket.Conn, cs *SignalingServer, l zerolog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:       id,
		identity: identity,
		conn:     conn,
		cs:       cs,
		log:      l.With().Str("conn_id", id).Logger(),
		send:     make(chan *ServerMessage, sendQueueSize),
		stop:     make(chan struct{}),
	}
}

func (c *Client) Id() string {
	return c.id
}

func (c *Client) Identity() *auth.Identity {
	return c.identity
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug().Msg("write exiting")
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Error().Err(err).Msg("failed to serialize message")
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
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
		c.log.Debug().Msg("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Error().Err(err).Msg("ws read")
			}
			break
		}

		msg, err := parseMessage(raw)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed message")
			continue
		}

		c.cs.Dispatch(c, msg)
	}
}

func parseMessage(raw []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}

	if err := msg.validate(); err != nil {
		return nil, err
	}

	return &msg, nil
}

// queueMessage never blocks; a full queue drops the message.
func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Warn().Str("event", msg.Event).Msg("send queue full, dropping message")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Error().Err(err).Msg("write message")
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// cleanup applies leave semantics to every room the connection is in.
func (c *Client) cleanup() {
	c.cs.Dispatch(c, &ClientMessage{Disconnect: &Disconnect{}})
	c.cs.DeregisterClient(c)
	c.stopClient()
}
