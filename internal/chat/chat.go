// Package chat connects to the support chat websocket. Inbound frames are
// decoded, validated and delivered on a channel; outbound messages are written
// one at a time.
package chat

import (
	"context"
	"net/http"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsonitor "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
	"github.com/uparkt/parkadmin/internal/observability"
	"github.com/uparkt/parkadmin/internal/schema"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // Must be less than pongWait
	maxMessageSize = 64 << 10
	inboundBuffer  = 64
)

// ErrClosed is returned when sending on a closed connection.
var ErrClosed = apperrors.ErrTransport.New("chat connection closed")

// Message is a chat message as exchanged over the socket.
type Message struct {
	ChatID   int64              `json:"id_chat" validate:"required"`
	Msg      string             `json:"msg" validate:"notblank"`
	MsgType  int                `json:"msgType"`
	Sent     schema.EpochMillis `json:"timestamp_send"`
	SenderID int64              `json:"id_sender"`
}

// UnmarshalJSON accepts the message type as either msgType or msg_type.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var in struct {
		plain
		AltType *int `json:"msg_type"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = Message(in.plain)
	if in.AltType != nil {
		m.MsgType = *in.AltType
	}
	return nil
}

// URL returns the socket address for a chat token.
func URL(wsOrigin, prefix, token string) string {
	return wsOrigin + path.Join("/", prefix, "chats", token)
}

// Conn is an open chat socket.
type Conn struct {
	conn *websocket.Conn
	in   chan Message
	now  func() time.Time

	writeMu   sync.Mutex
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens the chat socket of the signed-in staff member.
func Dial(ctx context.Context, wsOrigin, prefix, token string) (*Conn, error) {
	if token == "" {
		return nil, apperrors.ErrNoSession.Msg("no chat token")
	}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, URL(wsOrigin, prefix, token), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, apperrors.ErrUnauthorized.MsgErr("chat handshake rejected", err).SetStatusCode(resp.StatusCode)
		}
		return nil, apperrors.ErrTransport.MsgErr("unable to open chat", err)
	}
	c := &Conn{
		conn: ws,
		in:   make(chan Message, inboundBuffer),
		now:  time.Now,
		done: make(chan struct{}),
	}
	go c.readPump()
	go c.pingPump()
	return c, nil
}

// Messages delivers inbound messages. It is closed when the connection ends.
func (c *Conn) Messages() <-chan Message {
	return c.in
}

// Done is closed once Close has been called or the connection failed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Send writes m to the socket, stamping the send time when unset.
func (c *Conn) Send(ctx context.Context, m Message) error {
	if m.Sent.IsZero() {
		m.Sent = schema.EpochMillis{Time: c.now()}
	}
	if err := schema.Validate(&m); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return apperrors.ErrValidation.MsgErr("unable to encode message", err)
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.write(websocket.TextMessage, data, deadline); err != nil {
		return err
	}
	observability.ChatMessagesTotal.WithLabelValues("out").Inc()
	return nil
}

// Close ends the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.write(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closed.Store(true)
		c.writeMu.Lock()
		c.conn.Close()
		c.writeMu.Unlock()
		close(c.done)
	})
	return nil
}

func (c *Conn) write(messageType int, data []byte, deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return apperrors.ErrTransport.MsgErr("unable to write message", err)
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		return apperrors.ErrTransport.MsgErr("unable to write message", err)
	}
	return nil
}

func (c *Conn) readPump() {
	defer func() {
		close(c.in)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Warn().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !c.closed.Load() {
				log.Warn().Err(err).Msg("chat connection lost")
			}
			return
		}

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn().Err(err).Msg("invalid chat frame")
			continue
		}
		if err := schema.Validate(&m); err != nil {
			log.Warn().Err(err).Msg("invalid chat message")
			continue
		}
		observability.ChatMessagesTotal.WithLabelValues("in").Inc()

		select {
		case c.in <- m:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Msg("chat ping failed")
				c.Close()
				return
			}
		}
	}
}
