// Package transport carries event frames over a websocket connection.
package transport

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

type Dialer struct {
	url    string
	dialer *websocket.Dialer
}

func NewDialer(url string) *Dialer {
	return &Dialer{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

func (d *Dialer) Dial(ctx context.Context) (contract.Transport, error) {
	conn, _, err := d.dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrTransportUnavailable, d.url, err)
	}
	return NewConn(conn), nil
}

// Conn is a websocket connection exchanging JSON frames. Writes are
// serialized; reads must come from a single goroutine.
type Conn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewConn(conn *websocket.Conn) *Conn {
	conn.SetReadLimit(maxMessageSize)
	return &Conn{conn: conn}
}

// ReadFrame blocks until the next frame. A frame that is not valid JSON
// or carries no event name yields ErrInvalidPayload and leaves the
// connection usable.
func (c *Conn) ReadFrame() (event.Frame, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return event.Frame{}, err
	}
	var frame event.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return event.Frame{}, fmt.Errorf("%w: frame: %v", errors.ErrInvalidPayload, err)
	}
	if frame.Event == "" {
		return event.Frame{}, fmt.Errorf("%w: frame without event name", errors.ErrInvalidPayload)
	}
	return frame, nil
}

func (c *Conn) WriteFrame(frame event.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(frame)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return c.conn.Close()
}
