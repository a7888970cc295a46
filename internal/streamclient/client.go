// Package streamclient is a WebSocket client for the mazestep event stream.
// A background reader buffers every server message; callers consume them in
// order with Next and Until.
package streamclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/mazestep/internal/database"
	"github.com/lawnchairsociety/mazestep/internal/event"
)

var (
	// ErrTimeout is returned when no matching message arrives in time.
	ErrTimeout = errors.New("timed out waiting for message")
	// ErrClosed is returned once the connection is gone and the buffer is
	// drained.
	ErrClosed = errors.New("stream closed")
)

// Command is one client frame.
type Command struct {
	Cmd         string `json:"cmd"`
	Size        int    `json:"size,omitempty"`
	Seed        string `json:"seed,omitempty"`
	IgnoreWalls *bool  `json:"ignore_walls,omitempty"`
	K           int    `json:"k,omitempty"`
	IntervalMS  int    `json:"interval_ms,omitempty"`
	PerTick     int    `json:"per_tick,omitempty"`
}

// SessionInfo describes the session a stream is driving.
type SessionInfo struct {
	ID          string `json:"id"`
	Size        int    `json:"size"`
	Seed        int64  `json:"seed"`
	IgnoreWalls bool   `json:"ignore_walls"`
}

// Message is one server frame.
type Message struct {
	Type    string          `json:"type"`
	Phase   string          `json:"phase,omitempty"`
	State   string          `json:"state,omitempty"`
	Emitted int             `json:"emitted,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
	Session *SessionInfo    `json:"session,omitempty"`
	Summary *database.Run   `json:"summary,omitempty"`
	Maze    string          `json:"maze,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Decode returns the event carried by an event message.
func (m Message) Decode() (event.Event, error) {
	if m.Type != "event" {
		return nil, fmt.Errorf("%s message carries no event", m.Type)
	}
	return event.Decode(m.Event)
}

// Client is one stream connection.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	messages []Message
	cursor   int
	readErr  error
	done     chan struct{}
}

// Dial connects to a stream endpoint such as ws://localhost:8080/ws.
func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn: conn,
		done: make(chan struct{}),
	}
	go c.readMessages()
	return c, nil
}

// readMessages buffers server frames until the connection fails.
func (c *Client) readMessages() {
	defer close(c.done)
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}
		c.mu.Lock()
		c.messages = append(c.messages, msg)
		c.mu.Unlock()
	}
}

// Send writes cmd to the server.
func (c *Client) Send(cmd Command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(cmd)
}

// Next returns the next unread message, waiting up to timeout.
func (c *Client) Next(timeout time.Duration) (Message, error) {
	deadline := time.Now().Add(timeout)
	for {
		c.mu.Lock()
		if c.cursor < len(c.messages) {
			msg := c.messages[c.cursor]
			c.cursor++
			c.mu.Unlock()
			return msg, nil
		}
		readErr := c.readErr
		c.mu.Unlock()

		if readErr != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrClosed, readErr)
		}
		if !time.Now().Before(deadline) {
			return Message{}, ErrTimeout
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Until reads messages until one of type typ, returning everything read
// including the match. An error message from the server ends the wait.
func (c *Client) Until(typ string, timeout time.Duration) ([]Message, error) {
	deadline := time.Now().Add(timeout)
	var read []Message
	for {
		msg, err := c.Next(time.Until(deadline))
		if err != nil {
			return read, err
		}
		read = append(read, msg)
		if msg.Type == typ {
			return read, nil
		}
		if msg.Type == "error" {
			return read, fmt.Errorf("server: %s", msg.Error)
		}
	}
}

// Messages returns every message received so far.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]Message, len(c.messages))
	copy(result, c.messages)
	return result
}

// HasMessage reports whether any message of type typ has arrived.
func (c *Client) HasMessage(typ string) bool {
	for _, msg := range c.Messages() {
		if msg.Type == typ {
			return true
		}
	}
	return false
}

// Close sends a close frame and waits for the reader to stop.
func (c *Client) Close() error {
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}
