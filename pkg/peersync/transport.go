package peersync

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// sendTimeout bounds how long a single envelope send may block before
// being treated as a delivery failure (spec.md §4.8 failure semantics).
const sendTimeout = 2 * time.Second

// WebsocketChannel is the production Channel, carrying SyncEnvelope JSON
// frames over a single gorilla/websocket connection.
type WebsocketChannel struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// DialWebsocketChannel opens a client-side connection to url (e.g.
// ws://peer.local:7777/sync).
func DialWebsocketChannel(url string) (*WebsocketChannel, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &WebsocketChannel{conn: conn}, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// AcceptWebsocketChannel upgrades an inbound HTTP request to a
// WebsocketChannel, for the side of the pair acting as listener.
func AcceptWebsocketChannel(w http.ResponseWriter, r *http.Request) (*WebsocketChannel, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &WebsocketChannel{conn: conn}, nil
}

// Send writes env as a JSON frame, bounded by sendTimeout.
func (c *WebsocketChannel) Send(env SyncEnvelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("peersync: channel closed")
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(sendTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(env)
}

// Receive blocks for the next inbound envelope. Callers typically run it
// in a loop on its own goroutine, feeding Peer.HandleInbound.
func (c *WebsocketChannel) Receive() (SyncEnvelope, error) {
	var env SyncEnvelope
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, err
	}
	return env, nil
}

// Close terminates the underlying connection.
func (c *WebsocketChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// RunReceiveLoop reads envelopes from c until Receive errors (typically
// connection close) and dispatches each to handle.
func RunReceiveLoop(c *WebsocketChannel, handle func(SyncEnvelope)) error {
	for {
		env, err := c.Receive()
		if err != nil {
			return err
		}
		handle(env)
	}
}
