package bus

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mfekete/exfil/backend/internal/envelope"
	"github.com/mfekete/exfil/backend/internal/logger"
)

// Handler inspects one inbound frame and reports synchronously whether it
// was recognized. Asynchronous work it starts is fire-and-forget from the
// bus's point of view. Returning false means "not mine".
type Handler func(raw []byte) bool

// Client is one context's connection to the hub.
type Client struct {
	name    string
	conn    *websocket.Conn
	log     *logger.Logger
	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// Connect dials the hub at host:port, identifying as the given context.
func Connect(addr, contextName string, log *logger.Logger) (*Client, error) {
	u := url.URL{
		Scheme:   "ws",
		Host:     addr,
		Path:     "/bus",
		RawQuery: "context=" + url.QueryEscape(contextName),
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bus at %q: %w", addr, err)
	}

	return &Client{
		name: contextName,
		conn: conn,
		log:  log,
		done: make(chan struct{}),
	}, nil
}

// OnReceive starts the read loop, passing every inbound frame to the
// handler. Unrecognized frames are dropped with a debug entry; the handler's
// contract forbids it from panicking, but a recover here keeps a misbehaving
// handler from tearing the whole context down.
func (c *Client) OnReceive(handler Handler) {
	go func() {
		defer c.Close()
		for {
			_, frame, err := c.conn.ReadMessage()
			if err != nil {
				select {
				case <-c.done:
				default:
					c.log.Debugf("bus", "context %q read loop ended: %v", c.name, err)
				}
				return
			}
			c.dispatch(handler, frame)
		}
	}()
}

func (c *Client) dispatch(handler Handler, frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("bus", "handler panic in context %q: %v", c.name, r)
		}
	}()

	if !handler(frame) {
		c.log.Debugf("bus", "context %q ignored frame: %.120s", c.name, frame)
	}
}

// Post encodes the message and sends it to the hub, which fans it out to
// the other contexts.
func (c *Client) Post(m envelope.Message) error {
	frame, err := envelope.Encode(m)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", m.Envelope().Kind, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to post %s message: %w", m.Envelope().Kind, err)
	}
	return nil
}

// Close shuts the connection down; the read loop ends with it.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Done is closed when the connection has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
