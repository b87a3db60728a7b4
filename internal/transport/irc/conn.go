package irc

import (
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/irc.v4"
)

const writeTimeout = 10 * time.Second

// conn wraps a net.Conn with IRC message framing and an ordered outbound
// queue drained by a dedicated writer goroutine. SendMessage is safe from
// any goroutine and silently drops messages once the connection is closed,
// so a relay delivering to a dead session can never block or crash.
type conn struct {
	net net.Conn
	irc *irc.Conn
	log zerolog.Logger

	mu       sync.Mutex
	outgoing chan<- *irc.Message
	closed   bool
}

func newConn(nc net.Conn, logger zerolog.Logger) *conn {
	outgoing := make(chan *irc.Message, 64)
	c := &conn{
		net:      nc,
		irc:      irc.NewConn(nc),
		log:      logger,
		outgoing: outgoing,
	}

	go func() {
		for msg := range outgoing {
			_ = nc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.irc.WriteMessage(msg); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				break
			}
		}
		if err := nc.Close(); err != nil {
			c.log.Debug().Err(err).Msg("close failed")
		}
		// Drain so SendMessage never blocks on a dead writer.
		for range outgoing {
		}
	}()

	return c
}

// ReadMessage reads the next inbound IRC message.
func (c *conn) ReadMessage() (*irc.Message, error) {
	return c.irc.ReadMessage()
}

// SendMessage queues an outbound message in enqueue order.
func (c *conn) SendMessage(msg *irc.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.outgoing <- msg
}

// Close stops the writer and closes the socket. Safe to call twice.
func (c *conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.outgoing)
}
