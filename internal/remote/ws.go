package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
)

// Dialer opens websocket clients against the remote service.
type Dialer struct {
	// URL is the websocket endpoint, e.g. ws://127.0.0.1:9900/ws.
	URL string
	// Timeout bounds individual calls. Zero means no per-call deadline
	// beyond the caller's context.
	Timeout time.Duration
	Log     *zerolog.Logger
}

// Connect dials the service for one account. The account name is passed as
// a query parameter so the service can bind the connection to an identity.
func (d *Dialer) Connect(ctx context.Context, account string) (Client, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	q := u.Query()
	q.Set("account", account)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial remote: %w", err)
	}
	// Inbound message events can be large media captions.
	conn.SetReadLimit(1 << 20)

	logger := zerolog.Nop()
	if d.Log != nil {
		logger = d.Log.With().Str("account", account).Logger()
	}

	c := &wsClient{
		conn:    conn,
		timeout: d.Timeout,
		log:     logger,
		events:  make(chan Event, 128),
		pending: make(map[uint64]chan envelope),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// wsClient speaks JSON envelopes over a websocket: correlated
// request/response pairs plus pushed events.
type wsClient struct {
	conn    *websocket.Conn
	timeout time.Duration
	log     zerolog.Logger
	events  chan Event

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan envelope
	closed  bool

	done chan struct{}
}

func (c *wsClient) readLoop() {
	defer close(c.events)
	defer close(c.done)
	for {
		var env envelope
		if err := wsjson.Read(context.Background(), c.conn, &env); err != nil {
			c.mu.Lock()
			c.closed = true
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				c.log.Warn().Err(err).Msg("remote feed closed")
			}
			return
		}

		switch env.Type {
		case frameEvent:
			var ev Event
			if err := json.Unmarshal(env.Data, &ev); err != nil {
				c.log.Warn().Err(err).Msg("bad event payload")
				continue
			}
			select {
			case c.events <- ev:
			default:
				c.log.Warn().Msg("event feed backlogged, dropping event")
			}
		case frameResult, frameError:
			c.mu.Lock()
			ch := c.pending[env.ID]
			delete(c.pending, env.ID)
			c.mu.Unlock()
			if ch != nil {
				ch <- env
			}
		default:
			c.log.Warn().Str("type", env.Type).Msg("unknown frame type")
		}
	}
}

// call performs one correlated request and decodes the result into out,
// which may be nil when the caller only cares about success.
func (c *wsClient) call(ctx context.Context, method string, params, out any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan envelope, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := request{ID: id, Method: method, Params: params}
	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", method, err)
	}

	select {
	case env, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if env.Err != nil {
			if env.Err.Code == errCodeIllegal {
				return fmt.Errorf("%s: %w", method, ErrIllegalResponse)
			}
			return fmt.Errorf("%s: %w", method, env.Err)
		}
		if out != nil {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	}
}

func (c *wsClient) Whoami(ctx context.Context) (Entity, error) {
	var e Entity
	err := c.call(ctx, methodWhoami, nil, &e)
	return e, err
}

func (c *wsClient) DialogList(ctx context.Context) ([]Entity, error) {
	var es []Entity
	err := c.call(ctx, methodDialogList, nil, &es)
	return es, err
}

func (c *wsClient) ChannelList(ctx context.Context) ([]Entity, error) {
	var es []Entity
	err := c.call(ctx, methodChannelList, nil, &es)
	return es, err
}

func (c *wsClient) ContactList(ctx context.Context) ([]Entity, error) {
	var es []Entity
	err := c.call(ctx, methodContactList, nil, &es)
	return es, err
}

func (c *wsClient) ChannelMembers(ctx context.Context, id string) ([]Entity, error) {
	var es []Entity
	err := c.call(ctx, methodChannelMembers, map[string]string{"id": id}, &es)
	return es, err
}

func (c *wsClient) ChatMembers(ctx context.Context, id string) ([]Entity, error) {
	var es []Entity
	err := c.call(ctx, methodChatMembers, map[string]string{"id": id}, &es)
	return es, err
}

func (c *wsClient) SendMessage(ctx context.Context, target, text string) error {
	params := map[string]string{"target": target, "text": text}
	return c.call(ctx, methodSendMessage, params, nil)
}

func (c *wsClient) Events() <-chan Event {
	return c.events
}

func (c *wsClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.Close(websocket.StatusNormalClosure, "closing")
	<-c.done
	return err
}
