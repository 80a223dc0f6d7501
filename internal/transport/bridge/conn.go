package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"kelasbot/internal/transport"
	"kelasbot/pkg/logx"
)

var errConnClosed = errors.New("bridge: connection closed")

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingPeriod   = 25 * time.Second
	requestWait  = 30 * time.Second
)

// conn is one bridge connection. Channels are owned by the connection and
// closed when it dies, so a consumer can range over them without tracking
// connection identity.
type conn struct {
	ws  *websocket.Conn
	log logx.Logger

	events   chan transport.ConnEvent
	messages chan transport.Message
	creds    chan []byte

	outbound chan Frame
	limiter  *rate.Limiter

	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan *ResultPayload

	closeOnce sync.Once
	done      chan struct{}
	g         *errgroup.Group
}

func newConn(ws *websocket.Conn, ratePerSec float64, log logx.Logger) *conn {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &conn{
		ws:       ws,
		log:      log,
		events:   make(chan transport.ConnEvent, 8),
		messages: make(chan transport.Message, 64),
		creds:    make(chan []byte, 4),
		outbound: make(chan Frame, 32),
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), 1),
		pending:  make(map[uint64]chan *ResultPayload),
		done:     make(chan struct{}),
	}
}

func (c *conn) start() {
	g := &errgroup.Group{}
	c.g = g
	g.Go(c.readPump)
	g.Go(c.writePump)
	go func() {
		err := g.Wait()
		c.shutdown()

		// Channel closes happen here and only here: once both pumps have
		// exited, nothing can send on events/messages/creds anymore, so
		// consumers ranging over them see a clean close instead of a panic.
		c.mu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		close(c.events)
		close(c.messages)
		close(c.creds)

		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.log.Debug("bridge pumps exited", logx.Err(err))
		}
	}()
}

func (c *conn) Events() <-chan transport.ConnEvent { return c.events }
func (c *conn) Messages() <-chan transport.Message { return c.messages }
func (c *conn) Credentials() <-chan []byte         { return c.creds }

// Close signals shutdown and drops the socket. It never closes the consumer
// channels itself: the read pump may still be mid-send on them, so that close
// is deferred to the pump-exit goroutine in start().
func (c *conn) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		// Best-effort close frame so the bridge can distinguish a clean
		// shutdown from a dropped socket.
		deadline := time.Now().Add(writeTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		close(c.done)
		_ = c.ws.Close()
	})
	return nil
}

func (c *conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *conn) readPump() error {
	c.ws.SetReadLimit(1 << 20)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			return err
		}
		c.dispatch(&f)
	}
}

func (c *conn) dispatch(f *Frame) {
	switch f.Type {
	case frameState:
		if f.State == nil {
			return
		}
		st, reason := decodeState(f.State)
		ev := transport.ConnEvent{State: st, Reason: reason}
		select {
		case c.events <- ev:
		case <-c.done:
		}
	case frameCreds:
		if f.Creds == nil {
			return
		}
		select {
		case c.creds <- f.Creds.Blob:
		case <-c.done:
		}
	case frameMessage:
		if f.Message == nil {
			return
		}
		m := transport.Message{
			ChatJID:   f.Message.ChatJID,
			SenderJID: f.Message.SenderJID,
			Text:      f.Message.Text,
			IsGroup:   f.Message.IsGroup,
		}
		select {
		case c.messages <- m:
		case <-c.done:
		}
	case frameResult:
		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		if ok {
			delete(c.pending, f.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- f.Result
			close(ch)
		}
	default:
		c.log.Debug("bridge: unknown frame type", logx.String("type", f.Type))
	}
}

func (c *conn) writePump() error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return nil
		case f := <-c.outbound:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteJSON(&f); err != nil {
				return err
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (c *conn) enqueue(ctx context.Context, f Frame) error {
	select {
	case c.outbound <- f:
		return nil
	case <-c.done:
		return errConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// request sends a correlated frame and waits for its result.
func (c *conn) request(ctx context.Context, f Frame) (*ResultPayload, error) {
	id := c.nextID.Add(1)
	f.ID = id

	ch := make(chan *ResultPayload, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	cleanup := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	if err := c.enqueue(ctx, f); err != nil {
		cleanup()
		return nil, err
	}

	timer := time.NewTimer(requestWait)
	defer timer.Stop()

	select {
	case res, ok := <-ch:
		if !ok {
			return nil, errConnClosed
		}
		if !res.OK {
			return nil, fmt.Errorf("bridge: %s", res.Error)
		}
		return res, nil
	case <-timer.C:
		cleanup()
		return nil, errors.New("bridge: request timed out")
	case <-c.done:
		cleanup()
		return nil, errConnClosed
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	}
}

func (c *conn) SendText(ctx context.Context, chatJID, text string, opt *transport.SendOptions) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	send := &SendPayload{ChatJID: chatJID, Text: text}
	if opt != nil {
		send.Mentions = opt.Mentions
	}
	_, err := c.request(ctx, Frame{Type: frameSend, Send: send})
	return err
}

func (c *conn) ListJoinedGroups(ctx context.Context) ([]transport.Group, error) {
	res, err := c.request(ctx, Frame{Type: frameGroups, Groups: &GroupsPayload{}})
	if err != nil {
		return nil, err
	}
	return decodeGroups(res.Groups), nil
}
