// Package session owns the connect/reconnect state machine: it loads the
// persisted session, opens the platform connection, resolves the target
// group, refreshes the admin roster, and forwards inbound messages to the
// dispatch loop. A reconnect rebuilds everything from scratch; a terminal
// logout stops retrying and parks until shutdown.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"kelasbot/internal/credstore"
	"kelasbot/internal/eventbus"
	"kelasbot/internal/transport"
	"kelasbot/pkg/logx"
)

type Config struct {
	// GroupName is matched exactly against the names of all joined groups.
	GroupName string
	// ReconnectMin/ReconnectMax bound the exponential backoff between
	// connection attempts. Defaults: 2s / 5m.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = 2 * time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 5 * time.Minute
	}
	return c
}

// groupIdentity is the resolved id+name pair for the single target group.
// Re-resolved after every reconnect: the id is not known before the group
// list is fetched.
type groupIdentity struct {
	jid  string
	name string
}

type Controller struct {
	cfg   Config
	gw    transport.Gateway
	store credstore.Store
	bus   eventbus.Bus
	log   logx.Logger

	// updates receives forwarded inbound messages for the command router.
	updates chan<- transport.Message

	mu     sync.RWMutex
	conn   transport.Conn
	state  transport.ConnState
	group  *groupIdentity
	paused bool
	name   string // target group name; hot-reloadable, applies on reconnect

	roster *Roster

	dropped atomic.Uint64
}

func New(cfg Config, gw transport.Gateway, store credstore.Store, bus eventbus.Bus, updates chan<- transport.Message, log logx.Logger) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:     cfg,
		gw:      gw,
		store:   store,
		bus:     bus,
		updates: updates,
		log:     log,
		state:   transport.StateClosed,
		name:    cfg.GroupName,
		roster:  NewRoster(),
	}
}

// ---- shared state accessors ----

// Paused reports the activity flag. Default is active at process start.
func (c *Controller) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

func (c *Controller) SetPaused(paused bool) {
	c.mu.Lock()
	c.paused = paused
	c.mu.Unlock()
}

func (c *Controller) IsAdmin(jid string) bool { return c.roster.IsAdmin(jid) }

// Group returns the resolved target group identity, if any.
func (c *Controller) Group() (jid, name string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.group == nil {
		return "", "", false
	}
	return c.group.jid, c.group.name, true
}

func (c *Controller) State() transport.ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetGroupName updates the target group name from a config reload. The new
// name is matched on the next (re)connect, not retroactively.
func (c *Controller) SetGroupName(name string) {
	c.mu.Lock()
	old := c.name
	c.name = name
	c.mu.Unlock()
	if old != name {
		c.log.Info("target group name updated; applies on next reconnect", logx.String("name", name))
	}
}

func (c *Controller) groupName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Controller) currentConn() transport.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// ---- send capabilities ----

// SendToGroup delivers text to the resolved target group. Unresolved group or
// no live connection is a log-and-no-op, never an error surfaced to chat.
func (c *Controller) SendToGroup(ctx context.Context, text string, opt *transport.SendOptions) error {
	c.mu.RLock()
	conn := c.conn
	group := c.group
	c.mu.RUnlock()

	if group == nil {
		c.log.Warn("send skipped: target group not resolved")
		return nil
	}
	if conn == nil {
		c.log.Warn("send skipped: not connected")
		return nil
	}
	return conn.SendText(ctx, group.jid, text, opt)
}

// Reply sends text back to an originating chat (command confirmations).
func (c *Controller) Reply(ctx context.Context, chatJID, text string) error {
	conn := c.currentConn()
	if conn == nil {
		return errors.New("not connected")
	}
	return conn.SendText(ctx, chatJID, text, nil)
}

// SendLogText implements logx.ChatSender so WARN+ log lines can be mirrored
// into the ops group. Silently dropped while disconnected.
func (c *Controller) SendLogText(ctx context.Context, chatJID, text string) error {
	conn := c.currentConn()
	if conn == nil {
		return nil
	}
	return conn.SendText(ctx, chatJID, text, nil)
}

// FetchParticipants re-fetches the target group's participant list live.
// Used by tag-all, which is advertised as "everyone", not "everyone who was
// present at the last roster refresh".
func (c *Controller) FetchParticipants(ctx context.Context) ([]transport.Participant, error) {
	conn := c.currentConn()
	if conn == nil {
		return nil, errors.New("not connected")
	}
	g, err := c.resolveGroup(ctx, conn)
	if err != nil {
		return nil, err
	}
	return g.Participants, nil
}

// ---- run loop ----

// Run owns the connection lifecycle until ctx is cancelled. Transient
// disconnects trigger a full rebuild (fresh connection, fresh group identity,
// fresh roster) after a jittered exponential backoff; a terminal logout stops
// retrying, surfaces the condition to the operator, and parks so the liveness
// endpoint keeps answering for the process supervisor.
func (c *Controller) Run(ctx context.Context) error {
	delay := c.cfg.ReconnectMin
	for {
		if ctx.Err() != nil {
			return nil
		}

		sawOpen, terminal, err := c.runOnce(ctx)
		if terminal {
			c.log.Error("logged out by platform; stored credentials are invalid, re-pair and restart")
			c.bus.Publish(eventbus.Event{Type: eventbus.TypeSessionLoggedOut})
			<-ctx.Done()
			return nil
		}
		if err != nil {
			c.log.Warn("connection attempt failed", logx.Err(err))
		}
		if sawOpen {
			// The previous connection was healthy; start the backoff over.
			delay = c.cfg.ReconnectMin
		}

		d := jitterDelay(delay)
		c.log.Info("reconnecting", logx.Duration("delay", d))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d):
		}
		delay *= 2
		if delay > c.cfg.ReconnectMax {
			delay = c.cfg.ReconnectMax
		}
	}
}

// runOnce performs one full connection cycle and blocks while it is healthy.
func (c *Controller) runOnce(ctx context.Context) (sawOpen, terminal bool, err error) {
	// Fresh state for this attempt: the previous group identity and roster
	// must not survive a reconnect.
	c.mu.Lock()
	c.group = nil
	c.state = transport.StateConnecting
	c.mu.Unlock()
	c.roster.Clear()

	blob, err := c.store.Load(ctx)
	if err != nil {
		return false, false, fmt.Errorf("load session: %w", err)
	}
	if blob == nil {
		c.log.Info("no stored session; performing fresh pairing")
	}

	conn, err := c.gw.Connect(ctx, blob)
	if err != nil {
		return false, false, fmt.Errorf("connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.state = transport.StateClosed
		c.mu.Unlock()

		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = conn.Close(closeCtx)
		cancel()

		if n := c.dropped.Swap(0); n > 0 {
			c.log.Warn("inbound messages dropped (dispatch busy)", logx.Uint64("count", n))
		}
	}()

	events := conn.Events()
	msgs := conn.Messages()
	creds := conn.Credentials()

	// Periodic summary for dropped messages (avoid per-message log spam).
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return sawOpen, false, nil

		case <-ticker.C:
			if n := c.dropped.Swap(0); n > 0 {
				c.log.Warn("inbound messages dropped (dispatch busy)", logx.Uint64("count", n), logx.Int("chan_cap", cap(c.updates)))
			}

		case blob, ok := <-creds:
			if !ok {
				creds = nil
				continue
			}
			// At-least-once durability: a crash between the update and the
			// save may force re-authentication, which is acceptable.
			if err := c.store.Save(ctx, blob); err != nil {
				c.log.Warn("session persist failed", logx.Err(err))
			}

		case m, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			select {
			case c.updates <- m:
			default:
				c.dropped.Add(1)
			}

		case ev, ok := <-events:
			if !ok {
				return sawOpen, false, errors.New("event stream ended")
			}
			switch ev.State {
			case transport.StateOpen:
				sawOpen = true
				c.mu.Lock()
				c.state = transport.StateOpen
				c.mu.Unlock()
				c.log.Info("connected")
				c.bus.Publish(eventbus.Event{Type: eventbus.TypeSessionOpen})
				c.onOpen(ctx, conn)
			case transport.StateClosed:
				c.bus.Publish(eventbus.Event{Type: eventbus.TypeSessionClosed, Data: ev.Reason})
				if ev.Reason.Terminal() {
					return sawOpen, true, nil
				}
				c.log.Warn("connection closed", logx.String("reason", string(ev.Reason)))
				return sawOpen, false, nil
			}
		}
	}
}

// onOpen resolves the target group and rebuilds the roster. A resolution
// failure leaves the bot running degraded: scheduled sends and commands
// silently no-op until a future reconnect resolves the group.
func (c *Controller) onOpen(ctx context.Context, conn transport.Conn) {
	g, err := c.resolveGroup(ctx, conn)
	if err != nil {
		c.log.Warn("target group not resolved; running degraded", logx.String("group", c.groupName()), logx.Err(err))
		return
	}

	c.mu.Lock()
	c.group = &groupIdentity{jid: g.JID, name: g.Name}
	c.mu.Unlock()

	var admins []transport.Participant
	for _, p := range g.Participants {
		if p.Privilege.Admin() {
			admins = append(admins, p)
		}
	}
	c.roster.Replace(admins)

	c.log.Info("group resolved",
		logx.String("group", g.Name),
		logx.String("jid", g.JID),
		logx.Int("participants", len(g.Participants)),
		logx.Int("admins", c.roster.AdminCount()))
}

var errGroupNotFound = errors.New("no joined group matches the configured name")

// resolveGroup scans all joined groups for an exact name match.
func (c *Controller) resolveGroup(ctx context.Context, conn transport.Conn) (*transport.Group, error) {
	groups, err := conn.ListJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	want := c.groupName()
	for i := range groups {
		if groups[i].Name == want {
			return &groups[i], nil
		}
	}
	return nil, errGroupNotFound
}

// jitterDelay spreads reconnect attempts by ±20% so several bots behind the
// same flaky bridge don't stampede it in lockstep.
func jitterDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	f := 1 + (rand.Float64()*2-1)*0.2
	return time.Duration(float64(d) * f)
}
