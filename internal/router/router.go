// Package router consumes the inbound message stream, filters it down to
// admin commands in the target group, and dispatches to the fixed command
// set. All commands are admin-only; unauthorized senders and unrecognized
// input produce identical, intentional silence so the command surface leaks
// nothing to non-admins.
package router

import (
	"context"
	"strings"
	"time"

	"kelasbot/internal/transport"
	"kelasbot/pkg/logx"
)

const (
	cmdPause  = ".pause"
	cmdResume = ".resume"
	cmdTagAll = ".tagall"

	confirmPaused  = "✅ Bot paused."
	confirmResumed = "✅ Bot resumed."
)

// Session is the slice of the session controller the router needs.
type Session interface {
	IsAdmin(jid string) bool
	Group() (jid, name string, ok bool)
	SetPaused(paused bool)
	Reply(ctx context.Context, chatJID, text string) error
	SendToGroup(ctx context.Context, text string, opt *transport.SendOptions) error
	FetchParticipants(ctx context.Context) ([]transport.Participant, error)
}

type Request struct {
	Msg     transport.Message
	Command string
	Log     logx.Logger
}

type Router struct {
	sess    Session
	log     logx.Logger
	timeout time.Duration
}

func New(sess Session, timeout time.Duration, log logx.Logger) *Router {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Router{sess: sess, log: log, timeout: timeout}
}

// DispatchLoop consumes messages until ctx is cancelled or the channel
// closes. Handlers run inline: each command is independent and idempotent,
// and serializing them keeps admin-visible ordering identical to platform
// arrival order.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan transport.Message) error {
	r.log.Info("command dispatcher started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("command dispatcher stopped")
			return nil
		case m, ok := <-updates:
			if !ok {
				r.log.Info("command dispatcher stopped (updates channel closed)")
				return nil
			}
			r.route(ctx, m)
		}
	}
}

func (r *Router) route(ctx context.Context, m transport.Message) {
	// Only the resolved target group is in scope. Anything else — direct
	// chats, other groups, an unresolved group — is silently ignored.
	if !m.IsGroup {
		return
	}
	groupJID, _, ok := r.sess.Group()
	if !ok || m.ChatJID != groupJID {
		return
	}
	if m.Text == "" {
		return
	}

	// Admin gate: non-admins get no reply at all, the same silence as an
	// unknown command, so probing reveals nothing.
	if !r.sess.IsAdmin(m.SenderJID) {
		return
	}

	var (
		cmd    string
		handle HandlerFunc
	)
	switch {
	case m.Text == cmdPause:
		cmd, handle = cmdPause, r.handlePause
	case m.Text == cmdResume:
		cmd, handle = cmdResume, r.handleResume
	case strings.HasPrefix(m.Text, cmdTagAll):
		// Trailing text after the token is ignored.
		cmd, handle = cmdTagAll, r.handleTagAll
	default:
		return
	}

	req := &Request{
		Msg:     m,
		Command: cmd,
		Log:     r.log.With(logx.String("cmd", cmd), logx.String("from", m.SenderJID)),
	}
	h := Chain(handle, MWPanicRecover(r.log), MWRequestLog(r.log), MWTimeout(r.timeout))
	_ = h(ctx, req)
}

func (r *Router) handlePause(ctx context.Context, req *Request) error {
	r.sess.SetPaused(true)
	return r.sess.Reply(ctx, req.Msg.ChatJID, confirmPaused)
}

func (r *Router) handleResume(ctx context.Context, req *Request) error {
	r.sess.SetPaused(false)
	return r.sess.Reply(ctx, req.Msg.ChatJID, confirmResumed)
}

// handleTagAll fetches the participant list live rather than from the roster
// snapshot: the command is advertised as "everyone", and the cache only knows
// who was present at the last reconnect.
func (r *Router) handleTagAll(ctx context.Context, req *Request) error {
	parts, err := r.sess.FetchParticipants(ctx)
	if err != nil {
		// Operator-visible only; the group never sees internal failures.
		req.Log.Warn("tagall: participant fetch failed", logx.Err(err))
		return nil
	}
	if len(parts) == 0 {
		return nil
	}

	mentions := make([]string, 0, len(parts))
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		mentions = append(mentions, p.JID)
		tokens = append(tokens, "@"+transport.LocalPart(p.JID))
	}

	return r.sess.SendToGroup(ctx, strings.Join(tokens, " "), &transport.SendOptions{Mentions: mentions})
}
