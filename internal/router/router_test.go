package router

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"kelasbot/internal/transport"
	"kelasbot/pkg/logx"
)

type sentMsg struct {
	chat     string
	text     string
	mentions []string
}

type fakeSession struct {
	mu       sync.Mutex
	paused   bool
	admins   map[string]bool
	groupJID string
	parts    []transport.Participant
	partsErr error
	sent     []sentMsg
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		admins:   map[string]bool{"admin@s.net": true},
		groupJID: "class@g.net",
	}
}

func (f *fakeSession) IsAdmin(jid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admins[jid]
}

func (f *fakeSession) Group() (string, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groupJID == "" {
		return "", "", false
	}
	return f.groupJID, "Class of 2026", true
}

func (f *fakeSession) SetPaused(paused bool) {
	f.mu.Lock()
	f.paused = paused
	f.mu.Unlock()
}

func (f *fakeSession) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeSession) Reply(_ context.Context, chatJID, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, sentMsg{chat: chatJID, text: text})
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) SendToGroup(_ context.Context, text string, opt *transport.SendOptions) error {
	f.mu.Lock()
	m := sentMsg{chat: f.groupJID, text: text}
	if opt != nil {
		m.mentions = opt.Mentions
	}
	f.sent = append(f.sent, m)
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) FetchParticipants(context.Context) ([]transport.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parts, f.partsErr
}

func (f *fakeSession) sentMsgs() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...)
}

func groupMsg(sender, text string) transport.Message {
	return transport.Message{ChatJID: "class@g.net", SenderJID: sender, Text: text, IsGroup: true}
}

func TestRouteSilentRejections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		msg  transport.Message
	}{
		{name: "direct chat", msg: transport.Message{ChatJID: "admin@s.net", SenderJID: "admin@s.net", Text: ".pause"}},
		{name: "other group", msg: transport.Message{ChatJID: "other@g.net", SenderJID: "admin@s.net", Text: ".pause", IsGroup: true}},
		{name: "empty text", msg: groupMsg("admin@s.net", "")},
		{name: "non-admin", msg: groupMsg("member@s.net", ".pause")},
		{name: "unknown command", msg: groupMsg("admin@s.net", ".weather")},
		{name: "plain chatter", msg: groupMsg("admin@s.net", "good morning")},
		{name: "pause with trailing text", msg: groupMsg("admin@s.net", ".pause now")},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sess := newFakeSession()
			r := New(sess, time.Second, logx.Nop())
			r.route(context.Background(), tt.msg)
			if sent := sess.sentMsgs(); len(sent) != 0 {
				t.Fatalf("expected silence, got %v", sent)
			}
			if sess.Paused() {
				t.Fatal("rejected message changed the pause flag")
			}
		})
	}
}

func TestRouteUnresolvedGroupIsSilent(t *testing.T) {
	t.Parallel()
	sess := newFakeSession()
	sess.groupJID = ""
	r := New(sess, time.Second, logx.Nop())
	r.route(context.Background(), groupMsg("admin@s.net", ".pause"))
	if sent := sess.sentMsgs(); len(sent) != 0 {
		t.Fatalf("expected silence, got %v", sent)
	}
}

func TestPauseResume(t *testing.T) {
	t.Parallel()
	sess := newFakeSession()
	r := New(sess, time.Second, logx.Nop())
	ctx := context.Background()

	r.route(ctx, groupMsg("admin@s.net", ".pause"))
	if !sess.Paused() {
		t.Fatal("pause command did not set the flag")
	}

	// Idempotent: pausing twice still confirms.
	r.route(ctx, groupMsg("admin@s.net", ".pause"))
	r.route(ctx, groupMsg("admin@s.net", ".resume"))
	if sess.Paused() {
		t.Fatal("resume command did not clear the flag")
	}

	sent := sess.sentMsgs()
	if len(sent) != 3 {
		t.Fatalf("got %d confirmations, want 3", len(sent))
	}
	if sent[0].text != "✅ Bot paused." || sent[1].text != "✅ Bot paused." || sent[2].text != "✅ Bot resumed." {
		t.Fatalf("unexpected confirmations: %v", sent)
	}
	for _, m := range sent {
		if m.chat != "class@g.net" {
			t.Fatalf("confirmation sent to %q, want origin chat", m.chat)
		}
	}
}

func TestTagAll(t *testing.T) {
	t.Parallel()
	sess := newFakeSession()
	sess.parts = []transport.Participant{
		{JID: "a@s.net", Privilege: transport.PrivAdmin},
		{JID: "b@s.net", Privilege: transport.PrivMember},
		{JID: "c@s.net", Privilege: transport.PrivMember},
	}
	r := New(sess, time.Second, logx.Nop())

	r.route(context.Background(), groupMsg("admin@s.net", ".tagall"))

	sent := sess.sentMsgs()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].text != "@a @b @c" {
		t.Fatalf("text = %q, want %q", sent[0].text, "@a @b @c")
	}
	want := []string{"a@s.net", "b@s.net", "c@s.net"}
	if len(sent[0].mentions) != len(want) {
		t.Fatalf("mentions = %v, want %v", sent[0].mentions, want)
	}
	for i := range want {
		if sent[0].mentions[i] != want[i] {
			t.Fatalf("mentions = %v, want %v", sent[0].mentions, want)
		}
	}
}

func TestTagAllFetchFailureIsSilent(t *testing.T) {
	t.Parallel()
	sess := newFakeSession()
	sess.partsErr = context.DeadlineExceeded
	r := New(sess, time.Second, logx.Nop())

	r.route(context.Background(), groupMsg("admin@s.net", ".tagall"))
	if sent := sess.sentMsgs(); len(sent) != 0 {
		t.Fatalf("expected silence on fetch failure, got %v", sent)
	}
}

func TestTagAllIgnoresTrailingText(t *testing.T) {
	t.Parallel()
	sess := newFakeSession()
	sess.parts = []transport.Participant{{JID: "a@s.net", Privilege: transport.PrivMember}}
	r := New(sess, time.Second, logx.Nop())

	r.route(context.Background(), groupMsg("admin@s.net", ".tagall wake up"))
	sent := sess.sentMsgs()
	if len(sent) != 1 || sent[0].text != "@a" {
		t.Fatalf("sent = %v, want single @a", sent)
	}
}

func TestDispatchLoopStopsOnCancel(t *testing.T) {
	t.Parallel()
	sess := newFakeSession()
	r := New(sess, time.Second, logx.Nop())
	updates := make(chan transport.Message, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.DispatchLoop(ctx, updates) }()

	updates <- groupMsg("admin@s.net", ".pause")
	deadline := time.Now().Add(3 * time.Second)
	for !sess.Paused() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !sess.Paused() {
		t.Fatal("dispatch loop never processed the command")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("DispatchLoop returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("DispatchLoop did not stop on cancel")
	}
}

func TestLocalPartTokens(t *testing.T) {
	t.Parallel()
	if got := transport.LocalPart("628123@s.whatsapp.net"); got != "628123" {
		t.Fatalf("LocalPart = %q", got)
	}
	if got := transport.LocalPart("no-at-sign"); got != "no-at-sign" {
		t.Fatalf("LocalPart = %q", got)
	}
	if strings.Contains(transport.LocalPart("a@b@c"), "@") {
		t.Fatal("LocalPart kept an @")
	}
}
