package transport

import "context"

// Privilege is the participant privilege level reported by the platform.
type Privilege string

const (
	PrivMember     Privilege = "member"
	PrivAdmin      Privilege = "admin"
	PrivSuperAdmin Privilege = "superadmin"
)

// Admin reports whether the privilege grants admin rights in a group.
func (p Privilege) Admin() bool {
	return p == PrivAdmin || p == PrivSuperAdmin
}

type Participant struct {
	JID       string
	Privilege Privilege
}

type Group struct {
	JID          string
	Name         string
	Participants []Participant
}

// Message is a single inbound message notification. Consumed once.
type Message struct {
	ChatJID   string // originating chat (group or direct)
	SenderJID string
	Text      string
	IsGroup   bool
}

type ConnState string

const (
	StateConnecting ConnState = "connecting"
	StateOpen       ConnState = "open"
	StateClosed     ConnState = "closed"
)

// DisconnectReason classifies a Closed event. Only ReasonLoggedOut is
// terminal: the stored credentials are permanently invalid and reconnecting
// is pointless until the operator re-pairs the device.
type DisconnectReason string

const (
	ReasonUnknown     DisconnectReason = "unknown"
	ReasonStreamError DisconnectReason = "stream_error"
	ReasonRestart     DisconnectReason = "restart_required"
	ReasonLoggedOut   DisconnectReason = "logged_out"
)

func (r DisconnectReason) Terminal() bool { return r == ReasonLoggedOut }

type ConnEvent struct {
	State  ConnState
	Reason DisconnectReason // set when State == StateClosed
}

type SendOptions struct {
	// Mentions lists the full JIDs to attach as a structured mention list so
	// the platform renders real mentions for the "@local" tokens in the text.
	Mentions []string
}

// Conn is one live authenticated connection. Every channel belongs to this
// connection only; a reconnect gets a fresh Conn with fresh channels, so
// stale subscriptions from a previous connection cannot leak into a new run.
//
// All channels are closed when the connection is torn down.
type Conn interface {
	// Events delivers connection state transitions in order.
	Events() <-chan ConnEvent
	// Messages delivers inbound messages in platform-arrival order.
	Messages() <-chan Message
	// Credentials delivers updated session material that must be persisted.
	Credentials() <-chan []byte

	// ListJoinedGroups fetches all groups the session participates in,
	// including their participant lists.
	ListJoinedGroups(ctx context.Context) ([]Group, error)

	// SendText sends a text message to the given chat.
	SendText(ctx context.Context, chatJID, text string, opt *SendOptions) error

	Close(ctx context.Context) error
}

// Gateway opens authenticated connections to the messaging platform.
// creds is the opaque session blob from the credential store; nil or empty
// means first run (the bridge performs a fresh pairing handshake).
type Gateway interface {
	Connect(ctx context.Context, creds []byte) (Conn, error)
}

// LocalPart returns the user-visible local part of a JID ("628123@s.net" ->
// "628123"). JIDs without an "@" are returned unchanged.
func LocalPart(jid string) string {
	for i := 0; i < len(jid); i++ {
		if jid[i] == '@' {
			return jid[:i]
		}
	}
	return jid
}
