package bridge

import (
	"encoding/json"

	"kelasbot/internal/transport"
)

// Frame is the envelope for every message on the bridge socket, both
// directions. Type selects which payload field is populated.
type Frame struct {
	Type string `json:"type"`
	ID   uint64 `json:"id,omitempty"`

	Connect *ConnectPayload `json:"connect,omitempty"`
	State   *StatePayload   `json:"state,omitempty"`
	Creds   *CredsPayload   `json:"creds,omitempty"`
	Message *MessagePayload `json:"message,omitempty"`
	Send    *SendPayload    `json:"send,omitempty"`
	Groups  *GroupsPayload  `json:"groups,omitempty"`
	Result  *ResultPayload  `json:"result,omitempty"`
}

const (
	// client to bridge
	frameConnect = "connect"
	frameSend    = "send"
	frameGroups  = "groups"

	// bridge to client
	frameState   = "state"
	frameCreds   = "creds"
	frameMessage = "message"
	frameResult  = "result"
)

type ConnectPayload struct {
	// Credentials are an opaque blob owned by the bridge; empty on first run.
	Creds []byte `json:"creds,omitempty"`
}

type StatePayload struct {
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

type CredsPayload struct {
	Blob []byte `json:"blob"`
}

type MessagePayload struct {
	ChatJID   string `json:"chat_jid"`
	SenderJID string `json:"sender_jid"`
	Text      string `json:"text"`
	IsGroup   bool   `json:"is_group"`
}

type SendPayload struct {
	ChatJID  string   `json:"chat_jid"`
	Text     string   `json:"text"`
	Mentions []string `json:"mentions,omitempty"`
}

type GroupsPayload struct{}

type ResultPayload struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Groups []GroupPayload  `json:"groups,omitempty"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

type GroupPayload struct {
	JID          string               `json:"jid"`
	Name         string               `json:"name"`
	Participants []ParticipantPayload `json:"participants"`
}

type ParticipantPayload struct {
	JID       string `json:"jid"`
	Privilege string `json:"privilege"`
}

func decodeState(p *StatePayload) (transport.ConnState, transport.DisconnectReason) {
	var st transport.ConnState
	switch p.State {
	case "connecting":
		st = transport.StateConnecting
	case "open":
		st = transport.StateOpen
	case "closed":
		st = transport.StateClosed
	default:
		st = transport.StateClosed
	}
	var reason transport.DisconnectReason
	switch p.Reason {
	case "stream_error":
		reason = transport.ReasonStreamError
	case "restart_required":
		reason = transport.ReasonRestart
	case "logged_out":
		reason = transport.ReasonLoggedOut
	default:
		reason = transport.ReasonUnknown
	}
	return st, reason
}

func decodePrivilege(s string) transport.Privilege {
	switch s {
	case "admin":
		return transport.PrivAdmin
	case "superadmin":
		return transport.PrivSuperAdmin
	default:
		return transport.PrivMember
	}
}

func decodeGroups(gs []GroupPayload) []transport.Group {
	out := make([]transport.Group, 0, len(gs))
	for _, g := range gs {
		parts := make([]transport.Participant, 0, len(g.Participants))
		for _, p := range g.Participants {
			parts = append(parts, transport.Participant{
				JID:       p.JID,
				Privilege: decodePrivilege(p.Privilege),
			})
		}
		out = append(out, transport.Group{JID: g.JID, Name: g.Name, Participants: parts})
	}
	return out
}
