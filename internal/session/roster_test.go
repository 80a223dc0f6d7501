package session

import (
	"testing"

	"kelasbot/internal/transport"
)

func TestRosterFailClosed(t *testing.T) {
	t.Parallel()
	r := NewRoster()
	if r.IsAdmin("anyone@s.net") {
		t.Fatal("empty roster granted admin")
	}
}

func TestRosterReplace(t *testing.T) {
	t.Parallel()
	r := NewRoster()
	r.Replace([]transport.Participant{
		{JID: "a@s.net", Privilege: transport.PrivAdmin},
		{JID: "b@s.net", Privilege: transport.PrivSuperAdmin},
		{JID: "c@s.net", Privilege: transport.PrivMember},
	})

	if !r.IsAdmin("a@s.net") || !r.IsAdmin("b@s.net") {
		t.Fatal("admin and superadmin must both pass the gate")
	}
	if r.IsAdmin("c@s.net") {
		t.Fatal("member passed the admin gate")
	}
	if got := r.AdminCount(); got != 2 {
		t.Fatalf("AdminCount = %d, want 2", got)
	}
}

func TestRosterReplaceDropsStale(t *testing.T) {
	t.Parallel()
	r := NewRoster()
	r.Replace([]transport.Participant{{JID: "old@s.net", Privilege: transport.PrivAdmin}})
	r.Replace([]transport.Participant{{JID: "new@s.net", Privilege: transport.PrivAdmin}})

	if r.IsAdmin("old@s.net") {
		t.Fatal("stale admin survived a wholesale replace")
	}
	if !r.IsAdmin("new@s.net") {
		t.Fatal("new admin missing after replace")
	}
}

func TestRosterClear(t *testing.T) {
	t.Parallel()
	r := NewRoster()
	r.Replace([]transport.Participant{{JID: "a@s.net", Privilege: transport.PrivAdmin}})
	r.Clear()
	if r.IsAdmin("a@s.net") {
		t.Fatal("cleared roster still granted admin")
	}
}
