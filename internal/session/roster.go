package session

import (
	"sync"

	"kelasbot/internal/transport"
)

// Roster is the privilege snapshot for the target group. It is rebuilt
// wholesale on every successful connection, never merged incrementally, so a
// participant whose admin status changed between refreshes can't linger with
// stale privileges.
type Roster struct {
	mu    sync.RWMutex
	privs map[string]transport.Privilege
}

func NewRoster() *Roster {
	return &Roster{}
}

// Replace swaps the whole snapshot with the given participant list.
func (r *Roster) Replace(parts []transport.Participant) {
	privs := make(map[string]transport.Privilege, len(parts))
	for _, p := range parts {
		if p.JID == "" {
			continue
		}
		privs[p.JID] = p.Privilege
	}
	r.mu.Lock()
	r.privs = privs
	r.mu.Unlock()
}

// Clear drops the snapshot (fresh state for a new connection attempt).
func (r *Roster) Clear() {
	r.mu.Lock()
	r.privs = nil
	r.mu.Unlock()
}

// IsAdmin is a pure lookup against the last snapshot. Fail-closed: before the
// first refresh completes, nobody is an admin.
func (r *Roster) IsAdmin(jid string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.privs == nil {
		return false
	}
	return r.privs[jid].Admin()
}

func (r *Roster) AdminCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.privs {
		if p.Admin() {
			n++
		}
	}
	return n
}
