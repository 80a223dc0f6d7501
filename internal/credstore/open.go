// Package credstore persists the platform session blob across restarts.
//
// The blob is opaque: its internal structure belongs to the platform bridge.
// The store's only contract is durability — Save must hit stable storage
// before returning, because a credential update that is acknowledged but lost
// forces a full re-pairing.
package credstore

import (
	"context"
	"errors"
	"strings"

	"kelasbot/pkg/logx"
)

// ErrDisabled is returned when the configured driver exists but was excluded
// from this build.
var ErrDisabled = errors.New("credstore driver disabled in this build")

// Config configures session persistence.
//
// Driver values:
//   - "file": dependency-free single-file backend (default)
//   - "sqlite": SQLite database file (requires the sqlite build tag)
type Config struct {
	Driver string
	Path   string
}

// Store is the persistence API consumed by the session controller.
type Store interface {
	// Load returns the current session blob, or (nil, nil) on first run.
	Load(ctx context.Context) ([]byte, error)
	// Save durably overwrites the session blob.
	Save(ctx context.Context, blob []byte) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown credstore driver: " + driver)
	}
}
