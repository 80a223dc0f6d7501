package timetable

import (
	"context"
	"sync"
	"time"

	"kelasbot/internal/transport"
	"kelasbot/pkg/logx"
)

// Session is the slice of the session controller the broadcaster needs.
type Session interface {
	// Paused reports the activity flag set by admin commands.
	Paused() bool
	// SendToGroup delivers text to the resolved target group. It logs and
	// no-ops when the group is unresolved.
	SendToGroup(ctx context.Context, text string, opt *transport.SendOptions) error
}

// Broadcast formats and delivers the scheduled daily announcement.
type Broadcast struct {
	log  logx.Logger
	sess Session

	mu    sync.RWMutex
	table *Table
	loc   *time.Location

	now func() time.Time // test seam
}

func NewBroadcast(table *Table, sess Session, loc *time.Location, log logx.Logger) *Broadcast {
	if loc == nil {
		loc = time.Local
	}
	return &Broadcast{
		log:   log,
		sess:  sess,
		table: table,
		loc:   loc,
		now:   time.Now,
	}
}

// SetTable swaps the schedule table (config hot reload).
func (b *Broadcast) SetTable(t *Table, loc *time.Location) {
	b.mu.Lock()
	b.table = t
	if loc != nil {
		b.loc = loc
	}
	b.mu.Unlock()
}

// SendDaily sends today's timetable to the group. While the bot is paused it
// is a silent no-op: no send attempt, no error. The pause flag is read once
// per invocation, not re-read mid-formatting.
func (b *Broadcast) SendDaily(ctx context.Context) error {
	if b.sess.Paused() {
		b.log.Debug("broadcast suppressed (paused)")
		return nil
	}

	b.mu.RLock()
	table := b.table
	loc := b.loc
	b.mu.RUnlock()

	day := b.now().In(loc).Weekday()
	body := table.FormatDay(day)

	if err := b.sess.SendToGroup(ctx, body, nil); err != nil {
		return err
	}
	b.log.Info("daily timetable sent", logx.String("weekday", day.String()), logx.Int("entries", len(table.Entries(day))))
	return nil
}
