// Package timetable holds the static weekly class table and the broadcast
// service that announces it to the group.
package timetable

import (
	"fmt"
	"strings"
	"time"
)

// NoClassesText is sent when the current weekday has no entries. Never an
// empty message: group members should see that the bot is alive.
const NoClassesText = "No classes today."

const defaultBanner = "📅 Today's classes:"

type Entry struct {
	Course  string
	Time    string
	Program string
}

// Config mirrors the timetable section of the bot config.
type Config struct {
	Banner string
	// Days maps lowercase weekday names to ordered entries.
	Days map[string][]Entry
}

// Table is the immutable weekly schedule. Loaded once per config (re)load,
// never mutated afterwards.
type Table struct {
	banner string
	days   [7][]Entry // indexed by time.Weekday
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func New(cfg Config) (*Table, error) {
	t := &Table{banner: strings.TrimSpace(cfg.Banner)}
	if t.banner == "" {
		t.banner = defaultBanner
	}
	for name, entries := range cfg.Days {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("timetable: unknown weekday %q", name)
		}
		for i, e := range entries {
			if strings.TrimSpace(e.Course) == "" {
				return nil, fmt.Errorf("timetable: %s entry %d: course is required", name, i)
			}
		}
		t.days[wd] = append([]Entry(nil), entries...)
	}
	return t, nil
}

// Entries returns the stored entries for the given weekday, in table order.
func (t *Table) Entries(d time.Weekday) []Entry {
	return t.days[d]
}

// FormatDay renders the announcement body for a weekday: the banner followed
// by one "<program> - <course> (<time>)" line per entry, or the no-classes
// sentinel when the day is empty.
func (t *Table) FormatDay(d time.Weekday) string {
	entries := t.days[d]
	if len(entries) == 0 {
		return NoClassesText
	}
	var b strings.Builder
	b.WriteString(t.banner)
	for _, e := range entries {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s - %s (%s)", e.Program, e.Course, e.Time))
	}
	return b.String()
}
