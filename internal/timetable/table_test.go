package timetable

import (
	"strings"
	"testing"
	"time"
)

func TestFormatDayEmpty(t *testing.T) {
	t.Parallel()
	tbl, err := New(Config{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	got := tbl.FormatDay(time.Wednesday)
	if got != NoClassesText {
		t.Fatalf("FormatDay = %q, want %q", got, NoClassesText)
	}
}

func TestFormatDayLines(t *testing.T) {
	t.Parallel()
	tbl, err := New(Config{
		Days: map[string][]Entry{
			"monday": {
				{Course: "Algorithms", Time: "8:00 AM", Program: "CS"},
				{Course: "Databases", Time: "10:00 AM", Program: "CS"},
				{Course: "Statics", Time: "1:00 PM", Program: "CE"},
			},
		},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	got := tbl.FormatDay(time.Monday)
	lines := strings.Split(got, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected banner + 3 lines, got %d: %q", len(lines), got)
	}
	if lines[0] != defaultBanner {
		t.Fatalf("banner = %q, want %q", lines[0], defaultBanner)
	}
	want := []string{
		"CS - Algorithms (8:00 AM)",
		"CS - Databases (10:00 AM)",
		"CE - Statics (1:00 PM)",
	}
	for i, w := range want {
		if lines[i+1] != w {
			t.Fatalf("line %d = %q, want %q", i+1, lines[i+1], w)
		}
	}
}

func TestFormatDayCustomBanner(t *testing.T) {
	t.Parallel()
	tbl, err := New(Config{
		Banner: "Classes today:",
		Days: map[string][]Entry{
			"friday": {{Course: "Circuits", Time: "9:00 AM", Program: "EE"}},
		},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	got := tbl.FormatDay(time.Friday)
	if !strings.HasPrefix(got, "Classes today:\n") {
		t.Fatalf("expected custom banner, got %q", got)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "unknown weekday",
			cfg:  Config{Days: map[string][]Entry{"caturday": {{Course: "X", Time: "1", Program: "Y"}}}},
		},
		{
			name: "missing course",
			cfg:  Config{Days: map[string][]Entry{"monday": {{Time: "1", Program: "Y"}}}},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEntriesPerWeekday(t *testing.T) {
	t.Parallel()
	tbl, err := New(Config{
		Days: map[string][]Entry{
			"sunday":  {{Course: "A", Time: "1", Program: "P"}},
			"tuesday": {{Course: "B", Time: "2", Program: "P"}, {Course: "C", Time: "3", Program: "P"}},
		},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if n := len(tbl.Entries(time.Tuesday)); n != 2 {
		t.Fatalf("tuesday entries = %d, want 2", n)
	}
	if n := len(tbl.Entries(time.Sunday)); n != 1 {
		t.Fatalf("sunday entries = %d, want 1", n)
	}
	if n := len(tbl.Entries(time.Thursday)); n != 0 {
		t.Fatalf("thursday entries = %d, want 0", n)
	}
}
