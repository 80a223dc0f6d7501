package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"kelasbot/internal/eventbus"
	"kelasbot/pkg/logx"
)

func newTestService(bus eventbus.Bus) *Service {
	return New(Config{Workers: 2, DefaultTimeout: 5 * time.Second}, logx.Nop(), bus)
}

func TestAddCronRejectsBadSpec(t *testing.T) {
	t.Parallel()
	s := newTestService(eventbus.New())
	if _, err := s.AddCron("job", "not a spec", 0, TaskOptions{}, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if _, err := s.AddCron("", "0 7 * * *", 0, TaskOptions{}, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestAddCronUpsertsByName(t *testing.T) {
	t.Parallel()
	s := newTestService(eventbus.New())
	job := func(context.Context) error { return nil }
	if _, err := s.AddCron("daily", "0 7 * * 1-5", 0, TaskOptions{}, job); err != nil {
		t.Fatalf("AddCron error: %v", err)
	}
	if _, err := s.AddCron("daily", "30 6 * * *", 0, TaskOptions{}, job); err != nil {
		t.Fatalf("AddCron error: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.defs) != 1 {
		t.Fatalf("defs = %d, want 1 (replace, not accumulate)", len(s.defs))
	}
	if s.defs[0].spec != "30 6 * * *" {
		t.Fatalf("spec = %q, want the replacement", s.defs[0].spec)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	s := newTestService(eventbus.New())
	if _, err := s.AddCron("daily", "0 7 * * *", 0, TaskOptions{}, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("AddCron error: %v", err)
	}
	if !s.Remove("daily") {
		t.Fatal("Remove = false for a registered job")
	}
	if s.Remove("daily") {
		t.Fatal("Remove = true for an already-removed job")
	}
}

func TestExecOneRetries(t *testing.T) {
	t.Parallel()
	s := newTestService(eventbus.New())

	var calls atomic.Int32
	job := func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}
	s.execOne(context.Background(), make(chan struct{}), task{
		id:   "t1",
		name: "retrying",
		run:  job,
		opt:  TaskOptions{RetryMax: 3, RetryBase: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond},
	})
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3 (two retries then success)", got)
	}
}

func TestExecOneNoRetryByDefault(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()
	s := newTestService(bus)

	var calls atomic.Int32
	s.execOne(context.Background(), make(chan struct{}), task{
		id:   "t1",
		name: "failing",
		run: func(context.Context) error {
			calls.Add(1)
			return errors.New("boom")
		},
	})
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == eventbus.TypeTaskFailed {
				return
			}
		case <-deadline:
			t.Fatal("failed event never published")
		}
	}
}

func TestExecOnePerAttemptTimeout(t *testing.T) {
	t.Parallel()
	s := newTestService(eventbus.New())

	start := time.Now()
	s.execOne(context.Background(), make(chan struct{}), task{
		id:      "t1",
		name:    "slow",
		timeout: 20 * time.Millisecond,
		run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	if took := time.Since(start); took > 2*time.Second {
		t.Fatalf("timed-out task took %v", took)
	}
}

func TestOverlapSkipDropsTick(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()
	s := newTestService(bus)

	var runs atomic.Int32
	release := make(chan struct{})
	_, err := s.AddCron("long", "@every 1s", 10*time.Second, TaskOptions{Overlap: OverlapSkip}, func(ctx context.Context) error {
		runs.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	if err != nil {
		t.Fatalf("AddCron error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer func() {
		close(release)
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		s.Stop(stopCtx)
	}()

	// First tick starts the job and blocks it; the second tick must be
	// dropped, not queued behind it.
	deadline := time.After(10 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == eventbus.TypeTaskSkipped {
				if got := runs.Load(); got != 1 {
					t.Fatalf("runs = %d, want 1 while first run is in flight", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("skip event never published")
		}
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	t.Parallel()
	opt := TaskOptions{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second, RetryJitter: 0.2}
	for retry := 1; retry <= 10; retry++ {
		d := backoffDelay(opt, retry)
		if d < 0 || d > time.Second {
			t.Fatalf("backoffDelay(retry=%d) = %v, outside [0, max]", retry, d)
		}
	}
}

func TestResolveTimeoutDefault(t *testing.T) {
	t.Parallel()
	s := newTestService(eventbus.New())
	if got := s.resolveTimeout(0); got != 5*time.Second {
		t.Fatalf("resolveTimeout(0) = %v, want default", got)
	}
	if got := s.resolveTimeout(time.Minute); got != time.Minute {
		t.Fatalf("resolveTimeout(1m) = %v", got)
	}
}
