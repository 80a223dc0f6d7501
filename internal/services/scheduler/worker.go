package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"kelasbot/internal/eventbus"
	"kelasbot/pkg/logx"
)

func (s *Service) enqueue(t task) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		s.log.Debug("scheduler not running; dropping task", logx.String("task", t.name))
		return
	}
	select {
	case q <- t:
	default:
		s.log.Warn("scheduler queue full; dropping task", logx.String("task", t.name), logx.Int("queue_cap", cap(q)))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, stopCh, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, stopCh <-chan struct{}, t task) {
	start := time.Now()
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeTaskStarted, Time: start, Data: TaskEvent{ID: t.id, Name: t.name, Started: start}})
	}

	// Mark running for overlap control (shared state between cron invocations).
	if t.state != nil {
		t.state.mu.Lock()
		t.state.running = true
		t.state.mu.Unlock()
		defer func() {
			t.state.mu.Lock()
			t.state.running = false
			t.state.mu.Unlock()
		}()
	}

	opt := t.opt.withDefaults()
	retries := opt.RetryMax
	if retries < 0 {
		retries = 0
	}

	var err error
	attempts := 0
	maxAttempts := 1 + retries
attemptLoop:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		// Per-attempt timeout so a timed-out first attempt doesn't poison retries.
		runCtx := ctx
		var cancel func()
		if t.timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		}
		err = t.run(runCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil || attempt >= maxAttempts {
			break
		}

		delay := backoffDelay(opt, attempt)
		if delay > 0 {
			s.log.Debug("task retry scheduled", logx.String("task", t.name), logx.Int("attempt", attempt+1), logx.Duration("delay", delay), logx.Err(err))
			tmr := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !tmr.Stop() {
					<-tmr.C
				}
				err = ctx.Err()
				break attemptLoop
			case <-stopCh:
				if !tmr.Stop() {
					<-tmr.C
				}
				err = errors.New("scheduler stopped")
				break attemptLoop
			case <-tmr.C:
			}
		}
	}

	dur := time.Since(start)
	if err != nil {
		s.log.Warn("task failed", logx.String("task", t.name), logx.Err(err), logx.Duration("dur", dur), logx.Int("attempts", attempts))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeTaskFailed, Time: time.Now(), Data: TaskEvent{ID: t.id, Name: t.name, Started: start, Duration: dur, Attempts: attempts, Error: err.Error()}})
		}
		return
	}
	if dur >= 750*time.Millisecond {
		s.log.Info("task completed", logx.String("task", t.name), logx.Duration("dur", dur), logx.Int("attempts", attempts))
	} else {
		s.log.Debug("task completed", logx.String("task", t.name), logx.Duration("dur", dur), logx.Int("attempts", attempts))
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeTaskFinished, Time: time.Now(), Data: TaskEvent{ID: t.id, Name: t.name, Started: start, Duration: dur, Attempts: attempts}})
	}
}

func backoffDelay(opt TaskOptions, retry int) time.Duration {
	base := opt.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxD := opt.RetryMaxDelay
	if maxD <= 0 {
		maxD = 15 * time.Second
	}
	j := opt.RetryJitter
	if j <= 0 {
		j = 0.2
	}
	// exp growth
	d := base
	for i := 1; i < retry; i++ {
		d *= 2
		if d > maxD {
			d = maxD
			break
		}
	}
	// jitter [1-j, 1+j]
	r := (randFloat64()*2 - 1) * j
	d = time.Duration(float64(d) * (1 + r))
	if d < 0 {
		d = 0
	}
	if d > maxD {
		d = maxD
	}
	return d
}

var rngMu sync.Mutex

func randFloat64() float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rand.Float64()
}
