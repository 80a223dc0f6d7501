package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"kelasbot/internal/eventbus"
	"kelasbot/pkg/logx"
)

// Config controls the scheduler service.
type Config struct {
	Workers        int
	DefaultTimeout time.Duration
	Timezone       string // IANA TZ, e.g. "Africa/Lagos"
}

type OverlapPolicy int

const (
	// OverlapSkip drops a tick while the previous run is still executing.
	OverlapSkip OverlapPolicy = iota
	OverlapAllow
)

type TaskOptions struct {
	Overlap       OverlapPolicy
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	RetryJitter   float64 // 0.2 = 20%
}

func (o TaskOptions) withDefaults() TaskOptions {
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = 15 * time.Second
	}
	if o.RetryJitter <= 0 {
		o.RetryJitter = 0.2
	}
	return o
}

// TaskEvent is the payload published on the event bus for task transitions.
type TaskEvent struct {
	ID       string
	Name     string
	Started  time.Time
	Duration time.Duration
	Attempts int
	Error    string
}

type runState struct {
	mu      sync.Mutex
	running bool
}

type task struct {
	id      string
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error
	opt     TaskOptions
	state   *runState
}

type scheduleDef struct {
	id      string
	name    string
	spec    string
	timeout time.Duration
	job     func(ctx context.Context) error
	entryID cron.EntryID
	opt     TaskOptions
	state   *runState
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	bus eventbus.Bus
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	queue  chan task
	stopCh chan struct{}
	// stopDone is non-nil while a Stop() is in progress; closed when workers exit.
	stopDone chan struct{}

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}
