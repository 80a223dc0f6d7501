package core

import (
	"context"
	"fmt"
	"time"

	"kelasbot/internal/credstore"
	"kelasbot/internal/eventbus"
	"kelasbot/internal/health"
	"kelasbot/internal/router"
	"kelasbot/internal/services/scheduler"
	"kelasbot/internal/session"
	"kelasbot/internal/timetable"
	"kelasbot/internal/transport"
	"kelasbot/internal/transport/bridge"
	"kelasbot/pkg/logx"
)

const (
	updatesBuffer    = 256
	commandTimeout   = 30 * time.Second
	broadcastJobName = "timetable:daily"
)

// App owns every long-lived component and their startup/shutdown order.
type App struct {
	cfgMgr *ConfigManager
	logSvc *logx.Service
	log    logx.Logger

	bus     eventbus.Bus
	gateway *bridge.Gateway
	store   credstore.Store
	sess    *session.Controller
	sched   *scheduler.Service
	bcast   *timetable.Broadcast
	rtr     *router.Router
	health  *health.Server

	updates chan transport.Message
	sup     *Supervisor

	stopReason StopReason
}

// NewApp loads configuration and constructs the component graph. Nothing
// connects or listens until Start.
func NewApp(cfgPath string) (*App, error) {
	cfgMgr := NewConfigManager(cfgPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logSvc, log := logx.New(toLogConfig(cfg.Logging))
	cfgMgr.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New()

	handshake, err := ParseDurationOrDefault("bridge.handshake_timeout", cfg.Bridge.HandshakeTimeout, 15*time.Second)
	if err != nil {
		return nil, err
	}
	gw := bridge.NewGateway(bridge.Config{
		URL:            cfg.Bridge.URL,
		SendRatePerSec: float64(cfg.Bridge.SendRatePerSec),
	}, handshake, log.With(logx.String("comp", "bridge")))

	store, err := credstore.Open(credstore.Config{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
	}, log.With(logx.String("comp", "credstore")))
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	reconnectMin, err := ParseDurationOrDefault("session.reconnect_min_delay", cfg.Session.ReconnectMinDelay, 2*time.Second)
	if err != nil {
		return nil, err
	}
	reconnectMax, err := ParseDurationOrDefault("session.reconnect_max_delay", cfg.Session.ReconnectMaxDelay, 5*time.Minute)
	if err != nil {
		return nil, err
	}

	updates := make(chan transport.Message, updatesBuffer)
	sess := session.New(session.Config{
		GroupName:    cfg.Session.GroupName,
		ReconnectMin: reconnectMin,
		ReconnectMax: reconnectMax,
	}, gw, store, bus, updates, log.With(logx.String("comp", "session")))

	jobTimeout, err := ParseDurationOrDefault("schedule.timeout", cfg.Schedule.Timeout, time.Minute)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(scheduler.Config{
		Workers:        1,
		DefaultTimeout: jobTimeout,
		Timezone:       cfg.Schedule.Timezone,
	}, log.With(logx.String("comp", "scheduler")), bus)

	table, err := timetable.New(toTimetableConfig(cfg.Timetable))
	if err != nil {
		return nil, fmt.Errorf("timetable: %w", err)
	}
	loc, err := scheduleLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, err
	}
	bcast := timetable.NewBroadcast(table, sess, loc, log.With(logx.String("comp", "broadcast")))

	rtr := router.New(sess, commandTimeout, log.With(logx.String("comp", "router")))
	hs := health.New(health.Config{
		Enabled: cfg.Health.Enabled,
		Addr:    cfg.Health.Addr,
	}, log.With(logx.String("comp", "health")))

	return &App{
		cfgMgr:  cfgMgr,
		logSvc:  logSvc,
		log:     log,
		bus:     bus,
		gateway: gw,
		store:   store,
		sess:    sess,
		sched:   sched,
		bcast:   bcast,
		rtr:     rtr,
		health:  hs,
		updates: updates,
	}, nil
}

// Start brings the components up under one supervisor. A fatal error in any
// named goroutine cancels the rest.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return fmt.Errorf("app already started")
	}
	sup := NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))
	a.sup = sup

	cfg := a.cfgMgr.Get()

	// The session controller doubles as the chat log sink once connected.
	a.logSvc.SetSender(a.sess)
	if cfg.Logging.Chat.Enabled {
		a.logSvc.SetChatTarget(cfg.Logging.Chat.GroupJID)
	}

	a.cfgMgr.SetValidator(func(ctx context.Context, cfg *Config) error {
		return validateConfig(cfg)
	})

	a.sched.Start(sup.Context())
	if err := a.registerBroadcast(cfg.Schedule); err != nil {
		return err
	}

	sup.Go("session", a.sess.Run)
	sup.Go("router", func(ctx context.Context) error {
		return a.rtr.DispatchLoop(ctx, a.updates)
	})
	sup.Go("health", a.health.Start)
	sup.Go("config-watch", a.cfgMgr.Watch)
	sup.Go("config-reload", a.reloadLoop)
	sup.Go("event-log", a.eventLogLoop)

	a.log.Info("app started")
	return nil
}

// Wait blocks until a fatal component error or ctx cancellation.
func (a *App) Wait(ctx context.Context) error {
	if a.sup == nil {
		return fmt.Errorf("app not started")
	}
	select {
	case <-a.sup.Context().Done():
		if a.sup.Err() != nil {
			a.stopReason = StopFatalError
		} else {
			a.stopReason = StopAppStop
		}
	case <-ctx.Done():
		a.stopReason = StopSignal
	}
	return a.sup.Err()
}

// Stop tears the app down in reverse dependency order. Each step gets its own
// slice of the deadline so one stuck component cannot eat the whole budget.
func (a *App) Stop(ctx context.Context) error {
	var firstErr error
	step := func(name string, d time.Duration, fn func(ctx context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		if err := fn(stepCtx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", name, err)
		}
	}

	if a.sup != nil {
		a.sup.Cancel()
		step("supervisor", 10*time.Second, a.sup.Wait)
	}
	step("scheduler", 5*time.Second, func(ctx context.Context) error {
		a.sched.Stop(ctx)
		return nil
	})
	step("credstore", 2*time.Second, func(context.Context) error {
		return a.store.Close()
	})

	reason := a.stopReason
	if reason == "" {
		reason = StopUnknown
	}
	a.log.Info("app stopped", logx.String("reason", string(reason)))
	_ = a.logSvc.Close()
	return firstErr
}

func (a *App) registerBroadcast(sc ScheduleConfig) error {
	timeout, err := ParseDurationOrDefault("schedule.timeout", sc.Timeout, time.Minute)
	if err != nil {
		return err
	}
	spec := cronSpec(sc)
	_, err = a.sched.AddCron(broadcastJobName, spec, timeout, scheduler.TaskOptions{}, a.bcast.SendDaily)
	if err != nil {
		return fmt.Errorf("register broadcast job: %w", err)
	}
	a.log.Info("broadcast scheduled", logx.String("spec", spec))
	return nil
}

// reloadLoop applies committed config updates to the live components. The
// bridge URL and health address are not reapplied; changing those needs a
// restart.
func (a *App) reloadLoop(ctx context.Context) error {
	ch := a.cfgMgr.Subscribe(4)
	defer a.cfgMgr.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-ch:
			if !ok {
				return nil
			}
			a.applyConfig(cfg)
		}
	}
}

// eventLogLoop traces bus events so task and session transitions show up in
// one place at debug level.
func (a *App) eventLogLoop(ctx context.Context) error {
	events, unsub := a.bus.Subscribe(32)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
		}
	}
}

func (a *App) applyConfig(cfg *Config) {
	a.logSvc.Apply(toLogConfig(cfg.Logging))
	if cfg.Logging.Chat.Enabled {
		a.logSvc.SetChatTarget(cfg.Logging.Chat.GroupJID)
	} else {
		a.logSvc.SetChatTarget("")
	}

	// Group rename applies on the next reconnect.
	a.sess.SetGroupName(cfg.Session.GroupName)

	table, err := timetable.New(toTimetableConfig(cfg.Timetable))
	if err != nil {
		a.log.Warn("reload: timetable rejected, keeping previous", logx.Err(err))
	} else {
		loc, locErr := scheduleLocation(cfg.Schedule.Timezone)
		if locErr != nil {
			a.log.Warn("reload: timezone rejected, keeping previous", logx.Err(locErr))
		} else {
			a.bcast.SetTable(table, loc)
		}
	}

	jobTimeout, err := ParseDurationOrDefault("schedule.timeout", cfg.Schedule.Timeout, time.Minute)
	if err == nil {
		a.sched.Apply(scheduler.Config{
			Workers:        1,
			DefaultTimeout: jobTimeout,
			Timezone:       cfg.Schedule.Timezone,
		})
	}
	if err := a.registerBroadcast(cfg.Schedule); err != nil {
		a.log.Warn("reload: broadcast schedule rejected, keeping previous", logx.Err(err))
	}

	a.log.Info("config applied")
}

func cronSpec(sc ScheduleConfig) string {
	days := sc.Days
	if days == "" {
		days = "*"
	}
	return fmt.Sprintf("%d %d * * %s", sc.Minute, sc.Hour, days)
}

func scheduleLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

func toLogConfig(lc LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled:    lc.File.Enabled,
			Path:       lc.File.Path,
			MaxSizeMB:  lc.File.MaxSizeMB,
			MaxBackups: lc.File.MaxBackups,
		},
		Chat: logx.ChatConfig{
			Enabled:    lc.Chat.Enabled,
			MinLevel:   lc.Chat.MinLevel,
			RatePerSec: lc.Chat.RatePerSec,
		},
	}
}

func toTimetableConfig(tc TimetableConfig) timetable.Config {
	out := timetable.Config{Banner: tc.Banner}
	if len(tc.Days) > 0 {
		out.Days = make(map[string][]timetable.Entry, len(tc.Days))
		for day, entries := range tc.Days {
			rows := make([]timetable.Entry, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, timetable.Entry{
					Course:  e.Course,
					Time:    e.Time,
					Program: e.Program,
				})
			}
			out.Days[day] = rows
		}
	}
	return out
}

// validateConfig is the reload gate: a config that fails here is never
// committed and the previous one stays live.
func validateConfig(cfg *Config) error {
	if cfg.Session.GroupName == "" {
		return fmt.Errorf("session.group_name is required")
	}
	if _, err := ParseDurationOrDefault("bridge.handshake_timeout", cfg.Bridge.HandshakeTimeout, 15*time.Second); err != nil {
		return err
	}
	if _, err := ParseDurationOrDefault("session.reconnect_min_delay", cfg.Session.ReconnectMinDelay, 2*time.Second); err != nil {
		return err
	}
	if _, err := ParseDurationOrDefault("session.reconnect_max_delay", cfg.Session.ReconnectMaxDelay, 5*time.Minute); err != nil {
		return err
	}
	if _, err := ParseDurationOrDefault("schedule.timeout", cfg.Schedule.Timeout, time.Minute); err != nil {
		return err
	}
	if cfg.Schedule.Minute < 0 || cfg.Schedule.Minute > 59 {
		return fmt.Errorf("schedule.minute: out of range: %d", cfg.Schedule.Minute)
	}
	if cfg.Schedule.Hour < 0 || cfg.Schedule.Hour > 23 {
		return fmt.Errorf("schedule.hour: out of range: %d", cfg.Schedule.Hour)
	}
	if _, err := scheduleLocation(cfg.Schedule.Timezone); err != nil {
		return err
	}
	if _, err := timetable.New(toTimetableConfig(cfg.Timetable)); err != nil {
		return fmt.Errorf("timetable: %w", err)
	}
	return nil
}
