package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/logging"
)

// SweeperOptions configure idle-session eviction.
type SweeperOptions struct {
	// Schedule is a standard 5-field cron expression.
	Schedule string
	// TTL is how long a session may stay idle before it is removed.
	TTL     time.Duration
	Timeout time.Duration
	Logger  logging.Logger
	// OnSweep is called with the number of sessions removed by each run.
	OnSweep func(removed int)
}

// IdleSweeper periodically removes sessions idle for longer than the TTL.
type IdleSweeper struct {
	store  core.Sweeper
	engine *cron.Cron
	opts   SweeperOptions
	now    func() time.Time
}

// NewIdleSweeper validates the schedule and returns a stopped sweeper.
func NewIdleSweeper(store core.Sweeper, optFns ...func(o *SweeperOptions)) (*IdleSweeper, error) {
	opts := SweeperOptions{
		Schedule: "*/10 * * * *",
		TTL:      24 * time.Hour,
		Timeout:  time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.ForComponent(opts.Logger, "sessions")
	if opts.TTL <= 0 {
		return nil, errors.New("sweeper ttl must be positive")
	}

	sw := &IdleSweeper{store: store, engine: cron.New(), opts: opts, now: time.Now}
	if _, err := sw.engine.AddFunc(opts.Schedule, func() { _, _ = sw.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("failed to add to cron: %w", err)
	}
	return sw, nil
}

// Sweep runs one eviction pass.
func (s *IdleSweeper) Sweep(ctx context.Context) (int, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	n, err := s.store.DeleteIdle(ctx, s.now().Add(-s.opts.TTL))
	if err != nil {
		s.opts.Logger.Error("session.sweep.failure", "error", err.Error())
		return 0, err
	}
	s.opts.Logger.Debug("session.sweep.success", "removed", n, "ttl", s.opts.TTL.String())
	if s.opts.OnSweep != nil {
		s.opts.OnSweep(n)
	}
	return n, nil
}

// Start begins running sweeps on the schedule.
func (s *IdleSweeper) Start() { s.engine.Start() }

// Stop halts the schedule and waits for a running sweep or ctx.
func (s *IdleSweeper) Stop(ctx context.Context) {
	select {
	case <-s.engine.Stop().Done():
	case <-ctx.Done():
	}
}
