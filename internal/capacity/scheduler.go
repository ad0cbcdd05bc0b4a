package capacity

import (
	"context"
	"sync"
	"time"
)

// defaultEvaluationInterval is used when the configured interval is zero.
const defaultEvaluationInterval = 60 * time.Second

// Scheduler drives periodic re-evaluation. It evaluates on a fixed ticker
// and immediately on external triggers (entity mutations, occupancy pushes
// from MQTT), coalescing bursts: a trigger arriving while one is pending
// folds into the same evaluation.
//
// Each ticker cycle also flushes entities left unsynced by a repository
// outage.
type Scheduler struct {
	engine   *Engine
	store    *Store
	interval time.Duration
	logger   Logger

	trigger chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewScheduler creates a scheduler for the given engine and store.
func NewScheduler(engine *Engine, store *Store, interval time.Duration, logger Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultEvaluationInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		engine:   engine,
		store:    store,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the evaluation loop. The loop stops when Stop is called
// or the parent context is cancelled. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)

		s.wg.Add(1)
		go s.run(ctx)

		s.logger.Info("scheduler started", "interval", s.interval.String())
	})
}

// Trigger requests an immediate re-evaluation. Non-blocking: if one is
// already pending, the request coalesces into it.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Stop halts the evaluation loop and waits for any in-flight evaluation
// to finish. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.logger.Info("scheduler stopped")
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Initial evaluation so consumers have a state before the first tick.
	s.evaluate(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.store.FlushUnsynced(ctx)
			s.evaluate(ctx)
		case <-s.trigger:
			s.evaluate(ctx)
		}
	}
}

func (s *Scheduler) evaluate(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.engine.Evaluate(ctx, time.Now().UTC()); err != nil {
		s.logger.Error("scheduled evaluation failed", "error", err)
	}
}
