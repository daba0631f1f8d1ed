package ladder

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
)

const (
	minIterationInterval = 10 * time.Second
	intervalJitterMax    = 5 * time.Second
	inactivePollInterval = 3 * time.Second
	iterationTimeout     = 2 * time.Minute
)

// Scheduler drives the engine. Ticks are spaced by a jittered interval no
// shorter than the venue's open-orders cache window; a tick that lands while
// the previous iteration is still in flight is skipped. While the strategy is
// inactive the scheduler polls cheaply without touching the venue.
type Scheduler struct {
	engine   *Engine
	logger   core.ILogger
	activeFn func() bool

	baseInterval time.Duration
	inFlight     atomic.Bool
	wg           sync.WaitGroup

	mu  sync.Mutex
	rng *rand.Rand
}

func NewScheduler(engine *Engine, features core.Features, activeFn func() bool, logger core.ILogger) *Scheduler {
	base := minIterationInterval
	if cache := time.Duration(features.OpenOrdersCacheSec) * time.Second; cache > base {
		base = cache
	}

	return &Scheduler{
		engine:       engine,
		logger:       logger.WithField("component", "scheduler"),
		activeFn:     activeFn,
		baseInterval: base,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run loops until ctx is cancelled. Shutdown is cooperative: the current
// iteration finishes its venue calls before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started", "baseInterval", s.baseInterval)
	defer s.logger.Info("Scheduler stopped")

	timer := time.NewTimer(s.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return nil
		case <-timer.C:
		}

		if s.activeFn() {
			s.tick(ctx)
		}
		timer.Reset(s.nextInterval())
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("Previous iteration still in flight, skipping tick")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)

		// Detached from the run context so a shutdown lets in-flight venue
		// calls complete, bounded by the iteration timeout.
		iterCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), iterationTimeout)
		defer cancel()

		if err := s.engine.RunIteration(iterCtx); err != nil {
			s.logger.Error("Iteration failed", "error", err)
		}
	}()
}

func (s *Scheduler) nextInterval() time.Duration {
	if !s.activeFn() {
		return inactivePollInterval
	}
	s.mu.Lock()
	jitter := time.Duration(s.rng.Int63n(int64(intervalJitterMax)))
	s.mu.Unlock()
	return s.baseInterval + jitter
}
