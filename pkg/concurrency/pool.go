// Package concurrency wraps alitto/pond with standardized config and logging.
package concurrency

import (
	"fmt"
	"time"

	"github.com/alitto/pond"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
)

// PoolConfig holds configuration for a worker pool
type PoolConfig struct {
	Name        string
	MaxWorkers  int
	MaxCapacity int
	IdleTimeout time.Duration
	NonBlocking bool // If true, Submit() returns error instead of blocking when full
}

// WorkerPool wraps alitto/pond with monitoring and standardized config
type WorkerPool struct {
	pool   *pond.WorkerPool
	config PoolConfig
	logger core.ILogger
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(cfg PoolConfig, logger core.ILogger) *WorkerPool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = 100
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	pool := pond.New(
		cfg.MaxWorkers,
		cfg.MaxCapacity,
		pond.MinWorkers(1),
		pond.IdleTimeout(cfg.IdleTimeout),
		pond.Strategy(pond.Balanced()),
		pond.PanicHandler(func(p interface{}) {
			logger.Error("Worker pool panic recovered", "pool", cfg.Name, "panic", p)
		}),
	)

	return &WorkerPool{
		pool:   pool,
		config: cfg,
		logger: logger.WithField("component", "worker_pool").WithField("pool", cfg.Name),
	}
}

// Submit enqueues a task. In non-blocking mode it fails when the pool is full.
func (wp *WorkerPool) Submit(task func()) error {
	if wp.config.NonBlocking {
		if ok := wp.pool.TrySubmit(task); !ok {
			return fmt.Errorf("pool %s is full (capacity %d)", wp.config.Name, wp.config.MaxCapacity)
		}
		return nil
	}
	wp.pool.Submit(task)
	return nil
}

// StopAndWait drains the queue and stops the workers.
func (wp *WorkerPool) StopAndWait() {
	wp.pool.StopAndWait()
}

// RunningWorkers returns the current number of running workers.
func (wp *WorkerPool) RunningWorkers() int {
	return wp.pool.RunningWorkers()
}
