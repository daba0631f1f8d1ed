// Package alert dispatches notifications to external channels.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/concurrency"
)

type Level string

const (
	Info     Level = "INFO"
	Warning  Level = "WARNING"
	Error    Level = "ERROR"
	Critical Level = "CRITICAL"
)

type Payload struct {
	Level     Level
	Title     string
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

type Channel interface {
	Send(ctx context.Context, alert Payload) error
	Name() string
}

// Manager fans alerts out to all registered channels through a worker pool,
// so a slow webhook never blocks the trading path. In silent mode alerts are
// logged but not dispatched.
type Manager struct {
	channels []Channel
	pool     *concurrency.WorkerPool
	logger   core.ILogger
	silent   bool
	mu       sync.RWMutex
}

func NewManager(logger core.ILogger, silent bool) *Manager {
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "alerts",
		MaxWorkers:  4,
		MaxCapacity: 64,
		NonBlocking: true,
	}, logger)

	return &Manager{
		pool:   pool,
		logger: logger.WithField("component", "alert_manager"),
		silent: silent,
	}
}

func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
	m.logger.Info("Added alert channel", "name", ch.Name())
}

// Notify sends an alert asynchronously to every channel.
func (m *Manager) Notify(ctx context.Context, title, message string, level Level, fields map[string]string) {
	payload := Payload{
		Level:     level,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
		Fields:    fields,
	}

	m.logger.Info("Triggering alert", "title", title, "level", level)

	if m.silent {
		return
	}

	m.mu.RLock()
	channels := make([]Channel, len(m.channels))
	copy(channels, m.channels)
	m.mu.RUnlock()

	for _, ch := range channels {
		c := ch
		err := m.pool.Submit(func() {
			// Detached from the caller's context: the iteration may finish
			// before the webhook does.
			sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := c.Send(sendCtx, payload); err != nil {
				m.logger.Error("Failed to send alert", "channel", c.Name(), "error", err)
			}
		})
		if err != nil {
			m.logger.Warn("Alert queue full, dropping alert", "channel", c.Name(), "title", title)
		}
	}
}

// Close drains pending alerts.
func (m *Manager) Close() {
	m.pool.StopAndWait()
}
