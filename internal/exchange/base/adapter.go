// Package base carries the venue-agnostic plumbing shared by exchange
// adapters: the resilient HTTP client, request rate limiting, and a
// TTL-cached market metadata table.
package base

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/httpclient"
)

// Adapter bundles the shared pieces a venue adapter embeds.
type Adapter struct {
	Name    string
	HTTP    *httpclient.Client
	Limiter *rate.Limiter
	Logger  core.ILogger

	markets *MarketCache
}

// Config configures a base adapter.
type Config struct {
	Name        string
	BaseURL     string
	Timeout     time.Duration
	Signer      httpclient.Signer
	RatePerSec  float64
	Burst       int
	MarketTTL   time.Duration
	LoadMarkets MarketLoader
	Logger      core.ILogger
}

// NewAdapter wires the HTTP client, limiter, and market cache.
func NewAdapter(cfg Config) *Adapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = 5
	}
	if cfg.Burst == 0 {
		cfg.Burst = 10
	}
	if cfg.MarketTTL == 0 {
		cfg.MarketTTL = time.Hour
	}

	return &Adapter{
		Name:    cfg.Name,
		HTTP:    httpclient.NewClient(cfg.BaseURL, cfg.Timeout, cfg.Signer),
		Limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		Logger:  cfg.Logger.WithField("exchange", cfg.Name),
		markets: NewMarketCache(cfg.LoadMarkets, cfg.MarketTTL),
	}
}

// Wait blocks until the rate limiter admits one request.
func (a *Adapter) Wait(ctx context.Context) error {
	if err := a.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// MarketInfo returns cached metadata for a pair, refreshing the table when
// the TTL has elapsed.
func (a *Adapter) MarketInfo(ctx context.Context, pair string) (*core.MarketInfo, error) {
	return a.markets.Get(ctx, pair)
}

// SplitPair splits "BASE/QUOTE" into its coins.
func SplitPair(pair string) (string, string, error) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed pair %q", pair)
	}
	return parts[0], parts[1], nil
}

// MarketLoader fetches the full market table from the venue.
type MarketLoader func(ctx context.Context) (map[string]*core.MarketInfo, error)

// MarketCache is a TTL cache over the venue market table. Concurrent refreshes
// collapse into a single upstream call via singleflight.
type MarketCache struct {
	load MarketLoader
	ttl  time.Duration

	mu      sync.RWMutex
	markets map[string]*core.MarketInfo
	fetched time.Time

	group singleflight.Group
}

func NewMarketCache(load MarketLoader, ttl time.Duration) *MarketCache {
	return &MarketCache{load: load, ttl: ttl}
}

// Get returns metadata for a pair, refreshing the whole table on miss or
// expiry.
func (c *MarketCache) Get(ctx context.Context, pair string) (*core.MarketInfo, error) {
	if info := c.lookup(pair); info != nil {
		return info, nil
	}

	_, err, _ := c.group.Do("markets", func() (interface{}, error) {
		// Another caller may have refreshed while this one queued.
		if info := c.lookup(pair); info != nil {
			return nil, nil
		}
		markets, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.markets = markets
		c.fetched = time.Now()
		c.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("refresh markets: %w", err)
	}

	if info := c.lookup(pair); info != nil {
		return info, nil
	}
	return nil, fmt.Errorf("pair %q not listed", pair)
}

func (c *MarketCache) lookup(pair string) *core.MarketInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.markets == nil || time.Since(c.fetched) > c.ttl {
		return nil
	}
	if info, ok := c.markets[pair]; ok {
		cp := *info
		return &cp
	}
	return nil
}
