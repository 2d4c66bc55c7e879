// Package rates keeps the last good market rate per asset and refreshes it
// on a fixed poll interval. A failed refresh never discards a good rate.
package rates

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stackswap/internal/infra"
	"github.com/seenimoa/stackswap/pkg/models"
)

// Source fetches a fresh rate. *backend.Client satisfies it.
type Source interface {
	GetRate(ctx context.Context, asset models.Asset) (*models.Rate, error)
}

// Listener is notified after every refresh attempt with the new snapshot.
type Listener func(asset models.Asset, snap models.RateSnapshot)

type entry struct {
	snap    models.RateSnapshot
	issued  uint64 // sequence of the newest request issued
	applied uint64 // sequence of the newest result applied
}

// Cache holds one snapshot per asset.
type Cache struct {
	source  Source
	logger  *logrus.Logger
	metrics *infra.Metrics

	mu        sync.RWMutex
	entries   map[models.Asset]*entry
	listeners []Listener
}

// NewCache creates a rate cache backed by source.
func NewCache(source Source, logger *logrus.Logger, metrics *infra.Metrics) *Cache {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Cache{
		source:  source,
		logger:  logger,
		metrics: metrics,
		entries: make(map[models.Asset]*entry),
	}
}

// OnChange registers a listener for refresh outcomes.
func (c *Cache) OnChange(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Refresh fetches a new rate for asset. On success the rate replaces the
// cached one wholesale; on failure the cache is marked errored and the
// previous good rate is kept and returned alongside the error. A result that
// arrives after a newer request's result is dropped.
func (c *Cache) Refresh(ctx context.Context, asset models.Asset) (*models.Rate, error) {
	c.mu.Lock()
	e := c.entryLocked(asset)
	e.issued++
	seq := e.issued
	c.mu.Unlock()

	rate, err := c.source.GetRate(ctx, asset)
	now := time.Now()

	c.mu.Lock()
	e = c.entryLocked(asset)
	if seq < e.applied {
		prev := e.snap.Rate
		c.mu.Unlock()
		c.metrics.Stale("rate")
		return prev, err
	}
	e.applied = seq
	e.snap.LastAttempt = now
	if err != nil {
		e.snap.Errored = true
		e.snap.LastError = err.Error()
		e.snap.Stale = e.snap.Rate != nil
	} else {
		e.snap = models.RateSnapshot{Rate: rate, LastAttempt: now}
	}
	snap := e.snap
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	if err != nil {
		c.metrics.RateRefresh("error")
		c.logger.WithFields(logrus.Fields{
			"asset":    asset,
			"has_rate": snap.Rate != nil,
		}).WithError(err).Warn("rate refresh failed")
	} else {
		c.metrics.RateRefresh("ok")
		c.logger.WithFields(logrus.Fields{
			"asset": asset,
			"rate":  rate.MarketRate.String(),
			"fee":   rate.FlatFee.String(),
		}).Debug("rate refreshed")
	}

	for _, l := range listeners {
		l(asset, snap)
	}
	return snap.Rate, err
}

// Snapshot returns the current view for asset. A zero snapshot means no
// refresh has ever completed.
func (c *Cache) Snapshot(asset models.Asset) models.RateSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[asset]
	if !ok {
		return models.RateSnapshot{}
	}
	return e.snap
}

// Current returns the last good rate for asset, or nil.
func (c *Cache) Current(asset models.Asset) *models.Rate {
	return c.Snapshot(asset).Rate
}

// Run refreshes the asset returned by current on every tick until ctx is
// done. It does not refresh immediately; callers warm the cache themselves.
func (c *Cache) Run(ctx context.Context, interval time.Duration, current func() models.Asset) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh(ctx, current())
		}
	}
}

func (c *Cache) entryLocked(asset models.Asset) *entry {
	e, ok := c.entries[asset]
	if !ok {
		e = &entry{}
		c.entries[asset] = e
	}
	return e
}
