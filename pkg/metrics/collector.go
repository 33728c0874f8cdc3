package metrics

import (
	"time"

	"github.com/cuemby/rqstore/pkg/types"
)

// StatsSource is satisfied by *store.Store without metrics importing store.
type StatsSource interface {
	Stats() types.Stats
}

// Collector periodically samples a StatsSource into the gauge metrics.
type Collector struct {
	source StatsSource
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins sampling on a ticker.
func (c *Collector) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	stats := c.source.Stats()

	SessionsTotal.Set(float64(stats.Sessions))
	InstaqlQueriesTotal.WithLabelValues("true").Set(float64(stats.InstaqlQueriesStale))
	InstaqlQueriesTotal.WithLabelValues("false").Set(float64(stats.InstaqlQueriesFresh))
	DatalogQueriesTotal.Set(float64(stats.DatalogQueries))
	SubscriptionsTotal.Set(float64(stats.Subscriptions))
}
