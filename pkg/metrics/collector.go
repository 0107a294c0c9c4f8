package metrics

import "time"

// StatsSource is implemented by the engine and provides the counts the
// collector periodically samples into gauges.
type StatsSource interface {
	IndexUIDs() []string
	DocumentCount(indexUID string) (int64, error)
	IndexSizeBytes(indexUID string) (int64, error)
	TaskCountsByStatus() (map[string]int64, error)
}

// Collector periodically samples engine-wide stats into prometheus gauges.
type Collector struct {
	source StatsSource
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15s interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
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
	uids := c.source.IndexUIDs()
	IndexesTotal.Set(float64(len(uids)))

	for _, uid := range uids {
		if count, err := c.source.DocumentCount(uid); err == nil {
			DocumentsTotal.WithLabelValues(uid).Set(float64(count))
		}
		if size, err := c.source.IndexSizeBytes(uid); err == nil {
			IndexSizeBytes.WithLabelValues(uid).Set(float64(size))
		}
	}

	counts, err := c.source.TaskCountsByStatus()
	if err != nil {
		return
	}
	for status, count := range counts {
		TasksTotal.WithLabelValues(status).Set(float64(count))
	}
}
