package metrics

import (
	"time"

	"github.com/daniel-olson-code/pipeline/pkg/stepstore"
)

// Collector polls the Step Record Store on a fixed interval and republishes
// per-status counts as gauges.
type Collector struct {
	steps  stepstore.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over steps.
func NewCollector(steps stepstore.Store) *Collector {
	return &Collector{
		steps:  steps,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
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
	counts, err := c.steps.CountByStatus()
	if err != nil {
		return
	}
	for status, count := range counts {
		StepsByStatus.WithLabelValues(string(status)).Set(float64(count))
	}
}
