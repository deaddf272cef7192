package scheduler

import (
	"context"
	"time"

	"github.com/daniel-olson-code/pipeline/pkg/metrics"
)

// RunRateLimiter decrements every tag's usage counter once per second,
// floored at zero, until ctx is cancelled. Grounded on the reference
// coordinator's decrement_tag_usage background thread; this is what frees
// rate-limited capacity back up over time instead of only ever filling.
func (s *Scheduler) RunRateLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.decrementTagUsage()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) decrementTagUsage() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for tag, usage := range s.tagUsage {
		if usage > 0 {
			s.tagUsage[tag] = usage - 1
		}
		metrics.TagUsageGauge.WithLabelValues(tag).Set(float64(s.tagUsage[tag]))
	}
}
