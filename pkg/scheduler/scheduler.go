// Package scheduler implements selectReady(scopes, limit, chunkSize),
// ordered by (scopeRank, -priority, epoch), gated by per-tag token-bucket
// rate limiting, and reclaiming abandoned working steps once their lease
// expires. Grounded on the reference coordinator's get_steps.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/daniel-olson-code/pipeline/pkg/log"
	"github.com/daniel-olson-code/pipeline/pkg/metrics"
	"github.com/daniel-olson-code/pipeline/pkg/stepstore"
	"github.com/daniel-olson-code/pipeline/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultLease is the duration a working step may go unreported before the
// scheduler treats its lease as abandoned and makes it selectable again.
const DefaultLease = 2 * time.Hour

// DefaultLimit and DefaultChunkSize mirror the reference implementation's
// defaults for selectReady.
const (
	DefaultLimit     = 50
	DefaultChunkSize = 100
)

// Scheduler selects runnable steps for a worker's scopes, enforcing
// per-tag rate limits and lease-based reclamation of abandoned work.
type Scheduler struct {
	steps  stepstore.Store
	logger zerolog.Logger

	mu        sync.Mutex
	tagUsage  map[string]int
	lease     time.Duration
	chunkSize int
}

// New builds a Scheduler over steps with the given lease duration and scan
// chunk size. A zero lease or chunkSize falls back to the package defaults.
func New(steps stepstore.Store, lease time.Duration, chunkSize int) *Scheduler {
	if lease <= 0 {
		lease = DefaultLease
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Scheduler{
		steps:     steps,
		logger:    log.WithComponent("scheduler"),
		tagUsage:  make(map[string]int),
		lease:     lease,
		chunkSize: chunkSize,
	}
}

// SelectReady returns up to limit steps across scopes, in
// (scopeRank, -priority, epoch) order, admitting a step only while its
// tag's usage is below its configured velocity, then transitions every
// admitted step to working in a single bulk update. scopes[i]'s rank is i,
// so earlier scopes in the slice are preferred.
func (s *Scheduler) SelectReady(scopes []string, limit int) ([]*types.Step, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	scopeRank := make(map[string]int, len(scopes))
	for i, sc := range scopes {
		scopeRank[sc] = i
	}

	leaseExpiry := time.Now().Add(-s.lease).Unix()

	var candidates []*types.Step
	err := s.steps.ScanCandidates(scopes, leaseExpiry, s.chunkSize, func(step *types.Step) bool {
		candidates = append(candidates, step)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("select ready: scan candidates: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if scopeRank[a.Scope] != scopeRank[b.Scope] {
			return scopeRank[a.Scope] < scopeRank[b.Scope]
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Epoch < b.Epoch
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	var admitted []*types.Step
	var ids []string
	for _, step := range candidates {
		if len(admitted) >= limit {
			break
		}
		if !s.admitLocked(step) {
			continue
		}
		admitted = append(admitted, step)
		ids = append(ids, step.ID)
	}

	if len(ids) > 0 {
		if err := s.steps.BulkSetStatus(ids, types.StatusWorking, types.Now()); err != nil {
			return nil, fmt.Errorf("select ready: transition to working: %w", err)
		}
		for _, step := range admitted {
			step.Status = types.StatusWorking
		}
	}

	return admitted, nil
}

// admitLocked checks and, on admission, increments tag usage for step's tag.
// A step with no tag, or a tag with no configured velocity, is unlimited.
// Must be called with s.mu held.
func (s *Scheduler) admitLocked(step *types.Step) bool {
	if step.Tag == "" {
		return true
	}

	row, err := s.steps.GetTag(step.Tag)
	if err != nil {
		s.logger.Warn().Err(err).Str("tag", step.Tag).Msg("failed to load tag velocity, admitting unlimited")
		return true
	}
	if row == nil {
		return true
	}

	if s.tagUsage[step.Tag] >= row.Velocity {
		return false
	}
	s.tagUsage[step.Tag]++
	metrics.TagUsageGauge.WithLabelValues(step.Tag).Set(float64(s.tagUsage[step.Tag]))
	return true
}
