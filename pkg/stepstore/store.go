// Package stepstore implements the crash-safe table of Step Records and
// their TagRow rate-limit configuration, plus the paginated scan the Fair
// Scheduler (pkg/scheduler) drives to build its candidate set.
package stepstore

import "github.com/daniel-olson-code/pipeline/pkg/types"

// Store is the Step Record Store interface. BoltStore is its only
// implementation; the interface exists so pkg/dag, pkg/scheduler, and
// pkg/admitter can be tested against an in-memory fake without bbolt.
type Store interface {
	// Put inserts or overwrites a Step Record in full.
	Put(step *types.Step) error

	// PutMany inserts or overwrites every given Step Record in one bolt
	// transaction, so a bundle's records either all land or none do.
	PutMany(steps []*types.Step) error

	// Get returns a Step Record by id, or types.ErrStepNotFound.
	Get(id string) (*types.Step, error)

	// GetMany returns every Step Record named by ids that exists, silently
	// skipping ids with no record (a record can race a concurrent delete).
	// Used by the DAG engine once a graph walk has discovered a component's
	// full id set, to read every member's current status back in one bulk
	// query rather than one Get per id.
	GetMany(ids []string) ([]*types.Step, error)

	// UpdateStatus sets status and epoch on a single Step Record.
	UpdateStatus(id string, status types.StepStatus, epoch int64) error

	// SetError sets status to error along with msg and trace, a single-row
	// update with no propagation.
	SetError(id string, msg, trace string, epoch int64) error

	// BulkSetStatus sets status and epoch across many ids in one pass, used
	// by done's child-promotion and the scheduler's working-transition.
	BulkSetStatus(ids []string, status types.StepStatus, epoch int64) error

	// ScanCandidates walks Step Records in pages of chunkSize, invoking
	// visit for every record whose scope is in scopes and whose status is
	// pending, or whose status is working with an epoch older than
	// leaseExpiry (an abandoned lease). visit returns false to stop the
	// scan early.
	ScanCandidates(scopes []string, leaseExpiry int64, chunkSize int, visit func(*types.Step) bool) error

	// GetTag returns a configured rate-limit tag, or nil if the tag has no
	// configured velocity (an unconfigured tag is treated as unlimited).
	GetTag(tag string) (*types.TagRow, error)

	// PutTag inserts or overwrites a tag's velocity.
	PutTag(row *types.TagRow) error

	// ListTags returns every configured tag.
	ListTags() ([]*types.TagRow, error)

	// CountByStatus returns the number of Step Records in each status, for
	// the metrics collector.
	CountByStatus() (map[types.StepStatus]int, error)

	Close() error
}
