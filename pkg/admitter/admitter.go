// Package admitter accepts an already-parsed bundle of step definitions and
// writes their definitions and step records transactionally. Parsing
// pipeline source into a bundle is out of scope; pkg/admitter/bundle.go
// only decodes an already-parsed JSON bundle, the same shape
// pipe_interpreter.get_steps_from_code produces in the reference
// implementation's upload_pipe_code.
package admitter

import (
	"fmt"

	"github.com/daniel-olson-code/pipeline/pkg/blobstore"
	"github.com/daniel-olson-code/pipeline/pkg/events"
	"github.com/daniel-olson-code/pipeline/pkg/metrics"
	"github.com/daniel-olson-code/pipeline/pkg/stepstore"
	"github.com/daniel-olson-code/pipeline/pkg/types"
)

// Admitter writes parsed pipeline bundles into the blob store and step
// store. A bundle's Step Records are committed all-or-nothing; its
// definition blobs are written one key at a time before that commit.
type Admitter struct {
	steps  stepstore.Store
	blobs  blobstore.Store
	broker *events.Broker
}

// New builds an Admitter over the given stores. broker may be nil.
func New(steps stepstore.Store, blobs blobstore.Store, broker *events.Broker) *Admitter {
	return &Admitter{steps: steps, blobs: blobs, broker: broker}
}

// Admit writes every step in bundle.Steps as a definition blob and a Step
// Record, setting status to pending for ids in bundle.Starters and queued
// for everything else. If any step id in the bundle already has a Step
// Record, the whole bundle is rejected with types.ErrAdmissionConflict and
// nothing is written — admission is all-or-nothing.
//
// Definition blobs are written first, one key per step; only once every
// one of them succeeds are the Step Records committed, and that commit is
// a single bolt transaction (PutMany). So a store-io failure partway
// through either leaves no Step Records at all (a blob write failed first)
// or leaves all of them (the PutMany transaction succeeded), never a
// partial set of records with some missing their backing definition.
func (a *Admitter) Admit(bundle *types.Bundle) error {
	if err := a.checkConflicts(bundle); err != nil {
		return err
	}

	starters := make(map[string]bool, len(bundle.Starters))
	for _, id := range bundle.Starters {
		starters[id] = true
	}

	now := types.Now()
	steps := make([]*types.Step, 0, len(bundle.Steps))
	for id, def := range bundle.Steps {
		if err := blobstore.SetStepDef(a.blobs, def); err != nil {
			return fmt.Errorf("admit: write definition %s: %w", id, err)
		}

		status := types.StatusQueued
		if starters[id] {
			status = types.StatusPending
		}

		steps = append(steps, &types.Step{
			ID:       def.ID,
			Name:     def.Name,
			Scope:    def.Scope,
			Tag:      def.Tag,
			Priority: def.Priority,
			Velocity: def.Velocity,
			Status:   status,
			Epoch:    now,
			Parents:  def.Parents,
			Children: def.Children,
		})
	}

	if err := a.steps.PutMany(steps); err != nil {
		return fmt.Errorf("admit: write step records: %w", err)
	}

	for _, step := range steps {
		metrics.StepsAdmittedTotal.WithLabelValues(string(step.Status)).Inc()
	}

	if a.broker != nil {
		for _, step := range steps {
			a.broker.Publish(&events.Event{Type: events.EventStepAdmitted, StepID: step.ID})
		}
	}

	return nil
}

// checkConflicts rejects the bundle atomically if any of its step ids
// already has a Step Record, including a mismatched scope for the same id
// (re-admission by id is always treated as a conflict, never a silent
// overwrite).
func (a *Admitter) checkConflicts(bundle *types.Bundle) error {
	for id := range bundle.Steps {
		existing, err := a.steps.Get(id)
		if err == nil && existing != nil {
			return fmt.Errorf("admit: step %s: %w", id, types.ErrAdmissionConflict)
		}
	}
	return nil
}
