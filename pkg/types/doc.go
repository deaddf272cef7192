/*
Package types defines the data model shared by every other package: the Step
Record, its StepStatus lifecycle, the StepDef definition blob, TagRow rate
limits, and the Bundle shape the Pipeline Admitter consumes.

# Core Types

  - Step: a Step Record, the coordinator's row of truth for one DAG node
  - StepStatus: queued, pending, working, success, cancel, reset, error
  - StepDef: the immutable definition blob a worker needs to run a step
  - TagRow: a configured rate-limit tag and its velocity
  - Bundle: a parsed {steps, starters} unit the Admitter writes atomically

# Graph Representation

Parent and child edges are carried as id slices on Step and StepDef, never
as pointers. This lets a Step be loaded, mutated, and persisted on its own
without needing its neighbors in memory, and lets cycles exist in the
underlying data without the type system forbidding them (the DAG state
engine's graph walks keep a visited set, so a cycle cannot loop them; see
pkg/dag).

# Integration Points

  - pkg/stepstore persists Step and TagRow
  - pkg/blobstore persists StepDef and step output payloads
  - pkg/dag implements the StepStatus transition rules
  - pkg/scheduler implements selection and tag rate limiting
  - pkg/admitter writes a Bundle into stepstore and blobstore atomically
*/
package types
