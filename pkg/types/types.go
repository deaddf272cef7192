package types

import "time"

// StepStatus is the lifecycle state of a Step Record.
type StepStatus string

const (
	StatusQueued  StepStatus = "queued"
	StatusPending StepStatus = "pending"
	StatusWorking StepStatus = "working"
	StatusSuccess StepStatus = "success"
	StatusCancel  StepStatus = "cancel"
	StatusReset   StepStatus = "reset"
	StatusError   StepStatus = "error"
)

// terminalStatuses are the statuses a blob-GC sweep treats as finished.
var terminalStatuses = map[StepStatus]bool{
	StatusCancel:  true,
	StatusSuccess: true,
}

// IsTerminal reports whether a status counts toward blob-GC eligibility.
func (s StepStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// Language names the runtime a step's code executes under. The coordinator
// never reads or interprets step code; this field is opaque plumbing carried
// for the worker side.
type Language string

const (
	LanguagePython   Language = "python"
	LanguagePostgres Language = "postgres"
	LanguageSqlite3  Language = "sqlite3"
)

// Step is a Step Record: the coordinator's row of truth for one node in a
// pipeline's DAG. Graph edges are carried as id slices, never as pointers,
// so a Step can be loaded and persisted independently of its neighbors.
type Step struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Scope    string     `json:"scope"`
	Tag      string     `json:"tag"`
	Priority int        `json:"priority"`
	Velocity int        `json:"velocity"`
	Status   StepStatus `json:"status"`
	Epoch    int64      `json:"epoch"`
	Msg      string     `json:"msg"`
	Trace    string     `json:"trace"`
	Parents  []string   `json:"parents"`
	Children []string   `json:"children"`
}

// HasParents reports whether the step has any upstream dependency.
func (s *Step) HasParents() bool {
	return len(s.Parents) > 0
}

// StepDef is the immutable definition blob for a step, keyed under
// "step/{id}" in the blob store. It carries the code a worker needs to run
// the step; the coordinator stores and returns it unread.
type StepDef struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Language Language       `json:"language"`
	Func     string         `json:"func"`
	Code     string         `json:"code"`
	Local    bool           `json:"local"`
	Kwargs   map[string]any `json:"kwargs"`
	Scope    string         `json:"scope"`
	Tag      string         `json:"tag"`
	Priority int            `json:"priority"`
	Velocity int            `json:"velocity"`
	Parents  []string       `json:"parents"`
	Children []string       `json:"children"`
}

// TagRow is a configured rate-limit tag: velocity is the maximum number of
// steps carrying this tag the Fair Scheduler will admit into a single
// dispatch window before the tag-usage ticker frees capacity back up.
type TagRow struct {
	Tag      string `json:"tag"`
	Velocity int    `json:"velocity"`
}

// Bundle is the already-parsed output the Pipeline Admitter consumes: a set
// of step definitions plus the subset of ids that should enter the graph as
// runnable (status pending) rather than blocked (status queued).
type Bundle struct {
	Steps    map[string]*StepDef `json:"steps"`
	Starters []string            `json:"starters"`
}

// Now returns the current epoch used for Step.Epoch stamping. Centralized so
// tests can observe the same clock the rest of the package uses.
func Now() int64 {
	return time.Now().Unix()
}
