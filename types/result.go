package types

import (
	"fmt"
	"time"
)

// Mode distinguishes simulated runs from mutating runs.
type Mode string

const (
	ModeDryRun Mode = "dry-run"
	ModeLive   Mode = "live"
)

// Operation names the mutating action a result describes.
type Operation string

const (
	OpTag    Operation = "tag"
	OpDelete Operation = "delete"
)

// Outcome is the terminal state of a single operation.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeSkipped          Outcome = "skipped"
	OutcomeFailed           Outcome = "failed"
	OutcomeAlreadySatisfied Outcome = "already_satisfied"
)

// OperationResult records one tag or delete attempt. Append-only:
// results are never overwritten, so a run can be replayed for audit.
type OperationResult struct {
	ResourceID string    `json:"resource_id"`
	Op         Operation `json:"op"`
	Mode       Mode      `json:"mode"`
	Outcome    Outcome   `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RunRecord summarizes a whole run across accounts. Counts totals
// outcomes across operations; Tagged and Deleted split the successes
// by operation so the summary never conflates the two.
type RunRecord struct {
	RunID        string          `json:"run_id"`
	Mode         Mode            `json:"mode"`
	AccountScope []string        `json:"account_scope"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at,omitempty"`
	Counts       map[Outcome]int `json:"counts"`
	Tagged       int             `json:"tagged"`
	Deleted      int             `json:"deleted"`
	Preserved    int             `json:"preserved"`
}

// NewRunID derives a run identifier from the wall clock.
func NewRunID(t time.Time) string {
	return t.UTC().Format("20060102-150405")
}

// NewRunRecord starts a run record for the given scope.
func NewRunRecord(mode Mode, accounts []string, now time.Time) RunRecord {
	return RunRecord{
		RunID:        NewRunID(now),
		Mode:         mode,
		AccountScope: accounts,
		StartedAt:    now,
		Counts:       make(map[Outcome]int),
	}
}

// Observe folds a single operation result into the run counts.
func (r *RunRecord) Observe(res OperationResult) {
	r.Counts[res.Outcome]++
	if res.Outcome == OutcomeSuccess {
		switch res.Op {
		case OpTag:
			r.Tagged++
		case OpDelete:
			r.Deleted++
		}
	}
}

// Failed reports whether any operation in the run failed.
func (r *RunRecord) Failed() bool {
	return r.Counts[OutcomeFailed] > 0
}

// String renders the one-line summary used by the CLI.
func (r *RunRecord) String() string {
	return fmt.Sprintf("run %s (%s): deleted=%d tagged=%d skipped=%d failed=%d already=%d preserved=%d",
		r.RunID, r.Mode,
		r.Deleted, r.Tagged, r.Counts[OutcomeSkipped],
		r.Counts[OutcomeFailed], r.Counts[OutcomeAlreadySatisfied],
		r.Preserved)
}
