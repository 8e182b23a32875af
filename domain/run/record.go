// Package run describes the persisted outcome of one algorithm run.
package run

import (
	"time"

	"goseldon/domain/core"
)

// FailureKind separates a failed guarantee from an internal fault
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureConstraint  FailureKind = "constraint_failed"
	FailureComputation FailureKind = "computation_error"
)

// ConstraintReport is the bound evidence for one constraint
type ConstraintReport struct {
	Constraint string `json:"constraint"`
	// Comparison is "<=" or "==" against zero after normalisation
	Comparison string   `json:"comparison"`
	Lower      Bound    `json:"lower"`
	Upper      Bound    `json:"upper"`
	Passed     bool     `json:"passed"`
	Value      *float64 `json:"value,omitempty"` // point estimate on the safety split, when defined
}

// Record is one driver run
type Record struct {
	ID          core.RunID         `json:"id"`
	Experiment  string             `json:"experiment"`
	Passed      bool               `json:"passed"`
	Failure     FailureKind        `json:"failure,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Solution    []float64          `json:"solution,omitempty"`
	Candidate   []float64          `json:"candidate,omitempty"`
	Constraints []ConstraintReport `json:"constraints"`
	NCandidate  int                `json:"n_candidate"`
	NSafety     int                `json:"n_safety"`
	Seed        int64              `json:"seed"`
	Duration    time.Duration      `json:"duration"`
	CreatedAt   time.Time          `json:"created_at"`
}

// NewRecord creates a record with a fresh id
func NewRecord(experiment string, seed int64) *Record {
	return &Record{
		ID:         core.NewRunID(),
		Experiment: experiment,
		Seed:       seed,
		CreatedAt:  time.Now().UTC(),
	}
}
