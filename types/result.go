package types

import (
	"time"
)

// SpecStatus represents the possible states of a spec execution
type SpecStatus string

const (
	SpecStatusPass SpecStatus = "pass"
	SpecStatusFail SpecStatus = "fail"
	SpecStatusSkip SpecStatus = "skip"
)

// FailureDetail captures where and why a spec failed. StepIndex is the
// zero-based index of the failing step within the spec.
type FailureDetail struct {
	StepIndex int    `json:"stepIndex"`
	Cause     string `json:"cause"`
}

// RunResult captures the outcome of a single spec run.
// It is written exactly once per spec and never overwritten.
type RunResult struct {
	SpecID        string         `json:"specId"`
	Status        SpecStatus     `json:"status"`
	Duration      time.Duration  `json:"durationMs"`
	FailureDetail *FailureDetail `json:"failureDetail,omitempty"`
	ArtifactRefs  []string       `json:"artifactRefs,omitempty"`
}

// RunStats tracks spec statistics for a run
type RunStats struct {
	Total     int       `json:"total"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Record updates the counters for a single result status.
func (s *RunStats) Record(status SpecStatus) {
	s.Total++
	switch status {
	case SpecStatusPass:
		s.Passed++
	case SpecStatusFail:
		s.Failed++
	case SpecStatusSkip:
		s.Skipped++
	}
}

// OverallStatus derives the run-level status from the counters: any failure
// fails the run, an all-skip run is reported as skipped.
func (s *RunStats) OverallStatus() SpecStatus {
	if s.Failed > 0 {
		return SpecStatusFail
	}
	if s.Total > 0 && s.Skipped == s.Total {
		return SpecStatusSkip
	}
	return SpecStatusPass
}
