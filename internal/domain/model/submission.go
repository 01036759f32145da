package model

import "time"

// Verdict is the closed set of normalized submission outcomes. Whatever the
// execution backend reports collapses into one of these.
type Verdict string

const (
	VerdictAccepted          Verdict = "Accepted"
	VerdictWrongAnswer       Verdict = "WrongAnswer"
	VerdictTimeLimitExceeded Verdict = "TimeLimitExceeded"
	VerdictCompileError      Verdict = "CompileError"
	VerdictRuntimeError      Verdict = "RuntimeError"
	VerdictInternalError     Verdict = "InternalError"
	// VerdictExecutionUnavailable is an audit entry: the backend could not be
	// reached at all. Distinct from WrongAnswer so infrastructure failures
	// never score against the candidate.
	VerdictExecutionUnavailable Verdict = "ExecutionUnavailable"
)

// ProblemSubmission is one append-only ledger row. Rows are never updated or
// deleted once written.
type ProblemSubmission struct {
	ID         string  `json:"id"`
	AttemptID  string  `json:"attempt_id"`
	ProblemID  string  `json:"problem_id"`
	LanguageID int     `json:"language_id"`
	SourceCode string  `json:"source_code"`
	Verdict    Verdict `json:"verdict"`
	// VerdictDetail carries the runtime sub-reason (SIGSEGV, NZEC, ...) or the
	// backend's raw status description.
	VerdictDetail string  `json:"verdict_detail,omitempty"`
	RawStatusID   int     `json:"raw_status_id"`
	CompileOutput *string `json:"compile_output,omitempty"`
	Stderr        *string `json:"stderr,omitempty"`
	TimeSec       float64 `json:"time_seconds"`
	MemoryKB      int     `json:"memory_kb"`
	// IsCustomRun marks a run against candidate-supplied stdin rather than the
	// hidden test set. Custom runs never count toward solving a problem.
	IsCustomRun bool      `json:"is_custom_run"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SectionSummary is the ledger's per-attempt machine-test digest.
type SectionSummary struct {
	Attempted int `json:"attempted"`
	Solved    int `json:"solved"`
	Total     int `json:"total"`
}

// AttemptedAll reports whether every assigned problem has at least one real
// submission, which is the gate for leaving the machine-test section.
func (s SectionSummary) AttemptedAll() bool {
	return s.Total > 0 && s.Attempted >= s.Total
}
