package model

import "time"

// SectionScore is one graded section of an attempt. Aptitude and interview
// scores are written by external graders; the machine-test score is computed
// from the submission ledger at finalize time.
type SectionScore struct {
	AttemptID string    `json:"attempt_id"`
	Section   Section   `json:"section"`
	RawScore  float64   `json:"raw_score"`
	MaxScore  float64   `json:"max_score"`
	GradedAt  time.Time `json:"graded_at"`
}

// Result is the frozen outcome of one completed attempt. Only Rank and
// Percentile change after creation, when sibling attempts finalize.
type Result struct {
	ID          string  `json:"id"`
	AttemptID   string  `json:"attempt_id"`
	MockDriveID string  `json:"mock_drive_id"`
	UserID      string  `json:"user_id"`
	Percentage  float64 `json:"percentage"`
	// Rank is nil until the first cohort recompute touches this row.
	Rank          *int           `json:"rank,omitempty"`
	Percentile    *float64       `json:"percentile,omitempty"`
	AutoSubmitted bool           `json:"auto_submitted"`
	Sections      []SectionScore `json:"sections,omitempty"`
	FinalizedAt   time.Time      `json:"finalized_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
