package model

import "time"

// Problem is one coding task in a drive's machine-test section. Authoring is
// handled elsewhere; this service only reads the assigned set.
type Problem struct {
	ID          string     `json:"id"`
	MockDriveID string     `json:"mock_drive_id"`
	Title       string     `json:"title"`
	Statement   string     `json:"statement"`
	ScoreWeight int        `json:"score_weight"`
	SortOrder   int        `json:"sort_order"`
	TestCases   []TestCase `json:"test_cases,omitempty"` // hidden; admin only view
	CreatedAt   time.Time  `json:"created_at"`
}

type TestCase struct {
	ID             string `json:"id"`
	ProblemID      string `json:"problem_id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsSample       bool   `json:"is_sample"`
	SortOrder      int    `json:"sort_order"`
}

type Language struct {
	ID        int       `json:"id"` // execution backend's numeric language id
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
