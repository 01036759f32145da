package model

import "time"

type Section string

const (
	SectionAptitude    Section = "Aptitude"
	SectionMachineTest Section = "MachineTest"
	SectionInterview   Section = "Interview"
	SectionDone        Section = "Done"
)

// ValidSection reports whether s names a configurable section. Done is the
// terminal marker and is never part of a drive's configuration.
func ValidSection(s Section) bool {
	switch s {
	case SectionAptitude, SectionMachineTest, SectionInterview:
		return true
	}
	return false
}

type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "NotStarted"
	AttemptInProgress AttemptStatus = "InProgress"
	AttemptCompleted  AttemptStatus = "Completed"
	// AttemptExpired is terminal: the drive duration elapsed mid-attempt and
	// the attempt was auto-submitted with whatever progress existed.
	AttemptExpired AttemptStatus = "Expired"
)

// Attempt is one candidate's single timed run through a drive's sections.
// At most one attempt exists per registration, enforced by a unique
// constraint on RegistrationID.
type Attempt struct {
	ID             string        `json:"id"`
	RegistrationID string        `json:"registration_id"`
	MockDriveID    string        `json:"mock_drive_id"`
	UserID         string        `json:"user_id"`
	Status         AttemptStatus `json:"status"`
	CurrentSection Section       `json:"current_section"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	// AutoSubmitted is set when the expiry sweep (or a lazy read) finished the
	// attempt instead of the candidate.
	AutoSubmitted bool      `json:"auto_submitted"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Deadline is the instant the attempt's time budget runs out.
func (a *Attempt) Deadline(duration time.Duration) time.Time {
	return a.StartedAt.Add(duration)
}

// Overdue reports whether an in-progress attempt has outlived its budget.
func (a *Attempt) Overdue(now time.Time, duration time.Duration) bool {
	return a.Status == AttemptInProgress && now.After(a.Deadline(duration))
}

// Terminal reports whether the attempt can no longer change.
func (a *Attempt) Terminal() bool {
	return a.Status == AttemptCompleted || a.Status == AttemptExpired
}
