package model

import (
	"strings"
	"time"
)

type DriveStatus string

const (
	DriveDraft            DriveStatus = "Draft"
	DriveRegistrationOpen DriveStatus = "RegistrationOpen"
	DriveOngoing          DriveStatus = "Ongoing"
	DriveCompleted        DriveStatus = "Completed"
)

// MockDrive is one scheduled assessment owned by an institution. The section
// order is fixed at creation time and never changes once the drive is ongoing.
type MockDrive struct {
	ID            string      `json:"id"`
	InstitutionID string      `json:"institution_id"`
	Title         string      `json:"title"`
	Slug          string      `json:"slug"`
	Status        DriveStatus `json:"status"`
	RegOpen       time.Time   `json:"reg_open"`
	RegClose      time.Time   `json:"reg_close"`
	DriveStart    time.Time   `json:"drive_start"`
	DriveEnd      time.Time   `json:"drive_end"`
	DurationMin   int         `json:"duration_minutes"`
	Sections      []Section   `json:"sections"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Duration is the per-attempt time budget.
func (d *MockDrive) Duration() time.Duration {
	return time.Duration(d.DurationMin) * time.Minute
}

// SectionSequence returns the drive's configured sections followed by the
// terminal Done marker. currentSection may only walk this list forward.
func (d *MockDrive) SectionSequence() []Section {
	seq := make([]Section, 0, len(d.Sections)+1)
	seq = append(seq, d.Sections...)
	return append(seq, SectionDone)
}

// EncodeSections serializes the section order for storage.
func EncodeSections(sections []Section) string {
	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// DecodeSections parses the stored section order.
func DecodeSections(encoded string) []Section {
	if encoded == "" {
		return nil
	}
	parts := strings.Split(encoded, ",")
	sections := make([]Section, 0, len(parts))
	for _, p := range parts {
		sections = append(sections, Section(p))
	}
	return sections
}

// Batch is a scheduled slot within a drive. A registration assigned to a batch
// may only start inside the batch window.
type Batch struct {
	ID          string    `json:"id"`
	MockDriveID string    `json:"mock_drive_id"`
	Name        string    `json:"name"`
	BatchStart  time.Time `json:"batch_start"`
	BatchEnd    time.Time `json:"batch_end"`
	Capacity    int       `json:"capacity"`
	CreatedAt   time.Time `json:"created_at"`
}

type RegistrationStatus string

const (
	RegistrationRegistered    RegistrationStatus = "Registered"
	RegistrationBatchAssigned RegistrationStatus = "BatchAssigned"
	RegistrationWithdrawn     RegistrationStatus = "Withdrawn"
)

// Registration links one candidate to one drive. (user_id, mock_drive_id) is
// unique in storage.
type Registration struct {
	ID           string             `json:"id"`
	UserID       string             `json:"user_id"`
	MockDriveID  string             `json:"mock_drive_id"`
	BatchID      *string            `json:"batch_id,omitempty"`
	Status       RegistrationStatus `json:"status"`
	RegisteredAt time.Time          `json:"registered_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
