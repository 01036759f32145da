package service

import (
	"fmt"
	"time"

	"campusdrive/internal/domain/model"
)

// GateDecision is the outcome of the batch-time admission check.
type GateDecision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration // until the window opens; zero when closed for good
}

// CanAttempt decides whether now falls inside the candidate's start window.
// A registration without a batch falls back to the drive's own window. Pure:
// no side effects, safe to call repeatedly and concurrently.
func CanAttempt(now time.Time, drive *model.MockDrive, batch *model.Batch) GateDecision {
	windowStart, windowEnd := drive.DriveStart, drive.DriveEnd
	if batch != nil {
		windowStart, windowEnd = batch.BatchStart, batch.BatchEnd
	}

	if now.Before(windowStart) {
		wait := windowStart.Sub(now)
		return GateDecision{
			Reason:     fmt.Sprintf("not yet open, opens in %s", wait.Round(time.Second)),
			RetryAfter: wait,
		}
	}
	if now.After(windowEnd) {
		return GateDecision{Reason: "window closed"}
	}
	return GateDecision{Allowed: true}
}
