package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/model"
	"campusdrive/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// AttemptService owns the attempt lifecycle: the start gate, section
// transitions, completion and expiry. All mutations of one attempt are
// linearized through a keyed mutex; the unique constraint on registration_id
// is the authoritative guard against duplicate attempts across instances.
type AttemptService struct {
	attemptRepo    repository.AttemptRepository
	regRepo        repository.RegistrationRepository
	driveRepo      repository.DriveRepository
	problemRepo    repository.ProblemRepository
	submissionRepo repository.SubmissionRepository
	resultRepo     repository.ResultRepository
	results        *ResultService

	locks *xsync.MapOf[string, *sync.Mutex]
}

func NewAttemptService(
	attemptRepo repository.AttemptRepository,
	regRepo repository.RegistrationRepository,
	driveRepo repository.DriveRepository,
	problemRepo repository.ProblemRepository,
	submissionRepo repository.SubmissionRepository,
	resultRepo repository.ResultRepository,
	results *ResultService,
) *AttemptService {
	return &AttemptService{
		attemptRepo:    attemptRepo,
		regRepo:        regRepo,
		driveRepo:      driveRepo,
		problemRepo:    problemRepo,
		submissionRepo: submissionRepo,
		resultRepo:     resultRepo,
		results:        results,
		locks:          xsync.NewMapOf[string, *sync.Mutex](),
	}
}

// lock serializes state-machine operations for one key (registration id for
// start, attempt id afterwards) within this process.
func (s *AttemptService) lock(key string) func() {
	mu, _ := s.locks.LoadOrCompute(key, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

// Start creates the candidate's attempt, or returns the existing one
// unchanged. Replays and concurrent double-clicks collapse to a single row.
func (s *AttemptService) Start(ctx context.Context, userID, driveID string) (*model.Attempt, error) {
	reg, err := s.regRepo.FindRegistrationByUserAndDrive(ctx, userID, driveID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("no registration for this drive: %w", common.ErrNotFound)
		}
		return nil, err
	}
	if reg.Status == model.RegistrationWithdrawn {
		return nil, fmt.Errorf("registration withdrawn: %w", common.ErrForbidden)
	}

	unlock := s.lock("reg:" + reg.ID)
	defer unlock()

	drive, err := s.driveRepo.FindDriveByID(ctx, driveID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.attemptRepo.FindAttemptByRegistrationID(ctx, reg.ID); err == nil {
		return s.applyLazyExpiry(ctx, existing, drive)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	var batch *model.Batch
	if reg.BatchID != nil {
		if batch, err = s.driveRepo.FindBatchByID(ctx, *reg.BatchID); err != nil {
			return nil, err
		}
	}
	if dec := CanAttempt(time.Now(), drive, batch); !dec.Allowed {
		return nil, &common.GateError{Reason: dec.Reason, RetryAfter: int(dec.RetryAfter.Seconds())}
	}

	if len(drive.Sections) == 0 {
		return nil, fmt.Errorf("drive %s has no sections configured: %w", drive.ID, common.ErrInternalServer)
	}

	attempt := &model.Attempt{
		ID:             uuid.NewString(),
		RegistrationID: reg.ID,
		MockDriveID:    drive.ID,
		UserID:         userID,
		Status:         model.AttemptInProgress,
		CurrentSection: drive.Sections[0],
		StartedAt:      time.Now(),
	}

	if err := s.attemptRepo.CreateAttempt(ctx, nil, attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttempt) {
			// Lost the race to another instance: the winner's row is the attempt.
			return s.attemptRepo.FindAttemptByRegistrationID(ctx, reg.ID)
		}
		return nil, err
	}

	slog.Info("attempt started", "attempt_id", attempt.ID, "drive_id", drive.ID, "user_id", userID)
	return attempt, nil
}

// LoadLiveAttempt fetches an attempt and applies the lazy expiry check: an
// overdue attempt is never observed as InProgress by any caller.
func (s *AttemptService) LoadLiveAttempt(ctx context.Context, attemptID string) (*model.Attempt, *model.MockDrive, error) {
	attempt, err := s.attemptRepo.FindAttemptByID(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	drive, err := s.driveRepo.FindDriveByID(ctx, attempt.MockDriveID)
	if err != nil {
		return nil, nil, err
	}
	attempt, err = s.applyLazyExpiry(ctx, attempt, drive)
	if err != nil {
		return nil, nil, err
	}
	return attempt, drive, nil
}

func (s *AttemptService) applyLazyExpiry(ctx context.Context, attempt *model.Attempt, drive *model.MockDrive) (*model.Attempt, error) {
	if !attempt.Overdue(time.Now(), drive.Duration()) {
		return attempt, nil
	}
	if err := s.expire(ctx, attempt, drive); err != nil {
		return nil, err
	}
	return s.attemptRepo.FindAttemptByID(ctx, attempt.ID)
}

// expire performs the timeout auto-submit: terminal Expired status, completion
// stamped at the deadline, result finalized with whatever progress exists.
func (s *AttemptService) expire(ctx context.Context, attempt *model.Attempt, drive *model.MockDrive) error {
	deadline := attempt.Deadline(drive.Duration())
	err := s.attemptRepo.MarkFinished(ctx, nil, attempt.ID, model.AttemptExpired, deadline, true)
	if errors.Is(err, common.ErrAlreadyCompleted) {
		return nil // concurrent complete or sweep beat us; nothing to do
	}
	if err != nil {
		return err
	}

	expired := *attempt
	expired.Status = model.AttemptExpired
	expired.CompletedAt = &deadline
	expired.AutoSubmitted = true

	slog.Info("attempt expired", "attempt_id", attempt.ID, "deadline", deadline)
	if _, err := s.results.Finalize(ctx, &expired, drive); err != nil {
		return fmt.Errorf("finalizing expired attempt %s: %w", attempt.ID, err)
	}
	return nil
}

// AdvanceSection moves currentSection to its configured successor. Transitions
// are monotonic; anything out of order is the client's bug, not a retry case.
func (s *AttemptService) AdvanceSection(ctx context.Context, userID, attemptID string, from, to model.Section) (*model.Attempt, error) {
	unlock := s.lock("attempt:" + attemptID)
	defer unlock()

	attempt, drive, err := s.LoadLiveAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, common.ErrForbidden
	}
	if attempt.Terminal() {
		return nil, fmt.Errorf("attempt is %s: %w", attempt.Status, common.ErrInvalidTransition)
	}

	if from != attempt.CurrentSection {
		return nil, fmt.Errorf("current section is %s, not %s: %w", attempt.CurrentSection, from, common.ErrInvalidTransition)
	}
	successor, err := successorSection(drive, from)
	if err != nil {
		return nil, err
	}
	if to != successor {
		return nil, fmt.Errorf("section after %s is %s, not %s: %w", from, successor, to, common.ErrInvalidTransition)
	}

	// Leaving the machine test requires a submission for every assigned
	// problem. Solving them is not required, attempting them is.
	if from == model.SectionMachineTest {
		summary, err := s.SectionSummary(ctx, attempt)
		if err != nil {
			return nil, err
		}
		if !summary.AttemptedAll() {
			return nil, fmt.Errorf("attempted %d of %d problems: %w", summary.Attempted, summary.Total, common.ErrInvalidTransition)
		}
	}

	if err := s.attemptRepo.UpdateCurrentSection(ctx, nil, attempt.ID, to); err != nil {
		return nil, err
	}
	attempt.CurrentSection = to
	slog.Info("section advanced", "attempt_id", attempt.ID, "from", from, "to", to)
	return attempt, nil
}

// successorSection resolves the next section in the drive's fixed order.
func successorSection(drive *model.MockDrive, from model.Section) (model.Section, error) {
	seq := drive.SectionSequence()
	for i, sec := range seq {
		if sec == from {
			if i+1 >= len(seq) {
				return "", fmt.Errorf("section %s is terminal: %w", from, common.ErrInvalidTransition)
			}
			return seq[i+1], nil
		}
	}
	return "", fmt.Errorf("section %s not part of drive %s: %w", from, drive.ID, common.ErrInvalidTransition)
}

// Complete finishes the attempt and finalizes its result. Repeat calls are
// idempotent and return the already-finalized result.
func (s *AttemptService) Complete(ctx context.Context, userID, attemptID string, force bool) (*model.Result, error) {
	unlock := s.lock("attempt:" + attemptID)
	defer unlock()

	attempt, drive, err := s.LoadLiveAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, common.ErrForbidden
	}
	if attempt.Terminal() {
		return s.resultRepo.FindResultByAttemptID(ctx, attempt.ID)
	}

	if attempt.CurrentSection != model.SectionDone && !force {
		return nil, fmt.Errorf("current section is %s, not %s: %w", attempt.CurrentSection, model.SectionDone, common.ErrInvalidTransition)
	}

	now := time.Now()
	autoSubmitted := force && attempt.CurrentSection != model.SectionDone
	if err := s.attemptRepo.MarkFinished(ctx, nil, attempt.ID, model.AttemptCompleted, now, autoSubmitted); err != nil {
		if errors.Is(err, common.ErrAlreadyCompleted) {
			return s.resultRepo.FindResultByAttemptID(ctx, attempt.ID)
		}
		return nil, err
	}

	attempt.Status = model.AttemptCompleted
	attempt.CompletedAt = &now
	attempt.AutoSubmitted = autoSubmitted

	slog.Info("attempt completed", "attempt_id", attempt.ID, "forced", force)
	return s.results.Finalize(ctx, attempt, drive)
}

// AttemptProgress is the candidate-facing snapshot of where an attempt stands.
type AttemptProgress struct {
	Attempt              *model.Attempt        `json:"attempt"`
	CurrentSection       model.Section         `json:"current_section"`
	MachineTest          *model.SectionSummary `json:"machine_test,omitempty"`
	SectionScores        []model.SectionScore  `json:"section_scores,omitempty"`
	TimeRemainingSeconds int                   `json:"time_remaining_seconds"`
}

func (s *AttemptService) GetProgress(ctx context.Context, userID, attemptID string) (*AttemptProgress, error) {
	attempt, drive, err := s.LoadLiveAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, common.ErrForbidden
	}

	progress := &AttemptProgress{
		Attempt:        attempt,
		CurrentSection: attempt.CurrentSection,
	}

	if remaining := time.Until(attempt.Deadline(drive.Duration())); remaining > 0 && !attempt.Terminal() {
		progress.TimeRemainingSeconds = int(remaining.Seconds())
	}

	if containsSection(drive.Sections, model.SectionMachineTest) {
		summary, err := s.SectionSummary(ctx, attempt)
		if err != nil {
			return nil, err
		}
		progress.MachineTest = &summary
	}

	scores, err := s.resultRepo.GetSectionScores(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	progress.SectionScores = scores
	return progress, nil
}

func containsSection(sections []model.Section, want model.Section) bool {
	for _, s := range sections {
		if s == want {
			return true
		}
	}
	return false
}

// SectionSummary is the ledger digest the state machine gates on: how many
// assigned problems have been attempted, and how many solved.
func (s *AttemptService) SectionSummary(ctx context.Context, attempt *model.Attempt) (model.SectionSummary, error) {
	problems, err := s.problemRepo.ListProblemsByDrive(ctx, attempt.MockDriveID)
	if err != nil {
		return model.SectionSummary{}, err
	}
	attempted, err := s.submissionRepo.AttemptedProblemIDs(ctx, attempt.ID)
	if err != nil {
		return model.SectionSummary{}, err
	}
	solved, err := s.submissionRepo.SolvedProblemIDs(ctx, attempt.ID)
	if err != nil {
		return model.SectionSummary{}, err
	}

	assigned := make(map[string]bool, len(problems))
	for _, p := range problems {
		assigned[p.ID] = true
	}

	summary := model.SectionSummary{Total: len(problems)}
	for _, id := range attempted {
		if assigned[id] {
			summary.Attempted++
		}
	}
	for _, id := range solved {
		if assigned[id] {
			summary.Solved++
		}
	}
	return summary, nil
}

// ExpireOverdue is the housekeeping sweep: it finishes every in-progress
// attempt whose budget has elapsed. The lazy check on read remains the
// authoritative guard; the sweep just keeps the table tidy.
func (s *AttemptService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	overdue, err := s.attemptRepo.ListOverdueAttempts(ctx, time.Now(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range overdue {
		attempt := &overdue[i]
		drive, err := s.driveRepo.FindDriveByID(ctx, attempt.MockDriveID)
		if err != nil {
			slog.Error("expiry sweep: drive lookup failed", "attempt_id", attempt.ID, "err", err)
			continue
		}
		unlock := s.lock("attempt:" + attempt.ID)
		err = s.expire(ctx, attempt, drive)
		unlock()
		if err != nil {
			slog.Error("expiry sweep: expire failed", "attempt_id", attempt.ID, "err", err)
			continue
		}
		expired++
	}
	return expired, nil
}
