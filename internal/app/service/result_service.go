package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/model"
	"campusdrive/internal/domain/repository"

	"github.com/google/uuid"
)

// DriveLocker serializes the per-drive rank recompute across instances. The
// production implementation is the Redis lock; tests plug in a no-op.
type DriveLocker interface {
	Acquire(ctx context.Context, name string) (func(), error)
}

// ResultService aggregates section scores into a composite percentage and
// maintains cohort ranking for each drive.
type ResultService struct {
	resultRepo     repository.ResultRepository
	problemRepo    repository.ProblemRepository
	submissionRepo repository.SubmissionRepository
	attemptRepo    repository.AttemptRepository
	locker         DriveLocker
}

func NewResultService(
	resultRepo repository.ResultRepository,
	problemRepo repository.ProblemRepository,
	submissionRepo repository.SubmissionRepository,
	attemptRepo repository.AttemptRepository,
	locker DriveLocker,
) *ResultService {
	return &ResultService{
		resultRepo:     resultRepo,
		problemRepo:    problemRepo,
		submissionRepo: submissionRepo,
		attemptRepo:    attemptRepo,
		locker:         locker,
	}
}

// Finalize scores a finished attempt and recomputes the drive's ranking.
// Safe to call again for the same attempt: the unique constraint on
// results.attempt_id makes the second call return the first call's row.
func (s *ResultService) Finalize(ctx context.Context, attempt *model.Attempt, drive *model.MockDrive) (*model.Result, error) {
	if !attempt.Terminal() {
		return nil, fmt.Errorf("attempt %s is %s, not finished: %w", attempt.ID, attempt.Status, common.ErrConflict)
	}

	if containsSection(drive.Sections, model.SectionMachineTest) {
		if err := s.scoreMachineTest(ctx, attempt); err != nil {
			return nil, err
		}
	}

	scores, err := s.resultRepo.GetSectionScores(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	result := &model.Result{
		ID:            uuid.NewString(),
		AttemptID:     attempt.ID,
		MockDriveID:   attempt.MockDriveID,
		UserID:        attempt.UserID,
		Percentage:    compositePercentage(scores),
		AutoSubmitted: attempt.AutoSubmitted,
		FinalizedAt:   time.Now(),
	}

	if err := s.resultRepo.CreateResult(ctx, nil, result); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return s.resultRepo.FindResultByAttemptID(ctx, attempt.ID)
		}
		return nil, err
	}

	slog.Info("result finalized", "attempt_id", attempt.ID, "percentage", result.Percentage)

	if err := s.RecomputeDriveRanking(ctx, attempt.MockDriveID); err != nil {
		// The result row exists; ranking catches up on the next finalize.
		slog.Error("rank recompute failed", "drive_id", attempt.MockDriveID, "err", err)
	}

	return s.resultRepo.FindResultByAttemptID(ctx, attempt.ID)
}

// scoreMachineTest derives the coding section score from the submission
// ledger: the weight of every solved problem over the weight of all assigned.
func (s *ResultService) scoreMachineTest(ctx context.Context, attempt *model.Attempt) error {
	problems, err := s.problemRepo.ListProblemsByDrive(ctx, attempt.MockDriveID)
	if err != nil {
		return err
	}
	solvedIDs, err := s.submissionRepo.SolvedProblemIDs(ctx, attempt.ID)
	if err != nil {
		return err
	}

	solved := make(map[string]bool, len(solvedIDs))
	for _, id := range solvedIDs {
		solved[id] = true
	}

	var raw, max float64
	for _, p := range problems {
		max += float64(p.ScoreWeight)
		if solved[p.ID] {
			raw += float64(p.ScoreWeight)
		}
	}

	return s.resultRepo.UpsertSectionScore(ctx, nil, &model.SectionScore{
		AttemptID: attempt.ID,
		Section:   model.SectionMachineTest,
		RawScore:  raw,
		MaxScore:  max,
		GradedAt:  time.Now(),
	})
}

// compositePercentage is sum(raw)/sum(max) scaled to 100, one decimal.
func compositePercentage(scores []model.SectionScore) float64 {
	var raw, max float64
	for _, s := range scores {
		raw += s.RawScore
		max += s.MaxScore
	}
	if max == 0 {
		return 0
	}
	return round1(raw / max * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// RecomputeDriveRanking rewrites rank and percentile for every result in the
// drive. A new finalize shifts everyone's relative standing, so the whole
// cohort is read, recomputed and written back under the per-drive lock; the
// lock is the single-writer discipline that prevents lost updates.
func (s *ResultService) RecomputeDriveRanking(ctx context.Context, driveID string) error {
	release, err := s.locker.Acquire(ctx, driveID)
	if err != nil {
		return err
	}
	defer release()

	results, err := s.resultRepo.ListResultsByDrive(ctx, nil, driveID)
	if err != nil {
		return err
	}
	cohort := len(results)
	for i := range results {
		rank := 1
		for j := range results {
			if results[j].Percentage > results[i].Percentage {
				rank++
			}
		}
		percentile := round1(100 * (1 - float64(rank)/float64(cohort)))
		if err := s.resultRepo.UpdateRanking(ctx, nil, results[i].ID, rank, percentile); err != nil {
			return err
		}
	}

	slog.Info("drive ranking recomputed", "drive_id", driveID, "cohort", cohort)
	return nil
}

// RecordSectionScore stores an externally graded section (aptitude or
// interview). The machine-test score is ledger-derived and cannot be set here.
func (s *ResultService) RecordSectionScore(ctx context.Context, attemptID string, section model.Section, raw, max float64) error {
	if !model.ValidSection(section) || section == model.SectionMachineTest {
		return fmt.Errorf("section %s is not externally gradable: %w", section, common.ErrValidation)
	}
	if max <= 0 || raw < 0 || raw > max {
		return fmt.Errorf("score %v/%v out of range: %w", raw, max, common.ErrValidation)
	}
	if _, err := s.attemptRepo.FindAttemptByID(ctx, attemptID); err != nil {
		return err
	}

	return s.resultRepo.UpsertSectionScore(ctx, nil, &model.SectionScore{
		AttemptID: attemptID,
		Section:   section,
		RawScore:  raw,
		MaxScore:  max,
		GradedAt:  time.Now(),
	})
}

// GetResult returns the finalized result for an attempt, 404 until finalized.
func (s *ResultService) GetResult(ctx context.Context, userID, attemptID string) (*model.Result, error) {
	attempt, err := s.attemptRepo.FindAttemptByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, common.ErrForbidden
	}
	return s.resultRepo.FindResultByAttemptID(ctx, attemptID)
}

// Leaderboard lists the drive cohort in rank order.
func (s *ResultService) Leaderboard(ctx context.Context, driveID string) ([]model.Result, error) {
	return s.resultRepo.ListResultsByDrive(ctx, nil, driveID)
}
