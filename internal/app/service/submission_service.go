package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"campusdrive/internal/app/executor"
	"campusdrive/internal/common"
	"campusdrive/internal/domain/model"
	"campusdrive/internal/domain/repository"

	"github.com/google/uuid"
)

// SubmissionService runs the submit pipeline: validate the attempt and
// problem, execute the code against the hidden test set, and record the
// normalized verdict in the append-only ledger.
type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	attempts       *AttemptService
	exec           executor.Client
}

func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	problemRepo repository.ProblemRepository,
	attempts *AttemptService,
	exec executor.Client,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: submissionRepo,
		problemRepo:    problemRepo,
		attempts:       attempts,
		exec:           exec,
	}
}

type SubmitRequest struct {
	LanguageID int     `json:"language_id" validate:"required"`
	SourceCode string  `json:"source_code" validate:"required"`
	Stdin      *string `json:"stdin,omitempty"`
}

type SubmitResponse struct {
	SubmissionID  string        `json:"submission_id"`
	Verdict       model.Verdict `json:"verdict"`
	VerdictDetail string        `json:"verdict_detail,omitempty"`
	Stdout        string        `json:"stdout,omitempty"`
	Stderr        string        `json:"stderr,omitempty"`
	CompileOutput string        `json:"compile_output,omitempty"`
	TimeSec       float64       `json:"time_seconds"`
	MemoryKB      int           `json:"memory_kb"`
	Solved        bool          `json:"solved"`
}

// Submit executes one submission. With stdin present it is a custom run
// against that input only; otherwise the code runs against the problem's
// hidden test set and the worst verdict wins.
func (s *SubmissionService) Submit(ctx context.Context, userID, attemptID, problemID string, req SubmitRequest) (*SubmitResponse, error) {
	attempt, _, err := s.attempts.LoadLiveAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, common.ErrForbidden
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, fmt.Errorf("attempt is %s: %w", attempt.Status, common.ErrConflict)
	}
	if attempt.CurrentSection != model.SectionMachineTest {
		return nil, fmt.Errorf("current section is %s: %w", attempt.CurrentSection, common.ErrInvalidTransition)
	}

	problem, err := s.problemRepo.FindProblemByID(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if problem.MockDriveID != attempt.MockDriveID {
		// Problems outside the attempt's assigned set do not exist for it.
		return nil, common.ErrNotFound
	}

	language, err := s.problemRepo.GetLanguageByID(ctx, req.LanguageID)
	if err != nil || !language.IsActive {
		return nil, fmt.Errorf("language %d not available: %w", req.LanguageID, common.ErrBadRequest)
	}

	sub := &model.ProblemSubmission{
		ID:          uuid.NewString(),
		AttemptID:   attempt.ID,
		ProblemID:   problem.ID,
		LanguageID:  language.ID,
		SourceCode:  req.SourceCode,
		IsCustomRun: req.Stdin != nil,
		SubmittedAt: time.Now(),
	}

	var result *executor.Result
	if req.Stdin != nil {
		result, err = s.exec.Execute(ctx, executor.Request{
			LanguageID: language.ID,
			SourceCode: req.SourceCode,
			Stdin:      *req.Stdin,
		})
	} else {
		result, err = s.runTestSet(ctx, language.ID, req.SourceCode, problem.ID)
	}

	if err != nil {
		if errors.Is(err, common.ErrExecutionUnavailable) {
			// Audit the outage in the ledger, then surface the error so the
			// candidate can retry. Never recorded as a wrong answer.
			s.recordOutage(ctx, sub)
		}
		return nil, err
	}

	sub.Verdict = result.Verdict
	sub.VerdictDetail = result.VerdictDetail
	sub.RawStatusID = result.RawStatusID
	sub.TimeSec = result.TimeSec
	sub.MemoryKB = result.MemoryKB
	if result.CompileOutput != "" {
		sub.CompileOutput = &result.CompileOutput
	}
	if result.Stderr != "" {
		sub.Stderr = &result.Stderr
	}

	if err := s.submissionRepo.RecordSubmission(ctx, nil, sub); err != nil {
		return nil, err
	}

	slog.Info("submission recorded",
		"attempt_id", attempt.ID, "problem_id", problem.ID, "verdict", sub.Verdict, "custom_run", sub.IsCustomRun)

	solved := sub.Verdict == model.VerdictAccepted && !sub.IsCustomRun
	if !solved && !sub.IsCustomRun {
		// A later failure never unsolves: report the ledger's view.
		if wasSolved, err := s.submissionRepo.IsProblemSolved(ctx, attempt.ID, problem.ID); err == nil {
			solved = wasSolved
		}
	}

	return &SubmitResponse{
		SubmissionID:  sub.ID,
		Verdict:       sub.Verdict,
		VerdictDetail: sub.VerdictDetail,
		Stdout:        result.Stdout,
		Stderr:        result.Stderr,
		CompileOutput: result.CompileOutput,
		TimeSec:       sub.TimeSec,
		MemoryKB:      sub.MemoryKB,
		Solved:        solved,
	}, nil
}

// runTestSet executes the code against every hidden test case, stopping at
// the first non-accepted outcome. Time is the slowest case, memory the peak.
func (s *SubmissionService) runTestSet(ctx context.Context, languageID int, sourceCode, problemID string) (*executor.Result, error) {
	testCases, err := s.problemRepo.GetTestCasesByProblemID(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if len(testCases) == 0 {
		return nil, fmt.Errorf("problem %s has no test cases: %w", problemID, common.ErrInternalServer)
	}

	aggregate := &executor.Result{Verdict: model.VerdictAccepted}
	for _, tc := range testCases {
		res, err := s.exec.Execute(ctx, executor.Request{
			LanguageID:     languageID,
			SourceCode:     sourceCode,
			Stdin:          tc.Input,
			ExpectedOutput: &tc.ExpectedOutput,
		})
		if err != nil {
			return nil, err
		}

		if res.TimeSec > aggregate.TimeSec {
			aggregate.TimeSec = res.TimeSec
		}
		if res.MemoryKB > aggregate.MemoryKB {
			aggregate.MemoryKB = res.MemoryKB
		}

		if res.Verdict != model.VerdictAccepted {
			res.TimeSec = aggregate.TimeSec
			res.MemoryKB = aggregate.MemoryKB
			return res, nil
		}
		aggregate.Stdout = res.Stdout
		aggregate.RawStatusID = res.RawStatusID
	}
	return aggregate, nil
}

// recordOutage writes the audit row for an execution backend failure.
func (s *SubmissionService) recordOutage(ctx context.Context, sub *model.ProblemSubmission) {
	sub.Verdict = model.VerdictExecutionUnavailable
	if err := s.submissionRepo.RecordSubmission(ctx, nil, sub); err != nil {
		slog.Error("failed to record execution outage", "attempt_id", sub.AttemptID, "err", err)
	}
}

// History returns the candidate's ledger entries for one problem.
func (s *SubmissionService) History(ctx context.Context, userID, attemptID, problemID string, limit, offset int) ([]model.ProblemSubmission, error) {
	attempt, _, err := s.attempts.LoadLiveAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, common.ErrForbidden
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.submissionRepo.ListSubmissionsForProblem(ctx, attempt.ID, problemID, limit, offset)
}
