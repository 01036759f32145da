package repository

import (
	"context"
	"database/sql"
	"fmt"

	"campusdrive/internal/domain/model"
)

// SubmissionRepository is the append-only submission ledger. Rows are written
// once and never updated or deleted.
type SubmissionRepository interface {
	RecordSubmission(ctx context.Context, tx *sql.Tx, sub *model.ProblemSubmission) error
	IsProblemSolved(ctx context.Context, attemptID, problemID string) (bool, error)
	// AttemptedProblemIDs returns the distinct problems with at least one
	// real submission for the attempt. Custom runs and backend-outage audit
	// rows do not count.
	AttemptedProblemIDs(ctx context.Context, attemptID string) ([]string, error)
	SolvedProblemIDs(ctx context.Context, attemptID string) ([]string, error)
	ListSubmissionsForProblem(ctx context.Context, attemptID, problemID string, limit, offset int) ([]model.ProblemSubmission, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) RecordSubmission(ctx context.Context, tx *sql.Tx, s *model.ProblemSubmission) error {
	query := `INSERT INTO problem_submissions
	          (id, attempt_id, problem_id, language_id, source_code, verdict, verdict_detail, raw_status_id, compile_output, stderr, time_seconds, memory_kb, is_custom_run, submitted_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	args := []interface{}{s.ID, s.AttemptID, s.ProblemID, s.LanguageID, s.SourceCode, s.Verdict, s.VerdictDetail,
		s.RawStatusID, s.CompileOutput, s.Stderr, s.TimeSec, s.MemoryKB, s.IsCustomRun, s.SubmittedAt}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.RecordSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) IsProblemSolved(ctx context.Context, attemptID, problemID string) (bool, error) {
	// Any accepted non-custom submission counts; later verdicts cannot unsolve.
	query := `SELECT EXISTS (
	            SELECT 1 FROM problem_submissions
	            WHERE attempt_id = $1 AND problem_id = $2 AND verdict = $3 AND is_custom_run = FALSE
	          )`

	var solved bool
	if err := r.db.QueryRowContext(ctx, query, attemptID, problemID, model.VerdictAccepted).Scan(&solved); err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.IsProblemSolved: %w", err)
	}
	return solved, nil
}

func (r *pgSubmissionRepository) AttemptedProblemIDs(ctx context.Context, attemptID string) ([]string, error) {
	// Outage audit rows are not attempts: the candidate's code never ran.
	query := `SELECT DISTINCT problem_id FROM problem_submissions
	          WHERE attempt_id = $1 AND is_custom_run = FALSE AND verdict != $2`
	return r.queryProblemIDs(ctx, query, "AttemptedProblemIDs", attemptID, model.VerdictExecutionUnavailable)
}

func (r *pgSubmissionRepository) SolvedProblemIDs(ctx context.Context, attemptID string) ([]string, error) {
	query := `SELECT DISTINCT problem_id FROM problem_submissions
	          WHERE attempt_id = $1 AND verdict = $2 AND is_custom_run = FALSE`
	return r.queryProblemIDs(ctx, query, "SolvedProblemIDs", attemptID, model.VerdictAccepted)
}

func (r *pgSubmissionRepository) queryProblemIDs(ctx context.Context, query, method string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.%s query: %w", method, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.%s scan: %w", method, err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.%s rows.Err: %w", method, err)
	}
	return ids, nil
}

func (r *pgSubmissionRepository) ListSubmissionsForProblem(ctx context.Context, attemptID, problemID string, limit, offset int) ([]model.ProblemSubmission, error) {
	query := `SELECT id, attempt_id, problem_id, language_id, source_code, verdict, verdict_detail, raw_status_id, compile_output, stderr, time_seconds, memory_kb, is_custom_run, submitted_at
	          FROM problem_submissions
	          WHERE attempt_id = $1 AND problem_id = $2
	          ORDER BY submitted_at DESC
	          LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, attemptID, problemID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissionsForProblem query: %w", err)
	}
	defer rows.Close()

	var subs []model.ProblemSubmission
	for rows.Next() {
		var s model.ProblemSubmission
		if err := rows.Scan(&s.ID, &s.AttemptID, &s.ProblemID, &s.LanguageID, &s.SourceCode, &s.Verdict, &s.VerdictDetail,
			&s.RawStatusID, &s.CompileOutput, &s.Stderr, &s.TimeSec, &s.MemoryKB, &s.IsCustomRun, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissionsForProblem scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissionsForProblem rows.Err: %w", err)
	}
	return subs, nil
}
