package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ResultRepository interface {
	CreateResult(ctx context.Context, tx *sql.Tx, result *model.Result) error
	FindResultByAttemptID(ctx context.Context, attemptID string) (*model.Result, error)
	// ListResultsByDrive returns the drive cohort ordered by percentage
	// descending, ties broken by finalize time.
	ListResultsByDrive(ctx context.Context, tx *sql.Tx, driveID string) ([]model.Result, error)
	UpdateRanking(ctx context.Context, tx *sql.Tx, resultID string, rank int, percentile float64) error

	UpsertSectionScore(ctx context.Context, tx *sql.Tx, score *model.SectionScore) error
	GetSectionScores(ctx context.Context, attemptID string) ([]model.SectionScore, error)
}

type pgResultRepository struct {
	db *sql.DB
}

func NewPgResultRepository(db *sql.DB) ResultRepository {
	return &pgResultRepository{db: db}
}

func (r *pgResultRepository) CreateResult(ctx context.Context, tx *sql.Tx, res *model.Result) error {
	query := `INSERT INTO results (id, attempt_id, mock_drive_id, user_id, percentage, auto_submitted, finalized_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	args := []interface{}{res.ID, res.AttemptID, res.MockDriveID, res.UserID, res.Percentage, res.AutoSubmitted, res.FinalizedAt}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique attempt_id
			return fmt.Errorf("result already finalized for attempt: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgResultRepository.CreateResult: %w", err)
	}
	return nil
}

func (r *pgResultRepository) FindResultByAttemptID(ctx context.Context, attemptID string) (*model.Result, error) {
	query := `SELECT id, attempt_id, mock_drive_id, user_id, percentage, rank, percentile, auto_submitted, finalized_at, updated_at
	          FROM results WHERE attempt_id = $1`

	res := &model.Result{}
	err := r.db.QueryRowContext(ctx, query, attemptID).Scan(
		&res.ID, &res.AttemptID, &res.MockDriveID, &res.UserID, &res.Percentage,
		&res.Rank, &res.Percentile, &res.AutoSubmitted, &res.FinalizedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgResultRepository.FindResultByAttemptID: %w", err)
	}

	scores, err := r.GetSectionScores(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	res.Sections = scores
	return res, nil
}

func (r *pgResultRepository) ListResultsByDrive(ctx context.Context, tx *sql.Tx, driveID string) ([]model.Result, error) {
	query := `SELECT id, attempt_id, mock_drive_id, user_id, percentage, rank, percentile, auto_submitted, finalized_at, updated_at
	          FROM results WHERE mock_drive_id = $1
	          ORDER BY percentage DESC, finalized_at ASC`

	var rows *sql.Rows
	var err error
	if tx != nil {
		rows, err = tx.QueryContext(ctx, query, driveID)
	} else {
		rows, err = r.db.QueryContext(ctx, query, driveID)
	}
	if err != nil {
		return nil, fmt.Errorf("pgResultRepository.ListResultsByDrive query: %w", err)
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var res model.Result
		if err := rows.Scan(&res.ID, &res.AttemptID, &res.MockDriveID, &res.UserID, &res.Percentage,
			&res.Rank, &res.Percentile, &res.AutoSubmitted, &res.FinalizedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgResultRepository.ListResultsByDrive scan: %w", err)
		}
		results = append(results, res)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgResultRepository.ListResultsByDrive rows.Err: %w", err)
	}
	return results, nil
}

func (r *pgResultRepository) UpdateRanking(ctx context.Context, tx *sql.Tx, resultID string, rank int, percentile float64) error {
	query := `UPDATE results SET rank = $1, percentile = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, rank, percentile, resultID)
	} else {
		_, err = r.db.ExecContext(ctx, query, rank, percentile, resultID)
	}
	if err != nil {
		return fmt.Errorf("pgResultRepository.UpdateRanking: %w", err)
	}
	return nil
}

func (r *pgResultRepository) UpsertSectionScore(ctx context.Context, tx *sql.Tx, s *model.SectionScore) error {
	query := `INSERT INTO section_scores (attempt_id, section, raw_score, max_score, graded_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (attempt_id, section)
	          DO UPDATE SET raw_score = EXCLUDED.raw_score, max_score = EXCLUDED.max_score, graded_at = EXCLUDED.graded_at`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, s.AttemptID, s.Section, s.RawScore, s.MaxScore, s.GradedAt)
	} else {
		_, err = r.db.ExecContext(ctx, query, s.AttemptID, s.Section, s.RawScore, s.MaxScore, s.GradedAt)
	}
	if err != nil {
		return fmt.Errorf("pgResultRepository.UpsertSectionScore: %w", err)
	}
	return nil
}

func (r *pgResultRepository) GetSectionScores(ctx context.Context, attemptID string) ([]model.SectionScore, error) {
	query := `SELECT attempt_id, section, raw_score, max_score, graded_at
	          FROM section_scores WHERE attempt_id = $1 ORDER BY section ASC`

	rows, err := r.db.QueryContext(ctx, query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("pgResultRepository.GetSectionScores query: %w", err)
	}
	defer rows.Close()

	var scores []model.SectionScore
	for rows.Next() {
		var s model.SectionScore
		if err := rows.Scan(&s.AttemptID, &s.Section, &s.RawScore, &s.MaxScore, &s.GradedAt); err != nil {
			return nil, fmt.Errorf("pgResultRepository.GetSectionScores scan: %w", err)
		}
		scores = append(scores, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgResultRepository.GetSectionScores rows.Err: %w", err)
	}
	return scores, nil
}
