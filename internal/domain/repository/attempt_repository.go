package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateAttempt signals that the unique constraint on registration_id
// fired: another request already created the attempt. Callers read the
// winner's row back instead of failing.
var ErrDuplicateAttempt = errors.New("attempt already exists for registration")

type AttemptRepository interface {
	CreateAttempt(ctx context.Context, tx *sql.Tx, attempt *model.Attempt) error
	FindAttemptByID(ctx context.Context, id string) (*model.Attempt, error)
	FindAttemptByRegistrationID(ctx context.Context, registrationID string) (*model.Attempt, error)
	UpdateCurrentSection(ctx context.Context, tx *sql.Tx, attemptID string, section model.Section) error
	MarkFinished(ctx context.Context, tx *sql.Tx, attemptID string, status model.AttemptStatus, completedAt time.Time, autoSubmitted bool) error
	ListOverdueAttempts(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error)
}

type pgAttemptRepository struct {
	db *sql.DB
}

func NewPgAttemptRepository(db *sql.DB) AttemptRepository {
	return &pgAttemptRepository{db: db}
}

const attemptColumns = `id, registration_id, mock_drive_id, user_id, status, current_section, started_at, completed_at, auto_submitted, updated_at`

func (r *pgAttemptRepository) CreateAttempt(ctx context.Context, tx *sql.Tx, a *model.Attempt) error {
	query := `INSERT INTO attempts (id, registration_id, mock_drive_id, user_id, status, current_section, started_at, auto_submitted)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	args := []interface{}{a.ID, a.RegistrationID, a.MockDriveID, a.UserID, a.Status, a.CurrentSection, a.StartedAt, a.AutoSubmitted}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique registration_id
			return ErrDuplicateAttempt
		}
		return fmt.Errorf("pgAttemptRepository.CreateAttempt: %w", err)
	}
	return nil
}

func (r *pgAttemptRepository) FindAttemptByID(ctx context.Context, id string) (*model.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE id = $1`
	return scanAttempt(r.db.QueryRowContext(ctx, query, id), "FindAttemptByID")
}

func (r *pgAttemptRepository) FindAttemptByRegistrationID(ctx context.Context, registrationID string) (*model.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE registration_id = $1`
	return scanAttempt(r.db.QueryRowContext(ctx, query, registrationID), "FindAttemptByRegistrationID")
}

func scanAttempt(row *sql.Row, method string) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.RegistrationID, &a.MockDriveID, &a.UserID, &a.Status,
		&a.CurrentSection, &a.StartedAt, &a.CompletedAt, &a.AutoSubmitted, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgAttemptRepository.%s: %w", method, err)
	}
	return a, nil
}

func (r *pgAttemptRepository) UpdateCurrentSection(ctx context.Context, tx *sql.Tx, attemptID string, section model.Section) error {
	query := `UPDATE attempts SET current_section = $1, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $2 AND status = $3`

	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, section, attemptID, model.AttemptInProgress)
	} else {
		res, err = r.db.ExecContext(ctx, query, section, attemptID, model.AttemptInProgress)
	}
	if err != nil {
		return fmt.Errorf("pgAttemptRepository.UpdateCurrentSection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attempt not in progress: %w", common.ErrConflict)
	}
	return nil
}

func (r *pgAttemptRepository) MarkFinished(ctx context.Context, tx *sql.Tx, attemptID string, status model.AttemptStatus, completedAt time.Time, autoSubmitted bool) error {
	// Guarded on InProgress so the expiry sweep and a concurrent complete()
	// cannot both finish the same attempt.
	query := `UPDATE attempts SET status = $1, completed_at = $2, auto_submitted = $3, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $4 AND status = $5`

	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, status, completedAt, autoSubmitted, attemptID, model.AttemptInProgress)
	} else {
		res, err = r.db.ExecContext(ctx, query, status, completedAt, autoSubmitted, attemptID, model.AttemptInProgress)
	}
	if err != nil {
		return fmt.Errorf("pgAttemptRepository.MarkFinished: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrAlreadyCompleted
	}
	return nil
}

func (r *pgAttemptRepository) ListOverdueAttempts(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error) {
	query := `SELECT a.id, a.registration_id, a.mock_drive_id, a.user_id, a.status, a.current_section, a.started_at, a.completed_at, a.auto_submitted, a.updated_at
	          FROM attempts a
	          JOIN mock_drives d ON a.mock_drive_id = d.id
	          WHERE a.status = $1 AND a.started_at + d.duration_minutes * interval '1 minute' < $2
	          ORDER BY a.started_at ASC
	          LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, model.AttemptInProgress, now, limit)
	if err != nil {
		return nil, fmt.Errorf("pgAttemptRepository.ListOverdueAttempts query: %w", err)
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.RegistrationID, &a.MockDriveID, &a.UserID, &a.Status,
			&a.CurrentSection, &a.StartedAt, &a.CompletedAt, &a.AutoSubmitted, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgAttemptRepository.ListOverdueAttempts scan: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgAttemptRepository.ListOverdueAttempts rows.Err: %w", err)
	}
	return attempts, nil
}
