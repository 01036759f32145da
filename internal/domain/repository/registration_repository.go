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

type RegistrationRepository interface {
	CreateRegistration(ctx context.Context, tx *sql.Tx, reg *model.Registration) error
	FindRegistrationByID(ctx context.Context, id string) (*model.Registration, error)
	FindRegistrationByUserAndDrive(ctx context.Context, userID, driveID string) (*model.Registration, error)
	UpdateRegistrationStatus(ctx context.Context, tx *sql.Tx, regID string, status model.RegistrationStatus) error
	AssignBatch(ctx context.Context, tx *sql.Tx, regID, batchID string) error
}

type pgRegistrationRepository struct {
	db *sql.DB
}

func NewPgRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &pgRegistrationRepository{db: db}
}

func (r *pgRegistrationRepository) CreateRegistration(ctx context.Context, tx *sql.Tx, reg *model.Registration) error {
	query := `INSERT INTO registrations (id, user_id, mock_drive_id, batch_id, status, registered_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, reg.ID, reg.UserID, reg.MockDriveID, reg.BatchID, reg.Status, reg.RegisteredAt)
	} else {
		_, err = r.db.ExecContext(ctx, query, reg.ID, reg.UserID, reg.MockDriveID, reg.BatchID, reg.Status, reg.RegisteredAt)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique (user_id, mock_drive_id)
			return fmt.Errorf("already registered for this drive: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgRegistrationRepository.CreateRegistration: %w", err)
	}
	return nil
}

func (r *pgRegistrationRepository) FindRegistrationByID(ctx context.Context, id string) (*model.Registration, error) {
	query := `SELECT id, user_id, mock_drive_id, batch_id, status, registered_at, updated_at
	          FROM registrations WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "FindRegistrationByID")
}

func (r *pgRegistrationRepository) FindRegistrationByUserAndDrive(ctx context.Context, userID, driveID string) (*model.Registration, error) {
	query := `SELECT id, user_id, mock_drive_id, batch_id, status, registered_at, updated_at
	          FROM registrations WHERE user_id = $1 AND mock_drive_id = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID, driveID), "FindRegistrationByUserAndDrive")
}

func (r *pgRegistrationRepository) scanOne(row *sql.Row, method string) (*model.Registration, error) {
	reg := &model.Registration{}
	err := row.Scan(&reg.ID, &reg.UserID, &reg.MockDriveID, &reg.BatchID, &reg.Status, &reg.RegisteredAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgRegistrationRepository.%s: %w", method, err)
	}
	return reg, nil
}

func (r *pgRegistrationRepository) UpdateRegistrationStatus(ctx context.Context, tx *sql.Tx, regID string, status model.RegistrationStatus) error {
	query := `UPDATE registrations SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, status, regID)
	} else {
		_, err = r.db.ExecContext(ctx, query, status, regID)
	}
	if err != nil {
		return fmt.Errorf("pgRegistrationRepository.UpdateRegistrationStatus: %w", err)
	}
	return nil
}

func (r *pgRegistrationRepository) AssignBatch(ctx context.Context, tx *sql.Tx, regID, batchID string) error {
	query := `UPDATE registrations SET batch_id = $1, status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, batchID, model.RegistrationBatchAssigned, regID)
	} else {
		_, err = r.db.ExecContext(ctx, query, batchID, model.RegistrationBatchAssigned, regID)
	}
	if err != nil {
		return fmt.Errorf("pgRegistrationRepository.AssignBatch: %w", err)
	}
	return nil
}
