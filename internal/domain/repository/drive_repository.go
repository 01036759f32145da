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

type DriveRepository interface {
	CreateDrive(ctx context.Context, tx *sql.Tx, drive *model.MockDrive) error
	FindDriveByID(ctx context.Context, id string) (*model.MockDrive, error)
	UpdateDriveStatus(ctx context.Context, tx *sql.Tx, driveID string, status model.DriveStatus) error

	CreateBatch(ctx context.Context, tx *sql.Tx, batch *model.Batch) error
	FindBatchByID(ctx context.Context, id string) (*model.Batch, error)
	CountBatchAssignments(ctx context.Context, batchID string) (int, error)
}

type pgDriveRepository struct {
	db *sql.DB
}

func NewPgDriveRepository(db *sql.DB) DriveRepository {
	return &pgDriveRepository{db: db}
}

func (r *pgDriveRepository) CreateDrive(ctx context.Context, tx *sql.Tx, d *model.MockDrive) error {
	query := `INSERT INTO mock_drives (id, institution_id, title, slug, status, reg_open, reg_close, drive_start, drive_end, duration_minutes, sections)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	args := []interface{}{d.ID, d.InstitutionID, d.Title, d.Slug, d.Status, d.RegOpen, d.RegClose, d.DriveStart, d.DriveEnd, d.DurationMin, model.EncodeSections(d.Sections)}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique slug
			return fmt.Errorf("drive with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgDriveRepository.CreateDrive: %w", err)
	}
	return nil
}

func (r *pgDriveRepository) FindDriveByID(ctx context.Context, id string) (*model.MockDrive, error) {
	query := `SELECT id, institution_id, title, slug, status, reg_open, reg_close, drive_start, drive_end, duration_minutes, sections, created_at, updated_at
	          FROM mock_drives WHERE id = $1`

	drive := &model.MockDrive{}
	var sections string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&drive.ID, &drive.InstitutionID, &drive.Title, &drive.Slug, &drive.Status,
		&drive.RegOpen, &drive.RegClose, &drive.DriveStart, &drive.DriveEnd,
		&drive.DurationMin, &sections, &drive.CreatedAt, &drive.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgDriveRepository.FindDriveByID: %w", err)
	}
	drive.Sections = model.DecodeSections(sections)
	return drive, nil
}

func (r *pgDriveRepository) UpdateDriveStatus(ctx context.Context, tx *sql.Tx, driveID string, status model.DriveStatus) error {
	query := `UPDATE mock_drives SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, status, driveID)
	} else {
		_, err = r.db.ExecContext(ctx, query, status, driveID)
	}
	if err != nil {
		return fmt.Errorf("pgDriveRepository.UpdateDriveStatus: %w", err)
	}
	return nil
}

func (r *pgDriveRepository) CreateBatch(ctx context.Context, tx *sql.Tx, b *model.Batch) error {
	query := `INSERT INTO batches (id, mock_drive_id, name, batch_start, batch_end, capacity)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, b.ID, b.MockDriveID, b.Name, b.BatchStart, b.BatchEnd, b.Capacity)
	} else {
		_, err = r.db.ExecContext(ctx, query, b.ID, b.MockDriveID, b.Name, b.BatchStart, b.BatchEnd, b.Capacity)
	}
	if err != nil {
		return fmt.Errorf("pgDriveRepository.CreateBatch: %w", err)
	}
	return nil
}

func (r *pgDriveRepository) FindBatchByID(ctx context.Context, id string) (*model.Batch, error) {
	query := `SELECT id, mock_drive_id, name, batch_start, batch_end, capacity, created_at
	          FROM batches WHERE id = $1`

	batch := &model.Batch{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&batch.ID, &batch.MockDriveID, &batch.Name, &batch.BatchStart, &batch.BatchEnd, &batch.Capacity, &batch.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgDriveRepository.FindBatchByID: %w", err)
	}
	return batch, nil
}

func (r *pgDriveRepository) CountBatchAssignments(ctx context.Context, batchID string) (int, error) {
	query := `SELECT COUNT(*) FROM registrations WHERE batch_id = $1 AND status != $2`

	var count int
	if err := r.db.QueryRowContext(ctx, query, batchID, model.RegistrationWithdrawn).Scan(&count); err != nil {
		return 0, fmt.Errorf("pgDriveRepository.CountBatchAssignments: %w", err)
	}
	return count, nil
}
