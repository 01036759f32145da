package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/model"
	"campusdrive/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// DriveService manages drive lifecycle, registrations and batch scheduling.
// Identity and content authoring live elsewhere; this service only needs the
// ids they hand over.
type DriveService struct {
	driveRepo   repository.DriveRepository
	regRepo     repository.RegistrationRepository
	attemptRepo repository.AttemptRepository
}

func NewDriveService(
	driveRepo repository.DriveRepository,
	regRepo repository.RegistrationRepository,
	attemptRepo repository.AttemptRepository,
) *DriveService {
	return &DriveService{driveRepo: driveRepo, regRepo: regRepo, attemptRepo: attemptRepo}
}

type CreateDriveRequest struct {
	InstitutionID string    `json:"institution_id" validate:"required"`
	Title         string    `json:"title" validate:"required,min=3,max=200"`
	RegOpen       time.Time `json:"reg_open" validate:"required"`
	RegClose      time.Time `json:"reg_close" validate:"required"`
	DriveStart    time.Time `json:"drive_start" validate:"required"`
	DriveEnd      time.Time `json:"drive_end" validate:"required"`
	DurationMin   int       `json:"duration_minutes" validate:"required,min=1"`
	Sections      []string  `json:"sections" validate:"required,min=1"`
}

func (s *DriveService) CreateDrive(ctx context.Context, req CreateDriveRequest) (*model.MockDrive, error) {
	if !req.RegOpen.Before(req.RegClose) || !req.DriveStart.Before(req.DriveEnd) {
		return nil, fmt.Errorf("window start must precede its end: %w", common.ErrValidation)
	}
	if req.RegClose.After(req.DriveEnd) {
		return nil, fmt.Errorf("registration must close before the drive ends: %w", common.ErrValidation)
	}

	sections := make([]model.Section, 0, len(req.Sections))
	seen := map[model.Section]bool{}
	for _, raw := range req.Sections {
		sec := model.Section(raw)
		if !model.ValidSection(sec) {
			return nil, fmt.Errorf("unknown section %q: %w", raw, common.ErrValidation)
		}
		if seen[sec] {
			return nil, fmt.Errorf("duplicate section %q: %w", raw, common.ErrValidation)
		}
		seen[sec] = true
		sections = append(sections, sec)
	}

	drive := &model.MockDrive{
		ID:            uuid.NewString(),
		InstitutionID: req.InstitutionID,
		Title:         req.Title,
		Slug:          slug.Make(req.Title),
		Status:        model.DriveDraft,
		RegOpen:       req.RegOpen,
		RegClose:      req.RegClose,
		DriveStart:    req.DriveStart,
		DriveEnd:      req.DriveEnd,
		DurationMin:   req.DurationMin,
		Sections:      sections,
	}

	if err := s.driveRepo.CreateDrive(ctx, nil, drive); err != nil {
		return nil, err
	}
	slog.Info("drive created", "drive_id", drive.ID, "slug", drive.Slug)
	return drive, nil
}

func (s *DriveService) GetDrive(ctx context.Context, driveID string) (*model.MockDrive, error) {
	return s.driveRepo.FindDriveByID(ctx, driveID)
}

// OpenRegistration moves a draft drive to RegistrationOpen.
func (s *DriveService) OpenRegistration(ctx context.Context, driveID string) (*model.MockDrive, error) {
	drive, err := s.driveRepo.FindDriveByID(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if drive.Status != model.DriveDraft {
		return nil, fmt.Errorf("drive is %s, not %s: %w", drive.Status, model.DriveDraft, common.ErrConflict)
	}
	if err := s.driveRepo.UpdateDriveStatus(ctx, nil, driveID, model.DriveRegistrationOpen); err != nil {
		return nil, err
	}
	drive.Status = model.DriveRegistrationOpen
	return drive, nil
}

// Register creates the (user, drive) registration inside the registration
// window. Duplicate registrations conflict.
func (s *DriveService) Register(ctx context.Context, userID, driveID string) (*model.Registration, error) {
	drive, err := s.driveRepo.FindDriveByID(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if drive.Status != model.DriveRegistrationOpen {
		return nil, fmt.Errorf("drive is not open for registration: %w", common.ErrForbidden)
	}

	now := time.Now()
	if now.Before(drive.RegOpen) || now.After(drive.RegClose) {
		return nil, fmt.Errorf("outside registration window: %w", common.ErrForbidden)
	}

	reg := &model.Registration{
		ID:           uuid.NewString(),
		UserID:       userID,
		MockDriveID:  driveID,
		Status:       model.RegistrationRegistered,
		RegisteredAt: now,
	}
	if err := s.regRepo.CreateRegistration(ctx, nil, reg); err != nil {
		return nil, err
	}
	slog.Info("candidate registered", "drive_id", driveID, "user_id", userID)
	return reg, nil
}

// Withdraw marks the registration withdrawn. A registration with an attempt
// cannot be withdrawn: attempts never exist for withdrawn registrations.
func (s *DriveService) Withdraw(ctx context.Context, userID, driveID string) error {
	reg, err := s.regRepo.FindRegistrationByUserAndDrive(ctx, userID, driveID)
	if err != nil {
		return err
	}
	if reg.Status == model.RegistrationWithdrawn {
		return nil
	}

	if _, err := s.attemptRepo.FindAttemptByRegistrationID(ctx, reg.ID); err == nil {
		return fmt.Errorf("attempt already exists: %w", common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	return s.regRepo.UpdateRegistrationStatus(ctx, nil, reg.ID, model.RegistrationWithdrawn)
}

type CreateBatchRequest struct {
	Name       string    `json:"name" validate:"required,min=1,max=100"`
	BatchStart time.Time `json:"batch_start" validate:"required"`
	BatchEnd   time.Time `json:"batch_end" validate:"required"`
	Capacity   int       `json:"capacity" validate:"required,min=1"`
}

func (s *DriveService) CreateBatch(ctx context.Context, driveID string, req CreateBatchRequest) (*model.Batch, error) {
	if !req.BatchStart.Before(req.BatchEnd) {
		return nil, fmt.Errorf("batch window start must precede its end: %w", common.ErrValidation)
	}
	drive, err := s.driveRepo.FindDriveByID(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if req.BatchStart.Before(drive.DriveStart) || req.BatchEnd.After(drive.DriveEnd) {
		return nil, fmt.Errorf("batch window must sit inside the drive window: %w", common.ErrValidation)
	}

	batch := &model.Batch{
		ID:          uuid.NewString(),
		MockDriveID: driveID,
		Name:        req.Name,
		BatchStart:  req.BatchStart,
		BatchEnd:    req.BatchEnd,
		Capacity:    req.Capacity,
	}
	if err := s.driveRepo.CreateBatch(ctx, nil, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// AssignBatch places a registration into a batch, respecting capacity.
func (s *DriveService) AssignBatch(ctx context.Context, batchID, registrationID string) (*model.Registration, error) {
	batch, err := s.driveRepo.FindBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	reg, err := s.regRepo.FindRegistrationByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.MockDriveID != batch.MockDriveID {
		return nil, fmt.Errorf("registration belongs to another drive: %w", common.ErrValidation)
	}
	if reg.Status == model.RegistrationWithdrawn {
		return nil, fmt.Errorf("registration withdrawn: %w", common.ErrConflict)
	}

	assigned, err := s.driveRepo.CountBatchAssignments(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if assigned >= batch.Capacity {
		return nil, fmt.Errorf("batch %s is full: %w", batch.Name, common.ErrConflict)
	}

	if err := s.regRepo.AssignBatch(ctx, nil, reg.ID, batchID); err != nil {
		return nil, err
	}
	reg.BatchID = &batchID
	reg.Status = model.RegistrationBatchAssigned
	return reg, nil
}
