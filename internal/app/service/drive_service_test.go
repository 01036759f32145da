package service

import (
	"context"
	"testing"
	"time"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriveService(env *testEnv) *DriveService {
	return NewDriveService(env.drives, env.regs, env.attempts)
}

func validCreateDriveRequest() CreateDriveRequest {
	now := time.Now()
	return CreateDriveRequest{
		InstitutionID: "inst-1",
		Title:         "Spring Placement Drive",
		RegOpen:       now,
		RegClose:      now.Add(24 * time.Hour),
		DriveStart:    now.Add(24 * time.Hour),
		DriveEnd:      now.Add(30 * time.Hour),
		DurationMin:   90,
		Sections:      []string{"Aptitude", "MachineTest", "Interview"},
	}
}

func TestCreateDrive(t *testing.T) {
	env := newTestEnv(t)
	svc := newDriveService(env)

	drive, err := svc.CreateDrive(context.Background(), validCreateDriveRequest())
	require.NoError(t, err)

	assert.Equal(t, model.DriveDraft, drive.Status)
	assert.Equal(t, "spring-placement-drive", drive.Slug)
	assert.Equal(t,
		[]model.Section{model.SectionAptitude, model.SectionMachineTest, model.SectionInterview},
		drive.Sections)
}

func TestCreateDriveRejectsBadSections(t *testing.T) {
	env := newTestEnv(t)
	svc := newDriveService(env)
	ctx := context.Background()

	req := validCreateDriveRequest()
	req.Sections = []string{"Aptitude", "Karaoke"}
	_, err := svc.CreateDrive(ctx, req)
	assert.ErrorIs(t, err, common.ErrValidation)

	req = validCreateDriveRequest()
	req.Sections = []string{"Aptitude", "Aptitude"}
	_, err = svc.CreateDrive(ctx, req)
	assert.ErrorIs(t, err, common.ErrValidation)

	req = validCreateDriveRequest()
	req.Sections = []string{"Done"}
	_, err = svc.CreateDrive(ctx, req)
	assert.ErrorIs(t, err, common.ErrValidation, "the terminal marker is not a configurable section")
}

func TestCreateDriveRejectsInvertedWindows(t *testing.T) {
	env := newTestEnv(t)
	svc := newDriveService(env)

	req := validCreateDriveRequest()
	req.DriveStart, req.DriveEnd = req.DriveEnd, req.DriveStart
	_, err := svc.CreateDrive(context.Background(), req)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestRegisterLifecycle(t *testing.T) {
	env := newTestEnv(t)
	svc := newDriveService(env)
	ctx := context.Background()

	drive, err := svc.CreateDrive(ctx, validCreateDriveRequest())
	require.NoError(t, err)

	// Registration is closed while the drive is a draft.
	_, err = svc.Register(ctx, "user-9", drive.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = svc.OpenRegistration(ctx, drive.ID)
	require.NoError(t, err)

	reg, err := svc.Register(ctx, "user-9", drive.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationRegistered, reg.Status)

	_, err = svc.Register(ctx, "user-9", drive.ID)
	assert.ErrorIs(t, err, common.ErrConflict, "one registration per user per drive")

	// Reopening an already-open drive conflicts.
	_, err = svc.OpenRegistration(ctx, drive.ID)
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestWithdrawBlockedOnceAttemptExists(t *testing.T) {
	env := newTestEnv(t)
	svc := newDriveService(env)
	ctx := context.Background()

	// user-1 is registered on the seeded open drive; no attempt yet.
	require.NoError(t, svc.Withdraw(ctx, "user-1", env.drive.ID))
	require.NoError(t, svc.Withdraw(ctx, "user-1", env.drive.ID), "withdraw is idempotent")

	reg2 := &model.Registration{ID: "reg-2", UserID: "user-2", MockDriveID: env.drive.ID, Status: model.RegistrationRegistered}
	require.NoError(t, env.regs.CreateRegistration(ctx, nil, reg2))
	_, err := env.attemptSvc.Start(ctx, "user-2", env.drive.ID)
	require.NoError(t, err)

	err = svc.Withdraw(ctx, "user-2", env.drive.ID)
	assert.ErrorIs(t, err, common.ErrConflict, "an attempt pins the registration")
}

func TestBatchCapacity(t *testing.T) {
	env := newTestEnv(t)
	svc := newDriveService(env)
	ctx := context.Background()

	start := env.drive.DriveStart.Add(10 * time.Minute)
	batch, err := svc.CreateBatch(ctx, env.drive.ID, CreateBatchRequest{
		Name:       "Slot A",
		BatchStart: start,
		BatchEnd:   start.Add(time.Hour),
		Capacity:   1,
	})
	require.NoError(t, err)

	reg2 := &model.Registration{ID: "reg-2", UserID: "user-2", MockDriveID: env.drive.ID, Status: model.RegistrationRegistered}
	require.NoError(t, env.regs.CreateRegistration(ctx, nil, reg2))

	assigned, err := svc.AssignBatch(ctx, batch.ID, env.reg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationBatchAssigned, assigned.Status)
	require.NotNil(t, assigned.BatchID)
	assert.Equal(t, batch.ID, *assigned.BatchID)

	_, err = svc.AssignBatch(ctx, batch.ID, reg2.ID)
	assert.ErrorIs(t, err, common.ErrConflict, "full batch rejects further assignment")
}

func TestCreateBatchOutsideDriveWindow(t *testing.T) {
	env := newTestEnv(t)
	svc := newDriveService(env)

	_, err := svc.CreateBatch(context.Background(), env.drive.ID, CreateBatchRequest{
		Name:       "Slot Z",
		BatchStart: env.drive.DriveEnd,
		BatchEnd:   env.drive.DriveEnd.Add(time.Hour),
		Capacity:   10,
	})
	assert.ErrorIs(t, err, common.ErrValidation)
}
