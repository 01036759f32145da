package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"campusdrive/internal/app/executor"
	"campusdrive/internal/common"
	"campusdrive/internal/domain/model"
	"campusdrive/internal/domain/repository"
)

// In-memory repository fakes. They mirror the constraints the Postgres
// implementations get from the schema (unique registration per attempt,
// unique result per attempt) so the services see the same failure modes.

type memDriveRepo struct {
	mu      sync.Mutex
	drives  map[string]*model.MockDrive
	batches map[string]*model.Batch
	regs    *memRegistrationRepo
}

func newMemDriveRepo(regs *memRegistrationRepo) *memDriveRepo {
	return &memDriveRepo{
		drives:  map[string]*model.MockDrive{},
		batches: map[string]*model.Batch{},
		regs:    regs,
	}
}

func (r *memDriveRepo) CreateDrive(_ context.Context, _ *sql.Tx, d *model.MockDrive) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.drives[d.ID] = &cp
	return nil
}

func (r *memDriveRepo) FindDriveByID(_ context.Context, id string) (*model.MockDrive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drives[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memDriveRepo) UpdateDriveStatus(_ context.Context, _ *sql.Tx, driveID string, status model.DriveStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.drives[driveID]; ok {
		d.Status = status
	}
	return nil
}

func (r *memDriveRepo) CreateBatch(_ context.Context, _ *sql.Tx, b *model.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.batches[b.ID] = &cp
	return nil
}

func (r *memDriveRepo) FindBatchByID(_ context.Context, id string) (*model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memDriveRepo) CountBatchAssignments(_ context.Context, batchID string) (int, error) {
	r.regs.mu.Lock()
	defer r.regs.mu.Unlock()
	count := 0
	for _, reg := range r.regs.regs {
		if reg.BatchID != nil && *reg.BatchID == batchID && reg.Status != model.RegistrationWithdrawn {
			count++
		}
	}
	return count, nil
}

type memRegistrationRepo struct {
	mu   sync.Mutex
	regs map[string]*model.Registration
}

func newMemRegistrationRepo() *memRegistrationRepo {
	return &memRegistrationRepo{regs: map[string]*model.Registration{}}
}

func (r *memRegistrationRepo) CreateRegistration(_ context.Context, _ *sql.Tx, reg *model.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.regs {
		if existing.UserID == reg.UserID && existing.MockDriveID == reg.MockDriveID {
			return common.ErrConflict
		}
	}
	cp := *reg
	r.regs[reg.ID] = &cp
	return nil
}

func (r *memRegistrationRepo) FindRegistrationByID(_ context.Context, id string) (*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (r *memRegistrationRepo) FindRegistrationByUserAndDrive(_ context.Context, userID, driveID string) (*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.regs {
		if reg.UserID == userID && reg.MockDriveID == driveID {
			cp := *reg
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memRegistrationRepo) UpdateRegistrationStatus(_ context.Context, _ *sql.Tx, regID string, status model.RegistrationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.regs[regID]; ok {
		reg.Status = status
	}
	return nil
}

func (r *memRegistrationRepo) AssignBatch(_ context.Context, _ *sql.Tx, regID, batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.regs[regID]; ok {
		b := batchID
		reg.BatchID = &b
		reg.Status = model.RegistrationBatchAssigned
	}
	return nil
}

type memAttemptRepo struct {
	mu       sync.Mutex
	attempts map[string]*model.Attempt // by id
	byReg    map[string]string         // registration id -> attempt id
	drives   *memDriveRepo
}

func newMemAttemptRepo(drives *memDriveRepo) *memAttemptRepo {
	return &memAttemptRepo{
		attempts: map[string]*model.Attempt{},
		byReg:    map[string]string{},
		drives:   drives,
	}
}

func (r *memAttemptRepo) CreateAttempt(_ context.Context, _ *sql.Tx, a *model.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byReg[a.RegistrationID]; exists {
		return repository.ErrDuplicateAttempt
	}
	cp := *a
	r.attempts[a.ID] = &cp
	r.byReg[a.RegistrationID] = a.ID
	return nil
}

func (r *memAttemptRepo) FindAttemptByID(_ context.Context, id string) (*model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAttemptRepo) FindAttemptByRegistrationID(_ context.Context, registrationID string) (*model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byReg[registrationID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *r.attempts[id]
	return &cp, nil
}

func (r *memAttemptRepo) UpdateCurrentSection(_ context.Context, _ *sql.Tx, attemptID string, section model.Section) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptID]
	if !ok || a.Status != model.AttemptInProgress {
		return common.ErrConflict
	}
	a.CurrentSection = section
	return nil
}

func (r *memAttemptRepo) MarkFinished(_ context.Context, _ *sql.Tx, attemptID string, status model.AttemptStatus, completedAt time.Time, autoSubmitted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptID]
	if !ok {
		return common.ErrNotFound
	}
	if a.Status != model.AttemptInProgress {
		return common.ErrAlreadyCompleted
	}
	a.Status = status
	t := completedAt
	a.CompletedAt = &t
	a.AutoSubmitted = autoSubmitted
	return nil
}

func (r *memAttemptRepo) ListOverdueAttempts(_ context.Context, now time.Time, limit int) ([]model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var overdue []model.Attempt
	for _, a := range r.attempts {
		drive, ok := r.drives.drives[a.MockDriveID]
		if !ok {
			continue
		}
		if a.Overdue(now, drive.Duration()) {
			overdue = append(overdue, *a)
			if len(overdue) >= limit {
				break
			}
		}
	}
	return overdue, nil
}

func (r *memAttemptRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}

// setStartedAt rewinds an attempt's clock for expiry tests.
func (r *memAttemptRepo) setStartedAt(attemptID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attempts[attemptID]; ok {
		a.StartedAt = at
	}
}

type memSubmissionRepo struct {
	mu   sync.Mutex
	subs []model.ProblemSubmission
}

func newMemSubmissionRepo() *memSubmissionRepo {
	return &memSubmissionRepo{}
}

func (r *memSubmissionRepo) RecordSubmission(_ context.Context, _ *sql.Tx, s *model.ProblemSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, *s)
	return nil
}

func (r *memSubmissionRepo) IsProblemSolved(_ context.Context, attemptID, problemID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.AttemptID == attemptID && s.ProblemID == problemID && s.Verdict == model.VerdictAccepted && !s.IsCustomRun {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSubmissionRepo) AttemptedProblemIDs(_ context.Context, attemptID string) ([]string, error) {
	return r.distinctProblemIDs(attemptID, false), nil
}

func (r *memSubmissionRepo) SolvedProblemIDs(_ context.Context, attemptID string) ([]string, error) {
	return r.distinctProblemIDs(attemptID, true), nil
}

func (r *memSubmissionRepo) distinctProblemIDs(attemptID string, solvedOnly bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, s := range r.subs {
		if s.AttemptID != attemptID || s.IsCustomRun || s.Verdict == model.VerdictExecutionUnavailable {
			continue
		}
		if solvedOnly && s.Verdict != model.VerdictAccepted {
			continue
		}
		if !seen[s.ProblemID] {
			seen[s.ProblemID] = true
			ids = append(ids, s.ProblemID)
		}
	}
	return ids
}

func (r *memSubmissionRepo) ListSubmissionsForProblem(_ context.Context, attemptID, problemID string, limit, offset int) ([]model.ProblemSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ProblemSubmission
	for _, s := range r.subs {
		if s.AttemptID == attemptID && s.ProblemID == problemID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSubmissionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

type memProblemRepo struct {
	mu        sync.Mutex
	problems  map[string]*model.Problem
	testCases map[string][]model.TestCase
	languages map[int]*model.Language
}

func newMemProblemRepo() *memProblemRepo {
	return &memProblemRepo{
		problems:  map[string]*model.Problem{},
		testCases: map[string][]model.TestCase{},
		languages: map[int]*model.Language{},
	}
}

func (r *memProblemRepo) FindProblemByID(_ context.Context, id string) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProblemRepo) ListProblemsByDrive(_ context.Context, driveID string) ([]model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Problem
	for _, p := range r.problems {
		if p.MockDriveID == driveID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memProblemRepo) GetTestCasesByProblemID(_ context.Context, problemID string) ([]model.TestCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.TestCase(nil), r.testCases[problemID]...), nil
}

func (r *memProblemRepo) GetLanguageByID(_ context.Context, id int) (*model.Language, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lang, ok := r.languages[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *lang
	return &cp, nil
}

func (r *memProblemRepo) ListLanguages(_ context.Context) ([]model.Language, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Language
	for _, lang := range r.languages {
		if lang.IsActive {
			out = append(out, *lang)
		}
	}
	return out, nil
}

type memResultRepo struct {
	mu        sync.Mutex
	results   map[string]*model.Result       // by attempt id
	scores    map[string]*model.SectionScore // attempt id + "|" + section
	scoreKeys []string
}

func newMemResultRepo() *memResultRepo {
	return &memResultRepo{
		results: map[string]*model.Result{},
		scores:  map[string]*model.SectionScore{},
	}
}

func (r *memResultRepo) CreateResult(_ context.Context, _ *sql.Tx, res *model.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.results[res.AttemptID]; exists {
		return common.ErrConflict
	}
	cp := *res
	r.results[res.AttemptID] = &cp
	return nil
}

func (r *memResultRepo) FindResultByAttemptID(_ context.Context, attemptID string) (*model.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[attemptID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *res
	for _, key := range r.scoreKeys {
		if s := r.scores[key]; s.AttemptID == attemptID {
			cp.Sections = append(cp.Sections, *s)
		}
	}
	return &cp, nil
}

func (r *memResultRepo) ListResultsByDrive(_ context.Context, _ *sql.Tx, driveID string) ([]model.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Result
	for _, res := range r.results {
		if res.MockDriveID == driveID {
			out = append(out, *res)
		}
	}
	// percentage descending, as the pg implementation orders
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Percentage > out[i].Percentage {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *memResultRepo) UpdateRanking(_ context.Context, _ *sql.Tx, resultID string, rank int, percentile float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.results {
		if res.ID == resultID {
			rk, pct := rank, percentile
			res.Rank = &rk
			res.Percentile = &pct
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *memResultRepo) UpsertSectionScore(_ context.Context, _ *sql.Tx, s *model.SectionScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := s.AttemptID + "|" + string(s.Section)
	if _, exists := r.scores[key]; !exists {
		r.scoreKeys = append(r.scoreKeys, key)
	}
	cp := *s
	r.scores[key] = &cp
	return nil
}

func (r *memResultRepo) GetSectionScores(_ context.Context, attemptID string) ([]model.SectionScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SectionScore
	for _, key := range r.scoreKeys {
		if s := r.scores[key]; s.AttemptID == attemptID {
			out = append(out, *s)
		}
	}
	return out, nil
}

// noopLocker satisfies DriveLocker without Redis. Test flows are already
// serialized, so mutual exclusion is not under test here.
type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// fakeExecutor scripts the execution backend.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []executor.Request
	run   func(executor.Request) (*executor.Result, error)
}

func (f *fakeExecutor) Execute(_ context.Context, req executor.Request) (*executor.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.run(req)
}

func acceptedResult() *executor.Result {
	return &executor.Result{Verdict: model.VerdictAccepted, RawStatusID: 3, TimeSec: 0.05, MemoryKB: 1024}
}
