package service

import (
	"context"
	"testing"
	"time"

	"campusdrive/internal/app/executor"
	"campusdrive/internal/common"
	"campusdrive/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startMachineTest gets user-1's attempt into the machine-test section.
func startMachineTest(t *testing.T, env *testEnv) *model.Attempt {
	t.Helper()
	ctx := context.Background()

	attempt, err := env.attemptSvc.Start(ctx, "user-1", env.drive.ID)
	require.NoError(t, err)
	attempt, err = env.attemptSvc.AdvanceSection(ctx, "user-1", attempt.ID, model.SectionAptitude, model.SectionMachineTest)
	require.NoError(t, err)
	return attempt
}

func newSubmissionService(env *testEnv, exec *fakeExecutor) *SubmissionService {
	return NewSubmissionService(env.subs, env.problems, env.attemptSvc, exec)
}

func TestSubmitAccepted(t *testing.T) {
	env := newTestEnv(t)
	attempt := startMachineTest(t, env)
	exec := &fakeExecutor{run: func(executor.Request) (*executor.Result, error) {
		return acceptedResult(), nil
	}}
	svc := newSubmissionService(env, exec)

	resp, err := svc.Submit(context.Background(), "user-1", attempt.ID, "p1", SubmitRequest{
		LanguageID: 63,
		SourceCode: "print(3)",
	})
	require.NoError(t, err)

	assert.Equal(t, model.VerdictAccepted, resp.Verdict)
	assert.True(t, resp.Solved)
	assert.NotEmpty(t, resp.SubmissionID)
	assert.Len(t, exec.calls, 1, "one hidden test case, one execution")
	assert.Equal(t, "1 2", exec.calls[0].Stdin)
	require.NotNil(t, exec.calls[0].ExpectedOutput)
	assert.Equal(t, "3", *exec.calls[0].ExpectedOutput)
}

func TestSubmitLedgerIsAppendOnly(t *testing.T) {
	env := newTestEnv(t)
	attempt := startMachineTest(t, env)
	verdicts := []model.Verdict{model.VerdictAccepted, model.VerdictWrongAnswer}
	i := 0
	exec := &fakeExecutor{run: func(executor.Request) (*executor.Result, error) {
		v := verdicts[i]
		i++
		return &executor.Result{Verdict: v, RawStatusID: 3}, nil
	}}
	svc := newSubmissionService(env, exec)
	ctx := context.Background()

	req := SubmitRequest{LanguageID: 63, SourceCode: "print(3)"}
	first, err := svc.Submit(ctx, "user-1", attempt.ID, "p1", req)
	require.NoError(t, err)
	second, err := svc.Submit(ctx, "user-1", attempt.ID, "p1", req)
	require.NoError(t, err)

	assert.NotEqual(t, first.SubmissionID, second.SubmissionID)
	assert.Equal(t, 2, env.subs.count(), "identical submissions are distinct ledger rows")

	// The failed retry does not unsolve the problem.
	assert.Equal(t, model.VerdictWrongAnswer, second.Verdict)
	assert.True(t, second.Solved)
}

func TestSubmitStopsAtFirstFailingCase(t *testing.T) {
	env := newTestEnv(t)
	env.problems.testCases["p1"] = []model.TestCase{
		{ID: "tc1", ProblemID: "p1", Input: "1 2", ExpectedOutput: "3"},
		{ID: "tc2", ProblemID: "p1", Input: "5 5", ExpectedOutput: "10"},
		{ID: "tc3", ProblemID: "p1", Input: "0 0", ExpectedOutput: "0"},
	}
	attempt := startMachineTest(t, env)

	exec := &fakeExecutor{run: func(req executor.Request) (*executor.Result, error) {
		if req.Stdin == "5 5" {
			return &executor.Result{Verdict: model.VerdictWrongAnswer, RawStatusID: 4, TimeSec: 0.2}, nil
		}
		return acceptedResult(), nil
	}}
	svc := newSubmissionService(env, exec)

	resp, err := svc.Submit(context.Background(), "user-1", attempt.ID, "p1", SubmitRequest{
		LanguageID: 63,
		SourceCode: "print(3)",
	})
	require.NoError(t, err)

	assert.Equal(t, model.VerdictWrongAnswer, resp.Verdict)
	assert.False(t, resp.Solved)
	assert.Len(t, exec.calls, 2, "the third case is never run")
	assert.Equal(t, 0.2, resp.TimeSec, "slowest case wins")
}

func TestSubmitCustomRunDoesNotSolve(t *testing.T) {
	env := newTestEnv(t)
	attempt := startMachineTest(t, env)
	exec := &fakeExecutor{run: func(req executor.Request) (*executor.Result, error) {
		res := acceptedResult()
		res.Stdout = "42"
		return res, nil
	}}
	svc := newSubmissionService(env, exec)
	ctx := context.Background()

	stdin := "custom input"
	resp, err := svc.Submit(ctx, "user-1", attempt.ID, "p1", SubmitRequest{
		LanguageID: 63,
		SourceCode: "print(42)",
		Stdin:      &stdin,
	})
	require.NoError(t, err)

	assert.Equal(t, model.VerdictAccepted, resp.Verdict)
	assert.False(t, resp.Solved, "a custom run never counts as solving")
	assert.Equal(t, "42", resp.Stdout)
	require.Len(t, exec.calls, 1)
	assert.Equal(t, stdin, exec.calls[0].Stdin)
	assert.Nil(t, exec.calls[0].ExpectedOutput, "custom runs are not judged against expected output")

	solved, err := env.subs.IsProblemSolved(ctx, attempt.ID, "p1")
	require.NoError(t, err)
	assert.False(t, solved)

	summary, err := env.attemptSvc.SectionSummary(ctx, attempt)
	require.NoError(t, err)
	assert.Zero(t, summary.Attempted, "custom runs do not count as attempting either")
}

func TestSubmitBackendOutage(t *testing.T) {
	env := newTestEnv(t)
	attempt := startMachineTest(t, env)
	exec := &fakeExecutor{run: func(executor.Request) (*executor.Result, error) {
		return nil, common.ErrExecutionUnavailable
	}}
	svc := newSubmissionService(env, exec)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "user-1", attempt.ID, "p1", SubmitRequest{LanguageID: 63, SourceCode: "print(3)"})
	require.ErrorIs(t, err, common.ErrExecutionUnavailable)

	// The outage leaves an audit row, never a wrong answer.
	require.Equal(t, 1, env.subs.count())
	env.subs.mu.Lock()
	row := env.subs.subs[0]
	env.subs.mu.Unlock()
	assert.Equal(t, model.VerdictExecutionUnavailable, row.Verdict)

	solved, err := env.subs.IsProblemSolved(ctx, attempt.ID, "p1")
	require.NoError(t, err)
	assert.False(t, solved)
}

func TestSubmitOutsideMachineTestSection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	attempt, err := env.attemptSvc.Start(ctx, "user-1", env.drive.ID)
	require.NoError(t, err)

	exec := &fakeExecutor{run: func(executor.Request) (*executor.Result, error) {
		return acceptedResult(), nil
	}}
	svc := newSubmissionService(env, exec)

	_, err = svc.Submit(ctx, "user-1", attempt.ID, "p1", SubmitRequest{LanguageID: 63, SourceCode: "x"})
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
	assert.Empty(t, exec.calls, "nothing executes outside the coding section")
}

func TestSubmitForeignProblem(t *testing.T) {
	env := newTestEnv(t)
	attempt := startMachineTest(t, env)
	env.problems.problems["other"] = &model.Problem{ID: "other", MockDriveID: "drive-2", ScoreWeight: 1}

	svc := newSubmissionService(env, &fakeExecutor{run: func(executor.Request) (*executor.Result, error) {
		return acceptedResult(), nil
	}})

	_, err := svc.Submit(context.Background(), "user-1", attempt.ID, "other", SubmitRequest{LanguageID: 63, SourceCode: "x"})
	assert.ErrorIs(t, err, common.ErrNotFound, "problems from another drive do not exist for this attempt")
}

func TestSubmitInactiveLanguage(t *testing.T) {
	env := newTestEnv(t)
	attempt := startMachineTest(t, env)
	svc := newSubmissionService(env, &fakeExecutor{run: func(executor.Request) (*executor.Result, error) {
		return acceptedResult(), nil
	}})

	_, err := svc.Submit(context.Background(), "user-1", attempt.ID, "p1", SubmitRequest{LanguageID: 99, SourceCode: "x"})
	assert.ErrorIs(t, err, common.ErrBadRequest)

	_, err = svc.Submit(context.Background(), "user-1", attempt.ID, "p1", SubmitRequest{LanguageID: 1234, SourceCode: "x"})
	assert.ErrorIs(t, err, common.ErrBadRequest)
}

func TestSubmitExpiredAttempt(t *testing.T) {
	env := newTestEnv(t)
	attempt := startMachineTest(t, env)
	env.attempts.setStartedAt(attempt.ID, attempt.StartedAt.Add(-time.Hour))

	svc := newSubmissionService(env, &fakeExecutor{run: func(executor.Request) (*executor.Result, error) {
		return acceptedResult(), nil
	}})

	_, err := svc.Submit(context.Background(), "user-1", attempt.ID, "p1", SubmitRequest{LanguageID: 63, SourceCode: "x"})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)
	attempt := startMachineTest(t, env)
	exec := &fakeExecutor{run: func(executor.Request) (*executor.Result, error) {
		return acceptedResult(), nil
	}}
	svc := newSubmissionService(env, exec)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "user-1", attempt.ID, "p1", SubmitRequest{LanguageID: 63, SourceCode: "a"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "user-1", attempt.ID, "p1", SubmitRequest{LanguageID: 63, SourceCode: "b"})
	require.NoError(t, err)

	history, err := svc.History(ctx, "user-1", attempt.ID, "p1", 20, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = svc.History(ctx, "user-2", attempt.ID, "p1", 20, 0)
	assert.ErrorIs(t, err, common.ErrForbidden)
}
