package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/model"
)

type ProblemRepository interface {
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	ListProblemsByDrive(ctx context.Context, driveID string) ([]model.Problem, error)
	GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error)

	GetLanguageByID(ctx context.Context, id int) (*model.Language, error)
	ListLanguages(ctx context.Context) ([]model.Language, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `SELECT id, mock_drive_id, title, statement, score_weight, sort_order, created_at
	          FROM problems WHERE id = $1`

	p := &model.Problem{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.MockDriveID, &p.Title, &p.Statement, &p.ScoreWeight, &p.SortOrder, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepository) ListProblemsByDrive(ctx context.Context, driveID string) ([]model.Problem, error) {
	query := `SELECT id, mock_drive_id, title, statement, score_weight, sort_order, created_at
	          FROM problems WHERE mock_drive_id = $1 ORDER BY sort_order ASC`

	rows, err := r.db.QueryContext(ctx, query, driveID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListProblemsByDrive query: %w", err)
	}
	defer rows.Close()

	var problems []model.Problem
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(&p.ID, &p.MockDriveID, &p.Title, &p.Statement, &p.ScoreWeight, &p.SortOrder, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.ListProblemsByDrive scan: %w", err)
		}
		problems = append(problems, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListProblemsByDrive rows.Err: %w", err)
	}
	return problems, nil
}

func (r *pgProblemRepository) GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error) {
	query := `SELECT id, problem_id, input, expected_output, is_sample, sort_order
	          FROM test_cases WHERE problem_id = $1 ORDER BY sort_order ASC`

	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTestCasesByProblemID query: %w", err)
	}
	defer rows.Close()

	var testCases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Input, &tc.ExpectedOutput, &tc.IsSample, &tc.SortOrder); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetTestCasesByProblemID scan: %w", err)
		}
		testCases = append(testCases, tc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTestCasesByProblemID rows.Err: %w", err)
	}
	return testCases, nil
}

func (r *pgProblemRepository) GetLanguageByID(ctx context.Context, id int) (*model.Language, error) {
	query := `SELECT id, name, slug, is_active, created_at FROM languages WHERE id = $1`

	lang := &model.Language{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&lang.ID, &lang.Name, &lang.Slug, &lang.IsActive, &lang.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.GetLanguageByID: %w", err)
	}
	return lang, nil
}

func (r *pgProblemRepository) ListLanguages(ctx context.Context) ([]model.Language, error) {
	query := `SELECT id, name, slug, is_active, created_at FROM languages WHERE is_active = TRUE ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListLanguages query: %w", err)
	}
	defer rows.Close()

	var languages []model.Language
	for rows.Next() {
		var lang model.Language
		if err := rows.Scan(&lang.ID, &lang.Name, &lang.Slug, &lang.IsActive, &lang.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.ListLanguages scan: %w", err)
		}
		languages = append(languages, lang)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListLanguages rows.Err: %w", err)
	}
	return languages, nil
}
