package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"codesift.app/codesift/core/db"
	"codesift.app/codesift/internal/model"
)

type analysisRunStore struct {
	db *db.DB
}

func NewAnalysisRunStore(database *db.DB) AnalysisRunStore {
	return &analysisRunStore{db: database}
}

func (s *analysisRunStore) Create(ctx context.Context, run *model.AnalysisRun) error {
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO analysis_runs (id, repo_path, commit_hash, analysis_type, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.RepoPath, run.CommitHash, run.AnalysisType, run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("inserting analysis run: %w", err)
	}
	return nil
}

func (s *analysisRunStore) Finish(ctx context.Context, run *model.AnalysisRun) error {
	tag, err := s.db.Pool().Exec(ctx, `
		UPDATE analysis_runs
		SET status = $2, files_analyzed = $3, issue_count = $4,
		    message_id = $5, error = $6, finished_at = $7
		WHERE id = $1`,
		run.ID, run.Status, run.FilesAnalyzed, run.IssueCount,
		run.MessageID, run.Error, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("finishing analysis run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *analysisRunStore) GetByID(ctx context.Context, id int64) (*model.AnalysisRun, error) {
	row := s.db.Pool().QueryRow(ctx, `
		SELECT id, repo_path, commit_hash, analysis_type, status,
		       files_analyzed, issue_count, message_id, error, started_at, finished_at
		FROM analysis_runs
		WHERE id = $1`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting analysis run: %w", err)
	}
	return run, nil
}

func (s *analysisRunStore) ListRecent(ctx context.Context, limit int32) ([]model.AnalysisRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Pool().Query(ctx, `
		SELECT id, repo_path, commit_hash, analysis_type, status,
		       files_analyzed, issue_count, message_id, error, started_at, finished_at
		FROM analysis_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []model.AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning analysis run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*model.AnalysisRun, error) {
	var run model.AnalysisRun
	err := row.Scan(
		&run.ID,
		&run.RepoPath,
		&run.CommitHash,
		&run.AnalysisType,
		&run.Status,
		&run.FilesAnalyzed,
		&run.IssueCount,
		&run.MessageID,
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
