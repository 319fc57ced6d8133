package store

import (
	"context"
	"database/sql"
	"fmt"

	"trendsight/internal/domain"
)

type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) Create(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, backend, model, screenshots, skipped, trends, dropped, report_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Backend, run.Model, run.Screenshots, run.Skipped, run.Trends, run.Dropped, run.ReportPath)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *RunStore) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	run := &domain.Run{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, backend, model, screenshots, skipped, trends, dropped, report_path, created_at
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Backend, &run.Model, &run.Screenshots, &run.Skipped,
		&run.Trends, &run.Dropped, &run.ReportPath, &run.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]*domain.Run, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, backend, model, screenshots, skipped, trends, dropped, report_path, created_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run := &domain.Run{}
		if err := rows.Scan(&run.ID, &run.Backend, &run.Model, &run.Screenshots, &run.Skipped,
			&run.Trends, &run.Dropped, &run.ReportPath, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}
