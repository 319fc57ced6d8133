package store

import (
	"context"
	"database/sql"
	"fmt"

	"trendsight/internal/domain"
)

type TrendStore struct {
	db *sql.DB
}

func NewTrendStore(db *sql.DB) *TrendStore {
	return &TrendStore{db: db}
}

// CreateForRun persists one trend and its opportunities under runID.
func (s *TrendStore) CreateForRun(ctx context.Context, runID string, t *domain.TrendRecord) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO trends (run_id, name, category, growth_percent, content_gap, audience, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, t.Name, t.Category, t.GrowthPercent, t.ContentGap, t.Audience, t.Notes)
	if err != nil {
		return 0, fmt.Errorf("failed to create trend: %w", err)
	}

	trendID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	for _, opp := range t.Opportunities {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO opportunities (trend_id, business_model, revenue_range, effort)
			VALUES (?, ?, ?, ?)
		`, trendID, opp.BusinessModel, opp.RevenueRange, opp.Effort)
		if err != nil {
			return 0, fmt.Errorf("failed to create opportunity: %w", err)
		}
	}

	return trendID, nil
}

// ListByRun returns the trends of one run in insertion order, opportunities
// included.
func (s *TrendStore) ListByRun(ctx context.Context, runID string) ([]*domain.TrendRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, growth_percent, content_gap, audience, notes
		FROM trends WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trends: %w", err)
	}
	defer rows.Close()

	var trends []*domain.TrendRecord
	var ids []int64
	for rows.Next() {
		var id int64
		t := &domain.TrendRecord{}
		if err := rows.Scan(&id, &t.Name, &t.Category, &t.GrowthPercent, &t.ContentGap, &t.Audience, &t.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan trend: %w", err)
		}
		trends = append(trends, t)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trends: %w", err)
	}

	for i, id := range ids {
		opps, err := s.listOpportunities(ctx, id)
		if err != nil {
			return nil, err
		}
		trends[i].Opportunities = opps
	}
	return trends, nil
}

func (s *TrendStore) listOpportunities(ctx context.Context, trendID int64) ([]domain.OpportunityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT business_model, revenue_range, effort
		FROM opportunities WHERE trend_id = ? ORDER BY id ASC
	`, trendID)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.OpportunityRecord
	for rows.Next() {
		var opp domain.OpportunityRecord
		if err := rows.Scan(&opp.BusinessModel, &opp.RevenueRange, &opp.Effort); err != nil {
			return nil, fmt.Errorf("failed to scan opportunity: %w", err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating opportunities: %w", err)
	}
	return opps, nil
}
