package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// ReplaceDailySummary fully replaces the row for sum.Date. Replace, not
// increment: re-running aggregation for a day must not double-count.
func (s *Store) ReplaceDailySummary(ctx context.Context, sum *DailySummary) error {
	if sum.ComputedAt == 0 {
		sum.ComputedAt = time.Now().UnixMilli()
	}
	scores, _ := json.Marshal(sum.CategoryScores)
	_, err := s.DB.ExecContext(ctx, `
		INSERT OR REPLACE INTO daily_summaries (
			date, risk_score, risk_score_change, risk_trend, category_scores,
			p1_count, p2_count, p3_count, p4_count, event_count,
			velocity_7d, velocity_30d, computed_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sum.Date, sum.RiskScore, sum.RiskScoreChange, sum.RiskTrend, string(scores),
		sum.P1Count, sum.P2Count, sum.P3Count, sum.P4Count, sum.EventCount,
		sum.Velocity7d, sum.Velocity30d, sum.ComputedAt,
	)
	return err
}

const selectSummary = `SELECT date, risk_score, risk_score_change, risk_trend, category_scores,
	p1_count, p2_count, p3_count, p4_count, event_count,
	velocity_7d, velocity_30d, computed_at
	FROM daily_summaries`

func scanSummary(scan func(...any) error) (*DailySummary, error) {
	sum := &DailySummary{}
	var scores string
	err := scan(
		&sum.Date, &sum.RiskScore, &sum.RiskScoreChange, &sum.RiskTrend, &scores,
		&sum.P1Count, &sum.P2Count, &sum.P3Count, &sum.P4Count, &sum.EventCount,
		&sum.Velocity7d, &sum.Velocity30d, &sum.ComputedAt,
	)
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(scores), &sum.CategoryScores)
	return sum, nil
}

// GetDailySummary returns the summary for a date, or nil if absent.
func (s *Store) GetDailySummary(ctx context.Context, date string) (*DailySummary, error) {
	row := s.DB.QueryRowContext(ctx, selectSummary+` WHERE date = ?`, date)
	sum, err := scanSummary(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sum, err
}

// LatestDailySummary returns the most recent summary, or nil when the
// store is empty.
func (s *Store) LatestDailySummary(ctx context.Context) (*DailySummary, error) {
	row := s.DB.QueryRowContext(ctx, selectSummary+` ORDER BY date DESC LIMIT 1`)
	sum, err := scanSummary(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sum, err
}

// ListDailySummaries returns summaries with from <= date <= to, ascending.
// Empty from/to bounds are unbounded.
func (s *Store) ListDailySummaries(ctx context.Context, from, to string) ([]*DailySummary, error) {
	q := selectSummary + ` WHERE 1=1`
	args := make([]any, 0, 2)
	if from != "" {
		q += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		q += ` AND date <= ?`
		args = append(args, to)
	}
	q += ` ORDER BY date ASC`

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DailySummary
	for rows.Next() {
		sum, err := scanSummary(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
