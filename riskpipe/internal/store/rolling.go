package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// ReplaceRollingMetrics fully replaces the row for (date, window_days).
func (s *Store) ReplaceRollingMetrics(ctx context.Context, rm *RollingMetrics) error {
	if rm.ComputedAt == 0 {
		rm.ComputedAt = time.Now().UnixMilli()
	}
	means, _ := json.Marshal(rm.CategoryMeans)
	_, err := s.DB.ExecContext(ctx, `
		INSERT OR REPLACE INTO rolling_metrics (
			date, window_days, mean_score, stddev_score,
			mean_event_count, stddev_event_count, category_means, computed_at
		) VALUES (?,?,?,?,?,?,?,?)`,
		rm.Date, rm.WindowDays, rm.MeanScore, rm.StddevScore,
		rm.MeanEventCount, rm.StddevEventCount, string(means), rm.ComputedAt,
	)
	return err
}

// GetRollingMetrics returns the row for (date, windowDays), or nil.
func (s *Store) GetRollingMetrics(ctx context.Context, date string, windowDays int) (*RollingMetrics, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT date, window_days, mean_score, stddev_score,
			mean_event_count, stddev_event_count, category_means, computed_at
		FROM rolling_metrics WHERE date = ? AND window_days = ?`,
		date, windowDays)

	rm := &RollingMetrics{}
	var means string
	err := row.Scan(&rm.Date, &rm.WindowDays, &rm.MeanScore, &rm.StddevScore,
		&rm.MeanEventCount, &rm.StddevEventCount, &means, &rm.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(means), &rm.CategoryMeans)
	return rm, nil
}

// ListRollingMetrics returns all windows for a date.
func (s *Store) ListRollingMetrics(ctx context.Context, date string) ([]*RollingMetrics, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT date, window_days, mean_score, stddev_score,
			mean_event_count, stddev_event_count, category_means, computed_at
		FROM rolling_metrics WHERE date = ? ORDER BY window_days ASC`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RollingMetrics
	for rows.Next() {
		rm := &RollingMetrics{}
		var means string
		if err := rows.Scan(&rm.Date, &rm.WindowDays, &rm.MeanScore, &rm.StddevScore,
			&rm.MeanEventCount, &rm.StddevEventCount, &means, &rm.ComputedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(means), &rm.CategoryMeans)
		out = append(out, rm)
	}
	return out, rows.Err()
}
