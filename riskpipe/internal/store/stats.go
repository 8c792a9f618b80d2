package store

import "context"

// Stats returns aggregate counters for the risk store.
func (s *Store) Stats(ctx context.Context) (*PlatformStats, error) {
	var stats PlatformStats
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM raw_records WHERE status = ?`, RawPending).Scan(&stats.RawPending)
	if err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&stats.Events); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM scored_events`).Scan(&stats.ScoredEvents); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_summaries`).Scan(&stats.Summaries); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&stats.Alerts); err != nil {
		return nil, err
	}
	return &stats, nil
}
