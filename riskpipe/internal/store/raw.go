package store

import (
	"context"
	"time"
)

// InsertRawRecord adds a payload to the inbox. External fetchers call this;
// the pipeline only reads and marks records.
func (s *Store) InsertRawRecord(ctx context.Context, r *RawRecord) error {
	if r.ID == "" {
		r.ID = "raw_" + s.newID()
	}
	if r.ReceivedAt == 0 {
		r.ReceivedAt = time.Now().UnixMilli()
	}
	if r.Status == "" {
		r.Status = RawPending
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO raw_records (id, source, source_event_id, payload_json, received_at, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Source, r.SourceEventID, r.PayloadJSON, r.ReceivedAt, r.Status, r.Error,
	)
	return err
}

// PendingRawRecords returns up to limit unprocessed inbox records, oldest
// first so a backlog drains in arrival order.
func (s *Store) PendingRawRecords(ctx context.Context, limit int) ([]*RawRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, source, source_event_id, payload_json, received_at, status, error, processed_at
		FROM raw_records WHERE status = ? ORDER BY received_at ASC LIMIT ?`,
		RawPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RawRecord
	for rows.Next() {
		r := &RawRecord{}
		if err := rows.Scan(&r.ID, &r.Source, &r.SourceEventID, &r.PayloadJSON,
			&r.ReceivedAt, &r.Status, &r.Error, &r.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkRawRecordDone marks an inbox record as processed.
func (s *Store) MarkRawRecordDone(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE raw_records SET status = ?, processed_at = ? WHERE id = ?`,
		RawDone, time.Now().UnixMilli(), id)
	return err
}

// MarkRawRecordFailed marks an inbox record as failed with its error.
// Failed records stay in the table for audit; they are not retried.
func (s *Store) MarkRawRecordFailed(ctx context.Context, id, msg string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE raw_records SET status = ?, error = ?, processed_at = ? WHERE id = ?`,
		RawFailed, msg, time.Now().UnixMilli(), id)
	return err
}
