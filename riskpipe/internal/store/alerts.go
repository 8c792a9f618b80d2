package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vigialab/vigia/dbopen"
)

// ErrAlertSuppressed is returned by CreateAlert when an alert with the same
// (type, discriminator) fired within its cooldown window, or when a
// concurrent run won the cooldown-bucket insert race. Callers treat it as
// an expected condition, not a failure.
var ErrAlertSuppressed = errors.New("store: alert suppressed by cooldown")

// CreateAlert inserts an alert if no alert with the same
// (alert_type, discriminator) exists inside the cooldown window.
//
// Two layers of protection:
//  1. a durable recent-alert query covers the normal sequential case;
//  2. the UNIQUE(alert_type, discriminator, cooldown_bucket) index covers
//     two overlapping pipeline runs racing past the query simultaneously.
//
// Alert creation is the only non-idempotent write in the platform, which
// is why both checks consult durable state rather than per-run caches.
func (s *Store) CreateAlert(ctx context.Context, a *Alert, cooldown time.Duration) error {
	if a.AlertID == "" {
		a.AlertID = "alr_" + s.newID()
	}
	now := time.Now().UnixMilli()
	if a.Timestamp == 0 {
		a.Timestamp = now
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}
	if a.DataJSON == "" {
		a.DataJSON = "{}"
	}
	if a.DeliveryStatus == "" {
		a.DeliveryStatus = "pending"
	}
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	a.CooldownBucket = a.Timestamp / cooldown.Milliseconds()

	last, err := s.LastAlert(ctx, a.AlertType, a.Discriminator)
	if err != nil {
		return err
	}
	if last != nil && a.Timestamp-last.Timestamp < cooldown.Milliseconds() {
		return ErrAlertSuppressed
	}

	_, err = dbopen.Exec(ctx, s.DB, `
		INSERT INTO alerts (
			alert_id, timestamp, alert_type, discriminator, cooldown_bucket,
			severity, title, message, data_json, delivery_status, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.AlertID, a.Timestamp, a.AlertType, a.Discriminator, a.CooldownBucket,
		a.Severity, a.Title, a.Message, a.DataJSON, a.DeliveryStatus, a.CreatedAt,
	)
	if dbopen.IsUniqueViolation(err) {
		return ErrAlertSuppressed
	}
	return err
}

const selectAlert = `SELECT alert_id, timestamp, alert_type, discriminator, cooldown_bucket,
	severity, title, message, data_json, delivery_status, delivered_at, created_at
	FROM alerts`

func scanAlert(scan func(...any) error) (*Alert, error) {
	a := &Alert{}
	err := scan(&a.AlertID, &a.Timestamp, &a.AlertType, &a.Discriminator, &a.CooldownBucket,
		&a.Severity, &a.Title, &a.Message, &a.DataJSON, &a.DeliveryStatus, &a.DeliveredAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// LastAlert returns the most recent alert for (alertType, discriminator),
// or nil if none exists.
func (s *Store) LastAlert(ctx context.Context, alertType, discriminator string) (*Alert, error) {
	row := s.DB.QueryRowContext(ctx,
		selectAlert+` WHERE alert_type = ? AND discriminator = ? ORDER BY timestamp DESC LIMIT 1`,
		alertType, discriminator)
	a, err := scanAlert(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// ListAlerts returns alerts newest first, paginated.
func (s *Store) ListAlerts(ctx context.Context, limit, offset int) ([]*Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		selectAlert+` ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Alert
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkAlertDelivered records delivery by the external alert channel.
func (s *Store) MarkAlertDelivered(ctx context.Context, alertID string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE alerts SET delivery_status = 'delivered', delivered_at = ? WHERE alert_id = ?`,
		time.Now().UnixMilli(), alertID)
	return err
}
