package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nelrik/waypost/internal/reminder"
)

// InsertReminder persists a new reminder row.
func (s *Store) InsertReminder(ctx context.Context, r *reminder.Reminder) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO reminders (id, user_id, memory_id, due_at, message, recipient, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.UserID, r.MemoryID, r.DueAt, r.Message, r.Recipient, r.Status, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

// GetReminder returns one reminder by id, or nil when absent.
func (s *Store) GetReminder(ctx context.Context, id string) (*reminder.Reminder, error) {
	var r reminder.Reminder
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, memory_id, due_at, message, recipient, status, created_at, updated_at
		FROM reminders
		WHERE id = $1`, id,
	).Scan(&r.ID, &r.UserID, &r.MemoryID, &r.DueAt, &r.Message, &r.Recipient, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return &r, nil
}

// FindDueReminders returns all pending reminders due at or before now,
// earliest first, so delivery order within a tick is deterministic.
func (s *Store) FindDueReminders(ctx context.Context, now time.Time) ([]*reminder.Reminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, memory_id, due_at, message, recipient, status, created_at, updated_at
		FROM reminders
		WHERE status = 'pending' AND due_at <= $1
		ORDER BY due_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("find due reminders: %w", err)
	}
	defer rows.Close()

	var due []*reminder.Reminder
	for rows.Next() {
		var r reminder.Reminder
		if err := rows.Scan(&r.ID, &r.UserID, &r.MemoryID, &r.DueAt, &r.Message, &r.Recipient, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		due = append(due, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find due reminders: %w", err)
	}
	return due, nil
}

// UpdateStatus applies a status transition only when the row currently holds
// from. The guard in the WHERE clause keeps transitions monotonic: a sent or
// cancelled reminder never moves again.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to reminder.Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminders
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("update reminder status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReminderStats aggregates reminder counts, scoped to userID when non-empty.
// now anchors the "due within the current calendar day" window, computed in
// UTC to match the stored instants.
func (s *Store) ReminderStats(ctx context.Context, userID string, now time.Time) (*reminder.Stats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var stats reminder.Stats
	err := s.db.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'sent'),
			count(*) FILTER (WHERE status = 'cancelled'),
			count(*) FILTER (WHERE status = 'pending' AND due_at >= $2 AND due_at < $3)
		FROM reminders
		WHERE ($1 = '' OR user_id = $1)`,
		userID, dayStart, dayEnd,
	).Scan(&stats.Total, &stats.Pending, &stats.Sent, &stats.Cancelled, &stats.UpcomingToday)
	if err != nil {
		return nil, fmt.Errorf("reminder stats: %w", err)
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Sent) / float64(stats.Total)
	}
	return &stats, nil
}
