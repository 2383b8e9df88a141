package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
)

// ReminderRepository implements domain.ReminderRepository using SQLite.
type ReminderRepository struct {
	q Querier
}

const reminderColumns = "id, schedule_id, plant_id, owner_user_id, action, planned_at, status, sent_at"

// Create inserts the reminder. When the (schedule_id, planned_at) pair
// already exists the stored row wins and is loaded back into rem, so
// planning the same occurrence twice is harmless.
func (r *ReminderRepository) Create(ctx context.Context, rem *domain.Reminder) error {
	if rem.Status == "" {
		rem.Status = domain.ReminderPending
	}
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO reminders (schedule_id, plant_id, owner_user_id, action, planned_at, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rem.ScheduleID, rem.PlantID, rem.OwnerUserID, rem.Action, rem.PlannedAt.UTC(), rem.Status,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			existing, getErr := r.getByOccurrence(ctx, rem.ScheduleID, rem.PlannedAt.UTC())
			if getErr != nil {
				return fmt.Errorf("load existing reminder: %w", getErr)
			}
			*rem = *existing
			return nil
		}
		return fmt.Errorf("insert reminder: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get reminder id: %w", err)
	}
	rem.ID = id
	return nil
}

func (r *ReminderRepository) getByOccurrence(ctx context.Context, scheduleID int64, plannedAt time.Time) (*domain.Reminder, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+reminderColumns+" FROM reminders WHERE schedule_id = ? AND planned_at = ?",
		scheduleID, plannedAt)
	return scanReminder(row)
}

func scanReminder(row interface{ Scan(...any) error }) (*domain.Reminder, error) {
	rem := &domain.Reminder{}
	err := row.Scan(&rem.ID, &rem.ScheduleID, &rem.PlantID, &rem.OwnerUserID,
		&rem.Action, &rem.PlannedAt, &rem.Status, &rem.SentAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan reminder: %w", err)
	}
	return rem, nil
}

func (r *ReminderRepository) GetByID(ctx context.Context, id int64) (*domain.Reminder, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+reminderColumns+" FROM reminders WHERE id = ?", id)
	return scanReminder(row)
}

// ListDue returns pending reminders whose planned time has passed.
func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+reminderColumns+" FROM reminders WHERE status = ? AND planned_at <= ? ORDER BY planned_at",
		domain.ReminderPending, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()

	var due []domain.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, *rem)
	}
	return due, rows.Err()
}

// HasPending reports whether a schedule already has an undelivered or
// unanswered occurrence planned.
func (r *ReminderRepository) HasPending(ctx context.Context, scheduleID int64) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reminders WHERE schedule_id = ? AND status IN (?, ?)",
		scheduleID, domain.ReminderPending, domain.ReminderSent,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count pending reminders: %w", err)
	}
	return count > 0, nil
}

func (r *ReminderRepository) SetStatus(ctx context.Context, id int64, status domain.ReminderStatus, at time.Time) error {
	var result sql.Result
	var err error
	if status == domain.ReminderSent {
		result, err = r.q.ExecContext(ctx,
			"UPDATE reminders SET status = ?, sent_at = ? WHERE id = ?", status, at.UTC(), id)
	} else {
		result, err = r.q.ExecContext(ctx,
			"UPDATE reminders SET status = ? WHERE id = ?", status, id)
	}
	if err != nil {
		return fmt.Errorf("update reminder status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
