package domain

import (
	"context"
	"time"
)

// ReminderStatus tracks a reminder through planning, delivery, and the
// user's response.
type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderSent    ReminderStatus = "sent"
	ReminderDone    ReminderStatus = "done"
	ReminderSkipped ReminderStatus = "skipped"
)

// Reminder is one planned occurrence of a schedule. The pair
// (ScheduleID, PlannedAt) is unique so replanning never duplicates an
// occurrence.
type Reminder struct {
	ID          int64
	ScheduleID  int64
	PlantID     int64
	OwnerUserID int64
	Action      ActionType
	PlannedAt   time.Time
	Status      ReminderStatus
	SentAt      *time.Time
}

type ReminderRepository interface {
	// Create inserts the reminder, or returns the existing one when the
	// (schedule, planned time) pair was already recorded.
	Create(ctx context.Context, rem *Reminder) error
	GetByID(ctx context.Context, id int64) (*Reminder, error)
	ListDue(ctx context.Context, now time.Time) ([]Reminder, error)
	HasPending(ctx context.Context, scheduleID int64) (bool, error)
	SetStatus(ctx context.Context, id int64, status ReminderStatus, at time.Time) error
}
