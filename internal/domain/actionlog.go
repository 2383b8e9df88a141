package domain

import (
	"context"
	"time"
)

// ActionStatus records whether a care action was done or skipped.
type ActionStatus string

const (
	StatusDone    ActionStatus = "done"
	StatusSkipped ActionStatus = "skipped"
)

// ActionSource records whether an action came from a schedule reminder
// or was logged manually.
type ActionSource string

const (
	SourceSchedule ActionSource = "schedule"
	SourceManual   ActionSource = "manual"
)

// ActionLog is one entry of care history. It outlives the plant and the
// schedule it refers to: PlantName snapshots the name at logging time so
// history stays readable after deletions.
type ActionLog struct {
	ID         int64
	UserID     int64
	PlantID    *int64
	ScheduleID *int64
	Action     ActionType
	Status     ActionStatus
	Source     ActionSource
	DoneAt     time.Time
	PlantName  string
	Note       string
}

type ActionLogRepository interface {
	Create(ctx context.Context, log *ActionLog) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]ActionLog, error)
	LastDone(ctx context.Context, scheduleID int64) (*ActionLog, error)
}
