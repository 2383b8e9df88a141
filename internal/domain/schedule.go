package domain

import (
	"context"
	"time"
)

// ActionType is the kind of care action a schedule reminds about.
type ActionType string

const (
	ActionWatering    ActionType = "watering"
	ActionFertilizing ActionType = "fertilizing"
	ActionRepotting   ActionType = "repotting"
	ActionCustom      ActionType = "custom"
)

// ActionTypes lists all known action types.
func ActionTypes() []ActionType {
	return []ActionType{ActionWatering, ActionFertilizing, ActionRepotting, ActionCustom}
}

// ParseActionType maps a string to an ActionType.
func ParseActionType(s string) (ActionType, bool) {
	for _, a := range ActionTypes() {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// ScheduleType selects the recurrence rule of a schedule.
type ScheduleType string

const (
	ScheduleInterval ScheduleType = "interval" // every N days
	ScheduleWeekly   ScheduleType = "weekly"   // on weekdays selected by a bitmask
)

// Schedule is a recurring care task for a plant. LocalTime is the
// wall-clock time of day ("15:04") in the owner's timezone. Exactly one
// of IntervalDays or WeeklyMask is set, depending on Type. WeeklyMask
// bit 0 is Monday, bit 6 is Sunday.
type Schedule struct {
	ID           int64
	PlantID      int64
	Action       ActionType
	Type         ScheduleType
	IntervalDays *int
	WeeklyMask   *int
	LocalTime    string
	Active       bool
	CustomTitle  *string
	CreatedAt    time.Time
}

// ScheduleWithOwner joins a schedule with its plant and owning user,
// which the scheduler needs to resolve timezones and chat targets.
type ScheduleWithOwner struct {
	Schedule Schedule
	Plant    Plant
	Owner    User
}

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *Schedule) error
	GetByID(ctx context.Context, id int64) (*Schedule, error)
	ListByPlant(ctx context.Context, plantID int64) ([]Schedule, error)
	ListByUser(ctx context.Context, userID int64) ([]Schedule, error)
	ListActiveWithOwners(ctx context.Context) ([]ScheduleWithOwner, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}
