package service

import (
	"context"
	"fmt"

	"github.com/pkraev/plantbot/internal/domain"
)

// ScheduleService manages recurring care schedules.
type ScheduleService struct {
	store domain.Store
}

// NewScheduleService creates a new ScheduleService.
func NewScheduleService(store domain.Store) *ScheduleService {
	return &ScheduleService{store: store}
}

// AddInterval creates an every-N-days schedule for the named plant.
func (s *ScheduleService) AddInterval(ctx context.Context, userID int64, plantName string, action domain.ActionType, days int, localTime string) (*domain.Schedule, error) {
	if days < 1 || days > 365 {
		return nil, fmt.Errorf("%w: interval must be 1-365 days", domain.ErrInvalidInput)
	}
	return s.create(ctx, userID, plantName, func(sch *domain.Schedule) {
		sch.Type = domain.ScheduleInterval
		sch.IntervalDays = &days
		sch.Action = action
	}, localTime)
}

// AddWeekly creates a schedule on the weekdays selected by mask
// (Monday-first bitmask).
func (s *ScheduleService) AddWeekly(ctx context.Context, userID int64, plantName string, action domain.ActionType, mask int, localTime string) (*domain.Schedule, error) {
	if mask <= 0 || mask > 0x7F {
		return nil, fmt.Errorf("%w: weekly mask out of range", domain.ErrInvalidInput)
	}
	return s.create(ctx, userID, plantName, func(sch *domain.Schedule) {
		sch.Type = domain.ScheduleWeekly
		sch.WeeklyMask = &mask
		sch.Action = action
	}, localTime)
}

func (s *ScheduleService) create(ctx context.Context, userID int64, plantName string, fill func(*domain.Schedule), localTime string) (*domain.Schedule, error) {
	if _, _, err := ParseLocalTime(localTime); err != nil {
		return nil, err
	}

	schedule := &domain.Schedule{LocalTime: localTime, Active: true}
	fill(schedule)
	if _, ok := domain.ParseActionType(string(schedule.Action)); !ok {
		return nil, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, schedule.Action)
	}

	err := s.store.InTx(ctx, func(store domain.Store) error {
		plant, err := store.Plants().GetByName(ctx, userID, plantName)
		if err != nil {
			return err
		}
		schedule.PlantID = plant.ID
		return store.Schedules().Create(ctx, schedule)
	})
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

// ListForUser returns all schedules of a user's plants.
func (s *ScheduleService) ListForUser(ctx context.Context, userID int64) ([]domain.Schedule, error) {
	return s.store.Schedules().ListByUser(ctx, userID)
}

// SetActive pauses or resumes a schedule the user owns.
func (s *ScheduleService) SetActive(ctx context.Context, userID, scheduleID int64, active bool) error {
	return s.store.InTx(ctx, func(store domain.Store) error {
		if err := s.authorizeOwner(ctx, store, userID, scheduleID); err != nil {
			return err
		}
		return store.Schedules().SetActive(ctx, scheduleID, active)
	})
}

// Remove deletes a schedule the user owns.
func (s *ScheduleService) Remove(ctx context.Context, userID, scheduleID int64) error {
	return s.store.InTx(ctx, func(store domain.Store) error {
		if err := s.authorizeOwner(ctx, store, userID, scheduleID); err != nil {
			return err
		}
		return store.Schedules().Delete(ctx, scheduleID)
	})
}

func (s *ScheduleService) authorizeOwner(ctx context.Context, store domain.Store, userID, scheduleID int64) error {
	schedule, err := store.Schedules().GetByID(ctx, scheduleID)
	if err != nil {
		return err
	}
	plant, err := store.Plants().GetByID(ctx, schedule.PlantID)
	if err != nil {
		return err
	}
	if plant.UserID != userID {
		return domain.ErrUnauthorized
	}
	return nil
}
