package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
)

// CareService records care actions: manual logs and reminder responses.
// Every entry point writes the action log and any reminder state change
// in a single transaction scope, so history and reminder state never
// drift apart.
type CareService struct {
	store domain.Store
}

// NewCareService creates a new CareService.
func NewCareService(store domain.Store) *CareService {
	return &CareService{store: store}
}

// LogManual records an action the user performed outside any reminder.
func (s *CareService) LogManual(ctx context.Context, userID int64, plantName string, action domain.ActionType, note string) (*domain.ActionLog, error) {
	if _, ok := domain.ParseActionType(string(action)); !ok {
		return nil, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, action)
	}

	log := &domain.ActionLog{
		UserID: userID,
		Action: action,
		Status: domain.StatusDone,
		Source: domain.SourceManual,
		DoneAt: time.Now().UTC(),
		Note:   note,
	}
	err := s.store.InTx(ctx, func(store domain.Store) error {
		plant, err := store.Plants().GetByName(ctx, userID, plantName)
		if err != nil {
			return err
		}
		log.PlantID = &plant.ID
		log.PlantName = plant.Name
		return store.ActionLogs().Create(ctx, log)
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}

// CompleteReminder resolves a delivered reminder as done or skipped.
// The acting user must own the schedule or hold a subscription with
// can_complete. The action log entry is attributed to the actor.
func (s *CareService) CompleteReminder(ctx context.Context, actorUserID, reminderID int64, status domain.ActionStatus) (*domain.Reminder, error) {
	if status != domain.StatusDone && status != domain.StatusSkipped {
		return nil, fmt.Errorf("%w: bad completion status %q", domain.ErrInvalidInput, status)
	}

	var reminder *domain.Reminder
	err := s.store.InTx(ctx, func(store domain.Store) error {
		var err error
		reminder, err = store.Reminders().GetByID(ctx, reminderID)
		if err != nil {
			return err
		}
		if reminder.Status == domain.ReminderDone || reminder.Status == domain.ReminderSkipped {
			// Someone answered first; nothing left to do.
			return nil
		}

		if reminder.OwnerUserID != actorUserID {
			sub, err := store.Subscriptions().Get(ctx, reminder.ScheduleID, actorUserID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.ErrUnauthorized
				}
				return err
			}
			if !sub.CanComplete {
				return domain.ErrUnauthorized
			}
		}

		reminderStatus := domain.ReminderDone
		if status == domain.StatusSkipped {
			reminderStatus = domain.ReminderSkipped
		}
		now := time.Now().UTC()
		if err := store.Reminders().SetStatus(ctx, reminder.ID, reminderStatus, now); err != nil {
			return err
		}
		reminder.Status = reminderStatus

		plantName := ""
		if plant, err := store.Plants().GetByID(ctx, reminder.PlantID); err == nil {
			plantName = plant.Name
		}

		return store.ActionLogs().Create(ctx, &domain.ActionLog{
			UserID:     actorUserID,
			PlantID:    &reminder.PlantID,
			ScheduleID: &reminder.ScheduleID,
			Action:     reminder.Action,
			Status:     status,
			Source:     domain.SourceSchedule,
			DoneAt:     now,
			PlantName:  plantName,
		})
	})
	if err != nil {
		return nil, err
	}
	return reminder, nil
}

// History returns the user's most recent care log entries.
func (s *CareService) History(ctx context.Context, userID int64, limit int) ([]domain.ActionLog, error) {
	return s.store.ActionLogs().ListByUser(ctx, userID, limit)
}
