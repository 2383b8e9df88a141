package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
	"github.com/pkraev/plantbot/internal/transport"
)

// Messenger is the outbound half of the transport, narrowed to what the
// scheduler needs.
type Messenger interface {
	Send(ctx context.Context, msg transport.Message) error
}

// ReminderScheduler plans reminder occurrences from active schedules and
// delivers the ones that have come due. Both passes run on every tick;
// each is idempotent, so a crash between ticks loses nothing.
type ReminderScheduler struct {
	store domain.Store
	out   Messenger
	tick  time.Duration
}

// NewReminderScheduler creates a new ReminderScheduler.
func NewReminderScheduler(store domain.Store, out Messenger, tick time.Duration) *ReminderScheduler {
	return &ReminderScheduler{store: store, out: out, tick: tick}
}

// Run ticks until ctx is canceled. The first pass runs immediately so a
// restart does not wait a full tick to catch up.
func (s *ReminderScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.Tick(ctx, time.Now().UTC())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick runs one plan pass and one deliver pass.
func (s *ReminderScheduler) Tick(ctx context.Context, now time.Time) {
	if err := s.plan(ctx, now); err != nil {
		slog.Error("reminder planning failed", "error", err)
	}
	if err := s.deliver(ctx, now); err != nil {
		slog.Error("reminder delivery failed", "error", err)
	}
}

// plan ensures every active schedule has its next occurrence recorded.
// A schedule with an unresolved reminder is left alone; the next one is
// planned only after the user answers or the pending row is delivered
// and resolved.
func (s *ReminderScheduler) plan(ctx context.Context, now time.Time) error {
	schedules, err := s.store.Schedules().ListActiveWithOwners(ctx)
	if err != nil {
		return fmt.Errorf("list active schedules: %w", err)
	}

	for _, item := range schedules {
		if err := s.planOne(ctx, item, now); err != nil {
			slog.Warn("planning schedule failed", "schedule_id", item.Schedule.ID, "error", err)
		}
	}
	return nil
}

func (s *ReminderScheduler) planOne(ctx context.Context, item domain.ScheduleWithOwner, now time.Time) error {
	pending, err := s.store.Reminders().HasPending(ctx, item.Schedule.ID)
	if err != nil {
		return err
	}
	if pending {
		return nil
	}

	var lastDone *time.Time
	if last, err := s.store.ActionLogs().LastDone(ctx, item.Schedule.ID); err == nil {
		lastDone = &last.DoneAt
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	next, err := NextDue(item.Schedule, lastDone, Location(&item.Owner), now)
	if err != nil {
		return err
	}

	rem := &domain.Reminder{
		ScheduleID:  item.Schedule.ID,
		PlantID:     item.Plant.ID,
		OwnerUserID: item.Owner.ID,
		Action:      item.Schedule.Action,
		PlannedAt:   next,
		Status:      domain.ReminderPending,
	}
	return retryTx(ctx, func() error {
		return s.store.InTx(ctx, func(store domain.Store) error {
			return store.Reminders().Create(ctx, rem)
		})
	})
}

// deliver sends every reminder whose planned time has passed. The owner
// always gets the message; subscribers get a copy unless muted. A
// reminder is marked sent only after the owner's message goes out, so a
// failed send is retried on the next tick.
func (s *ReminderScheduler) deliver(ctx context.Context, now time.Time) error {
	due, err := s.store.Reminders().ListDue(ctx, now)
	if err != nil {
		return fmt.Errorf("list due reminders: %w", err)
	}

	for _, rem := range due {
		if err := s.deliverOne(ctx, rem, now); err != nil {
			slog.Warn("reminder delivery failed", "reminder_id", rem.ID, "error", err)
		}
	}
	return nil
}

func (s *ReminderScheduler) deliverOne(ctx context.Context, rem domain.Reminder, now time.Time) error {
	owner, err := s.store.Users().GetByID(ctx, rem.OwnerUserID)
	if err != nil {
		return err
	}

	plantName := ""
	if plant, err := s.store.Plants().GetByID(ctx, rem.PlantID); err == nil {
		plantName = plant.Name
	}
	var schedule domain.Schedule
	if sch, err := s.store.Schedules().GetByID(ctx, rem.ScheduleID); err == nil {
		schedule = *sch
	} else {
		schedule = domain.Schedule{Action: rem.Action}
	}

	text := "Reminder: " + Summary(schedule, plantName)
	if err := s.out.Send(ctx, transport.Message{
		ChatID:  owner.TgUserID,
		Text:    text,
		Buttons: ReminderButtons(rem.ID),
	}); err != nil {
		return fmt.Errorf("send to owner: %w", err)
	}

	err = retryTx(ctx, func() error {
		return s.store.InTx(ctx, func(store domain.Store) error {
			return store.Reminders().SetStatus(ctx, rem.ID, domain.ReminderSent, now)
		})
	})
	if err != nil {
		return err
	}

	s.notifySubscribers(ctx, rem, text)
	return nil
}

func (s *ReminderScheduler) notifySubscribers(ctx context.Context, rem domain.Reminder, text string) {
	subs, err := s.store.Subscriptions().ListBySchedule(ctx, rem.ScheduleID)
	if err != nil {
		slog.Warn("list subscribers failed", "schedule_id", rem.ScheduleID, "error", err)
		return
	}
	for _, sub := range subs {
		if sub.Muted {
			continue
		}
		subscriber, err := s.store.Users().GetByID(ctx, sub.SubscriberUserID)
		if err != nil {
			continue
		}
		msg := transport.Message{ChatID: subscriber.TgUserID, Text: text}
		if sub.CanComplete {
			msg.Buttons = ReminderButtons(rem.ID)
		}
		if err := s.out.Send(ctx, msg); err != nil {
			slog.Warn("send to subscriber failed", "user_id", subscriber.ID, "error", err)
		}
	}
}

const retryAttempts = 3

// retryTx reruns a unit of work that failed on a retriable session
// condition, backing off briefly between attempts. Other errors return
// immediately.
func retryTx(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = fn(); err == nil || !isRetriable(err) {
			return err
		}
		select {
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		case <-ctx.Done():
			return err
		}
	}
	return err
}

func isRetriable(err error) bool {
	return errors.Is(err, domain.ErrTxConflict) ||
		errors.Is(err, domain.ErrPoolExhausted) ||
		errors.Is(err, domain.ErrConnectionLost)
}

const (
	callbackDonePrefix = "r:done:"
	callbackSkipPrefix = "r:skip:"
)

// ReminderButtons builds the Done/Skip inline keyboard for a reminder.
func ReminderButtons(reminderID int64) [][]transport.Button {
	id := strconv.FormatInt(reminderID, 10)
	return [][]transport.Button{{
		{Text: "Done", CallbackData: callbackDonePrefix + id},
		{Text: "Skip", CallbackData: callbackSkipPrefix + id},
	}}
}

// ParseReminderCallback decodes the callback data produced by
// ReminderButtons.
func ParseReminderCallback(data string) (reminderID int64, status domain.ActionStatus, ok bool) {
	var rest string
	switch {
	case strings.HasPrefix(data, callbackDonePrefix):
		rest, status = strings.TrimPrefix(data, callbackDonePrefix), domain.StatusDone
	case strings.HasPrefix(data, callbackSkipPrefix):
		rest, status = strings.TrimPrefix(data, callbackSkipPrefix), domain.StatusSkipped
	default:
		return 0, "", false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, status, true
}
