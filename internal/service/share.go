package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
)

// ShareService manages share codes and subscriptions: an owner shares a
// schedule by code, another user redeems the code to receive that
// schedule's reminders.
type ShareService struct {
	store domain.Store
}

// NewShareService creates a new ShareService.
func NewShareService(store domain.Store) *ShareService {
	return &ShareService{store: store}
}

// CreateCode issues a share code for a schedule the user owns. A zero
// ttl means the code never expires. allowComplete controls whether
// subscribers may complete reminders themselves.
func (s *ShareService) CreateCode(ctx context.Context, ownerUserID, scheduleID int64, ttl time.Duration, allowComplete bool, note string) (*domain.ShareLink, error) {
	code, err := generateShareCode()
	if err != nil {
		return nil, err
	}

	link := &domain.ShareLink{
		OwnerUserID:   ownerUserID,
		ScheduleID:    scheduleID,
		Code:          code,
		Note:          note,
		Active:        true,
		AllowComplete: allowComplete,
	}
	if ttl > 0 {
		expires := time.Now().UTC().Add(ttl)
		link.ExpiresAt = &expires
	}

	err = s.store.InTx(ctx, func(store domain.Store) error {
		schedule, err := store.Schedules().GetByID(ctx, scheduleID)
		if err != nil {
			return err
		}
		plant, err := store.Plants().GetByID(ctx, schedule.PlantID)
		if err != nil {
			return err
		}
		if plant.UserID != ownerUserID {
			return domain.ErrUnauthorized
		}
		return store.Shares().Create(ctx, link)
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// Revoke deactivates a share code the user owns. Existing subscriptions
// stay; only new redemptions stop.
func (s *ShareService) Revoke(ctx context.Context, ownerUserID int64, code string) error {
	return s.store.InTx(ctx, func(store domain.Store) error {
		link, err := store.Shares().GetByCode(ctx, code)
		if err != nil {
			return err
		}
		if link.OwnerUserID != ownerUserID {
			return domain.ErrUnauthorized
		}
		return store.Shares().Deactivate(ctx, link.ID)
	})
}

// Subscribe redeems a share code for the given user.
func (s *ShareService) Subscribe(ctx context.Context, subscriberUserID int64, code string) (*domain.Subscription, error) {
	sub := &domain.Subscription{SubscriberUserID: subscriberUserID}
	err := s.store.InTx(ctx, func(store domain.Store) error {
		link, err := store.Shares().GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrShareExpired
			}
			return err
		}
		if !link.Usable(time.Now().UTC()) {
			return domain.ErrShareExpired
		}
		if link.OwnerUserID == subscriberUserID {
			return fmt.Errorf("%w: cannot subscribe to your own schedule", domain.ErrInvalidInput)
		}

		sub.ScheduleID = link.ScheduleID
		sub.CanComplete = link.AllowComplete
		return store.Subscriptions().Create(ctx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ListSubscriptions returns the schedules the user is subscribed to.
func (s *ShareService) ListSubscriptions(ctx context.Context, subscriberUserID int64) ([]domain.Subscription, error) {
	return s.store.Subscriptions().ListBySubscriber(ctx, subscriberUserID)
}

// SetMuted pauses or resumes reminder copies for one of the user's
// subscriptions.
func (s *ShareService) SetMuted(ctx context.Context, subscriberUserID, subscriptionID int64, muted bool) error {
	return s.store.InTx(ctx, func(store domain.Store) error {
		if err := authorizeSubscriber(ctx, store, subscriberUserID, subscriptionID); err != nil {
			return err
		}
		return store.Subscriptions().SetMuted(ctx, subscriptionID, muted)
	})
}

// Unsubscribe removes one of the user's subscriptions.
func (s *ShareService) Unsubscribe(ctx context.Context, subscriberUserID, subscriptionID int64) error {
	return s.store.InTx(ctx, func(store domain.Store) error {
		if err := authorizeSubscriber(ctx, store, subscriberUserID, subscriptionID); err != nil {
			return err
		}
		return store.Subscriptions().Delete(ctx, subscriptionID)
	})
}

func authorizeSubscriber(ctx context.Context, store domain.Store, subscriberUserID, subscriptionID int64) error {
	subs, err := store.Subscriptions().ListBySubscriber(ctx, subscriberUserID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if sub.ID == subscriptionID {
			return nil
		}
	}
	return domain.ErrNotFound
}

// ListCodes returns the share codes the user has issued.
func (s *ShareService) ListCodes(ctx context.Context, ownerUserID int64) ([]domain.ShareLink, error) {
	return s.store.Shares().ListByOwner(ctx, ownerUserID)
}

// generateShareCode returns a random 16-character hex code.
func generateShareCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate share code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
