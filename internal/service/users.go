package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
)

// UserService resolves telegram accounts to bot users.
type UserService struct {
	store     domain.Store
	defaultTZ string
}

// NewUserService creates a new UserService.
func NewUserService(store domain.Store, defaultTZ string) *UserService {
	return &UserService{store: store, defaultTZ: defaultTZ}
}

// EnsureUser returns the user for a telegram account, creating it on
// first contact.
func (s *UserService) EnsureUser(ctx context.Context, tgUserID int64, username string) (*domain.User, error) {
	user, err := s.store.Users().GetByTgUserID(ctx, tgUserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	user = &domain.User{TgUserID: tgUserID, Username: username, Timezone: s.defaultTZ}
	err = s.store.InTx(ctx, func(store domain.Store) error {
		return store.Users().Create(ctx, user)
	})
	if errors.Is(err, domain.ErrDuplicateName) {
		// Two concurrent first messages; the other one won.
		return s.store.Users().GetByTgUserID(ctx, tgUserID)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SetTimezone validates tz as an IANA zone name and stores it.
func (s *UserService) SetTimezone(ctx context.Context, userID int64, tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", domain.ErrInvalidInput, tz)
	}
	return s.store.InTx(ctx, func(store domain.Store) error {
		return store.Users().SetTimezone(ctx, userID, tz)
	})
}

// Location loads the user's timezone, falling back to UTC for corrupt
// values so scheduling never stalls on one bad row.
func Location(user *domain.User) *time.Location {
	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
