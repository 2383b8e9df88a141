package domain

import (
	"context"
	"time"
)

// User is a bot user identified by their Telegram account.
// Timezone is an IANA zone name and drives all local-time scheduling.
type User struct {
	ID        int64
	TgUserID  int64
	Username  string
	Timezone  string
	CreatedAt time.Time
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByTgUserID(ctx context.Context, tgUserID int64) (*User, error)
	SetTimezone(ctx context.Context, id int64, tz string) error
}
