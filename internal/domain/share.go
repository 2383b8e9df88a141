package domain

import (
	"context"
	"time"
)

// ShareLink lets another user subscribe to one schedule by code.
// A link can expire, be revoked, and optionally allow subscribers to
// complete the shared schedule themselves.
type ShareLink struct {
	ID            int64
	OwnerUserID   int64
	ScheduleID    int64
	Code          string
	Note          string
	CreatedAt     time.Time
	ExpiresAt     *time.Time
	Active        bool
	AllowComplete bool
}

// Usable reports whether the link can still be redeemed at the given time.
func (l ShareLink) Usable(now time.Time) bool {
	if !l.Active {
		return false
	}
	return l.ExpiresAt == nil || now.Before(*l.ExpiresAt)
}

// Subscription is an accepted share: a subscriber attached to a schedule.
type Subscription struct {
	ID               int64
	ScheduleID       int64
	SubscriberUserID int64
	CanComplete      bool
	Muted            bool
	AcceptedAt       time.Time
}

type ShareLinkRepository interface {
	Create(ctx context.Context, link *ShareLink) error
	GetByCode(ctx context.Context, code string) (*ShareLink, error)
	ListByOwner(ctx context.Context, ownerUserID int64) ([]ShareLink, error)
	Deactivate(ctx context.Context, id int64) error
}

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, scheduleID, subscriberUserID int64) (*Subscription, error)
	ListBySchedule(ctx context.Context, scheduleID int64) ([]Subscription, error)
	ListBySubscriber(ctx context.Context, subscriberUserID int64) ([]Subscription, error)
	SetMuted(ctx context.Context, id int64, muted bool) error
	Delete(ctx context.Context, id int64) error
}
