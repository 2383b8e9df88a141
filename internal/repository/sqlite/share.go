package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
)

// ShareLinkRepository implements domain.ShareLinkRepository using SQLite.
type ShareLinkRepository struct {
	q Querier
}

const shareColumns = "id, owner_user_id, schedule_id, code, note, created_at, expires_at, active, allow_complete"

func (r *ShareLinkRepository) Create(ctx context.Context, link *domain.ShareLink) error {
	now := time.Now().UTC()
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO share_links (owner_user_id, schedule_id, code, note, created_at, expires_at, active, allow_complete)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		link.OwnerUserID, link.ScheduleID, link.Code, link.Note, now,
		link.ExpiresAt, link.Active, link.AllowComplete,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateCode
		}
		return fmt.Errorf("insert share link: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get share link id: %w", err)
	}
	link.ID = id
	link.CreatedAt = now
	return nil
}

func (r *ShareLinkRepository) GetByCode(ctx context.Context, code string) (*domain.ShareLink, error) {
	link := &domain.ShareLink{}
	err := r.q.QueryRowContext(ctx,
		"SELECT "+shareColumns+" FROM share_links WHERE code = ?", code,
	).Scan(&link.ID, &link.OwnerUserID, &link.ScheduleID, &link.Code, &link.Note,
		&link.CreatedAt, &link.ExpiresAt, &link.Active, &link.AllowComplete)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query share link by code: %w", err)
	}
	return link, nil
}

func (r *ShareLinkRepository) ListByOwner(ctx context.Context, ownerUserID int64) ([]domain.ShareLink, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+shareColumns+" FROM share_links WHERE owner_user_id = ? ORDER BY created_at DESC",
		ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("list share links: %w", err)
	}
	defer rows.Close()

	var links []domain.ShareLink
	for rows.Next() {
		var l domain.ShareLink
		err := rows.Scan(&l.ID, &l.OwnerUserID, &l.ScheduleID, &l.Code, &l.Note,
			&l.CreatedAt, &l.ExpiresAt, &l.Active, &l.AllowComplete)
		if err != nil {
			return nil, fmt.Errorf("scan share link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *ShareLinkRepository) Deactivate(ctx context.Context, id int64) error {
	result, err := r.q.ExecContext(ctx, "UPDATE share_links SET active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deactivate share link: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SubscriptionRepository implements domain.SubscriptionRepository using SQLite.
type SubscriptionRepository struct {
	q Querier
}

const subscriptionColumns = "id, schedule_id, subscriber_user_id, can_complete, muted, accepted_at"

func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	now := time.Now().UTC()
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO schedule_subscriptions (schedule_id, subscriber_user_id, can_complete, muted, accepted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sub.ScheduleID, sub.SubscriberUserID, sub.CanComplete, sub.Muted, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateName
		}
		return fmt.Errorf("insert subscription: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get subscription id: %w", err)
	}
	sub.ID = id
	sub.AcceptedAt = now
	return nil
}

func (r *SubscriptionRepository) Get(ctx context.Context, scheduleID, subscriberUserID int64) (*domain.Subscription, error) {
	sub := &domain.Subscription{}
	err := r.q.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM schedule_subscriptions WHERE schedule_id = ? AND subscriber_user_id = ?",
		scheduleID, subscriberUserID,
	).Scan(&sub.ID, &sub.ScheduleID, &sub.SubscriberUserID, &sub.CanComplete, &sub.Muted, &sub.AcceptedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	return sub, nil
}

func (r *SubscriptionRepository) ListBySchedule(ctx context.Context, scheduleID int64) ([]domain.Subscription, error) {
	return r.list(ctx,
		"SELECT "+subscriptionColumns+" FROM schedule_subscriptions WHERE schedule_id = ? ORDER BY id", scheduleID)
}

func (r *SubscriptionRepository) ListBySubscriber(ctx context.Context, subscriberUserID int64) ([]domain.Subscription, error) {
	return r.list(ctx,
		"SELECT "+subscriptionColumns+" FROM schedule_subscriptions WHERE subscriber_user_id = ? ORDER BY id", subscriberUserID)
}

func (r *SubscriptionRepository) list(ctx context.Context, query string, args ...any) ([]domain.Subscription, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		if err := rows.Scan(&s.ID, &s.ScheduleID, &s.SubscriberUserID, &s.CanComplete, &s.Muted, &s.AcceptedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *SubscriptionRepository) SetMuted(ctx context.Context, id int64, muted bool) error {
	result, err := r.q.ExecContext(ctx, "UPDATE schedule_subscriptions SET muted = ? WHERE id = ?", muted, id)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SubscriptionRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.q.ExecContext(ctx, "DELETE FROM schedule_subscriptions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
