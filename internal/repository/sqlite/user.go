package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
)

// UserRepository implements domain.UserRepository using SQLite.
type UserRepository struct {
	q Querier
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO users (tg_user_id, username, timezone, created_at)
		 VALUES (?, ?, ?, ?)`,
		user.TgUserID, user.Username, user.Timezone, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateName
		}
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepository) GetByTgUserID(ctx context.Context, tgUserID int64) (*domain.User, error) {
	return r.getBy(ctx, "tg_user_id", tgUserID)
}

func (r *UserRepository) getBy(ctx context.Context, column string, value int64) (*domain.User, error) {
	user := &domain.User{}
	err := r.q.QueryRowContext(ctx,
		`SELECT id, tg_user_id, username, timezone, created_at
		 FROM users WHERE `+column+` = ?`, value,
	).Scan(&user.ID, &user.TgUserID, &user.Username, &user.Timezone, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user by %s: %w", column, err)
	}
	return user, nil
}

func (r *UserRepository) SetTimezone(ctx context.Context, id int64, tz string) error {
	result, err := r.q.ExecContext(ctx, "UPDATE users SET timezone = ? WHERE id = ?", tz, id)
	if err != nil {
		return fmt.Errorf("update timezone: %w", err)
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
