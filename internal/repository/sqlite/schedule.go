package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
)

// ScheduleRepository implements domain.ScheduleRepository using SQLite.
type ScheduleRepository struct {
	q Querier
}

const scheduleColumns = "id, plant_id, action, type, interval_days, weekly_mask, local_time, active, custom_title, created_at"

func (r *ScheduleRepository) Create(ctx context.Context, schedule *domain.Schedule) error {
	now := time.Now().UTC()
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO schedules (plant_id, action, type, interval_days, weekly_mask, local_time, active, custom_title, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.PlantID, schedule.Action, schedule.Type, schedule.IntervalDays,
		schedule.WeeklyMask, schedule.LocalTime, schedule.Active, schedule.CustomTitle, now,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get schedule id: %w", err)
	}
	schedule.ID = id
	schedule.CreatedAt = now
	return nil
}

func scanSchedule(row interface{ Scan(...any) error }) (*domain.Schedule, error) {
	s := &domain.Schedule{}
	err := row.Scan(&s.ID, &s.PlantID, &s.Action, &s.Type, &s.IntervalDays,
		&s.WeeklyMask, &s.LocalTime, &s.Active, &s.CustomTitle, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id int64) (*domain.Schedule, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE id = ?", id)
	s, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query schedule by id: %w", err)
	}
	return s, nil
}

func (r *ScheduleRepository) ListByPlant(ctx context.Context, plantID int64) ([]domain.Schedule, error) {
	return r.list(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE plant_id = ? ORDER BY id", plantID)
}

func (r *ScheduleRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Schedule, error) {
	return r.list(ctx,
		`SELECT s.id, s.plant_id, s.action, s.type, s.interval_days, s.weekly_mask, s.local_time, s.active, s.custom_title, s.created_at
		 FROM schedules s JOIN plants p ON p.id = s.plant_id
		 WHERE p.user_id = ? ORDER BY s.id`, userID)
}

func (r *ScheduleRepository) list(ctx context.Context, query string, args ...any) ([]domain.Schedule, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

func (r *ScheduleRepository) ListActiveWithOwners(ctx context.Context) ([]domain.ScheduleWithOwner, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT s.id, s.plant_id, s.action, s.type, s.interval_days, s.weekly_mask, s.local_time, s.active, s.custom_title, s.created_at,
		        p.id, p.user_id, p.name, p.species_id, p.created_at,
		        u.id, u.tg_user_id, u.username, u.timezone, u.created_at
		 FROM schedules s
		 JOIN plants p ON p.id = s.plant_id
		 JOIN users u ON u.id = p.user_id
		 WHERE s.active = 1
		 ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	defer rows.Close()

	var result []domain.ScheduleWithOwner
	for rows.Next() {
		var item domain.ScheduleWithOwner
		s := &item.Schedule
		p := &item.Plant
		u := &item.Owner
		err := rows.Scan(
			&s.ID, &s.PlantID, &s.Action, &s.Type, &s.IntervalDays, &s.WeeklyMask,
			&s.LocalTime, &s.Active, &s.CustomTitle, &s.CreatedAt,
			&p.ID, &p.UserID, &p.Name, &p.SpeciesID, &p.CreatedAt,
			&u.ID, &u.TgUserID, &u.Username, &u.Timezone, &u.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan schedule with owner: %w", err)
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *ScheduleRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.q.ExecContext(ctx, "UPDATE schedules SET active = ? WHERE id = ?", active, id)
	if err != nil {
		return fmt.Errorf("update schedule active: %w", err)
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

func (r *ScheduleRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.q.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
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
