package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
)

// ActionLogRepository implements domain.ActionLogRepository using SQLite.
type ActionLogRepository struct {
	q Querier
}

func (r *ActionLogRepository) Create(ctx context.Context, log *domain.ActionLog) error {
	if log.DoneAt.IsZero() {
		log.DoneAt = time.Now().UTC()
	}
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO action_logs (user_id, plant_id, schedule_id, action, status, source, done_at, plant_name, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.UserID, log.PlantID, log.ScheduleID, log.Action, log.Status,
		log.Source, log.DoneAt, log.PlantName, log.Note,
	)
	if err != nil {
		return fmt.Errorf("insert action log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get action log id: %w", err)
	}
	log.ID = id
	return nil
}

func (r *ActionLogRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.ActionLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, user_id, plant_id, schedule_id, action, status, source, done_at, plant_name, note
		 FROM action_logs WHERE user_id = ? ORDER BY done_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list action logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.ActionLog
	for rows.Next() {
		var l domain.ActionLog
		err := rows.Scan(&l.ID, &l.UserID, &l.PlantID, &l.ScheduleID, &l.Action,
			&l.Status, &l.Source, &l.DoneAt, &l.PlantName, &l.Note)
		if err != nil {
			return nil, fmt.Errorf("scan action log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// LastDone returns the most recent done entry for a schedule, which
// anchors interval recurrence.
func (r *ActionLogRepository) LastDone(ctx context.Context, scheduleID int64) (*domain.ActionLog, error) {
	l := &domain.ActionLog{}
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, plant_id, schedule_id, action, status, source, done_at, plant_name, note
		 FROM action_logs
		 WHERE schedule_id = ? AND status = ?
		 ORDER BY done_at DESC, id DESC LIMIT 1`,
		scheduleID, domain.StatusDone,
	).Scan(&l.ID, &l.UserID, &l.PlantID, &l.ScheduleID, &l.Action,
		&l.Status, &l.Source, &l.DoneAt, &l.PlantName, &l.Note)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query last done: %w", err)
	}
	return l, nil
}
