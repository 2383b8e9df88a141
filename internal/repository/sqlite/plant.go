package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
)

// SpeciesRepository implements domain.SpeciesRepository using SQLite.
type SpeciesRepository struct {
	q Querier
}

func (r *SpeciesRepository) GetOrCreate(ctx context.Context, userID int64, name string) (*domain.Species, error) {
	sp := &domain.Species{}
	err := r.q.QueryRowContext(ctx,
		"SELECT id, user_id, name FROM species WHERE user_id = ? AND name = ?", userID, name,
	).Scan(&sp.ID, &sp.UserID, &sp.Name)
	if err == nil {
		return sp, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query species: %w", err)
	}

	result, err := r.q.ExecContext(ctx,
		"INSERT INTO species (user_id, name) VALUES (?, ?)", userID, name)
	if err != nil {
		return nil, fmt.Errorf("insert species: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get species id: %w", err)
	}
	return &domain.Species{ID: id, UserID: userID, Name: name}, nil
}

func (r *SpeciesRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Species, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT id, user_id, name FROM species WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("list species: %w", err)
	}
	defer rows.Close()

	var species []domain.Species
	for rows.Next() {
		var sp domain.Species
		if err := rows.Scan(&sp.ID, &sp.UserID, &sp.Name); err != nil {
			return nil, fmt.Errorf("scan species: %w", err)
		}
		species = append(species, sp)
	}
	return species, rows.Err()
}

// PlantRepository implements domain.PlantRepository using SQLite.
type PlantRepository struct {
	q Querier
}

func (r *PlantRepository) Create(ctx context.Context, plant *domain.Plant) error {
	now := time.Now().UTC()
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO plants (user_id, name, species_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		plant.UserID, plant.Name, plant.SpeciesID, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateName
		}
		return fmt.Errorf("insert plant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get plant id: %w", err)
	}
	plant.ID = id
	plant.CreatedAt = now
	return nil
}

func (r *PlantRepository) GetByID(ctx context.Context, id int64) (*domain.Plant, error) {
	plant := &domain.Plant{}
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, name, species_id, created_at FROM plants WHERE id = ?`, id,
	).Scan(&plant.ID, &plant.UserID, &plant.Name, &plant.SpeciesID, &plant.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query plant by id: %w", err)
	}
	return plant, nil
}

func (r *PlantRepository) GetByName(ctx context.Context, userID int64, name string) (*domain.Plant, error) {
	plant := &domain.Plant{}
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, name, species_id, created_at
		 FROM plants WHERE user_id = ? AND name = ? COLLATE NOCASE`, userID, name,
	).Scan(&plant.ID, &plant.UserID, &plant.Name, &plant.SpeciesID, &plant.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query plant by name: %w", err)
	}
	return plant, nil
}

func (r *PlantRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Plant, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, user_id, name, species_id, created_at
		 FROM plants WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list plants: %w", err)
	}
	defer rows.Close()

	var plants []domain.Plant
	for rows.Next() {
		var p domain.Plant
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.SpeciesID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan plant: %w", err)
		}
		plants = append(plants, p)
	}
	return plants, rows.Err()
}

func (r *PlantRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.q.ExecContext(ctx, "DELETE FROM plants WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete plant: %w", err)
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

// isUniqueConstraintError checks if the error is a SQLite unique
// constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
