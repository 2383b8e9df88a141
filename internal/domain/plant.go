package domain

import (
	"context"
	"time"
)

// Species is a user-defined plant species, unique per user by name.
type Species struct {
	ID     int64
	UserID int64
	Name   string
}

// Plant belongs to a user and optionally references a species.
type Plant struct {
	ID        int64
	UserID    int64
	Name      string
	SpeciesID *int64
	CreatedAt time.Time
}

type SpeciesRepository interface {
	GetOrCreate(ctx context.Context, userID int64, name string) (*Species, error)
	ListByUser(ctx context.Context, userID int64) ([]Species, error)
}

type PlantRepository interface {
	Create(ctx context.Context, plant *Plant) error
	GetByID(ctx context.Context, id int64) (*Plant, error)
	GetByName(ctx context.Context, userID int64, name string) (*Plant, error)
	ListByUser(ctx context.Context, userID int64) ([]Plant, error)
	Delete(ctx context.Context, id int64) error
}
