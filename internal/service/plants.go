package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkraev/plantbot/internal/domain"
)

// PlantService manages a user's plants and species.
type PlantService struct {
	store domain.Store
}

// NewPlantService creates a new PlantService.
func NewPlantService(store domain.Store) *PlantService {
	return &PlantService{store: store}
}

// AddPlant creates a plant, attaching a species when speciesName is
// non-empty (the species is created on first use).
func (s *PlantService) AddPlant(ctx context.Context, userID int64, name, speciesName string) (*domain.Plant, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 64 {
		return nil, fmt.Errorf("%w: plant name must be 1-64 characters", domain.ErrInvalidInput)
	}

	plant := &domain.Plant{UserID: userID, Name: name}
	err := s.store.InTx(ctx, func(store domain.Store) error {
		if speciesName = strings.TrimSpace(speciesName); speciesName != "" {
			sp, err := store.Species().GetOrCreate(ctx, userID, speciesName)
			if err != nil {
				return err
			}
			plant.SpeciesID = &sp.ID
		}
		return store.Plants().Create(ctx, plant)
	})
	if err != nil {
		return nil, err
	}
	return plant, nil
}

// ListPlants returns the user's plants sorted by name.
func (s *PlantService) ListPlants(ctx context.Context, userID int64) ([]domain.Plant, error) {
	return s.store.Plants().ListByUser(ctx, userID)
}

// RemovePlant deletes a plant by name. Schedules and reminders cascade;
// action history keeps the snapshotted plant name.
func (s *PlantService) RemovePlant(ctx context.Context, userID int64, name string) error {
	return s.store.InTx(ctx, func(store domain.Store) error {
		plant, err := store.Plants().GetByName(ctx, userID, name)
		if err != nil {
			return err
		}
		return store.Plants().Delete(ctx, plant.ID)
	})
}
