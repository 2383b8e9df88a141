package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
	"github.com/pkraev/plantbot/internal/repository/sqlite"
	"github.com/pkraev/plantbot/internal/service"
)

func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"), sqlite.PoolConfig{
		MaxConns:       4,
		AcquireTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *sqlite.DB, tgID int64) *domain.User {
	t.Helper()
	users := service.NewUserService(db, "UTC")
	user, err := users.EnsureUser(context.Background(), tgID, "tester")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	return user
}

func seedPlant(t *testing.T, db *sqlite.DB, userID int64, name string) *domain.Plant {
	t.Helper()
	plants := service.NewPlantService(db)
	plant, err := plants.AddPlant(context.Background(), userID, name, "")
	if err != nil {
		t.Fatalf("AddPlant: %v", err)
	}
	return plant
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	db := newTestStore(t)
	users := service.NewUserService(db, "Europe/Amsterdam")
	ctx := context.Background()

	first, err := users.EnsureUser(ctx, 100, "alice")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if first.Timezone != "Europe/Amsterdam" {
		t.Errorf("Timezone = %q, want default", first.Timezone)
	}

	second, err := users.EnsureUser(ctx, 100, "alice")
	if err != nil {
		t.Fatalf("EnsureUser again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second contact created a new user: %d != %d", second.ID, first.ID)
	}
}

func TestSetTimezoneRejectsUnknownZone(t *testing.T) {
	db := newTestStore(t)
	users := service.NewUserService(db, "UTC")
	user := seedUser(t, db, 101)
	ctx := context.Background()

	if err := users.SetTimezone(ctx, user.ID, "Mars/Olympus"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("SetTimezone(bad) = %v, want ErrInvalidInput", err)
	}
	if err := users.SetTimezone(ctx, user.ID, "Asia/Tokyo"); err != nil {
		t.Fatalf("SetTimezone: %v", err)
	}

	got, err := db.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Timezone != "Asia/Tokyo" {
		t.Errorf("Timezone = %q, want Asia/Tokyo", got.Timezone)
	}
}

func TestAddPlantCreatesSpeciesOnFirstUse(t *testing.T) {
	db := newTestStore(t)
	plants := service.NewPlantService(db)
	user := seedUser(t, db, 102)
	ctx := context.Background()

	first, err := plants.AddPlant(ctx, user.ID, "Ficus", "Ficus lyrata")
	if err != nil {
		t.Fatalf("AddPlant: %v", err)
	}
	if first.SpeciesID == nil {
		t.Fatal("SpeciesID is nil, want species attached")
	}

	second, err := plants.AddPlant(ctx, user.ID, "Little Ficus", "Ficus lyrata")
	if err != nil {
		t.Fatalf("AddPlant second: %v", err)
	}
	if *second.SpeciesID != *first.SpeciesID {
		t.Errorf("species duplicated: %d != %d", *second.SpeciesID, *first.SpeciesID)
	}

	if _, err := plants.AddPlant(ctx, user.ID, "Ficus", ""); !errors.Is(err, domain.ErrDuplicateName) {
		t.Errorf("duplicate plant name = %v, want ErrDuplicateName", err)
	}
	if _, err := plants.AddPlant(ctx, user.ID, "", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty name = %v, want ErrInvalidInput", err)
	}
}

func TestRemovePlantCascadesSchedules(t *testing.T) {
	db := newTestStore(t)
	plants := service.NewPlantService(db)
	schedules := service.NewScheduleService(db)
	user := seedUser(t, db, 103)
	ctx := context.Background()

	seedPlant(t, db, user.ID, "Monstera")
	if _, err := schedules.AddInterval(ctx, user.ID, "Monstera", domain.ActionWatering, 3, "09:00"); err != nil {
		t.Fatalf("AddInterval: %v", err)
	}

	if err := plants.RemovePlant(ctx, user.ID, "Monstera"); err != nil {
		t.Fatalf("RemovePlant: %v", err)
	}

	left, err := schedules.ListForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("got %d schedules after plant removal, want 0", len(left))
	}

	if err := plants.RemovePlant(ctx, user.ID, "Monstera"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("removing again = %v, want ErrNotFound", err)
	}
}

func TestScheduleMutationsRequireOwnership(t *testing.T) {
	db := newTestStore(t)
	schedules := service.NewScheduleService(db)
	owner := seedUser(t, db, 104)
	stranger := seedUser(t, db, 105)
	ctx := context.Background()

	seedPlant(t, db, owner.ID, "Basil")
	mask, err := service.WeekdayMask(0, 3)
	if err != nil {
		t.Fatalf("WeekdayMask: %v", err)
	}
	sch, err := schedules.AddWeekly(ctx, owner.ID, "Basil", domain.ActionWatering, mask, "08:30")
	if err != nil {
		t.Fatalf("AddWeekly: %v", err)
	}

	if err := schedules.SetActive(ctx, stranger.ID, sch.ID, false); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("stranger SetActive = %v, want ErrUnauthorized", err)
	}
	if err := schedules.Remove(ctx, stranger.ID, sch.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("stranger Remove = %v, want ErrUnauthorized", err)
	}
	if err := schedules.SetActive(ctx, owner.ID, sch.ID, false); err != nil {
		t.Fatalf("owner SetActive: %v", err)
	}
	if err := schedules.Remove(ctx, owner.ID, sch.ID); err != nil {
		t.Fatalf("owner Remove: %v", err)
	}
}

func TestLogManualSnapshotsPlantName(t *testing.T) {
	db := newTestStore(t)
	care := service.NewCareService(db)
	plants := service.NewPlantService(db)
	user := seedUser(t, db, 106)
	ctx := context.Background()

	seedPlant(t, db, user.ID, "Aloe")
	log, err := care.LogManual(ctx, user.ID, "Aloe", domain.ActionWatering, "a splash")
	if err != nil {
		t.Fatalf("LogManual: %v", err)
	}
	if log.PlantName != "Aloe" || log.Source != domain.SourceManual {
		t.Errorf("log = %+v, want manual entry for Aloe", log)
	}

	if err := plants.RemovePlant(ctx, user.ID, "Aloe"); err != nil {
		t.Fatalf("RemovePlant: %v", err)
	}
	history, err := care.History(ctx, user.ID, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].PlantName != "Aloe" {
		t.Fatalf("history after plant removal = %+v, want snapshotted name", history)
	}
}

func TestShareSubscribeFlow(t *testing.T) {
	db := newTestStore(t)
	shares := service.NewShareService(db)
	schedules := service.NewScheduleService(db)
	owner := seedUser(t, db, 107)
	friend := seedUser(t, db, 108)
	ctx := context.Background()

	seedPlant(t, db, owner.ID, "Cactus")
	sch, err := schedules.AddInterval(ctx, owner.ID, "Cactus", domain.ActionWatering, 14, "10:00")
	if err != nil {
		t.Fatalf("AddInterval: %v", err)
	}

	link, err := shares.CreateCode(ctx, owner.ID, sch.ID, 0, true, "for my sitter")
	if err != nil {
		t.Fatalf("CreateCode: %v", err)
	}

	if _, err := shares.Subscribe(ctx, owner.ID, link.Code); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("self-subscribe = %v, want ErrInvalidInput", err)
	}

	sub, err := shares.Subscribe(ctx, friend.ID, link.Code)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if sub.ScheduleID != sch.ID || !sub.CanComplete {
		t.Errorf("subscription = %+v, want can_complete on schedule %d", sub, sch.ID)
	}

	if err := shares.Revoke(ctx, owner.ID, link.Code); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := shares.Subscribe(ctx, friend.ID, link.Code); !errors.Is(err, domain.ErrShareExpired) {
		t.Errorf("subscribe after revoke = %v, want ErrShareExpired", err)
	}
	if _, err := shares.Subscribe(ctx, friend.ID, "nosuchcode"); !errors.Is(err, domain.ErrShareExpired) {
		t.Errorf("unknown code = %v, want ErrShareExpired", err)
	}
}

func TestShareCodeExpiry(t *testing.T) {
	db := newTestStore(t)
	shares := service.NewShareService(db)
	schedules := service.NewScheduleService(db)
	owner := seedUser(t, db, 109)
	friend := seedUser(t, db, 110)
	ctx := context.Background()

	seedPlant(t, db, owner.ID, "Fern")
	sch, err := schedules.AddInterval(ctx, owner.ID, "Fern", domain.ActionWatering, 2, "07:00")
	if err != nil {
		t.Fatalf("AddInterval: %v", err)
	}

	link, err := shares.CreateCode(ctx, owner.ID, sch.ID, time.Nanosecond, false, "")
	if err != nil {
		t.Fatalf("CreateCode: %v", err)
	}
	time.Sleep(time.Millisecond)

	if _, err := shares.Subscribe(ctx, friend.ID, link.Code); !errors.Is(err, domain.ErrShareExpired) {
		t.Errorf("subscribe to expired code = %v, want ErrShareExpired", err)
	}
}

func TestCompleteReminderRespectsPermissions(t *testing.T) {
	db := newTestStore(t)
	care := service.NewCareService(db)
	shares := service.NewShareService(db)
	schedules := service.NewScheduleService(db)
	owner := seedUser(t, db, 111)
	sitter := seedUser(t, db, 112)
	stranger := seedUser(t, db, 113)
	ctx := context.Background()

	plant := seedPlant(t, db, owner.ID, "Orchid")
	sch, err := schedules.AddInterval(ctx, owner.ID, "Orchid", domain.ActionWatering, 5, "18:00")
	if err != nil {
		t.Fatalf("AddInterval: %v", err)
	}
	link, err := shares.CreateCode(ctx, owner.ID, sch.ID, 0, true, "")
	if err != nil {
		t.Fatalf("CreateCode: %v", err)
	}
	if _, err := shares.Subscribe(ctx, sitter.ID, link.Code); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	rem := &domain.Reminder{
		ScheduleID:  sch.ID,
		PlantID:     plant.ID,
		OwnerUserID: owner.ID,
		Action:      domain.ActionWatering,
		PlannedAt:   time.Now().UTC().Add(-time.Hour),
	}
	if err := db.Reminders().Create(ctx, rem); err != nil {
		t.Fatalf("Create reminder: %v", err)
	}

	if _, err := care.CompleteReminder(ctx, stranger.ID, rem.ID, domain.StatusDone); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("stranger completion = %v, want ErrUnauthorized", err)
	}

	got, err := care.CompleteReminder(ctx, sitter.ID, rem.ID, domain.StatusDone)
	if err != nil {
		t.Fatalf("sitter CompleteReminder: %v", err)
	}
	if got.Status != domain.ReminderDone {
		t.Errorf("reminder status = %q, want done", got.Status)
	}

	// Answering twice is a no-op, not an error.
	again, err := care.CompleteReminder(ctx, owner.ID, rem.ID, domain.StatusSkipped)
	if err != nil {
		t.Fatalf("second CompleteReminder: %v", err)
	}
	if again.Status != domain.ReminderDone {
		t.Errorf("second answer changed status to %q", again.Status)
	}

	history, err := care.History(ctx, sitter.ID, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Source != domain.SourceSchedule {
		t.Fatalf("sitter history = %+v, want one schedule-sourced entry", history)
	}
}
