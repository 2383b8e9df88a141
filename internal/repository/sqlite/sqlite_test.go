package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
	"github.com/pkraev/plantbot/internal/repository/sqlite"
)

// Verify that *sqlite.DB implements the domain contracts at compile time.
var (
	_ domain.Database = (*sqlite.DB)(nil)
	_ domain.Store    = (*sqlite.DB)(nil)
)

func newTestDB(t *testing.T) *sqlite.DB {
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

func createUser(t *testing.T, db *sqlite.DB, tgID int64) *domain.User {
	t.Helper()
	user := &domain.User{TgUserID: tgID, Username: "user", Timezone: "Europe/Amsterdam"}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func createPlant(t *testing.T, db *sqlite.DB, userID int64, name string) *domain.Plant {
	t.Helper()
	plant := &domain.Plant{UserID: userID, Name: name}
	if err := db.Plants().Create(context.Background(), plant); err != nil {
		t.Fatalf("create plant: %v", err)
	}
	return plant
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := sqlite.New(dbPath, sqlite.PoolConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}

	var fkEnabled int
	if err := db.SqlDB.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("check foreign_keys: %v", err)
	}
	if fkEnabled != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fkEnabled)
	}
}

func TestMigrateGatesStartup(t *testing.T) {
	// A database opened but never migrated must not serve traffic; the
	// gate (Migrate) is the only way to a usable store.
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"), sqlite.PoolConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.Users().GetByTgUserID(ctx, 1); err == nil {
		t.Fatal("expected error before migration")
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := db.Users().GetByTgUserID(ctx, 1); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound after migration, got %v", err)
	}
}

func TestUserRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := createUser(t, db, 42)
	if user.ID == 0 {
		t.Fatal("expected assigned ID")
	}

	got, err := db.Users().GetByTgUserID(ctx, 42)
	if err != nil {
		t.Fatalf("GetByTgUserID: %v", err)
	}
	if got.ID != user.ID || got.Timezone != "Europe/Amsterdam" {
		t.Fatalf("unexpected user: %+v", got)
	}

	if err := db.Users().SetTimezone(ctx, user.ID, "Europe/Berlin"); err != nil {
		t.Fatalf("SetTimezone: %v", err)
	}
	got, err = db.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Timezone != "Europe/Berlin" {
		t.Fatalf("expected updated timezone, got %q", got.Timezone)
	}

	// Duplicate telegram id.
	dup := &domain.User{TgUserID: 42}
	if err := db.Users().Create(ctx, dup); err != domain.ErrDuplicateName {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestPlantRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, 1)

	sp, err := db.Species().GetOrCreate(ctx, user.ID, "Monstera")
	if err != nil {
		t.Fatalf("GetOrCreate species: %v", err)
	}
	again, err := db.Species().GetOrCreate(ctx, user.ID, "Monstera")
	if err != nil {
		t.Fatalf("GetOrCreate species again: %v", err)
	}
	if sp.ID != again.ID {
		t.Fatalf("expected same species, got %d and %d", sp.ID, again.ID)
	}

	plant := &domain.Plant{UserID: user.ID, Name: "Fred", SpeciesID: &sp.ID}
	if err := db.Plants().Create(ctx, plant); err != nil {
		t.Fatalf("create plant: %v", err)
	}

	byName, err := db.Plants().GetByName(ctx, user.ID, "fred")
	if err != nil {
		t.Fatalf("GetByName case-insensitive: %v", err)
	}
	if byName.ID != plant.ID {
		t.Fatalf("expected plant %d, got %d", plant.ID, byName.ID)
	}

	plants, err := db.Plants().ListByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(plants) != 1 {
		t.Fatalf("expected 1 plant, got %d", len(plants))
	}

	if err := db.Plants().Delete(ctx, plant.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := db.Plants().Delete(ctx, plant.ID); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduleRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, 1)
	plant := createPlant(t, db, user.ID, "Fred")

	days := 3
	schedule := &domain.Schedule{
		PlantID:      plant.ID,
		Action:       domain.ActionWatering,
		Type:         domain.ScheduleInterval,
		IntervalDays: &days,
		LocalTime:    "09:00",
		Active:       true,
	}
	if err := db.Schedules().Create(ctx, schedule); err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	withOwners, err := db.Schedules().ListActiveWithOwners(ctx)
	if err != nil {
		t.Fatalf("ListActiveWithOwners: %v", err)
	}
	if len(withOwners) != 1 {
		t.Fatalf("expected 1 active schedule, got %d", len(withOwners))
	}
	if withOwners[0].Owner.ID != user.ID || withOwners[0].Plant.ID != plant.ID {
		t.Fatalf("unexpected join result: %+v", withOwners[0])
	}

	if err := db.Schedules().SetActive(ctx, schedule.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	withOwners, err = db.Schedules().ListActiveWithOwners(ctx)
	if err != nil {
		t.Fatalf("ListActiveWithOwners: %v", err)
	}
	if len(withOwners) != 0 {
		t.Fatalf("expected no active schedules, got %d", len(withOwners))
	}
}

func TestReminderRepositoryIdempotentCreate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, 1)
	plant := createPlant(t, db, user.ID, "Fred")

	days := 2
	schedule := &domain.Schedule{
		PlantID: plant.ID, Action: domain.ActionWatering,
		Type: domain.ScheduleInterval, IntervalDays: &days,
		LocalTime: "09:00", Active: true,
	}
	if err := db.Schedules().Create(ctx, schedule); err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	planned := time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC)
	first := &domain.Reminder{
		ScheduleID: schedule.ID, PlantID: plant.ID, OwnerUserID: user.ID,
		Action: domain.ActionWatering, PlannedAt: planned,
	}
	if err := db.Reminders().Create(ctx, first); err != nil {
		t.Fatalf("create reminder: %v", err)
	}

	second := &domain.Reminder{
		ScheduleID: schedule.ID, PlantID: plant.ID, OwnerUserID: user.ID,
		Action: domain.ActionWatering, PlannedAt: planned,
	}
	if err := db.Reminders().Create(ctx, second); err != nil {
		t.Fatalf("create reminder again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing reminder %d, got %d", first.ID, second.ID)
	}

	due, err := db.Reminders().ListDue(ctx, planned.Add(time.Minute))
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due reminder, got %d", len(due))
	}

	if err := db.Reminders().SetStatus(ctx, first.ID, domain.ReminderSent, planned.Add(time.Minute)); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	pending, err := db.Reminders().HasPending(ctx, schedule.ID)
	if err != nil {
		t.Fatalf("HasPending: %v", err)
	}
	if !pending {
		t.Fatal("sent reminder should still count as pending delivery")
	}

	if err := db.Reminders().SetStatus(ctx, first.ID, domain.ReminderDone, planned.Add(2*time.Minute)); err != nil {
		t.Fatalf("SetStatus done: %v", err)
	}
	pending, err = db.Reminders().HasPending(ctx, schedule.ID)
	if err != nil {
		t.Fatalf("HasPending: %v", err)
	}
	if pending {
		t.Fatal("done reminder should not be pending")
	}
}

func TestShareLinkRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createUser(t, db, 1)
	sub := createUser(t, db, 2)
	plant := createPlant(t, db, owner.ID, "Fred")

	days := 2
	schedule := &domain.Schedule{
		PlantID: plant.ID, Action: domain.ActionWatering,
		Type: domain.ScheduleInterval, IntervalDays: &days,
		LocalTime: "09:00", Active: true,
	}
	if err := db.Schedules().Create(ctx, schedule); err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	link := &domain.ShareLink{
		OwnerUserID: owner.ID, ScheduleID: schedule.ID,
		Code: "abc123", Active: true, AllowComplete: true,
	}
	if err := db.Shares().Create(ctx, link); err != nil {
		t.Fatalf("create share link: %v", err)
	}

	dup := &domain.ShareLink{OwnerUserID: owner.ID, ScheduleID: schedule.ID, Code: "abc123", Active: true}
	if err := db.Shares().Create(ctx, dup); err != domain.ErrDuplicateCode {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}

	got, err := db.Shares().GetByCode(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if !got.Usable(time.Now()) {
		t.Fatal("expected link to be usable")
	}

	subscription := &domain.Subscription{
		ScheduleID: schedule.ID, SubscriberUserID: sub.ID, CanComplete: true,
	}
	if err := db.Subscriptions().Create(ctx, subscription); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	if err := db.Shares().Deactivate(ctx, link.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	got, err = db.Shares().GetByCode(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetByCode after deactivate: %v", err)
	}
	if got.Usable(time.Now()) {
		t.Fatal("deactivated link must not be usable")
	}
}

func TestActionLogRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, 1)
	plant := createPlant(t, db, user.ID, "Fred")

	days := 2
	schedule := &domain.Schedule{
		PlantID: plant.ID, Action: domain.ActionWatering,
		Type: domain.ScheduleInterval, IntervalDays: &days,
		LocalTime: "09:00", Active: true,
	}
	if err := db.Schedules().Create(ctx, schedule); err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	if _, err := db.ActionLogs().LastDone(ctx, schedule.ID); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	older := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	for _, doneAt := range []time.Time{older, newer} {
		log := &domain.ActionLog{
			UserID: user.ID, PlantID: &plant.ID, ScheduleID: &schedule.ID,
			Action: domain.ActionWatering, Status: domain.StatusDone,
			Source: domain.SourceSchedule, DoneAt: doneAt, PlantName: plant.Name,
		}
		if err := db.ActionLogs().Create(ctx, log); err != nil {
			t.Fatalf("create action log: %v", err)
		}
	}

	last, err := db.ActionLogs().LastDone(ctx, schedule.ID)
	if err != nil {
		t.Fatalf("LastDone: %v", err)
	}
	if !last.DoneAt.Equal(newer) {
		t.Fatalf("expected last done %v, got %v", newer, last.DoneAt)
	}

	logs, err := db.ActionLogs().ListByUser(ctx, user.ID, 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if !logs[0].DoneAt.Equal(newer) {
		t.Fatal("expected newest first")
	}
}
