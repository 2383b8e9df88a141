package domain

import "context"

// Store groups the repositories over a single underlying session so a
// unit of work can touch several aggregates. The Store returned by InTx
// is bound to one transaction scope: every operation inside fn either
// commits as a whole or rolls back as a whole.
type Store interface {
	Users() UserRepository
	Species() SpeciesRepository
	Plants() PlantRepository
	Schedules() ScheduleRepository
	ActionLogs() ActionLogRepository
	Shares() ShareLinkRepository
	Subscriptions() SubscriptionRepository
	Reminders() ReminderRepository

	// InTx runs fn inside a transaction scope. The scope's connection is
	// released on every exit path, including panic. A nil return commits;
	// anything else rolls back.
	InTx(ctx context.Context, fn func(Store) error) error
}

// Database defines lifecycle operations for the underlying database.
// Migrate must succeed before the store is used for application traffic.
type Database interface {
	Migrate(ctx context.Context) error
	Close() error
}
