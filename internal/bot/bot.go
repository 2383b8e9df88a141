// Package bot routes inbound chat updates to the application services.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/pkraev/plantbot/internal/domain"
	"github.com/pkraev/plantbot/internal/service"
	"github.com/pkraev/plantbot/internal/transport"
)

// maxInFlight bounds how many updates are handled concurrently.
const maxInFlight = 16

// Bot consumes updates from the transport and dispatches them to
// command and callback handlers.
type Bot struct {
	tr        transport.Transport
	users     *service.UserService
	plants    *service.PlantService
	schedules *service.ScheduleService
	care      *service.CareService
	shares    *service.ShareService
	tokens    *service.FeedTokens
	feedBase  string
}

// Config wires the bot's collaborators.
type Config struct {
	Transport transport.Transport
	Users     *service.UserService
	Plants    *service.PlantService
	Schedules *service.ScheduleService
	Care      *service.CareService
	Shares    *service.ShareService
	Tokens    *service.FeedTokens
	// FeedBase is the external base URL of the calendar feed server,
	// without a trailing slash.
	FeedBase string
}

// New creates a Bot.
func New(cfg Config) *Bot {
	return &Bot{
		tr:        cfg.Transport,
		users:     cfg.Users,
		plants:    cfg.Plants,
		schedules: cfg.Schedules,
		care:      cfg.Care,
		shares:    cfg.Shares,
		tokens:    cfg.Tokens,
		feedBase:  cfg.FeedBase,
	}
}

// Run consumes updates until ctx is canceled, handling each one on its
// own goroutine under a concurrency bound. It returns after all
// in-flight handlers finish.
func (b *Bot) Run(ctx context.Context) {
	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup

	for update := range b.tr.Updates(ctx) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}
		wg.Add(1)
		go func(u transport.Update) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("handler panicked", "update_id", u.ID, "panic", r,
						"stack", string(debug.Stack()))
				}
			}()
			b.handle(ctx, u)
		}(update)
	}
	wg.Wait()
}

func (b *Bot) handle(ctx context.Context, u transport.Update) {
	user, err := b.users.EnsureUser(ctx, u.FromID, u.Username)
	if err != nil {
		slog.Error("resolve user failed", "tg_user_id", u.FromID, "error", err)
		return
	}

	if u.IsCallback() {
		b.handleCallback(ctx, user, u)
		return
	}
	b.handleCommand(ctx, user, u)
}

func (b *Bot) handleCallback(ctx context.Context, user *domain.User, u transport.Update) {
	reminderID, status, ok := service.ParseReminderCallback(u.CallbackData)
	if !ok {
		b.answer(ctx, u.CallbackID, "")
		return
	}

	rem, err := b.care.CompleteReminder(ctx, user.ID, reminderID, status)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		b.answer(ctx, u.CallbackID, "This reminder is not yours to answer.")
	case errors.Is(err, domain.ErrNotFound):
		b.answer(ctx, u.CallbackID, "This reminder no longer exists.")
	case err != nil:
		slog.Error("complete reminder failed", "reminder_id", reminderID, "error", err)
		b.answer(ctx, u.CallbackID, "Something went wrong, try again.")
	case rem.Status == domain.ReminderDone && status == domain.StatusSkipped,
		rem.Status == domain.ReminderSkipped && status == domain.StatusDone:
		b.answer(ctx, u.CallbackID, "Already answered.")
	case status == domain.StatusDone:
		b.answer(ctx, u.CallbackID, "Marked as done.")
	default:
		b.answer(ctx, u.CallbackID, "Skipped.")
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.tr.AnswerCallback(ctx, callbackID, text); err != nil {
		slog.Warn("answer callback failed", "error", err)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.tr.Send(ctx, transport.Message{ChatID: chatID, Text: text}); err != nil {
		slog.Warn("send reply failed", "chat_id", chatID, "error", err)
	}
}
