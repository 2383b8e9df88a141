package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkraev/plantbot/internal/bot"
	"github.com/pkraev/plantbot/internal/config"
	"github.com/pkraev/plantbot/internal/handler"
	"github.com/pkraev/plantbot/internal/repository/sqlite"
	"github.com/pkraev/plantbot/internal/service"
	"github.com/pkraev/plantbot/internal/transport"
)

// Exit codes: 1 for runtime failures, 2 when the migration gate refuses
// to open. Supervisors can tell a broken schema from a flaky start.
const (
	exitRuntime   = 1
	exitMigration = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return exitRuntime
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	db, err := sqlite.New(cfg.DatabasePath, sqlite.PoolConfig{
		MaxConns:       cfg.PoolMaxConns,
		AcquireTimeout: cfg.PoolAcquireTimeout,
	})
	if err != nil {
		slog.Error("failed to open database", "error", err)
		return exitRuntime
	}
	defer db.Close()

	// Migration gate: nothing below runs until the schema is current.
	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("failed to run migrations", "error", err)
		return exitMigration
	}
	slog.Info("database migrations applied")

	tokens, err := service.NewFeedTokens(cfg.FeedSecret)
	if err != nil {
		slog.Error("failed to derive feed key", "error", err)
		return exitRuntime
	}

	userService := service.NewUserService(db, cfg.DefaultTimezone)
	plantService := service.NewPlantService(db)
	scheduleService := service.NewScheduleService(db)
	careService := service.NewCareService(db)
	shareService := service.NewShareService(db)
	feedService := service.NewFeedService(db)

	tg := transport.NewTelegram(cfg.TelegramAPIURL, cfg.BotToken)
	scheduler := service.NewReminderScheduler(db, tg, cfg.ReminderTick)
	b := bot.New(bot.Config{
		Transport: tg,
		Users:     userService,
		Plants:    plantService,
		Schedules: scheduleService,
		Care:      careService,
		Shares:    shareService,
		Tokens:    tokens,
		FeedBase:  strings.TrimSuffix(cfg.FeedBaseURL, "/"),
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.NewFeedHandler(tokens, feedService))

	srv := &http.Server{
		Addr:              cfg.FeedAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("feed server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		slog.Info("bot polling started")
		b.Run(ctx)
	}()

	code := 0
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serverErr:
		slog.Error("feed server error", "error", err)
		code = exitRuntime
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("feed server shutdown error", "error", err)
		code = exitRuntime
	}

	wg.Wait()
	slog.Info("stopped")
	return code
}
