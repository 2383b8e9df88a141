package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pkraev/plantbot/internal/domain"
	"github.com/pkraev/plantbot/internal/service"
	"github.com/pkraev/plantbot/internal/transport"
)

const helpText = `I keep track of your plants and remind you to care for them.

/plants - list your plants
/addplant <name> [species] - add a plant
/removeplant <name> - remove a plant
/water <name> - log a watering right now
/schedule - list schedules
/schedule <plant> <action> every <days> <HH:MM>
/schedule <plant> <action> on <mon,thu,...> <HH:MM>
/schedule pause|resume|remove <id>
/share <schedule id> [full] - create a share code (full lets the other person complete)
/share revoke <code> - revoke a code
/sub <code> - subscribe to a shared schedule
/sub mute|unmute|leave <id> - manage your subscriptions
/timezone [zone] - show or set your IANA timezone
/history [n] - recent care log
/calendar - personal iCal feed URL

Actions: watering, fertilizing, repotting, custom.
Plant names are single words, e.g. ficus-big.`

func (b *Bot) handleCommand(ctx context.Context, user *domain.User, u transport.Update) {
	fields := strings.Fields(u.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	args := fields[1:]

	var err error
	switch cmd {
	case "/start", "/help":
		b.reply(ctx, u.ChatID, helpText)
	case "/plants":
		err = b.cmdPlants(ctx, user, u.ChatID)
	case "/addplant":
		err = b.cmdAddPlant(ctx, user, u.ChatID, args)
	case "/removeplant":
		err = b.cmdRemovePlant(ctx, user, u.ChatID, args)
	case "/water":
		err = b.cmdWater(ctx, user, u.ChatID, args)
	case "/schedule":
		err = b.cmdSchedule(ctx, user, u.ChatID, args)
	case "/share":
		err = b.cmdShare(ctx, user, u.ChatID, args)
	case "/sub":
		err = b.cmdSubscribe(ctx, user, u.ChatID, args)
	case "/timezone":
		err = b.cmdTimezone(ctx, user, u.ChatID, args)
	case "/history":
		err = b.cmdHistory(ctx, user, u.ChatID, args)
	case "/calendar":
		err = b.cmdCalendar(ctx, user, u.ChatID)
	default:
		b.reply(ctx, u.ChatID, "Unknown command. Try /help.")
	}
	if err != nil {
		b.replyError(ctx, u.ChatID, cmd, err)
	}
}

// replyError turns domain errors into user-facing text; anything else is
// logged and reported generically.
func (b *Bot) replyError(ctx context.Context, chatID int64, cmd string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		b.reply(ctx, chatID, "I could not find that.")
	case errors.Is(err, domain.ErrDuplicateName):
		b.reply(ctx, chatID, "You already have one with that name.")
	case errors.Is(err, domain.ErrUnauthorized):
		b.reply(ctx, chatID, "That does not belong to you.")
	case errors.Is(err, domain.ErrShareExpired):
		b.reply(ctx, chatID, "That share code is no longer valid.")
	case errors.Is(err, domain.ErrInvalidInput):
		b.reply(ctx, chatID, capitalizeReason(err))
	default:
		slog.Error("command failed", "command", cmd, "error", err)
		b.reply(ctx, chatID, "Something went wrong, try again.")
	}
}

// capitalizeReason extracts the human part of an invalid-input error.
func capitalizeReason(err error) string {
	msg := err.Error()
	if _, after, found := strings.Cut(msg, ": "); found {
		msg = after
	}
	if msg == "" {
		return "That input is not valid."
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func (b *Bot) cmdPlants(ctx context.Context, user *domain.User, chatID int64) error {
	plants, err := b.plants.ListPlants(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(plants) == 0 {
		b.reply(ctx, chatID, "No plants yet. Add one with /addplant.")
		return nil
	}
	var sb strings.Builder
	sb.WriteString("Your plants:\n")
	for _, p := range plants {
		fmt.Fprintf(&sb, "- %s\n", p.Name)
	}
	b.reply(ctx, chatID, sb.String())
	return nil
}

func (b *Bot) cmdAddPlant(ctx context.Context, user *domain.User, chatID int64, args []string) error {
	if len(args) < 1 {
		b.reply(ctx, chatID, "Usage: /addplant <name> [species]")
		return nil
	}
	species := ""
	if len(args) > 1 {
		species = strings.Join(args[1:], " ")
	}
	plant, err := b.plants.AddPlant(ctx, user.ID, args[0], species)
	if err != nil {
		return err
	}
	b.reply(ctx, chatID, fmt.Sprintf("Added %s. Set up reminders with /schedule.", plant.Name))
	return nil
}

func (b *Bot) cmdRemovePlant(ctx context.Context, user *domain.User, chatID int64, args []string) error {
	if len(args) != 1 {
		b.reply(ctx, chatID, "Usage: /removeplant <name>")
		return nil
	}
	if err := b.plants.RemovePlant(ctx, user.ID, args[0]); err != nil {
		return err
	}
	b.reply(ctx, chatID, fmt.Sprintf("Removed %s and its schedules.", args[0]))
	return nil
}

func (b *Bot) cmdWater(ctx context.Context, user *domain.User, chatID int64, args []string) error {
	if len(args) < 1 {
		b.reply(ctx, chatID, "Usage: /water <name>")
		return nil
	}
	log, err := b.care.LogManual(ctx, user.ID, args[0], domain.ActionWatering, "")
	if err != nil {
		return err
	}
	b.reply(ctx, chatID, fmt.Sprintf("Logged watering for %s.", log.PlantName))
	return nil
}

func (b *Bot) cmdSchedule(ctx context.Context, user *domain.User, chatID int64, args []string) error {
	if len(args) == 0 {
		return b.listSchedules(ctx, user, chatID)
	}
	switch args[0] {
	case "pause", "resume", "remove":
		return b.mutateSchedule(ctx, user, chatID, args)
	}
	return b.addSchedule(ctx, user, chatID, args)
}

func (b *Bot) listSchedules(ctx context.Context, user *domain.User, chatID int64) error {
	schedules, err := b.schedules.ListForUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(schedules) == 0 {
		b.reply(ctx, chatID, "No schedules yet.")
		return nil
	}

	plants, err := b.plants.ListPlants(ctx, user.ID)
	if err != nil {
		return err
	}
	names := make(map[int64]string, len(plants))
	for _, p := range plants {
		names[p.ID] = p.Name
	}

	var sb strings.Builder
	sb.WriteString("Your schedules:\n")
	for _, sch := range schedules {
		state := ""
		if !sch.Active {
			state = " (paused)"
		}
		fmt.Fprintf(&sb, "#%d %s: %s %s at %s%s\n",
			sch.ID, names[sch.PlantID], sch.Action, describeRecurrence(sch), sch.LocalTime, state)
	}
	b.reply(ctx, chatID, sb.String())
	return nil
}

func describeRecurrence(sch domain.Schedule) string {
	switch sch.Type {
	case domain.ScheduleInterval:
		if sch.IntervalDays != nil {
			if *sch.IntervalDays == 1 {
				return "every day"
			}
			return fmt.Sprintf("every %d days", *sch.IntervalDays)
		}
	case domain.ScheduleWeekly:
		if sch.WeeklyMask != nil {
			return "on " + strings.Join(maskDayNames(*sch.WeeklyMask), ",")
		}
	}
	return string(sch.Type)
}

var dayNames = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

func maskDayNames(mask int) []string {
	var names []string
	for i, name := range dayNames {
		if mask&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return names
}

func parseDayNames(s string) (int, error) {
	var idx []int
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		found := -1
		for i, name := range dayNames {
			if part == name {
				found = i
				break
			}
		}
		if found < 0 {
			return 0, fmt.Errorf("%w: unknown weekday %q", domain.ErrInvalidInput, part)
		}
		idx = append(idx, found)
	}
	return service.WeekdayMask(idx...)
}

func (b *Bot) mutateSchedule(ctx context.Context, user *domain.User, chatID int64, args []string) error {
	if len(args) != 2 {
		b.reply(ctx, chatID, "Usage: /schedule pause|resume|remove <id>")
		return nil
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad schedule id %q", domain.ErrInvalidInput, args[1])
	}

	switch args[0] {
	case "pause":
		if err := b.schedules.SetActive(ctx, user.ID, id, false); err != nil {
			return err
		}
		b.reply(ctx, chatID, fmt.Sprintf("Schedule #%d paused.", id))
	case "resume":
		if err := b.schedules.SetActive(ctx, user.ID, id, true); err != nil {
			return err
		}
		b.reply(ctx, chatID, fmt.Sprintf("Schedule #%d resumed.", id))
	case "remove":
		if err := b.schedules.Remove(ctx, user.ID, id); err != nil {
			return err
		}
		b.reply(ctx, chatID, fmt.Sprintf("Schedule #%d removed.", id))
	}
	return nil
}

func (b *Bot) addSchedule(ctx context.Context, user *domain.User, chatID int64, args []string) error {
	// <plant> <action> every <days> <HH:MM>
	// <plant> <action> on <mon,thu> <HH:MM>
	if len(args) != 5 {
		b.reply(ctx, chatID, "Usage: /schedule <plant> <action> every <days> <HH:MM>\nor: /schedule <plant> <action> on <mon,thu,...> <HH:MM>")
		return nil
	}
	plantName, actionName, mode, when, localTime := args[0], args[1], args[2], args[3], args[4]

	action, ok := domain.ParseActionType(actionName)
	if !ok {
		return fmt.Errorf("%w: unknown action %q, try watering/fertilizing/repotting/custom", domain.ErrInvalidInput, actionName)
	}

	var sch *domain.Schedule
	var err error
	switch mode {
	case "every":
		days, convErr := strconv.Atoi(when)
		if convErr != nil {
			return fmt.Errorf("%w: bad day count %q", domain.ErrInvalidInput, when)
		}
		sch, err = b.schedules.AddInterval(ctx, user.ID, plantName, action, days, localTime)
	case "on":
		mask, maskErr := parseDayNames(when)
		if maskErr != nil {
			return maskErr
		}
		sch, err = b.schedules.AddWeekly(ctx, user.ID, plantName, action, mask, localTime)
	default:
		return fmt.Errorf("%w: expected \"every\" or \"on\", got %q", domain.ErrInvalidInput, mode)
	}
	if err != nil {
		return err
	}
	b.reply(ctx, chatID, fmt.Sprintf("Schedule #%d created: %s %s %s at %s.",
		sch.ID, plantName, sch.Action, describeRecurrence(*sch), sch.LocalTime))
	return nil
}

func (b *Bot) cmdShare(ctx context.Context, user *domain.User, chatID int64, args []string) error {
	switch {
	case len(args) == 0:
		return b.listShareCodes(ctx, user, chatID)
	case args[0] == "revoke":
		if len(args) != 2 {
			b.reply(ctx, chatID, "Usage: /share revoke <code>")
			return nil
		}
		if err := b.shares.Revoke(ctx, user.ID, args[1]); err != nil {
			return err
		}
		b.reply(ctx, chatID, "Code revoked. Existing subscribers keep their subscription.")
		return nil
	}

	scheduleID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad schedule id %q", domain.ErrInvalidInput, args[0])
	}
	allowComplete := len(args) > 1 && args[1] == "full"

	link, err := b.shares.CreateCode(ctx, user.ID, scheduleID, 0, allowComplete, "")
	if err != nil {
		return err
	}
	access := "They will see reminders."
	if allowComplete {
		access = "They can also mark reminders done."
	}
	b.reply(ctx, chatID, fmt.Sprintf("Share code: %s\nSend it to someone; they redeem it with /sub %s. %s",
		link.Code, link.Code, access))
	return nil
}

func (b *Bot) listShareCodes(ctx context.Context, user *domain.User, chatID int64) error {
	links, err := b.shares.ListCodes(ctx, user.ID)
	if err != nil {
		return err
	}
	active := links[:0]
	for _, l := range links {
		if l.Active {
			active = append(active, l)
		}
	}
	if len(active) == 0 {
		b.reply(ctx, chatID, "No active share codes. Create one with /share <schedule id>.")
		return nil
	}
	var sb strings.Builder
	sb.WriteString("Your share codes:\n")
	for _, l := range active {
		access := "view"
		if l.AllowComplete {
			access = "full"
		}
		fmt.Fprintf(&sb, "- %s (schedule #%d, %s)\n", l.Code, l.ScheduleID, access)
	}
	b.reply(ctx, chatID, sb.String())
	return nil
}

func (b *Bot) cmdSubscribe(ctx context.Context, user *domain.User, chatID int64, args []string) error {
	switch {
	case len(args) == 0:
		return b.listSubscriptions(ctx, user, chatID)
	case args[0] == "mute", args[0] == "unmute", args[0] == "leave":
		return b.mutateSubscription(ctx, user, chatID, args)
	case len(args) == 1:
		if _, err := b.shares.Subscribe(ctx, user.ID, args[0]); err != nil {
			return err
		}
		b.reply(ctx, chatID, "Subscribed. You will get this schedule's reminders.")
		return nil
	default:
		b.reply(ctx, chatID, "Usage: /sub <code>, or /sub mute|unmute|leave <id>")
		return nil
	}
}

func (b *Bot) listSubscriptions(ctx context.Context, user *domain.User, chatID int64) error {
	subs, err := b.shares.ListSubscriptions(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		b.reply(ctx, chatID, "No subscriptions. Redeem a code with /sub <code>.")
		return nil
	}
	var sb strings.Builder
	sb.WriteString("Your subscriptions:\n")
	for _, sub := range subs {
		state := ""
		if sub.Muted {
			state = " (muted)"
		}
		fmt.Fprintf(&sb, "#%d schedule %d%s\n", sub.ID, sub.ScheduleID, state)
	}
	b.reply(ctx, chatID, sb.String())
	return nil
}

func (b *Bot) mutateSubscription(ctx context.Context, user *domain.User, chatID int64, args []string) error {
	if len(args) != 2 {
		b.reply(ctx, chatID, "Usage: /sub mute|unmute|leave <id>")
		return nil
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad subscription id %q", domain.ErrInvalidInput, args[1])
	}

	switch args[0] {
	case "mute":
		if err := b.shares.SetMuted(ctx, user.ID, id, true); err != nil {
			return err
		}
		b.reply(ctx, chatID, "Muted. You will not get copies of these reminders.")
	case "unmute":
		if err := b.shares.SetMuted(ctx, user.ID, id, false); err != nil {
			return err
		}
		b.reply(ctx, chatID, "Unmuted.")
	case "leave":
		if err := b.shares.Unsubscribe(ctx, user.ID, id); err != nil {
			return err
		}
		b.reply(ctx, chatID, "Unsubscribed.")
	}
	return nil
}

func (b *Bot) cmdTimezone(ctx context.Context, user *domain.User, chatID int64, args []string) error {
	if len(args) == 0 {
		b.reply(ctx, chatID, fmt.Sprintf("Your timezone is %s. Change it with /timezone <zone>, e.g. /timezone Europe/Berlin.", user.Timezone))
		return nil
	}
	if err := b.users.SetTimezone(ctx, user.ID, args[0]); err != nil {
		return err
	}
	b.reply(ctx, chatID, fmt.Sprintf("Timezone set to %s.", args[0]))
	return nil
}

func (b *Bot) cmdHistory(ctx context.Context, user *domain.User, chatID int64, args []string) error {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > 50 {
			return fmt.Errorf("%w: history size must be 1-50", domain.ErrInvalidInput)
		}
		limit = n
	}

	entries, err := b.care.History(ctx, user.ID, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		b.reply(ctx, chatID, "No care history yet.")
		return nil
	}

	loc := service.Location(user)
	var sb strings.Builder
	sb.WriteString("Recent care:\n")
	for _, e := range entries {
		status := ""
		if e.Status == domain.StatusSkipped {
			status = " (skipped)"
		}
		fmt.Fprintf(&sb, "- %s %s %s%s\n",
			e.DoneAt.In(loc).Format("Jan 2 15:04"), e.Action, e.PlantName, status)
	}
	b.reply(ctx, chatID, sb.String())
	return nil
}

func (b *Bot) cmdCalendar(ctx context.Context, user *domain.User, chatID int64) error {
	token, err := b.tokens.Issue(user.TgUserID)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/calendar/%s.ics", b.feedBase, token)
	b.reply(ctx, chatID, "Subscribe to your care calendar:\n"+url)
	return nil
}
