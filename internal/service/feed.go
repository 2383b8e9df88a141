package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
)

// FeedHorizonDays bounds how far ahead the calendar feed projects
// occurrences.
const FeedHorizonDays = 30

// FeedService renders a user's upcoming care occurrences as an iCalendar
// document for subscription from any calendar app.
type FeedService struct {
	store domain.Store
}

// NewFeedService creates a new FeedService.
func NewFeedService(store domain.Store) *FeedService {
	return &FeedService{store: store}
}

// BuildCalendar projects every active schedule of the user's plants over
// the feed horizon and renders the result as an iCalendar document.
func (s *FeedService) BuildCalendar(ctx context.Context, tgUserID int64, now time.Time) (string, error) {
	user, err := s.store.Users().GetByTgUserID(ctx, tgUserID)
	if err != nil {
		return "", err
	}
	loc := Location(user)
	horizon := now.Add(FeedHorizonDays * 24 * time.Hour)

	plants, err := s.store.Plants().ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	plantNames := make(map[int64]string, len(plants))
	for _, p := range plants {
		plantNames[p.ID] = p.Name
	}

	schedules, err := s.store.Schedules().ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:-//plantbot//care feed//EN")
	writeLine(&b, "CALSCALE:GREGORIAN")

	stamp := now.UTC().Format(icalTimeLayout)
	for _, schedule := range schedules {
		if !schedule.Active {
			continue
		}
		occurrences, err := s.projectOccurrences(ctx, schedule, loc, now, horizon)
		if err != nil {
			// One malformed schedule must not break the whole feed.
			continue
		}
		summary := Summary(schedule, plantNames[schedule.PlantID])
		for _, occ := range occurrences {
			writeLine(&b, "BEGIN:VEVENT")
			writeLine(&b, fmt.Sprintf("UID:sch-%d-%d@plantbot", schedule.ID, occ.Unix()))
			writeLine(&b, "DTSTAMP:"+stamp)
			writeLine(&b, "DTSTART:"+occ.UTC().Format(icalTimeLayout))
			writeLine(&b, "SUMMARY:"+escapeICalText(summary))
			writeLine(&b, "END:VEVENT")
		}
	}

	writeLine(&b, "END:VCALENDAR")
	return b.String(), nil
}

func (s *FeedService) projectOccurrences(ctx context.Context, schedule domain.Schedule, loc *time.Location, now, horizon time.Time) ([]time.Time, error) {
	var lastDone *time.Time
	if last, err := s.store.ActionLogs().LastDone(ctx, schedule.ID); err == nil {
		lastDone = &last.DoneAt
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	var occurrences []time.Time
	cursor := now
	anchor := lastDone
	for len(occurrences) < 64 {
		next, err := NextDue(schedule, anchor, loc, cursor)
		if err != nil {
			return nil, err
		}
		if next.After(horizon) {
			break
		}
		occurrences = append(occurrences, next)
		// Future occurrences chain off the projected one.
		anchor = &next
		cursor = next
	}
	return occurrences, nil
}

// Summary renders a human-readable event title for a schedule.
func Summary(schedule domain.Schedule, plantName string) string {
	if plantName == "" {
		plantName = "plant"
	}
	switch schedule.Action {
	case domain.ActionWatering:
		return "Water " + plantName
	case domain.ActionFertilizing:
		return "Fertilize " + plantName
	case domain.ActionRepotting:
		return "Repot " + plantName
	case domain.ActionCustom:
		if schedule.CustomTitle != nil && *schedule.CustomTitle != "" {
			return *schedule.CustomTitle + " " + plantName
		}
		return "Care for " + plantName
	default:
		return "Care for " + plantName
	}
}

const icalTimeLayout = "20060102T150405Z"

// writeLine terminates lines with CRLF as RFC 5545 requires.
func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString("\r\n")
}

func escapeICalText(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}
