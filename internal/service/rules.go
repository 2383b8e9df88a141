package service

import (
	"fmt"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
)

// ParseLocalTime parses a wall-clock time of day in "15:04" form.
func ParseLocalTime(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad time of day %q", domain.ErrInvalidInput, s)
	}
	return t.Hour(), t.Minute(), nil
}

// NextDue computes the next occurrence of a schedule, in UTC and
// strictly after now. lastDone is the most recent completed occurrence,
// or nil when the schedule has never been completed.
func NextDue(s domain.Schedule, lastDone *time.Time, loc *time.Location, now time.Time) (time.Time, error) {
	switch s.Type {
	case domain.ScheduleInterval:
		if s.IntervalDays == nil || *s.IntervalDays < 1 {
			return time.Time{}, fmt.Errorf("%w: interval schedule %d has no interval", domain.ErrInvalidInput, s.ID)
		}
		return nextByInterval(lastDone, *s.IntervalDays, s.LocalTime, loc, now)
	case domain.ScheduleWeekly:
		if s.WeeklyMask == nil {
			return time.Time{}, fmt.Errorf("%w: weekly schedule %d has no mask", domain.ErrInvalidInput, s.ID)
		}
		return nextByWeekly(lastDone, *s.WeeklyMask, s.LocalTime, loc, now)
	default:
		return time.Time{}, fmt.Errorf("%w: unknown schedule type %q", domain.ErrInvalidInput, s.Type)
	}
}

// nextByInterval advances from the last completed occurrence (or from
// now, for a fresh schedule) by whole multiples of intervalDays, landing
// on the schedule's local wall-clock time in loc. Local times that do
// not exist on a DST transition day shift forward with the clock.
func nextByInterval(lastDone *time.Time, intervalDays int, localTime string, loc *time.Location, now time.Time) (time.Time, error) {
	hour, minute, err := ParseLocalTime(localTime)
	if err != nil {
		return time.Time{}, err
	}

	base := now.In(loc)
	if lastDone != nil {
		base = lastDone.In(loc)
	}

	year, month, day := base.Date()
	target := time.Date(year, month, day+intervalDays, hour, minute, 0, 0, loc)
	if target.After(now) {
		return target.UTC(), nil
	}

	// Jump most of the lag in one step, then settle with single steps.
	lagDays := int(now.Sub(target).Hours() / 24)
	if steps := lagDays / intervalDays; steps > 0 {
		target = target.AddDate(0, 0, steps*intervalDays)
	}
	for !target.After(now) {
		target = target.AddDate(0, 0, intervalDays)
	}
	return target.UTC(), nil
}

// nextByWeekly finds the next weekday selected by the mask (bit 0 is
// Monday, bit 6 is Sunday) at the schedule's local wall-clock time,
// strictly after now and after the last completed occurrence.
func nextByWeekly(lastDone *time.Time, weeklyMask int, localTime string, loc *time.Location, now time.Time) (time.Time, error) {
	if weeklyMask <= 0 || weeklyMask > 0x7F {
		return time.Time{}, fmt.Errorf("%w: weekly mask %d out of range", domain.ErrInvalidInput, weeklyMask)
	}
	hour, minute, err := ParseLocalTime(localTime)
	if err != nil {
		return time.Time{}, err
	}

	nowLocal := now.In(loc)
	year, month, day := nowLocal.Date()
	for i := 0; i < 14; i++ {
		candidate := time.Date(year, month, day+i, hour, minute, 0, 0, loc)
		if !maskHasDay(weeklyMask, candidate.Weekday()) {
			continue
		}
		if !candidate.After(now) {
			continue
		}
		if lastDone != nil && !candidate.After(*lastDone) {
			continue
		}
		return candidate.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: no weekday selected by mask %d", domain.ErrInvalidInput, weeklyMask)
}

func maskHasDay(mask int, weekday time.Weekday) bool {
	// time.Weekday counts from Sunday; the mask counts from Monday.
	idx := (int(weekday) + 6) % 7
	return mask&(1<<idx) != 0
}

// WeekdayMask builds a mask from Monday-first day indexes (0..6).
func WeekdayMask(days ...int) (int, error) {
	mask := 0
	for _, d := range days {
		if d < 0 || d > 6 {
			return 0, fmt.Errorf("%w: weekday index %d out of range", domain.ErrInvalidInput, d)
		}
		mask |= 1 << d
	}
	if mask == 0 {
		return 0, fmt.Errorf("%w: no weekdays given", domain.ErrInvalidInput)
	}
	return mask, nil
}
