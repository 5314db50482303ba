package services

import (
	"fmt"
	"time"

	"ledgerbook/internal/core"
)

// DuenessChecker decides whether a recurring template is due at now, given
// when it last ran. A zero lastExecution means it never ran. Nothing is due
// before the template's start date.
type DuenessChecker interface {
	IsDue(lastExecution, now time.Time, startDate core.Date) bool
}

// DailyChecker is due once per calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastExecution, now time.Time, startDate core.Date) bool {
	if beforeStart(now, startDate) {
		return false
	}
	if lastExecution.IsZero() {
		return true
	}
	return !sameDay(lastExecution, now)
}

// WeeklyChecker is due when seven days have passed since the last run.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastExecution, now time.Time, startDate core.Date) bool {
	if beforeStart(now, startDate) {
		return false
	}
	if lastExecution.IsZero() {
		return true
	}
	return now.Sub(lastExecution) >= 7*24*time.Hour
}

// MonthlyChecker is due once per month, from the start date's day of the
// month onwards. Days past the end of a short month clamp to its last day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastExecution, now time.Time, startDate core.Date) bool {
	if beforeStart(now, startDate) {
		return false
	}
	if lastExecution.IsZero() {
		return true
	}
	if lastExecution.Year() == now.Year() && lastExecution.Month() == now.Month() {
		return false
	}
	return now.Day() >= clampDay(now.Year(), now.Month(), startDate.Day())
}

// YearlyChecker is due once per year, from the start date's month and day
// onwards. 29 February falls back to 28 February in common years.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(lastExecution, now time.Time, startDate core.Date) bool {
	if beforeStart(now, startDate) {
		return false
	}
	if lastExecution.IsZero() {
		return true
	}
	if lastExecution.Year() == now.Year() {
		return false
	}

	target := time.Month(startDate.Month())
	switch {
	case now.Month() < target:
		return false
	case now.Month() > target:
		return true
	default:
		return now.Day() >= clampDay(now.Year(), target, startDate.Day())
	}
}

func beforeStart(now time.Time, startDate core.Date) bool {
	if startDate.IsZero() {
		return false
	}
	start := time.Date(startDate.Year(), time.Month(startDate.Month()), startDate.Day(), 0, 0, 0, 0, now.Location())
	return now.Before(start)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// clampDay returns day, or the last day of the month if it has fewer days.
func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

var duenessStrategies = map[core.RepetitionTypes]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for a repetition type.
func GetDuenessChecker(every core.RepetitionTypes) (DuenessChecker, error) {
	checker, ok := duenessStrategies[every]
	if !ok {
		return nil, fmt.Errorf("unknown repetition type: %s", every)
	}
	return checker, nil
}
