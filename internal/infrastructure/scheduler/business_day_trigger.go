// Package scheduler decides when reconciliation runs execute. The finance
// team closes against the Brazilian business calendar, so runs fire on
// configured business-day ordinals of the month rather than plain calendar
// days.
package scheduler

import (
	"time"
)

// BusinessDayTrigger implements recon.RunTrigger. It fires when "now" falls
// on one of the configured business-day ordinals of its month, where a
// business day is any weekday not in the injected holiday list.
type BusinessDayTrigger struct {
	runDays  map[int]bool
	holidays map[string]bool
}

// NewBusinessDayTrigger creates a trigger that fires on the given
// business-day ordinals (1 = first business day of the month). Holidays are
// compared by calendar date; the caller supplies the relevant list, the
// trigger has no calendar baked in.
func NewBusinessDayTrigger(runDays []int, holidays []time.Time) *BusinessDayTrigger {
	t := &BusinessDayTrigger{
		runDays:  make(map[int]bool, len(runDays)),
		holidays: make(map[string]bool, len(holidays)),
	}
	for _, d := range runDays {
		t.runDays[d] = true
	}
	for _, h := range holidays {
		t.holidays[dateKey(h)] = true
	}
	return t
}

// ShouldRun reports whether a run should execute at the given instant.
func (t *BusinessDayTrigger) ShouldRun(now time.Time) bool {
	if !t.isBusinessDay(now) {
		return false
	}
	return t.runDays[t.businessDayOrdinal(now)]
}

// businessDayOrdinal counts business days from the start of now's month up
// to and including now.
func (t *BusinessDayTrigger) businessDayOrdinal(now time.Time) int {
	ordinal := 0
	day := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for !day.After(now) {
		if t.isBusinessDay(day) {
			ordinal++
		}
		day = day.AddDate(0, 0, 1)
	}
	return ordinal
}

func (t *BusinessDayTrigger) isBusinessDay(day time.Time) bool {
	if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		return false
	}
	return !t.holidays[dateKey(day)]
}

func dateKey(day time.Time) string {
	return day.Format("2006-01-02")
}
