// Package dues derives the theoretically-owed dues of a membership from
// its recurring fee schedule.
package dues

import (
	"sort"
	"time"

	memberdomain "github.com/kassenwart/kassenwart/internal/member/domain"
	"github.com/shopspring/decimal"
)

// Due is one theoretically-owed (date, amount) pair.
type Due struct {
	Date   time.Time
	Amount decimal.Decimal
}

// Key returns a comparable identity for set operations. Amounts are
// normalized to two fractional digits, dates to their calendar day.
func (d Due) Key() Key {
	return Key{
		Date:   d.Date.UTC().Format("2006-01-02"),
		Amount: d.Amount.StringFixed(2),
	}
}

type Key struct {
	Date   string
	Amount string
}

// Window is the effective [Start, End] range a membership generates dues
// in, both bounds inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Schedule produces every due a membership generates up to now, together
// with the effective window used. The window start is the membership
// start clamped to the accounting start; an open-ended membership runs to
// the day-of-month of its start within now's month, falling back to the
// last day of the month when that day does not exist.
func Schedule(m memberdomain.Membership, now time.Time, from *time.Time) (Window, []Due, error) {
	if !m.Interval.Valid() {
		return Window{}, nil, memberdomain.ErrInvalidFeeInterval
	}
	if m.Amount.IsNegative() {
		return Window{}, nil, memberdomain.ErrInvalidMembershipAmount
	}
	if m.End != nil && dateOf(m.Start).After(dateOf(*m.End)) {
		return Window{}, nil, memberdomain.ErrInvalidMembershipPeriod
	}

	start := dateOf(m.Start)
	if from != nil && start.Before(dateOf(*from)) {
		start = dateOf(*from)
	}

	var end time.Time
	if m.End != nil {
		end = dateOf(*m.End)
	} else {
		end = currentPeriodEnd(dateOf(m.Start), now)
	}

	window := Window{Start: start, End: end}

	var schedule []Due
	for date := start; !date.After(end); date = AddMonths(date, m.Interval.Months()) {
		schedule = append(schedule, Due{Date: date, Amount: m.Amount})
	}
	return window, schedule, nil
}

// Merge unions the dues of several memberships into one set. Two
// memberships producing the same (date, amount) pair collapse to a
// single due.
func Merge(schedules ...[]Due) map[Key]Due {
	set := make(map[Key]Due)
	for _, schedule := range schedules {
		for _, due := range schedule {
			set[due.Key()] = due
		}
	}
	return set
}

// Sorted returns dues ordered by (date, amount); reversal and posting
// sequences stay reproducible across runs.
func Sorted(set map[Key]Due) []Due {
	out := make([]Due, 0, len(set))
	for _, due := range set {
		out = append(out, due)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Amount.Cmp(out[j].Amount) < 0
	})
	return out
}

// currentPeriodEnd resolves the implicit end of an open membership: the
// same day-of-month as the membership start within now's month, or the
// last day of now's month when that day does not exist there.
func currentPeriodEnd(start, now time.Time) time.Time {
	year, month, _ := now.UTC().Date()
	if day := start.Day(); day <= daysIn(year, month) {
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(year, month, daysIn(year, month), 0, 0, 0, 0, time.UTC)
}

// AddMonths steps by whole months, clamping to the last day of the
// target month instead of rolling over (Jan 31 + 1 month = Feb 28).
func AddMonths(date time.Time, months int) time.Time {
	year, month, day := date.UTC().Date()
	month += time.Month(months)
	for month > 12 {
		month -= 12
		year++
	}
	for month < 1 {
		month += 12
		year--
	}
	if day > daysIn(year, month) {
		day = daysIn(year, month)
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func dateOf(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
