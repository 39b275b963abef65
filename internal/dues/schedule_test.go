package dues

import (
	"testing"
	"time"

	memberdomain "github.com/kassenwart/kassenwart/internal/member/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSchedule_QuarterlyOpenEnded(t *testing.T) {
	membership := memberdomain.Membership{
		Start:    date(2023, 1, 1),
		End:      nil,
		Amount:   decimal.NewFromInt(30),
		Interval: memberdomain.FeeIntervalQuarterly,
	}

	window, schedule, err := Schedule(membership, date(2023, 8, 1), nil)
	require.NoError(t, err)

	assert.Equal(t, date(2023, 1, 1), window.Start)
	assert.Equal(t, date(2023, 8, 1), window.End)

	require.Len(t, schedule, 3)
	assert.Equal(t, date(2023, 1, 1), schedule[0].Date)
	assert.Equal(t, date(2023, 4, 1), schedule[1].Date)
	assert.Equal(t, date(2023, 7, 1), schedule[2].Date)
	for _, due := range schedule {
		assert.True(t, due.Amount.Equal(decimal.NewFromInt(30)))
	}
}

func TestSchedule_BoundedEndInclusive(t *testing.T) {
	end := date(2023, 7, 1)
	membership := memberdomain.Membership{
		Start:    date(2023, 1, 1),
		End:      &end,
		Amount:   decimal.NewFromInt(10),
		Interval: memberdomain.FeeIntervalQuarterly,
	}

	_, schedule, err := Schedule(membership, date(2024, 3, 15), nil)
	require.NoError(t, err)

	// range_end equals a due date: that due is still emitted.
	require.Len(t, schedule, 3)
	assert.Equal(t, date(2023, 7, 1), schedule[2].Date)
}

func TestSchedule_AccountingStartClampsWindow(t *testing.T) {
	from := date(2023, 2, 15)
	membership := memberdomain.Membership{
		Start:    date(2022, 1, 1),
		Amount:   decimal.NewFromInt(20),
		Interval: memberdomain.FeeIntervalMonthly,
	}

	window, schedule, err := Schedule(membership, date(2023, 4, 1), &from)
	require.NoError(t, err)

	assert.Equal(t, from, window.Start)
	require.NotEmpty(t, schedule)
	// Stepping restarts at the clamped start, not the membership start.
	assert.Equal(t, date(2023, 2, 15), schedule[0].Date)
	assert.Equal(t, date(2023, 3, 15), schedule[1].Date)
}

func TestSchedule_StartDayMissingInCurrentMonth(t *testing.T) {
	membership := memberdomain.Membership{
		Start:    date(2023, 1, 31),
		Amount:   decimal.NewFromInt(5),
		Interval: memberdomain.FeeIntervalMonthly,
	}

	// Day 31 does not exist in April; the window falls back to April 30.
	window, _, err := Schedule(membership, date(2023, 4, 10), nil)
	require.NoError(t, err)
	assert.Equal(t, date(2023, 4, 30), window.End)
}

func TestSchedule_MonthEndSteppingClamps(t *testing.T) {
	membership := memberdomain.Membership{
		Start:    date(2023, 1, 31),
		Amount:   decimal.NewFromInt(5),
		Interval: memberdomain.FeeIntervalMonthly,
	}

	_, schedule, err := Schedule(membership, date(2023, 4, 10), nil)
	require.NoError(t, err)

	require.True(t, len(schedule) >= 3)
	assert.Equal(t, date(2023, 1, 31), schedule[0].Date)
	assert.Equal(t, date(2023, 2, 28), schedule[1].Date)
	assert.Equal(t, date(2023, 3, 28), schedule[2].Date)
}

func TestSchedule_InvalidPeriod(t *testing.T) {
	end := date(2022, 1, 1)
	membership := memberdomain.Membership{
		Start:    date(2023, 1, 1),
		End:      &end,
		Amount:   decimal.NewFromInt(30),
		Interval: memberdomain.FeeIntervalQuarterly,
	}

	_, _, err := Schedule(membership, date(2023, 8, 1), nil)
	assert.ErrorIs(t, err, memberdomain.ErrInvalidMembershipPeriod)
}

func TestSchedule_NegativeAmount(t *testing.T) {
	membership := memberdomain.Membership{
		Start:    date(2023, 1, 1),
		Amount:   decimal.NewFromInt(-1),
		Interval: memberdomain.FeeIntervalMonthly,
	}

	_, _, err := Schedule(membership, date(2023, 8, 1), nil)
	assert.ErrorIs(t, err, memberdomain.ErrInvalidMembershipAmount)
}

func TestSchedule_InvalidInterval(t *testing.T) {
	membership := memberdomain.Membership{
		Start:    date(2023, 1, 1),
		Amount:   decimal.NewFromInt(30),
		Interval: 5,
	}

	_, _, err := Schedule(membership, date(2023, 8, 1), nil)
	assert.ErrorIs(t, err, memberdomain.ErrInvalidFeeInterval)
}

func TestMerge_CollapsesIdenticalDues(t *testing.T) {
	a := []Due{
		{Date: date(2023, 1, 1), Amount: decimal.NewFromInt(30)},
		{Date: date(2023, 4, 1), Amount: decimal.NewFromInt(30)},
	}
	b := []Due{
		{Date: date(2023, 1, 1), Amount: decimal.NewFromInt(30)},
		{Date: date(2023, 1, 1), Amount: decimal.NewFromInt(15)},
	}

	set := Merge(a, b)
	assert.Len(t, set, 3)
}

func TestSorted_DateThenAmount(t *testing.T) {
	set := Merge([]Due{
		{Date: date(2023, 4, 1), Amount: decimal.NewFromInt(30)},
		{Date: date(2023, 1, 1), Amount: decimal.NewFromInt(30)},
		{Date: date(2023, 1, 1), Amount: decimal.NewFromInt(15)},
	})

	sorted := Sorted(set)
	require.Len(t, sorted, 3)
	assert.Equal(t, date(2023, 1, 1), sorted[0].Date)
	assert.True(t, sorted[0].Amount.Equal(decimal.NewFromInt(15)))
	assert.True(t, sorted[1].Amount.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, date(2023, 4, 1), sorted[2].Date)
}

func TestDueKey_NormalizesAmountScale(t *testing.T) {
	a := Due{Date: date(2023, 1, 1), Amount: decimal.NewFromInt(30)}
	b := Due{Date: date(2023, 1, 1), Amount: decimal.RequireFromString("30.00")}
	assert.Equal(t, a.Key(), b.Key())
}
