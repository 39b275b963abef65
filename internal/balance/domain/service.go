package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	memberdomain "github.com/kassenwart/kassenwart/internal/member/domain"
	"github.com/shopspring/decimal"
)

// Options bound the balance aggregation. Nil cutoffs default to now; nil
// starts leave the window open at the lower end.
type Options struct {
	LiabilityCutoff *time.Time
	AssetCutoff     *time.Time
	LiabilityStart  *time.Time
	AssetStart      *time.Time
}

type SnapshotOptions struct {
	Reference  *string
	SkipIfZero bool
}

type Service interface {
	// Balance returns asset minus liability over the member's active
	// fees-receivable bookings. No matching bookings yields zero.
	Balance(ctx context.Context, memberID snowflake.ID, opts Options) (decimal.Decimal, error)

	// Snapshot persists the balance over [start, end] as a MemberBalance.
	// A window overlapping an existing snapshot for the member is
	// rejected with ErrOverlappingBalanceWindow. Returns nil without
	// writing when the amount is zero and SkipIfZero is set.
	Snapshot(ctx context.Context, memberID snowflake.ID, start, end time.Time, opts SnapshotOptions) (*memberdomain.MemberBalance, error)

	// StatuteBarredDebt returns the liability portion of the balance
	// whose collection window has lapsed, floored at zero.
	StatuteBarredDebt(ctx context.Context, memberID snowflake.ID, futureLimitMonths int) (decimal.Decimal, error)

	// DonationBalance sums the member's donation credits up to now.
	DonationBalance(ctx context.Context, memberID snowflake.ID) (decimal.Decimal, error)
}
