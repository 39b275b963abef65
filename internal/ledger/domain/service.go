package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kassenwart/kassenwart/internal/dues"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Posting is one side of a double-entry pair passed to CreateTransaction.
type Posting struct {
	Account  AccountCode
	Side     Side
	MemberID *snowflake.ID
	Amount   decimal.Decimal
}

// DueBooking is an active due-liability booking found in the ledger,
// keyed by its (value date, amount) pair during reconciliation.
type DueBooking struct {
	BookingID     snowflake.ID
	TransactionID snowflake.ID
	ValueDate     time.Time
	Amount        decimal.Decimal
}

func (b DueBooking) Due() dues.Due {
	return dues.Due{Date: b.ValueDate, Amount: b.Amount}
}

type Service interface {
	// WithTx returns a view of the service running against the given
	// transaction handle, so callers can span several ledger operations
	// atomically.
	WithTx(tx *gorm.DB) Service

	// CreateTransaction appends a transaction with balanced postings.
	CreateTransaction(ctx context.Context, valueDate, bookingTime time.Time, memo string, postings []Posting) (snowflake.ID, error)

	// Reverse cancels a transaction by appending a reversing transaction
	// linked to it. The original record is retained and becomes inactive.
	Reverse(ctx context.Context, transactionID snowflake.ID, memo string, bookingTime time.Time) (snowflake.ID, error)

	// DueBookings returns the member's active due-liability bookings whose
	// value date is >= from (when set) and falls inside at least one of
	// the windows. With no windows only the from bound applies.
	DueBookings(ctx context.Context, memberID snowflake.ID, windows []dues.Window, from *time.Time) (map[dues.Key]DueBooking, error)

	// StrayDueBookings is DueBookings with the window filter inverted:
	// active due-liability bookings falling inside none of the windows.
	StrayDueBookings(ctx context.Context, memberID snowflake.ID, windows []dues.Window, from *time.Time) ([]DueBooking, error)

	// SumBookings totals the member's active bookings on one side of an
	// account, value date <= cutoff and >= start when given. No matching
	// bookings yields zero.
	SumBookings(ctx context.Context, memberID snowflake.ID, code AccountCode, side Side, cutoff time.Time, start *time.Time) (decimal.Decimal, error)

	// LastFeeActivity returns the most recent value date of any active
	// booking touching the fees receivable account for the member.
	LastFeeActivity(ctx context.Context, memberID snowflake.ID) (*time.Time, error)
}

var (
	ErrEmptyPostings       = errors.New("empty_postings")
	ErrUnbalancedPostings  = errors.New("unbalanced_postings")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidSide         = errors.New("invalid_side")
	ErrUnknownAccount      = errors.New("unknown_account")
	ErrTransactionNotFound = errors.New("transaction_not_found")
	ErrAlreadyReversed     = errors.New("already_reversed")
)

// ValidateBalanced checks that debit and credit totals match.
func ValidateBalanced(postings []Posting) error {
	if len(postings) == 0 {
		return ErrEmptyPostings
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for _, p := range postings {
		if p.Amount.IsNegative() || p.Amount.IsZero() {
			return ErrInvalidAmount
		}
		switch p.Side {
		case SideDebit:
			debit = debit.Add(p.Amount)
		case SideCredit:
			credit = credit.Add(p.Amount)
		default:
			return ErrInvalidSide
		}
	}
	if !debit.Equal(credit) {
		return ErrUnbalancedPostings
	}
	return nil
}
