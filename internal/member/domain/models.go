package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// FeeInterval is the number of months between two dues of a membership.
type FeeInterval int

const (
	FeeIntervalMonthly   FeeInterval = 1
	FeeIntervalQuarterly FeeInterval = 3
	FeeIntervalBiannual  FeeInterval = 6
	FeeIntervalAnnual    FeeInterval = 12
)

func (i FeeInterval) Valid() bool {
	switch i {
	case FeeIntervalMonthly, FeeIntervalQuarterly, FeeIntervalBiannual, FeeIntervalAnnual:
		return true
	default:
		return false
	}
}

func (i FeeInterval) Months() int { return int(i) }

// Member is the identity dues are owed by. Administrative profile data
// lives outside this service; only identity and contact basics are kept.
type Member struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Number    string       `gorm:"type:text;index"`
	Name      string       `gorm:"type:text"`
	Email     string       `gorm:"type:text"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "members" }

// Membership is one fee-paying period of a member. End == nil means the
// membership is ongoing. Start must not be after End when End is set.
type Membership struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	MemberID  snowflake.ID    `gorm:"not null;index;constraint:OnDelete:CASCADE"`
	Start     time.Time       `gorm:"not null"`
	End       *time.Time      `gorm:""`
	Amount    decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Interval  FeeInterval     `gorm:"not null"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "memberships" }

// ActiveOn reports whether the membership covers the given date.
func (m Membership) ActiveOn(on time.Time) bool {
	if on.Before(m.Start) {
		return false
	}
	return m.End == nil || !on.After(*m.End)
}

type MemberBalanceState string

const (
	MemberBalanceStateUnpaid  MemberBalanceState = "unpaid"
	MemberBalanceStatePartial MemberBalanceState = "partial"
	MemberBalanceStatePaid    MemberBalanceState = "paid"
)

// MemberBalance is a point-in-time statement of the amount owed over a
// period. Windows must not overlap per member; snapshots are created via
// the balance calculator, never by the reconciliation engine.
type MemberBalance struct {
	ID        snowflake.ID       `gorm:"primaryKey"`
	MemberID  snowflake.ID       `gorm:"not null;index"`
	Reference *string            `gorm:"type:text;uniqueIndex"`
	Amount    decimal.Decimal    `gorm:"type:numeric(10,2);not null"`
	Start     time.Time          `gorm:"column:period_start;not null"`
	End       time.Time          `gorm:"column:period_end;not null"`
	State     MemberBalanceState `gorm:"type:text;not null;default:'unpaid'"`
	CreatedAt time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (MemberBalance) TableName() string { return "member_balances" }
