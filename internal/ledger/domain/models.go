package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Side marks which account side a booking touches.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

type AccountCode string

const (
	// AccountCodeFees is the income account membership dues are credited to.
	AccountCodeFees AccountCode = "fees"
	// AccountCodeFeesReceivable is the asset account tracking dues owed and
	// payments received per member.
	AccountCodeFeesReceivable AccountCode = "fees_receivable"
	// AccountCodeDonations collects donation credits.
	AccountCodeDonations AccountCode = "donations"
)

// Account is a chart-of-accounts entry.
type Account struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Code      AccountCode  `gorm:"type:text;not null;uniqueIndex"`
	Name      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// Transaction is an append-only ledger record. It is never edited or
// deleted; cancelling one means creating a linked reversing transaction.
// A transaction is active while ReversedByID is nil. The link is one hop:
// a reversal is itself a plain transaction and is never traversed further.
type Transaction struct {
	ID           snowflake.ID  `gorm:"primaryKey"`
	ValueDate    time.Time     `gorm:"not null;index"`
	BookingTime  time.Time     `gorm:"not null"`
	Memo         string        `gorm:"type:text"`
	ReversedByID *snowflake.ID `gorm:"index"`
	ReversesID   *snowflake.ID `gorm:"index"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "ledger_transactions" }

// Active reports whether the transaction still counts toward balances.
func (t Transaction) Active() bool { return t.ReversedByID == nil }

// Booking moves an amount onto exactly one side of one account. A due
// posting is the pair: credit fees, debit fees receivable, both tagged
// with the owing member.
type Booking struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	TransactionID   snowflake.ID    `gorm:"not null;index"`
	DebitAccountID  *snowflake.ID   `gorm:"index"`
	CreditAccountID *snowflake.ID   `gorm:"index"`
	MemberID        *snowflake.ID   `gorm:"index"`
	Amount          decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Booking) TableName() string { return "bookings" }
