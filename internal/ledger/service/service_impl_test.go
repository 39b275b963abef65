package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/kassenwart/kassenwart/internal/dues"
	ledgerdomain "github.com/kassenwart/kassenwart/internal/ledger/domain"
	"github.com/kassenwart/kassenwart/internal/seed"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupLedgerService(t *testing.T) (ledgerdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.Account{},
		&ledgerdomain.Transaction{},
		&ledgerdomain.Booking{},
	))

	node := mustNode(t)
	require.NoError(t, seed.EnsureSpecialAccounts(db, node))

	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	return svc, db, node
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func duePostings(memberID snowflake.ID, amount decimal.Decimal) []ledgerdomain.Posting {
	return []ledgerdomain.Posting{
		{Account: ledgerdomain.AccountCodeFees, Side: ledgerdomain.SideCredit, MemberID: &memberID, Amount: amount},
		{Account: ledgerdomain.AccountCodeFeesReceivable, Side: ledgerdomain.SideDebit, MemberID: &memberID, Amount: amount},
	}
}

func postDue(t *testing.T, svc ledgerdomain.Service, memberID snowflake.ID, valueDate time.Time, amount decimal.Decimal) snowflake.ID {
	t.Helper()
	txID, err := svc.CreateTransaction(context.Background(), valueDate, valueDate, "Membership due", duePostings(memberID, amount))
	require.NoError(t, err)
	return txID
}

func TestCreateTransaction_RejectsInvalidPostings(t *testing.T) {
	svc, _, node := setupLedgerService(t)
	memberID := node.Generate()
	ctx := context.Background()
	day := date(2023, 1, 1)

	_, err := svc.CreateTransaction(ctx, day, day, "empty", nil)
	assert.ErrorIs(t, err, ledgerdomain.ErrEmptyPostings)

	_, err = svc.CreateTransaction(ctx, day, day, "unbalanced", []ledgerdomain.Posting{
		{Account: ledgerdomain.AccountCodeFees, Side: ledgerdomain.SideCredit, MemberID: &memberID, Amount: decimal.NewFromInt(20)},
		{Account: ledgerdomain.AccountCodeFeesReceivable, Side: ledgerdomain.SideDebit, MemberID: &memberID, Amount: decimal.NewFromInt(10)},
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrUnbalancedPostings)

	_, err = svc.CreateTransaction(ctx, day, day, "zero", []ledgerdomain.Posting{
		{Account: ledgerdomain.AccountCodeFees, Side: ledgerdomain.SideCredit, MemberID: &memberID, Amount: decimal.Zero},
		{Account: ledgerdomain.AccountCodeFeesReceivable, Side: ledgerdomain.SideDebit, MemberID: &memberID, Amount: decimal.Zero},
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)
}

func TestCreateTransaction_PersistsSingleSidedBookings(t *testing.T) {
	svc, db, node := setupLedgerService(t)
	memberID := node.Generate()

	txID := postDue(t, svc, memberID, date(2023, 1, 1), decimal.NewFromInt(30))

	var bookings []ledgerdomain.Booking
	require.NoError(t, db.Where("transaction_id = ?", txID).Find(&bookings).Error)
	require.Len(t, bookings, 2)
	for _, booking := range bookings {
		oneSided := (booking.DebitAccountID == nil) != (booking.CreditAccountID == nil)
		assert.True(t, oneSided)
		require.NotNil(t, booking.MemberID)
		assert.Equal(t, memberID, *booking.MemberID)
		assert.True(t, booking.Amount.Equal(decimal.NewFromInt(30)))
	}
}

func TestReverse_LinksOneHopAndRefusesSecondReversal(t *testing.T) {
	svc, db, node := setupLedgerService(t)
	memberID := node.Generate()
	ctx := context.Background()

	txID := postDue(t, svc, memberID, date(2023, 1, 1), decimal.NewFromInt(30))

	reversalID, err := svc.Reverse(ctx, txID, "Due amount canceled because of change in membership amount", date(2023, 2, 1))
	require.NoError(t, err)

	var original, reversal ledgerdomain.Transaction
	require.NoError(t, db.First(&original, "id = ?", txID).Error)
	require.NoError(t, db.First(&reversal, "id = ?", reversalID).Error)

	require.NotNil(t, original.ReversedByID)
	assert.Equal(t, reversalID, *original.ReversedByID)
	assert.False(t, original.Active())

	require.NotNil(t, reversal.ReversesID)
	assert.Equal(t, txID, *reversal.ReversesID)
	assert.True(t, reversal.Active())

	// A reversal carries no bookings of its own; aggregations exclude the
	// original by its reversed_by_id marker instead.
	var count int64
	require.NoError(t, db.Model(&ledgerdomain.Booking{}).Where("transaction_id = ?", reversalID).Count(&count).Error)
	assert.Zero(t, count)

	_, err = svc.Reverse(ctx, txID, "again", date(2023, 3, 1))
	assert.ErrorIs(t, err, ledgerdomain.ErrAlreadyReversed)

	_, err = svc.Reverse(ctx, node.Generate(), "missing", date(2023, 3, 1))
	assert.ErrorIs(t, err, ledgerdomain.ErrTransactionNotFound)
}

func TestDueBookings_WindowedActiveOnly(t *testing.T) {
	svc, _, node := setupLedgerService(t)
	memberID := node.Generate()
	other := node.Generate()
	ctx := context.Background()
	amount := decimal.NewFromInt(20)

	postDue(t, svc, memberID, date(2023, 1, 1), amount)
	reversedTx := postDue(t, svc, memberID, date(2023, 2, 1), amount)
	postDue(t, svc, memberID, date(2023, 6, 1), amount)
	postDue(t, svc, other, date(2023, 1, 1), amount)

	_, err := svc.Reverse(ctx, reversedTx, "canceled", date(2023, 2, 2))
	require.NoError(t, err)

	windows := []dues.Window{{Start: date(2023, 1, 1), End: date(2023, 3, 31)}}
	posted, err := svc.DueBookings(ctx, memberID, windows, nil)
	require.NoError(t, err)

	// Only the active January booking falls inside the window; the
	// reversed February one no longer counts and June is outside.
	require.Len(t, posted, 1)
	january := dues.Due{Date: date(2023, 1, 1), Amount: amount}
	booking, ok := posted[january.Key()]
	require.True(t, ok)
	assert.Equal(t, date(2023, 1, 1), booking.ValueDate)
	assert.True(t, booking.Amount.Equal(amount))
}

func TestDueBookings_FromBoundWithoutWindows(t *testing.T) {
	svc, _, node := setupLedgerService(t)
	memberID := node.Generate()
	ctx := context.Background()
	amount := decimal.NewFromInt(20)

	postDue(t, svc, memberID, date(2022, 11, 1), amount)
	postDue(t, svc, memberID, date(2023, 1, 1), amount)

	from := date(2023, 1, 1)
	posted, err := svc.DueBookings(ctx, memberID, nil, &from)
	require.NoError(t, err)

	require.Len(t, posted, 1)
	_, ok := posted[dues.Due{Date: date(2023, 1, 1), Amount: amount}.Key()]
	assert.True(t, ok)
}

func TestStrayDueBookings_InvertsWindowFilter(t *testing.T) {
	svc, _, node := setupLedgerService(t)
	memberID := node.Generate()
	ctx := context.Background()
	amount := decimal.NewFromInt(20)

	postDue(t, svc, memberID, date(2023, 1, 1), amount)
	postDue(t, svc, memberID, date(2023, 6, 1), amount)

	windows := []dues.Window{{Start: date(2023, 1, 1), End: date(2023, 3, 31)}}
	strays, err := svc.StrayDueBookings(ctx, memberID, windows, nil)
	require.NoError(t, err)

	require.Len(t, strays, 1)
	assert.Equal(t, date(2023, 6, 1), strays[0].ValueDate)
}

func TestSumBookings_ActiveOnlyWithCutoff(t *testing.T) {
	svc, _, node := setupLedgerService(t)
	memberID := node.Generate()
	ctx := context.Background()

	postDue(t, svc, memberID, date(2023, 1, 1), decimal.NewFromInt(30))
	reversedTx := postDue(t, svc, memberID, date(2023, 2, 1), decimal.NewFromInt(30))
	postDue(t, svc, memberID, date(2023, 6, 1), decimal.NewFromInt(30))

	_, err := svc.Reverse(ctx, reversedTx, "canceled", date(2023, 2, 2))
	require.NoError(t, err)

	// Debits on fees receivable: January and June survive, February is
	// reversed, June is past the cutoff.
	total, err := svc.SumBookings(ctx, memberID,
		ledgerdomain.AccountCodeFeesReceivable, ledgerdomain.SideDebit,
		date(2023, 3, 31), nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(30)), "got %s", total)

	total, err = svc.SumBookings(ctx, node.Generate(),
		ledgerdomain.AccountCodeFeesReceivable, ledgerdomain.SideDebit,
		date(2023, 3, 31), nil)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestLastFeeActivity(t *testing.T) {
	svc, _, node := setupLedgerService(t)
	memberID := node.Generate()
	ctx := context.Background()

	last, err := svc.LastFeeActivity(ctx, memberID)
	require.NoError(t, err)
	assert.Nil(t, last)

	postDue(t, svc, memberID, date(2023, 1, 1), decimal.NewFromInt(30))
	postDue(t, svc, memberID, date(2023, 4, 1), decimal.NewFromInt(30))

	last, err = svc.LastFeeActivity(ctx, memberID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, date(2023, 4, 1), last.UTC())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
