package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kassenwart/kassenwart/internal/dues"
	ledgerdomain "github.com/kassenwart/kassenwart/internal/ledger/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p ServiceParam) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

func (s *Service) WithTx(tx *gorm.DB) ledgerdomain.Service {
	return &Service{db: tx, log: s.log, genID: s.genID}
}

func (s *Service) CreateTransaction(ctx context.Context, valueDate, bookingTime time.Time, memo string, postings []ledgerdomain.Posting) (snowflake.ID, error) {
	if err := ledgerdomain.ValidateBalanced(postings); err != nil {
		return 0, err
	}

	transactionID := s.genID.Generate()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO ledger_transactions (
				id, value_date, booking_time, memo, reversed_by_id, reverses_id, created_at
			) VALUES (?, ?, ?, ?, NULL, NULL, ?)`,
			transactionID,
			valueDate.UTC(),
			bookingTime.UTC(),
			memo,
			now,
		).Error; err != nil {
			return fmt.Errorf("insert ledger transaction: %w", err)
		}

		for _, posting := range postings {
			account, err := s.accountByCode(ctx, tx, posting.Account)
			if err != nil {
				return err
			}

			var debitAccountID, creditAccountID *snowflake.ID
			if posting.Side == ledgerdomain.SideDebit {
				debitAccountID = &account.ID
			} else {
				creditAccountID = &account.ID
			}

			if err := tx.WithContext(ctx).Exec(
				`INSERT INTO bookings (
					id, transaction_id, debit_account_id, credit_account_id, member_id, amount, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				s.genID.Generate(),
				transactionID,
				debitAccountID,
				creditAccountID,
				posting.MemberID,
				posting.Amount,
				now,
			).Error; err != nil {
				return fmt.Errorf("insert booking: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return transactionID, nil
}

func (s *Service) Reverse(ctx context.Context, transactionID snowflake.ID, memo string, bookingTime time.Time) (snowflake.ID, error) {
	reversalID := s.genID.Generate()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var original ledgerdomain.Transaction
		if err := tx.WithContext(ctx).First(&original, "id = ?", transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledgerdomain.ErrTransactionNotFound
			}
			return err
		}
		if original.ReversedByID != nil {
			return ledgerdomain.ErrAlreadyReversed
		}

		now := time.Now().UTC()
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO ledger_transactions (
				id, value_date, booking_time, memo, reversed_by_id, reverses_id, created_at
			) VALUES (?, ?, ?, ?, NULL, ?, ?)`,
			reversalID,
			original.ValueDate.UTC(),
			bookingTime.UTC(),
			memo,
			original.ID,
			now,
		).Error; err != nil {
			return fmt.Errorf("insert reversal: %w", err)
		}

		result := tx.WithContext(ctx).Exec(
			`UPDATE ledger_transactions
			 SET reversed_by_id = ?
			 WHERE id = ? AND reversed_by_id IS NULL`,
			reversalID,
			original.ID,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ledgerdomain.ErrAlreadyReversed
		}

		s.log.Info("reversed ledger transaction",
			zap.String("transaction_id", original.ID.String()),
			zap.String("reversal_id", reversalID.String()),
			zap.String("memo", memo),
		)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return reversalID, nil
}

type dueBookingRow struct {
	ID            snowflake.ID
	TransactionID snowflake.ID
	Amount        decimal.Decimal
	ValueDate     time.Time
}

func (s *Service) DueBookings(ctx context.Context, memberID snowflake.ID, windows []dues.Window, from *time.Time) (map[dues.Key]ledgerdomain.DueBooking, error) {
	rows, err := s.queryDueBookings(ctx, memberID, windows, from, false)
	if err != nil {
		return nil, err
	}

	posted := make(map[dues.Key]ledgerdomain.DueBooking, len(rows))
	for _, row := range rows {
		booking := dueBookingFromRow(row)
		posted[booking.Due().Key()] = booking
	}
	return posted, nil
}

func (s *Service) StrayDueBookings(ctx context.Context, memberID snowflake.ID, windows []dues.Window, from *time.Time) ([]ledgerdomain.DueBooking, error) {
	rows, err := s.queryDueBookings(ctx, memberID, windows, from, true)
	if err != nil {
		return nil, err
	}

	strays := make([]ledgerdomain.DueBooking, 0, len(rows))
	for _, row := range rows {
		strays = append(strays, dueBookingFromRow(row))
	}
	return strays, nil
}

func (s *Service) queryDueBookings(ctx context.Context, memberID snowflake.ID, windows []dues.Window, from *time.Time, invertWindows bool) ([]dueBookingRow, error) {
	fees, err := s.accountByCode(ctx, s.db, ledgerdomain.AccountCodeFees)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).
		Table("bookings").
		Select("bookings.id, bookings.transaction_id, bookings.amount, ledger_transactions.value_date").
		Joins("JOIN ledger_transactions ON ledger_transactions.id = bookings.transaction_id").
		Where("bookings.member_id = ?", memberID).
		Where("bookings.credit_account_id = ?", fees.ID).
		Where("ledger_transactions.reversed_by_id IS NULL")

	if from != nil {
		q = q.Where("ledger_transactions.value_date >= ?", from.UTC())
	}

	if len(windows) > 0 {
		clauses := make([]string, 0, len(windows))
		args := make([]any, 0, 2*len(windows))
		for _, window := range windows {
			clauses = append(clauses, "(ledger_transactions.value_date >= ? AND ledger_transactions.value_date <= ?)")
			args = append(args, window.Start.UTC(), window.End.UTC())
		}
		rangeSQL := strings.Join(clauses, " OR ")
		if invertWindows {
			q = q.Where("NOT ("+rangeSQL+")", args...)
		} else {
			q = q.Where(rangeSQL, args...)
		}
	}

	var rows []dueBookingRow
	err = q.Order("ledger_transactions.value_date, bookings.amount, bookings.id").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func dueBookingFromRow(row dueBookingRow) ledgerdomain.DueBooking {
	return ledgerdomain.DueBooking{
		BookingID:     row.ID,
		TransactionID: row.TransactionID,
		ValueDate:     row.ValueDate.UTC(),
		Amount:        row.Amount,
	}
}

func (s *Service) SumBookings(ctx context.Context, memberID snowflake.ID, code ledgerdomain.AccountCode, side ledgerdomain.Side, cutoff time.Time, start *time.Time) (decimal.Decimal, error) {
	account, err := s.accountByCode(ctx, s.db, code)
	if err != nil {
		return decimal.Zero, err
	}

	sideColumn := "bookings.credit_account_id"
	if side == ledgerdomain.SideDebit {
		sideColumn = "bookings.debit_account_id"
	}

	q := s.db.WithContext(ctx).
		Table("bookings").
		Select("COALESCE(SUM(bookings.amount), 0) AS total").
		Joins("JOIN ledger_transactions ON ledger_transactions.id = bookings.transaction_id").
		Where("bookings.member_id = ?", memberID).
		Where(sideColumn+" = ?", account.ID).
		Where("ledger_transactions.reversed_by_id IS NULL").
		Where("ledger_transactions.value_date <= ?", cutoff.UTC())

	if start != nil {
		q = q.Where("ledger_transactions.value_date >= ?", start.UTC())
	}

	var row struct {
		Total decimal.Decimal
	}
	if err := q.Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (s *Service) LastFeeActivity(ctx context.Context, memberID snowflake.ID) (*time.Time, error) {
	receivable, err := s.accountByCode(ctx, s.db, ledgerdomain.AccountCodeFeesReceivable)
	if err != nil {
		return nil, err
	}

	var row struct {
		Last *time.Time
	}
	err = s.db.WithContext(ctx).
		Table("bookings").
		Select("MAX(ledger_transactions.value_date) AS last").
		Joins("JOIN ledger_transactions ON ledger_transactions.id = bookings.transaction_id").
		Where("bookings.member_id = ?", memberID).
		Where("bookings.debit_account_id = ? OR bookings.credit_account_id = ?", receivable.ID, receivable.ID).
		Where("ledger_transactions.reversed_by_id IS NULL").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return row.Last, nil
}

func (s *Service) accountByCode(ctx context.Context, tx *gorm.DB, code ledgerdomain.AccountCode) (ledgerdomain.Account, error) {
	var account ledgerdomain.Account
	err := tx.WithContext(ctx).First(&account, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledgerdomain.Account{}, fmt.Errorf("%w: %s", ledgerdomain.ErrUnknownAccount, code)
		}
		return ledgerdomain.Account{}, err
	}
	return account, nil
}
