package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/kassenwart/kassenwart/internal/audit/domain"
	balancedomain "github.com/kassenwart/kassenwart/internal/balance/domain"
	"github.com/kassenwart/kassenwart/internal/clock"
	"github.com/kassenwart/kassenwart/internal/config"
	"github.com/kassenwart/kassenwart/internal/dues"
	ledgerdomain "github.com/kassenwart/kassenwart/internal/ledger/domain"
	memberdomain "github.com/kassenwart/kassenwart/internal/member/domain"
	"github.com/kassenwart/kassenwart/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Accounting *config.AccountingConfigHolder
	Ledger     ledgerdomain.Service
	Audit      auditdomain.Service `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	accounting *config.AccountingConfigHolder
	ledger     ledgerdomain.Service
	audit      auditdomain.Service
}

func NewService(p ServiceParam) balancedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("balance.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		accounting: p.Accounting,
		ledger:     p.Ledger,
		audit:      p.Audit,
	}
}

func (s *Service) Balance(ctx context.Context, memberID snowflake.ID, opts balancedomain.Options) (decimal.Decimal, error) {
	return s.balance(ctx, s.ledger, memberID, opts)
}

func (s *Service) balance(ctx context.Context, ledger ledgerdomain.Service, memberID snowflake.ID, opts balancedomain.Options) (decimal.Decimal, error) {
	now := s.clock.Now().UTC()

	liabilityCutoff := now
	if opts.LiabilityCutoff != nil {
		liabilityCutoff = opts.LiabilityCutoff.UTC()
	}
	assetCutoff := now
	if opts.AssetCutoff != nil {
		assetCutoff = opts.AssetCutoff.UTC()
	}

	liability, err := ledger.SumBookings(ctx, memberID,
		ledgerdomain.AccountCodeFeesReceivable, ledgerdomain.SideDebit,
		liabilityCutoff, opts.LiabilityStart)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum liabilities: %w", err)
	}

	asset, err := ledger.SumBookings(ctx, memberID,
		ledgerdomain.AccountCodeFeesReceivable, ledgerdomain.SideCredit,
		assetCutoff, opts.AssetStart)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum assets: %w", err)
	}

	return asset.Sub(liability), nil
}

func (s *Service) Snapshot(ctx context.Context, memberID snowflake.ID, start, end time.Time, opts balancedomain.SnapshotOptions) (*memberdomain.MemberBalance, error) {
	start = start.UTC()
	end = end.UTC()
	if start.After(end) {
		return nil, memberdomain.ErrInvalidMembershipPeriod
	}

	var snapshot *memberdomain.MemberBalance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var overlapping int64
		err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1)
			 FROM member_balances
			 WHERE member_id = ? AND period_start <= ? AND period_end >= ?`,
			memberID,
			end,
			start,
		).Scan(&overlapping).Error
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return memberdomain.ErrOverlappingBalanceWindow
		}

		amount, err := s.balance(ctx, s.ledger.WithTx(tx), memberID, balancedomain.Options{
			LiabilityCutoff: &end,
			AssetCutoff:     &end,
			LiabilityStart:  &start,
			AssetStart:      &start,
		})
		if err != nil {
			return err
		}
		if amount.IsZero() && opts.SkipIfZero {
			return nil
		}

		row := memberdomain.MemberBalance{
			ID:        s.genID.Generate(),
			MemberID:  memberID,
			Reference: opts.Reference,
			Amount:    amount,
			Start:     start,
			End:       end,
			State:     memberdomain.MemberBalanceStateUnpaid,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return memberdomain.ErrDuplicateBalanceReference
			}
			return fmt.Errorf("insert member balance: %w", err)
		}
		snapshot = &row
		return nil
	})
	if err != nil {
		return nil, err
	}

	if snapshot != nil {
		if s.audit != nil {
			metadata := map[string]any{
				"amount": snapshot.Amount.StringFixed(2),
				"start":  start.Format("2006-01-02"),
				"end":    end.Format("2006-01-02"),
			}
			if err := s.audit.Record(ctx, "balance.snapshot", "member", memberID.String(), metadata); err != nil {
				s.log.Warn("failed to write snapshot audit log", zap.Error(err))
			}
		}
		s.log.Info("created member balance snapshot",
			zap.String("member_id", memberID.String()),
			zap.String("amount", snapshot.Amount.StringFixed(2)),
			zap.Time("start", start),
			zap.Time("end", end),
		)
	}
	return snapshot, nil
}

func (s *Service) StatuteBarredDebt(ctx context.Context, memberID snowflake.ID, futureLimitMonths int) (decimal.Decimal, error) {
	cfg := s.accounting.Get()
	now := s.clock.Now().UTC()

	// Work back from the end of the current year: the collection window,
	// one further year, and any future horizon the caller wants to peek
	// past.
	cutoff := time.Date(now.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
	cutoff = dues.AddMonths(cutoff, -cfg.LiabilityIntervalMonths)
	cutoff = cutoff.AddDate(-1, 0, 0)
	if futureLimitMonths > 0 {
		cutoff = dues.AddMonths(cutoff, -futureLimitMonths)
	}

	balance, err := s.balance(ctx, s.ledger, memberID, balancedomain.Options{
		LiabilityCutoff: &cutoff,
	})
	if err != nil {
		return decimal.Zero, err
	}

	// Only a negative balance is debt; a credit balance is never barred.
	if balance.IsNegative() {
		return balance.Neg(), nil
	}
	return decimal.Zero, nil
}

func (s *Service) DonationBalance(ctx context.Context, memberID snowflake.ID) (decimal.Decimal, error) {
	now := s.clock.Now().UTC()
	return s.ledger.SumBookings(ctx, memberID,
		ledgerdomain.AccountCodeDonations, ledgerdomain.SideCredit,
		now, nil)
}
