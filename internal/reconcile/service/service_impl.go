package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/kassenwart/kassenwart/internal/audit/domain"
	"github.com/kassenwart/kassenwart/internal/clock"
	"github.com/kassenwart/kassenwart/internal/config"
	"github.com/kassenwart/kassenwart/internal/dues"
	ledgerdomain "github.com/kassenwart/kassenwart/internal/ledger/domain"
	memberdomain "github.com/kassenwart/kassenwart/internal/member/domain"
	obsmetrics "github.com/kassenwart/kassenwart/internal/observability/metrics"
	reconciledomain "github.com/kassenwart/kassenwart/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Memos attached to corrective transactions; they are the audit trail a
// treasurer reads, so they state the cause.
const (
	MemoDue           = "Membership due"
	MemoAmountChanged = "Due amount canceled because of change in membership amount"
	MemoStray         = "Due amount outside of membership canceled"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Accounting *config.AccountingConfigHolder
	Members    memberdomain.Service
	Ledger     ledgerdomain.Service
	Audit      auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	accounting *config.AccountingConfigHolder
	members    memberdomain.Service
	ledger     ledgerdomain.Service
	audit      auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) reconciledomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("reconcile.service"),
		clock:      p.Clock,
		accounting: p.Accounting,
		members:    p.Members,
		ledger:     p.Ledger,
		audit:      p.Audit,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Reconcile(ctx context.Context, memberID snowflake.ID) (reconciledomain.Result, error) {
	cfg := s.accounting.Get()
	now := s.clock.Now().UTC()

	memberships, err := s.members.ListMemberships(ctx, memberID)
	if err != nil {
		return reconciledomain.Result{}, err
	}

	result := reconciledomain.Result{MemberID: memberID}
	var schedules [][]dues.Due
	var windows []dues.Window

	for _, membership := range memberships {
		if membership.Amount.IsZero() {
			continue
		}
		window, schedule, err := dues.Schedule(membership, now, cfg.AccountingStart)
		if err != nil {
			result.Defects = append(result.Defects, reconciledomain.MembershipDefect{
				MembershipID: membership.ID,
				Err:          err,
			})
			s.log.Warn("skipping membership with inconsistent schedule input",
				zap.String("member_id", memberID.String()),
				zap.String("membership_id", membership.ID.String()),
				zap.Error(err),
			)
			continue
		}
		windows = append(windows, window)
		schedules = append(schedules, schedule)
	}
	expected := dues.Merge(schedules...)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)

		posted, err := ledger.DueBookings(ctx, memberID, windows, cfg.AccountingStart)
		if err != nil {
			return fmt.Errorf("query posted dues: %w", err)
		}

		wrong := make(map[dues.Key]dues.Due)
		for key, booking := range posted {
			if _, ok := expected[key]; !ok {
				wrong[key] = booking.Due()
			}
		}
		missing := make(map[dues.Key]dues.Due)
		for key, due := range expected {
			if _, ok := posted[key]; !ok {
				missing[key] = due
			}
		}

		for _, due := range dues.Sorted(wrong) {
			booking := posted[due.Key()]
			if _, err := ledger.Reverse(ctx, booking.TransactionID, MemoAmountChanged, now); err != nil {
				return fmt.Errorf("reverse mismatched due %s: %w", due.Date.Format("2006-01-02"), err)
			}
			result.Reversed = append(result.Reversed, due)
		}

		for _, due := range dues.Sorted(missing) {
			_, err := ledger.CreateTransaction(ctx, due.Date, now, MemoDue, []ledgerdomain.Posting{
				{Account: ledgerdomain.AccountCodeFees, Side: ledgerdomain.SideCredit, MemberID: &memberID, Amount: due.Amount},
				{Account: ledgerdomain.AccountCodeFeesReceivable, Side: ledgerdomain.SideDebit, MemberID: &memberID, Amount: due.Amount},
			})
			if err != nil {
				return fmt.Errorf("post due %s: %w", due.Date.Format("2006-01-02"), err)
			}
			result.Posted = append(result.Posted, due)
		}

		strays, err := ledger.StrayDueBookings(ctx, memberID, windows, cfg.AccountingStart)
		if err != nil {
			return fmt.Errorf("query stray dues: %w", err)
		}
		for _, stray := range strays {
			if _, err := ledger.Reverse(ctx, stray.TransactionID, MemoStray, now); err != nil {
				return fmt.Errorf("reverse stray due %s: %w", stray.ValueDate.Format("2006-01-02"), err)
			}
			result.Strays = append(result.Strays, stray.Due())
		}
		return nil
	})
	if err != nil {
		s.obsMetrics.RecordReconcileRun(ctx, "failed")
		return reconciledomain.Result{}, err
	}

	s.obsMetrics.RecordReconcileRun(ctx, "ok")
	s.obsMetrics.RecordDuesPosted(ctx, len(result.Posted))
	s.obsMetrics.RecordDuesReversed(ctx, len(result.Reversed))
	s.obsMetrics.RecordStrayReversals(ctx, len(result.Strays))

	if s.audit != nil && result.Writes() > 0 {
		metadata := map[string]any{
			"posted":   len(result.Posted),
			"reversed": len(result.Reversed),
			"strays":   len(result.Strays),
			"defects":  len(result.Defects),
		}
		if err := s.audit.Record(ctx, "dues.reconciled", "member", memberID.String(), metadata); err != nil {
			s.log.Warn("failed to write reconciliation audit log", zap.Error(err))
		}
	}

	s.log.Info("reconciled member dues",
		zap.String("member_id", memberID.String()),
		zap.Int("posted", len(result.Posted)),
		zap.Int("reversed", len(result.Reversed)),
		zap.Int("strays", len(result.Strays)),
		zap.Int("defects", len(result.Defects)),
	)
	return result, nil
}
