package reconcile

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/kassenwart/kassenwart/internal/config"
	reconciledomain "github.com/kassenwart/kassenwart/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type RunnerParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
	Cfg config.Config
	Svc reconciledomain.Service
}

// Runner reconciles every member that has at least one membership. Members
// are independent, so they run in parallel; each member's run stays inside
// its own database transaction.
type Runner struct {
	db          *gorm.DB
	log         *zap.Logger
	svc         reconciledomain.Service
	concurrency int
}

func NewRunner(p RunnerParam) *Runner {
	concurrency := p.Cfg.ReconcileConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		db:          p.DB,
		log:         p.Log.Named("reconcile.runner"),
		svc:         p.Svc,
		concurrency: concurrency,
	}
}

func (r *Runner) ReconcileAll(ctx context.Context) error {
	var memberIDs []snowflake.ID
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT member_id FROM memberships ORDER BY member_id`).
		Scan(&memberIDs).Error
	if err != nil {
		return fmt.Errorf("list members with memberships: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, memberID := range memberIDs {
		g.Go(func() error {
			if _, err := r.svc.Reconcile(ctx, memberID); err != nil {
				r.log.Error("member reconciliation failed",
					zap.String("member_id", memberID.String()),
					zap.Error(err),
				)
				return fmt.Errorf("reconcile member %s: %w", memberID, err)
			}
			return nil
		})
	}
	return g.Wait()
}
