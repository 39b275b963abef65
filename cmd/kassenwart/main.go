package main

import (
	"context"
	"flag"

	"github.com/bwmarrin/snowflake"
	"github.com/kassenwart/kassenwart/internal/audit"
	"github.com/kassenwart/kassenwart/internal/balance"
	"github.com/kassenwart/kassenwart/internal/clock"
	"github.com/kassenwart/kassenwart/internal/config"
	"github.com/kassenwart/kassenwart/internal/ledger"
	"github.com/kassenwart/kassenwart/internal/logger"
	"github.com/kassenwart/kassenwart/internal/member"
	"github.com/kassenwart/kassenwart/internal/migration"
	"github.com/kassenwart/kassenwart/internal/observability"
	"github.com/kassenwart/kassenwart/internal/reconcile"
	reconciledomain "github.com/kassenwart/kassenwart/internal/reconcile/domain"
	"github.com/kassenwart/kassenwart/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	memberFlag := flag.String("member", "", "reconcile a single member by id instead of all members")
	flag.Parse()

	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Functional Domains
		migration.Module,
		member.Module,
		ledger.Module,
		audit.Module,
		balance.Module,
		reconcile.Module,

		fx.Invoke(func(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *reconcile.Runner, svc reconciledomain.Service, log *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						if err := run(*memberFlag, runner, svc, log); err != nil {
							log.Error("reconciliation run failed", zap.Error(err))
							_ = shutdowner.Shutdown(fx.ExitCode(1))
							return
						}
						_ = shutdowner.Shutdown()
					}()
					return nil
				},
			})
		}),
	)
	app.Run()
}

func run(memberID string, runner *reconcile.Runner, svc reconciledomain.Service, log *zap.Logger) error {
	ctx := context.Background()

	if memberID == "" {
		return runner.ReconcileAll(ctx)
	}

	id, err := snowflake.ParseString(memberID)
	if err != nil {
		return err
	}
	result, err := svc.Reconcile(ctx, id)
	if err != nil {
		return err
	}
	log.Info("member reconciled",
		zap.String("member_id", id.String()),
		zap.Int("posted", len(result.Posted)),
		zap.Int("reversed", len(result.Reversed)),
		zap.Int("strays", len(result.Strays)),
	)
	return nil
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
