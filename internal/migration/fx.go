package migration

import (
	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/kassenwart/kassenwart/internal/audit/domain"
	"github.com/kassenwart/kassenwart/internal/config"
	ledgerdomain "github.com/kassenwart/kassenwart/internal/ledger/domain"
	memberdomain "github.com/kassenwart/kassenwart/internal/member/domain"
	"github.com/kassenwart/kassenwart/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, genID *snowflake.Node) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Development databases (sqlite, mysql) are created from the
			// models directly.
			if err := conn.AutoMigrate(
				&memberdomain.Member{},
				&memberdomain.Membership{},
				&memberdomain.MemberBalance{},
				&ledgerdomain.Account{},
				&ledgerdomain.Transaction{},
				&ledgerdomain.Booking{},
				&auditdomain.AuditLog{},
			); err != nil {
				return err
			}
		}

		return seed.EnsureSpecialAccounts(conn, genID)
	}),
)
