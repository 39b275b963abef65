package seed

import (
	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/kassenwart/kassenwart/internal/ledger/domain"
	"github.com/kassenwart/kassenwart/pkg/db"
	"gorm.io/gorm"
)

// EnsureSpecialAccounts creates the chart-of-accounts entries the
// reconciliation core depends on, if they are missing.
func EnsureSpecialAccounts(conn *gorm.DB, genID *snowflake.Node) error {
	accounts := []ledgerdomain.Account{
		{Code: ledgerdomain.AccountCodeFees, Name: "Membership fees"},
		{Code: ledgerdomain.AccountCodeFeesReceivable, Name: "Membership fees receivable"},
		{Code: ledgerdomain.AccountCodeDonations, Name: "Donations"},
	}

	for _, account := range accounts {
		var count int64
		if err := conn.Model(&ledgerdomain.Account{}).
			Where("code = ?", account.Code).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		account.ID = genID.Generate()
		if err := conn.Create(&account).Error; err != nil {
			// Another replica may have seeded the account concurrently.
			if db.IsDuplicateKeyErr(err) {
				continue
			}
			return err
		}
	}
	return nil
}
