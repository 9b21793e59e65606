package migration

import (
	"fmt"

	"github.com/smallbiznis/settlement/internal/events"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	marketplacedomain "github.com/smallbiznis/settlement/internal/marketplace/domain"
	settlementdomain "github.com/smallbiznis/settlement/internal/settlement/domain"
	"gorm.io/gorm"
)

const activeClaimIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_settlement_window_claims_active
	ON settlement_window_claims (recipient_id, settlement_from, settlement_to)
	WHERE is_active`

// Models lists every table the engine reads or writes.
func Models() []any {
	return []any{
		&marketplacedomain.Merchant{},
		&marketplacedomain.SaleLine{},
		&ledgerdomain.LedgerEntry{},
		&settlementdomain.SettlementWindowClaim{},
		&settlementdomain.PayoutTransaction{},
		&events.SettlementEvent{},
	}
}

// AutoMigrate builds the schema from the gorm models for dialects without
// SQL migrations. MySQL has no partial indexes, so there the active-claim
// invariant rests on the in-transaction overlap check alone.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if db.Dialector.Name() == "mysql" {
		return nil
	}
	if err := db.Exec(activeClaimIndex).Error; err != nil {
		return fmt.Errorf("create active claim index: %w", err)
	}
	return nil
}
