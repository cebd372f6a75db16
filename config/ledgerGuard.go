package config

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/mmdatafocus/pos_backend/appctx"
	"gorm.io/gorm"
)

// LedgerGuardPlugin enforces stock-movement immutability at the connection level:
// ledger rows are append-only, so UPDATE and DELETE statements against the
// stock_movements table are rejected.
//
// NOTE:
// - This does NOT apply to Raw SQL. Repair tooling using Raw must be reviewed by hand.
// - The audit-purge path bypasses the guard explicitly via context flag.
type LedgerGuardPlugin struct{}

func NewLedgerGuardPlugin() *LedgerGuardPlugin { return &LedgerGuardPlugin{} }

var ErrLedgerImmutable = errors.New("stock_movements is append-only")

const ledgerTableName = "stock_movements"

func (p *LedgerGuardPlugin) Name() string { return "ledger_guard" }

func (p *LedgerGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Update().Before("gorm:update").Register("ledger_guard:update", ledgerGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("ledger_guard:delete", ledgerGuardCallback); err != nil {
		return err
	}
	return nil
}

func ledgerGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	if !strings.EqualFold(db.Statement.Table, ledgerTableName) {
		return
	}
	if shouldBypassLedgerGuard(db.Statement.Context) {
		return
	}
	_ = db.AddError(ErrLedgerImmutable)
}

func shouldBypassLedgerGuard(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	if v, ok := ctx.Value(appctx.ContextKeySkipLedgerGuard).(bool); ok && v {
		return true
	}
	return false
}
