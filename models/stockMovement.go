package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockMovement is one immutable ledger row. Rows are appended exactly once
// per quantity-affecting transition and never updated or deleted outside the
// explicit audit purge (enforced by the connection-level ledger guard).
type StockMovement struct {
	ID               int                   `gorm:"primary_key" json:"id"`
	VariantId        int                   `gorm:"index;not null" json:"variant_id"`
	ProductId        int                   `gorm:"index;not null" json:"product_id"`
	BranchId         *int                  `gorm:"index" json:"branch_id"`
	Type             MovementType          `gorm:"type:enum('sale','receive','adjustment','transfer','return');not null" json:"type"`
	QuantityDelta    int                   `gorm:"not null" json:"quantity_delta"`
	PreviousQuantity int                   `gorm:"not null" json:"previous_quantity"`
	NewQuantity      int                   `gorm:"not null" json:"new_quantity"`
	UnitCost         decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	ReferenceType    MovementReferenceType `gorm:"type:enum('sale','purchase_order','inventory_adjustment','stock_transfer','sale_return');not null" json:"reference_type"`
	ReferenceId      int                   `gorm:"index" json:"reference_id"`
	CorrelationId    string                `gorm:"index;size:36" json:"correlation_id"`
	CreatedBy        int                   `json:"created_by"`
	CreatedAt        time.Time             `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeSave enforces the standing ledger equation on every write:
// new_quantity == previous_quantity + quantity_delta, and quantities never
// go negative.
func (m *StockMovement) BeforeSave(tx *gorm.DB) error {
	if m == nil {
		return nil
	}
	if m.NewQuantity != m.PreviousQuantity+m.QuantityDelta {
		return fmt.Errorf("ledger equation violated: %d != %d + %d",
			m.NewQuantity, m.PreviousQuantity, m.QuantityDelta)
	}
	if m.NewQuantity < 0 {
		return fmt.Errorf("ledger quantity negative: %d", m.NewQuantity)
	}
	return nil
}

// AppendStockMovement writes one ledger row inside the caller's transaction.
// The delta is derived from previous/new so the BeforeSave equation holds by
// construction; disagreement between the caller's state and the row is a bug
// we want to fail loudly on.
func AppendStockMovement(ctx context.Context, tx *gorm.DB, variant *Variant,
	movementType MovementType, previousQty, newQty int,
	referenceType MovementReferenceType, referenceId int) (*StockMovement, error) {

	userId, _ := utils.GetUserIdFromContext(ctx)

	movement := StockMovement{
		VariantId:        variant.ID,
		ProductId:        variant.ProductId,
		BranchId:         variant.BranchId,
		Type:             movementType,
		QuantityDelta:    newQty - previousQty,
		PreviousQuantity: previousQty,
		NewQuantity:      newQty,
		UnitCost:         variant.CostPrice,
		ReferenceType:    referenceType,
		ReferenceId:      referenceId,
		CorrelationId:    correlationIdFromContextOrNew(ctx),
		CreatedBy:        userId,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}
	return &movement, nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// GetStockMovements lists ledger rows for a variant, newest first.
func GetStockMovements(ctx context.Context, variantId int, limit int) ([]*StockMovement, error) {

	if limit <= 0 {
		limit = config.SearchLimit
	}
	db := config.GetDB()
	var results []*StockMovement
	err := db.WithContext(ctx).
		Where("variant_id = ?", variantId).
		Order("id DESC").Limit(limit).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// PurgeStockMovements is the explicit audit purge: it deletes ledger rows for
// a variant inside the caller's transaction, bypassing the ledger guard.
// Only the reference-integrity guard's cascade path calls this.
func PurgeStockMovements(ctx context.Context, tx *gorm.DB, variantId int) (int64, error) {
	purgeCtx := utils.SetSkipLedgerGuardInContext(ctx, true)
	result := tx.WithContext(purgeCtx).Where("variant_id = ?", variantId).Delete(&StockMovement{})
	return result.RowsAffected, result.Error
}
