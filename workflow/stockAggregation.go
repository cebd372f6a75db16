package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecomputeParentQuantity recomputes a parent variant's on-hand quantity as
// the sum over its active imei_child rows, persists it, and returns the new
// value. It locks the parent row, so it must run inside the caller's
// transaction alongside the child change that triggered it.
//
// Idempotent: calling it again with no intervening child change writes the
// same value and appends NO ledger row. Movement rows belong to the
// triggering operation, never to the recompute itself.
func RecomputeParentQuantity(tx *gorm.DB, parentId int) (int, error) {

	var parent models.Variant
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&parent, parentId).Error; err != nil {
		return 0, utils.ErrorRecordNotFound
	}
	if parent.VariantType != models.VariantTypeParent {
		return 0, utils.ErrorNotAParent
	}

	var sum int
	err := tx.Model(&models.Variant{}).
		Where("parent_variant_id = ? AND variant_type = ? AND is_active = ?",
			parentId, models.VariantTypeImeiChild, true).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}

	if err := tx.Model(&parent).UpdateColumn("Quantity", sum).Error; err != nil {
		return 0, err
	}
	return sum, nil
}

// lockParent takes the row lock every serialized-stock mutation serializes
// on, and rejects non-parent targets.
func lockParent(tx *gorm.DB, parentId int) (int, *models.Variant, error) {
	var parent models.Variant
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&parent, parentId).Error; err != nil {
		return 0, nil, utils.ErrorRecordNotFound
	}
	if parent.VariantType != models.VariantTypeParent {
		return 0, nil, utils.ErrorNotAParent
	}
	return parent.Quantity, &parent, nil
}

// ParentDrift reports one parent whose stored quantity disagreed with its children.
type ParentDrift struct {
	ParentId   int `json:"parent_id"`
	StoredQty  int `json:"stored_qty"`
	DerivedQty int `json:"derived_qty"`
}

// RepairParentQuantities walks every parent variant, recomputes each from its
// children and fixes drift. Each fix is a real quantity transition, so it
// posts an inventory adjustment document and the matching ledger row.
func RepairParentQuantities(ctx context.Context, logger *logrus.Logger) ([]ParentDrift, error) {

	db := config.GetDB()

	var parentIds []int
	err := db.WithContext(ctx).Model(&models.Variant{}).
		Where("variant_type = ?", models.VariantTypeParent).
		Order("id").Pluck("id", &parentIds).Error
	if err != nil {
		return nil, err
	}

	drifts := make([]ParentDrift, 0)
	for _, parentId := range parentIds {
		drift, err := repairOneParent(ctx, logger, parentId)
		if err != nil {
			config.LogError(logger, "stockAggregation.go", "RepairParentQuantities", "repairOneParent", parentId, err)
			return drifts, err
		}
		if drift != nil {
			drifts = append(drifts, *drift)
		}
	}
	return drifts, nil
}

// RepairParentQuantity is the single-parent form used by operator tooling.
func RepairParentQuantity(ctx context.Context, logger *logrus.Logger, parentId int) (*ParentDrift, error) {
	return repairOneParent(ctx, logger, parentId)
}

func repairOneParent(ctx context.Context, logger *logrus.Logger, parentId int) (*ParentDrift, error) {

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	// advisory lock: repair must not interleave with live posting on this
	// parent. GET_LOCK is connection-scoped, so release it on this tx before
	// the connection goes back to the pool.
	if err := AcquireParentPostingLock(tx, parentId); err != nil {
		return nil, err
	}
	released := false
	releaseLock := func() {
		if !released {
			released = true
			ReleaseParentPostingLock(tx, parentId)
		}
	}
	defer releaseLock()

	var parent models.Variant
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&parent, parentId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	storedQty := parent.Quantity

	newQty, err := RecomputeParentQuantity(tx, parentId)
	if err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}
	if newQty == storedQty {
		// no drift; nothing to post
		releaseLock()
		return nil, tx.Commit().Error
	}

	// drift is a genuine quantity transition: document it and ledger it
	adjustment := models.InventoryAdjustment{
		BranchId:    parent.BranchId,
		VariantId:   parentId,
		OldQuantity: storedQty,
		NewQuantity: newQty,
		Reason:      "parent quantity rebuilt from serialized children",
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		adjustment.CreatedBy = userId
	}
	if err := tx.Create(&adjustment).Error; err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}
	if _, err := models.AppendStockMovement(ctx, tx, &parent,
		models.MovementTypeAdjustment, storedQty, newQty,
		models.MovementReferenceTypeAdjustment, adjustment.ID); err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}

	releaseLock()
	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}

	logger.WithFields(logrus.Fields{
		"parent_id": parentId,
		"stored":    storedQty,
		"derived":   newQty,
	}).Warn("repaired parent quantity drift")

	return &ParentDrift{ParentId: parentId, StoredQty: storedQty, DerivedQty: newQty}, nil
}
