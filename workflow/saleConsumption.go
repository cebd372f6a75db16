package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/sirupsen/logrus"
)

// MarkChildSold consumes one serialized unit for a sale: the child drops to
// quantity 0 and inactive, records the sale linkage in its attributes, and
// the parent aggregate is recomputed, all in one transaction.
//
// The write is a conditional update (WHERE is_active AND quantity > 0), so
// under two concurrent sales exactly one caller succeeds; the loser gets
// ErrorAlreadySold and must re-fetch and pick a different unit. That loss is
// a normal contention outcome, not a system error; retrying the same child
// is wrong.
func MarkChildSold(ctx context.Context, logger *logrus.Logger, childId int, saleId int) (*models.Variant, error) {

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	var child models.Variant
	if err := tx.First(&child, childId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if child.VariantType != models.VariantTypeImeiChild || child.ParentVariantId == nil {
		return nil, utils.ErrorRecordNotFound
	}

	// lock the parent first: both concurrent sales and receiving serialize here
	previousParentQty, parent, err := lockParent(tx, *child.ParentVariantId)
	if err != nil {
		return nil, err
	}

	soldAt := time.Now().UTC()
	attrs := child.VariantAttributes
	attrs.SoldAt = &soldAt
	attrs.SaleId = &saleId

	result := tx.Model(&models.Variant{}).
		Where("id = ? AND variant_type = ? AND is_active = ? AND quantity > 0",
			childId, models.VariantTypeImeiChild, true).
		Updates(map[string]interface{}{
			"Quantity":          0,
			"IsActive":          false,
			"VariantAttributes": attrs,
		})
	if result.Error != nil {
		config.LogError(logger, "saleConsumption.go", "MarkChildSold", "conditional update", childId, result.Error)
		return nil, utils.WrapTxError(ctx, result.Error)
	}
	if result.RowsAffected == 0 {
		// somebody else took it between our read and our write
		return nil, utils.ErrorAlreadySold
	}

	if _, err := models.AppendStockMovement(ctx, tx, &child,
		models.MovementTypeSale, 1, 0,
		models.MovementReferenceTypeSale, saleId); err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}

	newParentQty, err := RecomputeParentQuantity(tx, parent.ID)
	if err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}
	if _, err := models.AppendStockMovement(ctx, tx, parent,
		models.MovementTypeSale, previousParentQty, newParentQty,
		models.MovementReferenceTypeSale, saleId); err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}

	child.Quantity = 0
	child.IsActive = utils.NewFalse()
	child.VariantAttributes = attrs
	return &child, nil
}

// RestockReturnedUnit handles a sale return of a serialized unit. The sold
// child stays terminal to preserve ledger history; the return creates a NEW
// child under the same parent carrying the same serial identity.
func RestockReturnedUnit(ctx context.Context, logger *logrus.Logger, soldChildId int, saleReturnId int) (*models.Variant, error) {

	db := config.GetDB()

	var sold models.Variant
	if err := db.WithContext(ctx).First(&sold, soldChildId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if !sold.IsSold() || sold.ParentVariantId == nil {
		return nil, utils.ErrorRecordNotFound
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	previousQty, parent, err := lockParent(tx, *sold.ParentVariantId)
	if err != nil {
		return nil, err
	}

	replacement := models.Variant{
		ProductId:       sold.ProductId,
		BranchId:        sold.BranchId,
		Name:            sold.Name,
		VariantType:     models.VariantTypeImeiChild,
		ParentVariantId: sold.ParentVariantId,
		Quantity:        1,
		CostPrice:       sold.CostPrice,
		SellingPrice:    sold.SellingPrice,
		VariantAttributes: models.VariantAttributes{
			Imei:         sold.VariantAttributes.Imei,
			SerialNumber: sold.VariantAttributes.SerialNumber,
			Notes:        sold.VariantAttributes.Notes,
		},
		IsShared: sold.IsShared,
		IsActive: utils.NewTrue(),
	}
	if err := tx.Create(&replacement).Error; err != nil {
		config.LogError(logger, "saleConsumption.go", "RestockReturnedUnit", "create replacement", soldChildId, err)
		return nil, utils.WrapTxError(ctx, err)
	}
	if _, err := models.AppendStockMovement(ctx, tx, &replacement,
		models.MovementTypeReturn, 0, 1,
		models.MovementReferenceTypeReturn, saleReturnId); err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}

	newQty, err := RecomputeParentQuantity(tx, parent.ID)
	if err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}
	if _, err := models.AppendStockMovement(ctx, tx, parent,
		models.MovementTypeReturn, previousQty, newQty,
		models.MovementReferenceTypeReturn, saleReturnId); err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}
	return &replacement, nil
}
