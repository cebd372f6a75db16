package workflow

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"
)

// AdjustVariantQuantity posts a manual quantity correction on a standard
// variant: the adjustment document, the ledger row and the quantity write
// commit together. Parents derive their quantity from children and children
// are 0/1 by definition, so neither is adjustable here.
func AdjustVariantQuantity(ctx context.Context, logger *logrus.Logger, variantId int, newQuantity int, reason string) (*models.Variant, error) {

	if newQuantity < 0 {
		return nil, errors.New("quantity cannot be negative")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, errors.New("adjustment reason is required")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	var variant models.Variant
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&variant, variantId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if variant.VariantType != models.VariantTypeStandard {
		return nil, errors.New("only standard variants are adjustable")
	}

	previousQty := variant.Quantity
	if previousQty == newQuantity {
		// nothing to post
		return &variant, tx.Commit().Error
	}

	adjustment := models.InventoryAdjustment{
		BranchId:    variant.BranchId,
		VariantId:   variantId,
		OldQuantity: previousQty,
		NewQuantity: newQuantity,
		Reason:      strings.TrimSpace(reason),
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		adjustment.CreatedBy = userId
	}
	if err := tx.Create(&adjustment).Error; err != nil {
		config.LogError(logger, "inventoryAdjustment.go", "AdjustVariantQuantity", "create adjustment", variantId, err)
		return nil, utils.WrapTxError(ctx, err)
	}

	if err := tx.Model(&variant).UpdateColumn("Quantity", newQuantity).Error; err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}
	if _, err := models.AppendStockMovement(ctx, tx, &variant,
		models.MovementTypeAdjustment, previousQty, newQuantity,
		models.MovementReferenceTypeAdjustment, adjustment.ID); err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}

	variant.Quantity = newQuantity
	return &variant, nil
}
