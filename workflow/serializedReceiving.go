package workflow

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ParentSpec describes the aggregate variant created when a purchase-order
// receipt uses serialized tracking.
type ParentSpec struct {
	Name         string          `json:"name" validate:"required"`
	Sku          string          `json:"sku"`
	Barcode      string          `json:"barcode"`
	BranchId     *int            `json:"branch_id"`
	MinQuantity  int             `json:"min_quantity" validate:"gte=0"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	IsShared     *bool           `json:"is_shared"`
}

// ChildSpec describes one physically serialized unit.
type ChildSpec struct {
	Imei         string `json:"imei"`
	SerialNumber string `json:"serial_number"`
	Notes        string `json:"notes"`
}

func (c ChildSpec) serial() string {
	if strings.TrimSpace(c.Imei) != "" {
		return strings.TrimSpace(c.Imei)
	}
	return strings.TrimSpace(c.SerialNumber)
}

// ValidateChildSerials checks that every child carries a non-empty identifier
// and that no two children under the same parent share one.
func ValidateChildSerials(childSpecs []ChildSpec) error {
	seen := make(map[string]bool, len(childSpecs))
	for _, spec := range childSpecs {
		serial := spec.serial()
		if serial == "" {
			return errors.New("serialized unit requires an imei or serial number")
		}
		if seen[serial] {
			return &utils.DuplicateSerialError{Serial: serial}
		}
		seen[serial] = true
	}
	return nil
}

// CreateParentWithChildren atomically creates one parent variant and N
// imei_child variants from a serialized purchase-order receipt. The parent's
// quantity is derived by recompute, never written directly.
func CreateParentWithChildren(ctx context.Context, logger *logrus.Logger,
	productId int, parentSpec ParentSpec, childSpecs []ChildSpec,
	purchaseOrderId int) (*models.Variant, error) {

	if err := utils.ValidateInput(&parentSpec); err != nil {
		return nil, err
	}
	if len(childSpecs) == 0 {
		return nil, errors.New("serialized receiving requires at least one unit")
	}
	if err := ValidateChildSerials(childSpecs); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[models.Product](ctx, productId); err != nil {
		return nil, errors.New("product not found")
	}
	if parentSpec.BranchId != nil {
		if err := utils.ValidateResourceId[models.Branch](ctx, *parentSpec.BranchId); err != nil {
			return nil, errors.New("branch not found")
		}
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	isShared := parentSpec.IsShared
	if isShared == nil {
		isShared = utils.NewFalse()
	}
	parent := models.Variant{
		ProductId:    productId,
		BranchId:     parentSpec.BranchId,
		Name:         parentSpec.Name,
		Sku:          parentSpec.Sku,
		Barcode:      parentSpec.Barcode,
		VariantType:  models.VariantTypeParent,
		Quantity:     0,
		MinQuantity:  parentSpec.MinQuantity,
		CostPrice:    parentSpec.CostPrice,
		SellingPrice: parentSpec.SellingPrice,
		IsShared:     isShared,
		IsActive:     utils.NewTrue(),
	}
	if err := tx.Create(&parent).Error; err != nil {
		config.LogError(logger, "serializedReceiving.go", "CreateParentWithChildren", "create parent", parentSpec, err)
		return nil, utils.WrapTxError(ctx, err)
	}

	for _, spec := range childSpecs {
		if _, err := createChild(ctx, tx, &parent, spec, purchaseOrderId); err != nil {
			config.LogError(logger, "serializedReceiving.go", "CreateParentWithChildren", "create child", spec, err)
			return nil, utils.WrapTxError(ctx, err)
		}
	}

	newQty, err := RecomputeParentQuantity(tx, parent.ID)
	if err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}
	if _, err := models.AppendStockMovement(ctx, tx, &parent,
		models.MovementTypeReceive, 0, newQty,
		models.MovementReferenceTypePurchaseOrder, purchaseOrderId); err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}
	parent.Quantity = newQty

	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}
	return &parent, nil
}

// AddChildToParent appends one more serialized unit to an existing parent and
// recomputes the aggregate.
func AddChildToParent(ctx context.Context, logger *logrus.Logger,
	parentId int, childSpec ChildSpec, purchaseOrderId int) (*models.Variant, error) {

	if err := ValidateChildSerials([]ChildSpec{childSpec}); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	// lock + type check; also serializes against concurrent sales
	previousQty, parent, err := lockParent(tx, parentId)
	if err != nil {
		return nil, err
	}

	// the new serial must not collide with any sibling, sold ones included
	serial := childSpec.serial()
	var count int64
	err = tx.Model(&models.Variant{}).
		Where("parent_variant_id = ?", parentId).
		Where(tx.Where("JSON_UNQUOTE(JSON_EXTRACT(variant_attributes, '$.imei')) = ?", serial).
			Or("JSON_UNQUOTE(JSON_EXTRACT(variant_attributes, '$.serial_number')) = ?", serial)).
		Count(&count).Error
	if err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}
	if count > 0 {
		return nil, &utils.DuplicateSerialError{Serial: serial}
	}

	child, err := createChild(ctx, tx, parent, childSpec, purchaseOrderId)
	if err != nil {
		config.LogError(logger, "serializedReceiving.go", "AddChildToParent", "create child", childSpec, err)
		return nil, utils.WrapTxError(ctx, err)
	}

	newQty, err := RecomputeParentQuantity(tx, parentId)
	if err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}
	if _, err := models.AppendStockMovement(ctx, tx, parent,
		models.MovementTypeReceive, previousQty, newQty,
		models.MovementReferenceTypePurchaseOrder, purchaseOrderId); err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapTxError(ctx, err)
	}
	return child, nil
}

// createChild inserts one imei_child (quantity 1, available) and its receive
// ledger row inside the caller's transaction.
func createChild(ctx context.Context, tx *gorm.DB, parent *models.Variant,
	spec ChildSpec, purchaseOrderId int) (*models.Variant, error) {

	child := models.Variant{
		ProductId:       parent.ProductId,
		BranchId:        parent.BranchId,
		Name:            parent.Name + " #" + spec.serial(),
		VariantType:     models.VariantTypeImeiChild,
		ParentVariantId: utils.NewInt(parent.ID),
		Quantity:        1,
		CostPrice:       parent.CostPrice,
		SellingPrice:    parent.SellingPrice,
		VariantAttributes: models.VariantAttributes{
			Imei:         strings.TrimSpace(spec.Imei),
			SerialNumber: strings.TrimSpace(spec.SerialNumber),
			Notes:        spec.Notes,
		},
		IsShared: parent.IsShared,
		IsActive: utils.NewTrue(),
	}
	if err := tx.Create(&child).Error; err != nil {
		return nil, err
	}
	if _, err := models.AppendStockMovement(ctx, tx, &child,
		models.MovementTypeReceive, 0, 1,
		models.MovementReferenceTypePurchaseOrder, purchaseOrderId); err != nil {
		return nil, err
	}
	return &child, nil
}
