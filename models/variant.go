package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

// VariantAttributes is the structured attribute map persisted as a JSON
// column. For imei_child variants it carries the serial identity and, once
// sold, the sale linkage.
type VariantAttributes struct {
	Imei         string     `json:"imei,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	SoldAt       *time.Time `json:"sold_at,omitempty"`
	SaleId       *int       `json:"sale_id,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

func (a VariantAttributes) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *VariantAttributes) Scan(value interface{}) error {
	if value == nil {
		*a = VariantAttributes{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	}
	return fmt.Errorf("cannot scan %T into VariantAttributes", value)
}

// Serial returns the identifying serial of a child, preferring IMEI.
func (a VariantAttributes) Serial() string {
	if a.Imei != "" {
		return a.Imei
	}
	return a.SerialNumber
}

type Variant struct {
	ID                int               `gorm:"primary_key" json:"id"`
	ProductId         int               `gorm:"index;not null" json:"product_id"`
	BranchId          *int              `gorm:"index" json:"branch_id"`
	Name              string            `gorm:"size:255;not null" json:"name"`
	Sku               string            `gorm:"index;size:100" json:"sku"`
	Barcode           string            `gorm:"index;size:100" json:"barcode"`
	VariantType       VariantType       `gorm:"type:enum('standard','parent','imei_child');not null;default:'standard'" json:"variant_type"`
	ParentVariantId   *int              `gorm:"index" json:"parent_variant_id"`
	Quantity          int               `gorm:"not null;default:0" json:"quantity"`
	MinQuantity       int               `gorm:"not null;default:0" json:"min_quantity"`
	CostPrice         decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
	SellingPrice      decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"selling_price"`
	VariantAttributes VariantAttributes `gorm:"type:json" json:"variant_attributes"`
	IsShared          *bool             `gorm:"not null;default:false" json:"is_shared"`
	IsActive          *bool             `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v Variant) GetBranchId() *int { return v.BranchId }
func (v Variant) GetIsShared() bool { return v.IsShared != nil && *v.IsShared }

// IsSold reports the terminal state of an imei_child.
func (v *Variant) IsSold() bool {
	return v.VariantType == VariantTypeImeiChild &&
		v.Quantity == 0 && (v.IsActive == nil || !*v.IsActive)
}

type NewVariant struct {
	ProductId    int             `json:"product_id" validate:"required"`
	BranchId     *int            `json:"branch_id"`
	Name         string          `json:"name" validate:"required"`
	Sku          string          `json:"sku"`
	Barcode      string          `json:"barcode"`
	Quantity     int             `json:"quantity" validate:"gte=0"`
	MinQuantity  int             `json:"min_quantity" validate:"gte=0"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	IsShared     *bool           `json:"is_shared"`
}

// validate input for both create & update. (id = 0 for create)

func (input *NewVariant) validate(ctx context.Context, id int) error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if id > 0 {
		if err := utils.ValidateResourceId[Variant](ctx, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateResourceId[Product](ctx, input.ProductId); err != nil {
		return errors.New("product not found")
	}
	if input.BranchId != nil {
		if err := utils.ValidateResourceId[Branch](ctx, *input.BranchId); err != nil {
			return errors.New("branch not found")
		}
	}
	if input.Barcode != "" {
		if err := utils.ValidateUnique[Variant](ctx, "barcode", input.Barcode, id); err != nil {
			return err
		}
	}
	return nil
}

// CreateVariant creates a standard (non-serialized) variant. Parent/child
// hierarchies are created atomically by the serialized receiving workflow.
func CreateVariant(ctx context.Context, input *NewVariant) (*Variant, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	isShared := input.IsShared
	if isShared == nil {
		isShared = utils.NewFalse()
	}
	variant := Variant{
		ProductId:    input.ProductId,
		BranchId:     input.BranchId,
		Name:         input.Name,
		Sku:          input.Sku,
		Barcode:      input.Barcode,
		VariantType:  VariantTypeStandard,
		Quantity:     input.Quantity,
		MinQuantity:  input.MinQuantity,
		CostPrice:    input.CostPrice,
		SellingPrice: input.SellingPrice,
		IsShared:     isShared,
		IsActive:     utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func UpdateVariant(ctx context.Context, id int, input *NewVariant) (*Variant, error) {

	variant, err := utils.FetchModel[Variant](ctx, id)
	if err != nil {
		return nil, err
	}
	if variant.VariantType == VariantTypeImeiChild {
		return nil, errors.New("serialized children are managed by receiving and sale flows")
	}

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	// quantity is deliberately absent: parents derive it from children and
	// standard variants change it through the adjustment workflow.
	updates := map[string]interface{}{
		"Name":         input.Name,
		"Sku":          input.Sku,
		"Barcode":      input.Barcode,
		"MinQuantity":  input.MinQuantity,
		"CostPrice":    input.CostPrice,
		"SellingPrice": input.SellingPrice,
	}
	// omitted is_shared means "leave the flag alone"; the column is not null
	if input.IsShared != nil {
		updates["IsShared"] = *input.IsShared
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(variant).Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return variant, nil
}

func GetVariant(ctx context.Context, id int, requestingBranchId int) (*Variant, error) {

	variant, err := utils.FetchModel[Variant](ctx, id)
	if err != nil {
		return nil, err
	}

	visible, err := CheckVisible(ctx, *variant, requestingBranchId, ShareDomainInventory)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, utils.ErrorRecordNotFound
	}
	return variant, nil
}

// GetVariants lists variants of a product visible from the requesting branch.
func GetVariants(ctx context.Context, requestingBranchId int, productId int) ([]*Variant, error) {

	scope, err := AccessibleEntityFilter(ctx, requestingBranchId, ShareDomainInventory)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var results []*Variant
	err = db.WithContext(ctx).Scopes(scope).
		Where("product_id = ? AND is_active = ?", productId, true).
		Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListActiveChildren returns the unsold serialized units under a parent.
func ListActiveChildren(ctx context.Context, parentId int) ([]*Variant, error) {

	parent, err := utils.FetchModel[Variant](ctx, parentId)
	if err != nil {
		return nil, err
	}
	if parent.VariantType != VariantTypeParent {
		return nil, utils.ErrorNotAParent
	}

	db := config.GetDB()
	var results []*Variant
	err = db.WithContext(ctx).
		Where("parent_variant_id = ? AND variant_type = ? AND is_active = ?",
			parentId, VariantTypeImeiChild, true).
		Order("id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetLowStockVariants lists sellable variants at or below their reorder level.
func GetLowStockVariants(ctx context.Context, requestingBranchId int) ([]*Variant, error) {

	scope, err := AccessibleEntityFilter(ctx, requestingBranchId, ShareDomainInventory)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var results []*Variant
	err = db.WithContext(ctx).Scopes(scope).
		Where("variant_type IN ? AND is_active = ? AND min_quantity > 0 AND quantity <= min_quantity",
			[]VariantType{VariantTypeStandard, VariantTypeParent}, true).
		Order("quantity").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
