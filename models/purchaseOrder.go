package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

type PurchaseOrder struct {
	ID          int       `gorm:"primary_key" json:"id"`
	BranchId    *int      `gorm:"index" json:"branch_id"`
	SupplierId  int       `gorm:"index;not null" json:"supplier_id"`
	OrderNumber string    `gorm:"index;size:50;not null" json:"order_number"`
	Status      string    `gorm:"size:20;not null;default:'draft'" json:"status"`
	OrderDate   time.Time `gorm:"not null" json:"order_date"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseOrderItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId int             `gorm:"index;not null" json:"purchase_order_id"`
	VariantId       int             `gorm:"index;not null" json:"variant_id"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	return utils.FetchModel[PurchaseOrder](ctx, id)
}

func GetPurchaseOrderItems(ctx context.Context, purchaseOrderId int) ([]*PurchaseOrderItem, error) {
	db := config.GetDB()
	var results []*PurchaseOrderItem
	err := db.WithContext(ctx).
		Where("purchase_order_id = ?", purchaseOrderId).
		Order("id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
