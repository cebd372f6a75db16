package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeInTransaction records a customer handing a device in against a new
// sale. It references the variant being traded against, so it participates in
// the reference-integrity scan.
type TradeInTransaction struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BranchId     *int            `gorm:"index" json:"branch_id"`
	CustomerId   int             `gorm:"index;not null" json:"customer_id"`
	VariantId    int             `gorm:"index;not null" json:"variant_id"`
	DeviceSerial string          `gorm:"size:100" json:"device_serial"`
	TradeInValue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"trade_in_value"`
	Status       string          `gorm:"size:20;not null;default:'pending'" json:"status"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
