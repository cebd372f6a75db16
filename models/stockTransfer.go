package models

import "time"

// StockTransfer moves units of a variant between branches. Only the reference
// surface matters to this engine; transfer posting itself is a caller.
type StockTransfer struct {
	ID           int       `gorm:"primary_key" json:"id"`
	VariantId    int       `gorm:"index;not null" json:"variant_id"`
	FromBranchId int       `gorm:"index;not null" json:"from_branch_id"`
	ToBranchId   int       `gorm:"index;not null" json:"to_branch_id"`
	Quantity     int       `gorm:"not null" json:"quantity"`
	Status       string    `gorm:"size:20;not null;default:'pending'" json:"status"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SaleReturn records a unit coming back from a customer. Restocking a
// serialized unit creates a NEW child row; the sold child stays terminal, so
// the return only references the original variant.
type SaleReturn struct {
	ID        int       `gorm:"primary_key" json:"id"`
	BranchId  *int      `gorm:"index" json:"branch_id"`
	SaleId    int       `gorm:"index;not null" json:"sale_id"`
	VariantId int       `gorm:"index;not null" json:"variant_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	Reason    string    `gorm:"type:text" json:"reason"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// VariantImage is an uploaded image pointer. Upload/serving is out of scope;
// the row exists so deletion scans can find it.
type VariantImage struct {
	ID        int       `gorm:"primary_key" json:"id"`
	VariantId int       `gorm:"index;not null" json:"variant_id"`
	Url       string    `gorm:"size:500;not null" json:"url"`
	IsPrimary *bool     `gorm:"not null;default:false" json:"is_primary"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
