package models

import "time"

// InventoryAdjustment is the document row behind a manual quantity
// correction. The quantity change itself is posted by the adjustment
// workflow, which appends the matching stock movement in the same
// transaction.
type InventoryAdjustment struct {
	ID          int       `gorm:"primary_key" json:"id"`
	BranchId    *int      `gorm:"index" json:"branch_id"`
	VariantId   int       `gorm:"index;not null" json:"variant_id"`
	OldQuantity int       `gorm:"not null" json:"old_quantity"`
	NewQuantity int       `gorm:"not null" json:"new_quantity"`
	Reason      string    `gorm:"type:text;not null" json:"reason"`
	CreatedBy   int       `json:"created_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
