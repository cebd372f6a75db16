package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
)

type Branch struct {
	ID             int           `gorm:"primary_key" json:"id"`
	Name           string        `gorm:"index;size:100;not null" json:"name"`
	Phone          string        `gorm:"size:20" json:"phone"`
	Address        string        `gorm:"type:text" json:"address"`
	City           string        `gorm:"size:100" json:"city"`
	IsolationMode  IsolationMode `gorm:"type:enum('isolated','shared','hybrid');not null;default:'isolated'" json:"isolation_mode"`
	ShareProducts  *bool         `gorm:"not null;default:false" json:"share_products"`
	ShareInventory *bool         `gorm:"not null;default:false" json:"share_inventory"`
	ShareSuppliers *bool         `gorm:"not null;default:false" json:"share_suppliers"`
	ShareCustomers *bool         `gorm:"not null;default:false" json:"share_customers"`
	IsActive       *bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBranch struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
}

// ShareFlags holds the per-domain sharing toggles of a hybrid branch.
// All four must be stated explicitly; the registry never defaults them.
type ShareFlags struct {
	Products  bool `json:"products"`
	Inventory bool `json:"inventory"`
	Suppliers bool `json:"suppliers"`
	Customers bool `json:"customers"`
}

// SharesDomain reports whether the branch shares the given domain with all
// other branches under hybrid mode.
func (b *Branch) SharesDomain(domain ShareDomain) bool {
	switch domain {
	case ShareDomainProducts:
		return b.ShareProducts != nil && *b.ShareProducts
	case ShareDomainInventory:
		return b.ShareInventory != nil && *b.ShareInventory
	case ShareDomainSuppliers:
		return b.ShareSuppliers != nil && *b.ShareSuppliers
	case ShareDomainCustomers:
		return b.ShareCustomers != nil && *b.ShareCustomers
	}
	return false
}

// validate input for both create & update. (id = 0 for create)

func (input *NewBranch) validate(ctx context.Context, id int) error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if id > 0 {
		if err := utils.ValidateResourceId[Branch](ctx, id); err != nil {
			return err
		}
	}
	// name
	if err := utils.ValidateUnique[Branch](ctx, "name", input.Name, id); err != nil {
		return err
	}
	// phone
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidateUnique[Branch](ctx, "phone", input.Phone, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateBranch(ctx context.Context, input *NewBranch) (*Branch, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	branch := Branch{
		Name:           input.Name,
		Phone:          input.Phone,
		Address:        input.Address,
		City:           input.City,
		IsolationMode:  IsolationModeIsolated,
		ShareProducts:  utils.NewFalse(),
		ShareInventory: utils.NewFalse(),
		ShareSuppliers: utils.NewFalse(),
		ShareCustomers: utils.NewFalse(),
		IsActive:       utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&branch).Error
	if err != nil {
		return nil, err
	}

	return &branch, nil
}

func UpdateBranch(ctx context.Context, id int, input *NewBranch) (*Branch, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	branch, err := utils.FetchModel[Branch](ctx, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(branch).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Phone":   input.Phone,
		"Address": input.Address,
		"City":    input.City,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedis[Branch](id); err != nil {
		return nil, err
	}
	return branch, nil
}

// UpdateIsolationPolicy sets a branch's isolation mode and sharing toggles.
// Hybrid mode requires explicit per-domain flags; there is no silent
// defaulting at the registry layer.
func UpdateIsolationPolicy(ctx context.Context, id int, mode IsolationMode, flags *ShareFlags) (*Branch, error) {

	if !mode.Valid() {
		return nil, errors.New("invalid isolation mode")
	}
	if mode == IsolationModeHybrid && flags == nil {
		return nil, errors.New("hybrid mode requires explicit share flags")
	}

	branch, err := utils.FetchModel[Branch](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"IsolationMode": mode,
	}
	if flags != nil {
		updates["ShareProducts"] = flags.Products
		updates["ShareInventory"] = flags.Inventory
		updates["ShareSuppliers"] = flags.Suppliers
		updates["ShareCustomers"] = flags.Customers
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(branch).Updates(updates).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedis[Branch](id); err != nil {
		return nil, err
	}
	return branch, nil
}

// GetBranch reads through the redis cache; branch records gate every
// visibility decision so they are the hottest read in the engine.
func GetBranch(ctx context.Context, id int) (*Branch, error) {

	cached, err := utils.RetrieveRedis[Branch](id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	branch, err := utils.FetchModel[Branch](ctx, id)
	if err != nil {
		return nil, err
	}

	if err := utils.StoreRedis[Branch](branch, id); err != nil {
		return nil, err
	}
	return branch, nil
}

func GetActiveBranches(ctx context.Context) ([]*Branch, error) {

	db := config.GetDB()
	var results []*Branch
	err := db.WithContext(ctx).Where("is_active = ?", true).Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ToggleActiveBranch soft-deactivates; branches are never hard-deleted.
func ToggleActiveBranch(ctx context.Context, id int, isActive bool) (*Branch, error) {

	branch, err := utils.FetchModel[Branch](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(branch).UpdateColumn("IsActive", isActive).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedis[Branch](id); err != nil {
		return nil, err
	}
	return branch, nil
}
