package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

// FinanceAccount is a payment/cash account a branch settles sales against.
// It participates in branch scoping like any other scoped entity but carries
// no postings here; the accounting ledger proper lives outside this engine.
type FinanceAccount struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BranchId    *int            `gorm:"index" json:"branch_id"`
	Name        string          `gorm:"index;size:100;not null" json:"name"`
	AccountType string          `gorm:"size:50" json:"account_type"`
	Balance     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	IsShared    *bool           `gorm:"not null;default:false" json:"is_shared"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a FinanceAccount) GetBranchId() *int { return a.BranchId }
func (a FinanceAccount) GetIsShared() bool { return a.IsShared != nil && *a.IsShared }

type NewFinanceAccount struct {
	BranchId    *int   `json:"branch_id"`
	Name        string `json:"name" validate:"required"`
	AccountType string `json:"account_type"`
	IsShared    *bool  `json:"is_shared"`
}

func CreateFinanceAccount(ctx context.Context, input *NewFinanceAccount) (*FinanceAccount, error) {

	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[FinanceAccount](ctx, "name", input.Name, 0); err != nil {
		return nil, err
	}
	if input.BranchId != nil {
		if err := utils.ValidateResourceId[Branch](ctx, *input.BranchId); err != nil {
			return nil, errors.New("branch not found")
		}
	}

	isShared := input.IsShared
	if isShared == nil {
		isShared = utils.NewFalse()
	}
	account := FinanceAccount{
		BranchId:    input.BranchId,
		Name:        input.Name,
		AccountType: input.AccountType,
		Balance:     decimal.Zero,
		IsShared:    isShared,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func GetFinanceAccounts(ctx context.Context, requestingBranchId int) ([]*FinanceAccount, error) {

	// finance accounts follow the inventory sharing toggle: hybrid branches
	// that share stock also share the accounts that settle it.
	scope, err := AccessibleEntityFilter(ctx, requestingBranchId, ShareDomainInventory)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var results []*FinanceAccount
	err = db.WithContext(ctx).Scopes(scope).
		Where("is_active = ?", true).Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
