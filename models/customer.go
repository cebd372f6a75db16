package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
)

type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	BranchId  *int      `gorm:"index" json:"branch_id"`
	Name      string    `gorm:"index;size:255;not null" json:"name"`
	Phone     string    `gorm:"index;size:20" json:"phone"`
	Email     string    `gorm:"size:100" json:"email"`
	City      string    `gorm:"size:100" json:"city"`
	IsShared  *bool     `gorm:"not null;default:false" json:"is_shared"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c Customer) GetBranchId() *int { return c.BranchId }
func (c Customer) GetIsShared() bool { return c.IsShared != nil && *c.IsShared }

type NewCustomer struct {
	BranchId *int   `json:"branch_id"`
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone"`
	Email    string `json:"email" validate:"omitempty,email"`
	City     string `json:"city"`
	IsShared *bool  `json:"is_shared"`
}

func (input *NewCustomer) validate(ctx context.Context, id int) error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if len(input.Phone) > 0 {
		if err := utils.ValidateUnique[Customer](ctx, "phone", input.Phone, id); err != nil {
			return err
		}
	}
	if input.BranchId != nil {
		if err := utils.ValidateResourceId[Branch](ctx, *input.BranchId); err != nil {
			return errors.New("branch not found")
		}
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	isShared := input.IsShared
	if isShared == nil {
		isShared = utils.NewFalse()
	}
	customer := Customer{
		BranchId: input.BranchId,
		Name:     input.Name,
		Phone:    input.Phone,
		Email:    input.Email,
		City:     input.City,
		IsShared: isShared,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func GetCustomer(ctx context.Context, id int, requestingBranchId int) (*Customer, error) {

	customer, err := utils.FetchModel[Customer](ctx, id)
	if err != nil {
		return nil, err
	}

	visible, err := CheckVisible(ctx, *customer, requestingBranchId, ShareDomainCustomers)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, utils.ErrorRecordNotFound
	}
	return customer, nil
}

func GetCustomers(ctx context.Context, requestingBranchId int, name *string) ([]*Customer, error) {

	scope, err := AccessibleEntityFilter(ctx, requestingBranchId, ShareDomainCustomers)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Scopes(scope).Where("is_active = ?", true)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}

	var results []*Customer
	err = dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveCustomer(ctx context.Context, id int, isActive bool) (*Customer, error) {

	customer, err := utils.FetchModel[Customer](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(customer).UpdateColumn("IsActive", isActive).Error
	if err != nil {
		return nil, err
	}
	return customer, nil
}
