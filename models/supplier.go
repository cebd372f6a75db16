package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
)

type Supplier struct {
	ID        int       `gorm:"primary_key" json:"id"`
	BranchId  *int      `gorm:"index" json:"branch_id"`
	Name      string    `gorm:"index;size:255;not null" json:"name"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Email     string    `gorm:"size:100" json:"email"`
	Address   string    `gorm:"type:text" json:"address"`
	IsShared  *bool     `gorm:"not null;default:false" json:"is_shared"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s Supplier) GetBranchId() *int { return s.BranchId }
func (s Supplier) GetIsShared() bool { return s.IsShared != nil && *s.IsShared }

type NewSupplier struct {
	BranchId *int   `json:"branch_id"`
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone"`
	Email    string `json:"email" validate:"omitempty,email"`
	Address  string `json:"address"`
	IsShared *bool  `json:"is_shared"`
}

func (input *NewSupplier) validate(ctx context.Context, id int) error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Supplier](ctx, "name", input.Name, id); err != nil {
		return err
	}
	if input.BranchId != nil {
		if err := utils.ValidateResourceId[Branch](ctx, *input.BranchId); err != nil {
			return errors.New("branch not found")
		}
	}
	return nil
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	isShared := input.IsShared
	if isShared == nil {
		isShared = utils.NewFalse()
	}
	supplier := Supplier{
		BranchId: input.BranchId,
		Name:     input.Name,
		Phone:    input.Phone,
		Email:    input.Email,
		Address:  input.Address,
		IsShared: isShared,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&supplier).Error
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

func GetSupplier(ctx context.Context, id int, requestingBranchId int) (*Supplier, error) {

	supplier, err := utils.FetchModel[Supplier](ctx, id)
	if err != nil {
		return nil, err
	}

	visible, err := CheckVisible(ctx, *supplier, requestingBranchId, ShareDomainSuppliers)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, utils.ErrorRecordNotFound
	}
	return supplier, nil
}

func GetSuppliers(ctx context.Context, requestingBranchId int, name *string) ([]*Supplier, error) {

	scope, err := AccessibleEntityFilter(ctx, requestingBranchId, ShareDomainSuppliers)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Scopes(scope).Where("is_active = ?", true)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}

	var results []*Supplier
	err = dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveSupplier(ctx context.Context, id int, isActive bool) (*Supplier, error) {

	supplier, err := utils.FetchModel[Supplier](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(supplier).UpdateColumn("IsActive", isActive).Error
	if err != nil {
		return nil, err
	}
	return supplier, nil
}
