package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
)

type Product struct {
	ID          int       `gorm:"primary_key" json:"id"`
	BranchId    *int      `gorm:"index" json:"branch_id"`
	Name        string    `gorm:"index;size:255;not null" json:"name"`
	Sku         string    `gorm:"index;size:100" json:"sku"`
	Category    string    `gorm:"size:100" json:"category"`
	Description string    `gorm:"type:text" json:"description"`
	IsShared    *bool     `gorm:"not null;default:false" json:"is_shared"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Product) GetBranchId() *int { return p.BranchId }
func (p Product) GetIsShared() bool { return p.IsShared != nil && *p.IsShared }

type NewProduct struct {
	BranchId    *int   `json:"branch_id"`
	Name        string `json:"name" validate:"required"`
	Sku         string `json:"sku"`
	Category    string `json:"category"`
	Description string `json:"description"`
	IsShared    *bool  `json:"is_shared"`
}

// validate input for both create & update. (id = 0 for create)

func (input *NewProduct) validate(ctx context.Context, id int) error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if id > 0 {
		if err := utils.ValidateResourceId[Product](ctx, id); err != nil {
			return err
		}
	}
	// name
	if err := utils.ValidateUnique[Product](ctx, "name", input.Name, id); err != nil {
		return err
	}
	// owning branch must exist when assigned
	if input.BranchId != nil {
		if err := utils.ValidateResourceId[Branch](ctx, *input.BranchId); err != nil {
			return errors.New("branch not found")
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	isShared := input.IsShared
	if isShared == nil {
		isShared = utils.NewFalse()
	}
	product := Product{
		BranchId:    input.BranchId,
		Name:        input.Name,
		Sku:         input.Sku,
		Category:    input.Category,
		Description: input.Description,
		IsShared:    isShared,
		IsActive:    utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"BranchId":    input.BranchId,
		"Name":        input.Name,
		"Sku":         input.Sku,
		"Category":    input.Category,
		"Description": input.Description,
	}
	// omitted is_shared means "leave the flag alone"; the column is not null
	if input.IsShared != nil {
		updates["IsShared"] = *input.IsShared
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(product).Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return product, nil
}

// GetProduct fetches one product, enforcing branch visibility for the caller.
func GetProduct(ctx context.Context, id int, requestingBranchId int) (*Product, error) {

	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}

	visible, err := CheckVisible(ctx, *product, requestingBranchId, ShareDomainProducts)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, utils.ErrorRecordNotFound
	}
	return product, nil
}

// GetProducts lists products visible from the requesting branch.
func GetProducts(ctx context.Context, requestingBranchId int, name *string) ([]*Product, error) {

	scope, err := AccessibleEntityFilter(ctx, requestingBranchId, ShareDomainProducts)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Scopes(scope).Where("is_active = ?", true)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}

	var results []*Product
	err = dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveProduct(ctx context.Context, id int, isActive bool) (*Product, error) {

	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(product).UpdateColumn("IsActive", isActive).Error
	if err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes a product that has no variants left. Variant removal
// goes through the reference integrity guard first.
func DeleteProduct(ctx context.Context, id int) (*Product, error) {

	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[Variant](ctx, "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("product still has variants")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}
