package models

import (
	"context"

	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"gorm.io/gorm"
)

// ScopedEntity is implemented by every record that carries branch scoping
// (products, variants, suppliers, finance accounts, customers).
type ScopedEntity interface {
	GetBranchId() *int
	GetIsShared() bool
}

// IsVisible decides whether an entity is visible from the requesting branch.
// It is a pure function of (entity.branch_id, entity.is_shared,
// branch.isolation_mode, branch share flags); rules are evaluated in
// precedence order and the first match wins:
//
//  1. is_shared entities are visible everywhere.
//  2. a branch in shared mode sees everything.
//  3. a branch in isolated mode sees only entities assigned to it. A nil
//     branch_id is NOT visible here: orphaned rows are a data-quality defect
//     surfaced by the orphan audit, not silently granted visibility.
//  4. a branch in hybrid mode sees everything when the domain share flag is
//     on; otherwise its own entities plus nil-branch entities (legacy rows
//     treated as implicitly global).
//
// The nil-branch asymmetry between (3) and (4) is intentional legacy contract.
func IsVisible(entity ScopedEntity, branch *Branch, domain ShareDomain) bool {
	if entity.GetIsShared() {
		return true
	}

	entityBranchId := entity.GetBranchId()

	switch branch.IsolationMode {
	case IsolationModeShared:
		return true
	case IsolationModeIsolated:
		return entityBranchId != nil && *entityBranchId == branch.ID
	case IsolationModeHybrid:
		if branch.SharesDomain(domain) {
			return true
		}
		return entityBranchId == nil || *entityBranchId == branch.ID
	}
	return false
}

// resolveRequestingBranch loads the branch a caller acts from and rejects
// unknown or deactivated branches.
func resolveRequestingBranch(ctx context.Context, requestingBranchId int) (*Branch, error) {
	branch, err := GetBranch(ctx, requestingBranchId)
	if err != nil {
		return nil, utils.ErrorUnknownBranch
	}
	if branch.IsActive == nil || !*branch.IsActive {
		return nil, utils.ErrorUnknownBranch
	}
	return branch, nil
}

// AccessibleEntityFilter builds the WHERE predicate for list queries so they
// return exactly the rows IsVisible would accept. Use as:
//
//	db.Scopes(scope).Find(&products)
func AccessibleEntityFilter(ctx context.Context, requestingBranchId int, domain ShareDomain) (func(*gorm.DB) *gorm.DB, error) {

	branch, err := resolveRequestingBranch(ctx, requestingBranchId)
	if err != nil {
		return nil, err
	}

	switch {
	case branch.IsolationMode == IsolationModeShared:
		return func(tx *gorm.DB) *gorm.DB { return tx }, nil

	case branch.IsolationMode == IsolationModeHybrid && branch.SharesDomain(domain):
		return func(tx *gorm.DB) *gorm.DB { return tx }, nil

	case branch.IsolationMode == IsolationModeHybrid:
		return func(tx *gorm.DB) *gorm.DB {
			return tx.Where("is_shared = ? OR branch_id = ? OR branch_id IS NULL", true, branch.ID)
		}, nil

	default: // isolated
		return func(tx *gorm.DB) *gorm.DB {
			return tx.Where("is_shared = ? OR branch_id = ?", true, branch.ID)
		}, nil
	}
}

// CheckVisible is the single-entity form used by fetch paths: it resolves the
// requesting branch and applies IsVisible.
func CheckVisible(ctx context.Context, entity ScopedEntity, requestingBranchId int, domain ShareDomain) (bool, error) {
	branch, err := resolveRequestingBranch(ctx, requestingBranchId)
	if err != nil {
		return false, err
	}
	return IsVisible(entity, branch, domain), nil
}
