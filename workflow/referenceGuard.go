package workflow

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferenceTable is one (table, column) pair known to hold foreign references
// to a variant. The registry below replaces the pile of per-incident
// "check references before delete" scripts with one declarative list; adding
// a referencing table means adding one line here.
type ReferenceTable struct {
	Table  string
	Column string
}

// variantReferenceRegistry is static: identifiers are never taken from user
// input, only the variant id is a query parameter.
var variantReferenceRegistry = []ReferenceTable{
	{Table: "purchase_order_items", Column: "variant_id"},
	{Table: "stock_movements", Column: "variant_id"},
	{Table: "trade_in_transactions", Column: "variant_id"},
	{Table: "stock_transfers", Column: "variant_id"},
	{Table: "sale_returns", Column: "variant_id"},
	{Table: "variant_images", Column: "variant_id"},
	{Table: "inventory_adjustments", Column: "variant_id"},
	{Table: "variants", Column: "parent_variant_id"},
}

// CheckReferences scans every registered table and returns the non-zero hits.
func CheckReferences(ctx context.Context, variantId int) ([]utils.ReferenceHit, error) {
	db := config.GetDB()
	return checkReferencesTx(db.WithContext(ctx), variantId)
}

func checkReferencesTx(tx *gorm.DB, variantId int) ([]utils.ReferenceHit, error) {
	hits := make([]utils.ReferenceHit, 0)
	for _, ref := range variantReferenceRegistry {
		var count int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", ref.Table, ref.Column)
		if err := tx.Raw(query, variantId).Scan(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			hits = append(hits, utils.ReferenceHit{Table: ref.Table, Count: count})
		}
	}
	return hits, nil
}

// SafeDelete deletes a variant under the given strategy, in one transaction:
//
//   - block: any dependent row aborts with ReferencedEntityError carrying the
//     full hit list, and nothing is deleted.
//   - cascadeDelete: dependent rows go first, then the variant.
//   - reassign: dependent rows are repointed at newVariantId, then the
//     variant is deleted.
//
// A failure anywhere rolls the whole transaction back.
func SafeDelete(ctx context.Context, logger *logrus.Logger, variantId int, strategy models.DeleteStrategy, newVariantId int) error {

	if !strategy.Valid() {
		return fmt.Errorf("invalid delete strategy %q", strategy)
	}
	if strategy == models.DeleteStrategyReassign {
		if newVariantId == 0 || newVariantId == variantId {
			return errors.New("reassign requires a different target variant")
		}
		if err := utils.ValidateResourceId[models.Variant](ctx, newVariantId); err != nil {
			return errors.New("reassign target variant not found")
		}
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	var variant models.Variant
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&variant, variantId).Error; err != nil {
		return utils.ErrorRecordNotFound
	}

	hits, err := checkReferencesTx(tx, variantId)
	if err != nil {
		return utils.WrapTxError(ctx, err)
	}

	switch strategy {
	case models.DeleteStrategyBlock:
		if len(hits) > 0 {
			return &utils.ReferencedEntityError{VariantId: variantId, Hits: hits}
		}

	case models.DeleteStrategyCascade:
		// a parent's children (and their dependents) go down with it,
		// otherwise the registry would leave dangling child rows behind
		var childIds []int
		if err := tx.Model(&models.Variant{}).
			Where("parent_variant_id = ?", variantId).
			Pluck("id", &childIds).Error; err != nil {
			return utils.WrapTxError(ctx, err)
		}
		doomed := append(childIds, variantId)

		for _, ref := range variantReferenceRegistry {
			if ref.Table == "variants" {
				continue // child variants are deleted explicitly below
			}
			if ref.Table == "stock_movements" {
				// ledger rows only die through the explicit audit purge
				for _, id := range doomed {
					if _, err := models.PurgeStockMovements(ctx, tx, id); err != nil {
						return utils.WrapTxError(ctx, err)
					}
				}
				continue
			}
			query := fmt.Sprintf("DELETE FROM %s WHERE %s IN ?", ref.Table, ref.Column)
			if err := tx.Exec(query, doomed).Error; err != nil {
				config.LogError(logger, "referenceGuard.go", "SafeDelete", "cascade "+ref.Table, variantId, err)
				return utils.WrapTxError(ctx, err)
			}
		}
		if len(childIds) > 0 {
			if err := tx.Delete(&models.Variant{}, childIds).Error; err != nil {
				return utils.WrapTxError(ctx, err)
			}
		}

	case models.DeleteStrategyReassign:
		childCount := int64(0)
		for _, hit := range hits {
			if hit.Table == "variants" {
				childCount = hit.Count
			}
		}
		var target models.Variant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&target, newVariantId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if childCount > 0 && target.VariantType != models.VariantTypeParent {
			// imei children can only hang off a parent aggregate
			return utils.ErrorNotAParent
		}

		// repointing ledger rows rewrites audit history, so it runs with the
		// guard bypassed explicitly, same as the purge path
		reassignCtx := utils.SetSkipLedgerGuardInContext(ctx, true)
		for _, ref := range variantReferenceRegistry {
			query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", ref.Table, ref.Column, ref.Column)
			if err := tx.WithContext(reassignCtx).Exec(query, newVariantId, variantId).Error; err != nil {
				config.LogError(logger, "referenceGuard.go", "SafeDelete", "reassign "+ref.Table, variantId, err)
				return utils.WrapTxError(ctx, err)
			}
		}
		if childCount > 0 {
			// the target just inherited live children; its aggregate must follow
			if _, err := RecomputeParentQuantity(tx, newVariantId); err != nil {
				return utils.WrapTxError(ctx, err)
			}
		}
	}

	if err := tx.Delete(&models.Variant{}, variantId).Error; err != nil {
		return utils.WrapTxError(ctx, err)
	}

	if err := tx.Commit().Error; err != nil {
		return utils.WrapTxError(ctx, err)
	}

	logger.WithFields(logrus.Fields{
		"variant_id": variantId,
		"strategy":   strategy,
		"hits":       len(hits),
	}).Info("variant deleted")
	return nil
}

// OrphanReport counts rows with no branch assignment per scoped table.
// Isolated branches never see such rows (the resolver treats them as a
// data-quality defect), so the audit surfaces them for reassignment.
type OrphanReport struct {
	Table string `json:"table"`
	Count int64  `json:"count"`
}

var scopedTables = []string{"products", "variants", "suppliers", "finance_accounts", "customers"}

func FindOrphanedEntities(ctx context.Context) ([]OrphanReport, error) {
	db := config.GetDB()

	reports := make([]OrphanReport, 0)
	for _, table := range scopedTables {
		var count int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE branch_id IS NULL AND is_shared = false", table)
		if err := db.WithContext(ctx).Raw(query).Scan(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			reports = append(reports, OrphanReport{Table: table, Count: count})
		}
	}
	return reports, nil
}
