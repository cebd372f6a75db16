package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"bitbucket.org/mmdatafocus/pos_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// Walks every parent variant, recomputes its quantity from the active
// serialized children, and reports + fixes drift. Serialized across
// operators with a redis lock so two rebuilds never interleave.
func main() {
	parentID := flag.Int("parent-id", 0, "Optional: rebuild a single parent variant")
	dryRun := flag.Bool("dry-run", false, "Report drift without fixing it")
	timeoutSeconds := flag.Int("timeout", 600, "Overall deadline in seconds")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutSeconds)*time.Second)
	defer cancel()

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "inventory-rebuild", 10*time.Minute, nil)
		if err == redislock.ErrNotObtained {
			fmt.Fprintln(os.Stderr, "another rebuild is already running")
			os.Exit(1)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "obtain rebuild lock: %v\n", err)
			os.Exit(1)
		}
		defer lock.Release(ctx)
	}

	if *dryRun {
		drifts, err := reportDrift(ctx, *parentID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "drift report failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range drifts {
			fmt.Printf("parent=%d stored=%d derived=%d\n", d.ParentId, d.StoredQty, d.DerivedQty)
		}
		fmt.Printf("%d parent(s) with drift\n", len(drifts))
		return
	}

	var drifts []workflow.ParentDrift
	var err error
	if *parentID > 0 {
		var drift *workflow.ParentDrift
		drift, err = workflow.RepairParentQuantity(ctx, logger, *parentID)
		if drift != nil {
			drifts = append(drifts, *drift)
		}
	} else {
		drifts, err = workflow.RepairParentQuantities(ctx, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}
	for _, d := range drifts {
		fmt.Printf("repaired parent=%d %d -> %d\n", d.ParentId, d.StoredQty, d.DerivedQty)
	}
	fmt.Printf("done; %d parent(s) repaired\n", len(drifts))
}

func reportDrift(ctx context.Context, onlyParentID int) ([]workflow.ParentDrift, error) {
	db := config.GetDB()

	dbCtx := db.WithContext(ctx).Model(&models.Variant{}).
		Where("variant_type = ?", models.VariantTypeParent)
	if onlyParentID > 0 {
		dbCtx = dbCtx.Where("id = ?", onlyParentID)
	}
	var parents []*models.Variant
	if err := dbCtx.Order("id").Find(&parents).Error; err != nil {
		return nil, err
	}

	drifts := make([]workflow.ParentDrift, 0)
	for _, parent := range parents {
		derived, err := utils.ResourceCountWhere[models.Variant](ctx,
			"parent_variant_id = ? AND variant_type = ? AND is_active = ? AND quantity > 0",
			parent.ID, models.VariantTypeImeiChild, true)
		if err != nil {
			return nil, err
		}
		if int(derived) != parent.Quantity {
			drifts = append(drifts, workflow.ParentDrift{
				ParentId:   parent.ID,
				StoredQty:  parent.Quantity,
				DerivedQty: int(derived),
			})
		}
	}
	return drifts, nil
}
