package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/workflow"
)

// Scans every branch-scoped table for rows with no branch assignment.
// Isolated branches never see such rows, so each one is a defect to be
// reassigned (or only implicitly visible to hybrid branches).
func main() {
	assignBranchID := flag.Int("assign-branch-id", 0, "Optional: reassign all orphaned rows to this branch")
	timeoutSeconds := flag.Int("timeout", 300, "Overall deadline in seconds")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutSeconds)*time.Second)
	defer cancel()

	reports, err := workflow.FindOrphanedEntities(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orphan scan failed: %v\n", err)
		os.Exit(1)
	}
	if len(reports) == 0 {
		fmt.Println("no orphaned rows found")
		return
	}
	for _, r := range reports {
		fmt.Printf("%s: %d orphaned row(s)\n", r.Table, r.Count)
	}

	if *assignBranchID == 0 {
		return
	}

	branch, err := models.GetBranch(ctx, *assignBranchID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "branch %d not found\n", *assignBranchID)
		os.Exit(1)
	}
	fmt.Printf("reassigning orphaned rows to branch %q (id=%d)\n", branch.Name, branch.ID)

	for _, r := range reports {
		result := db.WithContext(ctx).Exec(
			// table names come from the static scan registry, never from input
			fmt.Sprintf("UPDATE %s SET branch_id = ? WHERE branch_id IS NULL AND is_shared = false", r.Table),
			branch.ID,
		)
		if result.Error != nil {
			fmt.Fprintf(os.Stderr, "reassign %s: %v\n", r.Table, result.Error)
			os.Exit(1)
		}
		fmt.Printf("%s: reassigned %d row(s)\n", r.Table, result.RowsAffected)
	}
}
