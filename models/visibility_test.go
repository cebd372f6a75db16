package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
)

func branchWith(id int, mode models.IsolationMode, shareProducts bool) *models.Branch {
	return &models.Branch{
		ID:             id,
		Name:           "Branch",
		IsolationMode:  mode,
		ShareProducts:  &shareProducts,
		ShareInventory: utils.NewFalse(),
		ShareSuppliers: utils.NewFalse(),
		ShareCustomers: utils.NewFalse(),
		IsActive:       utils.NewTrue(),
	}
}

func productScoped(branchId *int, isShared bool) models.Product {
	return models.Product{Name: "P", BranchId: branchId, IsShared: &isShared}
}

func TestIsVisible_PrecedenceTable(t *testing.T) {
	branchX := 1
	branchY := 2

	cases := []struct {
		name          string
		entityBranch  *int
		entityShared  bool
		mode          models.IsolationMode
		shareProducts bool
		want          bool
	}{
		// rule 1: is_shared wins over everything
		{"shared entity, isolated foreign branch", &branchY, true, models.IsolationModeIsolated, false, true},
		{"shared entity, hybrid no flag", &branchY, true, models.IsolationModeHybrid, false, true},
		{"shared entity, nil branch, isolated", nil, true, models.IsolationModeIsolated, false, true},

		// rule 2: shared mode sees everything
		{"shared mode, foreign entity", &branchY, false, models.IsolationModeShared, false, true},
		{"shared mode, nil branch entity", nil, false, models.IsolationModeShared, false, true},

		// rule 3: isolated mode matches branch exactly; nil branch is NOT visible
		{"isolated, own entity", &branchX, false, models.IsolationModeIsolated, false, true},
		{"isolated, foreign entity", &branchY, false, models.IsolationModeIsolated, false, false},
		{"isolated, orphaned entity", nil, false, models.IsolationModeIsolated, false, false},

		// rule 4: hybrid with flag shares the domain; without flag, own + nil
		{"hybrid with flag, foreign entity", &branchY, false, models.IsolationModeHybrid, true, true},
		{"hybrid no flag, own entity", &branchX, false, models.IsolationModeHybrid, false, true},
		{"hybrid no flag, foreign entity", &branchY, false, models.IsolationModeHybrid, false, false},
		{"hybrid no flag, nil branch entity", nil, false, models.IsolationModeHybrid, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			branch := branchWith(branchX, tc.mode, tc.shareProducts)
			entity := productScoped(tc.entityBranch, tc.entityShared)
			got := models.IsVisible(entity, branch, models.ShareDomainProducts)
			if got != tc.want {
				t.Fatalf("IsVisible = %v; want %v", got, tc.want)
			}
		})
	}
}

// Branch X in isolated mode, product owned by branch Y, not shared: invisible.
func TestIsVisible_IsolatedForeignProduct(t *testing.T) {
	branchY := 2
	branch := branchWith(1, models.IsolationModeIsolated, false)
	entity := productScoped(&branchY, false)
	if models.IsVisible(entity, branch, models.ShareDomainProducts) {
		t.Fatal("foreign product must not be visible from an isolated branch")
	}
}

// Branch X in hybrid mode with share_products=false, product with nil branch:
// visible (legacy rows are implicitly global under hybrid).
func TestIsVisible_HybridNilBranchProduct(t *testing.T) {
	branch := branchWith(1, models.IsolationModeHybrid, false)
	entity := productScoped(nil, false)
	if !models.IsVisible(entity, branch, models.ShareDomainProducts) {
		t.Fatal("nil-branch product must be visible from a hybrid branch")
	}
}

// The nil-branch asymmetry between isolated and hybrid is a contract, not an
// accident: pin both sides in one place.
func TestIsVisible_NilBranchAsymmetry(t *testing.T) {
	entity := productScoped(nil, false)

	isolated := branchWith(1, models.IsolationModeIsolated, false)
	if models.IsVisible(entity, isolated, models.ShareDomainProducts) {
		t.Fatal("isolated mode must treat nil branch_id as a defect, not grant visibility")
	}

	hybrid := branchWith(1, models.IsolationModeHybrid, false)
	if !models.IsVisible(entity, hybrid, models.ShareDomainProducts) {
		t.Fatal("hybrid mode must treat nil branch_id as implicitly global")
	}
}

// IsVisible is a pure function: same inputs, same answer, any call order.
func TestIsVisible_Deterministic(t *testing.T) {
	branchY := 2
	branch := branchWith(1, models.IsolationModeHybrid, false)
	entities := []models.Product{
		productScoped(&branchY, false),
		productScoped(nil, false),
		productScoped(&branchY, true),
	}

	var first []bool
	for _, e := range entities {
		first = append(first, models.IsVisible(e, branch, models.ShareDomainProducts))
	}
	// reversed order, repeated calls
	for i := len(entities) - 1; i >= 0; i-- {
		for n := 0; n < 3; n++ {
			if got := models.IsVisible(entities[i], branch, models.ShareDomainProducts); got != first[i] {
				t.Fatalf("IsVisible not deterministic for entity %d", i)
			}
		}
	}
}

// Domain flags are independent: sharing products must not leak customers.
func TestIsVisible_DomainFlagIsolation(t *testing.T) {
	branchY := 2
	branch := branchWith(1, models.IsolationModeHybrid, true)

	product := productScoped(&branchY, false)
	if !models.IsVisible(product, branch, models.ShareDomainProducts) {
		t.Fatal("share_products=true must expose foreign products")
	}

	notShared := false
	customer := models.Customer{Name: "C", BranchId: &branchY, IsShared: &notShared}
	if models.IsVisible(customer, branch, models.ShareDomainCustomers) {
		t.Fatal("share_products must not expose foreign customers")
	}
}
