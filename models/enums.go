package models

import "fmt"

// IsolationMode is the branch-level policy governing default cross-branch visibility.
type IsolationMode string

const (
	IsolationModeIsolated IsolationMode = "isolated"
	IsolationModeShared   IsolationMode = "shared"
	IsolationModeHybrid   IsolationMode = "hybrid"
)

func (m IsolationMode) Valid() bool {
	switch m {
	case IsolationModeIsolated, IsolationModeShared, IsolationModeHybrid:
		return true
	}
	return false
}

func ParseIsolationMode(s string) (IsolationMode, error) {
	m := IsolationMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("invalid isolation mode %q", s)
	}
	return m, nil
}

// ShareDomain names a per-domain sharing toggle on a hybrid branch.
type ShareDomain string

const (
	ShareDomainProducts  ShareDomain = "products"
	ShareDomainInventory ShareDomain = "inventory"
	ShareDomainSuppliers ShareDomain = "suppliers"
	ShareDomainCustomers ShareDomain = "customers"
)

type VariantType string

const (
	VariantTypeStandard  VariantType = "standard"
	VariantTypeParent    VariantType = "parent"
	VariantTypeImeiChild VariantType = "imei_child"
)

func (t VariantType) Valid() bool {
	switch t {
	case VariantTypeStandard, VariantTypeParent, VariantTypeImeiChild:
		return true
	}
	return false
}

// MovementType classifies a stock ledger row.
type MovementType string

const (
	MovementTypeSale       MovementType = "sale"
	MovementTypeReceive    MovementType = "receive"
	MovementTypeAdjustment MovementType = "adjustment"
	MovementTypeTransfer   MovementType = "transfer"
	MovementTypeReturn     MovementType = "return"
)

// MovementReferenceType names the document a ledger row points back to.
type MovementReferenceType string

const (
	MovementReferenceTypeSale          MovementReferenceType = "sale"
	MovementReferenceTypePurchaseOrder MovementReferenceType = "purchase_order"
	MovementReferenceTypeAdjustment    MovementReferenceType = "inventory_adjustment"
	MovementReferenceTypeTransfer      MovementReferenceType = "stock_transfer"
	MovementReferenceTypeReturn        MovementReferenceType = "sale_return"
)

// DeleteStrategy selects how SafeDelete treats dependent rows.
type DeleteStrategy string

const (
	DeleteStrategyBlock    DeleteStrategy = "block"
	DeleteStrategyCascade  DeleteStrategy = "cascadeDelete"
	DeleteStrategyReassign DeleteStrategy = "reassign"
)

func (s DeleteStrategy) Valid() bool {
	switch s {
	case DeleteStrategyBlock, DeleteStrategyCascade, DeleteStrategyReassign:
		return true
	}
	return false
}
