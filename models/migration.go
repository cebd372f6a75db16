package models

import (
	"log"

	"bitbucket.org/mmdatafocus/pos_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Branch{},
		&Product{}, &Variant{},
		&Supplier{}, &Customer{}, &FinanceAccount{},
		&StockMovement{},
		&PurchaseOrder{}, &PurchaseOrderItem{},
		&TradeInTransaction{}, &StockTransfer{}, &SaleReturn{},
		&VariantImage{}, &InventoryAdjustment{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
