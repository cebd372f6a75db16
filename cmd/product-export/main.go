package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"github.com/xuri/excelize/v2"
)

// Exports the catalog visible from one branch to an xlsx workbook, one row
// per variant, for offline stocktakes and imports into other systems.
func main() {
	branchID := flag.Int("branch-id", 0, "Required: branch the export is taken from")
	outFile := flag.String("out", "products.xlsx", "Output file path")
	timeoutSeconds := flag.Int("timeout", 300, "Overall deadline in seconds")
	flag.Parse()

	if *branchID == 0 {
		fmt.Fprintln(os.Stderr, "--branch-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutSeconds)*time.Second)
	defer cancel()

	products, err := models.GetProducts(ctx, *branchID, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list products: %v\n", err)
		os.Exit(1)
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Products"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Product", "Category", "Variant", "Type", "SKU", "Barcode", "Serial", "Qty", "Min Qty", "Cost", "Price", "Active"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, product := range products {
		variants, err := models.GetVariants(ctx, *branchID, product.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list variants of product %d: %v\n", product.ID, err)
			os.Exit(1)
		}
		for _, v := range variants {
			values := []interface{}{
				product.Name,
				product.Category,
				v.Name,
				string(v.VariantType),
				v.Sku,
				v.Barcode,
				v.VariantAttributes.Serial(),
				v.Quantity,
				v.MinQuantity,
				v.CostPrice.String(),
				v.SellingPrice.String(),
				strconv.FormatBool(v.IsActive != nil && *v.IsActive),
			}
			for i, value := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				f.SetCellValue(sheet, cell, value)
			}
			row++
		}
	}

	if err := f.SaveAs(*outFile); err != nil {
		fmt.Fprintf(os.Stderr, "save %s: %v\n", *outFile, err)
		os.Exit(1)
	}
	fmt.Printf("exported %d row(s) to %s\n", row-2, *outFile)
}
