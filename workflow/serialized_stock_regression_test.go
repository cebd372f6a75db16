package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"bitbucket.org/mmdatafocus/pos_backend/workflow"
	"github.com/sirupsen/logrus"
)

// End-to-end serialized stock lifecycle against real MySQL: receive a parent
// with four children, sell two, verify the aggregate and the ledger, race two
// sales on the same child, then exercise the reference guard.
func TestSerializedStockLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "pos_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	logger := logrus.New()
	db := config.GetDB()

	branch, err := models.CreateBranch(ctx, &models.NewBranch{Name: "Main Store"})
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:     "iPhone 13 128GB",
		Sku:      "IP13-128",
		Category: "Phones",
		BranchId: &branch.ID,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	po := models.PurchaseOrder{
		BranchId:    &branch.ID,
		SupplierId:  1,
		OrderNumber: "PO-0001",
		Status:      "received",
		OrderDate:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&po).Error; err != nil {
		t.Fatalf("create purchase order: %v", err)
	}

	parent, err := workflow.CreateParentWithChildren(ctx, logger, product.ID,
		workflow.ParentSpec{Name: "iPhone 13 128GB Blue", Sku: "IP13-128-BL", BranchId: &branch.ID},
		[]workflow.ChildSpec{
			{Imei: "356938035643801"},
			{Imei: "356938035643802"},
			{Imei: "356938035643803"},
			{Imei: "356938035643804"},
		}, po.ID)
	if err != nil {
		t.Fatalf("CreateParentWithChildren: %v", err)
	}
	if parent.Quantity != 4 {
		t.Fatalf("expected parent quantity 4 after receiving; got %d", parent.Quantity)
	}

	children, err := models.ListActiveChildren(ctx, parent.ID)
	if err != nil {
		t.Fatalf("ListActiveChildren: %v", err)
	}
	if len(children) != 4 {
		t.Fatalf("expected 4 active children; got %d", len(children))
	}

	// duplicate serial under the same parent must be rejected
	if _, err := workflow.AddChildToParent(ctx, logger, parent.ID,
		workflow.ChildSpec{Imei: "356938035643801"}, po.ID); err == nil {
		t.Fatal("expected DuplicateSerial for repeated imei")
	} else {
		var dup *utils.DuplicateSerialError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicateSerialError, got %v", err)
		}
	}

	// sell two units
	for i, child := range children[:2] {
		sold, err := workflow.MarkChildSold(ctx, logger, child.ID, 100+i)
		if err != nil {
			t.Fatalf("MarkChildSold(%d): %v", child.ID, err)
		}
		if sold.Quantity != 0 || sold.IsActive == nil || *sold.IsActive {
			t.Fatalf("child %d not terminal after sale", child.ID)
		}
		if sold.VariantAttributes.SaleId == nil || *sold.VariantAttributes.SaleId != 100+i {
			t.Fatalf("child %d missing sale linkage", child.ID)
		}
	}

	// selling an already-sold unit is a normal contention outcome
	if _, err := workflow.MarkChildSold(ctx, logger, children[0].ID, 999); !errors.Is(err, utils.ErrorAlreadySold) {
		t.Fatalf("expected ErrorAlreadySold, got %v", err)
	}

	// recompute returns 2 and is idempotent: same value, zero new ledger rows
	ledgerRowsBefore := countMovements(t, ctx, parent.ID)
	for i := 0; i < 2; i++ {
		tx := db.WithContext(ctx).Begin()
		qty, err := workflow.RecomputeParentQuantity(tx, parent.ID)
		if err != nil {
			t.Fatalf("RecomputeParentQuantity: %v", err)
		}
		if err := tx.Commit().Error; err != nil {
			t.Fatalf("commit recompute: %v", err)
		}
		if qty != 2 {
			t.Fatalf("expected recomputed quantity 2; got %d", qty)
		}
	}
	if after := countMovements(t, ctx, parent.ID); after != ledgerRowsBefore {
		t.Fatalf("recompute appended ledger rows: %d -> %d", ledgerRowsBefore, after)
	}

	// recompute on a non-parent fails typed
	tx := db.WithContext(ctx).Begin()
	if _, err := workflow.RecomputeParentQuantity(tx, children[0].ID); !errors.Is(err, utils.ErrorNotAParent) {
		t.Fatalf("expected ErrorNotAParent, got %v", err)
	}
	tx.Rollback()

	// two concurrent sales of the same unit: exactly one winner
	remaining, err := models.ListActiveChildren(ctx, parent.ID)
	if err != nil {
		t.Fatalf("ListActiveChildren: %v", err)
	}
	contested := remaining[0]
	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, results[slot] = workflow.MarkChildSold(ctx, logger, contested.ID, 200+slot)
		}(i)
	}
	wg.Wait()
	winners, losers := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, utils.ErrorAlreadySold):
			losers++
		default:
			t.Fatalf("unexpected concurrent sale error: %v", err)
		}
	}
	if winners != 1 || losers != 1 {
		t.Fatalf("expected exactly one winner and one AlreadySold; got %d/%d", winners, losers)
	}

	var parentRow models.Variant
	if err := db.WithContext(ctx).First(&parentRow, parent.ID).Error; err != nil {
		t.Fatalf("reload parent: %v", err)
	}
	if parentRow.Quantity != 1 {
		t.Fatalf("expected parent quantity 1 after contested sale; got %d", parentRow.Quantity)
	}

	// every ledger row satisfies new = previous + delta
	var movements []*models.StockMovement
	if err := db.WithContext(ctx).Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	for _, m := range movements {
		if m.NewQuantity != m.PreviousQuantity+m.QuantityDelta {
			t.Fatalf("movement %d violates ledger equation", m.ID)
		}
	}

	// reference guard: three PO items block deletion and nothing is removed
	for i := 0; i < 3; i++ {
		item := models.PurchaseOrderItem{PurchaseOrderId: po.ID, VariantId: parent.ID, Quantity: 1}
		if err := db.WithContext(ctx).Create(&item).Error; err != nil {
			t.Fatalf("create purchase order item: %v", err)
		}
	}
	err = workflow.SafeDelete(ctx, logger, parent.ID, models.DeleteStrategyBlock, 0)
	var refErr *utils.ReferencedEntityError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected ReferencedEntityError, got %v", err)
	}
	found := false
	for _, hit := range refErr.Hits {
		if hit.Table == "purchase_order_items" {
			found = true
			if hit.Count != 3 {
				t.Fatalf("expected 3 purchase_order_items hits; got %d", hit.Count)
			}
		}
	}
	if !found {
		t.Fatal("purchase_order_items missing from hit list")
	}
	if err := db.WithContext(ctx).First(&parentRow, parent.ID).Error; err != nil {
		t.Fatalf("parent must survive a blocked delete: %v", err)
	}

	// direct ledger mutation must be rejected by the connection guard
	if err := db.WithContext(ctx).Model(&models.StockMovement{}).
		Where("variant_id = ?", parent.ID).
		Update("quantity_delta", 99).Error; err == nil {
		t.Fatal("expected ledger guard to reject movement update")
	}

	// renames that omit is_shared must not touch the flag
	if _, err := models.UpdateProduct(ctx, product.ID, &models.NewProduct{
		Name:     "iPhone 13 128GB (2022)",
		Sku:      product.Sku,
		Category: product.Category,
		BranchId: &branch.ID,
	}); err != nil {
		t.Fatalf("UpdateProduct without is_shared: %v", err)
	}
	var productRow models.Product
	if err := db.WithContext(ctx).First(&productRow, product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if productRow.IsShared == nil || *productRow.IsShared {
		t.Fatal("product is_shared flag changed by a rename")
	}
	if _, err := models.UpdateVariant(ctx, parent.ID, &models.NewVariant{
		ProductId: product.ID,
		Name:      "iPhone 13 128GB Blue (2022)",
		Sku:       parent.Sku,
	}); err != nil {
		t.Fatalf("UpdateVariant without is_shared: %v", err)
	}
	if err := db.WithContext(ctx).First(&parentRow, parent.ID).Error; err != nil {
		t.Fatalf("reload parent: %v", err)
	}
	if parentRow.IsShared == nil || *parentRow.IsShared {
		t.Fatal("variant is_shared flag changed by a rename")
	}

	// second parent with one unit, plus a standalone standard variant
	parent2, err := workflow.CreateParentWithChildren(ctx, logger, product.ID,
		workflow.ParentSpec{Name: "iPhone 13 128GB Red", Sku: "IP13-128-RD", BranchId: &branch.ID},
		[]workflow.ChildSpec{{Imei: "356938035643805"}}, po.ID)
	if err != nil {
		t.Fatalf("CreateParentWithChildren(red): %v", err)
	}
	standalone, err := models.CreateVariant(ctx, &models.NewVariant{
		ProductId: product.ID,
		BranchId:  &branch.ID,
		Name:      "iPhone 13 128GB Case",
		Sku:       "IP13-128-CASE",
		Quantity:  10,
	})
	if err != nil {
		t.Fatalf("CreateVariant: %v", err)
	}

	// reassigning children to a non-parent must fail and roll back
	err = workflow.SafeDelete(ctx, logger, parent.ID, models.DeleteStrategyReassign, standalone.ID)
	if !errors.Is(err, utils.ErrorNotAParent) {
		t.Fatalf("expected ErrorNotAParent for standard reassign target, got %v", err)
	}
	if err := db.WithContext(ctx).First(&parentRow, parent.ID).Error; err != nil {
		t.Fatalf("parent must survive a rejected reassign: %v", err)
	}
	if n, err := utils.ResourceCountWhere[models.PurchaseOrderItem](ctx, "variant_id = ?", parent.ID); err != nil || n != 3 {
		t.Fatalf("purchase order items must stay on parent after rejected reassign: n=%d err=%v", n, err)
	}

	// reassign to the second parent: dependents move, aggregate follows
	if err := workflow.SafeDelete(ctx, logger, parent.ID, models.DeleteStrategyReassign, parent2.ID); err != nil {
		t.Fatalf("SafeDelete reassign: %v", err)
	}
	if err := db.WithContext(ctx).First(&parentRow, parent.ID).Error; err == nil {
		t.Fatal("parent must be gone after reassign delete")
	}
	var parent2Row models.Variant
	if err := db.WithContext(ctx).First(&parent2Row, parent2.ID).Error; err != nil {
		t.Fatalf("reload second parent: %v", err)
	}
	if parent2Row.Quantity != 2 {
		t.Fatalf("expected second parent quantity 2 after inheriting a live child; got %d", parent2Row.Quantity)
	}
	if n, err := utils.ResourceCountWhere[models.PurchaseOrderItem](ctx, "variant_id = ?", parent2.ID); err != nil || n != 3 {
		t.Fatalf("purchase order items must follow the reassign target: n=%d err=%v", n, err)
	}

	// cascade takes the parent, its children and every dependent row with it
	if err := workflow.SafeDelete(ctx, logger, parent2.ID, models.DeleteStrategyCascade, 0); err != nil {
		t.Fatalf("SafeDelete cascade: %v", err)
	}
	if err := db.WithContext(ctx).First(&parent2Row, parent2.ID).Error; err == nil {
		t.Fatal("second parent must be gone after cascade delete")
	}
	if n, err := utils.ResourceCountWhere[models.Variant](ctx, "parent_variant_id = ?", parent2.ID); err != nil || n != 0 {
		t.Fatalf("cascade left child variants behind: n=%d err=%v", n, err)
	}
	if n, err := utils.ResourceCountWhere[models.PurchaseOrderItem](ctx, "variant_id = ?", parent2.ID); err != nil || n != 0 {
		t.Fatalf("cascade left purchase order items behind: n=%d err=%v", n, err)
	}
	var totalMovements int64
	if err := db.WithContext(ctx).Model(&models.StockMovement{}).Count(&totalMovements).Error; err != nil {
		t.Fatalf("count all movements: %v", err)
	}
	if totalMovements != 0 {
		t.Fatalf("cascade left %d ledger rows behind", totalMovements)
	}
}

func countMovements(t *testing.T, ctx context.Context, variantId int) int64 {
	t.Helper()
	count, err := utils.ResourceCountWhere[models.StockMovement](ctx, "variant_id = ?", variantId)
	if err != nil {
		t.Fatalf("count movements: %v", err)
	}
	return count
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("pos-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("pos-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=pos_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
