package consistency

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ultramarket/inventory-core/internal/audit"
	"github.com/ultramarket/inventory-core/internal/inventory"
	"github.com/ultramarket/inventory-core/pkg/db/models"
	"github.com/ultramarket/inventory-core/pkg/enums"
	"github.com/ultramarket/inventory-core/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newTestResolver(t *testing.T, db *gorm.DB) Resolver {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	auditSvc, err := audit.NewService(audit.NewRepository(db))
	if err != nil {
		t.Fatalf("audit service: %v", err)
	}
	resolver, err := NewResolver(gormTxRunner{db: db}, inventory.NewRepository(db), auditSvc, logg)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return resolver
}

func TestFixRepairsShortage(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	resolver := newTestResolver(t, db)
	ctx := context.Background()

	productID := uuid.New()
	warehouseID := uuid.New()
	record := models.InventoryRecord{
		ProductID:    productID,
		WarehouseID:  warehouseID,
		TotalQty:     5,
		AvailableQty: -2,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}

	result, err := resolver.Fix(ctx, []Discrepancy{{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Type:        enums.DiscrepancyTypeShortage,
		ExpectedQty: 10,
		ActualQty:   -2,
		Difference:  12,
	}})
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if !result.Success || result.Fixed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	var repaired models.InventoryRecord
	if err := db.First(&repaired, "product_id = ? AND warehouse_id = ?", productID, warehouseID).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if repaired.AvailableQty != 10 {
		t.Fatalf("available should be force-set to 10, got %d", repaired.AvailableQty)
	}
	if repaired.TotalQty != 10 {
		t.Fatalf("total should be clamped up to 10, got %d", repaired.TotalQty)
	}

	var movements []models.StockMovement
	if err := db.Where("product_id = ?", productID).Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected exactly one repair movement, got %d", len(movements))
	}
	m := movements[0]
	if m.Type != enums.MovementTypeAdjust ||
		m.ReferenceType != enums.ReferenceTypeConsistencyFix ||
		m.PerformedBy != "system" {
		t.Fatalf("unexpected repair movement: %+v", m)
	}
}

func TestFixCreatesRecordForMissingDiscrepancy(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	resolver := newTestResolver(t, db)
	ctx := context.Background()

	productID := uuid.New()
	warehouseID := uuid.New()

	result, err := resolver.Fix(ctx, []Discrepancy{{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Type:        enums.DiscrepancyTypeMissing,
		ExpectedQty: 0,
	}})
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if result.Fixed != 1 {
		t.Fatalf("expected one fix, got %d", result.Fixed)
	}

	var created models.InventoryRecord
	if err := db.First(&created, "product_id = ? AND warehouse_id = ?", productID, warehouseID).Error; err != nil {
		t.Fatalf("missing pair should gain a record: %v", err)
	}
	if created.TotalQty != 0 || created.AvailableQty != 0 {
		t.Fatalf("fresh record should be empty, got %d/%d", created.TotalQty, created.AvailableQty)
	}
}

func TestFixContinuesPastFailures(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	resolver := newTestResolver(t, db)
	ctx := context.Background()

	productID := uuid.New()
	warehouseID := uuid.New()
	record := models.InventoryRecord{
		ProductID:    productID,
		WarehouseID:  warehouseID,
		TotalQty:     8,
		AvailableQty: 12,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}

	result, err := resolver.Fix(ctx, []Discrepancy{
		{Type: enums.DiscrepancyTypeShortage, ExpectedQty: 1}, // nil pair, fails validation
		{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Type:        enums.DiscrepancyTypeExcess,
			ExpectedQty: 8,
			ActualQty:   12,
			Difference:  4,
		},
	})
	if err == nil {
		t.Fatal("expected combined error for the failed item")
	}
	if result.Success {
		t.Fatal("result must not report success with failures present")
	}
	if result.Fixed != 1 {
		t.Fatalf("valid item should still be repaired, fixed=%d", result.Fixed)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected one recorded failure, got %d", len(result.Errors))
	}

	var repaired models.InventoryRecord
	if err := db.First(&repaired, "product_id = ? AND warehouse_id = ?", productID, warehouseID).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if repaired.AvailableQty != 8 {
		t.Fatalf("excess should be repaired to 8, got %d", repaired.AvailableQty)
	}
}

func TestCheckThenFixRoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	checker := newTestChecker(t, db)
	resolver := newTestResolver(t, db)
	ctx := context.Background()

	seed(t, db, 5, -3)
	seed(t, db, 10, 10)

	report, err := checker.Check(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if report.IsValid {
		t.Fatal("seeded shortage should invalidate the store")
	}

	if _, err := resolver.Fix(ctx, report.Discrepancies); err != nil {
		t.Fatalf("fix: %v", err)
	}

	after, err := checker.Check(ctx)
	if err != nil {
		t.Fatalf("recheck: %v", err)
	}
	if !after.IsValid || len(after.Discrepancies) != 0 {
		t.Fatalf("store should be clean after repair: %+v", after)
	}
}
