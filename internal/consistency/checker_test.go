package consistency

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ultramarket/inventory-core/internal/inventory"
	"github.com/ultramarket/inventory-core/internal/locks"
	"github.com/ultramarket/inventory-core/pkg/config"
	"github.com/ultramarket/inventory-core/pkg/db/models"
	"github.com/ultramarket/inventory-core/pkg/enums"
	pkgerrors "github.com/ultramarket/inventory-core/pkg/errors"
	"github.com/ultramarket/inventory-core/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:consistency_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryRecord{}, &models.StockLock{}, &models.StockMovement{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db
}

func newTestChecker(t *testing.T, db *gorm.DB) Checker {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	checker, err := NewChecker(
		inventory.NewRepository(db),
		locks.NewRepository(db),
		nil,
		logg,
		config.ConsistencyConfig{Interval: time.Minute, BatchSize: 2},
	)
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}
	return checker
}

func seed(t *testing.T, db *gorm.DB, total, available int) (uuid.UUID, uuid.UUID) {
	t.Helper()
	productID := uuid.New()
	warehouseID := uuid.New()
	record := models.InventoryRecord{
		ProductID:    productID,
		WarehouseID:  warehouseID,
		TotalQty:     total,
		AvailableQty: available,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return productID, warehouseID
}

func TestCheckCleanStoreIsValid(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	checker := newTestChecker(t, db)
	ctx := context.Background()

	// more rows than the batch size to exercise paging
	for i := 0; i < 5; i++ {
		seed(t, db, 10+i, 5+i)
	}

	report, err := checker.Check(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !report.IsValid {
		t.Fatalf("clean store flagged invalid: %+v", report)
	}
	if len(report.Errors) != 0 || len(report.Warnings) != 0 || len(report.Discrepancies) != 0 {
		t.Fatalf("clean store produced findings: %+v", report)
	}
}

func TestCheckFlagsNegativeQuantityAsShortage(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	checker := newTestChecker(t, db)
	ctx := context.Background()

	productID, warehouseID := seed(t, db, 5, -2)

	report, err := checker.Check(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if report.IsValid {
		t.Fatal("negative availability must invalidate the store")
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected one error, got %d", len(report.Errors))
	}
	if len(report.Discrepancies) != 1 {
		t.Fatalf("expected one discrepancy, got %d", len(report.Discrepancies))
	}
	d := report.Discrepancies[0]
	if d.Type != enums.DiscrepancyTypeShortage || d.ProductID != productID || d.WarehouseID != warehouseID {
		t.Fatalf("unexpected discrepancy: %+v", d)
	}
	if d.ExpectedQty != 0 || d.ActualQty != -2 || d.Difference != 2 {
		t.Fatalf("shortage quantities wrong: %+v", d)
	}
}

func TestCheckFlagsExcessAsWarning(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	checker := newTestChecker(t, db)
	ctx := context.Background()

	seed(t, db, 10, 14)

	report, err := checker.Check(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !report.IsValid {
		t.Fatal("excess alone must not invalidate the store")
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("expected one warning, got %d", len(report.Warnings))
	}
	d := report.Discrepancies[0]
	if d.Type != enums.DiscrepancyTypeExcess || d.ExpectedQty != 10 || d.ActualQty != 14 || d.Difference != 4 {
		t.Fatalf("unexpected excess discrepancy: %+v", d)
	}
}

func TestCheckFlagsExpiredAndOrphanedLocks(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	checker := newTestChecker(t, db)
	ctx := context.Background()

	productID, warehouseID := seed(t, db, 10, 10)

	expired := models.StockLock{
		ID:          uuid.New(),
		ProductID:   productID,
		WarehouseID: warehouseID,
		Qty:         1,
		LockType:    enums.LockTypeReservation,
		ExpiresAt:   time.Now().UTC().Add(-time.Minute),
		CreatedAt:   time.Now().UTC().Add(-2 * time.Minute),
	}
	orphan := models.StockLock{
		ID:          uuid.New(),
		ProductID:   uuid.New(),
		WarehouseID: uuid.New(),
		Qty:         2,
		LockType:    enums.LockTypeAdjustment,
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
		CreatedAt:   time.Now().UTC(),
	}
	for _, lock := range []models.StockLock{expired, orphan} {
		if err := db.Create(&lock).Error; err != nil {
			t.Fatalf("seed lock: %v", err)
		}
	}

	report, err := checker.Check(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !report.IsValid {
		t.Fatal("lock findings are warnings, store stays valid")
	}
	if len(report.Warnings) != 2 {
		t.Fatalf("expected expired and orphan warnings, got %d: %v", len(report.Warnings), report.Warnings)
	}
	if len(report.Discrepancies) != 1 {
		t.Fatalf("only the orphaned lock yields a discrepancy, got %d", len(report.Discrepancies))
	}
	if report.Discrepancies[0].Type != enums.DiscrepancyTypeMissing {
		t.Fatalf("expected missing discrepancy, got %v", report.Discrepancies[0].Type)
	}
}

func TestCheckIsIdempotentForFixedState(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	checker := newTestChecker(t, db)
	ctx := context.Background()

	seed(t, db, 5, -1)
	seed(t, db, 3, 7)

	first, err := checker.Check(ctx)
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	second, err := checker.Check(ctx)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}

	if first.IsValid != second.IsValid ||
		len(first.Errors) != len(second.Errors) ||
		len(first.Warnings) != len(second.Warnings) ||
		len(first.Discrepancies) != len(second.Discrepancies) {
		t.Fatalf("repeated scans diverged: %+v vs %+v", first, second)
	}
}

func TestNewCheckerRejectsBadConfig(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	tests := []struct {
		name string
		cfg  config.ConsistencyConfig
	}{
		{name: "zero batch size", cfg: config.ConsistencyConfig{Interval: time.Minute}},
		{name: "zero interval", cfg: config.ConsistencyConfig{BatchSize: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChecker(inventory.NewRepository(db), locks.NewRepository(db), nil, logg, tt.cfg)
			if !pkgerrors.HasCode(err, pkgerrors.CodeConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}
