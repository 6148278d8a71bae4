package consistency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ultramarket/inventory-core/internal/alerts"
	"github.com/ultramarket/inventory-core/internal/inventory"
	"github.com/ultramarket/inventory-core/internal/locks"
	"github.com/ultramarket/inventory-core/pkg/config"
	"github.com/ultramarket/inventory-core/pkg/enums"
	pkgerrors "github.com/ultramarket/inventory-core/pkg/errors"
	"github.com/ultramarket/inventory-core/pkg/logger"
)

// Discrepancy is one detected deviation between recorded and expected
// quantities for a pair.
type Discrepancy struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Type        enums.DiscrepancyType
	ExpectedQty int
	ActualQty   int
	Difference  int
}

// Report is the outcome of one full consistency scan. IsValid is false
// only when at least one Errors entry exists; warnings alone leave the
// store valid.
type Report struct {
	IsValid       bool
	Errors        []string
	Warnings      []string
	Discrepancies []Discrepancy
}

// Checker scans inventory records and stock locks for invariant
// violations. The scan only reads; repairs are the resolver's job.
type Checker interface {
	Check(ctx context.Context) (*Report, error)
}

type checker struct {
	repo       inventory.Repository
	lockRepo   locks.Repository
	dispatcher *alerts.Dispatcher
	logg       *logger.Logger
	batchSize  int
	now        func() time.Time
}

// NewChecker builds a checker. The dispatcher may be nil when alerting is
// not wired, for example in one-shot command-line runs.
func NewChecker(
	repo inventory.Repository,
	lockRepo locks.Repository,
	dispatcher *alerts.Dispatcher,
	logg *logger.Logger,
	cfg config.ConsistencyConfig,
) (Checker, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory repository required")
	}
	if lockRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lock repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if cfg.BatchSize <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "batch size must be positive")
	}
	if cfg.Interval <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "check interval must be positive")
	}
	return &checker{
		repo:       repo,
		lockRepo:   lockRepo,
		dispatcher: dispatcher,
		logg:       logg,
		batchSize:  cfg.BatchSize,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Check runs one full scan. For a fixed store state repeated calls return
// the same report.
func (c *checker) Check(ctx context.Context) (*Report, error) {
	report := &Report{IsValid: true}
	seen := make(map[string]struct{})

	for offset := 0; ; offset += c.batchSize {
		records, err := c.repo.List(ctx, offset, c.batchSize)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan inventory records")
		}
		for _, record := range records {
			seen[pairKey(record.ProductID, record.WarehouseID)] = struct{}{}

			if record.AvailableQty < 0 || record.TotalQty < 0 {
				msg := fmt.Sprintf("negative quantity for product %s warehouse %s: total %d available %d",
					record.ProductID, record.WarehouseID, record.TotalQty, record.AvailableQty)
				report.Errors = append(report.Errors, msg)
				report.Discrepancies = append(report.Discrepancies, Discrepancy{
					ProductID:   record.ProductID,
					WarehouseID: record.WarehouseID,
					Type:        enums.DiscrepancyTypeShortage,
					ExpectedQty: 0,
					ActualQty:   record.AvailableQty,
					Difference:  -record.AvailableQty,
				})
				c.alert(ctx, record.ProductID, record.WarehouseID,
					enums.DiscrepancyTypeShortage, enums.AlertSeverityCritical, msg)
				continue
			}

			if record.AvailableQty > record.TotalQty {
				msg := fmt.Sprintf("available exceeds total for product %s warehouse %s: total %d available %d",
					record.ProductID, record.WarehouseID, record.TotalQty, record.AvailableQty)
				report.Warnings = append(report.Warnings, msg)
				report.Discrepancies = append(report.Discrepancies, Discrepancy{
					ProductID:   record.ProductID,
					WarehouseID: record.WarehouseID,
					Type:        enums.DiscrepancyTypeExcess,
					ExpectedQty: record.TotalQty,
					ActualQty:   record.AvailableQty,
					Difference:  record.AvailableQty - record.TotalQty,
				})
				c.alert(ctx, record.ProductID, record.WarehouseID,
					enums.DiscrepancyTypeExcess, enums.AlertSeverityWarning, msg)
			}
		}
		if len(records) < c.batchSize {
			break
		}
	}

	activeLocks, err := c.lockRepo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan stock locks")
	}
	now := c.now()
	for _, lock := range activeLocks {
		if lock.IsExpired(now) {
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"expired lock %s for product %s warehouse %s not yet reaped",
				lock.ID, lock.ProductID, lock.WarehouseID))
			continue
		}
		if _, ok := seen[pairKey(lock.ProductID, lock.WarehouseID)]; !ok {
			msg := fmt.Sprintf("active lock %s references product %s warehouse %s with no inventory record",
				lock.ID, lock.ProductID, lock.WarehouseID)
			report.Warnings = append(report.Warnings, msg)
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				ProductID:   lock.ProductID,
				WarehouseID: lock.WarehouseID,
				Type:        enums.DiscrepancyTypeMissing,
				ExpectedQty: 0,
				ActualQty:   0,
			})
			c.alert(ctx, lock.ProductID, lock.WarehouseID,
				enums.DiscrepancyTypeMissing, enums.AlertSeverityWarning, msg)
		}
	}

	report.IsValid = len(report.Errors) == 0

	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"event":         "consistency.check",
		"valid":         report.IsValid,
		"errors":        len(report.Errors),
		"warnings":      len(report.Warnings),
		"discrepancies": len(report.Discrepancies),
	}), "consistency check finished")

	return report, nil
}

func (c *checker) alert(ctx context.Context, productID, warehouseID uuid.UUID, dType enums.DiscrepancyType, severity enums.AlertSeverity, msg string) {
	if c.dispatcher == nil {
		return
	}
	err := c.dispatcher.Publish(ctx, alerts.Event{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Type:        dType,
		Severity:    severity,
		Message:     msg,
	})
	if err != nil {
		c.logg.Error(ctx, "publishing consistency alert", err)
	}
}

func pairKey(productID, warehouseID uuid.UUID) string {
	return productID.String() + "/" + warehouseID.String()
}
