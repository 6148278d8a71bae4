package consistency

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/ultramarket/inventory-core/internal/audit"
	"github.com/ultramarket/inventory-core/internal/inventory"
	"github.com/ultramarket/inventory-core/pkg/db/models"
	"github.com/ultramarket/inventory-core/pkg/enums"
	pkgerrors "github.com/ultramarket/inventory-core/pkg/errors"
	"github.com/ultramarket/inventory-core/pkg/logger"
)

// systemActor marks movements the resolver appends on its own authority.
const systemActor = "system"

// FixResult summarizes one repair pass.
type FixResult struct {
	Success bool
	Fixed   int
	Errors  []error
}

// Resolver repairs detected discrepancies by force-setting availability
// back to the expected quantity, leaving an audit movement per repair.
type Resolver interface {
	Fix(ctx context.Context, discrepancies []Discrepancy) (*FixResult, error)
}

type resolver struct {
	tx    inventory.TxRunner
	repo  inventory.Repository
	audit audit.Service
	logg  *logger.Logger
}

// NewResolver wires a discrepancy resolver.
func NewResolver(tx inventory.TxRunner, repo inventory.Repository, auditSvc audit.Service, logg *logger.Logger) (Resolver, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory repository required")
	}
	if auditSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit service required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &resolver{tx: tx, repo: repo, audit: auditSvc, logg: logg}, nil
}

// Fix repairs each discrepancy in its own transaction. A failure on one
// item is recorded and the remaining items still run; the combined error
// is returned alongside the result.
func (r *resolver) Fix(ctx context.Context, discrepancies []Discrepancy) (*FixResult, error) {
	result := &FixResult{}

	for _, d := range discrepancies {
		if err := r.fixOne(ctx, d); err != nil {
			wrapped := fmt.Errorf("product %s warehouse %s: %w", d.ProductID, d.WarehouseID, err)
			result.Errors = append(result.Errors, wrapped)
			r.logg.Error(r.logg.WithFields(ctx, map[string]any{
				"product_id":   d.ProductID,
				"warehouse_id": d.WarehouseID,
				"type":         d.Type,
			}), "repairing discrepancy", err)
			continue
		}
		result.Fixed++
	}

	result.Success = len(result.Errors) == 0

	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"event":  "consistency.fix",
		"fixed":  result.Fixed,
		"failed": len(result.Errors),
	}), "discrepancy repair finished")

	return result, multierr.Combine(result.Errors...)
}

func (r *resolver) fixOne(ctx context.Context, d Discrepancy) error {
	if d.ProductID == uuid.Nil || d.WarehouseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "discrepancy pair required")
	}
	if !d.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid discrepancy type")
	}
	if d.ExpectedQty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "expected qty must not be negative")
	}

	return r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)

		record, err := repo.Get(ctx, d.ProductID, d.WarehouseID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// a missing discrepancy has no record yet; create an empty one
			record = &models.InventoryRecord{ProductID: d.ProductID, WarehouseID: d.WarehouseID}
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
		}

		record.AvailableQty = d.ExpectedQty
		if record.TotalQty < d.ExpectedQty {
			record.TotalQty = d.ExpectedQty
		}
		if err := repo.Upsert(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist repaired record")
		}

		_, err = r.audit.Record(ctx, tx, audit.RecordMovementInput{
			ProductID:     d.ProductID,
			WarehouseID:   d.WarehouseID,
			Type:          enums.MovementTypeAdjust,
			Qty:           d.ExpectedQty,
			ReferenceType: enums.ReferenceTypeConsistencyFix,
			ReferenceID:   string(d.Type),
			PerformedBy:   systemActor,
		})
		return err
	})
}
