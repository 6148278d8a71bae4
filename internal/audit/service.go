package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ultramarket/inventory-core/pkg/db/models"
	"github.com/ultramarket/inventory-core/pkg/enums"
	pkgerrors "github.com/ultramarket/inventory-core/pkg/errors"
)

// Service defines operations over the immutable stock movement trail.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordMovementInput) (*models.StockMovement, error)
	Trail(ctx context.Context, productID, warehouseID uuid.UUID, from, to time.Time) ([]models.StockMovement, error)
}

// RecordMovementInput captures the immutable data a movement requires.
type RecordMovementInput struct {
	ProductID      uuid.UUID
	WarehouseID    uuid.UUID
	Type           enums.MovementType
	Qty            int
	UnitCost       *decimal.Decimal
	ReferenceType  enums.ReferenceType
	ReferenceID    string
	ReferenceNotes *string
	PerformedBy    string
}

type service struct {
	repo Repository
}

// NewService wires an audit trail service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "movement repository required")
	}
	return &service{repo: repo}, nil
}

// Record appends one movement. When tx is non-nil the write joins the
// caller's transaction so the movement commits with the quantity change it
// describes.
func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordMovementInput) (*models.StockMovement, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.WarehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type")
	}
	if input.Qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must not be negative")
	}
	if !input.ReferenceType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid reference type")
	}
	if input.ReferenceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference id required")
	}
	if input.PerformedBy == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "performed by required")
	}

	movement := &models.StockMovement{
		ID:             uuid.New(),
		ProductID:      input.ProductID,
		WarehouseID:    input.WarehouseID,
		Type:           input.Type,
		Qty:            input.Qty,
		UnitCost:       input.UnitCost,
		ReferenceType:  input.ReferenceType,
		ReferenceID:    input.ReferenceID,
		ReferenceNotes: input.ReferenceNotes,
		PerformedBy:    input.PerformedBy,
	}

	if err := s.repo.WithTx(tx).Create(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append movement")
	}
	return movement, nil
}

// Trail returns the movement history for a pair ordered by creation time,
// optionally bounded by the from/to window.
func (s *service) Trail(ctx context.Context, productID, warehouseID uuid.UUID, from, to time.Time) ([]models.StockMovement, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if warehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "time window end precedes start")
	}

	movements, err := s.repo.ListByPair(ctx, productID, warehouseID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	return movements, nil
}
