package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ultramarket/inventory-core/internal/inventory"
	"github.com/ultramarket/inventory-core/pkg/enums"
	pkgerrors "github.com/ultramarket/inventory-core/pkg/errors"
	"github.com/ultramarket/inventory-core/pkg/logger"
)

// Service is the caller-facing stock surface. Each method maps a business
// event onto one coordinated batch, so the concurrency and audit guarantees
// of the coordinator hold for every entry point.
type Service interface {
	AddStock(ctx context.Context, input AddStockInput) (*inventory.TransactionResult, error)
	ReserveStock(ctx context.Context, input ReservationInput) (*inventory.TransactionResult, error)
	ReleaseReservation(ctx context.Context, input ReservationInput) (*inventory.TransactionResult, error)
	FulfillReservation(ctx context.Context, input FulfillmentInput) (*inventory.TransactionResult, error)
	TransferStock(ctx context.Context, input TransferStockInput) (*inventory.TransactionResult, error)
}

// AddStockInput receives goods into a warehouse, usually from a purchase order.
type AddStockInput struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Qty         int
	UnitCost    *decimal.Decimal
	ReferenceID string
	Notes       *string
	PerformedBy string
}

// ReservationInput holds or releases stock against an order.
type ReservationInput struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Qty         int
	OrderID     string
	PerformedBy string
}

// FulfillmentInput confirms a reservation shipped.
type FulfillmentInput struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	OrderID     string
	PerformedBy string
}

// TransferStockInput rebalances stock between warehouses.
type TransferStockInput struct {
	ProductID       uuid.UUID
	FromWarehouseID uuid.UUID
	ToWarehouseID   uuid.UUID
	Qty             int
	Notes           *string
	PerformedBy     string
}

type service struct {
	coord inventory.Coordinator
	logg  *logger.Logger
}

// NewService wires the stock facade over the transaction coordinator.
func NewService(coord inventory.Coordinator, logg *logger.Logger) (Service, error) {
	if coord == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coordinator required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{coord: coord, logg: logg}, nil
}

// AddStock receives Qty units, creating the inventory record when the pair
// has never been stocked.
func (s *service) AddStock(ctx context.Context, input AddStockInput) (*inventory.TransactionResult, error) {
	return s.coord.Perform(ctx, []inventory.Operation{inventory.AddOp{
		ProductID:   input.ProductID,
		WarehouseID: input.WarehouseID,
		Qty:         input.Qty,
		UnitCost:    input.UnitCost,
		Reference: inventory.Reference{
			Type:  enums.ReferenceTypeReceiving,
			ID:    input.ReferenceID,
			Notes: input.Notes,
		},
		PerformedBy: input.PerformedBy,
	}})
}

// ReserveStock holds Qty units for an order by decrementing availability.
func (s *service) ReserveStock(ctx context.Context, input ReservationInput) (*inventory.TransactionResult, error) {
	result, err := s.coord.Perform(ctx, []inventory.Operation{inventory.RemoveOp{
		ProductID:   input.ProductID,
		WarehouseID: input.WarehouseID,
		Qty:         input.Qty,
		Reference: inventory.Reference{
			Type: enums.ReferenceTypeReservation,
			ID:   input.OrderID,
		},
		PerformedBy: input.PerformedBy,
	}})
	if err != nil {
		return result, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event":        "stock.reserved",
		"product_id":   input.ProductID,
		"warehouse_id": input.WarehouseID,
		"order_id":     input.OrderID,
		"qty":          input.Qty,
	})
	s.logg.Info(logCtx, "stock reserved")
	return result, nil
}

// ReleaseReservation returns held units to availability, for example when an
// order is cancelled before shipping.
func (s *service) ReleaseReservation(ctx context.Context, input ReservationInput) (*inventory.TransactionResult, error) {
	result, err := s.coord.Perform(ctx, []inventory.Operation{inventory.AddOp{
		ProductID:   input.ProductID,
		WarehouseID: input.WarehouseID,
		Qty:         input.Qty,
		Reference: inventory.Reference{
			Type: enums.ReferenceTypeReservationRelease,
			ID:   input.OrderID,
		},
		PerformedBy: input.PerformedBy,
	}})
	if err != nil {
		return result, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event":        "stock.reservation_released",
		"product_id":   input.ProductID,
		"warehouse_id": input.WarehouseID,
		"order_id":     input.OrderID,
		"qty":          input.Qty,
	})
	s.logg.Info(logCtx, "reservation released")
	return result, nil
}

// FulfillReservation confirms shipment of previously reserved units. The
// reserve already removed the quantity, so fulfillment appends a
// confirmation movement at the current available level without changing it.
// The coordinator snapshots that level under the pair's lock.
func (s *service) FulfillReservation(ctx context.Context, input FulfillmentInput) (*inventory.TransactionResult, error) {
	return s.coord.Perform(ctx, []inventory.Operation{inventory.ConfirmOp{
		ProductID:   input.ProductID,
		WarehouseID: input.WarehouseID,
		Reference: inventory.Reference{
			Type: enums.ReferenceTypeFulfillment,
			ID:   input.OrderID,
		},
		PerformedBy: input.PerformedBy,
	}})
}

// TransferStock moves units between two warehouses atomically.
func (s *service) TransferStock(ctx context.Context, input TransferStockInput) (*inventory.TransactionResult, error) {
	return s.coord.Perform(ctx, []inventory.Operation{inventory.TransferOp{
		ProductID:       input.ProductID,
		FromWarehouseID: input.FromWarehouseID,
		ToWarehouseID:   input.ToWarehouseID,
		Qty:             input.Qty,
		Reference: inventory.Reference{
			Type:  enums.ReferenceTypeWarehouseTransfer,
			ID:    transferReference(input.FromWarehouseID, input.ToWarehouseID),
			Notes: input.Notes,
		},
		PerformedBy: input.PerformedBy,
	}})
}

func transferReference(from, to uuid.UUID) string {
	return from.String() + ":" + to.String()
}
