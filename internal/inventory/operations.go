package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ultramarket/inventory-core/pkg/enums"
	pkgerrors "github.com/ultramarket/inventory-core/pkg/errors"
)

// Reference ties a movement back to the business event that caused it.
type Reference struct {
	Type  enums.ReferenceType
	ID    string
	Notes *string
}

// Operation is the closed set of quantity changes the coordinator accepts.
// Concrete types are AddOp, RemoveOp, AdjustOp, TransferOp and ConfirmOp;
// external packages cannot implement it.
type Operation interface {
	// pairs lists every (product, warehouse) pair the operation touches,
	// with the lock type the pair must be claimed under.
	pairs() []lockTarget
	validate() error
	sealed()
}

type lockTarget struct {
	productID   uuid.UUID
	warehouseID uuid.UUID
	qty         int
	lockType    enums.LockType
}

// AddOp increases both total and available quantity, creating the
// inventory record when the pair has never been stocked.
type AddOp struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Qty         int
	UnitCost    *decimal.Decimal
	Reference   Reference
	PerformedBy string
}

// RemoveOp decreases both total and available quantity. It fails with an
// insufficient-stock error when available is below the requested quantity.
type RemoveOp struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Qty         int
	UnitCost    *decimal.Decimal
	Reference   Reference
	PerformedBy string
}

// AdjustOp force-sets available to Qty and raises total to at least Qty.
type AdjustOp struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Qty         int
	Reference   Reference
	PerformedBy string
}

// TransferOp moves quantity between two warehouses of the same product as
// one atomic remove-plus-add. The destination record is created if absent.
type TransferOp struct {
	ProductID       uuid.UUID
	FromWarehouseID uuid.UUID
	ToWarehouseID   uuid.UUID
	Qty             int
	UnitCost        *decimal.Decimal
	Reference       Reference
	PerformedBy     string
}

// ConfirmOp appends an audit-only movement at the pair's current available
// quantity without changing it. The quantity is read inside the locked
// transaction, so the recorded value can never be a stale snapshot.
type ConfirmOp struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Reference   Reference
	PerformedBy string
}

func (AddOp) sealed()      {}
func (RemoveOp) sealed()   {}
func (AdjustOp) sealed()   {}
func (TransferOp) sealed() {}
func (ConfirmOp) sealed()  {}

func (op AddOp) pairs() []lockTarget {
	return []lockTarget{{op.ProductID, op.WarehouseID, op.Qty, enums.LockTypeAdjustment}}
}

func (op RemoveOp) pairs() []lockTarget {
	return []lockTarget{{op.ProductID, op.WarehouseID, op.Qty, enums.LockTypeReservation}}
}

func (op AdjustOp) pairs() []lockTarget {
	qty := op.Qty
	if qty <= 0 {
		qty = 1
	}
	return []lockTarget{{op.ProductID, op.WarehouseID, qty, enums.LockTypeAdjustment}}
}

func (op ConfirmOp) pairs() []lockTarget {
	return []lockTarget{{op.ProductID, op.WarehouseID, 1, enums.LockTypeAdjustment}}
}

func (op TransferOp) pairs() []lockTarget {
	return []lockTarget{
		{op.ProductID, op.FromWarehouseID, op.Qty, enums.LockTypeTransfer},
		{op.ProductID, op.ToWarehouseID, op.Qty, enums.LockTypeTransfer},
	}
}

func validateCommon(productID, warehouseID uuid.UUID, qty int, ref Reference, performedBy string) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if warehouseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	if qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must not be negative")
	}
	if !ref.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid reference type")
	}
	if ref.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference id required")
	}
	if performedBy == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "performed by required")
	}
	return nil
}

func (op AddOp) validate() error {
	if err := validateCommon(op.ProductID, op.WarehouseID, op.Qty, op.Reference, op.PerformedBy); err != nil {
		return err
	}
	if op.Qty == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}
	return nil
}

func (op RemoveOp) validate() error {
	if err := validateCommon(op.ProductID, op.WarehouseID, op.Qty, op.Reference, op.PerformedBy); err != nil {
		return err
	}
	if op.Qty == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}
	return nil
}

// AdjustOp permits qty zero: force-setting a pair to empty is a legitimate
// correction.
func (op AdjustOp) validate() error {
	return validateCommon(op.ProductID, op.WarehouseID, op.Qty, op.Reference, op.PerformedBy)
}

func (op ConfirmOp) validate() error {
	return validateCommon(op.ProductID, op.WarehouseID, 0, op.Reference, op.PerformedBy)
}

func (op TransferOp) validate() error {
	if err := validateCommon(op.ProductID, op.FromWarehouseID, op.Qty, op.Reference, op.PerformedBy); err != nil {
		return err
	}
	if op.ToWarehouseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "destination warehouse id required")
	}
	if op.FromWarehouseID == op.ToWarehouseID {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer source and destination must differ")
	}
	if op.Qty == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}
	return nil
}
