package inventory

import (
	"github.com/google/uuid"

	"github.com/ultramarket/inventory-core/pkg/enums"
)

// Change describes the before/after quantities one operation produced.
// Transfers produce two changes, one per warehouse.
type Change struct {
	ProductID         uuid.UUID
	WarehouseID       uuid.UUID
	MovementID        uuid.UUID
	Type              enums.MovementType
	Qty               int
	PreviousTotal     int
	NewTotal          int
	PreviousAvailable int
	NewAvailable      int
}

// TransactionResult reports the outcome of one Perform call. Changes is
// populated only when the whole batch committed; a failed batch leaves the
// store exactly as it was.
type TransactionResult struct {
	Changes          []Change
	Errors           []error
	Attempts         int
	RollbackRequired bool
}
