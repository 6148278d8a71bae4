package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ultramarket/inventory-core/pkg/enums"
)

// StockMovement records one immutable quantity change. Rows are appended by
// the transaction coordinator and the discrepancy resolver and never updated
// or deleted.
type StockMovement struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID      uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index:idx_stock_movements_pair"`
	WarehouseID    uuid.UUID           `gorm:"column:warehouse_id;type:uuid;not null;index:idx_stock_movements_pair"`
	Type           enums.MovementType  `gorm:"column:type;type:movement_type_enum;not null"`
	Qty            int                 `gorm:"column:qty;not null"`
	UnitCost       *decimal.Decimal    `gorm:"column:unit_cost;type:numeric(12,4)"`
	ReferenceType  enums.ReferenceType `gorm:"column:reference_type;type:reference_type_enum;not null"`
	ReferenceID    string              `gorm:"column:reference_id;not null"`
	ReferenceNotes *string             `gorm:"column:reference_notes"`
	PerformedBy    string              `gorm:"column:performed_by;not null"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime;index"`
}

// TableName returns the table name for GORM.
func (StockMovement) TableName() string {
	return "stock_movements"
}
