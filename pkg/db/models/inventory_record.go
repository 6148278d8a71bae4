package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryRecord tracks total/available counts per (product, warehouse) pair.
// Rows are never deleted; quantities may reach zero but the record persists
// for audit continuity.
type InventoryRecord struct {
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	WarehouseID  uuid.UUID `gorm:"column:warehouse_id;type:uuid;primaryKey"`
	TotalQty     int       `gorm:"column:total_qty;not null;default:0"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (InventoryRecord) TableName() string {
	return "inventory_records"
}
