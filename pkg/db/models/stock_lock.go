package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ultramarket/inventory-core/pkg/enums"
)

// StockLock is a time-bounded exclusive claim on a (product, warehouse) pair.
// The unique index on the pair is the mutual-exclusion primitive: acquisition
// is insert-or-fail, never check-then-create.
type StockLock struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID      `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uq_stock_locks_pair"`
	WarehouseID uuid.UUID      `gorm:"column:warehouse_id;type:uuid;not null;uniqueIndex:uq_stock_locks_pair"`
	Qty         int            `gorm:"column:qty;not null"`
	LockType    enums.LockType `gorm:"column:lock_type;type:lock_type_enum;not null"`
	ExpiresAt   time.Time      `gorm:"column:expires_at;not null;index"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for GORM.
func (StockLock) TableName() string {
	return "stock_locks"
}

// IsExpired reports whether the lock TTL has elapsed at the given instant.
func (l StockLock) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
