package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ultramarket/inventory-core/pkg/db/models"
)

// Repository manages persistence for inventory records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, productID, warehouseID uuid.UUID) (*models.InventoryRecord, error)
	Upsert(ctx context.Context, record *models.InventoryRecord) error
	List(ctx context.Context, offset, limit int) ([]models.InventoryRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Get returns the record for a pair; gorm.ErrRecordNotFound passes through
// so callers can distinguish missing pairs from storage failures.
func (r *repository) Get(ctx context.Context, productID, warehouseID uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := r.db.WithContext(ctx).
		First(&record, "product_id = ? AND warehouse_id = ?", productID, warehouseID).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) Upsert(ctx context.Context, record *models.InventoryRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}, {Name: "warehouse_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_qty", "available_qty", "updated_at",
			}),
		}).
		Create(record).Error
}

// List pages through records ordered by pair so batch scans are stable.
func (r *repository) List(ctx context.Context, offset, limit int) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	err := r.db.WithContext(ctx).
		Order("product_id, warehouse_id").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
