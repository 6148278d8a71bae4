package locks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ultramarket/inventory-core/pkg/db/models"
)

// Repository manages persistence for stock locks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, lock *models.StockLock) error
	Delete(ctx context.Context, lockID uuid.UUID) (bool, error)
	DeleteExpiredForPair(ctx context.Context, productID, warehouseID uuid.UUID, now time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	List(ctx context.Context) ([]models.StockLock, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a lock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert persists a new lock row. The unique index on
// (product_id, warehouse_id) makes this the mutual-exclusion point: a
// concurrent holder surfaces as a unique violation, never as a stale read.
func (r *repository) Insert(ctx context.Context, lock *models.StockLock) error {
	return r.db.WithContext(ctx).Create(lock).Error
}

func (r *repository) Delete(ctx context.Context, lockID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ?", lockID).
		Delete(&models.StockLock{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) DeleteExpiredForPair(ctx context.Context, productID, warehouseID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ? AND expires_at <= ?", productID, warehouseID, now).
		Delete(&models.StockLock{}).Error
}

func (r *repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.StockLock{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) List(ctx context.Context) ([]models.StockLock, error) {
	var rows []models.StockLock
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
