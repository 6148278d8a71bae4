package locks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ultramarket/inventory-core/pkg/db"
	"github.com/ultramarket/inventory-core/pkg/db/models"
	"github.com/ultramarket/inventory-core/pkg/enums"
	pkgerrors "github.com/ultramarket/inventory-core/pkg/errors"
	"github.com/ultramarket/inventory-core/pkg/logger"
)

const DefaultTTL = 30 * time.Second

// Service hands out time-bounded exclusive claims on (product, warehouse) pairs.
type Service interface {
	Acquire(ctx context.Context, input AcquireInput) (*models.StockLock, error)
	Release(ctx context.Context, lockID uuid.UUID) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// AcquireInput describes the claim being requested.
type AcquireInput struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Qty         int
	LockType    enums.LockType
	TTL         time.Duration
}

type service struct {
	repo Repository
	logg *logger.Logger
	ttl  time.Duration
	now  func() time.Time
}

// NewService wires a lock service with the provided repository.
func NewService(repo Repository, logg *logger.Logger, ttl time.Duration) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lock repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &service{
		repo: repo,
		logg: logg,
		ttl:  ttl,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Acquire(ctx context.Context, input AcquireInput) (*models.StockLock, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.WarehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}
	if !input.LockType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid lock type")
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now()

	// A stale expired row would otherwise block the insert until the reaper
	// runs; clear it first. Live rows are untouched.
	if err := s.repo.DeleteExpiredForPair(ctx, input.ProductID, input.WarehouseID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear expired lock")
	}

	lock := &models.StockLock{
		ID:          uuid.New(),
		ProductID:   input.ProductID,
		WarehouseID: input.WarehouseID,
		Qty:         input.Qty,
		LockType:    input.LockType,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}

	if err := s.repo.Insert(ctx, lock); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeLockConflict, err, "pair already locked").
				WithDetails(map[string]any{
					"product_id":   input.ProductID,
					"warehouse_id": input.WarehouseID,
				})
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event":        "lock.persist_failed",
			"product_id":   input.ProductID,
			"warehouse_id": input.WarehouseID,
			"storage":      pkgerrors.Dump(err),
		})
		s.logg.Error(logCtx, "persisting stock lock", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist lock")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event":        "lock.acquired",
		"lock_id":      lock.ID,
		"product_id":   lock.ProductID,
		"warehouse_id": lock.WarehouseID,
		"lock_type":    lock.LockType,
		"expires_at":   lock.ExpiresAt,
	})
	s.logg.Info(logCtx, "stock lock acquired")

	return lock, nil
}

// Release deletes the lock. Missing locks are not an error: the reaper may
// have claimed an expired row first.
func (s *service) Release(ctx context.Context, lockID uuid.UUID) error {
	if lockID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "lock id required")
	}
	found, err := s.repo.Delete(ctx, lockID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete lock")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event":   "lock.released",
		"lock_id": lockID,
		"found":   found,
	})
	s.logg.Info(logCtx, "stock lock released")
	return nil
}

func (s *service) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sweep expired locks")
	}
	if count > 0 {
		s.logg.Info(s.logg.WithField(ctx, "reclaimed", count), "expired stock locks reclaimed")
	}
	return count, nil
}
