package inventory

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ultramarket/inventory-core/internal/audit"
	"github.com/ultramarket/inventory-core/internal/locks"
	"github.com/ultramarket/inventory-core/pkg/config"
	"github.com/ultramarket/inventory-core/pkg/db/models"
	"github.com/ultramarket/inventory-core/pkg/enums"
	pkgerrors "github.com/ultramarket/inventory-core/pkg/errors"
	"github.com/ultramarket/inventory-core/pkg/logger"
	"github.com/ultramarket/inventory-core/pkg/metrics"
)

const jitterWindow = 25 * time.Millisecond

// TxRunner runs a function inside one storage transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Coordinator applies batches of stock operations atomically: every
// operation in the batch commits, or none do.
type Coordinator interface {
	Perform(ctx context.Context, ops []Operation) (*TransactionResult, error)
}

type coordinator struct {
	tx      TxRunner
	repo    Repository
	locks   locks.Service
	audit   audit.Service
	logg    *logger.Logger
	metrics *metrics.TransactionMetrics
	cfg     config.CoordinatorConfig
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewCoordinator wires a transaction coordinator. Metrics may be nil.
func NewCoordinator(
	tx TxRunner,
	repo Repository,
	lockSvc locks.Service,
	auditSvc audit.Service,
	logg *logger.Logger,
	txMetrics *metrics.TransactionMetrics,
	cfg config.CoordinatorConfig,
) (Coordinator, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory repository required")
	}
	if lockSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lock service required")
	}
	if auditSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit service required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 50 * time.Millisecond
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	return &coordinator{
		tx:      tx,
		repo:    repo,
		locks:   lockSvc,
		audit:   auditSvc,
		logg:    logg,
		metrics: txMetrics,
		cfg:     cfg,
		sleep:   sleepCtx,
	}, nil
}

// Perform executes the batch under per-pair locks inside one storage
// transaction. Lock conflicts are returned immediately; storage failures
// retry the whole batch with fresh locks up to the configured attempt
// budget. On any failure nothing is mutated.
func (c *coordinator) Perform(ctx context.Context, ops []Operation) (*TransactionResult, error) {
	result := &TransactionResult{}
	started := time.Now()

	if len(ops) == 0 {
		return result, pkgerrors.New(pkgerrors.CodeValidation, "at least one operation required")
	}
	for _, op := range ops {
		if err := op.validate(); err != nil {
			return result, err
		}
	}

	targets := collectTargets(ops)
	backoff := time.Duration(0)

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		result.Attempts = attempt

		changes, err := c.attempt(ctx, ops, targets)
		if err == nil {
			result.Changes = changes
			c.observe(metrics.TxOutcomeSuccess, started)
			return result, nil
		}

		result.Errors = append(result.Errors, err)

		if pkgerrors.HasCode(err, pkgerrors.CodeLockConflict) {
			result.RollbackRequired = true
			c.observe(metrics.TxOutcomeLockConflict, started)
			return result, err
		}
		if !retryable(err) {
			result.RollbackRequired = true
			c.observe(metrics.TxOutcomeFailure, started)
			return result, err
		}

		if attempt == c.cfg.MaxRetries {
			break
		}
		if c.metrics != nil {
			c.metrics.IncRetry()
		}
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"event":   "tx.retry",
			"attempt": attempt,
			"error":   pkgerrors.Dump(err),
		}), "stock transaction retrying")

		backoff = nextBackoff(backoff, c.cfg.BackoffBase, c.cfg.BackoffMax)
		if err := c.sleep(ctx, withJitter(backoff)); err != nil {
			result.Errors = append(result.Errors, err)
			break
		}
	}

	result.RollbackRequired = true
	c.observe(metrics.TxOutcomeFailure, started)
	last := result.Errors[len(result.Errors)-1]
	return result, pkgerrors.Wrap(pkgerrors.CodeTransaction, last, "stock transaction exhausted retries")
}

// attempt runs one lock/execute/release cycle for the batch.
func (c *coordinator) attempt(ctx context.Context, ops []Operation, targets []lockTarget) ([]Change, error) {
	held := make([]uuid.UUID, 0, len(targets))
	defer func() {
		for _, id := range held {
			if err := c.locks.Release(ctx, id); err != nil {
				c.logg.Error(c.logg.WithField(ctx, "lock_id", id), "releasing stock lock", err)
			}
		}
	}()

	for _, target := range targets {
		lock, err := c.locks.Acquire(ctx, locks.AcquireInput{
			ProductID:   target.productID,
			WarehouseID: target.warehouseID,
			Qty:         target.qty,
			LockType:    target.lockType,
		})
		if err != nil {
			return nil, err
		}
		held = append(held, lock.ID)
	}

	var changes []Change
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		changes = changes[:0]
		for _, op := range ops {
			opChanges, err := c.apply(ctx, tx, op)
			if err != nil {
				return err
			}
			changes = append(changes, opChanges...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (c *coordinator) apply(ctx context.Context, tx *gorm.DB, op Operation) ([]Change, error) {
	switch op := op.(type) {
	case AddOp:
		change, err := c.applyAdd(ctx, tx, enums.MovementTypeAdd, op.ProductID, op.WarehouseID, op.Qty, op.UnitCost, op.Reference, op.PerformedBy)
		if err != nil {
			return nil, err
		}
		return []Change{change}, nil
	case RemoveOp:
		change, err := c.applyRemove(ctx, tx, enums.MovementTypeRemove, op.ProductID, op.WarehouseID, op.Qty, op.UnitCost, op.Reference, op.PerformedBy)
		if err != nil {
			return nil, err
		}
		return []Change{change}, nil
	case AdjustOp:
		change, err := c.applyAdjust(ctx, tx, op)
		if err != nil {
			return nil, err
		}
		return []Change{change}, nil
	case ConfirmOp:
		change, err := c.applyConfirm(ctx, tx, op)
		if err != nil {
			return nil, err
		}
		return []Change{change}, nil
	case TransferOp:
		out, err := c.applyRemove(ctx, tx, enums.MovementTypeTransfer, op.ProductID, op.FromWarehouseID, op.Qty, op.UnitCost, op.Reference, op.PerformedBy)
		if err != nil {
			return nil, err
		}
		in, err := c.applyAdd(ctx, tx, enums.MovementTypeTransfer, op.ProductID, op.ToWarehouseID, op.Qty, op.UnitCost, op.Reference, op.PerformedBy)
		if err != nil {
			return nil, err
		}
		return []Change{out, in}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unknown operation type")
	}
}

// applyAdd and applyRemove take the movement type from the caller so the
// two legs of a transfer are recorded as transfer movements rather than a
// plain add and remove.
func (c *coordinator) applyAdd(ctx context.Context, tx *gorm.DB, movementType enums.MovementType, productID, warehouseID uuid.UUID, qty int, unitCost *decimal.Decimal, ref Reference, performedBy string) (Change, error) {
	repo := c.repo.WithTx(tx)

	record, err := repo.Get(ctx, productID, warehouseID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = &models.InventoryRecord{ProductID: productID, WarehouseID: warehouseID}
	case err != nil:
		return Change{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
	}

	change := Change{
		ProductID:         productID,
		WarehouseID:       warehouseID,
		Type:              movementType,
		Qty:               qty,
		PreviousTotal:     record.TotalQty,
		PreviousAvailable: record.AvailableQty,
	}

	record.TotalQty += qty
	record.AvailableQty += qty
	if err := repo.Upsert(ctx, record); err != nil {
		return Change{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist inventory record")
	}

	movement, err := c.audit.Record(ctx, tx, audit.RecordMovementInput{
		ProductID:      productID,
		WarehouseID:    warehouseID,
		Type:           movementType,
		Qty:            qty,
		UnitCost:       unitCost,
		ReferenceType:  ref.Type,
		ReferenceID:    ref.ID,
		ReferenceNotes: ref.Notes,
		PerformedBy:    performedBy,
	})
	if err != nil {
		return Change{}, err
	}

	change.MovementID = movement.ID
	change.NewTotal = record.TotalQty
	change.NewAvailable = record.AvailableQty
	return change, nil
}

func (c *coordinator) applyRemove(ctx context.Context, tx *gorm.DB, movementType enums.MovementType, productID, warehouseID uuid.UUID, qty int, unitCost *decimal.Decimal, ref Reference, performedBy string) (Change, error) {
	repo := c.repo.WithTx(tx)

	record, err := repo.Get(ctx, productID, warehouseID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Change{}, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found").
			WithDetails(map[string]any{"product_id": productID, "warehouse_id": warehouseID})
	case err != nil:
		return Change{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
	}

	if record.AvailableQty < qty {
		return Change{}, pkgerrors.New(pkgerrors.CodeInsufficientStock, "available stock below requested quantity").
			WithDetails(map[string]any{
				"product_id":   productID,
				"warehouse_id": warehouseID,
				"available":    record.AvailableQty,
				"requested":    qty,
			})
	}

	change := Change{
		ProductID:         productID,
		WarehouseID:       warehouseID,
		Type:              movementType,
		Qty:               qty,
		PreviousTotal:     record.TotalQty,
		PreviousAvailable: record.AvailableQty,
	}

	record.TotalQty -= qty
	record.AvailableQty -= qty
	if err := repo.Upsert(ctx, record); err != nil {
		return Change{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist inventory record")
	}

	movement, err := c.audit.Record(ctx, tx, audit.RecordMovementInput{
		ProductID:      productID,
		WarehouseID:    warehouseID,
		Type:           movementType,
		Qty:            qty,
		UnitCost:       unitCost,
		ReferenceType:  ref.Type,
		ReferenceID:    ref.ID,
		ReferenceNotes: ref.Notes,
		PerformedBy:    performedBy,
	})
	if err != nil {
		return Change{}, err
	}

	change.MovementID = movement.ID
	change.NewTotal = record.TotalQty
	change.NewAvailable = record.AvailableQty
	return change, nil
}

func (c *coordinator) applyAdjust(ctx context.Context, tx *gorm.DB, op AdjustOp) (Change, error) {
	repo := c.repo.WithTx(tx)

	record, err := repo.Get(ctx, op.ProductID, op.WarehouseID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Change{}, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found").
			WithDetails(map[string]any{"product_id": op.ProductID, "warehouse_id": op.WarehouseID})
	case err != nil:
		return Change{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
	}

	change := Change{
		ProductID:         op.ProductID,
		WarehouseID:       op.WarehouseID,
		Type:              enums.MovementTypeAdjust,
		Qty:               op.Qty,
		PreviousTotal:     record.TotalQty,
		PreviousAvailable: record.AvailableQty,
	}

	record.AvailableQty = op.Qty
	if record.TotalQty < op.Qty {
		record.TotalQty = op.Qty
	}
	if err := repo.Upsert(ctx, record); err != nil {
		return Change{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist inventory record")
	}

	movement, err := c.audit.Record(ctx, tx, audit.RecordMovementInput{
		ProductID:      op.ProductID,
		WarehouseID:    op.WarehouseID,
		Type:           enums.MovementTypeAdjust,
		Qty:            op.Qty,
		ReferenceType:  op.Reference.Type,
		ReferenceID:    op.Reference.ID,
		ReferenceNotes: op.Reference.Notes,
		PerformedBy:    op.PerformedBy,
	})
	if err != nil {
		return Change{}, err
	}

	change.MovementID = movement.ID
	change.NewTotal = record.TotalQty
	change.NewAvailable = record.AvailableQty
	return change, nil
}

// applyConfirm records the pair's available quantity as an audit-only
// adjust movement. The read happens inside the locked transaction, so the
// snapshot reflects every committed mutation.
func (c *coordinator) applyConfirm(ctx context.Context, tx *gorm.DB, op ConfirmOp) (Change, error) {
	repo := c.repo.WithTx(tx)

	record, err := repo.Get(ctx, op.ProductID, op.WarehouseID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Change{}, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found").
			WithDetails(map[string]any{"product_id": op.ProductID, "warehouse_id": op.WarehouseID})
	case err != nil:
		return Change{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
	}

	movement, err := c.audit.Record(ctx, tx, audit.RecordMovementInput{
		ProductID:      op.ProductID,
		WarehouseID:    op.WarehouseID,
		Type:           enums.MovementTypeAdjust,
		Qty:            record.AvailableQty,
		ReferenceType:  op.Reference.Type,
		ReferenceID:    op.Reference.ID,
		ReferenceNotes: op.Reference.Notes,
		PerformedBy:    op.PerformedBy,
	})
	if err != nil {
		return Change{}, err
	}

	return Change{
		ProductID:         op.ProductID,
		WarehouseID:       op.WarehouseID,
		MovementID:        movement.ID,
		Type:              enums.MovementTypeAdjust,
		Qty:               record.AvailableQty,
		PreviousTotal:     record.TotalQty,
		NewTotal:          record.TotalQty,
		PreviousAvailable: record.AvailableQty,
		NewAvailable:      record.AvailableQty,
	}, nil
}

func (c *coordinator) observe(outcome string, started time.Time) {
	if c.metrics != nil {
		c.metrics.Observe(outcome, time.Since(started))
	}
}

// collectTargets dedupes the pairs a batch touches and orders them so two
// concurrent batches always lock in the same sequence.
func collectTargets(ops []Operation) []lockTarget {
	seen := make(map[string]lockTarget)
	for _, op := range ops {
		for _, target := range op.pairs() {
			key := target.productID.String() + "/" + target.warehouseID.String()
			if existing, ok := seen[key]; ok {
				existing.qty += target.qty
				seen[key] = existing
				continue
			}
			seen[key] = target
		}
	}

	targets := make([]lockTarget, 0, len(seen))
	for _, target := range seen {
		targets = append(targets, target)
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].productID != targets[j].productID {
			return targets[i].productID.String() < targets[j].productID.String()
		}
		return targets[i].warehouseID.String() < targets[j].warehouseID.String()
	})
	return targets
}

// retryable reports whether a fresh attempt could succeed. Business
// outcomes (validation, missing records, insufficient stock) are final.
func retryable(err error) bool {
	if structured := pkgerrors.As(err); structured != nil {
		return pkgerrors.MetadataFor(structured.Code()).Retryable
	}
	return true
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		return base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// withJitter uses the package-level rand source, which unlike a private
// *rand.Rand is safe for the concurrent Perform callers.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(rand.Int63n(int64(jitterWindow)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
