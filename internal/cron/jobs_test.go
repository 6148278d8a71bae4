package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ultramarket/inventory-core/internal/consistency"
	"github.com/ultramarket/inventory-core/pkg/enums"
	"github.com/ultramarket/inventory-core/pkg/logger"
)

type fakeLockService struct {
	reclaimed int64
	err       error
	calls     int
}

func (f *fakeLockService) CleanupExpired(context.Context) (int64, error) {
	f.calls++
	return f.reclaimed, f.err
}

func TestLockReaperJobSweeps(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	svc := &fakeLockService{reclaimed: 4}
	job, err := NewLockReaperJob(LockReaperJobParams{Logger: logg, Locks: svc})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "lock-reaper" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if svc.calls != 1 {
		t.Fatalf("expected one sweep, got %d", svc.calls)
	}
}

func TestLockReaperJobPropagatesFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	svc := &fakeLockService{err: errors.New("db down")}
	job, err := NewLockReaperJob(LockReaperJobParams{Logger: logg, Locks: svc})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep failure to surface")
	}
}

type fakeChecker struct {
	report *consistency.Report
	err    error
}

func (f *fakeChecker) Check(context.Context) (*consistency.Report, error) {
	return f.report, f.err
}

type fakeResolver struct {
	received []consistency.Discrepancy
	result   *consistency.FixResult
	err      error
}

func (f *fakeResolver) Fix(_ context.Context, discrepancies []consistency.Discrepancy) (*consistency.FixResult, error) {
	f.received = discrepancies
	return f.result, f.err
}

func TestConsistencyCheckJobRepairsFindings(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	discrepancy := consistency.Discrepancy{
		ProductID:   uuid.New(),
		WarehouseID: uuid.New(),
		Type:        enums.DiscrepancyTypeShortage,
		ExpectedQty: 0,
		ActualQty:   -1,
		Difference:  1,
	}
	checker := &fakeChecker{report: &consistency.Report{
		IsValid:       false,
		Discrepancies: []consistency.Discrepancy{discrepancy},
	}}
	resolver := &fakeResolver{result: &consistency.FixResult{Success: true, Fixed: 1}}

	job, err := NewConsistencyCheckJob(ConsistencyCheckJobParams{
		Logger:   logg,
		Checker:  checker,
		Resolver: resolver,
		AutoFix:  true,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(resolver.received) != 1 {
		t.Fatalf("resolver should receive the finding, got %d", len(resolver.received))
	}
}

func TestConsistencyCheckJobSkipsRepairWhenAutoFixDisabled(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	checker := &fakeChecker{report: &consistency.Report{
		Discrepancies: []consistency.Discrepancy{{Type: enums.DiscrepancyTypeExcess}},
	}}
	resolver := &fakeResolver{}

	job, err := NewConsistencyCheckJob(ConsistencyCheckJobParams{
		Logger:   logg,
		Checker:  checker,
		Resolver: resolver,
		AutoFix:  false,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if resolver.received != nil {
		t.Fatal("resolver must not run with auto-fix disabled")
	}
}

func TestConsistencyCheckJobRequiresResolverForAutoFix(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	_, err := NewConsistencyCheckJob(ConsistencyCheckJobParams{
		Logger:  logg,
		Checker: &fakeChecker{},
		AutoFix: true,
	})
	if err == nil {
		t.Fatal("expected constructor failure without resolver")
	}
}
