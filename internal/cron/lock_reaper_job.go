package cron

import (
	"context"
	"fmt"

	"github.com/ultramarket/inventory-core/pkg/logger"
)

type LockReaperJobParams struct {
	Logger *logger.Logger
	Locks  lockReaper
}

type lockReaper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

func NewLockReaperJob(params LockReaperJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock service required")
	}
	return &lockReaperJob{
		logg:  params.Logger,
		locks: params.Locks,
	}, nil
}

type lockReaperJob struct {
	logg  *logger.Logger
	locks lockReaper
}

func (j *lockReaperJob) Name() string { return "lock-reaper" }

func (j *lockReaperJob) Run(ctx context.Context) error {
	reclaimed, err := j.locks.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("lock reaper: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "rows_deleted", reclaimed), "expired lock sweep complete")
	return nil
}
