package cron

import (
	"context"
	"fmt"

	"github.com/ultramarket/inventory-core/internal/consistency"
	"github.com/ultramarket/inventory-core/pkg/logger"
)

type ConsistencyCheckJobParams struct {
	Logger   *logger.Logger
	Checker  consistency.Checker
	Resolver consistency.Resolver
	AutoFix  bool
}

func NewConsistencyCheckJob(params ConsistencyCheckJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Checker == nil {
		return nil, fmt.Errorf("checker required")
	}
	if params.AutoFix && params.Resolver == nil {
		return nil, fmt.Errorf("resolver required when auto-fix is enabled")
	}
	return &consistencyCheckJob{
		logg:     params.Logger,
		checker:  params.Checker,
		resolver: params.Resolver,
		autoFix:  params.AutoFix,
	}, nil
}

type consistencyCheckJob struct {
	logg     *logger.Logger
	checker  consistency.Checker
	resolver consistency.Resolver
	autoFix  bool
}

func (j *consistencyCheckJob) Name() string { return "consistency-check" }

func (j *consistencyCheckJob) Run(ctx context.Context) error {
	report, err := j.checker.Check(ctx)
	if err != nil {
		return fmt.Errorf("consistency check: %w", err)
	}

	if len(report.Discrepancies) == 0 || !j.autoFix {
		return nil
	}

	result, err := j.resolver.Fix(ctx, report.Discrepancies)
	if result != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"found":  len(report.Discrepancies),
			"fixed":  result.Fixed,
			"failed": len(result.Errors),
		})
		j.logg.Info(logCtx, "discrepancy auto-repair summary")
	}
	if err != nil {
		return fmt.Errorf("discrepancy repair: %w", err)
	}
	return nil
}
