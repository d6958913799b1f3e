package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/fairwavehq/fairwave-backend/pkg/config"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/metrics"
)

const (
	retryJobName   = "payout_retry_sweep"
	sweepBackoff   = 2 * time.Second
	sweepMaxTries  = 3
	defaultSweepAt = 5 * time.Minute
)

// pendingRetrier is the slice of the payout service the worker drives.
type pendingRetrier interface {
	RetryPending(ctx context.Context, batchSize int) (int, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type ServiceParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	Payouts pendingRetrier
	Metrics *metrics.WorkerJobMetrics
	Pingers map[string]pinger
}

type Service struct {
	cfg       *config.Config
	logg      *logger.Logger
	payouts   pendingRetrier
	metrics   *metrics.WorkerJobMetrics
	pingers   map[string]pinger
	sweepBase time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Payouts == nil {
		return nil, errors.New("payout service is required")
	}
	if params.Metrics == nil {
		return nil, errors.New("worker metrics are required")
	}

	return &Service{
		cfg:       params.Config,
		logg:      params.Logger,
		payouts:   params.Payouts,
		metrics:   params.Metrics,
		pingers:   params.Pingers,
		sweepBase: sweepBackoff,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, p := range s.pingers {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.cfg.Worker.RetryInterval
	if interval <= 0 {
		interval = defaultSweepAt
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Sweep once on startup so a restart never waits a full interval.
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one batch of the retry queue. Transient failures back off and
// retry within the sweep; a sweep that still fails waits for the next tick.
func (s *Service) sweep(ctx context.Context) {
	start := time.Now()

	var retried int
	backoff := retry.WithMaxRetries(sweepMaxTries, retry.NewExponential(s.sweepBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		n, err := s.payouts.RetryPending(ctx, s.cfg.Worker.RetryBatchSize)
		if err != nil {
			return retry.RetryableError(err)
		}
		retried = n
		return nil
	})

	s.metrics.ObserveDuration(retryJobName, time.Since(start))
	if err != nil {
		s.metrics.IncFailure(retryJobName)
		s.logg.Error(ctx, "payout retry sweep failed", err)
		return
	}

	s.metrics.IncSuccess(retryJobName)
	if retried > 0 {
		s.logg.Info(ctx, fmt.Sprintf("payout retry sweep re-dispatched %d pending payouts", retried))
	}
}
