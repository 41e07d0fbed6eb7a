package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/artfolio/chainmarket/internal/adapter"
	"github.com/artfolio/chainmarket/internal/domain"
	"github.com/artfolio/chainmarket/internal/engine"
	"github.com/artfolio/chainmarket/internal/logger"
)

// ExpirySweeperConfig holds configuration for the expiry sweeper
type ExpirySweeperConfig struct {
	Interval       time.Duration // Time to sleep between sweep cycles
	WorkerPoolSize int           // Concurrent workers
	// Operator is the principal the sweeper acts as. Expiring offers and
	// settling auctions are open to any caller, so any valid principal works.
	Operator domain.Principal
}

// expirySweeper reclaims expired offer escrows and settles ended auctions.
// It shares the engine instance with the API so all journal writes go
// through the single writer.
type expirySweeper struct {
	config    *ExpirySweeperConfig
	engine    *engine.Engine
	pool      pond.Pool
	clock     adapter.Clock
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(config *ExpirySweeperConfig, eng *engine.Engine, clock adapter.Clock) Sweeper {
	return &expirySweeper{
		config:    config,
		engine:    eng,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *expirySweeper) Name() string {
	return "expiry-sweeper"
}

// Start begins the sweeper's main loop
func (s *expirySweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting expiry sweeper",
		zap.Duration("interval", s.config.Interval),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
	)

	s.pool = pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithContext(ctx),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Expiry sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			s.cleanup()
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Expiry sweeper stop requested")
			s.cleanup()
			return nil
		default:
			if err := s.runSweepCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
			}
			if !s.sleep(ctx, s.config.Interval) {
				s.cleanup()
				return nil
			}
		}
	}
}

// cleanup stops the worker pool and waits for tasks to complete
func (s *expirySweeper) cleanup() {
	if s.pool != nil {
		s.pool.StopAndWait()
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *expirySweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping expiry sweeper")

	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Expiry sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Expiry sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle reclaims every expired offer and settles every ended auction
// at the current block height
func (s *expirySweeper) runSweepCycle(ctx context.Context) error {
	startTime := s.clock.Now()

	expired := s.engine.ExpiredOffers()
	ended := s.engine.EndedAuctions()

	if len(expired) == 0 && len(ended) == 0 {
		return nil
	}

	logger.InfoCtx(ctx, "Starting sweep cycle",
		zap.Int("expired_offers", len(expired)),
		zap.Int("ended_auctions", len(ended)),
		zap.Uint64("block_height", uint64(s.engine.Height())),
	)

	var reclaimed, settled atomic.Int32

	group := s.pool.NewGroup()

	for _, offer := range expired {
		group.Submit(func() {
			err := s.withRetry(ctx, func() error {
				return s.engine.ExpireOffer(ctx, s.config.Operator, offer.TokenID, offer.Offerer)
			})
			if err != nil {
				// The offer may have been accepted or cancelled since the
				// snapshot; only journal failures are worth reporting.
				if !errors.Is(err, domain.ErrNotFound) {
					logger.ErrorCtx(ctx, err,
						zap.String("token", offer.TokenID.String()),
						zap.String("offerer", string(offer.Offerer)),
					)
				}
				return
			}
			reclaimed.Add(1)
		})
	}

	for _, auction := range ended {
		group.Submit(func() {
			err := s.withRetry(ctx, func() error {
				return s.engine.SettleAuction(ctx, s.config.Operator, auction.ID)
			})
			if err != nil {
				// Frozen tokens block settlement until an admin unfreezes;
				// retry on the next cycle.
				if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrTokenFrozen) {
					logger.ErrorCtx(ctx, err, zap.String("auction", auction.ID.String()))
				}
				return
			}
			settled.Add(1)
		})
	}

	_ = group.Wait()

	logger.InfoCtx(ctx, "Sweep cycle complete",
		zap.Int32("offers_reclaimed", reclaimed.Load()),
		zap.Int32("auctions_settled", settled.Load()),
		zap.Duration("duration", s.clock.Since(startTime)),
	)

	return nil
}

// withRetry retries transient failures (journal writes) with exponential
// backoff. Domain rejections are permanent and returned immediately.
func (s *expirySweeper) withRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && domain.ErrorCode(err) != "internal_error" {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx))
}

// sleep waits for the given duration or until the context is canceled or a
// stop is requested. Returns false if interrupted.
func (s *expirySweeper) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-s.clock.After(d):
		return true
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	}
}
