package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	domainrepos "lightning-paywall.backend/internal/domain/repositories"
	"lightning-paywall.backend/pkg/logger"
)

const expiryBatchSize = 100

// PaymentExpiryJob sweeps Pending payments whose invoice TTL has elapsed
// and marks them Expired. The provider's invoice_expired webhook remains
// authoritative; the sweep covers missed callbacks.
type PaymentExpiryJob struct {
	store    domainrepos.PaymentStateRepository
	ttl      time.Duration
	interval time.Duration
	stop     chan struct{}
}

func NewPaymentExpiryJob(store domainrepos.PaymentStateRepository, ttl time.Duration) *PaymentExpiryJob {
	return &PaymentExpiryJob{
		store:    store,
		ttl:      ttl,
		interval: time.Minute,
		stop:     make(chan struct{}),
	}
}

func (j *PaymentExpiryJob) Start(ctx context.Context) {
	logger.Info(ctx, "Starting payment expiry job", zap.Duration("ttl", j.ttl))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "Payment expiry job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(context.Background(), "Payment expiry job stopped")
			return
		case <-ticker.C:
			j.expireStale(ctx)
		}
	}
}

func (j *PaymentExpiryJob) Stop() {
	close(j.stop)
}

func (j *PaymentExpiryJob) expireStale(ctx context.Context) {
	cutoff := time.Now().Add(-j.ttl)
	stale, err := j.store.GetStalePending(ctx, cutoff, expiryBatchSize)
	if err != nil {
		logger.Error(ctx, "Could not fetch stale pending payments", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}

	expired := 0
	for _, state := range stale {
		ok, err := j.store.MarkExpired(ctx, state.PaymentHash)
		if err != nil {
			logger.Error(ctx, "Could not expire payment",
				zap.String("payment_hash", state.PaymentHash), zap.Error(err))
			continue
		}
		if ok {
			expired++
		}
	}

	logger.Info(ctx, "Expired stale pending payments", zap.Int("count", expired))
}
