package usecases

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"lightning-paywall.backend/internal/domain/entities"
	domainrepos "lightning-paywall.backend/internal/domain/repositories"
	"lightning-paywall.backend/pkg/logger"
	"lightning-paywall.backend/pkg/metrics"
)

const eventQueueCapacity = 100

// PaymentSucceededEvent is the frame broadcast to the owning browser
// session when a payment settles.
const PaymentSucceededEvent = "payment-succeeded"

// Broadcaster fans a notification out to the clients of a session.
type Broadcaster interface {
	Broadcast(sessionID, event string, payload interface{})
}

// PaymentSucceededPayload is the broadcast body for a settled payment.
type PaymentSucceededPayload struct {
	PaymentHash string                 `json:"paymentHash"`
	ContentID   int64                  `json:"contentId"`
	Kind        entities.PaymentKind   `json:"kind"`
	Status      entities.PaymentStatus `json:"status"`
	AmountSat   uint64                 `json:"amountSat"`
}

// EventProcessor consumes backend-originated settlement events from a
// bounded queue, one at a time, deduplicates them and projects them into
// the payment store and the realtime hub.
type EventProcessor struct {
	store   domainrepos.PaymentStateRepository
	deduper Deduper
	hub     Broadcaster

	queue chan entities.ProviderEvent

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	mu        sync.Mutex
	queueFull bool
}

// NewEventProcessor creates an event processor with a queue of capacity 100
func NewEventProcessor(store domainrepos.PaymentStateRepository, deduper Deduper, hub Broadcaster) *EventProcessor {
	return &EventProcessor{
		store:   store,
		deduper: deduper,
		hub:     hub,
		queue:   make(chan entities.ProviderEvent, eventQueueCapacity),
		done:    make(chan struct{}),
	}
}

// OnEvent implements the backend event listener: settlement events are
// queued, everything else is ignored.
func (p *EventProcessor) OnEvent(event entities.ProviderEvent) {
	if event.Type != entities.ProviderEventPaymentSucceeded {
		return
	}
	p.Enqueue(event)
}

// Enqueue pushes an event for processing. When the queue is full it logs a
// warning (once per fill episode) and blocks until the consumer drains a
// slot: settlement notifications must not be silently lost, so backpressure
// beats dropping.
func (p *EventProcessor) Enqueue(event entities.ProviderEvent) {
	select {
	case p.queue <- event:
		metrics.EventQueueDepth.Inc()
		p.mu.Lock()
		p.queueFull = false
		p.mu.Unlock()
		return
	default:
	}

	p.mu.Lock()
	if !p.queueFull {
		p.queueFull = true
		logger.Warn(context.Background(), "Event queue full, applying backpressure",
			zap.Int("capacity", eventQueueCapacity))
	}
	p.mu.Unlock()

	p.queue <- event
	metrics.EventQueueDepth.Inc()
}

// Start launches the consumer loop. Safe to call once; subsequent calls are
// no-ops.
func (p *EventProcessor) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		p.cancel = cancel
		go p.run(runCtx)
	})
}

// Stop cancels the consumer and awaits its exit.
func (p *EventProcessor) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *EventProcessor) run(ctx context.Context) {
	defer close(p.done)
	logger.Info(ctx, "Event processor started")

	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "Event processor stopped")
			return
		case event := <-p.queue:
			metrics.EventQueueDepth.Dec()
			p.process(ctx, event)
		}
	}
}

// process confirms a single settlement event. The consumer loop must not
// crash on a bad payload or a store failure; a failed confirmation leaves
// the dedup lock uncompleted so its TTL makes the hash retryable.
func (p *EventProcessor) process(ctx context.Context, event entities.ProviderEvent) {
	metrics.EventsProcessed.Inc()

	hash := event.Hash()
	if hash == "" {
		logger.Warn(ctx, "Settlement event without payment hash, skipping",
			zap.String("type", string(event.Type)))
		return
	}

	if !p.deduper.TryBegin(ctx, hash) {
		metrics.EventsDeduplicated.Inc()
		logger.Debug(ctx, "Duplicate settlement event skipped", zap.String("payment_hash", hash))
		return
	}

	result, err := p.store.Confirm(ctx, hash)
	if err != nil {
		// No Complete: the begin-lock expires and a redelivery can retry.
		logger.Error(ctx, "Settlement confirmation failed",
			zap.String("payment_hash", hash), zap.Error(err))
		return
	}

	switch result {
	case domainrepos.ConfirmConfirmed:
		metrics.PaymentsConfirmed.WithLabelValues("sdk").Inc()
		p.broadcastSettled(ctx, hash)
	case domainrepos.ConfirmAlreadyConfirmed:
		logger.Debug(ctx, "Payment already confirmed", zap.String("payment_hash", hash))
	case domainrepos.ConfirmNotFound:
		logger.Warn(ctx, "Settlement event for unknown payment", zap.String("payment_hash", hash))
	}

	p.deduper.Complete(ctx, hash)
}

func (p *EventProcessor) broadcastSettled(ctx context.Context, hash string) {
	state, err := p.store.GetByHash(ctx, hash)
	if err != nil {
		logger.Error(ctx, "Could not load confirmed payment for broadcast",
			zap.String("payment_hash", hash), zap.Error(err))
		return
	}
	if state.UserSessionID == "" {
		return
	}

	p.hub.Broadcast(state.UserSessionID, PaymentSucceededEvent, PaymentSucceededPayload{
		PaymentHash: state.PaymentHash,
		ContentID:   state.ContentID,
		Kind:        state.Kind,
		Status:      state.Status,
		AmountSat:   state.AmountSat,
	})
}
