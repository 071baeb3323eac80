package usecases_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"lightning-paywall.backend/internal/domain/entities"
	domainrepos "lightning-paywall.backend/internal/domain/repositories"
	"lightning-paywall.backend/internal/usecases"
	"lightning-paywall.backend/pkg/logger"
)

func succeededEvent(hash string) entities.ProviderEvent {
	return entities.ProviderEvent{
		Type:    entities.ProviderEventPaymentSucceeded,
		Payment: &entities.ProviderEventPayment{PaymentHash: hash, AmountSat: 1000},
	}
}

func TestEventProcessor_ConfirmsAndBroadcasts(t *testing.T) {
	sr := new(MockPaymentStateRepository)
	hub := new(MockBroadcaster)
	p := usecases.NewEventProcessor(sr, usecases.NewMemoryDeduper(), hub)

	broadcasted := make(chan struct{})
	sr.On("Confirm", mock.Anything, "hash1").Return(domainrepos.ConfirmConfirmed, nil).Once()
	sr.On("GetByHash", mock.Anything, "hash1").Return(&entities.PaymentState{
		PaymentHash:   "hash1",
		ContentID:     42,
		UserSessionID: "sess1",
		Status:        entities.PaymentStatusPaid,
		AmountSat:     1000,
		Kind:          entities.PaymentKindPaywall,
	}, nil).Once()
	hub.On("Broadcast", "sess1", usecases.PaymentSucceededEvent, mock.MatchedBy(func(p usecases.PaymentSucceededPayload) bool {
		return p.PaymentHash == "hash1" && p.ContentID == 42
	})).Run(func(mock.Arguments) { close(broadcasted) }).Once()

	p.Start(context.Background())
	defer p.Stop()

	p.OnEvent(succeededEvent("hash1"))

	select {
	case <-broadcasted:
	case <-time.After(2 * time.Second):
		t.Fatal("settlement was not broadcast")
	}
	sr.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestEventProcessor_IgnoresNonSettlementEvents(t *testing.T) {
	sr := new(MockPaymentStateRepository)
	hub := new(MockBroadcaster)
	p := usecases.NewEventProcessor(sr, usecases.NewMemoryDeduper(), hub)

	p.Start(context.Background())

	p.OnEvent(entities.ProviderEvent{Type: entities.ProviderEventSynced})
	p.OnEvent(entities.ProviderEvent{Type: entities.ProviderEventPaymentPending,
		Payment: &entities.ProviderEventPayment{PaymentHash: "hash1"}})
	p.OnEvent(entities.ProviderEvent{Type: entities.ProviderEventPaymentSucceeded})

	p.Stop()
	sr.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
}

func TestEventProcessor_DeduplicatesConcurrentRedeliveries(t *testing.T) {
	sr := new(MockPaymentStateRepository)
	hub := new(MockBroadcaster)
	p := usecases.NewEventProcessor(sr, usecases.NewMemoryDeduper(), hub)

	sr.On("Confirm", mock.Anything, "hash1").Return(domainrepos.ConfirmConfirmed, nil).Once()
	sr.On("GetByHash", mock.Anything, "hash1").Return(&entities.PaymentState{
		PaymentHash:   "hash1",
		UserSessionID: "sess1",
		Status:        entities.PaymentStatusPaid,
	}, nil).Once()
	hub.On("Broadcast", "sess1", usecases.PaymentSucceededEvent, mock.Anything).Once()

	p.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.OnEvent(succeededEvent("hash1"))
		}()
	}
	wg.Wait()

	// Drain the queue before asserting.
	time.Sleep(200 * time.Millisecond)
	p.Stop()

	sr.AssertNumberOfCalls(t, "Confirm", 1)
	hub.AssertNumberOfCalls(t, "Broadcast", 1)
}

func TestEventProcessor_ConfirmErrorLeavesHashRetryable(t *testing.T) {
	sr := new(MockPaymentStateRepository)
	hub := new(MockBroadcaster)
	deduper := usecases.NewMemoryDeduper()
	p := usecases.NewEventProcessor(sr, deduper, hub)

	confirmed := make(chan struct{})
	sr.On("Confirm", mock.Anything, "hash1").Return(domainrepos.ConfirmNotFound, assert.AnError).
		Run(func(mock.Arguments) { close(confirmed) }).Once()

	p.Start(context.Background())
	p.OnEvent(succeededEvent("hash1"))

	select {
	case <-confirmed:
	case <-time.After(2 * time.Second):
		t.Fatal("confirm was not attempted")
	}
	p.Stop()

	// The begin-lock was not upgraded to a done marker, so once its TTL
	// lapses the hash can be retried. The memory deduper still holds the
	// short lock here.
	require.False(t, deduper.TryBegin(context.Background(), "hash1"))
	hub.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything)
}

func TestEventProcessor_SurvivesQueueSaturation(t *testing.T) {
	sr := new(MockPaymentStateRepository)
	hub := new(MockBroadcaster)
	p := usecases.NewEventProcessor(sr, usecases.NewMemoryDeduper(), hub)

	processed := make(chan string, 256)
	sr.On("Confirm", mock.Anything, mock.Anything).Return(domainrepos.ConfirmNotFound, nil).
		Run(func(args mock.Arguments) { processed <- args.String(1) })

	// Fill past capacity before the consumer starts; the overflow enqueue
	// blocks until Start drains a slot.
	go func() {
		for i := 0; i < 120; i++ {
			p.Enqueue(succeededEvent(fmt.Sprintf("hash%d", i)))
		}
	}()

	time.Sleep(100 * time.Millisecond)
	p.Start(context.Background())
	defer p.Stop()

	seen := make(map[string]bool)
	timeout := time.After(5 * time.Second)
	for len(seen) < 120 {
		select {
		case hash := <-processed:
			seen[hash] = true
		case <-timeout:
			t.Fatalf("only %d of 120 events processed", len(seen))
		}
	}
}

func TestEventProcessor_WarnsOncePerFillEpisode(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	prev := logger.GetLogger()
	logger.SetLogger(zap.New(core))
	defer logger.SetLogger(prev)

	sr := new(MockPaymentStateRepository)
	hub := new(MockBroadcaster)
	p := usecases.NewEventProcessor(sr, usecases.NewMemoryDeduper(), hub)

	// Events without a payment skip the store entirely once drained.
	evt := entities.ProviderEvent{Type: entities.ProviderEventPaymentSucceeded}
	for i := 0; i < 100; i++ {
		p.Enqueue(evt)
	}

	// Several producers hit the full queue; only the first one in the
	// episode warns, the rest just block.
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Enqueue(evt)
		}()
	}
	time.Sleep(100 * time.Millisecond)

	warns := 0
	for _, entry := range logs.All() {
		if entry.Message == "Event queue full, applying backpressure" {
			warns++
		}
	}
	assert.Equal(t, 1, warns)

	p.Start(context.Background())
	wg.Wait()
	p.Stop()
}
