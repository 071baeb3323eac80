package usecases_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"lightning-paywall.backend/internal/domain/entities"
	domainrepos "lightning-paywall.backend/internal/domain/repositories"
	"lightning-paywall.backend/internal/infrastructure/lightning"
)

// Mock PaymentStateRepository
type MockPaymentStateRepository struct {
	mock.Mock
}

func (m *MockPaymentStateRepository) AddPending(ctx context.Context, hash string, contentID int64, sessionID string) error {
	args := m.Called(ctx, hash, contentID, sessionID)
	return args.Error(0)
}

func (m *MockPaymentStateRepository) Confirm(ctx context.Context, hash string) (domainrepos.ConfirmResult, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(domainrepos.ConfirmResult), args.Error(1)
}

func (m *MockPaymentStateRepository) MarkFailed(ctx context.Context, hash string) (bool, error) {
	args := m.Called(ctx, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentStateRepository) MarkExpired(ctx context.Context, hash string) (bool, error) {
	args := m.Called(ctx, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentStateRepository) MarkRefundPending(ctx context.Context, hash string) (bool, error) {
	args := m.Called(ctx, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentStateRepository) MarkRefunded(ctx context.Context, hash string) (bool, error) {
	args := m.Called(ctx, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentStateRepository) SetMetadata(ctx context.Context, hash string, amountSat uint64, kind entities.PaymentKind) error {
	args := m.Called(ctx, hash, amountSat, kind)
	return args.Error(0)
}

func (m *MockPaymentStateRepository) GetByHash(ctx context.Context, hash string) (*entities.PaymentState, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PaymentState), args.Error(1)
}

func (m *MockPaymentStateRepository) ListBySession(ctx context.Context, sessionID string) ([]*entities.PaymentState, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PaymentState), args.Error(1)
}

func (m *MockPaymentStateRepository) List(ctx context.Context, limit, offset int) ([]*entities.PaymentState, int, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*entities.PaymentState), args.Int(1), args.Error(2)
}

func (m *MockPaymentStateRepository) GetStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*entities.PaymentState, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PaymentState), args.Error(1)
}

// Mock IdempotencyRepository
type MockIdempotencyRepository struct {
	mock.Mock
}

func (m *MockIdempotencyRepository) Get(ctx context.Context, key string) (*entities.IdempotencyMapping, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.IdempotencyMapping), args.Error(1)
}

func (m *MockIdempotencyRepository) Create(ctx context.Context, mapping *entities.IdempotencyMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

// Mock lightning.Client
type MockLightningClient struct {
	mock.Mock
}

func (m *MockLightningClient) FetchReceiveLimits(ctx context.Context) (*lightning.ReceiveLimits, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lightning.ReceiveLimits), args.Error(1)
}

func (m *MockLightningClient) PrepareReceive(ctx context.Context, amountSat uint64) (*lightning.PrepareReceiveResponse, error) {
	args := m.Called(ctx, amountSat)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lightning.PrepareReceiveResponse), args.Error(1)
}

func (m *MockLightningClient) Receive(ctx context.Context, prepared *lightning.PrepareReceiveResponse, description string) (*lightning.ReceiveResponse, error) {
	args := m.Called(ctx, prepared, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lightning.ReceiveResponse), args.Error(1)
}

func (m *MockLightningClient) ParseInvoice(ctx context.Context, input string) (*lightning.ParsedInvoice, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lightning.ParsedInvoice), args.Error(1)
}

func (m *MockLightningClient) RecommendedFees(ctx context.Context) (*lightning.RecommendedFees, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lightning.RecommendedFees), args.Error(1)
}

func (m *MockLightningClient) RegisterWebhook(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockLightningClient) AddEventListener(listener lightning.EventListener) (string, error) {
	args := m.Called(listener)
	return args.String(0), args.Error(1)
}

func (m *MockLightningClient) RemoveEventListener(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockLightningClient) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// stubConnectionProvider hands out a fixed client without the manager.
type stubConnectionProvider struct {
	client lightning.Client
	err    error
}

func (s *stubConnectionProvider) GetConnection(ctx context.Context) (lightning.Client, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.client, nil
}

func (s *stubConnectionProvider) IsConnected() bool {
	return s.err == nil
}

// Mock Broadcaster
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(sessionID, event string, payload interface{}) {
	m.Called(sessionID, event, payload)
}

// Mock AdminNotifier
type MockAdminNotifier struct {
	mock.Mock
}

func (m *MockAdminNotifier) Notify(ctx context.Context, subject, body string) {
	m.Called(ctx, subject, body)
}
