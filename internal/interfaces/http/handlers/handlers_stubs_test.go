package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"lightning-paywall.backend/internal/domain/entities"
	domainrepos "lightning-paywall.backend/internal/domain/repositories"
	"lightning-paywall.backend/internal/infrastructure/lightning"
	"lightning-paywall.backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type paymentStoreStub struct {
	addPendingFn     func(ctx context.Context, hash string, contentID int64, sessionID string) error
	confirmFn        func(ctx context.Context, hash string) (domainrepos.ConfirmResult, error)
	markFailedFn     func(ctx context.Context, hash string) (bool, error)
	markExpiredFn    func(ctx context.Context, hash string) (bool, error)
	markRefundPendFn func(ctx context.Context, hash string) (bool, error)
	markRefundedFn   func(ctx context.Context, hash string) (bool, error)
	setMetadataFn    func(ctx context.Context, hash string, amountSat uint64, kind entities.PaymentKind) error
	getByHashFn      func(ctx context.Context, hash string) (*entities.PaymentState, error)
	listBySessionFn  func(ctx context.Context, sessionID string) ([]*entities.PaymentState, error)
	listFn           func(ctx context.Context, limit, offset int) ([]*entities.PaymentState, int, error)
	getStaleFn       func(ctx context.Context, olderThan time.Time, limit int) ([]*entities.PaymentState, error)
}

func (s *paymentStoreStub) AddPending(ctx context.Context, hash string, contentID int64, sessionID string) error {
	if s.addPendingFn != nil {
		return s.addPendingFn(ctx, hash, contentID, sessionID)
	}
	return nil
}

func (s *paymentStoreStub) Confirm(ctx context.Context, hash string) (domainrepos.ConfirmResult, error) {
	return s.confirmFn(ctx, hash)
}

func (s *paymentStoreStub) MarkFailed(ctx context.Context, hash string) (bool, error) {
	return s.markFailedFn(ctx, hash)
}

func (s *paymentStoreStub) MarkExpired(ctx context.Context, hash string) (bool, error) {
	return s.markExpiredFn(ctx, hash)
}

func (s *paymentStoreStub) MarkRefundPending(ctx context.Context, hash string) (bool, error) {
	return s.markRefundPendFn(ctx, hash)
}

func (s *paymentStoreStub) MarkRefunded(ctx context.Context, hash string) (bool, error) {
	return s.markRefundedFn(ctx, hash)
}

func (s *paymentStoreStub) SetMetadata(ctx context.Context, hash string, amountSat uint64, kind entities.PaymentKind) error {
	if s.setMetadataFn != nil {
		return s.setMetadataFn(ctx, hash, amountSat, kind)
	}
	return nil
}

func (s *paymentStoreStub) GetByHash(ctx context.Context, hash string) (*entities.PaymentState, error) {
	return s.getByHashFn(ctx, hash)
}

func (s *paymentStoreStub) ListBySession(ctx context.Context, sessionID string) ([]*entities.PaymentState, error) {
	return s.listBySessionFn(ctx, sessionID)
}

func (s *paymentStoreStub) List(ctx context.Context, limit, offset int) ([]*entities.PaymentState, int, error) {
	return s.listFn(ctx, limit, offset)
}

func (s *paymentStoreStub) GetStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*entities.PaymentState, error) {
	return s.getStaleFn(ctx, olderThan, limit)
}

type idemRepoStub struct {
	getFn    func(ctx context.Context, key string) (*entities.IdempotencyMapping, error)
	createFn func(ctx context.Context, mapping *entities.IdempotencyMapping) error
}

func (s *idemRepoStub) Get(ctx context.Context, key string) (*entities.IdempotencyMapping, error) {
	return s.getFn(ctx, key)
}

func (s *idemRepoStub) Create(ctx context.Context, mapping *entities.IdempotencyMapping) error {
	if s.createFn != nil {
		return s.createFn(ctx, mapping)
	}
	return nil
}

type hubStub struct {
	broadcasts []string
}

func (s *hubStub) Broadcast(sessionID, event string, payload interface{}) {
	s.broadcasts = append(s.broadcasts, sessionID+"/"+event)
}

type notifierStub struct{}

func (notifierStub) Notify(context.Context, string, string) {}

type clientStub struct {
	fetchLimitsFn    func(ctx context.Context) (*lightning.ReceiveLimits, error)
	prepareReceiveFn func(ctx context.Context, amountSat uint64) (*lightning.PrepareReceiveResponse, error)
	receiveFn        func(ctx context.Context, prepared *lightning.PrepareReceiveResponse, description string) (*lightning.ReceiveResponse, error)
	parseInvoiceFn   func(ctx context.Context, input string) (*lightning.ParsedInvoice, error)
	recommendedFn    func(ctx context.Context) (*lightning.RecommendedFees, error)
}

func (s *clientStub) FetchReceiveLimits(ctx context.Context) (*lightning.ReceiveLimits, error) {
	if s.fetchLimitsFn != nil {
		return s.fetchLimitsFn(ctx)
	}
	return &lightning.ReceiveLimits{MinSat: 1, MaxSat: 10_000_000}, nil
}

func (s *clientStub) PrepareReceive(ctx context.Context, amountSat uint64) (*lightning.PrepareReceiveResponse, error) {
	if s.prepareReceiveFn != nil {
		return s.prepareReceiveFn(ctx, amountSat)
	}
	return &lightning.PrepareReceiveResponse{AmountSat: amountSat, FeesSat: 10}, nil
}

func (s *clientStub) Receive(ctx context.Context, prepared *lightning.PrepareReceiveResponse, description string) (*lightning.ReceiveResponse, error) {
	if s.receiveFn != nil {
		return s.receiveFn(ctx, prepared, description)
	}
	return &lightning.ReceiveResponse{Destination: "lnbc-test"}, nil
}

func (s *clientStub) ParseInvoice(ctx context.Context, input string) (*lightning.ParsedInvoice, error) {
	if s.parseInvoiceFn != nil {
		return s.parseInvoiceFn(ctx, input)
	}
	return &lightning.ParsedInvoice{PaymentHash: "stub-hash"}, nil
}

func (s *clientStub) RecommendedFees(ctx context.Context) (*lightning.RecommendedFees, error) {
	if s.recommendedFn != nil {
		return s.recommendedFn(ctx)
	}
	return &lightning.RecommendedFees{FastestFee: 25}, nil
}

func (s *clientStub) RegisterWebhook(ctx context.Context, url string) error { return nil }

func (s *clientStub) AddEventListener(listener lightning.EventListener) (string, error) {
	return "listener", nil
}

func (s *clientStub) RemoveEventListener(id string) error { return nil }

func (s *clientStub) Disconnect(ctx context.Context) error { return nil }

type connProviderStub struct {
	client lightning.Client
	err    error
}

func (s *connProviderStub) GetConnection(ctx context.Context) (lightning.Client, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.client, nil
}

func (s *connProviderStub) IsConnected() bool { return s.err == nil }

// performRequest runs an HTTP request against a single-route router and
// records the response. sessionID, when set, is injected the way
// SessionMiddleware does.
func performRequest(t *testing.T, handler gin.HandlerFunc, sessionID, method, route, url, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	if sessionID != "" {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.SessionIDKey, sessionID)
			c.Next()
		})
	}
	r.Handle(method, route, handler)

	req := httptest.NewRequest(method, url, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
