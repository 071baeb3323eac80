package usecases

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"lightning-paywall.backend/internal/domain/entities"
	domainerrors "lightning-paywall.backend/internal/domain/errors"
	domainrepos "lightning-paywall.backend/internal/domain/repositories"
	"lightning-paywall.backend/internal/infrastructure/lightning"
	"lightning-paywall.backend/pkg/logger"
	"lightning-paywall.backend/pkg/metrics"
)

// descriptionPattern allow-lists characters safe for downstream display
// contexts (invoice memos end up in wallet UIs and dashboards).
var descriptionPattern = regexp.MustCompile(`^[a-zA-Z0-9 .,:;!?@#&()'+/_-]+$`)

// ConnectionProvider hands out the shared backend connection.
type ConnectionProvider interface {
	GetConnection(ctx context.Context) (lightning.Client, error)
	IsConnected() bool
}

// InvoiceUsecase turns (amount, description) requests into payment request
// strings with validation, fee quoting and idempotency.
type InvoiceUsecase struct {
	conn      ConnectionProvider
	stateRepo domainrepos.PaymentStateRepository
	idemRepo  domainrepos.IdempotencyRepository

	maxAmountSat      uint64
	maxDescriptionLen int
}

// NewInvoiceUsecase creates a new invoice usecase
func NewInvoiceUsecase(
	conn ConnectionProvider,
	stateRepo domainrepos.PaymentStateRepository,
	idemRepo domainrepos.IdempotencyRepository,
	maxAmountSat uint64,
	maxDescriptionLen int,
) *InvoiceUsecase {
	return &InvoiceUsecase{
		conn:              conn,
		stateRepo:         stateRepo,
		idemRepo:          idemRepo,
		maxAmountSat:      maxAmountSat,
		maxDescriptionLen: maxDescriptionLen,
	}
}

// CreateInvoiceInput carries one invoice creation request.
type CreateInvoiceInput struct {
	AmountSat      uint64
	Description    string
	SessionID      string
	ContentID      int64 // 0 for tips
	IdempotencyKey string
}

// CreateInvoiceOutput is the materialized payment request.
type CreateInvoiceOutput struct {
	Invoice     string `json:"invoice"`
	PaymentHash string `json:"paymentHash"`
	FeesSat     uint64 `json:"feesSat"`
}

// ValidateAmount rejects zero and amounts above the configured maximum.
func (uc *InvoiceUsecase) ValidateAmount(amountSat uint64) error {
	if amountSat == 0 {
		return domainerrors.InvalidRequest("amount must be greater than zero")
	}
	if amountSat > uc.maxAmountSat {
		return domainerrors.InvalidRequest("amount exceeds the configured maximum")
	}
	return nil
}

// ValidateDescription rejects empty, oversized, or unsafe descriptions.
func (uc *InvoiceUsecase) ValidateDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return domainerrors.InvalidRequest("description must not be empty")
	}
	if len(description) > uc.maxDescriptionLen {
		return domainerrors.InvalidRequest("description is too long")
	}
	if !descriptionPattern.MatchString(description) {
		return domainerrors.InvalidRequest("description contains unsupported characters")
	}
	return nil
}

// CreateInvoice validates the request, creates a payment request through
// the backend and records the Pending projection. A supplied idempotency
// key that already has a mapping short-circuits without a backend call.
func (uc *InvoiceUsecase) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*CreateInvoiceOutput, error) {
	if input.IdempotencyKey != "" {
		mapping, err := uc.idemRepo.Get(ctx, input.IdempotencyKey)
		switch {
		case err == nil:
			logger.Debug(ctx, "Idempotency key replay",
				zap.String("idempotency_key", input.IdempotencyKey),
				zap.String("payment_hash", mapping.PaymentHash))
			return &CreateInvoiceOutput{
				Invoice:     mapping.Invoice,
				PaymentHash: mapping.PaymentHash,
			}, nil
		case !errors.Is(err, domainerrors.ErrNotFound):
			// Creating a fresh invoice here would silently break the key's
			// guarantee; surface the lookup failure instead.
			return nil, domainerrors.InternalError(err)
		}
	}

	if err := uc.ValidateAmount(input.AmountSat); err != nil {
		return nil, err
	}
	if err := uc.ValidateDescription(input.Description); err != nil {
		return nil, err
	}

	client, err := uc.conn.GetConnection(ctx)
	if err != nil {
		return nil, err
	}

	// Pre-check receive limits to fail fast; a fetch failure is not fatal
	// because the prepare call enforces the same bounds backend-side.
	if limits, err := client.FetchReceiveLimits(ctx); err == nil {
		if input.AmountSat < limits.MinSat || input.AmountSat > limits.MaxSat {
			return nil, domainerrors.InvalidRequest("amount is outside the current receive limits")
		}
	} else {
		logger.Warn(ctx, "Could not fetch receive limits, skipping pre-check", zap.Error(err))
	}

	prepared, err := uc.prepare(ctx, client, input.AmountSat)
	if err != nil {
		return nil, err
	}

	var received *lightning.ReceiveResponse
	err = lightning.PreparePolicy().Do(ctx, func(attemptCtx context.Context) error {
		var innerErr error
		received, innerErr = client.Receive(attemptCtx, prepared, input.Description)
		return innerErr
	})
	if err != nil {
		return nil, domainerrors.Invoice("could not materialize payment request", err)
	}

	// The payment hash is the primary key for everything downstream; an
	// invoice we cannot key is unusable.
	parsed, err := client.ParseInvoice(ctx, received.Destination)
	if err != nil {
		return nil, domainerrors.Invoice("could not parse created payment request", err)
	}
	if parsed.PaymentHash == "" {
		return nil, domainerrors.Invoice("created payment request has no payment hash", nil)
	}

	if err := uc.stateRepo.AddPending(ctx, parsed.PaymentHash, input.ContentID, input.SessionID); err != nil {
		return nil, domainerrors.InternalError(err)
	}
	kind := entities.PaymentKindTip
	if input.ContentID > 0 {
		kind = entities.PaymentKindPaywall
	}
	if err := uc.stateRepo.SetMetadata(ctx, parsed.PaymentHash, input.AmountSat, kind); err != nil {
		logger.Warn(ctx, "Could not enrich payment metadata",
			zap.String("payment_hash", parsed.PaymentHash), zap.Error(err))
	}

	if input.IdempotencyKey != "" {
		mapping := &entities.IdempotencyMapping{
			IdempotencyKey: input.IdempotencyKey,
			PaymentHash:    parsed.PaymentHash,
			Invoice:        received.Destination,
			Status:         entities.PaymentStatusPending,
		}
		if err := uc.idemRepo.Create(ctx, mapping); err != nil {
			if errors.Is(err, domainerrors.ErrAlreadyExists) {
				// Lost the creation race: another request pinned the key
				// first. Both callers must see that winner's pair.
				stored, getErr := uc.idemRepo.Get(ctx, input.IdempotencyKey)
				if getErr != nil {
					return nil, domainerrors.InternalError(getErr)
				}
				logger.Warn(ctx, "Concurrent idempotency key creation, returning first mapping",
					zap.String("idempotency_key", input.IdempotencyKey),
					zap.String("payment_hash", stored.PaymentHash),
					zap.String("discarded_payment_hash", parsed.PaymentHash))
				return &CreateInvoiceOutput{
					Invoice:     stored.Invoice,
					PaymentHash: stored.PaymentHash,
				}, nil
			}
			logger.Error(ctx, "Could not persist idempotency mapping",
				zap.String("idempotency_key", input.IdempotencyKey), zap.Error(err))
		}
	}

	metrics.InvoicesCreated.Inc()
	logger.Info(ctx, "Invoice created",
		zap.String("payment_hash", parsed.PaymentHash),
		zap.Uint64("amount_sat", input.AmountSat),
		zap.Int64("content_id", input.ContentID))

	return &CreateInvoiceOutput{
		Invoice:     received.Destination,
		PaymentHash: parsed.PaymentHash,
		FeesSat:     prepared.FeesSat,
	}, nil
}

// QuoteReceiveFee returns the fee quote for receiving amountSat. It never
// creates a payment request as a side effect.
func (uc *InvoiceUsecase) QuoteReceiveFee(ctx context.Context, amountSat uint64) (uint64, error) {
	if err := uc.ValidateAmount(amountSat); err != nil {
		return 0, err
	}

	client, err := uc.conn.GetConnection(ctx)
	if err != nil {
		return 0, err
	}

	prepared, err := uc.prepare(ctx, client, amountSat)
	if err != nil {
		return 0, err
	}
	return prepared.FeesSat, nil
}

// RecommendedFees returns the backend's current on-chain fee estimates.
func (uc *InvoiceUsecase) RecommendedFees(ctx context.Context) (*lightning.RecommendedFees, error) {
	client, err := uc.conn.GetConnection(ctx)
	if err != nil {
		return nil, err
	}
	fees, err := client.RecommendedFees(ctx)
	if err != nil {
		return nil, domainerrors.Invoice("could not fetch recommended fees", err)
	}
	return fees, nil
}

func (uc *InvoiceUsecase) prepare(ctx context.Context, client lightning.Client, amountSat uint64) (*lightning.PrepareReceiveResponse, error) {
	var prepared *lightning.PrepareReceiveResponse
	err := lightning.PreparePolicy().Do(ctx, func(attemptCtx context.Context) error {
		var innerErr error
		prepared, innerErr = client.PrepareReceive(attemptCtx, amountSat)
		return innerErr
	})
	if err != nil {
		return nil, domainerrors.Invoice("could not obtain fee quote", err)
	}
	return prepared, nil
}
