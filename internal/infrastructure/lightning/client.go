package lightning

import (
	"context"
	"errors"
	"fmt"

	"lightning-paywall.backend/internal/domain/entities"
)

// ReceiveLimits are the backend's current receivable bounds.
type ReceiveLimits struct {
	MinSat uint64 `json:"minSat"`
	MaxSat uint64 `json:"maxSat"`
}

// PrepareReceiveResponse is the fee quote for a receive of AmountSat.
type PrepareReceiveResponse struct {
	AmountSat uint64 `json:"amountSat"`
	FeesSat   uint64 `json:"feesSat"`
}

// ReceiveResponse carries the materialized payment request string.
type ReceiveResponse struct {
	Destination string `json:"destination"`
}

// ParsedInvoice is the backend parser's view of a payment request.
type ParsedInvoice struct {
	PaymentHash string `json:"paymentHash"`
	AmountSat   uint64 `json:"amountSat"`
}

// RecommendedFees are current on-chain fee estimates in sat/vbyte.
type RecommendedFees struct {
	FastestFee  uint64 `json:"fastestFee"`
	HalfHourFee uint64 `json:"halfHourFee"`
	HourFee     uint64 `json:"hourFee"`
	EconomyFee  uint64 `json:"economyFee"`
	MinimumFee  uint64 `json:"minimumFee"`
}

// EventListener receives backend-originated events.
type EventListener interface {
	OnEvent(event entities.ProviderEvent)
}

// Client is the integration boundary to the external payment backend.
type Client interface {
	FetchReceiveLimits(ctx context.Context) (*ReceiveLimits, error)
	PrepareReceive(ctx context.Context, amountSat uint64) (*PrepareReceiveResponse, error)
	Receive(ctx context.Context, prepared *PrepareReceiveResponse, description string) (*ReceiveResponse, error)
	ParseInvoice(ctx context.Context, input string) (*ParsedInvoice, error)
	RecommendedFees(ctx context.Context) (*RecommendedFees, error)
	RegisterWebhook(ctx context.Context, url string) error
	AddEventListener(listener EventListener) (string, error)
	RemoveEventListener(id string) error
	Disconnect(ctx context.Context) error
}

// TransportError wraps a network-level failure talking to the backend.
// Policies retry these; application-level rejections they do not.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("lightning backend %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying: timeouts and transport
// failures, not application rejections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te *TransportError
	return errors.As(err, &te)
}
