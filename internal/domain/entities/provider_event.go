package entities

// ProviderEventType is the closed set of events the payment backend emits
// over its SDK stream.
type ProviderEventType string

const (
	ProviderEventPaymentSucceeded ProviderEventType = "PAYMENT_SUCCEEDED"
	ProviderEventPaymentFailed    ProviderEventType = "PAYMENT_FAILED"
	ProviderEventPaymentPending   ProviderEventType = "PAYMENT_PENDING"
	ProviderEventSynced           ProviderEventType = "SYNCED"
)

// ProviderEventPayment is the payment detail attached to settlement events.
type ProviderEventPayment struct {
	PaymentHash string `json:"paymentHash"`
	AmountSat   uint64 `json:"amountSat"`
	FeesSat     uint64 `json:"feesSat"`
	Destination string `json:"destination"`
}

// ProviderEvent is a typed variant: Payment is nil for event types that
// carry no payment (e.g. SYNCED).
type ProviderEvent struct {
	Type    ProviderEventType     `json:"type"`
	Payment *ProviderEventPayment `json:"payment,omitempty"`
}

// Hash returns the payment hash carried by the event, or "" when the
// payload has none.
func (e ProviderEvent) Hash() string {
	if e.Payment == nil {
		return ""
	}
	return e.Payment.PaymentHash
}
