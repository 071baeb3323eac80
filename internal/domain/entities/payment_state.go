package entities

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// PaymentStatus represents the lifecycle status of a tracked payment
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "PENDING"
	PaymentStatusPaid          PaymentStatus = "PAID"
	PaymentStatusFailed        PaymentStatus = "FAILED"
	PaymentStatusExpired       PaymentStatus = "EXPIRED"
	PaymentStatusRefundPending PaymentStatus = "REFUND_PENDING"
	PaymentStatusRefunded      PaymentStatus = "REFUNDED"
)

// PaymentKind distinguishes content-gating payments from tips
type PaymentKind string

const (
	// PaymentKindPaywall is tied to a content item (ContentID > 0); at most
	// one pending entry per (session, content) pair.
	PaymentKindPaywall PaymentKind = "PAYWALL"
	// PaymentKindTip has no content de-duplication key.
	PaymentKindTip PaymentKind = "TIP"
)

// PaymentState is the local projection of a Lightning payment request.
// PaymentHash is globally unique and immutable once assigned.
type PaymentState struct {
	PaymentHash   string        `json:"paymentHash"`
	ContentID     int64         `json:"contentId"` // 0 means not tied to a content item
	UserSessionID string        `json:"userSessionId"`
	Status        PaymentStatus `json:"status"`
	AmountSat     uint64        `json:"amountSat"`
	Kind          PaymentKind   `json:"kind"`
	PaidAt        null.Time     `json:"paidAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// IdempotencyMapping pins a caller-supplied key to the first (invoice,
// payment hash) pair created under it. Never mutated after creation; the
// Status field is a snapshot convenience, not authoritative.
type IdempotencyMapping struct {
	IdempotencyKey string        `json:"idempotencyKey"`
	PaymentHash    string        `json:"paymentHash"`
	Invoice        string        `json:"invoice"`
	Status         PaymentStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}
