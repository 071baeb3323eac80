package repositories

import (
	"context"
	"time"

	"lightning-paywall.backend/internal/domain/entities"
)

// ConfirmResult is the outcome of a settlement confirmation attempt.
type ConfirmResult int

const (
	// ConfirmConfirmed means the row transitioned Pending -> Paid.
	ConfirmConfirmed ConfirmResult = iota
	// ConfirmAlreadyConfirmed means the row was already Paid (idempotent no-op).
	ConfirmAlreadyConfirmed
	// ConfirmNotFound covers both a missing row and a row in a
	// non-confirmable state; either way there is nothing to confirm now.
	ConfirmNotFound
)

// PaymentStateRepository is the durable projection of payment state, keyed
// by payment hash.
type PaymentStateRepository interface {
	// AddPending creates a Pending row. For contentID > 0 it atomically
	// replaces any existing Pending row for (sessionID, contentID).
	AddPending(ctx context.Context, hash string, contentID int64, sessionID string) error

	Confirm(ctx context.Context, hash string) (ConfirmResult, error)

	// Status overwrites. Return false when the row does not exist. Prior
	// state is deliberately not validated.
	MarkFailed(ctx context.Context, hash string) (bool, error)
	MarkExpired(ctx context.Context, hash string) (bool, error)
	MarkRefundPending(ctx context.Context, hash string) (bool, error)
	MarkRefunded(ctx context.Context, hash string) (bool, error)

	// SetMetadata enriches a row whose amount/kind is only known after
	// creation. Best-effort: a missing row is not an error.
	SetMetadata(ctx context.Context, hash string, amountSat uint64, kind entities.PaymentKind) error

	GetByHash(ctx context.Context, hash string) (*entities.PaymentState, error)
	ListBySession(ctx context.Context, sessionID string) ([]*entities.PaymentState, error)
	List(ctx context.Context, limit, offset int) ([]*entities.PaymentState, int, error)

	// GetStalePending returns Pending rows created before the cutoff, for
	// the expiry sweep.
	GetStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*entities.PaymentState, error)
}

// IdempotencyRepository stores the idempotency-key -> invoice mappings.
type IdempotencyRepository interface {
	// Get returns the mapping for key, or domain ErrNotFound.
	Get(ctx context.Context, key string) (*entities.IdempotencyMapping, error)
	// Create persists a new mapping. A concurrent create with the same key
	// must converge on the first-created row.
	Create(ctx context.Context, mapping *entities.IdempotencyMapping) error
}
