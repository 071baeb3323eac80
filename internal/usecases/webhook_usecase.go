package usecases

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"lightning-paywall.backend/internal/domain/entities"
	"lightning-paywall.backend/internal/domain/errors"
	domainrepos "lightning-paywall.backend/internal/domain/repositories"
	"lightning-paywall.backend/internal/notify"
	"lightning-paywall.backend/pkg/logger"
	"lightning-paywall.backend/pkg/metrics"
)

// Webhook notification types, as sent by the provider.
const (
	WebhookPaymentSucceeded = "payment_succeeded"
	WebhookPaymentFailed    = "payment_failed"
	WebhookInvoiceExpired   = "invoice_expired"
	WebhookRefundInitiated  = "refund_initiated"
	WebhookRefundSucceeded  = "refund_succeeded"
)

// WebhookUsecase verifies inbound signed notifications and applies the
// matching payment-state transition. It is independent of the SDK event
// path but converges on the same store, so both must tolerate the other
// winning a settlement race.
type WebhookUsecase struct {
	store    domainrepos.PaymentStateRepository
	hub      Broadcaster
	notifier notify.AdminNotifier
	secret   []byte
}

// NewWebhookUsecase creates a new webhook usecase
func NewWebhookUsecase(
	store domainrepos.PaymentStateRepository,
	hub Broadcaster,
	notifier notify.AdminNotifier,
	secret string,
) *WebhookUsecase {
	return &WebhookUsecase{
		store:    store,
		hub:      hub,
		notifier: notifier,
		secret:   []byte(secret),
	}
}

// VerifySignature checks the HMAC-SHA256 of the raw body against the
// signature header. The header value may be hex- or base64-encoded.
func (uc *WebhookUsecase) VerifySignature(body []byte, signatureHeader string) error {
	if len(uc.secret) == 0 {
		metrics.WebhookRejected.WithLabelValues("no_secret").Inc()
		return errors.InvalidRequest("webhook secret is not configured")
	}
	if signatureHeader == "" {
		metrics.WebhookRejected.WithLabelValues("missing_header").Inc()
		return errors.SignatureInvalid("missing signature header")
	}

	claimed, err := decodeSignature(signatureHeader)
	if err != nil {
		metrics.WebhookRejected.WithLabelValues("undecodable").Inc()
		return errors.SignatureInvalid("signature encoding is not hex or base64")
	}

	mac := hmac.New(sha256.New, uc.secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), claimed) {
		metrics.WebhookRejected.WithLabelValues("mismatch").Inc()
		return errors.SignatureInvalid("signature mismatch")
	}
	return nil
}

// decodeSignature tries hex first for plausibly-hex values, then base64.
func decodeSignature(value string) ([]byte, error) {
	if len(value)%2 == 0 && len(value) <= 128 {
		if decoded, err := hex.DecodeString(value); err == nil {
			return decoded, nil
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(value)
}

// ProcessNotification dispatches a verified notification to the matching
// state transition and returns the resulting status.
func (uc *WebhookUsecase) ProcessNotification(ctx context.Context, notificationType, paymentHash string) (entities.PaymentStatus, error) {
	if paymentHash == "" {
		return "", errors.InvalidRequest("notification has no payment id")
	}

	logger.Info(ctx, "Processing webhook notification",
		zap.String("type", notificationType), zap.String("payment_hash", paymentHash))

	switch notificationType {
	case WebhookPaymentSucceeded:
		return uc.confirm(ctx, paymentHash)
	case WebhookPaymentFailed:
		return uc.overwrite(ctx, paymentHash, entities.PaymentStatusFailed, uc.store.MarkFailed)
	case WebhookInvoiceExpired:
		return uc.overwrite(ctx, paymentHash, entities.PaymentStatusExpired, uc.store.MarkExpired)
	case WebhookRefundInitiated:
		return uc.overwrite(ctx, paymentHash, entities.PaymentStatusRefundPending, uc.store.MarkRefundPending)
	case WebhookRefundSucceeded:
		return uc.overwrite(ctx, paymentHash, entities.PaymentStatusRefunded, uc.store.MarkRefunded)
	default:
		// Unknown types are rejected, not silently ignored: an unexpected
		// type means the provider contract moved under us.
		return "", errors.InvalidRequest(fmt.Sprintf("unknown notification type %q", notificationType))
	}
}

func (uc *WebhookUsecase) confirm(ctx context.Context, hash string) (entities.PaymentStatus, error) {
	result, err := uc.store.Confirm(ctx, hash)
	if err != nil {
		return "", errors.InternalError(err)
	}

	switch result {
	case domainrepos.ConfirmConfirmed:
		metrics.PaymentsConfirmed.WithLabelValues("webhook").Inc()
		uc.broadcastSettled(ctx, hash)
		uc.notifier.Notify(ctx, "Payment received",
			fmt.Sprintf("Payment %s confirmed via webhook", hash))
		return entities.PaymentStatusPaid, nil
	case domainrepos.ConfirmAlreadyConfirmed:
		// The SDK event path won the race; idempotent no-op.
		return entities.PaymentStatusPaid, nil
	default:
		// A confirmation for a hash we do not track signals a possible
		// desync between the provider and the local projection.
		uc.notifier.Notify(ctx, "Webhook payment not found",
			fmt.Sprintf("Webhook confirmed payment %s but no local state exists", hash))
		return "", errors.NotFound("payment not found")
	}
}

func (uc *WebhookUsecase) overwrite(
	ctx context.Context,
	hash string,
	status entities.PaymentStatus,
	mark func(context.Context, string) (bool, error),
) (entities.PaymentStatus, error) {
	ok, err := mark(ctx, hash)
	if err != nil {
		return "", errors.InternalError(err)
	}
	if !ok {
		return "", errors.NotFound("payment not found")
	}
	uc.notifier.Notify(ctx, "Payment state changed",
		fmt.Sprintf("Payment %s moved to %s via webhook", hash, status))
	return status, nil
}

func (uc *WebhookUsecase) broadcastSettled(ctx context.Context, hash string) {
	state, err := uc.store.GetByHash(ctx, hash)
	if err != nil {
		logger.Error(ctx, "Could not load confirmed payment for broadcast",
			zap.String("payment_hash", hash), zap.Error(err))
		return
	}
	if state.UserSessionID == "" {
		return
	}
	uc.hub.Broadcast(state.UserSessionID, PaymentSucceededEvent, PaymentSucceededPayload{
		PaymentHash: state.PaymentHash,
		ContentID:   state.ContentID,
		Kind:        state.Kind,
		Status:      state.Status,
		AmountSat:   state.AmountSat,
	})
}
