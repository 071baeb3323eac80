package usecases_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lightning-paywall.backend/internal/domain/entities"
	domainrepos "lightning-paywall.backend/internal/domain/repositories"
	"lightning-paywall.backend/internal/usecases"
)

const webhookTestSecret = "test-webhook-secret"

func signBody(body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(webhookTestSecret))
	mac.Write(body)
	return mac.Sum(nil)
}

func newWebhookUC(sr *MockPaymentStateRepository, hub *MockBroadcaster, notifier *MockAdminNotifier) *usecases.WebhookUsecase {
	return usecases.NewWebhookUsecase(sr, hub, notifier, webhookTestSecret)
}

func TestWebhookUsecase_VerifySignature_Hex(t *testing.T) {
	uc := newWebhookUC(new(MockPaymentStateRepository), new(MockBroadcaster), new(MockAdminNotifier))

	body := []byte(`{"type":"payment_succeeded"}`)
	sig := hex.EncodeToString(signBody(body))
	assert.NoError(t, uc.VerifySignature(body, sig))
}

func TestWebhookUsecase_VerifySignature_Base64(t *testing.T) {
	uc := newWebhookUC(new(MockPaymentStateRepository), new(MockBroadcaster), new(MockAdminNotifier))

	body := []byte(`{"type":"payment_succeeded"}`)
	sig := base64.StdEncoding.EncodeToString(signBody(body))
	assert.NoError(t, uc.VerifySignature(body, sig))
}

func TestWebhookUsecase_VerifySignature_Rejections(t *testing.T) {
	uc := newWebhookUC(new(MockPaymentStateRepository), new(MockBroadcaster), new(MockAdminNotifier))

	body := []byte(`{"type":"payment_succeeded"}`)

	assert.Error(t, uc.VerifySignature(body, ""))
	assert.Error(t, uc.VerifySignature(body, "!!!not-decodable!!!"))

	// Single flipped bit in an otherwise valid signature.
	tampered := signBody(body)
	tampered[0] ^= 0x01
	assert.Error(t, uc.VerifySignature(body, hex.EncodeToString(tampered)))

	// Valid signature over a different body.
	otherSig := hex.EncodeToString(signBody([]byte("other body")))
	assert.Error(t, uc.VerifySignature(body, otherSig))
}

func TestWebhookUsecase_VerifySignature_NoSecretConfigured(t *testing.T) {
	uc := usecases.NewWebhookUsecase(
		new(MockPaymentStateRepository), new(MockBroadcaster), new(MockAdminNotifier), "")

	body := []byte(`{}`)
	assert.Error(t, uc.VerifySignature(body, hex.EncodeToString(signBody(body))))
}

func TestWebhookUsecase_ProcessNotification_PaymentSucceeded(t *testing.T) {
	sr := new(MockPaymentStateRepository)
	hub := new(MockBroadcaster)
	notifier := new(MockAdminNotifier)
	uc := newWebhookUC(sr, hub, notifier)

	sr.On("Confirm", mock.Anything, "hash1").Return(domainrepos.ConfirmConfirmed, nil).Once()
	sr.On("GetByHash", mock.Anything, "hash1").Return(&entities.PaymentState{
		PaymentHash:   "hash1",
		ContentID:     42,
		UserSessionID: "sess1",
		Status:        entities.PaymentStatusPaid,
	}, nil).Once()
	hub.On("Broadcast", "sess1", usecases.PaymentSucceededEvent, mock.Anything).Once()
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Once()

	status, err := uc.ProcessNotification(context.Background(), usecases.WebhookPaymentSucceeded, "hash1")
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentStatusPaid, status)
	hub.AssertExpectations(t)
}

func TestWebhookUsecase_ProcessNotification_AlreadyConfirmed(t *testing.T) {
	sr := new(MockPaymentStateRepository)
	hub := new(MockBroadcaster)
	uc := newWebhookUC(sr, hub, new(MockAdminNotifier))

	sr.On("Confirm", mock.Anything, "hash1").Return(domainrepos.ConfirmAlreadyConfirmed, nil).Once()

	status, err := uc.ProcessNotification(context.Background(), usecases.WebhookPaymentSucceeded, "hash1")
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentStatusPaid, status)
	hub.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookUsecase_ProcessNotification_UnknownPaymentNotifiesAdmin(t *testing.T) {
	sr := new(MockPaymentStateRepository)
	notifier := new(MockAdminNotifier)
	uc := newWebhookUC(sr, new(MockBroadcaster), notifier)

	sr.On("Confirm", mock.Anything, "hash1").Return(domainrepos.ConfirmNotFound, nil).Once()
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Once()

	_, err := uc.ProcessNotification(context.Background(), usecases.WebhookPaymentSucceeded, "hash1")
	assert.Error(t, err)
	notifier.AssertExpectations(t)
}

func TestWebhookUsecase_ProcessNotification_Overwrites(t *testing.T) {
	cases := []struct {
		notificationType string
		markMethod       string
		want             entities.PaymentStatus
	}{
		{usecases.WebhookPaymentFailed, "MarkFailed", entities.PaymentStatusFailed},
		{usecases.WebhookInvoiceExpired, "MarkExpired", entities.PaymentStatusExpired},
		{usecases.WebhookRefundInitiated, "MarkRefundPending", entities.PaymentStatusRefundPending},
		{usecases.WebhookRefundSucceeded, "MarkRefunded", entities.PaymentStatusRefunded},
	}

	for _, tc := range cases {
		t.Run(tc.notificationType, func(t *testing.T) {
			sr := new(MockPaymentStateRepository)
			notifier := new(MockAdminNotifier)
			uc := newWebhookUC(sr, new(MockBroadcaster), notifier)

			sr.On(tc.markMethod, mock.Anything, "hash1").Return(true, nil).Once()
			notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Once()

			status, err := uc.ProcessNotification(context.Background(), tc.notificationType, "hash1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
			sr.AssertExpectations(t)
		})
	}
}

func TestWebhookUsecase_ProcessNotification_Rejections(t *testing.T) {
	uc := newWebhookUC(new(MockPaymentStateRepository), new(MockBroadcaster), new(MockAdminNotifier))

	_, err := uc.ProcessNotification(context.Background(), usecases.WebhookPaymentSucceeded, "")
	assert.Error(t, err)

	_, err = uc.ProcessNotification(context.Background(), "channel_opened", "hash1")
	assert.Error(t, err)
}

func TestWebhookUsecase_ProcessNotification_MarkMissingRow(t *testing.T) {
	sr := new(MockPaymentStateRepository)
	uc := newWebhookUC(sr, new(MockBroadcaster), new(MockAdminNotifier))

	sr.On("MarkFailed", mock.Anything, "hash1").Return(false, nil).Once()

	_, err := uc.ProcessNotification(context.Background(), usecases.WebhookPaymentFailed, "hash1")
	assert.Error(t, err)
}
