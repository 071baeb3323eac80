package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "lightning-paywall.backend/internal/domain/errors"
	"lightning-paywall.backend/internal/interfaces/http/response"
	"lightning-paywall.backend/internal/usecases"
	"lightning-paywall.backend/pkg/metrics"
)

// SignatureHeader carries the provider's HMAC of the raw request body.
const SignatureHeader = "X-Lightning-Signature"

// WebhookHandler handles signed provider notifications
type WebhookHandler struct {
	webhookUsecase *usecases.WebhookUsecase
	maxBodyBytes   int64
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookUsecase *usecases.WebhookUsecase, maxBodyBytes int64) *WebhookHandler {
	return &WebhookHandler{webhookUsecase: webhookUsecase, maxBodyBytes: maxBodyBytes}
}

// HandlePaymentWebhook handles POST /api/v1/webhooks/payments. The body
// size cap and signature check both run before any parsing of untrusted
// input.
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	if c.Request.ContentLength > h.maxBodyBytes {
		metrics.WebhookRejected.WithLabelValues("oversized").Inc()
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"code":    "ERR_BODY_TOO_LARGE",
			"message": "request body exceeds the size limit",
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBodyBytes+1))
	if err != nil {
		response.Error(c, domainerrors.InvalidRequest("could not read request body"))
		return
	}
	if int64(len(body)) > h.maxBodyBytes {
		metrics.WebhookRejected.WithLabelValues("oversized").Inc()
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"code":    "ERR_BODY_TOO_LARGE",
			"message": "request body exceeds the size limit",
		})
		return
	}

	if err := h.webhookUsecase.VerifySignature(body, c.GetHeader(SignatureHeader)); err != nil {
		response.Error(c, err)
		return
	}

	var input struct {
		Type    string `json:"type"`
		Payment struct {
			ID string `json:"id"`
		} `json:"payment"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		response.Error(c, domainerrors.InvalidRequest("malformed notification body"))
		return
	}

	status, err := h.webhookUsecase.ProcessNotification(c.Request.Context(), input.Type, input.Payment.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": status})
}
