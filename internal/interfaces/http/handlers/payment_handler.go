package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lightning-paywall.backend/internal/domain/entities"
	domainerrors "lightning-paywall.backend/internal/domain/errors"
	domainrepos "lightning-paywall.backend/internal/domain/repositories"
	"lightning-paywall.backend/internal/interfaces/http/response"
)

// PaymentHandler exposes the payment projection to the admin surface
type PaymentHandler struct {
	store domainrepos.PaymentStateRepository
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(store domainrepos.PaymentStateRepository) *PaymentHandler {
	return &PaymentHandler{store: store}
}

// ListPayments handles GET /api/v1/payments
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	payments, total, listErr := h.store.List(c.Request.Context(), limit, offset)
	if listErr != nil {
		response.Error(c, listErr)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"payments": payments,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetPayment handles GET /api/v1/payments/:hash
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	state, err := h.store.GetByHash(c.Request.Context(), c.Param("hash"))
	if err != nil {
		if err == domainerrors.ErrNotFound {
			response.Error(c, domainerrors.NotFound("payment not found"))
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// ConfirmPayment handles POST /api/v1/payments/:hash/confirm
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	result, err := h.store.Confirm(c.Request.Context(), c.Param("hash"))
	if err != nil {
		response.Error(c, err)
		return
	}

	switch result {
	case domainrepos.ConfirmConfirmed, domainrepos.ConfirmAlreadyConfirmed:
		response.Success(c, http.StatusOK, gin.H{"status": entities.PaymentStatusPaid})
	default:
		response.Error(c, domainerrors.NotFound("payment not found"))
	}
}

// FailPayment handles POST /api/v1/payments/:hash/fail
func (h *PaymentHandler) FailPayment(c *gin.Context) {
	h.overwrite(c, entities.PaymentStatusFailed, h.store.MarkFailed)
}

// ExpirePayment handles POST /api/v1/payments/:hash/expire
func (h *PaymentHandler) ExpirePayment(c *gin.Context) {
	h.overwrite(c, entities.PaymentStatusExpired, h.store.MarkExpired)
}

// RefundPendingPayment handles POST /api/v1/payments/:hash/refund-pending
func (h *PaymentHandler) RefundPendingPayment(c *gin.Context) {
	h.overwrite(c, entities.PaymentStatusRefundPending, h.store.MarkRefundPending)
}

// RefundPayment handles POST /api/v1/payments/:hash/refund
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	h.overwrite(c, entities.PaymentStatusRefunded, h.store.MarkRefunded)
}

func (h *PaymentHandler) overwrite(
	c *gin.Context,
	status entities.PaymentStatus,
	mark func(ctx context.Context, hash string) (bool, error),
) {
	ok, err := mark(c.Request.Context(), c.Param("hash"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ok {
		response.Error(c, domainerrors.NotFound("payment not found"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": status})
}
