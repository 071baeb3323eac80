package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainerrors "lightning-paywall.backend/internal/domain/errors"
	"lightning-paywall.backend/internal/interfaces/http/middleware"
	"lightning-paywall.backend/internal/interfaces/http/response"
	"lightning-paywall.backend/internal/usecases"
)

// IdempotencyHeader carries the caller-supplied idempotency key.
const IdempotencyHeader = "Idempotency-Key"

// InvoiceHandler handles invoice creation and fee quote endpoints
type InvoiceHandler struct {
	invoiceUsecase *usecases.InvoiceUsecase
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoiceUsecase *usecases.InvoiceUsecase) *InvoiceHandler {
	return &InvoiceHandler{invoiceUsecase: invoiceUsecase}
}

// CreateInvoice handles POST /api/v1/invoices
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var input struct {
		AmountSat   uint64 `json:"amountSat" binding:"required"`
		Description string `json:"description" binding:"required"`
		ContentID   int64  `json:"contentId"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.InvalidRequest(err.Error()))
		return
	}

	out, err := h.invoiceUsecase.CreateInvoice(c.Request.Context(), usecases.CreateInvoiceInput{
		AmountSat:      input.AmountSat,
		Description:    input.Description,
		SessionID:      middleware.SessionID(c),
		ContentID:      input.ContentID,
		IdempotencyKey: c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, out)
}

// QuoteReceiveFee handles GET /api/v1/invoices/quote?amountSat=N
func (h *InvoiceHandler) QuoteReceiveFee(c *gin.Context) {
	amountSat, err := strconv.ParseUint(c.Query("amountSat"), 10, 64)
	if err != nil {
		response.Error(c, domainerrors.InvalidRequest("amountSat must be a positive integer"))
		return
	}

	feesSat, err := h.invoiceUsecase.QuoteReceiveFee(c.Request.Context(), amountSat)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"amountSat": amountSat,
		"feesSat":   feesSat,
	})
}

// RecommendedFees handles GET /api/v1/fees/recommended
func (h *InvoiceHandler) RecommendedFees(c *gin.Context) {
	fees, err := h.invoiceUsecase.RecommendedFees(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, fees)
}
