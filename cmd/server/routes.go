package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lightning-paywall.backend/internal/interfaces/http/handlers"
	"lightning-paywall.backend/pkg/metrics"
)

type routeDeps struct {
	authHandler         *handlers.AuthHandler
	invoiceHandler      *handlers.InvoiceHandler
	paymentHandler      *handlers.PaymentHandler
	webhookHandler      *handlers.WebhookHandler
	eventsHandler       *handlers.EventsHandler
	sessionMiddleware   gin.HandlerFunc
	adminAuthMiddleware gin.HandlerFunc
}

func registerHealthRoute(r *gin.Engine, isConnected func() bool) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":           "ok",
			"backendConnected": isConnected(),
		})
	})
	r.GET("/metrics", metrics.Handler())
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Admin auth (public)
		v1.POST("/auth/login", d.authHandler.Login)

		// Invoice routes (session-scoped, public)
		invoices := v1.Group("/invoices")
		invoices.Use(d.sessionMiddleware)
		{
			invoices.POST("", d.invoiceHandler.CreateInvoice)
			invoices.GET("/quote", d.invoiceHandler.QuoteReceiveFee)
		}

		v1.GET("/fees/recommended", d.invoiceHandler.RecommendedFees)

		// Realtime stream (session-scoped)
		v1.GET("/events", d.sessionMiddleware, d.eventsHandler.Subscribe)

		// Provider webhook (signature-verified in the handler)
		v1.POST("/webhooks/payments", d.webhookHandler.HandlePaymentWebhook)

		// Payment projection (admin)
		payments := v1.Group("/payments")
		payments.Use(d.adminAuthMiddleware)
		{
			payments.GET("", d.paymentHandler.ListPayments)
			payments.GET("/:hash", d.paymentHandler.GetPayment)
			payments.POST("/:hash/confirm", d.paymentHandler.ConfirmPayment)
			payments.POST("/:hash/fail", d.paymentHandler.FailPayment)
			payments.POST("/:hash/expire", d.paymentHandler.ExpirePayment)
			payments.POST("/:hash/refund-pending", d.paymentHandler.RefundPendingPayment)
			payments.POST("/:hash/refund", d.paymentHandler.RefundPayment)
		}
	}
}
