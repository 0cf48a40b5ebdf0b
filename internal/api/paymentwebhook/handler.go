package paymentwebhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"persona-app/internal/infra/payments"
)

const maxBodyBytes = 65536

// LedgerAPI is the slice of the credit ledger webhook processing drives.
// All three operations set absolute state, which is what lets the handler
// absorb the provider's at-least-once delivery.
type LedgerAPI interface {
	SetPlan(ctx context.Context, userID uint, plan string, creditGrant int, subscriptionID string) error
	UpdatePlan(ctx context.Context, userID uint, plan string) error
	RevokeToFree(ctx context.Context, userID uint) error
}

type Handler struct {
	ledger       LedgerAPI
	secret       string
	productPlans map[string]string
	log          *slog.Logger
}

// NewHandler wires the webhook endpoint. productPlans maps the provider's
// product ids onto internal plan names and is validated at config load.
func NewHandler(ledger LedgerAPI, secret string, productPlans map[string]string, log *slog.Logger) *Handler {
	return &Handler{
		ledger:       ledger,
		secret:       secret,
		productPlans: productPlans,
		log:          log,
	}
}

// Handle processes one delivery from the payment provider. Response codes
// steer the provider's retry machinery: 400/401 are terminal for the
// delivery, 500 asks for a redelivery, 200 acknowledges — including events
// we deliberately skip, so a malformed-but-received event is not retried
// forever.
func (h *Handler) Handle(c *gin.Context) {
	webhookID := c.GetHeader("webhook-id")
	signature := c.GetHeader("webhook-signature")
	timestamp := c.GetHeader("webhook-timestamp")
	if webhookID == "" || signature == "" || timestamp == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing webhook headers"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error reading request body"})
		return
	}

	if err := payments.VerifySignature(h.secret, webhookID, timestamp, signature, payload); err != nil {
		h.log.Warn("webhook signature rejected", "webhook_id", webhookID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
		return
	}

	if err := h.apply(c.Request.Context(), payload); err != nil {
		// Transient downstream failure: report it so the provider redelivers.
		h.log.Error("webhook processing failed", "webhook_id", webhookID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
