package billing

import (
	"net/http"

	"persona-app/database"
	"persona-app/internal/domain/users"
	"persona-app/internal/infra/payments"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	payments *payments.Client
}

func NewHandler(client *payments.Client) *Handler {
	return &Handler{payments: client}
}

// POST /cancel-subscription
//
// Only schedules the cancellation with the provider. The plan and credits
// are untouched here; the downgrade happens when the provider delivers
// subscription.cancelled to the webhook.
func (h *Handler) CancelSubscription(c *gin.Context) {
	userID := c.GetUint("user_id")

	var user users.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	if user.SubscriptionID == nil || *user.SubscriptionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no active subscription to cancel"})
		return
	}

	if err := h.payments.CancelSubscription(c.Request.Context(), *user.SubscriptionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "subscription will be cancelled at the end of the billing period",
	})
}
