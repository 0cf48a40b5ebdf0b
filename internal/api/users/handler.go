package users

import (
	"net/http"

	"persona-app/database"
	"persona-app/internal/domain/users"

	"github.com/gin-gonic/gin"
)

// GET /me
func Me(c *gin.Context) {
	userID := c.GetUint("user_id")

	var user users.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":             user.ID,
		"name":           user.Name,
		"email":          user.Email,
		"role":           user.Role,
		"plan":           user.Plan,
		"credits":        user.Credits,
		"subscriptionId": user.SubscriptionID,
	})
}
