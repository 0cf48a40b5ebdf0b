package routes

import (
	authapi "persona-app/internal/api/auth"
	"persona-app/internal/api/billing"
	catalogapi "persona-app/internal/api/catalog"
	generateapi "persona-app/internal/api/generate"
	"persona-app/internal/api/paymentwebhook"
	personasapi "persona-app/internal/api/personas"
	"persona-app/internal/api/users"
	"persona-app/internal/app/http/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers carries the stateful handlers routes need; package-level handlers
// (auth, users, catalog) register directly.
type Handlers struct {
	Webhook  *paymentwebhook.Handler
	Generate *generateapi.Handler
	Personas *personasapi.Handler
	Billing  *billing.Handler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	// The webhook authenticates via signature, never via JWT, and its body
	// must reach the handler byte-for-byte, so it skips all middleware.
	r.POST("/webhooks/payment-provider", h.Webhook.Handle)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/templates", catalogapi.List)
	r.GET("/templates/:slug", catalogapi.GetBySlug)

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())

	public.POST("/register", authapi.Register)
	public.POST("/login", authapi.Login)

	public.GET("/auth/google", authapi.GoogleStart)
	public.GET("/auth/google/callback", authapi.GoogleCallback)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware())
	auth.GET("/me", users.Me)

	auth.POST("/generate", h.Generate.Generate)
	auth.POST("/generate/edit", h.Generate.Edit)
	auth.GET("/generations", h.Generate.List)
	auth.DELETE("/generations/:id", h.Generate.Delete)

	auth.POST("/models", h.Personas.Create)
	auth.GET("/models", h.Personas.List)
	auth.GET("/models/:id", h.Personas.Get)
	auth.DELETE("/models/:id", h.Personas.Delete)

	auth.POST("/cancel-subscription", h.Billing.CancelSubscription)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRole("admin"))
	admin.POST("/templates", catalogapi.Create)
	admin.PUT("/templates/:id", catalogapi.Update)
	admin.DELETE("/templates/:id", catalogapi.Delete)
}
