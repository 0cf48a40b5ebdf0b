package main

import (
	"context"
	"os"
	"time"

	"persona-app/config"
	"persona-app/database"
	"persona-app/internal/api/billing"
	"persona-app/internal/api/generate"
	"persona-app/internal/api/paymentwebhook"
	personasapi "persona-app/internal/api/personas"
	routes "persona-app/internal/app/http"
	"persona-app/internal/credits"
	"persona-app/internal/domain/plans"
	"persona-app/internal/generation"
	"persona-app/internal/infra/aiprovider"
	"persona-app/internal/infra/payments"
	"persona-app/internal/infra/storage"
	"persona-app/internal/training"
	"persona-app/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// gin.SetMode(gin.ReleaseMode) uncomment only in production
	config.LoadEnv()
	database.InitDB()

	log := logger.New()
	ctx := context.Background()

	uploader, err := storage.NewUploader(storage.Config{
		Endpoint:      config.S3_ENDPOINT,
		Region:        config.S3_REGION,
		AccessKey:     config.S3_ACCESS_KEY,
		SecretKey:     config.S3_SECRET_KEY,
		Bucket:        config.S3_BUCKET,
		PublicBaseURL: config.S3_PUBLIC_BASE_URL,
	})
	if err != nil {
		log.Error("s3 uploader init failed", "error", err)
		os.Exit(1)
	}

	gemini, err := aiprovider.NewGemini(ctx, config.GEMINI_API_KEY, config.GEMINI_MODEL, log)
	if err != nil {
		log.Error("gemini client init failed", "error", err)
		os.Exit(1)
	}
	providers := aiprovider.Registry{
		gemini.Name(): gemini,
	}
	if config.OPENAI_API_KEY != "" {
		openai := aiprovider.NewOpenAI(config.OPENAI_API_KEY, config.OPENAI_BASE_URL, config.OPENAI_MODEL, log)
		providers[openai.Name()] = openai
	}

	ledger := credits.NewLedger(database.DB)
	orchestrator := generation.NewOrchestrator(
		ledger,
		uploader,
		generation.NewGormStore(database.DB),
		providers,
		config.IMAGE_COSTS,
		log,
	)

	rdb := redis.NewClient(&redis.Options{Addr: config.REDIS_ADDR})
	runner := training.NewRunner(rdb, training.NewGormStore(database.DB), 3*time.Second, log)
	go runner.Start(ctx)

	webhook := paymentwebhook.NewHandler(ledger, config.PAYMENT_WEBHOOK_SECRET, map[string]string{
		config.PAYMENT_PRODUCT_PRO:   plans.PlanPro,
		config.PAYMENT_PRODUCT_ULTRA: plans.PlanUltra,
	}, log)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{os.Getenv("CORS_ORIGIN")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Handlers{
		Webhook:  webhook,
		Generate: generate.NewHandler(orchestrator, uploader),
		Personas: personasapi.NewHandler(uploader, runner),
		Billing:  billing.NewHandler(payments.NewClient(config.PAYMENT_API_KEY, config.PAYMENT_API_BASE, log)),
	})

	r.Run(":" + config.PORT)
}
