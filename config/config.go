package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	PORT       string
	DB_URL     string
	JWT_SECRET string
	REDIS_ADDR string

	GOOGLE_CLIENT_ID         string
	GOOGLE_CLIENT_SECRET     string
	GOOGLE_REDIRECT_URL      string
	GOOGLE_FRONTEND_REDIRECT string

	GEMINI_API_KEY string
	GEMINI_MODEL   string

	OPENAI_API_KEY  string
	OPENAI_BASE_URL string
	OPENAI_MODEL    string

	S3_ENDPOINT        string
	S3_REGION          string
	S3_ACCESS_KEY      string
	S3_SECRET_KEY      string
	S3_BUCKET          string
	S3_PUBLIC_BASE_URL string

	PAYMENT_API_BASE       string
	PAYMENT_API_KEY        string
	PAYMENT_WEBHOOK_SECRET string

	// External product id -> internal plan. Validated at startup so a typo'd
	// env var fails loudly instead of silently dropping webhooks.
	PAYMENT_PRODUCT_PRO   string
	PAYMENT_PRODUCT_ULTRA string

	// Credits charged per generated image, keyed by AI model id.
	IMAGE_COSTS map[string]int
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	PORT = getEnv("PORT", "8080")
	DB_URL = mustEnv("DB_URL")
	JWT_SECRET = mustEnv("JWT_SECRET")
	REDIS_ADDR = getEnv("REDIS_ADDR", "localhost:6379")

	GOOGLE_CLIENT_ID = getEnv("GOOGLE_CLIENT_ID", "")
	GOOGLE_CLIENT_SECRET = getEnv("GOOGLE_CLIENT_SECRET", "")
	GOOGLE_REDIRECT_URL = getEnv("GOOGLE_REDIRECT_URL", "")
	GOOGLE_FRONTEND_REDIRECT = getEnv("GOOGLE_FRONTEND_REDIRECT", "")

	GEMINI_API_KEY = mustEnv("GEMINI_API_KEY")
	GEMINI_MODEL = getEnv("GEMINI_MODEL", "gemini-2.5-flash-image")

	OPENAI_API_KEY = getEnv("OPENAI_API_KEY", "")
	OPENAI_BASE_URL = getEnv("OPENAI_BASE_URL", "https://api.openai.com")
	OPENAI_MODEL = getEnv("OPENAI_MODEL", "gpt-image-1")

	S3_ENDPOINT = getEnv("S3_ENDPOINT", "")
	S3_REGION = mustEnv("S3_REGION")
	S3_ACCESS_KEY = mustEnv("S3_ACCESS_KEY")
	S3_SECRET_KEY = mustEnv("S3_SECRET_KEY")
	S3_BUCKET = mustEnv("S3_BUCKET")
	S3_PUBLIC_BASE_URL = mustEnv("S3_PUBLIC_BASE_URL")

	PAYMENT_API_BASE = getEnv("PAYMENT_API_BASE", "https://api.payments.example.com")
	PAYMENT_API_KEY = mustEnv("PAYMENT_API_KEY")
	PAYMENT_WEBHOOK_SECRET = mustEnv("PAYMENT_WEBHOOK_SECRET")

	PAYMENT_PRODUCT_PRO = mustEnv("PAYMENT_PRODUCT_PRO")
	PAYMENT_PRODUCT_ULTRA = mustEnv("PAYMENT_PRODUCT_ULTRA")
	if PAYMENT_PRODUCT_PRO == PAYMENT_PRODUCT_ULTRA {
		log.Fatal("PAYMENT_PRODUCT_PRO and PAYMENT_PRODUCT_ULTRA must differ")
	}

	IMAGE_COSTS = map[string]int{
		GEMINI_MODEL: getEnvInt("GEMINI_IMAGE_COST", 10),
		OPENAI_MODEL: getEnvInt("OPENAI_IMAGE_COST", 15),
	}
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("Missing required environment variable: %s", key)
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Fatalf("Environment variable %s must be an integer", key)
		}
		return parsed
	}
	return fallback
}
