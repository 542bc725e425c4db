package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// config is the process configuration, read once at startup.
type config struct {
	DBURL               string
	ListenAddr          string
	DefaultLocation     *time.Location
	NutritionProvider   string // catalog | openai
	OpenAIBaseURL       string
	OpenAIAPIKey        string
	RecognitionProvider string // static | rekognition
	AWSRegion           string
	HealthSyncURL       string // empty disables the sync job
	HealthSyncSchedule  string
}

// loadConfig reads .env (if present) and the environment. DB_URL is the
// only required key.
func loadConfig(log *zap.Logger) (*config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn("no .env file found, using system env")
	}

	cfg := &config{
		DBURL:               os.Getenv("DB_URL"),
		ListenAddr:          getEnv("LISTEN_ADDR", "localhost:3000"),
		NutritionProvider:   getEnv("NUTRITION_PROVIDER", "catalog"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		RecognitionProvider: getEnv("RECOGNITION_PROVIDER", "static"),
		AWSRegion:           os.Getenv("AWS_REGION"),
		HealthSyncURL:       os.Getenv("HEALTH_SYNC_URL"),
		HealthSyncSchedule:  getEnv("HEALTH_SYNC_SCHEDULE", "*/30 * * * *"),
	}
	if cfg.DBURL == "" {
		return nil, fmt.Errorf("DB_URL is required")
	}

	tz := getEnv("DEFAULT_TZ", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_TZ %q: %w", tz, err)
	}
	cfg.DefaultLocation = loc

	switch cfg.NutritionProvider {
	case "catalog", "openai":
	default:
		return nil, fmt.Errorf("NUTRITION_PROVIDER must be catalog or openai, got %q", cfg.NutritionProvider)
	}
	switch cfg.RecognitionProvider {
	case "static", "rekognition":
	default:
		return nil, fmt.Errorf("RECOGNITION_PROVIDER must be static or rekognition, got %q", cfg.RecognitionProvider)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}

// newLogger builds the process logger. APP_ENV=dev switches to the
// human-readable development encoder.
func newLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
