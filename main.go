package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	log, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	err = run(context.Background(), log)
	if err != nil {
		log.Error("server exited", zap.Error(err))
	}
	_ = log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run wires the server and blocks until it stops. Every deferred cleanup
// runs before it returns.
func run(ctx context.Context, log *zap.Logger) error {
	cfg, err := loadConfig(log)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pool, err := getDBPool(ctx, cfg.DBURL, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := newPGStore(pool, log)
	summaries := newSummaryAggregator(store)

	var nutrition nutritionProvider = newCatalogProvider()
	if cfg.NutritionProvider == "openai" {
		nutrition = newOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, log)
	}

	var recognizer foodRecognizer = staticRecognizer{}
	if cfg.RecognitionProvider == "rekognition" {
		r, err := newRekognitionRecognizer(ctx, cfg.AWSRegion)
		if err != nil {
			return fmt.Errorf("rekognition setup: %w", err)
		}
		recognizer = r
	}

	if cfg.HealthSyncURL != "" {
		job := newHealthSyncJob(store, summaries, newHTTPHealthSyncer(cfg.HealthSyncURL), cfg.DefaultLocation, log)
		c, err := job.start(ctx, cfg.HealthSyncSchedule)
		if err != nil {
			return fmt.Errorf("health sync setup: %w", err)
		}
		defer c.Stop()
	}

	h := &Handler{
		log:        log,
		users:      store,
		meals:      store,
		profiles:   store,
		summaries:  summaries,
		nutrition:  nutrition,
		recognizer: recognizer,
		hub:        newRealtimeHub(log),
		defaultLoc: cfg.DefaultLocation,
		now:        time.Now,
	}

	router := gin.Default()
	router.SetTrustedProxies(nil)
	h.registerRoutes(router)

	log.Info("starting server",
		zap.String("addr", cfg.ListenAddr),
		zap.String("nutrition", cfg.NutritionProvider),
		zap.String("recognition", cfg.RecognitionProvider))
	return router.Run(cfg.ListenAddr)
}
