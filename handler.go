package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Handler holds shared dependencies for all route handlers. Everything is
// constructed in main and passed in; nothing is reached through globals.
type Handler struct {
	log        *zap.Logger
	users      userStore
	meals      mealLogStore
	profiles   profileStore
	summaries  *summaryAggregator
	nutrition  nutritionProvider
	recognizer foodRecognizer
	hub        *realtimeHub
	defaultLoc *time.Location
	now        func() time.Time
}

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

/* ─── Server setup ────────────────────────────────────────────────────── */

// getDBPool creates a connection pool. We use a pool (not a single conn) because
// Neon closes idle connections after ~5 minutes.
func getDBPool(ctx context.Context, dbURL string, log *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse DB URL: %w", err)
	}
	// Use simple query protocol to avoid "cached plan must not change result type"
	// errors from Neon's server-side prepared statement cache after schema changes.
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("DB pool ready")
	return pool, nil
}

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	// Public routes
	router.POST("/api/login", h.login)

	// Authenticated routes
	api := router.Group("/api", h.authMiddleware())
	api.GET("/profile", h.getProfile)
	api.PUT("/profile", h.saveProfile)
	api.POST("/meals", h.logMeal)
	api.POST("/meals/recognize", h.recognizeMeal)
	api.PUT("/meals/:id", h.updateMeal)
	api.DELETE("/meals/:id", h.deleteMeal)
	api.GET("/summary/daily", h.getDailySummary)
	api.GET("/summary/weekly", h.getWeeklySummary)
	api.GET("/foods", h.searchFoods)
	api.POST("/nutrition/estimate", h.estimateNutrition)
	api.GET("/ws", h.streamChanges)
}

// requestLocation picks the calendar for a request: ?tz= first, then the
// user's stored timezone, then the server default.
func (h *Handler) requestLocation(c *gin.Context) (*time.Location, error) {
	if tz := c.Query("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid tz %q", tz)
		}
		return loc, nil
	}
	return userLocation(c.GetString("timezone"), h.defaultLoc), nil
}
