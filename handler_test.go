package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// fixedNow is the clock used by handler tests: 12:30 UTC on a Tuesday.
var fixedNow = time.Date(2024, 5, 14, 12, 30, 0, 0, time.UTC)

// newTestHandler wires a Handler over an in-memory store and the catalog
// nutrition provider.
func newTestHandler(m *memStore) *Handler {
	return &Handler{
		log:        zap.NewNop(),
		users:      m,
		meals:      m,
		profiles:   m,
		summaries:  newSummaryAggregator(m),
		nutrition:  newCatalogProvider(),
		recognizer: staticRecognizer{},
		hub:        newRealtimeHub(zap.NewNop()),
		defaultLoc: time.UTC,
		now:        func() time.Time { return fixedNow },
	}
}

// setupHandlerTest returns a router with every authenticated route mounted
// behind a stub that sets user_id=1. Auth itself is covered in auth_test.go.
func setupHandlerTest() (*gin.Engine, *memStore, *Handler) {
	gin.SetMode(gin.TestMode)
	m := newMemStore()
	h := newTestHandler(m)

	router := gin.New()
	api := router.Group("/api", func(c *gin.Context) {
		c.Set("user_id", 1)
		c.Next()
	})
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
	return router, m, h
}

// doRequest sends a request with an optional JSON body.
func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to parse response %q: %v", w.Body.String(), err)
	}
	return v
}

// mustHash bcrypt-hashes a password at minimum cost for tests.
func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}
