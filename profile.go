package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Accepted input ranges for a saved profile. The energy model itself does
// not check these.
const (
	minAge, maxAge           = 14, 100
	minHeightCM, maxHeightCM = 120, 220
	minWeightKG, maxWeightKG = 40, 200
)

// validate reports the first problem with a profile request, or "" if none.
func (r *saveProfileRequest) validate() string {
	if _, ok := sexOffsets[r.Sex]; !ok {
		return "sex must be one of: male, female, other"
	}
	if _, ok := activityMultipliers[r.ActivityLevel]; !ok {
		return "activity_level must be one of: sedentary, light, moderate, active"
	}
	if _, ok := goalAdjustments[r.Goal]; !ok {
		return "goal must be one of: lose, maintain, gain"
	}
	if r.Age < minAge || r.Age > maxAge {
		return "age must be between 14 and 100"
	}
	if r.HeightCM < minHeightCM || r.HeightCM > maxHeightCM {
		return "height_cm must be between 120 and 220"
	}
	if r.WeightKG < minWeightKG || r.WeightKG > maxWeightKG {
		return "weight_kg must be between 40 and 200"
	}
	return ""
}

// applyProfile copies the request onto p and recomputes the calorie target.
// Every profile write goes through here so the target never goes stale.
func applyProfile(p *profile, r saveProfileRequest, now time.Time) {
	p.Sex = r.Sex
	p.Age = r.Age
	p.HeightCM = r.HeightCM
	p.WeightKG = r.WeightKG
	p.ActivityLevel = r.ActivityLevel
	p.Goal = r.Goal
	p.CalorieTarget = computeTDEE(p)
	p.LastUpdated = now
}

// getProfile returns the caller's current profile with computed BMR.
// GET /api/profile.
func (h *Handler) getProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	p, err := h.profiles.current(c, userID)
	if errors.Is(err, errNotFound) {
		apiError(c, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch profile")
		return
	}

	populateComputedBMR(&p)
	c.JSON(http.StatusOK, p)
}

// saveProfile creates or replaces the caller's profile. The calorie target is
// always recomputed from the submitted body fields.
// PUT /api/profile.
func (h *Handler) saveProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body saveProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := body.validate(); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}

	p, err := h.profiles.current(c, userID)
	if err != nil && !errors.Is(err, errNotFound) {
		apiError(c, http.StatusInternalServerError, "failed to fetch profile")
		return
	}
	p.UserID = userID
	applyProfile(&p, body, h.now())

	saved, err := h.profiles.save(c, &p)
	if err != nil {
		h.log.Error("save profile", zap.Int("user_id", userID), zap.Error(err))
		apiError(c, http.StatusInternalServerError, "failed to save profile")
		return
	}

	populateComputedBMR(&saved)
	h.hub.publish(userID, changeEvent{Kind: "profile.updated", Data: saved})
	c.JSON(http.StatusOK, saved)
}
