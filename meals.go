package main

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxImageBytes caps uploads to the recognize endpoint.
const maxImageBytes = 10 << 20

// Upper bounds for one entry. Larger values are typos and can overflow
// when scaled.
const (
	maxPortionGrams  = 5000
	maxNutrientValue = 50000
)

func validPortion(grams float64) bool {
	return grams > 0 && grams <= maxPortionGrams
}

// inRange reports whether every value is finite and within
// [0, maxNutrientValue].
func (n nutritionEstimate) inRange() bool {
	for _, v := range []float64{n.Calories, n.ProteinG, n.CarbsG, n.FatG} {
		if math.IsNaN(v) || v < 0 || v > maxNutrientValue {
			return false
		}
	}
	return true
}

// rescalePortion changes e's portion and scales its nutrition by the same
// ratio, keeping the per-gram values the meal was logged with.
func rescalePortion(e *mealEntry, portionGrams float64) {
	if e.PortionGrams > 0 && portionGrams != e.PortionGrams {
		k := portionGrams / e.PortionGrams
		e.Calories *= k
		e.ProteinG *= k
		e.CarbsG *= k
		e.FatG *= k
	}
	e.PortionGrams = portionGrams
}

// nutrientsInRange checks the values a client sent; nil means not sent.
func nutrientsInRange(vals ...*float64) bool {
	for _, v := range vals {
		if v != nil && (math.IsNaN(*v) || *v < 0 || *v > maxNutrientValue) {
			return false
		}
	}
	return true
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// logMeal records a new meal entry.
// POST /api/meals. Date defaults to now, slot to the time-of-day resolver in
// the request's calendar, nutrition to the provider's estimate when calories
// are omitted.
func (h *Handler) logMeal(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body logMealRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Label = strings.TrimSpace(body.Label)
	if body.Label == "" {
		apiError(c, http.StatusBadRequest, "label is required")
		return
	}
	if !validPortion(body.PortionGrams) {
		apiError(c, http.StatusBadRequest, "portion_grams must be greater than 0 and at most 5000")
		return
	}
	if body.Slot != nil && !body.Slot.valid() {
		apiError(c, http.StatusBadRequest, invalidSlotMessage)
		return
	}
	if !nutrientsInRange(body.Calories, body.ProteinG, body.CarbsG, body.FatG) {
		apiError(c, http.StatusBadRequest, "nutrition values must be between 0 and 50000")
		return
	}
	loc, err := h.requestLocation(c)
	if err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}

	date := h.now()
	if body.Date != nil {
		date = *body.Date
	}
	slot := resolveSlot(date, loc)
	if body.Slot != nil {
		slot = *body.Slot
	}

	var nutrition nutritionEstimate
	if body.Calories == nil {
		nutrition, err = h.nutrition.estimate(c, body.Label, body.PortionGrams)
		if errors.Is(err, errUnrecognizedFood) {
			apiError(c, http.StatusUnprocessableEntity, "unrecognized food")
			return
		}
		if err != nil {
			h.log.Warn("nutrition estimate failed", zap.String("label", body.Label), zap.Error(err))
			apiError(c, http.StatusBadGateway, "nutrition lookup failed")
			return
		}
		if !nutrition.inRange() {
			h.log.Warn("nutrition estimate out of range", zap.String("label", body.Label), zap.Float64("calories", nutrition.Calories))
			apiError(c, http.StatusBadGateway, "nutrition lookup returned an invalid estimate")
			return
		}
	} else {
		nutrition = nutritionEstimate{
			Calories: *body.Calories,
			ProteinG: valueOr(body.ProteinG, 0),
			CarbsG:   valueOr(body.CarbsG, 0),
			FatG:     valueOr(body.FatG, 0),
		}
	}

	entry, err := h.meals.insert(c, &mealEntry{
		ID:           uuid.New(),
		UserID:       userID,
		Date:         date,
		Slot:         slot,
		Label:        body.Label,
		PortionGrams: body.PortionGrams,
		Calories:     nutrition.Calories,
		ProteinG:     nutrition.ProteinG,
		CarbsG:       nutrition.CarbsG,
		FatG:         nutrition.FatG,
		Thumbnail:    body.Thumbnail,
	})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to log meal")
		return
	}

	h.hub.publish(userID, changeEvent{Kind: "meal.logged", Data: entry})
	c.JSON(http.StatusCreated, entry)
}

// updateMeal edits a logged meal. A portion change rescales the stored
// nutrition proportionally; nutrition fields sent in the same request win.
// PUT /api/meals/:id.
func (h *Handler) updateMeal(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid id")
		return
	}

	var body updateMealRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Slot != nil && !body.Slot.valid() {
		apiError(c, http.StatusBadRequest, invalidSlotMessage)
		return
	}
	if body.PortionGrams != nil && !validPortion(*body.PortionGrams) {
		apiError(c, http.StatusBadRequest, "portion_grams must be greater than 0 and at most 5000")
		return
	}
	if body.Label != nil && strings.TrimSpace(*body.Label) == "" {
		apiError(c, http.StatusBadRequest, "label must not be empty")
		return
	}
	if !nutrientsInRange(body.Calories, body.ProteinG, body.CarbsG, body.FatG) {
		apiError(c, http.StatusBadRequest, "nutrition values must be between 0 and 50000")
		return
	}

	entry, err := h.meals.get(c, userID, id)
	if errors.Is(err, errNotFound) {
		apiError(c, http.StatusNotFound, "meal not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch meal")
		return
	}

	if body.Label != nil {
		entry.Label = strings.TrimSpace(*body.Label)
	}
	if body.Slot != nil {
		entry.Slot = *body.Slot
	}
	if body.Date != nil {
		entry.Date = *body.Date
	}
	if body.PortionGrams != nil {
		rescalePortion(&entry, *body.PortionGrams)
	}
	entry.Calories = valueOr(body.Calories, entry.Calories)
	entry.ProteinG = valueOr(body.ProteinG, entry.ProteinG)
	entry.CarbsG = valueOr(body.CarbsG, entry.CarbsG)
	entry.FatG = valueOr(body.FatG, entry.FatG)
	edited := nutritionEstimate{Calories: entry.Calories, ProteinG: entry.ProteinG, CarbsG: entry.CarbsG, FatG: entry.FatG}
	if !edited.inRange() {
		apiError(c, http.StatusBadRequest, "edit would put nutrition values out of range")
		return
	}

	updated, err := h.meals.update(c, &entry)
	if errors.Is(err, errNotFound) {
		apiError(c, http.StatusNotFound, "meal not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to update meal")
		return
	}

	h.hub.publish(userID, changeEvent{Kind: "meal.updated", Data: updated})
	c.JSON(http.StatusOK, updated)
}

// deleteMeal removes a meal entry. Returns 204 on success.
// DELETE /api/meals/:id.
func (h *Handler) deleteMeal(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid id")
		return
	}

	err = h.meals.delete(c, userID, id)
	if errors.Is(err, errNotFound) {
		apiError(c, http.StatusNotFound, "meal not found")
		return
	}
	if err != nil {
		h.log.Error("delete meal", zap.Stringer("meal_id", id), zap.Error(err))
		apiError(c, http.StatusInternalServerError, "failed to delete meal")
		return
	}

	h.hub.publish(userID, changeEvent{Kind: "meal.deleted", Data: gin.H{"id": id}})
	c.Status(http.StatusNoContent)
}

// recognizeMeal classifies an uploaded meal photo.
// POST /api/meals/recognize with multipart field "image".
func (h *Handler) recognizeMeal(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		apiError(c, http.StatusBadRequest, "image is required")
		return
	}
	if fh.Size > maxImageBytes {
		apiError(c, http.StatusRequestEntityTooLarge, "image too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		apiError(c, http.StatusBadRequest, "unreadable image")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	if err != nil {
		apiError(c, http.StatusBadRequest, "unreadable image")
		return
	}

	preds, err := h.recognizer.classify(c, data)
	if err != nil {
		h.log.Warn("classify failed", zap.Error(err))
		apiError(c, http.StatusBadGateway, "recognition failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": preds})
}

/* ─── Summaries ──────────────────────────────────────────────────────── */

// parseDay reads a YYYY-MM-DD query param in loc, defaulting to now.
func (h *Handler) parseDay(c *gin.Context, key string, loc *time.Location) (time.Time, bool) {
	s := c.Query(key)
	if s == "" {
		return h.now(), true
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid "+key+", expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

// currentTarget returns the caller's calorie target, or nil without a profile.
func (h *Handler) currentTarget(c *gin.Context, userID int) (*int, error) {
	p, err := h.profiles.current(c, userID)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p.CalorieTarget, nil
}

// getDailySummary returns one day's meals grouped by slot with the total and,
// once a profile exists, the target and advice.
// GET /api/summary/daily?date=YYYY-MM-DD&tz=Area/City.
func (h *Handler) getDailySummary(c *gin.Context) {
	userID := c.GetInt("user_id")
	loc, err := h.requestLocation(c)
	if err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	day, ok := h.parseDay(c, "date", loc)
	if !ok {
		return
	}

	s, err := h.summaries.fetchSummary(c, userID, day, loc)
	if err != nil {
		h.log.Error("daily summary", zap.Int("user_id", userID), zap.Error(err))
		apiError(c, http.StatusInternalServerError, "failed to fetch summary")
		return
	}

	target, err := h.currentTarget(c, userID)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch profile")
		return
	}

	resp := dailySummaryResponse{summary: s, CalorieTarget: target}
	if target != nil {
		msg := advice(s.TotalCalories, *target)
		resp.Advice = &msg
	}
	c.JSON(http.StatusOK, resp)
}

// getWeeklySummary returns the seven days ending on ?end= (default today),
// oldest first, with the average daily total.
// GET /api/summary/weekly?end=YYYY-MM-DD&tz=Area/City.
func (h *Handler) getWeeklySummary(c *gin.Context) {
	userID := c.GetInt("user_id")
	loc, err := h.requestLocation(c)
	if err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	end, ok := h.parseDay(c, "end", loc)
	if !ok {
		return
	}

	days, err := h.summaries.fetchWeeklySummaries(c, userID, end, loc)
	if err != nil {
		h.log.Error("weekly summary", zap.Int("user_id", userID), zap.Error(err))
		apiError(c, http.StatusInternalServerError, "failed to fetch week data")
		return
	}

	target, err := h.currentTarget(c, userID)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch profile")
		return
	}

	c.JSON(http.StatusOK, weeklySummaryResponse{
		Days:            days,
		AverageCalories: averageCalories(days),
		CalorieTarget:   target,
	})
}

/* ─── Nutrition lookup ───────────────────────────────────────────────── */

// searchFoods lists reference foods matching ?q=. An empty query lists all
// the provider offers.
// GET /api/foods?q=.
func (h *Handler) searchFoods(c *gin.Context) {
	foods, err := h.nutrition.search(c, strings.TrimSpace(c.Query("q")))
	if err != nil {
		apiError(c, http.StatusBadGateway, "nutrition lookup failed")
		return
	}
	c.JSON(http.StatusOK, foods)
}

// estimateNutrition returns nutrition for a label and portion without logging.
// POST /api/nutrition/estimate.
func (h *Handler) estimateNutrition(c *gin.Context) {
	var body estimateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Label) == "" {
		apiError(c, http.StatusBadRequest, "label is required")
		return
	}
	if !validPortion(body.PortionGrams) {
		apiError(c, http.StatusBadRequest, "portion_grams must be greater than 0 and at most 5000")
		return
	}

	est, err := h.nutrition.estimate(c, strings.TrimSpace(body.Label), body.PortionGrams)
	if errors.Is(err, errUnrecognizedFood) {
		c.JSON(http.StatusOK, gin.H{"error": "unrecognized"})
		return
	}
	if err != nil {
		apiError(c, http.StatusBadGateway, "nutrition lookup failed")
		return
	}
	if !est.inRange() {
		apiError(c, http.StatusBadGateway, "nutrition lookup returned an invalid estimate")
		return
	}
	c.JSON(http.StatusOK, est)
}
