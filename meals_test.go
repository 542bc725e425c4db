package main

import (
	"bytes"
	"context"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

/* ─── Logging ────────────────────────────────────────────────────────── */

// TestLogMeal_RoundTrip logs a 500 kcal lunch and reads it back through the
// daily summary.
func TestLogMeal_RoundTrip(t *testing.T) {
	router, _, _ := setupHandlerTest()

	w := doRequest(router, "POST", "/api/meals",
		`{"date":"2024-05-14T13:00:00Z","slot":"lunch","label":"Test","portion_grams":200,"calories":500,"protein_g":30,"carbs_g":40,"fat_g":20}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	logged := decode[mealEntry](t, w)
	if logged.ID == uuid.Nil {
		t.Error("logged meal has no id")
	}

	w = doRequest(router, "GET", "/api/summary/daily?date=2024-05-14", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	s := decode[dailySummaryResponse](t, w)
	if s.TotalCalories != 500 {
		t.Errorf("total_calories = %f, want 500", s.TotalCalories)
	}
	if got := len(s.MealsBySlot[slotLunch]); got != 1 {
		t.Errorf("lunch count = %d, want 1", got)
	}
	if s.CalorieTarget != nil || s.Advice != nil {
		t.Errorf("target/advice present without a profile: %v / %v", s.CalorieTarget, s.Advice)
	}
}

// TestLogMeal_DefaultsSlotAndNutrition verifies omitted slot resolves from
// the clock and omitted calories come from the nutrition provider.
func TestLogMeal_DefaultsSlotAndNutrition(t *testing.T) {
	router, _, _ := setupHandlerTest()

	w := doRequest(router, "POST", "/api/meals", `{"label":"Margherita Pizza","portion_grams":150}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	e := decode[mealEntry](t, w)
	if e.Slot != slotLunch {
		t.Errorf("slot = %s, want lunch (12:30)", e.Slot)
	}
	if !e.Date.Equal(fixedNow) {
		t.Errorf("date = %v, want %v", e.Date, fixedNow)
	}
	if e.Calories != 360 || e.ProteinG != 15 || e.CarbsG != 45 || e.FatG != 12 {
		t.Errorf("nutrition = %v/%v/%v/%v, want 360/15/45/12", e.Calories, e.ProteinG, e.CarbsG, e.FatG)
	}
}

// TestLogMeal_SlotUsesRequestTimezone verifies slot resolution honours ?tz=.
func TestLogMeal_SlotUsesRequestTimezone(t *testing.T) {
	router, _, _ := setupHandlerTest()
	// 12:30 UTC is 21:30 in Tokyo.
	w := doRequest(router, "POST", "/api/meals?tz=Asia/Tokyo", `{"label":"Ramen","portion_grams":400,"calories":550}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if e := decode[mealEntry](t, w); e.Slot != slotDinner {
		t.Errorf("slot = %s, want dinner", e.Slot)
	}
}

func TestLogMeal_Validation(t *testing.T) {
	router, _, _ := setupHandlerTest()
	cases := []struct {
		name string
		path string
		body string
	}{
		{"missing label", "/api/meals", `{"portion_grams":100,"calories":10}`},
		{"blank label", "/api/meals", `{"label":"  ","portion_grams":100,"calories":10}`},
		{"zero portion", "/api/meals", `{"label":"Egg","portion_grams":0,"calories":10}`},
		{"negative calories", "/api/meals", `{"label":"Egg","portion_grams":50,"calories":-1}`},
		{"bad slot", "/api/meals", `{"label":"Egg","portion_grams":50,"slot":"brunch"}`},
		{"bad tz", "/api/meals?tz=Nowhere/Special", `{"label":"Egg","portion_grams":50}`},
		{"malformed", "/api/meals", `{"label":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, "POST", tc.path, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

// fixedProvider returns the same estimate for every label.
type fixedProvider struct{ est nutritionEstimate }

func (p fixedProvider) search(context.Context, string) ([]foodItem, error) {
	return []foodItem{}, nil
}

func (p fixedProvider) estimate(context.Context, string, float64) (nutritionEstimate, error) {
	return p.est, nil
}

// TestLogMeal_RejectsOutOfRangeNutrition verifies oversized portions and
// non-finite estimates never reach the store, so summaries stay encodable.
func TestLogMeal_RejectsOutOfRangeNutrition(t *testing.T) {
	router, m, h := setupHandlerTest()

	cases := []struct {
		name string
		body string
	}{
		{"huge portion", `{"label":"Margherita Pizza","portion_grams":1e308}`},
		{"portion over cap", `{"label":"Margherita Pizza","portion_grams":5001}`},
		{"huge calories", `{"label":"Egg","portion_grams":50,"calories":1e308}`},
		{"huge macro", `{"label":"Egg","portion_grams":50,"calories":70,"fat_g":60000}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, "POST", "/api/meals", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	h.nutrition = fixedProvider{est: nutritionEstimate{Calories: math.Inf(1)}}
	w := doRequest(router, "POST", "/api/meals", `{"label":"Mystery","portion_grams":100}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("infinite estimate: expected 502, got %d: %s", w.Code, w.Body.String())
	}
	if len(m.meals) != 0 {
		t.Fatalf("store holds %d meals, want 0", len(m.meals))
	}

	w = doRequest(router, "GET", "/api/summary/daily?date=2024-05-14", "")
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Errorf("daily summary = %d %q, want 200 with a body", w.Code, w.Body.String())
	}
}

func TestEstimateNutrition_RejectsOutOfRange(t *testing.T) {
	router, _, h := setupHandlerTest()
	w := doRequest(router, "POST", "/api/nutrition/estimate", `{"label":"Chicken Salad","portion_grams":1e308}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("huge portion: expected 400, got %d", w.Code)
	}

	h.nutrition = fixedProvider{est: nutritionEstimate{Calories: 100, FatG: math.NaN()}}
	w = doRequest(router, "POST", "/api/nutrition/estimate", `{"label":"Chicken Salad","portion_grams":100}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("NaN estimate: expected 502, got %d", w.Code)
	}
}

/* ─── Editing and deleting ───────────────────────────────────────────── */

func TestRescalePortion(t *testing.T) {
	e := mealEntry{PortionGrams: 200, Calories: 480, ProteinG: 20, CarbsG: 60, FatG: 16}
	rescalePortion(&e, 100)
	if e.PortionGrams != 100 || e.Calories != 240 || e.ProteinG != 10 || e.CarbsG != 30 || e.FatG != 8 {
		t.Errorf("rescaled = %+v", e)
	}
}

// TestUpdateMeal_PortionRecomputesNutrition verifies a portion edit scales
// nutrition, and that explicit nutrition in the same edit wins.
func TestUpdateMeal_PortionRecomputesNutrition(t *testing.T) {
	router, m, _ := setupHandlerTest()
	e, _ := m.insert(context.Background(), &mealEntry{
		ID: uuid.New(), UserID: 1, Date: fixedNow, Slot: slotLunch, Label: "Pizza",
		PortionGrams: 200, Calories: 480, ProteinG: 20, CarbsG: 60, FatG: 16,
	})

	w := doRequest(router, "PUT", "/api/meals/"+e.ID.String(), `{"portion_grams":300,"label":"Big Pizza","slot":"dinner"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode[mealEntry](t, w)
	if got.Calories != 720 || got.ProteinG != 30 || got.PortionGrams != 300 {
		t.Errorf("after edit = %+v, want 720 kcal / 30 g protein / 300 g", got)
	}
	if got.Label != "Big Pizza" || got.Slot != slotDinner {
		t.Errorf("label/slot = %q/%s", got.Label, got.Slot)
	}

	w = doRequest(router, "PUT", "/api/meals/"+e.ID.String(), `{"portion_grams":150,"calories":400}`)
	got = decode[mealEntry](t, w)
	if got.Calories != 400 || got.ProteinG != 15 {
		t.Errorf("explicit override = %v kcal / %v protein, want 400 / 15", got.Calories, got.ProteinG)
	}
}

func TestUpdateMeal_Errors(t *testing.T) {
	router, m, _ := setupHandlerTest()
	other, _ := m.insert(context.Background(), &mealEntry{ID: uuid.New(), UserID: 2, PortionGrams: 100})
	tiny, _ := m.insert(context.Background(), &mealEntry{ID: uuid.New(), UserID: 1, PortionGrams: 0.001, Calories: 40000})

	cases := []struct {
		name   string
		id     string
		body   string
		status int
	}{
		{"bad id", "not-a-uuid", `{}`, http.StatusBadRequest},
		{"unknown id", uuid.NewString(), `{"label":"x"}`, http.StatusNotFound},
		{"other user's meal", other.ID.String(), `{"label":"x"}`, http.StatusNotFound},
		{"zero portion", uuid.NewString(), `{"portion_grams":0}`, http.StatusBadRequest},
		{"bad slot", uuid.NewString(), `{"slot":"elevenses"}`, http.StatusBadRequest},
		{"empty label", uuid.NewString(), `{"label":""}`, http.StatusBadRequest},
		{"portion over cap", uuid.NewString(), `{"portion_grams":1e308}`, http.StatusBadRequest},
		{"huge calories", uuid.NewString(), `{"calories":1e308}`, http.StatusBadRequest},
		{"rescale overflows cap", tiny.ID.String(), `{"portion_grams":5000}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, "PUT", "/api/meals/"+tc.id, tc.body)
			if w.Code != tc.status {
				t.Errorf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestDeleteMeal(t *testing.T) {
	router, m, _ := setupHandlerTest()
	e, _ := m.insert(context.Background(), &mealEntry{ID: uuid.New(), UserID: 1, Date: fixedNow, Slot: slotLunch, Calories: 300})

	w := doRequest(router, "DELETE", "/api/meals/"+e.ID.String(), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	w = doRequest(router, "DELETE", "/api/meals/"+e.ID.String(), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", w.Code)
	}

	w = doRequest(router, "GET", "/api/summary/daily?date=2024-05-14", "")
	if s := decode[dailySummaryResponse](t, w); s.TotalCalories != 0 || len(s.MealsBySlot) != 0 {
		t.Errorf("summary after delete = %+v, want empty", s.summary)
	}
}

/* ─── Summaries ──────────────────────────────────────────────────────── */

func TestDailySummary_WithProfileIncludesAdvice(t *testing.T) {
	router, m, _ := setupHandlerTest()
	m.profiles = []profile{{ID: 1, UserID: 1, CalorieTarget: 1800, LastUpdated: fixedNow}}
	seedMeal(t, m, fixedNow.Add(-4*time.Hour), slotBreakfast, 700)
	seedMeal(t, m, fixedNow, slotLunch, 500)

	w := doRequest(router, "GET", "/api/summary/daily", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	s := decode[dailySummaryResponse](t, w)
	if s.CalorieTarget == nil || *s.CalorieTarget != 1800 {
		t.Fatalf("calorie_target = %v, want 1800", s.CalorieTarget)
	}
	if s.Advice == nil || !bytes.Contains([]byte(*s.Advice), []byte("under by 600 kcal")) {
		t.Errorf("advice = %v, want under by 600", s.Advice)
	}
	if s.Date.Format("2006-01-02") != "2024-05-14" {
		t.Errorf("date = %s", s.Date.Format("2006-01-02"))
	}
}

func TestDailySummary_InvalidDate(t *testing.T) {
	router, _, _ := setupHandlerTest()
	w := doRequest(router, "GET", "/api/summary/daily?date=14-05-2024", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestDailySummary_StoreFailure(t *testing.T) {
	router, m, h := setupHandlerTest()
	h.summaries = newSummaryAggregator(&failingQuerier{inner: m})
	w := doRequest(router, "GET", "/api/summary/daily", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestWeeklySummary(t *testing.T) {
	router, m, _ := setupHandlerTest()
	m.profiles = []profile{{ID: 1, UserID: 1, CalorieTarget: 2000, LastUpdated: fixedNow}}
	seedMeal(t, m, time.Date(2024, 5, 8, 8, 0, 0, 0, time.UTC), slotBreakfast, 350)
	seedMeal(t, m, time.Date(2024, 5, 14, 19, 0, 0, 0, time.UTC), slotDinner, 700)
	seedMeal(t, m, time.Date(2024, 5, 7, 19, 0, 0, 0, time.UTC), slotDinner, 9999) // day before window

	w := doRequest(router, "GET", "/api/summary/weekly?end=2024-05-14", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[weeklySummaryResponse](t, w)
	if len(resp.Days) != 7 {
		t.Fatalf("got %d days, want 7", len(resp.Days))
	}
	wantDates := []string{"2024-05-08", "2024-05-09", "2024-05-10", "2024-05-11", "2024-05-12", "2024-05-13", "2024-05-14"}
	for i, d := range resp.Days {
		if got := d.Date.Format("2006-01-02"); got != wantDates[i] {
			t.Errorf("day %d = %s, want %s", i, got, wantDates[i])
		}
	}
	if resp.Days[0].TotalCalories != 350 || resp.Days[6].TotalCalories != 700 {
		t.Errorf("first/last totals = %v/%v, want 350/700", resp.Days[0].TotalCalories, resp.Days[6].TotalCalories)
	}
	if resp.AverageCalories != 150 {
		t.Errorf("average_calories = %f, want 150", resp.AverageCalories)
	}
	if resp.CalorieTarget == nil || *resp.CalorieTarget != 2000 {
		t.Errorf("calorie_target = %v, want 2000", resp.CalorieTarget)
	}
}

func TestWeeklySummary_StoreFailure(t *testing.T) {
	router, m, h := setupHandlerTest()
	h.summaries = newSummaryAggregator(&failingQuerier{inner: m, okCalls: 5})
	w := doRequest(router, "GET", "/api/summary/weekly", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

/* ─── Nutrition and recognition ──────────────────────────────────────── */

func TestSearchFoods(t *testing.T) {
	router, _, _ := setupHandlerTest()
	w := doRequest(router, "GET", "/api/foods?q=shake", "")
	foods := decode[[]foodItem](t, w)
	if len(foods) != 1 || foods[0].Name != "Protein Shake" {
		t.Errorf("foods = %+v", foods)
	}
}

func TestEstimateNutrition(t *testing.T) {
	router, _, _ := setupHandlerTest()
	w := doRequest(router, "POST", "/api/nutrition/estimate", `{"label":"Chicken Salad","portion_grams":250}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	est := decode[nutritionEstimate](t, w)
	if est.Calories != 300 || est.ProteinG != 40 {
		t.Errorf("estimate = %+v, want 300 kcal / 40 g protein", est)
	}

	w = doRequest(router, "POST", "/api/nutrition/estimate", `{"label":"Chicken Salad","portion_grams":0}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero portion: expected 400, got %d", w.Code)
	}
}

func TestRecognizeMeal(t *testing.T) {
	router, _, _ := setupHandlerTest()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("image", "lunch.jpg")
	fw.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	mw.Close()

	req := httptest.NewRequest("POST", "/api/meals/recognize", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Predictions []foodPrediction `json:"predictions"`
	}](t, w)
	if len(resp.Predictions) != 3 || resp.Predictions[0].Label != "Chicken Salad" {
		t.Errorf("predictions = %+v", resp.Predictions)
	}

	w = doRequest(router, "POST", "/api/meals/recognize", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing image: expected 400, got %d", w.Code)
	}
}
