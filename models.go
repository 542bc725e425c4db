package main

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateOnly wraps time.Time to serialize as "YYYY-MM-DD" in JSON.
type DateOnly struct{ time.Time }

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format("2006-01-02") + `"`), nil
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"2006-01-02"`, string(b))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

/* ─── Enumerations ───────────────────────────────────────────────────── */

type sex string

const (
	sexMale   sex = "male"
	sexFemale sex = "female"
	sexOther  sex = "other"
)

type activityLevel string

const (
	activitySedentary activityLevel = "sedentary"
	activityLight     activityLevel = "light"
	activityModerate  activityLevel = "moderate"
	activityActive    activityLevel = "active"
)

type goal string

const (
	goalLose     goal = "lose"
	goalMaintain goal = "maintain"
	goalGain     goal = "gain"
)

// mealSlot is the time-of-day bucket a meal is filed under.
type mealSlot string

const (
	slotBreakfast mealSlot = "breakfast"
	slotLunch     mealSlot = "lunch"
	slotDinner    mealSlot = "dinner"
	slotSnack     mealSlot = "snack"
)

// mealSlots lists every slot in display order.
var mealSlots = []mealSlot{slotBreakfast, slotLunch, slotDinner, slotSnack}

// invalidSlotMessage is the client error for an unknown slot name.
var invalidSlotMessage = func() string {
	names := make([]string, len(mealSlots))
	for i, s := range mealSlots {
		names[i] = string(s)
	}
	return "slot must be one of: " + strings.Join(names, ", ")
}()

func (s mealSlot) valid() bool {
	switch s {
	case slotBreakfast, slotLunch, slotDinner, slotSnack:
		return true
	}
	return false
}

/* ─── Domain structs ─────────────────────────────────────────────────── */

// user maps to the users table. AuthToken and Password are hidden from JSON responses.
// Timezone is an IANA name used as the user's default calendar.
type user struct {
	ID        int        `json:"id" db:"id"`
	Username  string     `json:"username" db:"username"`
	Email     string     `json:"email" db:"email"`
	AuthToken string     `json:"-" db:"auth_token"`
	Password  string     `json:"-" db:"password"`
	Timezone  string     `json:"timezone" db:"timezone"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
}

// profile maps to the profiles table. CalorieTarget is always the energy
// model's output for the row's current body fields; it is written on save.
type profile struct {
	ID            int           `json:"id"             db:"id"`
	UserID        int           `json:"user_id"        db:"user_id"`
	Sex           sex           `json:"sex"            db:"sex"`
	Age           int           `json:"age"            db:"age"`
	HeightCM      float64       `json:"height_cm"      db:"height_cm"`
	WeightKG      float64       `json:"weight_kg"      db:"weight_kg"`
	ActivityLevel activityLevel `json:"activity_level" db:"activity_level"`
	Goal          goal          `json:"goal"           db:"goal"`
	CalorieTarget int           `json:"calorie_target" db:"calorie_target"`
	LastUpdated   time.Time     `json:"last_updated"   db:"last_updated"`

	// Computed on read, not stored.
	ComputedBMR *int `json:"computed_bmr,omitempty" db:"-"`
}

// mealEntry maps to meal_entries. Date is the moment of consumption; day
// membership is decided by the caller's calendar, not stored.
type mealEntry struct {
	ID           uuid.UUID  `json:"id"             db:"id"`
	UserID       int        `json:"user_id"        db:"user_id"`
	Date         time.Time  `json:"date"           db:"eaten_at"`
	Slot         mealSlot   `json:"slot"           db:"slot"`
	Label        string     `json:"label"          db:"label"`
	PortionGrams float64    `json:"portion_grams"  db:"portion_grams"`
	Calories     float64    `json:"calories"       db:"calories"`
	ProteinG     float64    `json:"protein_g"      db:"protein_g"`
	CarbsG       float64    `json:"carbs_g"        db:"carbs_g"`
	FatG         float64    `json:"fat_g"          db:"fat_g"`
	Thumbnail    []byte     `json:"thumbnail,omitempty" db:"thumbnail"`
	CreatedAt    *time.Time `json:"created_at"     db:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"     db:"updated_at"`
}

// summary is one calendar day of meals. Slots without entries are absent
// from MealsBySlot rather than present with an empty list.
type summary struct {
	Date          DateOnly                 `json:"date"`
	TotalCalories float64                  `json:"total_calories"`
	MealsBySlot   map[mealSlot][]mealEntry `json:"meals_by_slot"`
}

/* ─── Request / response shapes ──────────────────────────────────────── */

// dailySummaryResponse is the response shape for GET /api/summary/daily.
// Target and advice are only present once the user has saved a profile.
type dailySummaryResponse struct {
	summary
	CalorieTarget *int    `json:"calorie_target,omitempty"`
	Advice        *string `json:"advice,omitempty"`
}

// weeklySummaryResponse is the response shape for GET /api/summary/weekly.
type weeklySummaryResponse struct {
	Days            []summary `json:"days"`
	AverageCalories float64   `json:"average_calories"`
	CalorieTarget   *int      `json:"calorie_target,omitempty"`
}

// saveProfileRequest is the request body for PUT /api/profile. Every field
// is required; the target is never accepted from the client.
type saveProfileRequest struct {
	Sex           sex           `json:"sex"`
	Age           int           `json:"age"`
	HeightCM      float64       `json:"height_cm"`
	WeightKG      float64       `json:"weight_kg"`
	ActivityLevel activityLevel `json:"activity_level"`
	Goal          goal          `json:"goal"`
}

// logMealRequest is the request body for POST /api/meals. Date defaults to
// now, Slot to the resolver's choice, and nutrition to the provider's estimate
// when Calories is omitted.
type logMealRequest struct {
	Date         *time.Time `json:"date"`
	Slot         *mealSlot  `json:"slot"`
	Label        string     `json:"label"`
	PortionGrams float64    `json:"portion_grams"`
	Calories     *float64   `json:"calories"`
	ProteinG     *float64   `json:"protein_g"`
	CarbsG       *float64   `json:"carbs_g"`
	FatG         *float64   `json:"fat_g"`
	Thumbnail    []byte     `json:"thumbnail"`
}

// updateMealRequest is the request body for PUT /api/meals/:id. Only non-nil
// fields are applied.
type updateMealRequest struct {
	Date         *time.Time `json:"date"`
	Slot         *mealSlot  `json:"slot"`
	Label        *string    `json:"label"`
	PortionGrams *float64   `json:"portion_grams"`
	Calories     *float64   `json:"calories"`
	ProteinG     *float64   `json:"protein_g"`
	CarbsG       *float64   `json:"carbs_g"`
	FatG         *float64   `json:"fat_g"`
}

// estimateRequest is the request body for POST /api/nutrition/estimate.
type estimateRequest struct {
	Label        string  `json:"label"`
	PortionGrams float64 `json:"portion_grams"`
}
