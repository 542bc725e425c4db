package main

import "math"

// activityMultipliers maps activity level to its TDEE multiplier. This is the
// single source of truth for valid activity levels; saveProfile validates
// against it.
var activityMultipliers = map[activityLevel]float64{
	activitySedentary: 1.2,
	activityLight:     1.375,
	activityModerate:  1.55,
	activityActive:    1.725,
}

// goalAdjustments maps a goal to the flat calorie offset applied after the
// activity multiplier.
var goalAdjustments = map[goal]float64{
	goalLose:     -300,
	goalMaintain: 0,
	goalGain:     300,
}

// sexOffsets holds the Mifflin-St Jeor constant per sex. "other" sits at the
// midpoint of the male and female constants.
var sexOffsets = map[sex]float64{
	sexMale:   5,
	sexFemale: -161,
	sexOther:  -78,
}

// computeBMR returns basal metabolic rate via Mifflin-St Jeor. Inputs are not
// range-checked; callers validate before saving a profile.
func computeBMR(p *profile) float64 {
	return 10*p.WeightKG + 6.25*p.HeightCM - 5*float64(p.Age) + sexOffsets[p.Sex]
}

// computeTDEE returns the daily calorie target: BMR scaled by activity level,
// shifted by the goal adjustment, rounded half away from zero.
func computeTDEE(p *profile) int {
	tdee := computeBMR(p)*activityMultipliers[p.ActivityLevel] + goalAdjustments[p.Goal]
	return int(math.Round(tdee))
}

// populateComputedBMR fills the computed-only fields on p.
func populateComputedBMR(p *profile) {
	bmr := int(math.Round(computeBMR(p)))
	p.ComputedBMR = &bmr
}
