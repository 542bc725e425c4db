package main

import "time"

// resolveSlot picks the meal slot for a moment by its hour in loc.
// 05-10 breakfast, 11-15 lunch, 16-21 dinner, anything else is a snack.
func resolveSlot(t time.Time, loc *time.Location) mealSlot {
	switch h := t.In(loc).Hour(); {
	case h >= 5 && h <= 10:
		return slotBreakfast
	case h >= 11 && h <= 15:
		return slotLunch
	case h >= 16 && h <= 21:
		return slotDinner
	default:
		return slotSnack
	}
}

// startOfDay returns midnight of t's calendar day in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
