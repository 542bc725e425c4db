package main

import (
	"fmt"
	"math"
)

// adviceTolerance is the half-width of the "on track" band in kcal.
const adviceTolerance = 150

// advice turns a day's consumed calories and the profile target into a
// one-line suggestion. Deltas of exactly ±150 count as on track.
func advice(consumed float64, target int) string {
	delta := consumed - float64(target)
	switch {
	case delta < -adviceTolerance:
		return fmt.Sprintf("You're under by %d kcal, add a protein-rich snack.", int(math.Abs(delta)))
	case delta <= adviceTolerance:
		return "You're on track today."
	default:
		return fmt.Sprintf("You're over target by %d kcal, aim for a lighter next meal.", int(delta))
	}
}
