package main

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// errQueryFailed wraps any meal-log failure surfaced by the aggregator.
var errQueryFailed = errors.New("query failed")

// summaryAggregator rolls the meal log up into per-day summaries. It holds
// no state between calls.
type summaryAggregator struct {
	meals mealRangeQuerier
}

func newSummaryAggregator(meals mealRangeQuerier) *summaryAggregator {
	return &summaryAggregator{meals: meals}
}

// fetchSummary returns the summary for the calendar day containing date in
// loc. It issues exactly one range query.
func (a *summaryAggregator) fetchSummary(ctx context.Context, userID int, date time.Time, loc *time.Location) (summary, error) {
	start := startOfDay(date, loc)
	end := start.AddDate(0, 0, 1)

	entries, err := a.meals.queryRange(ctx, userID, start, end)
	if err != nil {
		return summary{}, fmt.Errorf("%w: %s: %v", errQueryFailed, start.Format("2006-01-02"), err)
	}

	s := summary{Date: DateOnly{start}, MealsBySlot: make(map[mealSlot][]mealEntry)}
	for _, e := range entries {
		s.MealsBySlot[e.Slot] = append(s.MealsBySlot[e.Slot], e)
		s.TotalCalories += e.Calories
	}
	return s, nil
}

// fetchWeeklySummaries returns seven summaries ending with the day containing
// endingAt, oldest first. Days are fetched one query at a time; the first
// failure aborts and nothing partial is returned.
func (a *summaryAggregator) fetchWeeklySummaries(ctx context.Context, userID int, endingAt time.Time, loc *time.Location) ([]summary, error) {
	start := startOfDay(endingAt, loc).AddDate(0, 0, -6)
	summaries := make([]summary, 0, 7)
	for offset := 0; offset < 7; offset++ {
		s, err := a.fetchSummary(ctx, userID, start.AddDate(0, 0, offset), loc)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// averageCalories is the mean daily total across summaries, counting empty days.
func averageCalories(summaries []summary) float64 {
	if len(summaries) == 0 {
		return 0
	}
	var total float64
	for _, s := range summaries {
		total += s.TotalCalories
	}
	return total / float64(len(summaries))
}
