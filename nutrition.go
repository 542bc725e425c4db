package main

import (
	"context"
	"strings"
)

// nutritionEstimate is the nutrition for one concrete portion.
type nutritionEstimate struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// foodItem is a reference food with nutrition per 100 g.
type foodItem struct {
	Name            string  `json:"name"`
	CaloriesPer100g float64 `json:"calories_per_100g"`
	ProteinPer100g  float64 `json:"protein_per_100g"`
	CarbsPer100g    float64 `json:"carbs_per_100g"`
	FatPer100g      float64 `json:"fat_per_100g"`
}

// scaled applies the linear rule estimate = per100g × grams / 100.
func (f foodItem) scaled(portionGrams float64) nutritionEstimate {
	k := portionGrams / 100
	return nutritionEstimate{
		Calories: f.CaloriesPer100g * k,
		ProteinG: f.ProteinPer100g * k,
		CarbsG:   f.CarbsPer100g * k,
		FatG:     f.FatPer100g * k,
	}
}

// nutritionProvider looks up foods and estimates nutrition for a portion.
type nutritionProvider interface {
	search(ctx context.Context, query string) ([]foodItem, error)
	estimate(ctx context.Context, label string, portionGrams float64) (nutritionEstimate, error)
}

/* ─── Catalog provider ───────────────────────────────────────────────── */

// defaultCatalog is the built-in reference list served by catalogProvider.
var defaultCatalog = []foodItem{
	{Name: "Chicken Salad", CaloriesPer100g: 120, ProteinPer100g: 16, CarbsPer100g: 5, FatPer100g: 4},
	{Name: "Margherita Pizza", CaloriesPer100g: 240, ProteinPer100g: 10, CarbsPer100g: 30, FatPer100g: 8},
	{Name: "Protein Shake", CaloriesPer100g: 150, ProteinPer100g: 25, CarbsPer100g: 10, FatPer100g: 3},
	{Name: "Greek Yogurt", CaloriesPer100g: 90, ProteinPer100g: 9, CarbsPer100g: 4, FatPer100g: 3},
}

// genericFood is used for labels the catalog does not know: 1 kcal per gram.
var genericFood = foodItem{
	Name: "Generic", CaloriesPer100g: 100, ProteinPer100g: 10, CarbsPer100g: 12, FatPer100g: 3,
}

// catalogProvider serves a fixed in-process food list. It never fails.
type catalogProvider struct {
	items []foodItem
}

func newCatalogProvider() *catalogProvider {
	return &catalogProvider{items: defaultCatalog}
}

// search returns the whole catalog for an empty query, otherwise the items
// whose name contains the query case-insensitively.
func (p *catalogProvider) search(_ context.Context, query string) ([]foodItem, error) {
	if query == "" {
		return p.items, nil
	}
	q := strings.ToLower(query)
	results := []foodItem{}
	for _, it := range p.items {
		if strings.Contains(strings.ToLower(it.Name), q) {
			results = append(results, it)
		}
	}
	return results, nil
}

// estimate prefers an exact name match, then a substring match, then the
// generic per-gram fallback.
func (p *catalogProvider) estimate(_ context.Context, label string, portionGrams float64) (nutritionEstimate, error) {
	for _, it := range p.items {
		if strings.EqualFold(it.Name, label) {
			return it.scaled(portionGrams), nil
		}
	}
	l := strings.ToLower(label)
	for _, it := range p.items {
		if strings.Contains(strings.ToLower(it.Name), l) {
			return it.scaled(portionGrams), nil
		}
	}
	return genericFood.scaled(portionGrams), nil
}
