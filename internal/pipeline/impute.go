// Package pipeline composes imputation, one-hot encoding and the random
// forest into one fitted, serializable unit.
package pipeline

import (
	"sort"

	"github.com/manohar-125/ThalAI-App/internal/model"
)

// fallbackCategory fills a categorical feature that had no observed value
// during training.
const fallbackCategory = "missing_value"

// MedianImputer fills missing numeric features with training medians.
type MedianImputer struct {
	Medians []float64
}

// FitMedianImputer computes one median per name over the observed values.
// A feature with no observations gets 0.
func FitMedianImputer(rows []model.FeatureRow, names []string) MedianImputer {
	medians := make([]float64, len(names))
	for j, name := range names {
		vals := make([]float64, 0, len(rows))
		for _, r := range rows {
			if v := r[name]; v.Kind == model.KindNumber {
				vals = append(vals, v.Num)
			}
		}
		medians[j] = median(vals)
	}
	return MedianImputer{Medians: medians}
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// ModeImputer fills missing categorical features with the most frequent
// training category.
type ModeImputer struct {
	Modes []string
}

// FitModeImputer picks the most frequent category per name. Ties go to the
// lexically smallest category.
func FitModeImputer(rows []model.FeatureRow, names []string) ModeImputer {
	modes := make([]string, len(names))
	for j, name := range names {
		counts := make(map[string]int)
		for _, r := range rows {
			if v := r[name]; v.Kind == model.KindCategory {
				counts[v.Str]++
			}
		}
		modes[j] = mode(counts)
	}
	return ModeImputer{Modes: modes}
}

func mode(counts map[string]int) string {
	if len(counts) == 0 {
		return fallbackCategory
	}
	best, bestN := "", -1
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}
