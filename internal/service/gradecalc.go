package service

import (
	"math"
	"strconv"

	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// GradeCutoffs holds the minimum percentage for each letter grade.
// Anything below D is an F.
type GradeCutoffs struct {
	A float64
	B float64
	C float64
	D float64
}

// DefaultCutoffs is used when a district has not configured its own scale.
var DefaultCutoffs = GradeCutoffs{A: 90, B: 80, C: 70, D: 60}

// CutoffsFromSettings reads the grading scale out of a district's settings map,
// falling back to the defaults for any missing or malformed key.
func CutoffsFromSettings(settings map[string]string) GradeCutoffs {
	cutoffs := DefaultCutoffs
	if v, err := strconv.ParseFloat(settings[model.SettingGradeCutoffA], 64); err == nil {
		cutoffs.A = v
	}
	if v, err := strconv.ParseFloat(settings[model.SettingGradeCutoffB], 64); err == nil {
		cutoffs.B = v
	}
	if v, err := strconv.ParseFloat(settings[model.SettingGradeCutoffC], 64); err == nil {
		cutoffs.C = v
	}
	if v, err := strconv.ParseFloat(settings[model.SettingGradeCutoffD], 64); err == nil {
		cutoffs.D = v
	}
	return cutoffs
}

// Letter maps a percentage average onto the scale.
func (gc GradeCutoffs) Letter(average float64) string {
	switch {
	case average >= gc.A:
		return "A"
	case average >= gc.B:
		return "B"
	case average >= gc.C:
		return "C"
	case average >= gc.D:
		return "D"
	default:
		return "F"
	}
}

// CourseAverage computes a student's weighted course average in percent
// from the raw gradebook rows of one section.
//
// A row contributes only when it has a recorded score, is not excused, and
// its assignment is worth at least one point. Each category averages to
// earned/possible, and the course average weights those category averages.
// Weights are renormalized over the categories that actually have
// contributing rows, so an empty category never drags the average down.
//
// Returns nil when no row contributes.
func CourseAverage(rows []repository.RecalcRow) *float64 {
	type bucket struct {
		weight   float64
		earned   float64
		possible float64
	}
	buckets := make(map[int]*bucket)

	for _, row := range rows {
		if row.Score == nil || row.Excused || row.MaxPoints <= 0 {
			continue
		}
		b, ok := buckets[row.CategoryID]
		if !ok {
			b = &bucket{weight: row.Weight}
			buckets[row.CategoryID] = b
		}
		b.earned += *row.Score
		b.possible += row.MaxPoints
	}

	var weightedSum, weightTotal float64
	for _, b := range buckets {
		if b.possible <= 0 || b.weight <= 0 {
			continue
		}
		weightedSum += b.weight * (b.earned / b.possible)
		weightTotal += b.weight
	}
	if weightTotal <= 0 {
		return nil
	}

	avg := roundAverage(weightedSum / weightTotal * 100)
	return &avg
}

// roundAverage keeps stored averages to two decimal places so repeated
// recalculations of unchanged data stay byte-stable.
func roundAverage(v float64) float64 {
	return math.Round(v*100) / 100
}

// AveragesEqual compares two optional averages, treating nil as "no grades".
func AveragesEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
