package service

import (
	"testing"

	"github.com/skillcore/skillcore-backend/internal/repository"
)

func fptr(v float64) *float64 { return &v }

func TestCourseAverageSingleCategory(t *testing.T) {
	rows := []repository.RecalcRow{
		{StudentID: 1, CategoryID: 10, Weight: 1.0, MaxPoints: 100, Score: fptr(80)},
		{StudentID: 1, CategoryID: 10, Weight: 1.0, MaxPoints: 50, Score: fptr(45)},
	}

	avg := CourseAverage(rows)
	if avg == nil {
		t.Fatal("expected an average, got nil")
	}
	// 125 earned out of 150 possible.
	if *avg != 83.33 {
		t.Errorf("average = %v, want 83.33", *avg)
	}
}

func TestCourseAverageWeightedCategories(t *testing.T) {
	rows := []repository.RecalcRow{
		// Homework, 40% weight: 90/100.
		{StudentID: 1, CategoryID: 1, Weight: 0.4, MaxPoints: 100, Score: fptr(90)},
		// Exams, 60% weight: 70/100.
		{StudentID: 1, CategoryID: 2, Weight: 0.6, MaxPoints: 100, Score: fptr(70)},
	}

	avg := CourseAverage(rows)
	if avg == nil {
		t.Fatal("expected an average, got nil")
	}
	// 0.4*0.9 + 0.6*0.7 = 0.78
	if *avg != 78 {
		t.Errorf("average = %v, want 78", *avg)
	}
}

func TestCourseAverageRenormalizesEmptyCategories(t *testing.T) {
	// Exams carry 60% of the grade but have no scores yet. The homework
	// category must count as 100% of the average rather than 40%.
	rows := []repository.RecalcRow{
		{StudentID: 1, CategoryID: 1, Weight: 0.4, MaxPoints: 100, Score: fptr(85)},
		{StudentID: 1, CategoryID: 2, Weight: 0.6, MaxPoints: 100, Score: nil},
	}

	avg := CourseAverage(rows)
	if avg == nil {
		t.Fatal("expected an average, got nil")
	}
	if *avg != 85 {
		t.Errorf("average = %v, want 85", *avg)
	}
}

func TestCourseAverageSkipsExcusedAndZeroPoint(t *testing.T) {
	rows := []repository.RecalcRow{
		{StudentID: 1, CategoryID: 1, Weight: 1.0, MaxPoints: 100, Score: fptr(50), Excused: true},
		{StudentID: 1, CategoryID: 1, Weight: 1.0, MaxPoints: 0, Score: fptr(10)},
		{StudentID: 1, CategoryID: 1, Weight: 1.0, MaxPoints: 100, Score: fptr(92)},
	}

	avg := CourseAverage(rows)
	if avg == nil {
		t.Fatal("expected an average, got nil")
	}
	if *avg != 92 {
		t.Errorf("average = %v, want 92", *avg)
	}
}

func TestCourseAverageNilWhenNothingContributes(t *testing.T) {
	if avg := CourseAverage(nil); avg != nil {
		t.Errorf("empty rows: average = %v, want nil", *avg)
	}

	rows := []repository.RecalcRow{
		{StudentID: 1, CategoryID: 1, Weight: 1.0, MaxPoints: 100, Score: nil},
		{StudentID: 1, CategoryID: 1, Weight: 1.0, MaxPoints: 100, Score: fptr(70), Excused: true},
	}
	if avg := CourseAverage(rows); avg != nil {
		t.Errorf("no contributing rows: average = %v, want nil", *avg)
	}
}

func TestCourseAverageAllowsExtraCredit(t *testing.T) {
	rows := []repository.RecalcRow{
		{StudentID: 1, CategoryID: 1, Weight: 1.0, MaxPoints: 100, Score: fptr(105)},
	}

	avg := CourseAverage(rows)
	if avg == nil {
		t.Fatal("expected an average, got nil")
	}
	if *avg != 105 {
		t.Errorf("average = %v, want 105", *avg)
	}
}

func TestLetterGradeCutoffs(t *testing.T) {
	cases := []struct {
		average float64
		want    string
	}{
		{95, "A"},
		{90, "A"},
		{89.99, "B"},
		{80, "B"},
		{75, "C"},
		{65, "D"},
		{59.99, "F"},
		{0, "F"},
	}
	for _, tc := range cases {
		if got := DefaultCutoffs.Letter(tc.average); got != tc.want {
			t.Errorf("Letter(%v) = %q, want %q", tc.average, got, tc.want)
		}
	}
}

func TestCutoffsFromSettings(t *testing.T) {
	settings := map[string]string{
		"grade_cutoff_a": "93",
		"grade_cutoff_b": "85",
		"grade_cutoff_c": "not-a-number",
	}

	cutoffs := CutoffsFromSettings(settings)
	if cutoffs.A != 93 || cutoffs.B != 85 {
		t.Errorf("configured cutoffs not applied: %+v", cutoffs)
	}
	if cutoffs.C != DefaultCutoffs.C || cutoffs.D != DefaultCutoffs.D {
		t.Errorf("missing keys should fall back to defaults: %+v", cutoffs)
	}
}

func TestAveragesEqual(t *testing.T) {
	if !AveragesEqual(nil, nil) {
		t.Error("nil vs nil should be equal")
	}
	if AveragesEqual(fptr(80), nil) || AveragesEqual(nil, fptr(80)) {
		t.Error("nil vs value should not be equal")
	}
	if !AveragesEqual(fptr(80), fptr(80)) {
		t.Error("equal values should be equal")
	}
	if AveragesEqual(fptr(80), fptr(80.01)) {
		t.Error("different values should not be equal")
	}
}
