package worker

import (
	"strings"
	"testing"

	"github.com/skillcore/skillcore-backend/internal/model"
)

func TestGradePostedAlertFiresAboveNotifyThreshold(t *testing.T) {
	student := &model.Student{ID: 7, FirstName: "Noah", LastName: "Reyes"}

	// A posted grade that slides the average from 95 to 92.5 stays well
	// above the default low-grade threshold of 70. The drop alert must
	// stay quiet while the grade-posted alert still goes out.
	prev := 95.0
	newAvg := 92.5
	if crossedBelow(&prev, newAvg, 70) {
		t.Fatal("average above the threshold must not trip the drop alert")
	}

	alert := gradePostedAlert(student, "Algebra I", &newAvg)
	if alert.StudentID != 7 {
		t.Errorf("expected alert for student 7, got %d", alert.StudentID)
	}
	if !strings.Contains(alert.Subject, "Noah Reyes") {
		t.Errorf("subject missing student name: %q", alert.Subject)
	}
	if !strings.Contains(alert.Body, "Algebra I") || !strings.Contains(alert.Body, "92.5") {
		t.Errorf("body missing course or average: %q", alert.Body)
	}
}

func TestGradePostedAlertWithoutAverage(t *testing.T) {
	student := &model.Student{ID: 3, FirstName: "Mia", LastName: "Chen"}

	alert := gradePostedAlert(student, "Biology", nil)
	if strings.Contains(alert.Body, "average") {
		t.Errorf("body should not quote an average when none exists: %q", alert.Body)
	}
}

func TestCrossedBelowOnlyOnDownwardCrossing(t *testing.T) {
	above, below, wayBelow := 72.0, 68.0, 65.0

	if !crossedBelow(&above, below, 70) {
		t.Error("72 -> 68 should cross the threshold")
	}
	if !crossedBelow(nil, below, 70) {
		t.Error("first average landing below should count as a crossing")
	}
	if crossedBelow(&below, wayBelow, 70) {
		t.Error("68 -> 65 is already below, no new crossing")
	}
	if crossedBelow(&wayBelow, above, 70) {
		t.Error("recovering above the threshold is not a crossing")
	}
}
