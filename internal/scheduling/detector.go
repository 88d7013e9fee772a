package scheduling

import (
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/examtable/internal/models"
)

const (
	retestMSE1 = "Retest MSE I"
	retestMSE2 = "Retest MSE II"
)

// Detect compares every unordered pair of exams and returns the policy
// violations in pair order (outer index, then inner index). DELETED exams
// take no part in detection.
func Detect(exams []models.Exam) []models.Conflict {
	live := make([]models.Exam, 0, len(exams))
	for _, e := range exams {
		if !e.IsDeleted() {
			live = append(live, e)
		}
	}

	conflicts := []models.Conflict{}
	reported := make(map[DayKey]bool)

	for i := 0; i < len(live); i++ {
		for j := i + 1; j < len(live); j++ {
			e1, e2 := &live[i], &live[j]

			if c, ok := studentConflict(e1, e2); ok {
				conflicts = append(conflicts, c)
			}

			if sameDay(e1, e2) && e1.SameType(e2) {
				key := DayKeyOf(e1)
				load := DayLoad(live, key)
				if load > MaxExamsPerDay && !reported[key] {
					reported[key] = true
					conflicts = append(conflicts, models.Conflict{
						Type: models.ConflictMaxLoad,
						Message: fmt.Sprintf("Sem %d %s  :  %d exams on %s (limit: %d)",
							e1.Semester, e1.Department, load,
							e1.ExamDate.Time().Format("02 Jan"), MaxExamsPerDay),
						ExamID1: e1.ID,
						ExamID2: e2.ID,
					})
				}
			}

			if c, ok := dailyLimitConflict(e1, e2); ok {
				conflicts = append(conflicts, c)
			}
		}
	}

	return conflicts
}

// studentConflict flags two different courses of the same type and
// semester whose sittings overlap. Sections of one course may overlap.
func studentConflict(e1, e2 *models.Exam) (models.Conflict, bool) {
	if !e1.Overlaps(e2) {
		return models.Conflict{}, false
	}
	if e1.Semester != e2.Semester || !e1.SameType(e2) || e1.SameCourse(e2) {
		return models.Conflict{}, false
	}
	return models.Conflict{
		Type:    models.ConflictStudent,
		Message: fmt.Sprintf("%s & %s are scheduled at the same time.", e1.CourseName, e2.CourseName),
		ExamID1: e1.ID,
		ExamID2: e2.ID,
	}, true
}

// dailyLimitConflict allows a single retest sitting per date. The course
// check only guards the MSE II branch.
func dailyLimitConflict(e1, e2 *models.Exam) (models.Conflict, bool) {
	if !sameDay(e1, e2) {
		return models.Conflict{}, false
	}
	t1 := strings.TrimSpace(e1.ExamType)
	t2 := strings.TrimSpace(e2.ExamType)

	bothMSE1 := strings.EqualFold(t1, retestMSE1) && strings.EqualFold(t2, retestMSE1)
	bothMSE2 := strings.EqualFold(t1, retestMSE2) && strings.EqualFold(t2, retestMSE2)
	if !bothMSE1 && !(bothMSE2 && !e1.SameCourse(e2)) {
		return models.Conflict{}, false
	}
	return models.Conflict{
		Type: models.ConflictDailyLimit,
		Message: fmt.Sprintf("Only one %s allowed per date. Conflicts: %s and %s",
			t1, e1.CourseName, e2.CourseName),
		ExamID1: e1.ID,
		ExamID2: e2.ID,
	}, true
}

// sameDay reports a shared semester, department and date.
func sameDay(e1, e2 *models.Exam) bool {
	return e1.Semester == e2.Semester &&
		e1.Department == e2.Department &&
		e1.ExamDate == e2.ExamDate
}
