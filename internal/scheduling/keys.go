package scheduling

import (
	"strings"

	"github.com/shrimpsizemoose/examtable/internal/models"
)

// MaxExamsPerDay is the number of non-deleted exams a capacity domain may
// hold on a single calendar date.
const MaxExamsPerDay = 2

// Domain identifies a capacity domain: exams sharing semester, department
// and (case-insensitive) exam type.
type Domain struct {
	Semester   int
	Department string
	ExamType   string
}

func DomainOf(e *models.Exam) Domain {
	return Domain{
		Semester:   e.Semester,
		Department: e.Department,
		ExamType:   strings.ToLower(e.ExamType),
	}
}

// DayKey is a capacity domain pinned to one date.
type DayKey struct {
	Date models.Date
	Domain
}

func DayKeyOf(e *models.Exam) DayKey {
	return DayKey{Date: e.ExamDate, Domain: DomainOf(e)}
}

// DayLoad counts the non-deleted exams of exams that fall into key.
func DayLoad(exams []models.Exam, key DayKey) int {
	n := 0
	for i := range exams {
		if exams[i].IsDeleted() {
			continue
		}
		if DayKeyOf(&exams[i]) == key {
			n++
		}
	}
	return n
}
