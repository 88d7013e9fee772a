package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ExamStatus string

const (
	StatusDraft     ExamStatus = "DRAFT"
	StatusPublished ExamStatus = "PUBLISHED"
	StatusDeleted   ExamStatus = "DELETED"
)

func ParseExamStatus(s string) (ExamStatus, error) {
	switch status := ExamStatus(strings.ToUpper(strings.TrimSpace(s))); status {
	case StatusDraft, StatusPublished, StatusDeleted:
		return status, nil
	default:
		return "", fmt.Errorf("unknown exam status %q", s)
	}
}

type Exam struct {
	ID              string     `db:"id" json:"id"`
	Semester        int        `db:"semester" json:"semester" validate:"required,gt=0"`
	CourseName      string     `db:"course_name" json:"course_name" validate:"required"`
	ExamDate        Date       `db:"exam_date" json:"exam_date"`
	StartTime       Clock      `db:"start_time" json:"start_time"`
	EndTime         Clock      `db:"end_time" json:"end_time"`
	HallID          string     `db:"hall_id" json:"hall_id"`
	FacultyName     string     `db:"faculty_name" json:"faculty_name"`
	Department      string     `db:"department" json:"department" validate:"required"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes" validate:"gte=0"`
	TestCoordinator string     `db:"test_coordinator" json:"test_coordinator"`
	HOD             string     `db:"hod" json:"hod"`
	ExamType        string     `db:"exam_type" json:"exam_type" validate:"required"`
	Status          ExamStatus `db:"status" json:"status"`
}

func (e *Exam) Validate() error {
	validate := validator.New()
	if err := validate.Struct(e); err != nil {
		return err
	}
	if e.ExamDate.IsZero() {
		return fmt.Errorf("exam_date is required")
	}
	if e.StartTime >= e.EndTime {
		return fmt.Errorf("start_time %s must be before end_time %s", e.StartTime, e.EndTime)
	}
	return nil
}

// Overlaps reports whether both exams share a date and their half-open
// [start, end) intervals intersect. Touching endpoints do not overlap.
func (e *Exam) Overlaps(other *Exam) bool {
	if e.ExamDate != other.ExamDate {
		return false
	}
	return e.StartTime < other.EndTime && other.StartTime < e.EndTime
}

func (e *Exam) SameType(other *Exam) bool {
	return strings.EqualFold(e.ExamType, other.ExamType)
}

func (e *Exam) SameCourse(other *Exam) bool {
	return strings.EqualFold(e.CourseName, other.CourseName)
}

func (e *Exam) IsDeleted() bool {
	return e.Status == StatusDeleted
}

// ExamPatch is a partial update: nil fields are left untouched.
type ExamPatch struct {
	Semester        *int    `json:"semester,omitempty"`
	CourseName      *string `json:"course_name,omitempty"`
	ExamDate        *Date   `json:"exam_date,omitempty"`
	StartTime       *Clock  `json:"start_time,omitempty"`
	EndTime         *Clock  `json:"end_time,omitempty"`
	HallID          *string `json:"hall_id,omitempty"`
	FacultyName     *string `json:"faculty_name,omitempty"`
	Department      *string `json:"department,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	TestCoordinator *string `json:"test_coordinator,omitempty"`
	HOD             *string `json:"hod,omitempty"`
	ExamType        *string `json:"exam_type,omitempty"`
}

func (p *ExamPatch) ApplyTo(e *Exam) {
	if p.Semester != nil {
		e.Semester = *p.Semester
	}
	if p.CourseName != nil {
		e.CourseName = *p.CourseName
	}
	if p.ExamDate != nil {
		e.ExamDate = *p.ExamDate
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	if p.HallID != nil {
		e.HallID = *p.HallID
	}
	if p.FacultyName != nil {
		e.FacultyName = *p.FacultyName
	}
	if p.Department != nil {
		e.Department = *p.Department
	}
	if p.DurationMinutes != nil {
		e.DurationMinutes = *p.DurationMinutes
	}
	if p.TestCoordinator != nil {
		e.TestCoordinator = *p.TestCoordinator
	}
	if p.HOD != nil {
		e.HOD = *p.HOD
	}
	if p.ExamType != nil {
		e.ExamType = *p.ExamType
	}
}
