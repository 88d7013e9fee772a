package models

import "github.com/go-playground/validator/v10"

// Subject is a catalog entry keyed by its name.
type Subject struct {
	Name         string `db:"name" json:"name" validate:"required"`
	Semester     int    `db:"semester" json:"semester" validate:"gte=0"`
	LectureCount int    `db:"lecture_count" json:"lecture_count" validate:"gte=0"`
	SubjectCode  string `db:"subject_code" json:"subject_code"`
	SubjectType  string `db:"subject_type" json:"subject_type"`
	Department   string `db:"department" json:"department"`
}

func (s *Subject) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}
