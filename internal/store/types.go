package store

import "github.com/shrimpsizemoose/examtable/internal/models"

type DatabaseType string

const (
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
)

type DBConfig struct {
	DSN  string
	Type DatabaseType
}

// ExamFilter narrows an exam query. Zero values match everything.
type ExamFilter struct {
	Semester   *int
	Department string
	Status     models.ExamStatus
}
