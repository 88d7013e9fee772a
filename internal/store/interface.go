package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/examtable/internal/models"
)

type ExamStore interface {
	Close() error
	Ping() error
	ApplyMigrations(dir string) error

	FindExams(filter ExamFilter) ([]models.Exam, error)
	FindExamsByStatus(status models.ExamStatus) ([]models.Exam, error)
	GetExam(id string) (*models.Exam, error)
	SaveExam(exam *models.Exam) error
	DeleteExam(id string) error
	CountExams() (int, error)
	ListDepartments() ([]string, error)

	ListSubjects() ([]models.Subject, error)
	GetSubject(name string) (*models.Subject, error)
	SaveSubject(subject *models.Subject) error
	DeleteSubject(name string) error
	AssignSubjectDepartment(department string) (int, error)
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
}

const examColumns = `
	id, semester, course_name, exam_date, start_time, end_time,
	hall_id, faculty_name, department, duration_minutes,
	test_coordinator, hod, exam_type, status`

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *BaseStore) Ping() error {
	return s.DB.Ping()
}

// ApplyMigrations applies SQL migrations from a directory in name order,
// translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".sql") {
			names = append(names, file.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}

	return nil
}

// FindExams returns exams matching filter ordered by semester, date and
// start time.
func (s *BaseStore) FindExams(filter ExamFilter) ([]models.Exam, error) {
	var (
		where []string
		args  []any
	)
	if filter.Semester != nil {
		where = append(where, "semester = ?")
		args = append(args, *filter.Semester)
	}
	if filter.Department != "" {
		where = append(where, "department = ?")
		args = append(args, filter.Department)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT" + examColumns + "\nFROM exams"
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY semester, exam_date, start_time"

	exams := []models.Exam{}
	if err := s.DB.Select(&exams, s.Converter(query), args...); err != nil {
		return nil, fmt.Errorf("failed to find exams: %w", err)
	}
	return exams, nil
}

func (s *BaseStore) FindExamsByStatus(status models.ExamStatus) ([]models.Exam, error) {
	return s.FindExams(ExamFilter{Status: status})
}

func (s *BaseStore) GetExam(id string) (*models.Exam, error) {
	var exam models.Exam
	query := s.Converter("SELECT" + examColumns + "\nFROM exams\nWHERE id = ?")

	err := s.DB.Get(&exam, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exam %s: %w", id, err)
	}
	return &exam, nil
}

// SaveExam inserts the exam when it has no id yet, assigning one, and
// overwrites the stored row otherwise.
func (s *BaseStore) SaveExam(exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = "exm_" + uuid.New().String()
	}
	_, err := s.DB.NamedExec(`
		INSERT INTO exams (`+examColumns+`)
		VALUES (
			:id, :semester, :course_name, :exam_date, :start_time, :end_time,
			:hall_id, :faculty_name, :department, :duration_minutes,
			:test_coordinator, :hod, :exam_type, :status
		)
		ON CONFLICT(id) DO UPDATE SET
		semester = :semester,
		course_name = :course_name,
		exam_date = :exam_date,
		start_time = :start_time,
		end_time = :end_time,
		hall_id = :hall_id,
		faculty_name = :faculty_name,
		department = :department,
		duration_minutes = :duration_minutes,
		test_coordinator = :test_coordinator,
		hod = :hod,
		exam_type = :exam_type,
		status = :status
	`, exam)
	if err != nil {
		return fmt.Errorf("failed to save exam %s: %w", exam.ID, err)
	}
	return nil
}

func (s *BaseStore) DeleteExam(id string) error {
	if _, err := s.DB.Exec(s.Converter("DELETE FROM exams WHERE id = ?"), id); err != nil {
		return fmt.Errorf("failed to delete exam %s: %w", id, err)
	}
	return nil
}

func (s *BaseStore) CountExams() (int, error) {
	var n int
	if err := s.DB.Get(&n, "SELECT COUNT(*) FROM exams"); err != nil {
		return 0, fmt.Errorf("failed to count exams: %w", err)
	}
	return n, nil
}

func (s *BaseStore) ListDepartments() ([]string, error) {
	departments := []string{}
	err := s.DB.Select(&departments, `
		SELECT DISTINCT department
		FROM exams
		WHERE department IS NOT NULL AND department <> ''
		ORDER BY department
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	return departments, nil
}

func (s *BaseStore) ListSubjects() ([]models.Subject, error) {
	subjects := []models.Subject{}
	err := s.DB.Select(&subjects, `
		SELECT name, semester, lecture_count, subject_code, subject_type, department
		FROM subjects
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}

func (s *BaseStore) GetSubject(name string) (*models.Subject, error) {
	var subject models.Subject
	query := s.Converter(`
		SELECT name, semester, lecture_count, subject_code, subject_type, department
		FROM subjects
		WHERE name = ?
	`)
	err := s.DB.Get(&subject, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject %s: %w", name, err)
	}
	return &subject, nil
}

func (s *BaseStore) SaveSubject(subject *models.Subject) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO subjects (name, semester, lecture_count, subject_code, subject_type, department)
		VALUES (:name, :semester, :lecture_count, :subject_code, :subject_type, :department)
		ON CONFLICT(name) DO UPDATE SET
		semester = :semester,
		lecture_count = :lecture_count,
		subject_code = :subject_code,
		subject_type = :subject_type,
		department = :department
	`, subject)
	if err != nil {
		return fmt.Errorf("failed to save subject %s: %w", subject.Name, err)
	}
	return nil
}

func (s *BaseStore) DeleteSubject(name string) error {
	if _, err := s.DB.Exec(s.Converter("DELETE FROM subjects WHERE name = ?"), name); err != nil {
		return fmt.Errorf("failed to delete subject %s: %w", name, err)
	}
	return nil
}

// AssignSubjectDepartment sets department on every subject that has none
// and returns how many were changed.
func (s *BaseStore) AssignSubjectDepartment(department string) (int, error) {
	res, err := s.DB.Exec(s.Converter(`
		UPDATE subjects SET department = ?
		WHERE department IS NULL OR department = ''
	`), department)
	if err != nil {
		return 0, fmt.Errorf("failed to assign department: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count assigned subjects: %w", err)
	}
	return int(n), nil
}
