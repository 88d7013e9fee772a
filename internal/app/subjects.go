package app

import (
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/examtable/internal/models"
)

func (s *Service) ListSubjects() ([]models.Subject, error) {
	return s.Store.ListSubjects()
}

// SubjectCodes returns the name of every catalog subject.
func (s *Service) SubjectCodes() ([]string, error) {
	subjects, err := s.Store.ListSubjects()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		names = append(names, subject.Name)
	}
	return names, nil
}

// FilterSubjects matches department case-insensitively; empty department
// or zero semester match everything.
func (s *Service) FilterSubjects(department string, semester int) ([]models.Subject, error) {
	subjects, err := s.Store.ListSubjects()
	if err != nil {
		return nil, err
	}
	filtered := []models.Subject{}
	for _, subject := range subjects {
		if department != "" && !strings.EqualFold(subject.Department, department) {
			continue
		}
		if semester > 0 && subject.Semester != semester {
			continue
		}
		filtered = append(filtered, subject)
	}
	return filtered, nil
}

func (s *Service) GetSubject(name string) (*models.Subject, error) {
	subject, err := s.Store.GetSubject(name)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, fmt.Errorf("subject %s: %w", name, ErrNotFound)
	}
	return subject, nil
}

func (s *Service) SaveSubject(subject *models.Subject) error {
	if err := subject.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.Store.SaveSubject(subject); err != nil {
		return err
	}
	logger.Debug.Printf("Saved subject %s", subject.Name)
	return nil
}

func (s *Service) DeleteSubject(name string) error {
	if _, err := s.GetSubject(name); err != nil {
		return err
	}
	if err := s.Store.DeleteSubject(name); err != nil {
		return err
	}
	logger.Info.Printf("Deleted subject %s", name)
	return nil
}

// AssignSubjectDepartment gives department to every subject lacking one.
func (s *Service) AssignSubjectDepartment(department string) (int, error) {
	if strings.TrimSpace(department) == "" {
		return 0, fmt.Errorf("%w: department is required", ErrInvalidInput)
	}
	n, err := s.Store.AssignSubjectDepartment(department)
	if err != nil {
		return 0, err
	}
	logger.Info.Printf("Assigned department %s to %d subject(s)", department, n)
	return n, nil
}
