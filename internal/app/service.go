package app

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/examtable/internal/metrics"
	"github.com/shrimpsizemoose/examtable/internal/models"
	"github.com/shrimpsizemoose/examtable/internal/scheduling"
	"github.com/shrimpsizemoose/examtable/internal/store"
)

type Service struct {
	Config   *Config
	Store    store.ExamStore
	Locker   ScopeLocker
	Resolver *scheduling.Resolver
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := NewStore(config.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	locker, err := NewLocker(config)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to init locker: %w", err)
	}

	return New(config, store, locker)
}

// New wires a service from already constructed parts.
func New(config *Config, store store.ExamStore, locker ScopeLocker) (*Service, error) {
	slots, err := config.CanonicalSlots()
	if err != nil {
		return nil, err
	}
	return &Service{
		Config:   config,
		Store:    store,
		Locker:   locker,
		Resolver: scheduling.NewResolver(slots, config.Scheduling.SearchDays),
	}, nil
}

// Scope narrows an operation to a semester and/or department. Zero values
// mean "any".
type Scope struct {
	Semester   int
	Department string
}

func (s Scope) String() string {
	semester := "any"
	if s.Semester > 0 {
		semester = strconv.Itoa(s.Semester)
	}
	department := s.Department
	if department == "" {
		department = "any"
	}
	return fmt.Sprintf("semester=%s department=%s", semester, department)
}

func (s Scope) filter() store.ExamFilter {
	f := store.ExamFilter{Department: s.Department}
	if s.Semester > 0 {
		sem := s.Semester
		f.Semester = &sem
	}
	return f
}

func scopeOf(e *models.Exam) Scope {
	return Scope{Semester: e.Semester, Department: e.Department}
}

func (s *Service) ValidateHeaders(headers map[string][]string) bool {
	for _, required := range s.Config.API.RequiredHeaders {
		value := headers[http.CanonicalHeaderKey(required.Name)]
		if len(value) == 0 || !strings.EqualFold(value[0], required.Value) {
			return false
		}
	}
	return true
}

func (s *Service) ListExams(scope Scope, status models.ExamStatus) ([]models.Exam, error) {
	filter := scope.filter()
	filter.Status = status
	return s.Store.FindExams(filter)
}

func (s *Service) GetExam(id string) (*models.Exam, error) {
	exam, err := s.Store.GetExam(id)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, fmt.Errorf("exam %s: %w", id, ErrNotFound)
	}
	return exam, nil
}

// ScheduleExam stores a new DRAFT exam unless its capacity domain already
// holds the maximum number of exams on that date.
func (s *Service) ScheduleExam(ctx context.Context, exam models.Exam) (*models.Exam, error) {
	exam.ID = ""
	exam.Status = models.StatusDraft
	if exam.DurationMinutes == 0 {
		exam.DurationMinutes = int(exam.EndTime - exam.StartTime)
	}
	if err := exam.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	unlock, err := s.Locker.Lock(ctx, scopeOf(&exam))
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.Store.FindExams(scopeOf(&exam).filter())
	if err != nil {
		return nil, fmt.Errorf("failed to load scope: %w", err)
	}

	if n := scheduling.DayLoad(existing, scheduling.DayKeyOf(&exam)); n >= scheduling.MaxExamsPerDay {
		metrics.ScheduleRejections.WithLabelValues(exam.Department, strings.ToLower(exam.ExamType)).Inc()
		return nil, fmt.Errorf("%w: date %s already has %d exams of type %s",
			ErrCapacityExceeded, exam.ExamDate, n, exam.ExamType)
	}

	if err := s.Store.SaveExam(&exam); err != nil {
		return nil, err
	}

	metrics.ExamsScheduled.WithLabelValues(exam.Department, strings.ToLower(exam.ExamType)).Inc()
	logger.Info.Printf("Scheduled exam %s: sem %d %s %s on %s %s-%s",
		exam.ID, exam.Semester, exam.Department, exam.CourseName, exam.ExamDate, exam.StartTime, exam.EndTime)

	return &exam, nil
}

// lockExam locks the scope of exam id, plus the scope it would move to
// under patch, and returns the exam as read under that lock. When the exam
// changed scope before the lock was taken it retries with the new scope.
func (s *Service) lockExam(ctx context.Context, id string, patch *models.ExamPatch) (*models.Exam, func(), error) {
	for {
		current, err := s.GetExam(id)
		if err != nil {
			return nil, nil, err
		}

		scopes := []Scope{scopeOf(current)}
		if patch != nil {
			target := *current
			patch.ApplyTo(&target)
			if next := scopeOf(&target); next != scopes[0] {
				scopes = append(scopes, next)
			}
		}

		unlock, err := s.Locker.Lock(ctx, scopes...)
		if err != nil {
			return nil, nil, err
		}

		exam, err := s.GetExam(id)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if scopeOf(exam) == scopes[0] {
			return exam, unlock, nil
		}
		unlock()
		logger.Debug.Printf("Exam %s changed scope while waiting for lock, retrying", id)
	}
}

// UpdateExam merges patch into the stored exam. The daily capacity is not
// re-checked here; detection reports any violation.
func (s *Service) UpdateExam(ctx context.Context, id string, patch models.ExamPatch) (*models.Exam, error) {
	exam, unlock, err := s.lockExam(ctx, id, &patch)
	if err != nil {
		return nil, err
	}
	defer unlock()

	patch.ApplyTo(exam)
	if err := exam.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.Store.SaveExam(exam); err != nil {
		return nil, err
	}

	logger.Debug.Printf("Updated exam %s", exam.ID)
	return exam, nil
}

func (s *Service) DeleteExam(ctx context.Context, id string) error {
	exam, unlock, err := s.lockExam(ctx, id, nil)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.Store.DeleteExam(id); err != nil {
		return err
	}
	logger.Info.Printf("Deleted exam %s (%s)", id, exam.CourseName)
	return nil
}

// DiscardExam marks an exam DELETED without removing it.
func (s *Service) DiscardExam(ctx context.Context, id string) (*models.Exam, error) {
	exam, unlock, err := s.lockExam(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	defer unlock()

	exam.Status = models.StatusDeleted
	if err := s.Store.SaveExam(exam); err != nil {
		return nil, err
	}
	logger.Info.Printf("Discarded exam %s (%s)", id, exam.CourseName)
	return exam, nil
}

func (s *Service) DetectConflicts(scope Scope) (*models.ConflictResult, error) {
	exams, err := s.Store.FindExams(scope.filter())
	if err != nil {
		return nil, fmt.Errorf("failed to load exams: %w", err)
	}
	return detect(exams), nil
}

func detect(exams []models.Exam) *models.ConflictResult {
	conflicts := scheduling.Detect(exams)

	counts := map[models.ConflictType]int{
		models.ConflictStudent:    0,
		models.ConflictMaxLoad:    0,
		models.ConflictDailyLimit: 0,
	}
	for _, c := range conflicts {
		counts[c.Type]++
	}
	for kind, n := range counts {
		metrics.Conflicts.WithLabelValues(string(kind)).Set(float64(n))
	}

	return &models.ConflictResult{
		ConflictFree: len(conflicts) == 0,
		Conflicts:    conflicts,
	}
}

// AutoResolveConflicts moves conflicting DRAFT exams into free canonical
// slots and returns how many were moved. Zero does not mean the scope is
// conflict free: an exam may have exhausted its search window.
func (s *Service) AutoResolveConflicts(ctx context.Context, scope Scope) (int, error) {
	unlock, err := s.Locker.Lock(ctx, scope)
	if err != nil {
		return 0, err
	}
	defer unlock()

	exams, err := s.Store.FindExams(scope.filter())
	if err != nil {
		return 0, fmt.Errorf("failed to load exams: %w", err)
	}

	res := s.Resolver.Resolve(exams)

	resolved := 0
	for i := range res.Moved {
		moved := &res.Moved[i]
		if err := s.Store.SaveExam(moved); err != nil {
			return resolved, fmt.Errorf("failed to move exam %s: %w", moved.ID, err)
		}
		resolved++
		metrics.ExamsRescheduled.Inc()
		logger.Info.Printf("Moved exam %s (%s) to %s %s-%s",
			moved.ID, moved.CourseName, moved.ExamDate, moved.StartTime, moved.EndTime)
	}

	for _, e := range res.Unplaced {
		metrics.RescheduleMisses.Inc()
		logger.Info.Printf("No free slot within %d days for exam %s (%s) on %s",
			s.Resolver.SearchDays, e.ID, e.CourseName, e.ExamDate)
	}

	return resolved, nil
}

// PublishTimetable flips every DRAFT exam in scope to PUBLISHED, or none
// at all when the scope still has conflicts.
func (s *Service) PublishTimetable(ctx context.Context, scope Scope) (int, error) {
	unlock, err := s.Locker.Lock(ctx, scope)
	if err != nil {
		return 0, err
	}
	defer unlock()

	exams, err := s.Store.FindExams(scope.filter())
	if err != nil {
		return 0, fmt.Errorf("failed to load exams: %w", err)
	}

	if result := detect(exams); !result.ConflictFree {
		return 0, fmt.Errorf("%w: %d conflict(s) in %s", ErrConflictsExist, len(result.Conflicts), scope)
	}

	published := 0
	for i := range exams {
		exam := &exams[i]
		if exam.Status != models.StatusDraft {
			continue
		}
		exam.Status = models.StatusPublished
		if err := s.Store.SaveExam(exam); err != nil {
			return published, fmt.Errorf("failed to publish exam %s: %w", exam.ID, err)
		}
		published++
	}

	metrics.ExamsPublished.Add(float64(published))
	logger.Info.Printf("Published %d exam(s) in %s", published, scope)
	return published, nil
}

// Status reports exam counts over the whole store and store health. A
// failed ping still reports whatever counts the store can produce.
func (s *Service) Status() (*models.StatusReport, error) {
	report := &models.StatusReport{StoreStatus: "Connected", Backend: "OK"}
	if err := s.Store.Ping(); err != nil {
		logger.Error.Printf("Store ping failed: %v", err)
		report.StoreStatus = "Disconnected"
	}

	if err := s.countExams(report); err != nil {
		if report.StoreStatus == "Disconnected" {
			logger.Error.Printf("Store counts unavailable: %v", err)
			return &models.StatusReport{StoreStatus: "Disconnected", Backend: "OK"}, nil
		}
		return nil, err
	}
	return report, nil
}

func (s *Service) countExams(report *models.StatusReport) error {
	total, err := s.Store.CountExams()
	if err != nil {
		return err
	}
	published, err := s.Store.FindExamsByStatus(models.StatusPublished)
	if err != nil {
		return err
	}
	drafts, err := s.Store.FindExamsByStatus(models.StatusDraft)
	if err != nil {
		return err
	}

	report.Total = total
	report.Published = len(published)
	report.Draft = len(drafts)
	report.IsFullyPublished = total > 0 && report.Draft == 0
	return nil
}

func (s *Service) Departments() ([]string, error) {
	return s.Store.ListDepartments()
}

// NormalizeLegacySlots moves exams still on the old 09:00 and 13:00
// sittings onto the first and last configured slot.
func (s *Service) NormalizeLegacySlots(ctx context.Context) (int, error) {
	unlock, err := s.Locker.Lock(ctx, Scope{})
	if err != nil {
		return 0, err
	}
	defer unlock()

	exams, err := s.Store.FindExams(store.ExamFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to load exams: %w", err)
	}

	slots := s.Resolver.Allocator.Slots
	morning, afternoon := slots[0], slots[len(slots)-1]

	updated := 0
	for i := range exams {
		exam := &exams[i]
		var slot scheduling.Slot
		switch exam.StartTime {
		case models.NewClock(9, 0):
			slot = morning
		case models.NewClock(13, 0), models.NewClock(1, 0):
			slot = afternoon
		default:
			continue
		}
		if exam.StartTime == slot.Start && exam.EndTime == slot.End {
			continue
		}
		exam.StartTime = slot.Start
		exam.EndTime = slot.End
		exam.DurationMinutes = slot.Minutes()
		if err := s.Store.SaveExam(exam); err != nil {
			return updated, fmt.Errorf("failed to update exam %s: %w", exam.ID, err)
		}
		updated++
	}

	logger.Info.Printf("Updated %d exams to new timings", updated)
	return updated, nil
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Locker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("locker: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
