package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/examtable/internal/models"
	"github.com/shrimpsizemoose/examtable/internal/store"
	"github.com/shrimpsizemoose/examtable/internal/store/sqlite"
)

func newTestService(t *testing.T) *Service {
	return newTestServiceWith(t, func(*Config) {})
}

func newTestServiceWith(t *testing.T, configure func(config *Config)) *Service {
	t.Helper()

	st, err := sqlite.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations("../../migrations"))

	config := &Config{}
	config.Server.Port = ":0"
	configure(config)
	config.applyDefaults()

	svc, err := New(config, st, NewLocalLocker())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, svc.Close()) })
	return svc
}

func at(h, m int) models.Clock { return models.NewClock(h, m) }

func march(day int) models.Date { return models.NewDate(2025, time.March, day) }

func draft(course, examType string, day int, start, end models.Clock) models.Exam {
	return models.Exam{
		Semester:   3,
		Department: "CS",
		CourseName: course,
		ExamType:   examType,
		ExamDate:   march(day),
		StartTime:  start,
		EndTime:    end,
	}
}

func mustSchedule(t *testing.T, svc *Service, e models.Exam) *models.Exam {
	t.Helper()
	created, err := svc.ScheduleExam(context.Background(), e)
	require.NoError(t, err)
	return created
}

func TestScheduleExamAssignsDefaults(t *testing.T) {
	svc := newTestService(t)

	e := draft("DBMS", "MSE I", 10, at(10, 0), at(11, 30))
	e.ID = "client-supplied"
	e.Status = models.StatusPublished

	created := mustSchedule(t, svc, e)
	assert.NotEqual(t, "client-supplied", created.ID)
	assert.Regexp(t, `^exm_`, created.ID)
	assert.Equal(t, models.StatusDraft, created.Status)
	assert.Equal(t, 90, created.DurationMinutes)

	stored, err := svc.GetExam(created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *stored)
}

func TestScheduleExamCapacity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mustSchedule(t, svc, draft("DBMS", "End Sem", 10, at(9, 30), at(11, 0)))
	second := mustSchedule(t, svc, draft("OS", "End Sem", 10, at(13, 30), at(15, 0)))

	_, err := svc.ScheduleExam(ctx, draft("CN", "end sem", 10, at(16, 0), at(17, 0)))
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	n, err := svc.Store.CountExams()
	require.NoError(t, err)
	assert.Equal(t, 2, n, "rejected exam must not be persisted")

	// other types, dates and departments are counted separately
	mustSchedule(t, svc, draft("CN", "MSE I", 10, at(16, 0), at(17, 0)))
	mustSchedule(t, svc, draft("CN", "End Sem", 11, at(16, 0), at(17, 0)))
	other := draft("CN", "End Sem", 10, at(16, 0), at(17, 0))
	other.Department = "IT"
	mustSchedule(t, svc, other)

	// a discarded exam frees its place
	_, err = svc.DiscardExam(ctx, second.ID)
	require.NoError(t, err)
	mustSchedule(t, svc, draft("CN", "End Sem", 10, at(16, 0), at(17, 0)))
}

func TestScheduleExamInvalidInput(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name   string
		mutate func(e *models.Exam)
	}{
		{"missing course", func(e *models.Exam) { e.CourseName = "" }},
		{"missing type", func(e *models.Exam) { e.ExamType = "" }},
		{"zero semester", func(e *models.Exam) { e.Semester = 0 }},
		{"missing date", func(e *models.Exam) { e.ExamDate = models.Date{} }},
		{"end before start", func(e *models.Exam) { e.EndTime = e.StartTime }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := draft("DBMS", "MSE I", 10, at(10, 0), at(11, 0))
			tt.mutate(&e)
			_, err := svc.ScheduleExam(context.Background(), e)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestScheduleExamConcurrentRequests(t *testing.T) {
	svc := newTestService(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := at(8+i, 0)
			_, err := svc.ScheduleExam(context.Background(), draft("Course", "MSE II", 12, start, start.Add(45)))
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrCapacityExceeded) {
				rejected++
			} else if assert.NoError(t, err) {
				accepted++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, accepted)
	assert.Equal(t, 4, rejected)
}

func TestUpdateExamMergesFields(t *testing.T) {
	svc := newTestService(t)
	created := mustSchedule(t, svc, draft("DBMS", "MSE I", 10, at(10, 0), at(11, 0)))

	hall := "B-204"
	start, end := at(14, 0), at(15, 0)
	updated, err := svc.UpdateExam(context.Background(), created.ID, models.ExamPatch{
		HallID:    &hall,
		StartTime: &start,
		EndTime:   &end,
	})
	require.NoError(t, err)

	assert.Equal(t, "B-204", updated.HallID)
	assert.Equal(t, at(14, 0), updated.StartTime)
	assert.Equal(t, "DBMS", updated.CourseName)
	assert.Equal(t, march(10), updated.ExamDate)
	assert.Equal(t, models.StatusDraft, updated.Status)

	stored, err := svc.GetExam(created.ID)
	require.NoError(t, err)
	assert.Equal(t, *updated, *stored)
}

func TestUpdateExamSkipsCapacityCheck(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mustSchedule(t, svc, draft("DBMS", "End Sem", 10, at(9, 30), at(11, 0)))
	mustSchedule(t, svc, draft("OS", "End Sem", 10, at(13, 30), at(15, 0)))
	third := mustSchedule(t, svc, draft("CN", "End Sem", 11, at(16, 0), at(17, 0)))

	date := march(10)
	_, err := svc.UpdateExam(ctx, third.ID, models.ExamPatch{ExamDate: &date})
	require.NoError(t, err)

	result, err := svc.DetectConflicts(Scope{Semester: 3, Department: "CS"})
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, models.ConflictMaxLoad, result.Conflicts[0].Type)
}

func TestUpdateExamRejectsInvalidMerge(t *testing.T) {
	svc := newTestService(t)
	created := mustSchedule(t, svc, draft("DBMS", "MSE I", 10, at(10, 0), at(11, 0)))

	end := at(9, 0)
	_, err := svc.UpdateExam(context.Background(), created.ID, models.ExamPatch{EndTime: &end})
	assert.ErrorIs(t, err, ErrInvalidInput)

	stored, err := svc.GetExam(created.ID)
	require.NoError(t, err)
	assert.Equal(t, at(11, 0), stored.EndTime)
}

func TestUnknownExamIsNotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetExam("exm_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateExam(ctx, "exm_missing", models.ExamPatch{})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.DeleteExam(ctx, "exm_missing"), ErrNotFound)

	_, err = svc.DiscardExam(ctx, "exm_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAndDiscardExam(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	hard := mustSchedule(t, svc, draft("DBMS", "MSE I", 10, at(10, 0), at(11, 0)))
	soft := mustSchedule(t, svc, draft("OS", "MSE I", 10, at(10, 30), at(11, 30)))

	require.NoError(t, svc.DeleteExam(ctx, hard.ID))
	_, err := svc.GetExam(hard.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	discarded, err := svc.DiscardExam(ctx, soft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, discarded.Status)

	kept, err := svc.ListExams(Scope{}, models.StatusDeleted)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, soft.ID, kept[0].ID)
}

func TestDetectConflictsScenarios(t *testing.T) {
	svc := newTestService(t)

	mustSchedule(t, svc, draft("DBMS", "MSE I", 10, at(10, 0), at(11, 0)))
	mustSchedule(t, svc, draft("OS", "MSE I", 10, at(10, 30), at(11, 30)))

	result, err := svc.DetectConflicts(Scope{Semester: 3, Department: "CS"})
	require.NoError(t, err)
	assert.False(t, result.ConflictFree)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, models.ConflictStudent, result.Conflicts[0].Type)

	// another semester sees nothing
	result, err = svc.DetectConflicts(Scope{Semester: 5})
	require.NoError(t, err)
	assert.True(t, result.ConflictFree)
	assert.Empty(t, result.Conflicts)
}

func TestDetectConflictsIgnoresDeleted(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mustSchedule(t, svc, draft("DBMS", "MSE I", 10, at(10, 0), at(11, 0)))
	clash := mustSchedule(t, svc, draft("OS", "MSE I", 10, at(10, 30), at(11, 30)))
	_, err := svc.DiscardExam(ctx, clash.ID)
	require.NoError(t, err)

	result, err := svc.DetectConflicts(Scope{})
	require.NoError(t, err)
	assert.True(t, result.ConflictFree)
}

func TestAutoResolveMovesDraftAwayFromPublished(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	anchor := mustSchedule(t, svc, draft("OS", "MSE I", 10, at(10, 0), at(11, 0)))
	n, err := svc.PublishTimetable(ctx, Scope{})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	moving := mustSchedule(t, svc, draft("DBMS", "MSE I", 10, at(10, 30), at(11, 30)))

	resolved, err := svc.AutoResolveConflicts(ctx, Scope{Semester: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	published, err := svc.GetExam(anchor.ID)
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), published.StartTime, "published exam must stay put")

	moved, err := svc.GetExam(moving.ID)
	require.NoError(t, err)
	assert.Equal(t, march(10), moved.ExamDate)
	assert.Equal(t, at(13, 30), moved.StartTime)
	assert.Equal(t, at(15, 0), moved.EndTime)
	assert.Equal(t, 90, moved.DurationMinutes)
	assert.Equal(t, models.StatusDraft, moved.Status)

	result, err := svc.DetectConflicts(Scope{Semester: 3})
	require.NoError(t, err)
	assert.True(t, result.ConflictFree)

	again, err := svc.AutoResolveConflicts(ctx, Scope{Semester: 3})
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestPublishTimetableIsAllOrNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mustSchedule(t, svc, draft("DBMS", "MSE I", 10, at(10, 0), at(11, 0)))
	mustSchedule(t, svc, draft("OS", "MSE I", 10, at(10, 30), at(11, 30)))
	mustSchedule(t, svc, draft("CN", "MSE I", 11, at(10, 0), at(11, 0)))

	n, err := svc.PublishTimetable(ctx, Scope{Semester: 3, Department: "CS"})
	assert.ErrorIs(t, err, ErrConflictsExist)
	assert.Zero(t, n)

	published, err := svc.ListExams(Scope{}, models.StatusPublished)
	require.NoError(t, err)
	assert.Empty(t, published)

	resolved, err := svc.AutoResolveConflicts(ctx, Scope{Semester: 3, Department: "CS"})
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	n, err = svc.PublishTimetable(ctx, Scope{Semester: 3, Department: "CS"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// already published exams are not counted twice
	n, err = svc.PublishTimetable(ctx, Scope{Semester: 3, Department: "CS"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	report, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, models.StatusReport{StoreStatus: "Connected", Backend: "OK"}, *report)

	mustSchedule(t, svc, draft("DBMS", "MSE I", 10, at(10, 0), at(11, 0)))
	other := draft("OS", "MSE I", 10, at(10, 0), at(11, 0))
	other.Semester = 5
	mustSchedule(t, svc, other)

	_, err = svc.PublishTimetable(ctx, Scope{Semester: 3})
	require.NoError(t, err)

	report, err = svc.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Published)
	assert.Equal(t, 1, report.Draft)
	assert.False(t, report.IsFullyPublished)

	_, err = svc.PublishTimetable(ctx, Scope{})
	require.NoError(t, err)

	report, err = svc.Status()
	require.NoError(t, err)
	assert.True(t, report.IsFullyPublished)
}

type unreachableStore struct {
	store.ExamStore
	mock.Mock
}

func (s *unreachableStore) Ping() error {
	return s.Called().Error(0)
}

func (s *unreachableStore) CountExams() (int, error) {
	args := s.Called()
	return args.Int(0), args.Error(1)
}

func (s *unreachableStore) FindExamsByStatus(status models.ExamStatus) ([]models.Exam, error) {
	args := s.Called(status)
	exams, _ := args.Get(0).([]models.Exam)
	return exams, args.Error(1)
}

func TestStatusKeepsCountsWhenPingFails(t *testing.T) {
	st := &unreachableStore{}
	st.On("Ping").Return(errors.New("connection refused"))
	st.On("CountExams").Return(3, nil)
	st.On("FindExamsByStatus", models.StatusPublished).Return([]models.Exam{{ID: "exm_1"}}, nil)
	st.On("FindExamsByStatus", models.StatusDraft).Return([]models.Exam{{ID: "exm_2"}, {ID: "exm_3"}}, nil)

	svc := &Service{Store: st}
	report, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, "Disconnected", report.StoreStatus)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Published)
	assert.Equal(t, 2, report.Draft)
	assert.False(t, report.IsFullyPublished)
	st.AssertExpectations(t)
}

func TestStatusReportsDisconnectedStore(t *testing.T) {
	st := &unreachableStore{}
	st.On("Ping").Return(errors.New("connection refused"))
	st.On("CountExams").Return(0, errors.New("connection refused"))

	svc := &Service{Store: st}
	report, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, models.StatusReport{StoreStatus: "Disconnected", Backend: "OK"}, *report)
	st.AssertExpectations(t)
}

func TestStatusCountFailureOnHealthyStore(t *testing.T) {
	st := &unreachableStore{}
	st.On("Ping").Return(nil)
	st.On("CountExams").Return(0, errors.New("relation does not exist"))

	svc := &Service{Store: st}
	_, err := svc.Status()
	assert.Error(t, err)
}

func TestDepartments(t *testing.T) {
	svc := newTestService(t)

	for _, dept := range []string{"IT", "CS", "IT", "ENTC"} {
		e := draft("Course "+dept, "MSE I", 10, at(10, 0), at(11, 0))
		e.Department = dept
		e.Semester = len(dept)
		mustSchedule(t, svc, e)
	}

	departments, err := svc.Departments()
	require.NoError(t, err)
	assert.Equal(t, []string{"CS", "ENTC", "IT"}, departments)
}

func TestNormalizeLegacySlots(t *testing.T) {
	svc := newTestService(t)

	morning := mustSchedule(t, svc, draft("DBMS", "MSE I", 10, at(9, 0), at(10, 0)))
	afternoon := mustSchedule(t, svc, draft("OS", "MSE I", 11, at(13, 0), at(14, 0)))
	midnight := mustSchedule(t, svc, draft("CN", "MSE I", 12, at(1, 0), at(2, 0)))
	untouched := mustSchedule(t, svc, draft("TOC", "MSE I", 13, at(11, 0), at(12, 0)))

	n, err := svc.NormalizeLegacySlots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	check := func(id string, start, end models.Clock, duration int) {
		e, err := svc.GetExam(id)
		require.NoError(t, err)
		assert.Equal(t, start, e.StartTime, e.CourseName)
		assert.Equal(t, end, e.EndTime, e.CourseName)
		assert.Equal(t, duration, e.DurationMinutes, e.CourseName)
	}
	check(morning.ID, at(9, 30), at(11, 0), 90)
	check(afternoon.ID, at(13, 30), at(15, 0), 90)
	check(midnight.ID, at(13, 30), at(15, 0), 90)
	check(untouched.ID, at(11, 0), at(12, 0), 60)

	n, err = svc.NormalizeLegacySlots(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNormalizeLegacySlotsUsesConfiguredSlots(t *testing.T) {
	svc := newTestServiceWith(t, func(config *Config) {
		config.Scheduling.Slots = []string{"10:00-11:30", "12:00-13:00", "14:00-16:00"}
	})

	morning := mustSchedule(t, svc, draft("DBMS", "MSE I", 10, at(9, 0), at(10, 0)))
	afternoon := mustSchedule(t, svc, draft("OS", "MSE I", 11, at(13, 0), at(14, 0)))

	n, err := svc.NormalizeLegacySlots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	e, err := svc.GetExam(morning.ID)
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), e.StartTime)
	assert.Equal(t, at(11, 30), e.EndTime)
	assert.Equal(t, 90, e.DurationMinutes)

	e, err = svc.GetExam(afternoon.ID)
	require.NoError(t, err)
	assert.Equal(t, at(14, 0), e.StartTime)
	assert.Equal(t, at(16, 0), e.EndTime)
	assert.Equal(t, 120, e.DurationMinutes)
}

func TestNormalizeLegacySlotsSkipsExamsAlreadyInSlot(t *testing.T) {
	svc := newTestServiceWith(t, func(config *Config) {
		config.Scheduling.Slots = []string{"09:00-10:30", "13:00-14:30"}
	})

	mustSchedule(t, svc, draft("DBMS", "MSE I", 10, at(9, 0), at(10, 30)))
	mustSchedule(t, svc, draft("OS", "MSE I", 11, at(13, 0), at(14, 0)))

	n, err := svc.NormalizeLegacySlots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestValidateHeaders(t *testing.T) {
	svc := newTestService(t)
	svc.Config.API.RequiredHeaders = []HeaderConfig{{Name: "X-Examtable-Client", Value: "timetable-ui"}}

	assert.True(t, svc.ValidateHeaders(map[string][]string{"X-Examtable-Client": {"Timetable-UI"}}))
	assert.False(t, svc.ValidateHeaders(map[string][]string{"X-Examtable-Client": {"curl"}}))
	assert.False(t, svc.ValidateHeaders(map[string][]string{}))
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "semester=any department=any", Scope{}.String())
	assert.Equal(t, "semester=3 department=CS", Scope{Semester: 3, Department: "CS"}.String())
}
