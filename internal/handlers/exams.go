package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shrimpsizemoose/examtable/internal/app"
	"github.com/shrimpsizemoose/examtable/internal/models"
)

type ExamHandler struct {
	service *app.Service
}

func NewExamHandler(service *app.Service) *ExamHandler {
	return &ExamHandler{
		service: service,
	}
}

func (h *ExamHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		badRequest(w, "Invalid scope", err)
		return
	}

	var status models.ExamStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		if status, err = models.ParseExamStatus(raw); err != nil {
			badRequest(w, "Invalid status", err)
			return
		}
	}

	exams, err := h.service.ListExams(scope, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exams": exams})
}

func (h *ExamHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	var exam models.Exam
	if err := json.NewDecoder(r.Body).Decode(&exam); err != nil {
		badRequest(w, "Invalid request body", err)
		return
	}

	created, err := h.service.ScheduleExam(r.Context(), exam)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ExamHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	exam, err := h.service.GetExam(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exam)
}

func (h *ExamHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch models.ExamPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		badRequest(w, "Invalid request body", err)
		return
	}

	exam, err := h.service.UpdateExam(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exam)
}

func (h *ExamHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if r.URL.Query().Get("soft") == "true" {
		exam, err := h.service.DiscardExam(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, exam)
		return
	}

	if err := h.service.DeleteExam(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (h *ExamHandler) HandleConflicts(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		badRequest(w, "Invalid scope", err)
		return
	}

	result, err := h.service.DetectConflicts(scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ExamHandler) HandleAutoResolve(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		badRequest(w, "Invalid scope", err)
		return
	}

	resolved, err := h.service.AutoResolveConflicts(r.Context(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"resolved": resolved})
}

func (h *ExamHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		badRequest(w, "Invalid scope", err)
		return
	}

	published, err := h.service.PublishTimetable(r.Context(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"published": published})
}

func (h *ExamHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Status()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *ExamHandler) HandleDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.service.Departments()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"departments": departments})
}

func (h *ExamHandler) HandleNormalizeSlots(w http.ResponseWriter, r *http.Request) {
	updated, err := h.service.NormalizeLegacySlots(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// Register mounts the exam routes on mux.
func (h *ExamHandler) Register(mux *http.ServeMux) {
	guard := func(fn http.HandlerFunc) http.HandlerFunc { return Guard(h.service, fn) }

	mux.HandleFunc("GET /api/exams", guard(h.HandleList))
	mux.HandleFunc("POST /api/exams", guard(h.HandleSchedule))
	mux.HandleFunc("GET /api/exams/conflicts", guard(h.HandleConflicts))
	mux.HandleFunc("POST /api/exams/auto-resolve", guard(h.HandleAutoResolve))
	mux.HandleFunc("PUT /api/exams/publish", guard(h.HandlePublish))
	mux.HandleFunc("GET /api/exams/status", guard(h.HandleStatus))
	mux.HandleFunc("GET /api/exams/departments", guard(h.HandleDepartments))
	mux.HandleFunc("POST /api/exams/update-all-times", guard(h.HandleNormalizeSlots))
	mux.HandleFunc("GET /api/exams/{id}", guard(h.HandleGet))
	mux.HandleFunc("PUT /api/exams/{id}", guard(h.HandleUpdate))
	mux.HandleFunc("DELETE /api/exams/{id}", guard(h.HandleDelete))
}
