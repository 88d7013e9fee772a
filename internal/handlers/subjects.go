package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shrimpsizemoose/examtable/internal/app"
	"github.com/shrimpsizemoose/examtable/internal/models"
)

type SubjectHandler struct {
	service *app.Service
}

func NewSubjectHandler(service *app.Service) *SubjectHandler {
	return &SubjectHandler{
		service: service,
	}
}

func (h *SubjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.ListSubjects()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}

func (h *SubjectHandler) HandleCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.SubjectCodes()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"codes": codes})
}

func (h *SubjectHandler) HandleFilter(w http.ResponseWriter, r *http.Request) {
	semester, err := queryInt(r, "semester")
	if err != nil {
		badRequest(w, "Invalid filter", err)
		return
	}

	subjects, err := h.service.FilterSubjects(r.URL.Query().Get("department"), semester)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}

func (h *SubjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	subject, err := h.service.GetSubject(r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (h *SubjectHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var subject models.Subject
	if err := json.NewDecoder(r.Body).Decode(&subject); err != nil {
		badRequest(w, "Invalid request body", err)
		return
	}
	subject.Name = r.PathValue("name")

	if err := h.service.SaveSubject(&subject); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (h *SubjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.service.DeleteSubject(name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func (h *SubjectHandler) HandleAssignDepartment(w http.ResponseWriter, r *http.Request) {
	updated, err := h.service.AssignSubjectDepartment(r.PathValue("department"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (h *SubjectHandler) Register(mux *http.ServeMux) {
	guard := func(fn http.HandlerFunc) http.HandlerFunc { return Guard(h.service, fn) }

	mux.HandleFunc("GET /api/subjects", guard(h.HandleList))
	mux.HandleFunc("GET /api/subjects/codes", guard(h.HandleCodes))
	mux.HandleFunc("GET /api/subjects/filter", guard(h.HandleFilter))
	mux.HandleFunc("POST /api/subjects/update-department/{department}", guard(h.HandleAssignDepartment))
	mux.HandleFunc("GET /api/subjects/{name}", guard(h.HandleGet))
	mux.HandleFunc("PUT /api/subjects/{name}", guard(h.HandleSave))
	mux.HandleFunc("DELETE /api/subjects/{name}", guard(h.HandleDelete))
}
