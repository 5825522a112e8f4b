package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	"github.com/chiwei-platform/devspace-engine/internal/service"
	"github.com/go-chi/chi/v5"
)

type ProjectHandler struct {
	svc    *service.ProjectService
	msgSvc *service.MessageService
}

func NewProjectHandler(svc *service.ProjectService, msgSvc *service.MessageService) *ProjectHandler {
	return &ProjectHandler{svc: svc, msgSvc: msgSvc}
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.RedactProject(p))
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects := h.svc.List()
	out := make([]*domain.Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, domain.RedactProject(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.RedactProject(p))
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "project")
	var req service.UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.RedactProject(p))
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "project")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (h *ProjectHandler) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.RefreshStatus(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.RedactProject(p))
}

func (h *ProjectHandler) Start(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Start(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.RedactProject(p))
}

func (h *ProjectHandler) Stop(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Stop(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.RedactProject(p))
}

func (h *ProjectHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "project")

	lines := int64(500)
	if raw := r.URL.Query().Get("lines"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			lines = v
		}
	}

	logs, err := h.svc.Logs(r.Context(), id, lines)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"logs": logs})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *ProjectHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "project")
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	ack, err := h.msgSvc.Send(r.Context(), id, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ack": ack})
}

func (h *ProjectHandler) AgentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "project")
	if err := h.msgSvc.AgentStatus(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"agent": "healthy"})
}
