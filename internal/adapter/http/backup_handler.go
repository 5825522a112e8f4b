package http

import (
	"net/http"

	"github.com/chiwei-platform/devspace-engine/internal/service"
	"github.com/go-chi/chi/v5"
)

type BackupHandler struct {
	svc *service.BackupService
}

func NewBackupHandler(svc *service.BackupService) *BackupHandler {
	return &BackupHandler{svc: svc}
}

func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.RunBackup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	ts := chi.URLParam(r, "timestamp")
	if err := h.svc.Restore(r.Context(), ts); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"restored": ts})
}
