package http

import (
	"encoding/json"
	"net/http"

	"github.com/chiwei-platform/devspace-engine/internal/service"
	"github.com/go-chi/chi/v5"
)

type CredentialHandler struct {
	svc *service.CredentialService
}

func NewCredentialHandler(svc *service.CredentialService) *CredentialHandler {
	return &CredentialHandler{svc: svc}
}

func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	cred, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cred)
}

func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	creds, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

func (h *CredentialHandler) Get(w http.ResponseWriter, r *http.Request) {
	cred, err := h.svc.Get(r.Context(), chi.URLParam(r, "credential"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "credential")
	if err := h.svc.Delete(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}
