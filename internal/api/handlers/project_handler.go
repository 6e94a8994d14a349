package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/zatekoja/feedbackhub/internal/application/services"
	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	apperrors "github.com/zatekoja/feedbackhub/pkg/errors"
)

// ProjectManager is the administrative project API.
type ProjectManager interface {
	Create(ctx context.Context, input services.CreateProjectInput) (*entities.Project, error)
	Get(ctx context.Context, id string) (*entities.Project, error)
	List(ctx context.Context, activeOnly bool) ([]*entities.Project, error)
	Update(ctx context.Context, id string, update entities.ProjectUpdate) (*entities.Project, error)
	RegenerateKey(ctx context.Context, id string) (*entities.Project, error)
	Delete(ctx context.Context, id string) error
}

// ProjectHandler handles project administration
type ProjectHandler struct {
	service ProjectManager
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(service ProjectManager) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// CreateProject handles POST /api/admin/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var input services.CreateProjectInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondWithAppError(w, r, err, "invalid request payload")
		return
	}

	project, err := h.service.Create(r.Context(), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to create project")
		return
	}
	respondWithJSON(w, http.StatusCreated, project)
}

// ListProjects handles GET /api/admin/projects?active=true
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		activeOnly = parsed
	}

	projects, err := h.service.List(r.Context(), activeOnly)
	if err != nil {
		respondWithAppError(w, r, err, "failed to list projects")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	})
}

// GetProject handles GET /api/admin/projects/{id}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to get project")
		return
	}
	respondWithJSON(w, http.StatusOK, project)
}

// UpdateProject handles PATCH /api/admin/projects/{id}
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var update entities.ProjectUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		respondWithAppError(w, r, err, "invalid request payload")
		return
	}
	if update.Name == nil && update.Domain == nil && update.Description == nil && update.IsActive == nil {
		respondWithAppError(w, r, apperrors.NewValidationError("no fields to update"), "invalid request payload")
		return
	}

	project, err := h.service.Update(r.Context(), r.PathValue("id"), update)
	if err != nil {
		respondWithAppError(w, r, err, "failed to update project")
		return
	}
	respondWithJSON(w, http.StatusOK, project)
}

// RegenerateKey handles POST /api/admin/projects/{id}/regenerate-key
func (h *ProjectHandler) RegenerateKey(w http.ResponseWriter, r *http.Request) {
	project, err := h.service.RegenerateKey(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to regenerate API key")
		return
	}
	respondWithJSON(w, http.StatusOK, project)
}

// DeleteProject handles DELETE /api/admin/projects/{id}
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err, "failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
