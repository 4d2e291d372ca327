package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aieou/sceneqc/internal/models"
)

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (req *createRequest) validate() error {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" {
		return badRequest("name is required")
	}
	return nil
}

type statusRequest struct {
	Status string `json:"status"`
}

func (app *App) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	projects, err := app.Projects.List(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (app *App) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		app.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		app.writeError(w, r, err)
		return
	}
	project := models.NewProject(req.Name, req.Description)
	if err := app.Projects.Create(r.Context(), project); err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (app *App) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	project, err := app.Projects.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (app *App) UpdateProjectHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		app.writeError(w, r, err)
		return
	}
	status := models.ProjectStatus(req.Status)
	if !status.Valid() {
		app.writeError(w, r, badRequest("invalid project status %q", req.Status))
		return
	}
	if err := app.Projects.UpdateStatus(r.Context(), id, status); err != nil {
		app.writeError(w, r, err)
		return
	}
	project, err := app.Projects.GetByID(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (app *App) DeleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.Projects.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		app.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) ListPipelinesHandler(w http.ResponseWriter, r *http.Request) {
	project, err := app.Projects.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	pipelines, err := app.Pipelines.ListByProject(r.Context(), project.ID)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pipelines)
}

func (app *App) CreatePipelineHandler(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		app.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		app.writeError(w, r, err)
		return
	}
	project, err := app.Projects.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	pipeline := models.NewPipeline(project.ID, req.Name, req.Description)
	if err := app.Pipelines.Create(r.Context(), pipeline); err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pipeline)
}

func (app *App) GetPipelineHandler(w http.ResponseWriter, r *http.Request) {
	pipeline, err := app.Pipelines.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline)
}

func (app *App) UpdatePipelineHandler(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		app.writeError(w, r, err)
		return
	}
	status := models.PipelineStatus(req.Status)
	if !status.Valid() {
		app.writeError(w, r, badRequest("invalid pipeline status %q", req.Status))
		return
	}
	pipeline, err := app.Pipelines.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline)
}

func (app *App) DeletePipelineHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.Pipelines.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		app.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
