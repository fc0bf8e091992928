package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/veylhq/veyl/internal/auth"
	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/services"
)

// ProjectHandler serves project CRUD and scope management
type ProjectHandler struct {
	projects *services.ProjectService
	posts    *services.PostService
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projects *services.ProjectService, posts *services.PostService) *ProjectHandler {
	return &ProjectHandler{projects: projects, posts: posts}
}

func requestUser(w http.ResponseWriter, r *http.Request) (*auth.UserContext, bool) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return nil, false
	}
	return userCtx, true
}

// Create handles POST /api/v1/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requestUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
		Status      string  `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	project, err := h.projects.Create(r.Context(), userCtx.UserID, services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      entities.ProjectStatus(req.Status),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// List handles GET /api/v1/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requestUser(w, r)
	if !ok {
		return
	}

	projects, err := h.projects.List(r.Context(), userCtx.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// Get handles GET /api/v1/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requestUser(w, r)
	if !ok {
		return
	}

	project, err := h.projects.Get(r.Context(), userCtx.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// Update handles PATCH /api/v1/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requestUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	input := services.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Status != nil {
		status := entities.ProjectStatus(*req.Status)
		input.Status = &status
	}

	project, err := h.projects.Update(r.Context(), userCtx.UserID, mux.Vars(r)["id"], input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// Delete handles DELETE /api/v1/projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requestUser(w, r)
	if !ok {
		return
	}

	if err := h.projects.Delete(r.Context(), userCtx.UserID, mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// AttachHashtag handles POST /api/v1/projects/{id}/hashtags
func (h *ProjectHandler) AttachHashtag(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requestUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Hashtag  string `json:"hashtag"`
		Platform string `json:"platform"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Platform == "" {
		req.Platform = "instagram"
	}

	hashtag, err := h.projects.AttachHashtag(r.Context(), userCtx.UserID, mux.Vars(r)["id"], req.Hashtag, req.Platform)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, hashtag)
}

// DetachHashtag handles DELETE /api/v1/projects/{id}/hashtags/{link_id}
func (h *ProjectHandler) DetachHashtag(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requestUser(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	if err := h.projects.DetachHashtag(r.Context(), userCtx.UserID, vars["id"], vars["link_id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// ListHashtags handles GET /api/v1/projects/{id}/hashtags
func (h *ProjectHandler) ListHashtags(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requestUser(w, r)
	if !ok {
		return
	}

	links, hashtags, err := h.projects.ListHashtags(r.Context(), userCtx.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": links, "hashtags": hashtags})
}

// AttachCreator handles POST /api/v1/projects/{id}/creators
func (h *ProjectHandler) AttachCreator(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requestUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Username string `json:"username"`
		Platform string `json:"platform"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Platform == "" {
		req.Platform = "instagram"
	}

	creator, err := h.projects.AttachCreator(r.Context(), userCtx.UserID, mux.Vars(r)["id"], req.Username, req.Platform)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, creator)
}

// DetachCreator handles DELETE /api/v1/projects/{id}/creators/{link_id}
func (h *ProjectHandler) DetachCreator(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requestUser(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	if err := h.projects.DetachCreator(r.Context(), userCtx.UserID, vars["id"], vars["link_id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// ListCreators handles GET /api/v1/projects/{id}/creators
func (h *ProjectHandler) ListCreators(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requestUser(w, r)
	if !ok {
		return
	}

	creators, err := h.projects.ListCreators(r.Context(), userCtx.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"creators": creators})
}

// ListPosts handles GET /api/v1/projects/{id}/posts
func (h *ProjectHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requestUser(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	posts, err := h.projects.ListPosts(r.Context(), userCtx.UserID, mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// Refresh handles POST /api/v1/projects/{id}/refresh
func (h *ProjectHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requestUser(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	stats, err := h.posts.RefreshProjectPosts(r.Context(), userCtx.UserID, mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
