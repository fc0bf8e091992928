package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/domain/services"
)

// HashtagHandler serves hashtag listing and the caption backfill operation
type HashtagHandler struct {
	hashtagRepo  repositories.HashtagRepository
	platformRepo repositories.PlatformRepository
	reconcile    *services.ReconcileService
}

// NewHashtagHandler creates a new hashtag handler
func NewHashtagHandler(
	hashtagRepo repositories.HashtagRepository,
	platformRepo repositories.PlatformRepository,
	reconcile *services.ReconcileService,
) *HashtagHandler {
	return &HashtagHandler{
		hashtagRepo:  hashtagRepo,
		platformRepo: platformRepo,
		reconcile:    reconcile,
	}
}

// List handles GET /api/v1/hashtags?platform=&limit=&offset=
func (h *HashtagHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	platformID := ""
	if name := query.Get("platform"); name != "" {
		platform, err := h.platformRepo.GetByName(r.Context(), name)
		if err != nil {
			writeError(w, err)
			return
		}
		if platform == nil {
			writeJSON(w, http.StatusOK, map[string]any{"hashtags": []any{}})
			return
		}
		platformID = platform.ID
	}

	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	offset, _ := strconv.Atoi(query.Get("offset"))

	hashtags, err := h.hashtagRepo.List(r.Context(), platformID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hashtags": hashtags})
}

// Get handles GET /api/v1/hashtags/{id}
func (h *HashtagHandler) Get(w http.ResponseWriter, r *http.Request) {
	hashtag, err := h.hashtagRepo.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hashtag)
}

// LinkPosts handles POST /api/v1/hashtags/{id}/link-posts; searches stored
// captions and links matching posts to the hashtag
func (h *HashtagHandler) LinkPosts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	linked, err := h.reconcile.BackfillHashtagLinks(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"linked": linked})
}
