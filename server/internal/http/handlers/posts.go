package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx/types"

	"github.com/veylhq/veyl/internal/auth"
	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/domain/services"
)

// PostHandler serves stored posts and the platform media proxies
type PostHandler struct {
	posts        *services.PostService
	platformRepo repositories.PlatformRepository
	identityRepo repositories.IdentityRepository
	metaMedia    services.HashtagMediaClient // nil when Meta is unconfigured
	tiktokMedia  services.HashtagMediaClient
}

// NewPostHandler creates a new post handler
func NewPostHandler(
	posts *services.PostService,
	platformRepo repositories.PlatformRepository,
	identityRepo repositories.IdentityRepository,
	metaMedia, tiktokMedia services.HashtagMediaClient,
) *PostHandler {
	return &PostHandler{
		posts:        posts,
		platformRepo: platformRepo,
		identityRepo: identityRepo,
		metaMedia:    metaMedia,
		tiktokMedia:  tiktokMedia,
	}
}

// List handles GET /api/v1/posts?platform=&author=&limit=&offset=
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	posts, err := h.posts.List(r.Context(), query.Get("platform"), query.Get("author"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// Search handles GET /api/v1/posts/search?q=&platform=&limit=
func (h *PostHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	needle := query.Get("q")
	if needle == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}
	limit, _ := strconv.Atoi(query.Get("limit"))

	posts, err := h.posts.Search(r.Context(), needle, query.Get("platform"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// Get handles GET /api/v1/posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Ingest handles POST /api/v1/posts; upsert a post by its external id and
// reconcile its caption hashtags
func (h *PostHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string         `json:"id"`
		Platform string         `json:"platform"`
		Author   string         `json:"author"`
		Caption  string         `json:"caption"`
		MediaURL *string        `json:"media_url"`
		Metrics  map[string]any `json:"metrics"`
		PostedAt *time.Time     `json:"posted_at"`
		Source   string         `json:"source"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ID == "" || req.Platform == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id and platform are required"})
		return
	}

	platform, err := h.platformRepo.Ensure(r.Context(), req.Platform)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Source == "" {
		req.Source = "api"
	}
	post := &entities.Post{
		ID:         req.ID,
		PlatformID: platform.ID,
		Author:     req.Author,
		Caption:    req.Caption,
		MediaURL:   req.MediaURL,
		PostedAt:   req.PostedAt,
		Source:     req.Source,
	}
	if req.Metrics != nil {
		if blob, err := json.Marshal(req.Metrics); err == nil {
			post.Metrics = types.JSONText(blob)
		}
	}

	if err := h.posts.Ingest(r.Context(), post); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HashtagMedia handles GET /api/v1/media/{platform}/hashtag/{tag}; the thin
// platform proxy: try the remote API with the caller's linked token, fall
// back to stored posts
func (h *PostHandler) HashtagMedia(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	platformName := vars["platform"]
	tag := vars["tag"]
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var client services.HashtagMediaClient
	var tokenProvider string
	switch platformName {
	case "instagram":
		client = h.metaMedia
		tokenProvider = "instagram"
	case "tiktok":
		client = h.tiktokMedia
		tokenProvider = "tiktok"
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported platform"})
		return
	}

	accessToken := ""
	if userCtx, err := auth.GetUserFromContext(r.Context()); err == nil {
		identities, err := h.identityRepo.ListByUserID(r.Context(), userCtx.UserID)
		if err == nil {
			for _, identity := range identities {
				if identity.Provider == tokenProvider {
					accessToken = identity.AccessToken
					break
				}
			}
		}
	}

	lookup, err := h.posts.LookupHashtagMedia(r.Context(), client, tag, accessToken, platformName, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"posts":  lookup.Posts,
		"source": lookupSource(lookup),
	})
}

func lookupSource(lookup *services.HashtagLookup) string {
	if lookup.Remote {
		return "api"
	}
	return "database"
}
