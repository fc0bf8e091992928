package handlers

import (
	"net/http"
	"strconv"

	"github.com/veylhq/veyl/internal/domain/repositories"
)

// AnalyticsHandler serves aggregate read endpoints over stored posts and
// hashtags
type AnalyticsHandler struct {
	analytics    repositories.AnalyticsRepository
	platformRepo repositories.PlatformRepository
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(
	analytics repositories.AnalyticsRepository,
	platformRepo repositories.PlatformRepository,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics:    analytics,
		platformRepo: platformRepo,
	}
}

// Trending handles GET /api/v1/analytics/trending?platform=&limit=
func (h *AnalyticsHandler) Trending(w http.ResponseWriter, r *http.Request) {
	platformID, ok := h.resolvePlatform(w, r, "posts")
	if !ok {
		return
	}

	posts, err := h.analytics.TrendingPosts(r.Context(), platformID, clampLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// HashtagStats handles GET /api/v1/analytics/hashtags/stats?platform=&limit=
func (h *AnalyticsHandler) HashtagStats(w http.ResponseWriter, r *http.Request) {
	platformID, ok := h.resolvePlatform(w, r, "hashtags")
	if !ok {
		return
	}

	stats, err := h.analytics.HashtagStats(r.Context(), platformID, clampLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hashtags": stats})
}

// resolvePlatform maps the optional ?platform= name to its id. A platform
// name that does not exist short-circuits with an empty result under the
// given key, matching the other listing endpoints.
func (h *AnalyticsHandler) resolvePlatform(w http.ResponseWriter, r *http.Request, emptyKey string) (string, bool) {
	name := r.URL.Query().Get("platform")
	if name == "" {
		return "", true
	}
	platform, err := h.platformRepo.GetByName(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return "", false
	}
	if platform == nil {
		writeJSON(w, http.StatusOK, map[string]any{emptyKey: []any{}})
		return "", false
	}
	return platform.ID, true
}

// clampLimit parses ?limit=, defaulting to 50 and capping at 100
func clampLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	return limit
}
