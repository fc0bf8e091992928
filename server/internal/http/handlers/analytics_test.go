package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/veylhq/veyl/internal/domain/entities"
)

type stubAnalyticsRepo struct {
	trending []*entities.TrendingPost
	stats    []*entities.HashtagStats

	gotPlatformID string
	gotLimit      int
}

func (s *stubAnalyticsRepo) TrendingPosts(ctx context.Context, platformID string, limit int) ([]*entities.TrendingPost, error) {
	s.gotPlatformID = platformID
	s.gotLimit = limit
	return s.trending, nil
}

func (s *stubAnalyticsRepo) HashtagStats(ctx context.Context, platformID string, limit int) ([]*entities.HashtagStats, error) {
	s.gotPlatformID = platformID
	s.gotLimit = limit
	return s.stats, nil
}

type stubPlatformRepo struct {
	platforms map[string]*entities.Platform
}

func (s *stubPlatformRepo) Ensure(ctx context.Context, name string) (*entities.Platform, error) {
	return s.platforms[name], nil
}

func (s *stubPlatformRepo) GetByName(ctx context.Context, name string) (*entities.Platform, error) {
	return s.platforms[name], nil
}

func (s *stubPlatformRepo) List(ctx context.Context) ([]*entities.Platform, error) {
	out := make([]*entities.Platform, 0, len(s.platforms))
	for _, p := range s.platforms {
		out = append(out, p)
	}
	return out, nil
}

func newTestAnalyticsHandler() (*AnalyticsHandler, *stubAnalyticsRepo) {
	analytics := &stubAnalyticsRepo{}
	platforms := &stubPlatformRepo{platforms: map[string]*entities.Platform{
		"instagram": {ID: "plat-ig", Name: "instagram"},
	}}
	return NewAnalyticsHandler(analytics, platforms), analytics
}

func TestTrendingFiltersByPlatform(t *testing.T) {
	handler, repo := newTestAnalyticsHandler()
	repo.trending = []*entities.TrendingPost{
		{PostID: "p1", Author: "styleicon", Score: 120, ScoreTrend: 5},
	}

	req := httptest.NewRequest(http.MethodGet, "/analytics/trending?platform=instagram&limit=10", nil)
	rec := httptest.NewRecorder()
	handler.Trending(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if repo.gotPlatformID != "plat-ig" {
		t.Errorf("platform id = %q, want plat-ig", repo.gotPlatformID)
	}
	if repo.gotLimit != 10 {
		t.Errorf("limit = %d, want 10", repo.gotLimit)
	}

	var body struct {
		Posts []*entities.TrendingPost `json:"posts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Posts) != 1 || body.Posts[0].PostID != "p1" {
		t.Errorf("posts = %+v", body.Posts)
	}
}

func TestTrendingUnknownPlatformIsEmpty(t *testing.T) {
	handler, repo := newTestAnalyticsHandler()
	repo.trending = []*entities.TrendingPost{{PostID: "p1"}}

	req := httptest.NewRequest(http.MethodGet, "/analytics/trending?platform=myspace", nil)
	rec := httptest.NewRecorder()
	handler.Trending(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Posts []json.RawMessage `json:"posts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Posts) != 0 {
		t.Errorf("posts = %v, want empty", body.Posts)
	}
	if repo.gotLimit != 0 {
		t.Error("repository queried for an unknown platform")
	}
}

func TestTrendingLimitDefaultsAndCaps(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"?limit=0", 50},
		{"?limit=25", 25},
		{"?limit=500", 100},
	}

	for _, tt := range tests {
		handler, repo := newTestAnalyticsHandler()
		req := httptest.NewRequest(http.MethodGet, "/analytics/trending"+tt.query, nil)
		handler.Trending(httptest.NewRecorder(), req)
		if repo.gotLimit != tt.want {
			t.Errorf("query %q: limit = %d, want %d", tt.query, repo.gotLimit, tt.want)
		}
	}
}

func TestHashtagStats(t *testing.T) {
	handler, repo := newTestAnalyticsHandler()
	repo.stats = []*entities.HashtagStats{
		{ID: "h1", Name: "fashion", PlatformID: "plat-ig", TotalPosts: 12, AvgEngagement: 34.5},
		{ID: "h2", Name: "style", PlatformID: "plat-ig", TotalPosts: 3},
	}

	req := httptest.NewRequest(http.MethodGet, "/analytics/hashtags/stats", nil)
	rec := httptest.NewRecorder()
	handler.HashtagStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if repo.gotPlatformID != "" {
		t.Errorf("platform id = %q, want all platforms", repo.gotPlatformID)
	}

	var body struct {
		Hashtags []*entities.HashtagStats `json:"hashtags"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Hashtags) != 2 {
		t.Fatalf("hashtags = %d rows, want 2", len(body.Hashtags))
	}
	if body.Hashtags[0].Name != "fashion" || body.Hashtags[0].TotalPosts != 12 {
		t.Errorf("first row = %+v", body.Hashtags[0])
	}
}
