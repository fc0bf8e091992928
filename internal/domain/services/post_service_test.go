package services

import (
	"context"
	"errors"
	"testing"

	"github.com/veylhq/veyl/internal/domain/entities"
)

type fakeEmbedClient struct {
	embeds map[string]*PostEmbed // by permalink
	calls  []string
}

func (c *fakeEmbedClient) FetchPostEmbed(_ context.Context, permalink string) (*PostEmbed, error) {
	c.calls = append(c.calls, permalink)
	embed, ok := c.embeds[permalink]
	if !ok {
		return nil, errors.New("embed not found")
	}
	cp := *embed
	return &cp, nil
}

type fakeMediaClient struct {
	posts []*entities.Post
	err   error
}

func (c *fakeMediaClient) SearchHashtagMedia(_ context.Context, _ string, _ string, _ int) ([]*entities.Post, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.posts, nil
}

func newTestPostService(embed EmbedClient) (*PostService, *fakePostRepo, *fakeHashtagRepo, *fakePlatformRepo, *fakeProjectRepo) {
	posts := newFakePostRepo()
	tags := newFakeHashtagRepo()
	platforms := newFakePlatformRepo()
	projects := newFakeProjectRepo(tags)
	reconcile := NewReconcileService(posts, tags)
	svc := NewPostService(posts, platforms, projects, tags, reconcile, embed)
	return svc, posts, tags, platforms, projects
}

func TestIngestReconcilesHashtags(t *testing.T) {
	ctx := context.Background()
	svc, posts, tags, _, _ := newTestPostService(nil)

	post := &entities.Post{
		ID:         "ext-1",
		PlatformID: "plat-1",
		Author:     "alice",
		Caption:    "new drop #Fashion #fashion #style",
		Source:     "seed",
	}
	if err := svc.Ingest(ctx, post); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if len(posts.posts) != 1 {
		t.Errorf("post rows = %d, want 1", len(posts.posts))
	}
	if len(tags.hashtags) != 2 {
		t.Errorf("hashtag rows = %d, want 2 (case variants collapse)", len(tags.hashtags))
	}

	// Ingesting the same post again refreshes, never duplicates
	post.Caption = "new drop #Fashion #fashion #style #sale"
	if err := svc.Ingest(ctx, post); err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if len(posts.posts) != 1 {
		t.Errorf("post rows after re-ingest = %d, want 1", len(posts.posts))
	}
	if len(tags.hashtags) != 3 {
		t.Errorf("hashtag rows after re-ingest = %d, want 3", len(tags.hashtags))
	}
}

func TestRefreshHashtagPosts(t *testing.T) {
	ctx := context.Background()
	embed := &fakeEmbedClient{embeds: map[string]*PostEmbed{
		"https://www.instagram.com/p/SHORT1/": {
			AuthorName:   "alice",
			Caption:      "updated caption #fresh",
			ThumbnailURL: "https://cdn.test/t1.jpg",
		},
	}}
	svc, posts, tags, platforms, _ := newTestPostService(embed)

	platform, err := platforms.Ensure(ctx, "instagram")
	if err != nil {
		t.Fatalf("ensure platform: %v", err)
	}
	if err := posts.Upsert(ctx, &entities.Post{
		ID: "SHORT1", PlatformID: platform.ID, Author: "old", Caption: "stale #old", Source: "seed",
	}); err != nil {
		t.Fatalf("seed post: %v", err)
	}
	hashtag, err := tags.Ensure(ctx, "old", platform.ID)
	if err != nil {
		t.Fatalf("ensure tag: %v", err)
	}
	if _, err := tags.LinkPost(ctx, "SHORT1", hashtag.ID); err != nil {
		t.Fatalf("link: %v", err)
	}

	stats, err := svc.RefreshHashtagPosts(ctx, hashtag.ID, 0)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if stats.Refreshed != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 1 refreshed", stats)
	}

	got, _ := posts.GetByID(ctx, "SHORT1")
	if got.Caption != "updated caption #fresh" {
		t.Errorf("caption = %q", got.Caption)
	}
	if got.Author != "alice" {
		t.Errorf("author = %q", got.Author)
	}
	if got.Source != "oembed" {
		t.Errorf("source = %q, want oembed", got.Source)
	}
	// New caption tags were reconciled
	if h, _ := tags.GetByNameAndPlatform(ctx, "fresh", platform.ID); h == nil {
		t.Error("refreshed caption hashtag was not reconciled")
	}
	refreshed, _ := tags.GetByID(ctx, hashtag.ID)
	if refreshed.LastScraped == nil {
		t.Error("last_scraped not touched")
	}
}

func TestRefreshWithoutEmbedClient(t *testing.T) {
	ctx := context.Background()
	svc, _, tags, _, _ := newTestPostService(nil)

	hashtag, err := tags.Ensure(ctx, "any", "plat-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := svc.RefreshHashtagPosts(ctx, hashtag.ID, 0); err == nil {
		t.Error("expected an error with no embed client configured")
	}
}

func TestLookupHashtagMedia(t *testing.T) {
	ctx := context.Background()
	svc, posts, _, platforms, _ := newTestPostService(nil)

	platform, err := platforms.Ensure(ctx, "instagram")
	if err != nil {
		t.Fatalf("ensure platform: %v", err)
	}
	if err := posts.Upsert(ctx, &entities.Post{
		ID: "stored-1", PlatformID: platform.ID, Author: "alice", Caption: "db copy #fashion",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	remote := []*entities.Post{{ID: "remote-1", PlatformID: platform.ID, Author: "bob", Caption: "#fashion live"}}

	tests := []struct {
		name       string
		client     HashtagMediaClient
		token      string
		wantRemote bool
		wantIDs    []string
	}{
		{
			name:       "remote answers",
			client:     &fakeMediaClient{posts: remote},
			token:      "tok",
			wantRemote: true,
			wantIDs:    []string{"remote-1"},
		},
		{
			name:       "remote empty is a real answer",
			client:     &fakeMediaClient{posts: []*entities.Post{}},
			token:      "tok",
			wantRemote: true,
			wantIDs:    []string{},
		},
		{
			name:       "remote failure falls back to database",
			client:     &fakeMediaClient{err: errors.New("rate limited")},
			token:      "tok",
			wantRemote: false,
			wantIDs:    []string{"stored-1"},
		},
		{
			name:       "no token skips the remote call",
			client:     &fakeMediaClient{posts: remote},
			token:      "",
			wantRemote: false,
			wantIDs:    []string{"stored-1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.LookupHashtagMedia(ctx, tt.client, "fashion", tt.token, "instagram", 10)
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if got.Remote != tt.wantRemote {
				t.Errorf("Remote = %v, want %v", got.Remote, tt.wantRemote)
			}
			if len(got.Posts) != len(tt.wantIDs) {
				t.Fatalf("posts = %d, want %d", len(got.Posts), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if got.Posts[i].ID != want {
					t.Errorf("post[%d] = %s, want %s", i, got.Posts[i].ID, want)
				}
			}
		})
	}
}
