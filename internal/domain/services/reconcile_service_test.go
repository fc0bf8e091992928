package services

import (
	"context"
	"reflect"
	"testing"

	"github.com/veylhq/veyl/internal/domain/entities"
)

func TestReconcilePostHashtags(t *testing.T) {
	ctx := context.Background()
	posts := newFakePostRepo()
	tags := newFakeHashtagRepo()
	svc := NewReconcileService(posts, tags)

	result, err := svc.ReconcilePostHashtags(ctx, "post-1", "plat-1", "Spring looks #Fashion #style and more #fashion")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	// Case-variants of the same tag collapse to one hashtag and one link
	if want := []string{"fashion", "style"}; !reflect.DeepEqual(result.Tags, want) {
		t.Errorf("tags = %v, want %v", result.Tags, want)
	}
	if result.LinksNew != 2 {
		t.Errorf("new links = %d, want 2", result.LinksNew)
	}
	if len(tags.hashtags) != 2 {
		t.Errorf("hashtag rows = %d, want 2", len(tags.hashtags))
	}
	if len(tags.links) != 2 {
		t.Errorf("link rows = %d, want 2", len(tags.links))
	}
}

func TestReconcilePostHashtagsIdempotent(t *testing.T) {
	ctx := context.Background()
	posts := newFakePostRepo()
	tags := newFakeHashtagRepo()
	svc := NewReconcileService(posts, tags)

	caption := "#ootd #fashion"
	if _, err := svc.ReconcilePostHashtags(ctx, "post-1", "plat-1", caption); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	result, err := svc.ReconcilePostHashtags(ctx, "post-1", "plat-1", caption)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if result.LinksNew != 0 {
		t.Errorf("second pass created %d links, want 0", result.LinksNew)
	}
	if result.LinksSeen != 2 {
		t.Errorf("second pass saw %d existing links, want 2", result.LinksSeen)
	}
	if len(tags.hashtags) != 2 || len(tags.links) != 2 {
		t.Errorf("rows after re-run = %d hashtags, %d links; want 2/2", len(tags.hashtags), len(tags.links))
	}
}

func TestReconcilePostHashtagsNoTags(t *testing.T) {
	ctx := context.Background()
	svc := NewReconcileService(newFakePostRepo(), newFakeHashtagRepo())

	result, err := svc.ReconcilePostHashtags(ctx, "post-1", "plat-1", "no tags in this caption")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(result.Tags) != 0 || result.LinksNew != 0 {
		t.Errorf("empty caption produced tags=%v links=%d", result.Tags, result.LinksNew)
	}
}

func TestReconcileSameTagAcrossPlatforms(t *testing.T) {
	ctx := context.Background()
	tags := newFakeHashtagRepo()
	svc := NewReconcileService(newFakePostRepo(), tags)

	if _, err := svc.ReconcilePostHashtags(ctx, "ig-post", "plat-ig", "#fashion"); err != nil {
		t.Fatalf("instagram pass: %v", err)
	}
	if _, err := svc.ReconcilePostHashtags(ctx, "tt-post", "plat-tt", "#fashion"); err != nil {
		t.Fatalf("tiktok pass: %v", err)
	}

	// Hashtags are scoped per platform: same name, two rows
	if len(tags.hashtags) != 2 {
		t.Errorf("hashtag rows = %d, want 2", len(tags.hashtags))
	}
}

func TestBackfillHashtagLinks(t *testing.T) {
	ctx := context.Background()
	posts := newFakePostRepo()
	tags := newFakeHashtagRepo()
	svc := NewReconcileService(posts, tags)

	hashtag, err := tags.Ensure(ctx, "fashion", "plat-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	seed := []*entities.Post{
		{ID: "p1", PlatformID: "plat-1", Caption: "look at this #fashion drop"},
		{ID: "p2", PlatformID: "plat-1", Caption: "#fashionweek only"}, // substring, not the tag
		{ID: "p3", PlatformID: "plat-2", Caption: "#fashion elsewhere"},
		{ID: "p4", PlatformID: "plat-1", Caption: "nothing here"},
	}
	for _, p := range seed {
		if err := posts.Upsert(ctx, p); err != nil {
			t.Fatalf("seed post: %v", err)
		}
	}

	linked, err := svc.BackfillHashtagLinks(ctx, hashtag.ID, 0)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if linked != 1 {
		t.Errorf("linked = %d, want 1 (exact tag on the right platform)", linked)
	}

	// Re-running finds nothing new
	linked, err = svc.BackfillHashtagLinks(ctx, hashtag.ID, 0)
	if err != nil {
		t.Fatalf("backfill again: %v", err)
	}
	if linked != 0 {
		t.Errorf("re-run linked = %d, want 0", linked)
	}
}
