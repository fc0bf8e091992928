package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/pkg/metrics"
	"github.com/veylhq/veyl/internal/pkg/textutil"
)

// ReconcileService keeps the post-hashtag graph in sync with post captions.
// Reconciliation is idempotent: re-running it over the same caption creates
// no duplicate hashtags and no duplicate links.
type ReconcileService struct {
	postRepo    repositories.PostRepository
	hashtagRepo repositories.HashtagRepository
	log         *slog.Logger
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(postRepo repositories.PostRepository, hashtagRepo repositories.HashtagRepository) *ReconcileService {
	return &ReconcileService{
		postRepo:    postRepo,
		hashtagRepo: hashtagRepo,
		log:         slog.Default().With(slog.String("service", "reconcile")),
	}
}

// ReconcileResult reports what one reconciliation pass touched
type ReconcileResult struct {
	Tags       []string `json:"tags"`
	LinksNew   int      `json:"links_new"`
	LinksSeen  int      `json:"links_existing"`
	FailedTags int      `json:"failed_tags,omitempty"`
}

// ReconcilePostHashtags extracts hashtags from a post caption and makes sure
// each exists and is linked to the post. Tags are lowercased and deduplicated
// before linking, so "#Fashion #fashion" resolves to a single hashtag and a
// single link. A failure on one tag is logged and counted but does not stop
// the rest.
func (s *ReconcileService) ReconcilePostHashtags(ctx context.Context, postID, platformID, caption string) (*ReconcileResult, error) {
	tags := textutil.ExtractHashtags(caption)
	result := &ReconcileResult{Tags: tags}

	if len(tags) == 0 {
		metrics.PostsReconciled.WithLabelValues("empty").Inc()
		return result, nil
	}

	for _, tag := range tags {
		hashtag, err := s.hashtagRepo.Ensure(ctx, tag, platformID)
		if err != nil {
			s.log.Warn("failed to ensure hashtag",
				slog.String("tag", tag),
				slog.String("post_id", postID),
				slog.String("error", err.Error()))
			result.FailedTags++
			continue
		}

		created, err := s.hashtagRepo.LinkPost(ctx, postID, hashtag.ID)
		if err != nil {
			s.log.Warn("failed to link hashtag",
				slog.String("tag", tag),
				slog.String("post_id", postID),
				slog.String("error", err.Error()))
			result.FailedTags++
			continue
		}

		if created {
			result.LinksNew++
			metrics.HashtagsLinked.Inc()
		} else {
			result.LinksSeen++
		}
	}

	if result.FailedTags > 0 {
		metrics.PostsReconciled.WithLabelValues("partial").Inc()
	} else {
		metrics.PostsReconciled.WithLabelValues("ok").Inc()
	}

	s.log.Debug("reconciled post hashtags",
		slog.String("post_id", postID),
		slog.Int("tags", len(tags)),
		slog.Int("new_links", result.LinksNew))

	return result, nil
}

// BackfillHashtagLinks links existing stored posts to a hashtag by searching
// captions. Used when a hashtag is first attached to a project, so posts
// fetched before the hashtag existed still show up under it.
func (s *ReconcileService) BackfillHashtagLinks(ctx context.Context, hashtagID string, limit int) (int, error) {
	hashtag, err := s.hashtagRepo.GetByID(ctx, hashtagID)
	if err != nil {
		return 0, err
	}

	if limit <= 0 {
		limit = 200
	}

	needle := "#" + hashtag.Name
	posts, err := s.postRepo.SearchByCaption(ctx, needle, hashtag.PlatformID, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to search posts for %s: %w", needle, err)
	}

	linked := 0
	for _, post := range posts {
		// SearchByCaption is substring-based; confirm the tag is really
		// present so "#fashionweek" does not match "#fashion".
		if !captionHasTag(post.Caption, hashtag.Name) {
			continue
		}
		created, err := s.hashtagRepo.LinkPost(ctx, post.ID, hashtag.ID)
		if err != nil {
			s.log.Warn("failed to backfill link",
				slog.String("post_id", post.ID),
				slog.String("hashtag_id", hashtag.ID),
				slog.String("error", err.Error()))
			continue
		}
		if created {
			linked++
			metrics.HashtagsLinked.Inc()
		}
	}

	s.log.Info("backfilled hashtag links",
		slog.String("hashtag", hashtag.Name),
		slog.Int("candidates", len(posts)),
		slog.Int("linked", linked))

	return linked, nil
}

func captionHasTag(caption, tag string) bool {
	for _, extracted := range textutil.ExtractHashtags(caption) {
		if strings.EqualFold(extracted, tag) {
			return true
		}
	}
	return false
}
