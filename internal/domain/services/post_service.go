package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/repositories"
)

// PostEmbed is the subset of an oEmbed response the refresh job uses
type PostEmbed struct {
	AuthorName   string
	Caption      string
	ThumbnailURL string
}

// EmbedClient fetches public post metadata from a platform's oEmbed endpoint
type EmbedClient interface {
	FetchPostEmbed(ctx context.Context, permalink string) (*PostEmbed, error)
}

// HashtagLookup is the outcome of a remote hashtag media search. Remote
// lookups distinguish "the API answered with nothing" from "the API call
// failed"; callers fall back to the database only in the second case.
type HashtagLookup struct {
	Posts  []*entities.Post
	Remote bool // true when the posts came from the provider API
}

// HashtagMediaClient searches a platform's API for recent posts under a tag
type HashtagMediaClient interface {
	SearchHashtagMedia(ctx context.Context, tag string, accessToken string, limit int) ([]*entities.Post, error)
}

// PostService manages stored posts: listing, search, ingestion, and the
// refresh job that re-fetches post metadata from the platforms.
type PostService struct {
	postRepo     repositories.PostRepository
	platformRepo repositories.PlatformRepository
	projectRepo  repositories.ProjectRepository
	hashtagRepo  repositories.HashtagRepository
	reconcile    *ReconcileService
	embed        EmbedClient
	log          *slog.Logger
}

// NewPostService creates a new post service. embed may be nil when no oEmbed
// credentials are configured; Refresh operations then fail with a clear error.
func NewPostService(
	postRepo repositories.PostRepository,
	platformRepo repositories.PlatformRepository,
	projectRepo repositories.ProjectRepository,
	hashtagRepo repositories.HashtagRepository,
	reconcile *ReconcileService,
	embed EmbedClient,
) *PostService {
	return &PostService{
		postRepo:     postRepo,
		platformRepo: platformRepo,
		projectRepo:  projectRepo,
		hashtagRepo:  hashtagRepo,
		reconcile:    reconcile,
		embed:        embed,
		log:          slog.Default().With(slog.String("service", "post")),
	}
}

// Get retrieves a post by its external id
func (s *PostService) Get(ctx context.Context, id string) (*entities.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, repositories.ErrPostNotFound
	}
	return post, nil
}

// List returns posts, optionally filtered by platform name and author
func (s *PostService) List(ctx context.Context, platformName, author string, limit, offset int) ([]*entities.Post, error) {
	opts := repositories.ListPostsOptions{
		Limit:  limit,
		Offset: offset,
		Author: author,
	}
	if platformName != "" {
		platform, err := s.platformRepo.GetByName(ctx, platformName)
		if err != nil {
			return nil, err
		}
		if platform == nil {
			return []*entities.Post{}, nil
		}
		opts.PlatformID = platform.ID
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	return s.postRepo.List(ctx, opts)
}

// Search returns posts whose caption contains the needle
func (s *PostService) Search(ctx context.Context, needle, platformName string, limit int) ([]*entities.Post, error) {
	platformID := ""
	if platformName != "" {
		platform, err := s.platformRepo.GetByName(ctx, platformName)
		if err != nil {
			return nil, err
		}
		if platform == nil {
			return []*entities.Post{}, nil
		}
		platformID = platform.ID
	}
	if limit <= 0 {
		limit = 50
	}
	return s.postRepo.SearchByCaption(ctx, needle, platformID, limit)
}

// Ingest upserts a post and reconciles its caption hashtags. The post is
// keyed by the provider-assigned id, so repeated ingestion refreshes metrics
// without creating duplicates.
func (s *PostService) Ingest(ctx context.Context, post *entities.Post) error {
	if post.ID == "" {
		return errors.New("post id is required")
	}
	if post.FetchedAt.IsZero() {
		post.FetchedAt = time.Now()
	}

	if err := s.postRepo.Upsert(ctx, post); err != nil {
		return fmt.Errorf("failed to upsert post %s: %w", post.ID, err)
	}

	if _, err := s.reconcile.ReconcilePostHashtags(ctx, post.ID, post.PlatformID, post.Caption); err != nil {
		return err
	}
	return nil
}

// RefreshStats reports the outcome of a refresh pass
type RefreshStats struct {
	Scanned   int `json:"scanned"`
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}

// RefreshHashtagPosts re-fetches oEmbed metadata for every post linked to a
// hashtag and re-runs caption reconciliation. Per-post failures are counted
// and skipped; the pass keeps going.
func (s *PostService) RefreshHashtagPosts(ctx context.Context, hashtagID string, limit int) (*RefreshStats, error) {
	if s.embed == nil {
		return nil, errors.New("oEmbed client is not configured")
	}

	hashtag, err := s.hashtagRepo.GetByID(ctx, hashtagID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	postIDs, err := s.hashtagRepo.ListPostIDs(ctx, hashtagID, limit)
	if err != nil {
		return nil, err
	}

	stats := &RefreshStats{}
	for _, postID := range postIDs {
		stats.Scanned++
		if err := s.refreshOne(ctx, postID); err != nil {
			stats.Failed++
			s.log.Warn("failed to refresh post",
				slog.String("post_id", postID),
				slog.String("error", err.Error()))
			continue
		}
		stats.Refreshed++
	}

	if err := s.hashtagRepo.TouchLastScraped(ctx, hashtagID, time.Now()); err != nil {
		s.log.Warn("failed to touch last_scraped",
			slog.String("hashtag_id", hashtagID),
			slog.String("error", err.Error()))
	}

	s.log.Info("refreshed hashtag posts",
		slog.String("hashtag", hashtag.Name),
		slog.Int("scanned", stats.Scanned),
		slog.Int("refreshed", stats.Refreshed),
		slog.Int("failed", stats.Failed))
	return stats, nil
}

// RefreshProjectPosts refreshes every post authored by the project's
// creators, then stamps the project's last run time.
func (s *PostService) RefreshProjectPosts(ctx context.Context, userID, projectID string, limit int) (*RefreshStats, error) {
	if s.embed == nil {
		return nil, errors.New("oEmbed client is not configured")
	}

	project, err := s.projectRepo.GetByID(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	creators, err := s.projectRepo.ListCreators(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	stats := &RefreshStats{}
	if len(creators) > 0 {
		authors := make([]string, 0, len(creators))
		for _, c := range creators {
			authors = append(authors, c.Username)
		}
		if limit <= 0 {
			limit = 100
		}
		posts, err := s.postRepo.ListByAuthors(ctx, authors, limit)
		if err != nil {
			return nil, err
		}
		for _, post := range posts {
			stats.Scanned++
			if err := s.refreshOne(ctx, post.ID); err != nil {
				stats.Failed++
				s.log.Warn("failed to refresh post",
					slog.String("post_id", post.ID),
					slog.String("error", err.Error()))
				continue
			}
			stats.Refreshed++
		}
	}

	now := time.Now()
	project.LastRunAt = &now
	if err := s.projectRepo.Update(ctx, project); err != nil {
		s.log.Warn("failed to stamp project run",
			slog.String("project_id", project.ID),
			slog.String("error", err.Error()))
	}
	return stats, nil
}

// refreshOne fetches fresh oEmbed metadata for a stored post, upserts the
// updated fields, and re-reconciles the caption.
func (s *PostService) refreshOne(ctx context.Context, postID string) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return repositories.ErrPostNotFound
	}

	platformName := ""
	platforms, err := s.platformRepo.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range platforms {
		if p.ID == post.PlatformID {
			platformName = p.Name
			break
		}
	}

	permalink := post.Permalink(platformName)
	if permalink == "" {
		return fmt.Errorf("no permalink for post %s", post.ID)
	}

	embed, err := s.embed.FetchPostEmbed(ctx, permalink)
	if err != nil {
		return err
	}

	if embed.AuthorName != "" {
		post.Author = embed.AuthorName
	}
	if embed.Caption != "" {
		post.Caption = embed.Caption
	}
	if embed.ThumbnailURL != "" {
		post.MediaURL = &embed.ThumbnailURL
	}
	post.Source = "oembed"
	post.FetchedAt = time.Now()

	if err := s.postRepo.Upsert(ctx, post); err != nil {
		return err
	}

	_, err = s.reconcile.ReconcilePostHashtags(ctx, post.ID, post.PlatformID, post.Caption)
	return err
}

// LookupHashtagMedia tries a remote hashtag media search first and falls back
// to stored posts when the remote call fails or no client is configured. The
// Remote flag tells the caller which source answered; a remote answer with
// zero posts is a real (empty) answer, not a miss.
func (s *PostService) LookupHashtagMedia(ctx context.Context, client HashtagMediaClient, tag, accessToken, platformName string, limit int) (*HashtagLookup, error) {
	if limit <= 0 {
		limit = 25
	}

	if client != nil && accessToken != "" {
		posts, err := client.SearchHashtagMedia(ctx, tag, accessToken, limit)
		if err == nil {
			return &HashtagLookup{Posts: posts, Remote: true}, nil
		}
		s.log.Warn("remote hashtag lookup failed, falling back to database",
			slog.String("tag", tag),
			slog.String("error", err.Error()))
	}

	posts, err := s.Search(ctx, "#"+tag, platformName, limit)
	if err != nil {
		return nil, err
	}
	return &HashtagLookup{Posts: posts, Remote: false}, nil
}
