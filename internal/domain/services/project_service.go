package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/lib/pq"

	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/pkg/idgen"
	"github.com/veylhq/veyl/internal/pkg/textutil"
)

// ProjectService manages monitoring projects and their hashtag/creator
// scopes. All operations are scoped by the owning user.
type ProjectService struct {
	projectRepo  repositories.ProjectRepository
	hashtagRepo  repositories.HashtagRepository
	platformRepo repositories.PlatformRepository
	postRepo     repositories.PostRepository
	reconcile    *ReconcileService
	log          *slog.Logger
}

// NewProjectService creates a new project service
func NewProjectService(
	projectRepo repositories.ProjectRepository,
	hashtagRepo repositories.HashtagRepository,
	platformRepo repositories.PlatformRepository,
	postRepo repositories.PostRepository,
	reconcile *ReconcileService,
) *ProjectService {
	return &ProjectService{
		projectRepo:  projectRepo,
		hashtagRepo:  hashtagRepo,
		platformRepo: platformRepo,
		postRepo:     postRepo,
		reconcile:    reconcile,
		log:          slog.Default().With(slog.String("service", "project")),
	}
}

// CreateProjectInput carries the caller-settable project fields
type CreateProjectInput struct {
	Name        string
	Description *string
	Status      entities.ProjectStatus
}

// Create creates a project for a user. The share slug is derived from the
// name; collisions within the user's projects get a numeric suffix.
func (s *ProjectService) Create(ctx context.Context, userID string, in CreateProjectInput) (*entities.Project, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, errors.New("project name is required")
	}

	status := in.Status
	if status == "" {
		status = entities.ProjectDraft
	}

	projectSlug, err := s.uniqueSlug(ctx, userID, in.Name)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	project := &entities.Project{
		ID:          idgen.GenerateID(),
		UserID:      userID,
		Name:        strings.TrimSpace(in.Name),
		Slug:        projectSlug,
		Description: in.Description,
		Status:      status,
		Platforms:   pq.StringArray{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.log.Info("created project",
		slog.String("project_id", project.ID),
		slog.String("user_id", userID))
	return project, nil
}

func (s *ProjectService) uniqueSlug(ctx context.Context, userID, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "project"
	}
	candidate := base
	for i := 2; ; i++ {
		existing, err := s.projectRepo.GetBySlug(ctx, userID, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// Get retrieves a project owned by the user
func (s *ProjectService) Get(ctx context.Context, userID, projectID string) (*entities.Project, error) {
	return s.projectRepo.GetByID(ctx, userID, projectID)
}

// GetBySlug retrieves a project by its share slug
func (s *ProjectService) GetBySlug(ctx context.Context, userID, slugStr string) (*entities.Project, error) {
	project, err := s.projectRepo.GetBySlug(ctx, userID, slugStr)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, repositories.ErrProjectNotFound
	}
	return project, nil
}

// List retrieves all projects owned by a user
func (s *ProjectService) List(ctx context.Context, userID string) ([]*entities.Project, error) {
	return s.projectRepo.ListByUserID(ctx, userID)
}

// UpdateProjectInput carries the updatable project fields; nil means unchanged
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Status      *entities.ProjectStatus
}

// Update applies partial changes to a project. Renaming does not change the
// slug; share links stay stable.
func (s *ProjectService) Update(ctx context.Context, userID, projectID string, in UpdateProjectInput) (*entities.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		project.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		project.Description = in.Description
	}
	if in.Status != nil {
		project.Status = *in.Status
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Delete removes a project and its scope links
func (s *ProjectService) Delete(ctx context.Context, userID, projectID string) error {
	return s.projectRepo.Delete(ctx, userID, projectID)
}

// AttachHashtag adds a hashtag to a project's scope. The value is normalized
// (leading '#' stripped, lowercased) and the hashtag row is created on the
// platform if it does not exist yet. Attaching an already-attached hashtag
// is a no-op.
func (s *ProjectService) AttachHashtag(ctx context.Context, userID, projectID, rawTag, platformName string) (*entities.Hashtag, error) {
	project, err := s.projectRepo.GetByID(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	name := textutil.NormalizeHashtag(rawTag)
	if name == "" {
		return nil, errors.New("hashtag is required")
	}

	platform, err := s.platformRepo.Ensure(ctx, platformName)
	if err != nil {
		return nil, err
	}

	hashtag, err := s.hashtagRepo.Ensure(ctx, name, platform.ID)
	if err != nil {
		return nil, err
	}

	link := &entities.ProjectHashtag{
		ProjectID: project.ID,
		HashtagID: hashtag.ID,
	}
	if err := s.projectRepo.AttachHashtag(ctx, link); err != nil {
		if !errors.Is(err, repositories.ErrAlreadyLinked) {
			return nil, err
		}
	}

	if err := s.refreshScope(ctx, project); err != nil {
		return nil, err
	}
	return hashtag, nil
}

// DetachHashtag removes a hashtag link from a project's scope
func (s *ProjectService) DetachHashtag(ctx context.Context, userID, projectID, linkID string) error {
	project, err := s.projectRepo.GetByID(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if err := s.projectRepo.DetachHashtag(ctx, project.ID, linkID); err != nil {
		return err
	}
	return s.refreshScope(ctx, project)
}

// ListHashtags returns the hashtags attached to a project with their link rows
func (s *ProjectService) ListHashtags(ctx context.Context, userID, projectID string) ([]*entities.ProjectHashtag, []*entities.Hashtag, error) {
	project, err := s.projectRepo.GetByID(ctx, userID, projectID)
	if err != nil {
		return nil, nil, err
	}
	return s.projectRepo.ListHashtags(ctx, project.ID)
}

// AttachCreator adds a creator handle on a platform to a project's scope.
// The handle is normalized (leading '@' stripped, lowercased). Attaching an
// already-attached handle is a no-op.
func (s *ProjectService) AttachCreator(ctx context.Context, userID, projectID, rawHandle, platformName string) (*entities.ProjectCreator, error) {
	project, err := s.projectRepo.GetByID(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	username := textutil.NormalizeCreator(rawHandle)
	if username == "" {
		return nil, errors.New("creator username is required")
	}

	platform, err := s.platformRepo.Ensure(ctx, platformName)
	if err != nil {
		return nil, err
	}

	link := &entities.ProjectCreator{
		ProjectID:  project.ID,
		PlatformID: platform.ID,
		Username:   username,
	}
	if err := s.projectRepo.AttachCreator(ctx, link); err != nil {
		if !errors.Is(err, repositories.ErrAlreadyLinked) {
			return nil, err
		}
	}

	if err := s.refreshScope(ctx, project); err != nil {
		return nil, err
	}
	return link, nil
}

// DetachCreator removes a creator link from a project's scope
func (s *ProjectService) DetachCreator(ctx context.Context, userID, projectID, linkID string) error {
	project, err := s.projectRepo.GetByID(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if err := s.projectRepo.DetachCreator(ctx, project.ID, linkID); err != nil {
		return err
	}
	return s.refreshScope(ctx, project)
}

// ListCreators returns the creator links attached to a project
func (s *ProjectService) ListCreators(ctx context.Context, userID, projectID string) ([]*entities.ProjectCreator, error) {
	project, err := s.projectRepo.GetByID(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return s.projectRepo.ListCreators(ctx, project.ID)
}

// ListPosts returns recent posts by the project's attached creators
func (s *ProjectService) ListPosts(ctx context.Context, userID, projectID string, limit int) ([]*entities.Post, error) {
	project, err := s.projectRepo.GetByID(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	creators, err := s.projectRepo.ListCreators(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if len(creators) == 0 {
		return []*entities.Post{}, nil
	}

	authors := make([]string, 0, len(creators))
	for _, c := range creators {
		authors = append(authors, c.Username)
	}
	if limit <= 0 {
		limit = 50
	}
	return s.postRepo.ListByAuthors(ctx, authors, limit)
}

// refreshScope recomputes the derived scope columns from the current
// attachments and persists them.
func (s *ProjectService) refreshScope(ctx context.Context, project *entities.Project) error {
	_, hashtags, err := s.projectRepo.ListHashtags(ctx, project.ID)
	if err != nil {
		return err
	}
	creators, err := s.projectRepo.ListCreators(ctx, project.ID)
	if err != nil {
		return err
	}

	platformIDs := make(map[string]bool)
	queryParts := make([]string, 0, len(hashtags)+len(creators))
	for _, h := range hashtags {
		platformIDs[h.PlatformID] = true
		queryParts = append(queryParts, "#"+h.Name)
	}
	for _, c := range creators {
		platformIDs[c.PlatformID] = true
		queryParts = append(queryParts, "@"+c.Username)
	}

	var scopeType *entities.ScopeType
	switch {
	case len(hashtags) > 0 && len(creators) > 0:
		t := entities.ScopeBoth
		scopeType = &t
	case len(hashtags) > 0:
		t := entities.ScopeHashtags
		scopeType = &t
	case len(creators) > 0:
		t := entities.ScopeCreators
		scopeType = &t
	}

	var scopeQuery *string
	if len(queryParts) > 0 {
		q := strings.Join(queryParts, " ")
		scopeQuery = &q
	}

	platformNames, err := s.platformNames(ctx, platformIDs)
	if err != nil {
		return err
	}

	project.ScopeType = scopeType
	project.ScopeQuery = scopeQuery
	project.CreatorsCount = len(creators)
	project.Platforms = platformNames

	return s.projectRepo.Update(ctx, project)
}

func (s *ProjectService) platformNames(ctx context.Context, ids map[string]bool) (pq.StringArray, error) {
	if len(ids) == 0 {
		return pq.StringArray{}, nil
	}
	all, err := s.platformRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ids))
	for _, p := range all {
		if ids[p.ID] {
			names = append(names, p.Name)
		}
	}
	sort.Strings(names)
	return pq.StringArray(names), nil
}
