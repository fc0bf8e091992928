package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/oauth"
)

// In-memory repository fakes. They enforce the same uniqueness rules as the
// postgres implementations so the services' race handling can be exercised.

type fakeUserRepo struct {
	users  map[string]*entities.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*entities.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *entities.User) error {
	for _, u := range r.users {
		if u.Email == user.Email {
			return repositories.ErrDuplicateEmail
		}
	}
	r.nextID++
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", r.nextID)
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*entities.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) Update(_ context.Context, user *entities.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return repositories.ErrUserNotFound
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	if u, ok := r.users[id]; ok {
		u.IsActive = false
	}
	return nil
}

func (r *fakeUserRepo) List(_ context.Context, _ repositories.ListUsersOptions) ([]*entities.User, int64, error) {
	out := make([]*entities.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, userID string, loginTime time.Time) error {
	if u, ok := r.users[userID]; ok {
		u.LastLoginAt = &loginTime
	}
	return nil
}

func (r *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

type fakeIdentityRepo struct {
	identities map[string]*entities.Identity
	users      *fakeUserRepo
	nextID     int

	// createHook runs before each Create; tests use it to inject races
	createHook func()
}

func newFakeIdentityRepo(users *fakeUserRepo) *fakeIdentityRepo {
	return &fakeIdentityRepo{identities: make(map[string]*entities.Identity), users: users}
}

func (r *fakeIdentityRepo) Create(_ context.Context, identity *entities.Identity) error {
	if r.createHook != nil {
		r.createHook()
	}
	for _, i := range r.identities {
		if i.Provider == identity.Provider && i.ExternalID == identity.ExternalID {
			return repositories.ErrDuplicateIdentity
		}
	}
	r.nextID++
	if identity.IdentityID == "" {
		identity.IdentityID = fmt.Sprintf("ident-%d", r.nextID)
	}
	cp := *identity
	r.identities[identity.IdentityID] = &cp
	return nil
}

func (r *fakeIdentityRepo) GetByProviderAndExternalID(_ context.Context, provider, externalID string) (*entities.Identity, error) {
	for _, i := range r.identities {
		if i.Provider == provider && i.ExternalID == externalID {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeIdentityRepo) GetByUserProviderExternalID(_ context.Context, userID, provider, externalID string) (*entities.Identity, error) {
	for _, i := range r.identities {
		if i.UserID == userID && i.Provider == provider && i.ExternalID == externalID {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeIdentityRepo) ListByUserID(_ context.Context, userID string) ([]*entities.Identity, error) {
	var out []*entities.Identity
	for _, i := range r.identities {
		if i.UserID == userID {
			cp := *i
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeIdentityRepo) FindUserIDByIdentityEmail(_ context.Context, email string) (string, error) {
	for _, i := range r.identities {
		if u, ok := r.users.users[i.UserID]; ok && u.Email == email {
			return i.UserID, nil
		}
	}
	return "", nil
}

func (r *fakeIdentityRepo) UpdateCredentials(_ context.Context, identityID, accessToken string, refreshToken *string, scopes []string) error {
	i, ok := r.identities[identityID]
	if !ok {
		return repositories.ErrIdentityNotFound
	}
	i.AccessToken = accessToken
	if refreshToken != nil {
		i.RefreshToken = refreshToken
	}
	if scopes != nil {
		i.Scopes = pq.StringArray(scopes)
	}
	return nil
}

func (r *fakeIdentityRepo) Delete(_ context.Context, identityID string) error {
	if _, ok := r.identities[identityID]; !ok {
		return repositories.ErrIdentityNotFound
	}
	delete(r.identities, identityID)
	return nil
}

func (r *fakeIdentityRepo) DeleteByProviderAndExternalID(_ context.Context, provider, externalID string) error {
	for id, i := range r.identities {
		if i.Provider == provider && i.ExternalID == externalID {
			delete(r.identities, id)
		}
	}
	return nil
}

func (r *fakeIdentityRepo) CountByUserID(_ context.Context, userID string) (int, error) {
	n := 0
	for _, i := range r.identities {
		if i.UserID == userID {
			n++
		}
	}
	return n, nil
}

type fakePlatformRepo struct {
	platforms map[string]*entities.Platform // by name
	nextID    int
}

func newFakePlatformRepo() *fakePlatformRepo {
	return &fakePlatformRepo{platforms: make(map[string]*entities.Platform)}
}

func (r *fakePlatformRepo) Ensure(_ context.Context, name string) (*entities.Platform, error) {
	name = strings.ToLower(name)
	if p, ok := r.platforms[name]; ok {
		cp := *p
		return &cp, nil
	}
	r.nextID++
	p := &entities.Platform{ID: fmt.Sprintf("plat-%d", r.nextID), Name: name, CreatedAt: time.Now()}
	r.platforms[name] = p
	cp := *p
	return &cp, nil
}

func (r *fakePlatformRepo) GetByName(_ context.Context, name string) (*entities.Platform, error) {
	if p, ok := r.platforms[strings.ToLower(name)]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *fakePlatformRepo) List(_ context.Context) ([]*entities.Platform, error) {
	out := make([]*entities.Platform, 0, len(r.platforms))
	for _, p := range r.platforms {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

type hashtagLink struct {
	postID    string
	hashtagID string
}

type fakeHashtagRepo struct {
	hashtags map[string]*entities.Hashtag // by id
	links    []hashtagLink
	nextID   int
}

func newFakeHashtagRepo() *fakeHashtagRepo {
	return &fakeHashtagRepo{hashtags: make(map[string]*entities.Hashtag)}
}

func (r *fakeHashtagRepo) Ensure(_ context.Context, name, platformID string) (*entities.Hashtag, error) {
	name = strings.ToLower(strings.TrimPrefix(name, "#"))
	for _, h := range r.hashtags {
		if h.Name == name && h.PlatformID == platformID {
			cp := *h
			return &cp, nil
		}
	}
	r.nextID++
	h := &entities.Hashtag{
		ID:         fmt.Sprintf("tag-%d", r.nextID),
		Name:       name,
		PlatformID: platformID,
		UpdatedAt:  time.Now(),
	}
	r.hashtags[h.ID] = h
	cp := *h
	return &cp, nil
}

func (r *fakeHashtagRepo) GetByID(_ context.Context, id string) (*entities.Hashtag, error) {
	h, ok := r.hashtags[id]
	if !ok {
		return nil, repositories.ErrHashtagNotFound
	}
	cp := *h
	return &cp, nil
}

func (r *fakeHashtagRepo) GetByNameAndPlatform(_ context.Context, name, platformID string) (*entities.Hashtag, error) {
	for _, h := range r.hashtags {
		if h.Name == name && h.PlatformID == platformID {
			cp := *h
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeHashtagRepo) List(_ context.Context, platformID string, _, _ int) ([]*entities.Hashtag, error) {
	var out []*entities.Hashtag
	for _, h := range r.hashtags {
		if platformID == "" || h.PlatformID == platformID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeHashtagRepo) Delete(_ context.Context, id string) error {
	delete(r.hashtags, id)
	return nil
}

func (r *fakeHashtagRepo) TouchLastScraped(_ context.Context, id string, at time.Time) error {
	if h, ok := r.hashtags[id]; ok {
		h.LastScraped = &at
	}
	return nil
}

func (r *fakeHashtagRepo) LinkPost(_ context.Context, postID, hashtagID string) (bool, error) {
	for _, l := range r.links {
		if l.postID == postID && l.hashtagID == hashtagID {
			return false, nil
		}
	}
	r.links = append(r.links, hashtagLink{postID: postID, hashtagID: hashtagID})
	return true, nil
}

func (r *fakeHashtagRepo) ListPostIDs(_ context.Context, hashtagID string, _ int) ([]string, error) {
	var out []string
	for _, l := range r.links {
		if l.hashtagID == hashtagID {
			out = append(out, l.postID)
		}
	}
	return out, nil
}

type fakePostRepo struct {
	posts map[string]*entities.Post
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[string]*entities.Post)}
}

func (r *fakePostRepo) Upsert(_ context.Context, post *entities.Post) error {
	cp := *post
	r.posts[post.ID] = &cp
	return nil
}

func (r *fakePostRepo) GetByID(_ context.Context, id string) (*entities.Post, error) {
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePostRepo) List(_ context.Context, opts repositories.ListPostsOptions) ([]*entities.Post, error) {
	var out []*entities.Post
	for _, p := range r.posts {
		if opts.PlatformID != "" && p.PlatformID != opts.PlatformID {
			continue
		}
		if opts.Author != "" && p.Author != opts.Author {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakePostRepo) ListByAuthors(_ context.Context, authors []string, _ int) ([]*entities.Post, error) {
	want := make(map[string]bool, len(authors))
	for _, a := range authors {
		want[a] = true
	}
	var out []*entities.Post
	for _, p := range r.posts {
		if want[p.Author] {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePostRepo) SearchByCaption(_ context.Context, needle, platformID string, _ int) ([]*entities.Post, error) {
	var out []*entities.Post
	for _, p := range r.posts {
		if platformID != "" && p.PlatformID != platformID {
			continue
		}
		if strings.Contains(strings.ToLower(p.Caption), strings.ToLower(needle)) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeProjectRepo struct {
	projects map[string]*entities.Project
	hashtags map[string]*entities.ProjectHashtag
	creators map[string]*entities.ProjectCreator
	tags     *fakeHashtagRepo
	nextID   int
}

func newFakeProjectRepo(tags *fakeHashtagRepo) *fakeProjectRepo {
	return &fakeProjectRepo{
		projects: make(map[string]*entities.Project),
		hashtags: make(map[string]*entities.ProjectHashtag),
		creators: make(map[string]*entities.ProjectCreator),
		tags:     tags,
	}
}

func (r *fakeProjectRepo) Create(_ context.Context, project *entities.Project) error {
	cp := *project
	r.projects[project.ID] = &cp
	return nil
}

func (r *fakeProjectRepo) GetByID(_ context.Context, userID, projectID string) (*entities.Project, error) {
	p, ok := r.projects[projectID]
	if !ok || p.UserID != userID {
		return nil, repositories.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProjectRepo) GetBySlug(_ context.Context, userID, slug string) (*entities.Project, error) {
	for _, p := range r.projects {
		if p.UserID == userID && p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeProjectRepo) ListByUserID(_ context.Context, userID string) ([]*entities.Project, error) {
	var out []*entities.Project
	for _, p := range r.projects {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeProjectRepo) Update(_ context.Context, project *entities.Project) error {
	if _, ok := r.projects[project.ID]; !ok {
		return repositories.ErrProjectNotFound
	}
	cp := *project
	r.projects[project.ID] = &cp
	return nil
}

func (r *fakeProjectRepo) Delete(_ context.Context, userID, projectID string) error {
	p, ok := r.projects[projectID]
	if !ok || p.UserID != userID {
		return repositories.ErrProjectNotFound
	}
	delete(r.projects, projectID)
	return nil
}

func (r *fakeProjectRepo) AttachHashtag(_ context.Context, link *entities.ProjectHashtag) error {
	for _, l := range r.hashtags {
		if l.ProjectID == link.ProjectID && l.HashtagID == link.HashtagID {
			return repositories.ErrAlreadyLinked
		}
	}
	r.nextID++
	if link.ID == "" {
		link.ID = fmt.Sprintf("ph-%d", r.nextID)
	}
	if link.AddedAt.IsZero() {
		link.AddedAt = time.Now()
	}
	cp := *link
	r.hashtags[link.ID] = &cp
	return nil
}

func (r *fakeProjectRepo) DetachHashtag(_ context.Context, projectID, linkID string) error {
	l, ok := r.hashtags[linkID]
	if !ok || l.ProjectID != projectID {
		return repositories.ErrHashtagNotFound
	}
	delete(r.hashtags, linkID)
	return nil
}

func (r *fakeProjectRepo) ListHashtags(_ context.Context, projectID string) ([]*entities.ProjectHashtag, []*entities.Hashtag, error) {
	var links []*entities.ProjectHashtag
	var tags []*entities.Hashtag
	for _, l := range r.hashtags {
		if l.ProjectID != projectID {
			continue
		}
		lcp := *l
		links = append(links, &lcp)
		if h, ok := r.tags.hashtags[l.HashtagID]; ok {
			hcp := *h
			tags = append(tags, &hcp)
		}
	}
	return links, tags, nil
}

func (r *fakeProjectRepo) AttachCreator(_ context.Context, link *entities.ProjectCreator) error {
	for _, l := range r.creators {
		if l.ProjectID == link.ProjectID && l.PlatformID == link.PlatformID && l.Username == link.Username {
			return repositories.ErrAlreadyLinked
		}
	}
	r.nextID++
	if link.ID == "" {
		link.ID = fmt.Sprintf("pc-%d", r.nextID)
	}
	if link.AddedAt.IsZero() {
		link.AddedAt = time.Now()
	}
	cp := *link
	r.creators[link.ID] = &cp
	return nil
}

func (r *fakeProjectRepo) DetachCreator(_ context.Context, projectID, linkID string) error {
	l, ok := r.creators[linkID]
	if !ok || l.ProjectID != projectID {
		return fmt.Errorf("creator link %s not found", linkID)
	}
	delete(r.creators, linkID)
	return nil
}

func (r *fakeProjectRepo) ListCreators(_ context.Context, projectID string) ([]*entities.ProjectCreator, error) {
	var out []*entities.ProjectCreator
	for _, l := range r.creators {
		if l.ProjectID == projectID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeProvider is a canned provider adapter for exercising the callback flow
type fakeProvider struct {
	name     string
	codec    *oauth.StateCodec
	bundle   *oauth.TokenBundle
	identity *oauth.ProviderIdentity

	identityErr error
	exchanges   int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) (string, error) {
	return "https://provider.test/authorize?state=" + state, nil
}

func (p *fakeProvider) Exchange(_ context.Context, _ string) (*oauth.TokenBundle, error) {
	p.exchanges++
	cp := *p.bundle
	return &cp, nil
}

func (p *fakeProvider) FetchIdentity(_ context.Context, _ *oauth.TokenBundle) (*oauth.ProviderIdentity, error) {
	if p.identityErr != nil {
		return nil, p.identityErr
	}
	cp := *p.identity
	return &cp, nil
}

func (p *fakeProvider) StateCodec() *oauth.StateCodec { return p.codec }

func strptr(s string) *string { return &s }
