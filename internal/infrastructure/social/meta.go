package social

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/services"
)

// MetaClient talks to the Meta Graph API: Instagram oEmbed for single-post
// metadata and the hashtag search edges for media discovery.
type MetaClient struct {
	appID      string
	appSecret  string
	igUserID   string // Instagram Business account id for hashtag search
	platformID string // platform row posts are attributed to

	graphURL  string // overridable in tests
	oembedURL string

	client *http.Client
	log    *slog.Logger
}

// NewMetaClient creates a Graph API client. igUserID may be empty when no
// Instagram Business account is connected; hashtag search then fails with a
// clear error and callers fall back to the database.
func NewMetaClient(appID, appSecret, igUserID, platformID string) *MetaClient {
	return &MetaClient{
		appID:      appID,
		appSecret:  appSecret,
		igUserID:   igUserID,
		platformID: platformID,
		graphURL:   "https://graph.facebook.com/v21.0",
		oembedURL:  "https://graph.facebook.com/v21.0/instagram_oembed",
		client:     newHTTPClient(),
		log:        slog.Default().With(slog.String("client", "meta")),
	}
}

var _ services.EmbedClient = (*MetaClient)(nil)
var _ services.HashtagMediaClient = (*MetaClient)(nil)

// FetchPostEmbed fetches public post metadata through the oEmbed endpoint,
// authenticated with the app token ("{app_id}|{app_secret}").
func (c *MetaClient) FetchPostEmbed(ctx context.Context, permalink string) (*services.PostEmbed, error) {
	if c.appID == "" || c.appSecret == "" {
		return nil, fmt.Errorf("meta app credentials are not configured")
	}

	params := url.Values{}
	params.Set("url", permalink)
	params.Set("access_token", c.appID+"|"+c.appSecret)
	params.Set("fields", "author_name,title,thumbnail_url")

	body, err := getJSON(ctx, c.client, "meta", "oembed", c.oembedURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		AuthorName   string `json:"author_name"`
		Title        string `json:"title"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse oembed response: %w", err)
	}

	return &services.PostEmbed{
		AuthorName:   payload.AuthorName,
		Caption:      payload.Title,
		ThumbnailURL: payload.ThumbnailURL,
	}, nil
}

// SearchHashtagMedia finds recent media for a hashtag: resolve the tag to a
// Graph hashtag id, then page its recent_media edge. Requires a user access
// token with the Instagram hashtag permissions.
func (c *MetaClient) SearchHashtagMedia(ctx context.Context, tag string, accessToken string, limit int) ([]*entities.Post, error) {
	if c.igUserID == "" {
		return nil, fmt.Errorf("no Instagram Business account configured for hashtag search")
	}

	searchParams := url.Values{}
	searchParams.Set("q", tag)
	searchParams.Set("user_id", c.igUserID)
	searchParams.Set("access_token", accessToken)

	body, err := getJSON(ctx, c.client, "meta", "hashtag_search", c.graphURL+"/ig_hashtag_search?"+searchParams.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var search struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, fmt.Errorf("failed to parse hashtag search response: %w", err)
	}
	if len(search.Data) == 0 {
		// The tag genuinely has no Graph id; an empty answer, not a failure
		return []*entities.Post{}, nil
	}

	mediaParams := url.Values{}
	mediaParams.Set("user_id", c.igUserID)
	mediaParams.Set("fields", "id,caption,media_url,permalink,timestamp,username,like_count,comments_count")
	mediaParams.Set("limit", fmt.Sprintf("%d", limit))
	mediaParams.Set("access_token", accessToken)

	body, err = getJSON(ctx, c.client, "meta", "hashtag_media",
		c.graphURL+"/"+search.Data[0].ID+"/recent_media?"+mediaParams.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var media struct {
		Data []metaMedia `json:"data"`
	}
	if err := json.Unmarshal(body, &media); err != nil {
		return nil, fmt.Errorf("failed to parse hashtag media response: %w", err)
	}

	posts := make([]*entities.Post, 0, len(media.Data))
	for _, m := range media.Data {
		posts = append(posts, c.toPost(m))
	}

	c.log.Debug("hashtag media fetched",
		slog.String("tag", tag),
		slog.Int("count", len(posts)))
	return posts, nil
}

type metaMedia struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaURL      string `json:"media_url"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	Username      string `json:"username"`
	LikeCount     int    `json:"like_count"`
	CommentsCount int    `json:"comments_count"`
}

func (c *MetaClient) toPost(m metaMedia) *entities.Post {
	post := &entities.Post{
		ID:         m.ID,
		PlatformID: c.platformID,
		Author:     m.Username,
		Caption:    m.Caption,
		Source:     "meta_api",
		FetchedAt:  time.Now(),
	}
	if m.MediaURL != "" {
		mediaURL := m.MediaURL
		post.MediaURL = &mediaURL
	} else if m.Permalink != "" {
		permalink := m.Permalink
		post.MediaURL = &permalink
	}
	if m.Timestamp != "" {
		// Graph timestamps use a zone without a colon ("+0000")
		if ts, err := time.Parse("2006-01-02T15:04:05-0700", m.Timestamp); err == nil {
			post.PostedAt = &ts
		} else if ts, err := time.Parse(time.RFC3339, m.Timestamp); err == nil {
			post.PostedAt = &ts
		}
	}
	if blob, err := json.Marshal(map[string]int{
		"likes":    m.LikeCount,
		"comments": m.CommentsCount,
	}); err == nil {
		post.Metrics = types.JSONText(blob)
	}
	if raw, err := json.Marshal(m); err == nil {
		post.APIPayload = types.JSONText(raw)
	}
	return post
}
