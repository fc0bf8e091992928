package social

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/services"
)

// TikTokClient queries the TikTok open API for videos under a hashtag.
type TikTokClient struct {
	platformID string

	queryURL string // overridable in tests

	client *http.Client
	log    *slog.Logger
}

// NewTikTokClient creates a TikTok video query client
func NewTikTokClient(platformID string) *TikTokClient {
	return &TikTokClient{
		platformID: platformID,
		queryURL:   "https://open.tiktokapis.com/v2/research/video/query/",
		client:     newHTTPClient(),
		log:        slog.Default().With(slog.String("client", "tiktok")),
	}
}

var _ services.HashtagMediaClient = (*TikTokClient)(nil)

// SearchHashtagMedia queries recent videos carrying a hashtag. The access
// token must carry the research scope; without it TikTok answers 401 and the
// caller falls back to the database.
func (c *TikTokClient) SearchHashtagMedia(ctx context.Context, tag string, accessToken string, limit int) ([]*entities.Post, error) {
	query := map[string]any{
		"query": map[string]any{
			"and": []map[string]any{
				{
					"operation":  "IN",
					"field_name": "hashtag_name",
					"field_values": []string{
						tag,
					},
				},
			},
		},
		"max_count": limit,
	}
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)

	rawURL := c.queryURL + "?fields=id,username,video_description,create_time,like_count,comment_count,view_count,share_count"
	body, err := postJSON(ctx, c.client, "tiktok", "video_query", rawURL, header, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			Videos []tiktokVideo `json:"videos"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse video query response: %w", err)
	}
	// TikTok reports some rejections inside a 200 body
	if resp.Error.Code != "" && resp.Error.Code != "ok" {
		return nil, &APIError{
			Platform:   "tiktok",
			Operation:  "video_query",
			StatusCode: http.StatusOK,
			Body:       resp.Error.Message,
		}
	}

	posts := make([]*entities.Post, 0, len(resp.Data.Videos))
	for _, v := range resp.Data.Videos {
		posts = append(posts, c.toPost(v))
	}

	c.log.Debug("hashtag videos fetched",
		slog.String("tag", tag),
		slog.Int("count", len(posts)))
	return posts, nil
}

type tiktokVideo struct {
	ID           json.Number `json:"id"`
	Username     string      `json:"username"`
	Description  string      `json:"video_description"`
	CreateTime   int64       `json:"create_time"`
	LikeCount    int         `json:"like_count"`
	CommentCount int         `json:"comment_count"`
	ViewCount    int         `json:"view_count"`
	ShareCount   int         `json:"share_count"`
}

func (c *TikTokClient) toPost(v tiktokVideo) *entities.Post {
	post := &entities.Post{
		ID:         v.ID.String(),
		PlatformID: c.platformID,
		Author:     v.Username,
		Caption:    v.Description,
		Source:     "tiktok_api",
		FetchedAt:  time.Now(),
	}
	if v.CreateTime > 0 {
		ts := time.Unix(v.CreateTime, 0).UTC()
		post.PostedAt = &ts
	}
	if v.Username != "" && v.ID.String() != "" {
		link := "https://www.tiktok.com/@" + v.Username + "/video/" + v.ID.String()
		post.MediaURL = &link
	}
	if blob, err := json.Marshal(map[string]int{
		"likes":    v.LikeCount,
		"comments": v.CommentCount,
		"views":    v.ViewCount,
		"shares":   v.ShareCount,
	}); err == nil {
		post.Metrics = types.JSONText(blob)
	}
	if raw, err := json.Marshal(v); err == nil {
		post.APIPayload = types.JSONText(raw)
	}
	return post
}
