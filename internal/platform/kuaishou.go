package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FranksOps/magpie/internal/browser"
	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/model"
	"github.com/FranksOps/magpie/internal/session"
)

const ksSearchQuery = `fragment photoContent on PhotoEntity {
  id
  caption
  likeCount
  viewCount
  duration
  timestamp
}
query visionSearchPhoto($keyword: String, $pcursor: String, $page: String) {
  visionSearchPhoto(keyword: $keyword, pcursor: $pcursor, page: $page) {
    result
    feeds {
      photo {
        ...photoContent
      }
      author {
        name
      }
    }
  }
}`

const ksCommentQuery = `query commentListQuery($photoId: String, $pcursor: String) {
  visionCommentList(photoId: $photoId, pcursor: $pcursor) {
    rootComments {
      content
      likedCount
      timestamp
    }
  }
}`

// Kuaishou speaks GraphQL; both search and comments go through the same
// /graphql endpoint with different operations.
type Kuaishou struct {
	cfg    *config.Config
	logger *slog.Logger
	client *Client

	base string
}

func NewKuaishou(cfg *config.Config, logger *slog.Logger) *Kuaishou {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kuaishou{
		cfg:    cfg,
		logger: logger.With("platform", config.PlatformKuaishou),
		base:   "https://www.kuaishou.com",
	}
}

func (k *Kuaishou) Platform() string { return config.PlatformKuaishou }
func (k *Kuaishou) IndexURL() string { return k.base }

func (k *Kuaishou) InitClient(ctx context.Context, page browser.Page, cookies []browser.Cookie) error {
	client, err := newAPIClient(k.cfg, config.PlatformKuaishou)
	if err != nil {
		return err
	}
	client.SetHeader("Referer", k.base+"/")
	client.SetHeader("Origin", k.base)
	k.client = client
	return bindIdentity(ctx, client, page, cookies)
}

func (k *Kuaishou) graphql(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	payload := map[string]any{
		"operationName": operation,
		"variables":     variables,
		"query":         query,
	}
	return k.client.PostJSON(ctx, k.base+"/graphql", payload, out)
}

func (k *Kuaishou) CheckLogin(ctx context.Context) (bool, error) {
	var resp struct {
		Data struct {
			VisionProfileUserList *struct {
				Result int `json:"result"`
			} `json:"visionProfileUserList"`
		} `json:"data"`
	}
	err := k.graphql(ctx, "visionProfileUserList",
		`query visionProfileUserList { visionProfileUserList { result } }`, map[string]any{}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Data.VisionProfileUserList != nil && resp.Data.VisionProfileUserList.Result == 1, nil
}

func (k *Kuaishou) Login(ctx context.Context, page browser.Page) error {
	if k.cfg.LoginType() == "cookie" {
		return cookieLogin(ctx, k.client, k.cfg.Cookies(), k.CheckLogin)
	}
	if err := page.Navigate(ctx, k.base); err != nil {
		return err
	}
	return waitForLogin(ctx, k.CheckLogin, 0)
}

type ksSearchResponse struct {
	Data struct {
		VisionSearchPhoto struct {
			Result int `json:"result"`
			Feeds  []struct {
				Photo struct {
					ID        string `json:"id"`
					Caption   string `json:"caption"`
					LikeCount any    `json:"likeCount"`
					ViewCount any    `json:"viewCount"`
					Timestamp int64  `json:"timestamp"`
				} `json:"photo"`
				Author struct {
					Name string `json:"name"`
				} `json:"author"`
			} `json:"feeds"`
		} `json:"visionSearchPhoto"`
	} `json:"data"`
}

func (k *Kuaishou) Search(ctx context.Context, keyword string, limit int) ([]model.ContentItem, error) {
	var resp ksSearchResponse
	err := k.graphql(ctx, "visionSearchPhoto", ksSearchQuery, map[string]any{
		"keyword": keyword,
		"pcursor": "",
		"page":    "search",
	}, &resp)
	if err != nil {
		return nil, err
	}
	if r := resp.Data.VisionSearchPhoto.Result; r != 1 {
		return nil, fmt.Errorf("search result code %d", r)
	}

	items := make([]model.ContentItem, 0, limit)
	for _, feed := range resp.Data.VisionSearchPhoto.Feeds {
		if len(items) >= limit {
			break
		}
		if feed.Photo.ID == "" {
			continue
		}
		items = append(items, model.ContentItem{
			Platform:    config.PlatformKuaishou,
			ContentType: model.ContentVideo,
			Title:       truncateTitle(session.CleanText(feed.Photo.Caption)),
			Content:     session.CleanText(feed.Photo.Caption),
			URL:         k.base + "/short-video/" + feed.Photo.ID,
			PublishTime: formatUnix(feed.Photo.Timestamp / 1000),
			LikeCount:   session.ParseCount(feed.Photo.LikeCount),
			ViewCount:   session.ParseCount(feed.Photo.ViewCount),
			Extra: map[string]string{
				model.ExtraContentID: feed.Photo.ID,
				"author":             feed.Author.Name,
			},
		})
	}
	return items, nil
}

type ksCommentResponse struct {
	Data struct {
		VisionCommentList struct {
			RootComments []struct {
				Content    string `json:"content"`
				LikedCount any    `json:"likedCount"`
				Timestamp  int64  `json:"timestamp"`
			} `json:"rootComments"`
		} `json:"visionCommentList"`
	} `json:"data"`
}

func (k *Kuaishou) Comments(ctx context.Context, item model.ContentItem, limit int) ([]model.CommentItem, error) {
	var resp ksCommentResponse
	err := k.graphql(ctx, "commentListQuery", ksCommentQuery, map[string]any{
		"photoId": item.ContentID(),
		"pcursor": "",
	}, &resp)
	if err != nil {
		return nil, err
	}

	raw := resp.Data.VisionCommentList.RootComments
	comments := make([]model.CommentItem, 0, len(raw))
	for _, c := range raw {
		if len(comments) >= limit {
			break
		}
		comments = append(comments, model.CommentItem{
			Content:    session.CleanText(c.Content),
			LikeCount:  session.ParseCount(c.LikedCount),
			CreateTime: formatUnix(c.Timestamp / 1000),
		})
	}
	return comments, nil
}
