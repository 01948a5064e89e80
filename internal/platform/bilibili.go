package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/FranksOps/magpie/internal/browser"
	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/model"
	"github.com/FranksOps/magpie/internal/session"
)

// Bilibili searches videos through the web search API and pulls top
// replies per video.
type Bilibili struct {
	cfg    *config.Config
	logger *slog.Logger
	client *Client

	apiBase string
	webBase string
}

func NewBilibili(cfg *config.Config, logger *slog.Logger) *Bilibili {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bilibili{
		cfg:     cfg,
		logger:  logger.With("platform", config.PlatformBilibili),
		apiBase: "https://api.bilibili.com",
		webBase: "https://www.bilibili.com",
	}
}

func (b *Bilibili) Platform() string { return config.PlatformBilibili }
func (b *Bilibili) IndexURL() string { return b.webBase }

func (b *Bilibili) InitClient(ctx context.Context, page browser.Page, cookies []browser.Cookie) error {
	client, err := newAPIClient(b.cfg, config.PlatformBilibili)
	if err != nil {
		return err
	}
	client.SetHeader("Referer", b.webBase+"/")
	client.SetHeader("Origin", b.webBase)
	b.client = client
	return bindIdentity(ctx, client, page, cookies)
}

func (b *Bilibili) CheckLogin(ctx context.Context) (bool, error) {
	var resp struct {
		Code int `json:"code"`
		Data struct {
			IsLogin bool `json:"isLogin"`
		} `json:"data"`
	}
	if err := b.client.GetJSON(ctx, b.apiBase+"/x/web-interface/nav", &resp); err != nil {
		return false, err
	}
	return resp.Data.IsLogin, nil
}

func (b *Bilibili) Login(ctx context.Context, page browser.Page) error {
	if b.cfg.LoginType() == "cookie" {
		return cookieLogin(ctx, b.client, b.cfg.Cookies(), b.CheckLogin)
	}
	if err := page.Navigate(ctx, b.webBase+"/login"); err != nil {
		return err
	}
	return waitForLogin(ctx, b.CheckLogin, 0)
}

type biliSearchResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Result []struct {
			Aid         int64  `json:"aid"`
			Bvid        string `json:"bvid"`
			Title       string `json:"title"`
			Description string `json:"description"`
			Author      string `json:"author"`
			Play        any    `json:"play"`
			VideoReview any    `json:"video_review"`
			Favorites   any    `json:"favorites"`
			Like        any    `json:"like"`
			Pubdate     int64  `json:"pubdate"`
		} `json:"result"`
	} `json:"data"`
}

func (b *Bilibili) Search(ctx context.Context, keyword string, limit int) ([]model.ContentItem, error) {
	q := url.Values{}
	q.Set("search_type", "video")
	q.Set("keyword", keyword)
	q.Set("page", "1")
	q.Set("page_size", strconv.Itoa(limit))

	var resp biliSearchResponse
	if err := b.client.GetJSON(ctx, b.apiBase+"/x/web-interface/wbi/search/type?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("search api code %d: %s", resp.Code, resp.Message)
	}

	items := make([]model.ContentItem, 0, limit)
	for _, raw := range resp.Data.Result {
		if len(items) >= limit {
			break
		}
		if raw.Bvid == "" {
			b.logger.Warn("skipping result without bvid", "title", raw.Title)
			continue
		}
		items = append(items, model.ContentItem{
			Platform:     config.PlatformBilibili,
			ContentType:  model.ContentVideo,
			Title:        stripHTML(raw.Title),
			Content:      session.CleanText(raw.Description),
			URL:          b.webBase + "/video/" + raw.Bvid,
			PublishTime:  formatUnix(raw.Pubdate),
			ViewCount:    session.ParseCount(raw.Play),
			LikeCount:    session.ParseCount(raw.Like),
			CommentCount: session.ParseCount(raw.VideoReview),
			ShareCount:   session.ParseCount(raw.Favorites),
			Extra: map[string]string{
				model.ExtraContentID: strconv.FormatInt(raw.Aid, 10),
				"bvid":               raw.Bvid,
				"author":             raw.Author,
			},
		})
	}
	return items, nil
}

type biliReplyResponse struct {
	Code int `json:"code"`
	Data struct {
		Replies []struct {
			Like    any   `json:"like"`
			Ctime   int64 `json:"ctime"`
			Content struct {
				Message string `json:"message"`
			} `json:"content"`
		} `json:"replies"`
	} `json:"data"`
}

func (b *Bilibili) Comments(ctx context.Context, item model.ContentItem, limit int) ([]model.CommentItem, error) {
	q := url.Values{}
	q.Set("type", "1")
	q.Set("oid", item.ContentID())
	q.Set("sort", "1") // hot first
	q.Set("ps", strconv.Itoa(limit))

	var resp biliReplyResponse
	if err := b.client.GetJSON(ctx, b.apiBase+"/x/v2/reply?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("reply api code %d", resp.Code)
	}

	comments := make([]model.CommentItem, 0, len(resp.Data.Replies))
	for _, raw := range resp.Data.Replies {
		if len(comments) >= limit {
			break
		}
		comments = append(comments, model.CommentItem{
			Content:    session.CleanText(raw.Content.Message),
			LikeCount:  session.ParseCount(raw.Like),
			CreateTime: formatUnix(raw.Ctime),
		})
	}
	return comments, nil
}
