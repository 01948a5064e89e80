package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/FranksOps/magpie/internal/browser"
	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/model"
	"github.com/FranksOps/magpie/internal/session"
)

// Weibo goes through the mobile gateway, which serves JSON card feeds.
// Post text arrives as HTML and is stripped during mapping.
type Weibo struct {
	cfg    *config.Config
	logger *slog.Logger
	client *Client

	base string
}

func NewWeibo(cfg *config.Config, logger *slog.Logger) *Weibo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Weibo{
		cfg:    cfg,
		logger: logger.With("platform", config.PlatformWeibo),
		base:   "https://m.weibo.cn",
	}
}

func (w *Weibo) Platform() string { return config.PlatformWeibo }
func (w *Weibo) IndexURL() string { return w.base }

func (w *Weibo) InitClient(ctx context.Context, page browser.Page, cookies []browser.Cookie) error {
	client, err := newAPIClient(w.cfg, config.PlatformWeibo)
	if err != nil {
		return err
	}
	client.SetHeader("Referer", w.base+"/")
	client.SetHeader("X-Requested-With", "XMLHttpRequest")
	w.client = client
	return bindIdentity(ctx, client, page, cookies)
}

func (w *Weibo) CheckLogin(ctx context.Context) (bool, error) {
	var resp struct {
		Ok   int `json:"ok"`
		Data struct {
			Login bool `json:"login"`
		} `json:"data"`
	}
	if err := w.client.GetJSON(ctx, w.base+"/api/config", &resp); err != nil {
		return false, err
	}
	return resp.Ok == 1 && resp.Data.Login, nil
}

func (w *Weibo) Login(ctx context.Context, page browser.Page) error {
	if w.cfg.LoginType() == "cookie" {
		return cookieLogin(ctx, w.client, w.cfg.Cookies(), w.CheckLogin)
	}
	if err := page.Navigate(ctx, "https://passport.weibo.com/sso/signin"); err != nil {
		return err
	}
	return waitForLogin(ctx, w.CheckLogin, 0)
}

type weiboCard struct {
	CardType  int         `json:"card_type"`
	Mblog     *weiboMblog `json:"mblog"`
	CardGroup []weiboCard `json:"card_group"`
}

type weiboMblog struct {
	ID             string `json:"id"`
	Mid            string `json:"mid"`
	Text           string `json:"text"`
	CreatedAt      string `json:"created_at"`
	AttitudesCount any    `json:"attitudes_count"`
	CommentsCount  any    `json:"comments_count"`
	RepostsCount   any    `json:"reposts_count"`
	User           struct {
		ScreenName string `json:"screen_name"`
	} `json:"user"`
}

type weiboSearchResponse struct {
	Ok   int `json:"ok"`
	Data struct {
		Cards []weiboCard `json:"cards"`
	} `json:"data"`
}

func (w *Weibo) Search(ctx context.Context, keyword string, limit int) ([]model.ContentItem, error) {
	q := url.Values{}
	q.Set("containerid", "100103type=1&q="+keyword)
	q.Set("page_type", "searchall")
	q.Set("page", "1")

	var resp weiboSearchResponse
	if err := w.client.GetJSON(ctx, w.base+"/api/container/getIndex?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Ok != 1 {
		return nil, fmt.Errorf("search api ok=%d", resp.Ok)
	}

	items := make([]model.ContentItem, 0, limit)
	collect := func(blog *weiboMblog) {
		if blog == nil || blog.ID == "" || len(items) >= limit {
			return
		}
		items = append(items, model.ContentItem{
			Platform:     config.PlatformWeibo,
			ContentType:  model.ContentPost,
			Title:        truncateTitle(stripHTML(blog.Text)),
			Content:      stripHTML(blog.Text),
			URL:          w.base + "/detail/" + blog.ID,
			PublishTime:  blog.CreatedAt,
			LikeCount:    session.ParseCount(blog.AttitudesCount),
			CommentCount: session.ParseCount(blog.CommentsCount),
			ShareCount:   session.ParseCount(blog.RepostsCount),
			Extra: map[string]string{
				model.ExtraContentID: blog.ID,
				"mid":                blog.Mid,
				"author":             blog.User.ScreenName,
			},
		})
	}
	for _, card := range resp.Data.Cards {
		if card.CardType == 9 {
			collect(card.Mblog)
		}
		for _, sub := range card.CardGroup {
			if sub.CardType == 9 {
				collect(sub.Mblog)
			}
		}
	}
	return items, nil
}

type weiboCommentResponse struct {
	Ok   int `json:"ok"`
	Data struct {
		Data []struct {
			Text      string `json:"text"`
			LikeCount any    `json:"like_count"`
			CreatedAt string `json:"created_at"`
		} `json:"data"`
	} `json:"data"`
}

func (w *Weibo) Comments(ctx context.Context, item model.ContentItem, limit int) ([]model.CommentItem, error) {
	q := url.Values{}
	q.Set("id", item.ContentID())
	q.Set("mid", item.Extra["mid"])
	q.Set("max_id_type", "0")

	var resp weiboCommentResponse
	if err := w.client.GetJSON(ctx, w.base+"/comments/hotflow?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Ok != 1 {
		return nil, fmt.Errorf("comment api ok=%d", resp.Ok)
	}

	comments := make([]model.CommentItem, 0, len(resp.Data.Data))
	for _, raw := range resp.Data.Data {
		if len(comments) >= limit {
			break
		}
		comments = append(comments, model.CommentItem{
			Content:    stripHTML(raw.Text),
			LikeCount:  session.ParseCount(raw.LikeCount),
			CreateTime: raw.CreatedAt,
		})
	}
	return comments, nil
}
