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

// Douyin uses the web general-search endpoint, which returns full video
// payloads in a single call.
type Douyin struct {
	cfg    *config.Config
	logger *slog.Logger
	client *Client

	base string
}

func NewDouyin(cfg *config.Config, logger *slog.Logger) *Douyin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Douyin{
		cfg:    cfg,
		logger: logger.With("platform", config.PlatformDouyin),
		base:   "https://www.douyin.com",
	}
}

func (d *Douyin) Platform() string { return config.PlatformDouyin }
func (d *Douyin) IndexURL() string { return d.base }

func (d *Douyin) InitClient(ctx context.Context, page browser.Page, cookies []browser.Cookie) error {
	client, err := newAPIClient(d.cfg, config.PlatformDouyin)
	if err != nil {
		return err
	}
	client.SetHeader("Referer", d.base+"/")
	d.client = client
	return bindIdentity(ctx, client, page, cookies)
}

func (d *Douyin) CheckLogin(ctx context.Context) (bool, error) {
	var resp struct {
		StatusCode int    `json:"status_code"`
		UserUID    string `json:"user_uid"`
	}
	if err := d.client.GetJSON(ctx, d.base+"/aweme/v1/web/query/user/?device_platform=webapp", &resp); err != nil {
		return false, err
	}
	return resp.StatusCode == 0 && resp.UserUID != "", nil
}

func (d *Douyin) Login(ctx context.Context, page browser.Page) error {
	if d.cfg.LoginType() == "cookie" {
		return cookieLogin(ctx, d.client, d.cfg.Cookies(), d.CheckLogin)
	}
	// the login dialog opens on the index page itself
	if err := page.Navigate(ctx, d.base); err != nil {
		return err
	}
	return waitForLogin(ctx, d.CheckLogin, 0)
}

type douyinSearchResponse struct {
	StatusCode int `json:"status_code"`
	Data       []struct {
		Type      int `json:"type"`
		AwemeInfo struct {
			AwemeID    string `json:"aweme_id"`
			Desc       string `json:"desc"`
			CreateTime int64  `json:"create_time"`
			ShareURL   string `json:"share_url"`
			Author     struct {
				Nickname string `json:"nickname"`
			} `json:"author"`
			Statistics struct {
				DiggCount    any `json:"digg_count"`
				CommentCount any `json:"comment_count"`
				ShareCount   any `json:"share_count"`
				PlayCount    any `json:"play_count"`
			} `json:"statistics"`
		} `json:"aweme_info"`
	} `json:"data"`
}

func (d *Douyin) Search(ctx context.Context, keyword string, limit int) ([]model.ContentItem, error) {
	q := url.Values{}
	q.Set("device_platform", "webapp")
	q.Set("keyword", keyword)
	q.Set("search_channel", "aweme_general")
	q.Set("offset", "0")
	q.Set("count", strconv.Itoa(limit))

	var resp douyinSearchResponse
	if err := d.client.GetJSON(ctx, d.base+"/aweme/v1/web/general/search/single/?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != 0 {
		return nil, fmt.Errorf("search api status_code %d", resp.StatusCode)
	}

	items := make([]model.ContentItem, 0, limit)
	for _, raw := range resp.Data {
		if len(items) >= limit {
			break
		}
		info := raw.AwemeInfo
		if info.AwemeID == "" {
			// mixed result feed: user cards, topic cards
			continue
		}
		itemURL := info.ShareURL
		if itemURL == "" {
			itemURL = d.base + "/video/" + info.AwemeID
		}
		items = append(items, model.ContentItem{
			Platform:     config.PlatformDouyin,
			ContentType:  model.ContentVideo,
			Title:        session.CleanText(info.Desc),
			URL:          itemURL,
			PublishTime:  formatUnix(info.CreateTime),
			LikeCount:    session.ParseCount(info.Statistics.DiggCount),
			CommentCount: session.ParseCount(info.Statistics.CommentCount),
			ShareCount:   session.ParseCount(info.Statistics.ShareCount),
			ViewCount:    session.ParseCount(info.Statistics.PlayCount),
			Extra: map[string]string{
				model.ExtraContentID: info.AwemeID,
				"author":             info.Author.Nickname,
			},
		})
	}
	return items, nil
}

type douyinCommentResponse struct {
	StatusCode int `json:"status_code"`
	Comments   []struct {
		Text       string `json:"text"`
		DiggCount  any    `json:"digg_count"`
		CreateTime int64  `json:"create_time"`
	} `json:"comments"`
}

func (d *Douyin) Comments(ctx context.Context, item model.ContentItem, limit int) ([]model.CommentItem, error) {
	q := url.Values{}
	q.Set("device_platform", "webapp")
	q.Set("aweme_id", item.ContentID())
	q.Set("cursor", "0")
	q.Set("count", strconv.Itoa(limit))

	var resp douyinCommentResponse
	if err := d.client.GetJSON(ctx, d.base+"/aweme/v1/web/comment/list/?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != 0 {
		return nil, fmt.Errorf("comment api status_code %d", resp.StatusCode)
	}

	comments := make([]model.CommentItem, 0, len(resp.Comments))
	for _, raw := range resp.Comments {
		if len(comments) >= limit {
			break
		}
		comments = append(comments, model.CommentItem{
			Content:    session.CleanText(raw.Text),
			LikeCount:  session.ParseCount(raw.DiggCount),
			CreateTime: formatUnix(raw.CreateTime),
		})
	}
	return comments, nil
}
