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

// Xiaohongshu searches notes through the edith API. Note pages require an
// xsec_token issued with each search result, carried in the extra bag.
type Xiaohongshu struct {
	cfg    *config.Config
	logger *slog.Logger
	client *Client

	apiBase string
	webBase string
}

func NewXiaohongshu(cfg *config.Config, logger *slog.Logger) *Xiaohongshu {
	if logger == nil {
		logger = slog.Default()
	}
	return &Xiaohongshu{
		cfg:     cfg,
		logger:  logger.With("platform", config.PlatformXiaohongshu),
		apiBase: "https://edith.xiaohongshu.com",
		webBase: "https://www.xiaohongshu.com",
	}
}

func (x *Xiaohongshu) Platform() string { return config.PlatformXiaohongshu }
func (x *Xiaohongshu) IndexURL() string { return x.webBase }

func (x *Xiaohongshu) InitClient(ctx context.Context, page browser.Page, cookies []browser.Cookie) error {
	client, err := newAPIClient(x.cfg, config.PlatformXiaohongshu)
	if err != nil {
		return err
	}
	client.SetHeader("Referer", x.webBase+"/")
	client.SetHeader("Origin", x.webBase)
	x.client = client
	return bindIdentity(ctx, client, page, cookies)
}

func (x *Xiaohongshu) CheckLogin(ctx context.Context) (bool, error) {
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Guest bool `json:"guest"`
		} `json:"data"`
	}
	if err := x.client.GetJSON(ctx, x.apiBase+"/api/sns/web/v2/user/me", &resp); err != nil {
		return false, err
	}
	return resp.Success && !resp.Data.Guest, nil
}

func (x *Xiaohongshu) Login(ctx context.Context, page browser.Page) error {
	if x.cfg.LoginType() == "cookie" {
		return cookieLogin(ctx, x.client, x.cfg.Cookies(), x.CheckLogin)
	}
	if err := page.Navigate(ctx, x.webBase); err != nil {
		return err
	}
	return waitForLogin(ctx, x.CheckLogin, 0)
}

type xhsSearchResponse struct {
	Success bool `json:"success"`
	Code    int  `json:"code"`
	Data    struct {
		Items []struct {
			ID        string `json:"id"`
			ModelType string `json:"model_type"`
			XsecToken string `json:"xsec_token"`
			NoteCard  struct {
				DisplayTitle string `json:"display_title"`
				Desc         string `json:"desc"`
				Time         int64  `json:"time"`
				User         struct {
					Nickname string `json:"nickname"`
				} `json:"user"`
				InteractInfo struct {
					LikedCount     any `json:"liked_count"`
					CommentCount   any `json:"comment_count"`
					CollectedCount any `json:"collected_count"`
					ShareCount     any `json:"share_count"`
				} `json:"interact_info"`
			} `json:"note_card"`
		} `json:"items"`
	} `json:"data"`
}

func (x *Xiaohongshu) Search(ctx context.Context, keyword string, limit int) ([]model.ContentItem, error) {
	payload := map[string]any{
		"keyword":   keyword,
		"page":      1,
		"page_size": limit,
		"sort":      "general",
		"note_type": 0,
	}
	var resp xhsSearchResponse
	if err := x.client.PostJSON(ctx, x.apiBase+"/api/sns/web/v1/search/notes", payload, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("search api code %d", resp.Code)
	}

	items := make([]model.ContentItem, 0, limit)
	for _, raw := range resp.Data.Items {
		if len(items) >= limit {
			break
		}
		if raw.ModelType != "note" || raw.ID == "" {
			continue
		}
		card := raw.NoteCard
		noteURL := x.webBase + "/explore/" + raw.ID
		if raw.XsecToken != "" {
			noteURL += "?xsec_token=" + url.QueryEscape(raw.XsecToken)
		}
		items = append(items, model.ContentItem{
			Platform:     config.PlatformXiaohongshu,
			ContentType:  model.ContentNote,
			Title:        session.CleanText(card.DisplayTitle),
			Content:      session.CleanText(card.Desc),
			URL:          noteURL,
			PublishTime:  formatUnix(card.Time / 1000), // milliseconds
			LikeCount:    session.ParseCount(card.InteractInfo.LikedCount),
			CommentCount: session.ParseCount(card.InteractInfo.CommentCount),
			ShareCount:   session.ParseCount(card.InteractInfo.ShareCount),
			ViewCount:    session.ParseCount(card.InteractInfo.CollectedCount),
			Extra: map[string]string{
				model.ExtraContentID: raw.ID,
				"xsec_token":         raw.XsecToken,
				"author":             card.User.Nickname,
			},
		})
	}
	return items, nil
}

type xhsCommentResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Comments []struct {
			Content    string `json:"content"`
			LikeCount  any    `json:"like_count"`
			CreateTime int64  `json:"create_time"`
		} `json:"comments"`
	} `json:"data"`
}

func (x *Xiaohongshu) Comments(ctx context.Context, item model.ContentItem, limit int) ([]model.CommentItem, error) {
	q := url.Values{}
	q.Set("note_id", item.ContentID())
	q.Set("cursor", "")
	q.Set("top_comment_id", "")
	q.Set("image_formats", "jpg,webp,avif")
	if token := item.Extra["xsec_token"]; token != "" {
		q.Set("xsec_token", token)
	}

	var resp xhsCommentResponse
	if err := x.client.GetJSON(ctx, x.apiBase+"/api/sns/web/v2/comment/page?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("comment api rejected note %s", item.ContentID())
	}

	comments := make([]model.CommentItem, 0, len(resp.Data.Comments))
	for _, raw := range resp.Data.Comments {
		if len(comments) >= limit {
			break
		}
		comments = append(comments, model.CommentItem{
			Content:    session.CleanText(raw.Content),
			LikeCount:  session.ParseCount(raw.LikeCount),
			CreateTime: formatUnix(raw.CreateTime / 1000),
		})
	}
	return comments, nil
}
