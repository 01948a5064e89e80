package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/FranksOps/magpie/internal/browser"
	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/model"
	"github.com/FranksOps/magpie/internal/session"
)

// Zhihu mixes answers and articles in one search feed; the object type
// decides both the canonical URL and the comment endpoint.
type Zhihu struct {
	cfg    *config.Config
	logger *slog.Logger
	client *Client

	base string
}

func NewZhihu(cfg *config.Config, logger *slog.Logger) *Zhihu {
	if logger == nil {
		logger = slog.Default()
	}
	return &Zhihu{
		cfg:    cfg,
		logger: logger.With("platform", config.PlatformZhihu),
		base:   "https://www.zhihu.com",
	}
}

func (z *Zhihu) Platform() string { return config.PlatformZhihu }
func (z *Zhihu) IndexURL() string { return z.base }

func (z *Zhihu) InitClient(ctx context.Context, page browser.Page, cookies []browser.Cookie) error {
	client, err := newAPIClient(z.cfg, config.PlatformZhihu)
	if err != nil {
		return err
	}
	client.SetHeader("Referer", z.base+"/")
	client.SetHeader("x-requested-with", "fetch")
	z.client = client
	return bindIdentity(ctx, client, page, cookies)
}

func (z *Zhihu) CheckLogin(ctx context.Context) (bool, error) {
	var resp struct {
		UID string `json:"uid"`
	}
	if err := z.client.GetJSON(ctx, z.base+"/api/v4/me", &resp); err != nil {
		if IsRiskControl(err) {
			return false, err
		}
		// /api/v4/me answers 401 when logged out
		return false, nil
	}
	return resp.UID != "", nil
}

func (z *Zhihu) Login(ctx context.Context, page browser.Page) error {
	if z.cfg.LoginType() == "cookie" {
		return cookieLogin(ctx, z.client, z.cfg.Cookies(), z.CheckLogin)
	}
	if err := page.Navigate(ctx, z.base+"/signin"); err != nil {
		return err
	}
	return waitForLogin(ctx, z.CheckLogin, 0)
}

type zhihuSearchResponse struct {
	Data []struct {
		Type   string `json:"type"`
		Object struct {
			Type         string          `json:"type"`
			ID           json.RawMessage `json:"id"`
			Title        string          `json:"title"`
			Excerpt      string          `json:"excerpt"`
			Content      string          `json:"content"`
			VoteupCount  any             `json:"voteup_count"`
			CommentCount any             `json:"comment_count"`
			CreatedTime  int64           `json:"created_time"`
			Author       struct {
				Name string `json:"name"`
			} `json:"author"`
			Question struct {
				ID   json.RawMessage `json:"id"`
				Name string          `json:"name"`
			} `json:"question"`
		} `json:"object"`
	} `json:"data"`
}

// rawID renders zhihu ids, which arrive as either strings or numbers.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

func (z *Zhihu) Search(ctx context.Context, keyword string, limit int) ([]model.ContentItem, error) {
	q := url.Values{}
	q.Set("t", "general")
	q.Set("q", keyword)
	q.Set("offset", "0")
	q.Set("limit", strconv.Itoa(limit))

	var resp zhihuSearchResponse
	if err := z.client.GetJSON(ctx, z.base+"/api/v4/search_v3?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	items := make([]model.ContentItem, 0, limit)
	for _, raw := range resp.Data {
		if len(items) >= limit {
			break
		}
		if raw.Type != "search_result" {
			continue
		}
		obj := raw.Object
		id := rawID(obj.ID)
		if id == "" {
			continue
		}

		var (
			contentType model.ContentType
			itemURL     string
			title       string
			questionID  string
		)
		switch obj.Type {
		case "answer":
			contentType = model.ContentAnswer
			qid := rawID(obj.Question.ID)
			if qid == "" {
				z.logger.Warn("answer without question id, skipping", "id", id)
				continue
			}
			itemURL = fmt.Sprintf("%s/question/%s/answer/%s", z.base, qid, id)
			title = stripHTML(obj.Question.Name)
			questionID = qid
		case "article":
			contentType = model.ContentArticle
			itemURL = "https://zhuanlan.zhihu.com/p/" + id
			title = stripHTML(obj.Title)
		default:
			continue
		}

		body := obj.Excerpt
		if body == "" {
			body = obj.Content
		}
		extra := map[string]string{
			model.ExtraContentID: id,
			"content_type":       obj.Type,
			"author":             obj.Author.Name,
		}
		if questionID != "" {
			extra["question_id"] = questionID
		}
		items = append(items, model.ContentItem{
			Platform:     config.PlatformZhihu,
			ContentType:  contentType,
			Title:        title,
			Content:      stripHTML(body),
			URL:          itemURL,
			PublishTime:  formatUnix(obj.CreatedTime),
			LikeCount:    session.ParseCount(obj.VoteupCount),
			CommentCount: session.ParseCount(obj.CommentCount),
			Extra:        extra,
		})
	}
	return items, nil
}

type zhihuCommentResponse struct {
	Data []struct {
		Content     string `json:"content"`
		VoteCount   any    `json:"vote_count"`
		CreatedTime int64  `json:"created_time"`
	} `json:"data"`
}

func (z *Zhihu) Comments(ctx context.Context, item model.ContentItem, limit int) ([]model.CommentItem, error) {
	objType := item.Extra["content_type"]
	if objType != "answer" && objType != "article" {
		return nil, fmt.Errorf("unsupported comment object type %q", objType)
	}

	q := url.Values{}
	q.Set("order", "normal")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", "0")
	endpoint := fmt.Sprintf("%s/api/v4/%ss/%s/root_comments?%s", z.base, objType, item.ContentID(), q.Encode())

	var resp zhihuCommentResponse
	if err := z.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	comments := make([]model.CommentItem, 0, len(resp.Data))
	for _, raw := range resp.Data {
		if len(comments) >= limit {
			break
		}
		comments = append(comments, model.CommentItem{
			Content:    stripHTML(raw.Content),
			LikeCount:  session.ParseCount(raw.VoteCount),
			CreateTime: formatUnix(raw.CreatedTime),
		})
	}
	return comments, nil
}
