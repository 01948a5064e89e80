package platform

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/magpie/internal/browser"
	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/model"
	"github.com/FranksOps/magpie/internal/session"
)

// Tieba has no JSON search API; both search results and thread replies are
// scraped from HTML. Replies inside a thread serve as the comments.
type Tieba struct {
	cfg    *config.Config
	logger *slog.Logger
	client *Client

	base string
}

func NewTieba(cfg *config.Config, logger *slog.Logger) *Tieba {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tieba{
		cfg:    cfg,
		logger: logger.With("platform", config.PlatformTieba),
		base:   "https://tieba.baidu.com",
	}
}

func (t *Tieba) Platform() string { return config.PlatformTieba }
func (t *Tieba) IndexURL() string { return t.base }

func (t *Tieba) InitClient(ctx context.Context, page browser.Page, cookies []browser.Cookie) error {
	client, err := newAPIClient(t.cfg, config.PlatformTieba)
	if err != nil {
		return err
	}
	client.SetHeader("Referer", t.base+"/")
	t.client = client
	return bindIdentity(ctx, client, page, cookies)
}

func (t *Tieba) CheckLogin(ctx context.Context) (bool, error) {
	doc, err := t.client.GetHTML(ctx, t.base)
	if err != nil {
		return false, err
	}
	// logged-in pages carry the user menu, logged-out ones a login button
	return doc.Find(".u_menu_wrap, .media_bar_personal").Length() > 0, nil
}

func (t *Tieba) Login(ctx context.Context, page browser.Page) error {
	if t.cfg.LoginType() == "cookie" {
		return cookieLogin(ctx, t.client, t.cfg.Cookies(), t.CheckLogin)
	}
	if err := page.Navigate(ctx, "https://passport.baidu.com/v2/?login"); err != nil {
		return err
	}
	return waitForLogin(ctx, t.CheckLogin, 0)
}

func (t *Tieba) Search(ctx context.Context, keyword string, limit int) ([]model.ContentItem, error) {
	q := url.Values{}
	q.Set("ie", "utf-8")
	q.Set("qw", keyword)

	doc, err := t.client.GetHTML(ctx, t.base+"/f/search/res?"+q.Encode())
	if err != nil {
		return nil, err
	}

	items := make([]model.ContentItem, 0, limit)
	doc.Find(".s_post").EachWithBreak(func(_ int, post *goquery.Selection) bool {
		titleLink := post.Find(".p_title a")
		href, _ := titleLink.Attr("href")
		threadID := threadIDFromHref(href)
		if threadID == "" {
			t.logger.Warn("search hit without thread link, skipping")
			return true
		}
		items = append(items, model.ContentItem{
			Platform:    config.PlatformTieba,
			ContentType: model.ContentPost,
			Title:       session.CleanText(titleLink.Text()),
			Content:     session.CleanText(post.Find(".p_content").Text()),
			URL:         t.base + "/p/" + threadID,
			PublishTime: session.CleanText(post.Find(".p_date").Text()),
			Extra: map[string]string{
				model.ExtraContentID: threadID,
				"forum":              session.CleanText(post.Find(".p_violet").First().Text()),
			},
		})
		return len(items) < limit
	})
	return items, nil
}

// threadIDFromHref extracts the numeric thread id from hrefs like
// "/p/9011886140?pid=..." .
func threadIDFromHref(href string) string {
	_, after, ok := strings.Cut(href, "/p/")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(after, "?#"); i >= 0 {
		after = after[:i]
	}
	for _, r := range after {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return after
}

// Comments scrapes thread reply floors. A thread page holds 30 floors, so
// the 100-comment cap may need several pages; stop early when a page has
// no floors.
func (t *Tieba) Comments(ctx context.Context, item model.ContentItem, limit int) ([]model.CommentItem, error) {
	comments := make([]model.CommentItem, 0, limit)
	for page := 1; len(comments) < limit && page <= 4; page++ {
		pageURL := t.base + "/p/" + item.ContentID()
		if page > 1 {
			pageURL += "?pn=" + strconv.Itoa(page)
		}

		doc, err := t.client.GetHTML(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			t.logger.Warn("thread page fetch failed, keeping earlier floors", "page", page, "error", err)
			break
		}

		floors := doc.Find(".l_post")
		if floors.Length() == 0 {
			break
		}
		floors.EachWithBreak(func(i int, floor *goquery.Selection) bool {
			text := session.CleanText(floor.Find(".d_post_content").Text())
			if text == "" {
				return true
			}
			comments = append(comments, model.CommentItem{
				Content:    text,
				CreateTime: session.CleanText(floor.Find(".post-tail-wrap .tail-info").Last().Text()),
				IsReply:    i > 0 || page > 1, // floor 1 of page 1 is the opening post
			})
			return len(comments) < limit
		})
	}
	return comments, nil
}
