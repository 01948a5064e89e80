// Package model defines the normalized entities every platform session
// produces and the aggregator consumes. The canonical wire shape is the
// map form produced by ToMap, which the façade serializes directly.
package model

import (
	"time"
)

// ContentType classifies a piece of platform content.
type ContentType string

const (
	ContentVideo    ContentType = "video"    // bilibili, douyin, kuaishou
	ContentNote     ContentType = "note"     // xiaohongshu
	ContentPost     ContentType = "post"     // weibo, tieba
	ContentAnswer   ContentType = "answer"   // zhihu
	ContentArticle  ContentType = "article"  // zhihu
	ContentQuestion ContentType = "question" // zhihu
)

// ExtraContentID is the extra-bag key every adapter sets when comment
// enrichment is possible for an item. Its absence means "comments cannot be
// fetched for this item" and is not an error.
const ExtraContentID = "content_id"

// CommentItem is one comment attached to a ContentItem. Comments carry no
// identity and are never referenced after attachment.
type CommentItem struct {
	Content   string `json:"content"`
	LikeCount int    `json:"like_count"`
	// CreateTime is the platform-native timestamp string, never reparsed.
	CreateTime string `json:"create_time"`
	IsReply    bool   `json:"is_reply"`
}

// ContentItem is one normalized piece of platform content with an external
// link. Interaction counters default to 0 when a platform hides a metric.
type ContentItem struct {
	Platform    string      `json:"platform"`
	ContentType ContentType `json:"content_type"`
	Title       string      `json:"title"`
	// Content is the body text; empty for pure-video platforms.
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishTime string `json:"publish_time"`

	LikeCount    int `json:"like_count"`
	CommentCount int `json:"comment_count"`
	ShareCount   int `json:"share_count"`
	ViewCount    int `json:"view_count"`

	// Comments preserve the platform's native ordering.
	Comments []CommentItem `json:"comments"`
	// Extra carries platform-specific continuation data (content ids,
	// secondary tokens). Adapters access it through typed helpers.
	Extra map[string]string `json:"extra"`
}

// ContentID returns the extra-bag content id, or "" when enrichment is
// impossible for this item.
func (c *ContentItem) ContentID() string {
	if c.Extra == nil {
		return ""
	}
	return c.Extra[ExtraContentID]
}

// Status summarizes how many requested platforms succeeded.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// SearchResult aggregates per-platform outcomes for one keyword search.
// It is mutated append-only while a run is in flight (one entry per platform
// in either Results or Errors, never both) and treated as immutable after
// Finalize.
type SearchResult struct {
	ID         string `json:"id"`
	Keyword    string `json:"keyword"`
	SearchTime string `json:"search_time"`

	// Results maps canonical platform name to its items. Platforms with zero
	// items are omitted entirely.
	Results map[string][]ContentItem `json:"results"`
	// Errors maps platform name to failure message, present only for
	// platforms that failed.
	Errors map[string]string `json:"errors"`

	Status Status `json:"status"`
	// Duration is the elapsed wall-clock time of the run in seconds.
	Duration float64 `json:"duration"`
}

// NewSearchResult creates an empty result stamped with the session start time.
func NewSearchResult(id, keyword string) *SearchResult {
	return &SearchResult{
		ID:         id,
		Keyword:    keyword,
		SearchTime: time.Now().Format(time.RFC3339),
		Results:    make(map[string][]ContentItem),
		Errors:     make(map[string]string),
		Status:     StatusSuccess,
	}
}

// AddResult records a platform's items. Empty item sets are dropped so the
// results map never holds empty sequences.
func (r *SearchResult) AddResult(platform string, items []ContentItem) {
	if len(items) == 0 {
		return
	}
	r.Results[platform] = items
}

// AddError records a platform failure.
func (r *SearchResult) AddError(platform, message string) {
	r.Errors[platform] = message
}

// Finalize computes the duration since start and derives the status:
// failed iff no results and at least one error, partial iff both present,
// success otherwise.
func (r *SearchResult) Finalize(start time.Time) {
	r.Duration = time.Since(start).Seconds()
	switch {
	case len(r.Results) == 0 && len(r.Errors) > 0:
		r.Status = StatusFailed
	case len(r.Results) > 0 && len(r.Errors) > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusSuccess
	}
}

// TotalCount returns the number of items across all platforms.
func (r *SearchResult) TotalCount() int {
	total := 0
	for _, items := range r.Results {
		total += len(items)
	}
	return total
}

// AllItems flattens every platform's items into one slice. Intra-platform
// order is preserved; platform iteration order is unspecified.
func (r *SearchResult) AllItems() []ContentItem {
	items := make([]ContentItem, 0, r.TotalCount())
	for _, platformItems := range r.Results {
		items = append(items, platformItems...)
	}
	return items
}
