package model

// Canonical dictionary conversion. The map form is the façade's transport
// shape; round-tripping through it must be lossless for well-formed values.

// ToMap converts a CommentItem to its canonical dictionary form.
func (c CommentItem) ToMap() map[string]any {
	return map[string]any{
		"content":     c.Content,
		"like_count":  c.LikeCount,
		"create_time": c.CreateTime,
		"is_reply":    c.IsReply,
	}
}

// CommentFromMap builds a CommentItem from its dictionary form. Missing keys
// default to zero values.
func CommentFromMap(m map[string]any) CommentItem {
	return CommentItem{
		Content:    asString(m["content"]),
		LikeCount:  asInt(m["like_count"]),
		CreateTime: asString(m["create_time"]),
		IsReply:    asBool(m["is_reply"]),
	}
}

// ToMap converts a ContentItem to its canonical dictionary form.
func (c ContentItem) ToMap() map[string]any {
	comments := make([]map[string]any, 0, len(c.Comments))
	for _, cm := range c.Comments {
		comments = append(comments, cm.ToMap())
	}
	extra := make(map[string]string, len(c.Extra))
	for k, v := range c.Extra {
		extra[k] = v
	}
	return map[string]any{
		"platform":      c.Platform,
		"content_type":  string(c.ContentType),
		"title":         c.Title,
		"content":       c.Content,
		"url":           c.URL,
		"publish_time":  c.PublishTime,
		"like_count":    c.LikeCount,
		"comment_count": c.CommentCount,
		"share_count":   c.ShareCount,
		"view_count":    c.ViewCount,
		"comments":      comments,
		"extra":         extra,
	}
}

// ContentFromMap builds a ContentItem from its dictionary form. Empty or
// missing comments/extra come back nil, so a ToMap round-trip reproduces the
// original item exactly.
func ContentFromMap(m map[string]any) ContentItem {
	item := ContentItem{
		Platform:     asString(m["platform"]),
		ContentType:  ContentType(asString(m["content_type"])),
		Title:        asString(m["title"]),
		Content:      asString(m["content"]),
		URL:          asString(m["url"]),
		PublishTime:  asString(m["publish_time"]),
		LikeCount:    asInt(m["like_count"]),
		CommentCount: asInt(m["comment_count"]),
		ShareCount:   asInt(m["share_count"]),
		ViewCount:    asInt(m["view_count"]),
	}

	switch extra := m["extra"].(type) {
	case map[string]string:
		if len(extra) > 0 {
			item.Extra = make(map[string]string, len(extra))
			for k, v := range extra {
				item.Extra[k] = v
			}
		}
	case map[string]any:
		if len(extra) > 0 {
			item.Extra = make(map[string]string, len(extra))
			for k, v := range extra {
				item.Extra[k] = asString(v)
			}
		}
	}

	switch comments := m["comments"].(type) {
	case []map[string]any:
		for _, cm := range comments {
			item.Comments = append(item.Comments, CommentFromMap(cm))
		}
	case []any:
		for _, raw := range comments {
			if cm, ok := raw.(map[string]any); ok {
				item.Comments = append(item.Comments, CommentFromMap(cm))
			}
		}
	}
	return item
}

// ToMap converts a SearchResult to its canonical dictionary form.
func (r *SearchResult) ToMap() map[string]any {
	results := make(map[string]any, len(r.Results))
	for platform, items := range r.Results {
		converted := make([]map[string]any, 0, len(items))
		for _, item := range items {
			converted = append(converted, item.ToMap())
		}
		results[platform] = converted
	}
	errs := make(map[string]string, len(r.Errors))
	for platform, msg := range r.Errors {
		errs[platform] = msg
	}
	return map[string]any{
		"id":          r.ID,
		"keyword":     r.Keyword,
		"search_time": r.SearchTime,
		"status":      string(r.Status),
		"duration":    r.Duration,
		"total_count": r.TotalCount(),
		"results":     results,
		"errors":      errs,
	}
}

// ResultFromMap builds a SearchResult from its dictionary form.
func ResultFromMap(m map[string]any) *SearchResult {
	r := &SearchResult{
		ID:         asString(m["id"]),
		Keyword:    asString(m["keyword"]),
		SearchTime: asString(m["search_time"]),
		Status:     Status(asString(m["status"])),
		Duration:   asFloat(m["duration"]),
		Results:    make(map[string][]ContentItem),
		Errors:     make(map[string]string),
	}

	switch results := m["results"].(type) {
	case map[string]any:
		for platform, raw := range results {
			r.Results[platform] = contentListFromAny(raw)
		}
	}

	switch errs := m["errors"].(type) {
	case map[string]string:
		for platform, msg := range errs {
			r.Errors[platform] = msg
		}
	case map[string]any:
		for platform, msg := range errs {
			r.Errors[platform] = asString(msg)
		}
	}
	return r
}

func contentListFromAny(raw any) []ContentItem {
	switch list := raw.(type) {
	case []map[string]any:
		items := make([]ContentItem, 0, len(list))
		for _, m := range list {
			items = append(items, ContentFromMap(m))
		}
		return items
	case []any:
		items := make([]ContentItem, 0, len(list))
		for _, entry := range list {
			if m, ok := entry.(map[string]any); ok {
				items = append(items, ContentFromMap(m))
			}
		}
		return items
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		// JSON decoding yields float64 for all numbers.
		return int(n)
	}
	return 0
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
