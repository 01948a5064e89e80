// Package report renders a SearchResult for human consumption: markdown
// for downstream agents, a short text summary for terminals, and indented
// JSON for file export.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/template"

	"github.com/FranksOps/magpie/internal/model"
)

const (
	previewLimit = 500
	commentLimit = 100
	topComments  = 5
)

// section is one platform's block in the rendered output, in deterministic
// platform-name order.
type section struct {
	Platform string
	Items    []model.ContentItem
}

type view struct {
	*model.SearchResult
	Sections   []section
	ErrorNames []string
}

func newView(r *model.SearchResult) view {
	v := view{SearchResult: r}
	for name := range r.Results {
		v.Sections = append(v.Sections, section{Platform: name, Items: r.Results[name]})
	}
	sort.Slice(v.Sections, func(i, j int) bool { return v.Sections[i].Platform < v.Sections[j].Platform })
	for name := range r.Errors {
		v.ErrorNames = append(v.ErrorNames, name)
	}
	sort.Strings(v.ErrorNames)
	return v
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"preview": func(s string) string { return truncate(s, previewLimit) },
		"comment": func(s string) string { return truncate(s, commentLimit) },
		"top": func(comments []model.CommentItem) []model.CommentItem {
			if len(comments) > topComments {
				return comments[:topComments]
			}
			return comments
		},
	}
}

const markdownTmpl = `# 搜索结果: {{.Keyword}}

- 状态: {{.Status}}
- 时间: {{.SearchTime}}
- 耗时: {{printf "%.2f" .Duration}}s
- 内容数: {{.TotalCount}}
{{range .Sections}}
## {{.Platform}} ({{len .Items}})
{{range .Items}}
### {{if .Title}}{{.Title}}{{else}}(无标题){{end}}

链接: {{.URL}}
{{- if .PublishTime}}
发布时间: {{.PublishTime}}
{{- end}}
{{- if .Content}}

{{preview .Content}}
{{- end}}

赞 {{.LikeCount}} | 评论 {{.CommentCount}} | 转发 {{.ShareCount}} | 浏览 {{.ViewCount}}
{{- if .Comments}}

热门评论:
{{- range top .Comments}}
- {{comment .Content}} (赞 {{.LikeCount}})
{{- end}}
{{- end}}
{{end}}{{end}}
{{- if .ErrorNames}}
## 失败平台
{{range $name := .ErrorNames}}
- {{$name}}: {{index $.Errors $name}}
{{- end}}
{{- end}}
`

// WriteMarkdown renders the full markdown report.
func WriteMarkdown(w io.Writer, r *model.SearchResult) error {
	t, err := template.New("markdown").Funcs(funcMap()).Parse(markdownTmpl)
	if err != nil {
		return fmt.Errorf("parse markdown template: %w", err)
	}
	if err := t.Execute(w, newView(r)); err != nil {
		return fmt.Errorf("render markdown report: %w", err)
	}
	return nil
}

const textTmpl = `Search: {{.Keyword}}
Status:   {{.Status}}
Duration: {{printf "%.2f" .Duration}}s
Items:    {{.TotalCount}}

Platforms:
{{- range .Sections}}
  {{.Platform}}: {{len .Items}} items
{{- else}}
  none
{{- end}}

Errors:
{{- range $name := .ErrorNames}}
  {{$name}}: {{index $.Errors $name}}
{{- else}}
  none
{{- end}}
`

// WriteText renders the short terminal summary.
func WriteText(w io.Writer, r *model.SearchResult) error {
	t, err := template.New("text").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}
	if err := t.Execute(w, newView(r)); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}
	return nil
}

// WriteJSON writes the canonical map form as indented JSON.
func WriteJSON(w io.Writer, r *model.SearchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.ToMap()); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
