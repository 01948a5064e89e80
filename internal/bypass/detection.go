// Package bypass classifies platform risk-control responses so search
// failures carry a cause instead of a bare HTTP status. Detection is
// best-effort; platforms rotate their challenge pages frequently.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the subset of an HTTP exchange the detectors inspect.
type Response struct {
	StatusCode int
	Headers    map[string][]string
	Body       []byte
}

// Detector examines a response to determine whether a platform risk-control
// mechanism blocked or challenged the request.
type Detector func(res *Response) (detected bool, source string)

// DefaultDetectors returns the standard list of risk-control detectors for
// the supported platforms.
func DefaultDetectors() []Detector {
	return []Detector{
		detectSliderCaptcha,
		detectDouyinVerify,
		detectXiaohongshuRisk,
		detectZhihuRisk,
		detectWeiboGateway,
		detectGenericBlock,
	}
}

// Analyze runs the response through all detectors and returns the first
// detection source, or ("", false) when nothing triggered.
func Analyze(res *Response, detectors []Detector) (string, bool) {
	if res == nil {
		return "", false
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return source, true
		}
	}
	return "", false
}

func getHeader(headers map[string][]string, key string) string {
	if vals, ok := headers[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	// Case-insensitive fallback
	lowerKey := strings.ToLower(key)
	for k, vals := range headers {
		if strings.ToLower(k) == lowerKey && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

// detectSliderCaptcha looks for the slider verification pages bilibili and
// kuaishou serve when a session looks automated.
func detectSliderCaptcha(res *Response) (bool, string) {
	if bytes.Contains(res.Body, []byte("geetest")) ||
		bytes.Contains(res.Body, []byte("gt_captcha")) ||
		bytes.Contains(res.Body, []byte("滑动验证")) {
		return true, "slider_captcha"
	}
	return false, ""
}

// detectDouyinVerify looks for douyin's verify_page redirect and the
// "verify" JSON status it embeds in blocked API responses.
func detectDouyinVerify(res *Response) (bool, string) {
	if bytes.Contains(res.Body, []byte("verify_page")) ||
		bytes.Contains(res.Body, []byte("\"status_code\":2483")) ||
		bytes.Contains(res.Body, []byte("second_verify")) {
		return true, "douyin_verify"
	}
	return false, ""
}

// detectXiaohongshuRisk matches xiaohongshu's risk-control error codes
// (-461 slider, 300012/300013 ip or account flagged).
func detectXiaohongshuRisk(res *Response) (bool, string) {
	if bytes.Contains(res.Body, []byte("\"code\":-461")) ||
		bytes.Contains(res.Body, []byte("\"code\":300012")) ||
		bytes.Contains(res.Body, []byte("\"code\":300013")) {
		return true, "xiaohongshu_risk"
	}
	return false, ""
}

// detectZhihuRisk matches zhihu's unsafe-request interception.
func detectZhihuRisk(res *Response) (bool, string) {
	if res.StatusCode == http.StatusForbidden &&
		(bytes.Contains(res.Body, []byte("10001")) || bytes.Contains(res.Body, []byte("系统监测到您的网络环境存在异常"))) {
		return true, "zhihu_risk"
	}
	return false, ""
}

// detectWeiboGateway matches weibo's mobile gateway throttle page.
func detectWeiboGateway(res *Response) (bool, string) {
	if res.StatusCode == http.StatusTeapot ||
		bytes.Contains(res.Body, []byte("Sina Visitor System")) {
		return true, "weibo_gateway"
	}
	return false, ""
}

// detectGenericBlock catches plain 403/412 block pages with no richer
// signature; 412 is tieba and bilibili's request-intercepted status.
func detectGenericBlock(res *Response) (bool, string) {
	if res.StatusCode == http.StatusPreconditionFailed {
		return true, "request_intercepted"
	}
	if res.StatusCode == http.StatusForbidden {
		server := strings.ToLower(getHeader(res.Headers, "Server"))
		if server != "" || len(res.Body) > 0 {
			return true, "access_denied"
		}
	}
	return false, ""
}
