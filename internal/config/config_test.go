package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizePlatform(t *testing.T) {
	cfg := Default()

	cases := []struct {
		in   string
		want string
	}{
		{"bilibili", "bilibili"},
		{"  Bilibili ", "bilibili"},
		{"xhs", "xiaohongshu"},
		{"WB", "weibo"},
		{"dy", "douyin"},
		{"ks", "kuaishou"},
		{"bili", "bilibili"},
		{"unknown-thing", "unknown-thing"},
	}
	for _, tc := range cases {
		if got := cfg.NormalizePlatform(tc.in); got != tc.want {
			t.Errorf("NormalizePlatform(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePlatform_Idempotent(t *testing.T) {
	cfg := Default()
	for _, name := range []string{"wb", "xhs", "zhihu", "foo", " Bili "} {
		once := cfg.NormalizePlatform(name)
		twice := cfg.NormalizePlatform(once)
		if once != twice {
			t.Errorf("normalization not idempotent for %q: %q != %q", name, once, twice)
		}
	}
}

func TestAliasResolution(t *testing.T) {
	cfg := Default()
	if cfg.NormalizePlatform("wb") != cfg.NormalizePlatform("weibo") {
		t.Errorf("wb and weibo should normalize to the same canonical name")
	}
}

func TestIsSupported(t *testing.T) {
	cfg := Default()

	for _, name := range []string{"bilibili", "xhs", "WB", "tieba"} {
		if !cfg.IsSupported(name) {
			t.Errorf("expected %q to be supported", name)
		}
	}
	for _, name := range []string{"foo", "youtube", ""} {
		if cfg.IsSupported(name) {
			t.Errorf("expected %q to be unsupported", name)
		}
	}
}

func TestCommentCapFor(t *testing.T) {
	cfg := Default()

	cases := map[string]int{
		"bilibili": 10,
		"zhihu":    20,
		"tieba":    100,
		"ks":       10,
		// Unknown names fall back to the default cap.
		"foo": DefaultCommentCap,
	}
	for name, want := range cases {
		if got := cfg.CommentCapFor(name); got != want {
			t.Errorf("CommentCapFor(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestUpdate(t *testing.T) {
	cfg := Default()

	applied := cfg.Update(map[string]any{
		"login_type":     "cookie",
		"crawl_interval": 0.5,
		"headless":       true,
		"max_contents":   5,
		// Unknown keys must be silently ignored.
		"no_such_field": 42,
		// Wrong types must be ignored too.
		"cookies": 123,
	})

	if len(applied) != 4 {
		t.Fatalf("expected 4 applied keys, got %v", applied)
	}
	if cfg.LoginType() != "cookie" {
		t.Errorf("login_type not applied")
	}
	if !cfg.Headless() {
		t.Errorf("headless not applied")
	}
	if cfg.MaxContents() != 5 {
		t.Errorf("max_contents not applied")
	}
	if got := cfg.CrawlInterval().Seconds(); got != 0.5 {
		t.Errorf("crawl_interval = %v, want 0.5", got)
	}

	applied = cfg.Update(map[string]any{"cookies": "SESSDATA=abc"})
	if len(applied) != 1 {
		t.Fatalf("expected cookies applied, got %v", applied)
	}
	if cfg.Cookies() != "SESSDATA=abc" {
		t.Errorf("cookies not applied, got %q", cfg.Cookies())
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MaxContents() != 8 {
		t.Errorf("default max_contents = %d, want 8", cfg.MaxContents())
	}
	if got := cfg.CrawlInterval().Seconds(); got != 1.5 {
		t.Errorf("default crawl_interval = %v, want 1.5", got)
	}
	if cfg.LoginType() != "qrcode" {
		t.Errorf("default login type = %q, want qrcode", cfg.LoginType())
	}
	if len(cfg.Supported()) != 7 {
		t.Errorf("expected 7 supported platforms, got %d", len(cfg.Supported()))
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "magpie.yaml")
	data := []byte("limits:\n  max_contents: 3\nnetwork:\n  crawl_interval: 2.5\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxContents() != 3 {
		t.Errorf("max_contents = %d, want 3", cfg.MaxContents())
	}
	if got := cfg.CrawlInterval().Seconds(); got != 2.5 {
		t.Errorf("crawl_interval = %v, want 2.5", got)
	}
	// File values must not wipe defaults it does not mention.
	if cfg.CommentCapFor("zhihu") != 20 {
		t.Errorf("zhihu comment cap lost on file load")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
