package session

import (
	"encoding/json"
	"testing"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"nil", nil, 0},
		{"int", 42, 42},
		{"int64", int64(7), 7},
		{"float", 3.9, 3},
		{"negative", -5, 0},
		{"plain string", "123", 123},
		{"comma string", "1,234", 1234},
		{"wan suffix", "1.5万", 15000},
		{"w suffix", "2w", 20000},
		{"upper w suffix", "2W", 20000},
		{"yi suffix", "1.2亿", 120000000},
		{"spaces", " 10 ", 10},
		{"empty string", "", 0},
		{"garbage", "many", 0},
		{"negative string", "-3", 0},
		{"json number", json.Number("88"), 88},
		{"unsupported type", []int{1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCount(tt.in); got != tt.want {
				t.Errorf("ParseCount(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello   world  ", "hello world"},
		{"line\none\n\nline two", "line one line two"},
		{"tabs\t\tand spaces", "tabs and spaces"},
		{"", ""},
		{"   ", ""},
		{"已经 干净", "已经 干净"},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
