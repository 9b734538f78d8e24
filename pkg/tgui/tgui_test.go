package tgui

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEsc(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a.b", "a\\.b"},
		{"Wraith_Main", "Wraith\\_Main"},
		{"(1-2)", "\\(1\\-2\\)"},
		{"*bold* #tag", "\\*bold\\* \\#tag"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Esc(tc.in); got != tc.want {
			t.Fatalf("Esc(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCode(t *testing.T) {
	t.Parallel()

	if got := Code("a`b"); got != "`a\\`b`" {
		t.Fatalf("Code escaping backtick: got %q", got)
	}
}

func TestDataRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		plugin, action, payload string
		want                    string
	}{
		{"watch", "menu", "", "watch:menu"},
		{"watch", "player", "Wraith", "watch:player:Wraith"},
		{"watch", "status", "a:b", "watch:status:a:b"},
	}
	for _, tc := range cases {
		got := Data(tc.plugin, tc.action, tc.payload)
		if got != tc.want {
			t.Fatalf("Data(%q,%q,%q) = %q, want %q", tc.plugin, tc.action, tc.payload, got, tc.want)
		}
		p, a, pl := ParseData(got)
		if p != tc.plugin || a != tc.action || pl != tc.payload {
			t.Fatalf("ParseData(%q) = (%q,%q,%q), want (%q,%q,%q)", got, p, a, pl, tc.plugin, tc.action, tc.payload)
		}
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hell…"},
		{"玩家名称测试", 3, "玩家名…"},
		{"x", 0, ""},
	}
	for _, tc := range cases {
		if got := TruncRunes(tc.in, tc.n); got != tc.want {
			t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestPadLabel(t *testing.T) {
	t.Parallel()

	got := PadLabel("ok", 8)
	if utf8.RuneCountInString(got) != 8 {
		t.Fatalf("padded width = %d, want 8", utf8.RuneCountInString(got))
	}
	if !strings.Contains(got, "ok") {
		t.Fatalf("padded label lost text: %q", got)
	}
	if strings.Contains(got, " ") {
		t.Fatalf("padding must not use regular spaces: %q", got)
	}

	// already wide enough: unchanged
	if got := PadLabel("long label", 4); got != "long label" {
		t.Fatalf("wide label changed: %q", got)
	}
}
