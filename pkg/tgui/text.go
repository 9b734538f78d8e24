package tgui

import (
	"strings"
	"unicode/utf8"
)

// TruncRunes returns s truncated to at most n runes.
// It appends an ellipsis "…" when truncated.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	cut := 0
	for i, r := range s {
		count++
		if count == n {
			cut = i + utf8.RuneLen(r)
			continue
		}
		if count > n {
			if cut <= 0 {
				cut = i
			}
			return s[:cut] + "…"
		}
	}
	return s
}

// labelPad is U+2800 (braille blank). Telegram collapses runs of regular
// spaces in button labels; the braille blank survives, which keeps
// single-button rows at a comfortable width.
const labelPad = '⠀'

// PadLabel pads a button label with invisible filler up to width runes.
// Padding is split evenly on both sides; labels at or over width are
// returned unchanged.
func PadLabel(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	total := width - n
	left := total / 2
	right := total - left
	return strings.Repeat(string(labelPad), left) + s + strings.Repeat(string(labelPad), right)
}
