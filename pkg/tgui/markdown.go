package tgui

import "strings"

// mdEscaper escapes every character Telegram's MarkdownV2 parser treats as
// markup. Unescaped occurrences make the whole sendMessage call fail, so
// player names and API-provided strings must always pass through Esc.
var mdEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
	"\\", "\\\\",
)

// Esc escapes s for safe inclusion in a MarkdownV2 message body.
func Esc(s string) string {
	return mdEscaper.Replace(s)
}

// Bold wraps already-escaped text in MarkdownV2 bold markers.
func Bold(escaped string) string {
	return "*" + escaped + "*"
}

// Code wraps s in an inline code span, escaping backticks and backslashes
// (the only characters special inside MarkdownV2 code spans).
func Code(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "`", "\\`")
	return "`" + s + "`"
}
