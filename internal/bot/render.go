package bot

import (
	"apexwatch/internal/apex"
	"apexwatch/pkg/tgui"
)

// renderPlain wraps fixed text for sending: escaped, MarkdownV2, no preview.
func renderPlain(text string) tgui.Message {
	return tgui.New().Line(text).Build()
}

func normalizePlatform(p string) (string, bool) {
	return apex.NormalizePlatform(p)
}

// stateDisplay renders a stored state code for listings; codes the display
// map does not know fall back to the raw code.
func stateDisplay(code string) string {
	return apex.Status{State: code, APIText: code}.Text()
}
