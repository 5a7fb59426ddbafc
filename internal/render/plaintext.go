package render

import (
	"regexp"
	"strings"

	"tgblog/internal/models"
)

// PlainText concatenates every run of t and drops all formatting. It is used
// for reply previews, not for post bodies.
func PlainText(t models.Text) string {
	if len(t.Runs) == 1 {
		return t.Runs[0].Text
	}
	var sb strings.Builder
	for _, r := range t.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// markupPattern matches only tags that Entities emits, so literal angle
// brackets in message text survive StripTags.
var markupPattern = regexp.MustCompile(`</?(?:del|code|em|u|b|span|a|i|pre|blockquote)(?:\s[^<>]*)?>`)

// StripTags removes the markup produced by Entities from rendered text.
func StripTags(markup string) string {
	return markupPattern.ReplaceAllString(markup, "")
}
