// Package sanitize cleans CRM-supplied strings before they are stored or
// rendered into chat messages.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	// CRM payloads escape a small fixed set of entities; &nbsp; shows up in
	// copy-pasted addresses.
	entities = strings.NewReplacer(
		"&nbsp;", " ",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&amp;", "&",
	)
)

// Text strips HTML tags, decodes the common entities and collapses
// whitespace runs. Tags are stripped again after decoding so an encoded
// `&lt;script&gt;` cannot survive the round trip.
func Text(s string) string {
	out := tagPattern.ReplaceAllString(s, "")
	out = entities.Replace(out)
	out = tagPattern.ReplaceAllString(out, "")
	out = whitespacePattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
