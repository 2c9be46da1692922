// Package sanitize cleans user supplied chat text before it is relayed.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"mvdan.cc/xurls/v2"
)

var (
	strict = bluemonday.StrictPolicy()
	urls   = xurls.Relaxed()
)

// StripTags removes all markup from s. The content of script and style
// elements is dropped along with the tags; remaining text is HTML-escaped.
func StripTags(s string) string {
	return strict.Sanitize(s)
}

// StripText removes all markup from s and returns plain text. Unlike
// StripTags the result is not HTML-escaped, so names keep their quotes and
// ampersands and compare equal to what the user typed.
func StripText(s string) string {
	return html.UnescapeString(strict.Sanitize(s))
}

// Linkify wraps bare URLs in s with anchors that open in a new browsing
// context. s must already be free of markup.
func Linkify(s string) string {
	return urls.ReplaceAllStringFunc(s, func(match string) string {
		href := match
		if !strings.Contains(match, "://") {
			// Schemeless e-mail addresses are left alone.
			if strings.Contains(match, "@") {
				return match
			}
			href = "http://" + match
		}
		return `<a href="` + href + `" target="_blank">` + match + `</a>`
	})
}

// Clean strips markup and then linkifies s.
func Clean(s string) string {
	return Linkify(StripTags(s))
}
