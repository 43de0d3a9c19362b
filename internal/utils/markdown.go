package utils

import (
	"regexp"
	"strings"
)

var (
	// ![alt](url)
	reImageMD = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	// <img ...>
	reImageHTML = regexp.MustCompile(`(?is)<img[^>]*>`)
	// <!-- ... -->
	reComment = regexp.MustCompile(`(?s)<!--.*?-->`)
	// trailing spaces before a newline
	reTrailingSpace     = regexp.MustCompile(`[ \t]+\n`)
	reExcessiveNewlines = regexp.MustCompile(`\n{3,}`)
)

// CleanMarkdown drops images and HTML comments from a markdown brief and
// keeps at most one blank line between paragraphs.
func CleanMarkdown(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = reImageMD.ReplaceAllString(text, "")
	text = reImageHTML.ReplaceAllString(text, "")
	text = reComment.ReplaceAllString(text, "")
	text = reTrailingSpace.ReplaceAllString(text, "\n")
	text = reExcessiveNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
