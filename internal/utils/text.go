package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	htmldom "golang.org/x/net/html"
)

// StripHTML returns the visible text of an HTML fragment. Plain text passes
// through unchanged apart from whitespace collapsing.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return CollapseWhitespace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return CollapseWhitespace(s)
	}
	doc.Find("script,style,noscript,template").Remove()

	var sb strings.Builder
	for _, n := range doc.Nodes {
		collectText(&sb, n)
	}
	return CollapseWhitespace(sb.String())
}

// elements whose boundaries separate words in rendered text
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "td": true, "th": true, "section": true, "article": true,
	"blockquote": true, "pre": true, "table": true,
}

func collectText(sb *strings.Builder, n *htmldom.Node) {
	switch n.Type {
	case htmldom.TextNode:
		sb.WriteString(n.Data)
		return
	case htmldom.CommentNode:
		return
	}
	block := n.Type == htmldom.ElementNode && blockElements[n.Data]
	if block {
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(sb, c)
	}
	if block {
		sb.WriteByte(' ')
	}
}

func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most max runes, appending "..." when cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}

// TruncateWords cuts s to at most max bytes without splitting a word.
func TruncateWords(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := strings.LastIndex(s[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return strings.TrimSpace(s[:cut])
}
