// Package htmlstrip converts an HTML email body to readable plain text.
package htmlstrip

import (
	"strings"

	"golang.org/x/net/html"
)

// skipElements are elements whose text content is discarded.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
}

// breakElements are elements rendered with a line break before their
// content.
var breakElements = map[string]bool{
	"p": true, "div": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "li": true, "blockquote": true,
	"pre": true, "table": true, "tr": true,
}

// Strip tokenizes HTML and returns its visible text, with block
// elements separated by newlines and runs of whitespace collapsed.
func Strip(source string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(source))

	var b strings.Builder
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())

		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if skipElements[tag] {
				skipDepth++
				continue
			}
			if skipDepth > 0 {
				continue
			}
			if tag == "br" || breakElements[tag] {
				writeBreak(&b)
			}

		case html.SelfClosingTagToken:
			// A self-closing skip element has no content, so the depth
			// counter stays untouched.
			name, _ := tokenizer.TagName()
			tag := string(name)
			if skipDepth > 0 || skipElements[tag] {
				continue
			}
			if tag == "br" || breakElements[tag] {
				writeBreak(&b)
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if skipElements[tag] && skipDepth > 0 {
				skipDepth--
				continue
			}
			if skipDepth == 0 && breakElements[tag] {
				writeBreak(&b)
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.Join(strings.Fields(string(tokenizer.Text())), " ")
			if text == "" {
				continue
			}
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		}
	}
}

func writeBreak(b *strings.Builder) {
	if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}
}
