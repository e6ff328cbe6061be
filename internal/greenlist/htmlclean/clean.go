package htmlclean

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"
)

const DefaultMaxLength = 600

// CleanHTML converts an HTML fragment to plain text: tags are dropped (their
// text is kept), entities are decoded, whitespace is collapsed and the result
// is cut to max runes (DefaultMaxLength when max <= 0).
func CleanHTML(input string, max int) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if max <= 0 {
		max = DefaultMaxLength
	}

	nodes, err := xhtml.ParseFragment(strings.NewReader(trimmed), nil)
	if err != nil {
		return Truncate(tidy(html.UnescapeString(trimmed)), max)
	}

	var w textWriter
	for _, n := range nodes {
		w.walk(n)
	}
	return Truncate(tidy(w.String()), max)
}

// textWriter accumulates visible text, inserting a single space at block
// boundaries and where the source had whitespace.
type textWriter struct {
	strings.Builder
	pendingSpace bool
}

func (w *textWriter) walk(n *xhtml.Node) {
	if n == nil {
		return
	}
	switch n.Type {
	case xhtml.ElementNode:
		if skipElement(n.Data) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}
		if isBlock(n.Data) && w.Len() > 0 {
			w.pendingSpace = true
		}
		return
	case xhtml.TextNode:
		w.text(html.UnescapeString(n.Data))
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *textWriter) text(s string) {
	words := collapse(s)
	if words == "" {
		if endsWithSpace(s) {
			w.pendingSpace = true
		}
		return
	}
	if w.Len() > 0 && (w.pendingSpace || startsWithSpace(s)) {
		w.WriteByte(' ')
	}
	w.WriteString(words)
	w.pendingSpace = endsWithSpace(s)
}

func skipElement(name string) bool {
	switch strings.ToLower(name) {
	case "script", "style", "noscript", "template", "svg":
		return true
	}
	return false
}

func isBlock(name string) bool {
	switch strings.ToLower(name) {
	case "address", "article", "aside", "blockquote", "br", "div", "dl", "dt", "dd",
		"fieldset", "figcaption", "figure", "footer", "form", "h1", "h2", "h3", "h4", "h5", "h6",
		"header", "hr", "li", "main", "nav", "ol", "p", "pre", "section", "table", "tbody",
		"td", "tfoot", "th", "thead", "tr", "ul":
		return true
	}
	return false
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsSpace(r)
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r != utf8.RuneError && unicode.IsSpace(r)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var spaceBeforePunct = strings.NewReplacer(
	" !", "!",
	" ?", "?",
	" ,", ",",
	" .", ".",
	" ;", ";",
	" :", ":",
)

func tidy(s string) string {
	return spaceBeforePunct.Replace(collapse(s))
}

// Truncate cuts s to at most max runes and trims trailing whitespace.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := strings.TrimSpace(string(runes[:max]))
	if cut == "" {
		return string(runes[:max])
	}
	return cut
}
