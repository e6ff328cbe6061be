package htmlclean

import (
	"io"
	"strings"

	xhtml "golang.org/x/net/html"
)

// Page is the indexable summary of an HTML document.
type Page struct {
	Title   string
	Summary string
}

// ParsePage reads a full HTML document. The title prefers og:title, then the
// <title> element, then the first <h1>. The summary prefers the meta
// description and falls back to the visible body text.
func ParsePage(r io.Reader, max int) (Page, error) {
	doc, err := xhtml.Parse(r)
	if err != nil {
		return Page{}, err
	}
	if max <= 0 {
		max = DefaultMaxLength
	}

	var ogTitle, title, h1, description string
	var body *xhtml.Node
	var visit func(*xhtml.Node)
	visit = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			switch strings.ToLower(n.Data) {
			case "meta":
				key, content := metaPair(n)
				switch key {
				case "og:title":
					if ogTitle == "" {
						ogTitle = content
					}
				case "description", "og:description":
					if description == "" {
						description = content
					}
				}
			case "title":
				if title == "" {
					title = nodeText(n)
				}
			case "h1":
				if h1 == "" {
					h1 = nodeText(n)
				}
			case "body":
				body = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)

	page := Page{Title: tidy(firstNonEmpty(ogTitle, title, h1))}
	if description != "" {
		page.Summary = Truncate(tidy(description), max)
	} else if body != nil {
		var w textWriter
		w.walk(body)
		page.Summary = Truncate(tidy(w.String()), max)
	}
	return page, nil
}

func metaPair(n *xhtml.Node) (key, content string) {
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "property", "name":
			if key == "" {
				key = strings.ToLower(strings.TrimSpace(a.Val))
			}
		case "content":
			content = a.Val
		}
	}
	return key, content
}

func nodeText(n *xhtml.Node) string {
	var w textWriter
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	return w.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
