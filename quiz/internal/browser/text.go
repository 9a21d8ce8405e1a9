package browser

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TextFromHTML approximates innerText for markup that was never rendered:
// script, style and hidden subtrees are skipped, block elements break lines.
func TextFromHTML(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	root := findBody(doc)
	if root == nil {
		root = doc
	}

	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipElement(n) {
				return
			}
			if n.DataAtom == atom.Br {
				sb.WriteByte('\n')
				return
			}
			if isBlock(n.DataAtom) {
				breakLine(&sb)
			}
		}
		if n.Type == html.TextNode {
			text := collapseSpace(n.Data)
			if sb.Len() == 0 || endsWithSpace(&sb) {
				text = strings.TrimLeft(text, " ")
			}
			sb.WriteString(text)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			breakLine(&sb)
		}
	}
	f(root)

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func skipElement(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
		return true
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if a.Val == "true" {
				return true
			}
		case "style":
			s := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
			if strings.Contains(s, "display:none") || strings.Contains(s, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Pre, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Table, atom.Form, atom.Section, atom.Article,
		atom.Header, atom.Footer, atom.Blockquote:
		return true
	}
	return false
}

func endsWithSpace(sb *strings.Builder) bool {
	s := sb.String()
	if s == "" {
		return false
	}
	return s[len(s)-1] == ' ' || s[len(s)-1] == '\n'
}

func breakLine(sb *strings.Builder) {
	s := sb.String()
	if s != "" && s[len(s)-1] != '\n' {
		sb.WriteByte('\n')
	}
}

// collapseSpace folds every whitespace run into a single space.
func collapseSpace(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '\f' {
			if !space {
				sb.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		sb.WriteRune(r)
	}
	return sb.String()
}

// findBody returns the <body> element from a parsed document.
func findBody(doc *html.Node) *html.Node {
	var body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return body
}
