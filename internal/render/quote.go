package render

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// attribution matches a reply header like "On Mon, Jan 1, 2024 at 9:00 AM
// Ann <ann@example.com> wrote:", which mail clients often wrap once.
var attribution = regexp.MustCompile(`\bOn\s[^\n]{1,200}?(?:\n[^\n]{0,200}?)?\bwrote:`)

// Split is the result of SplitQuoted. Found is false when no boundary was
// detected, in which case Main holds the whole body. Detection is a
// heuristic and can misfire on bodies that contain the phrase itself.
type Split struct {
	Main   string
	Quoted string
	Found  bool
}

// SplitQuoted splits body at the first reply attribution. Everything
// from the attribution on is quoted.
func SplitQuoted(body string) Split {
	loc := attribution.FindStringIndex(body)
	if loc == nil {
		return Split{Main: body}
	}
	main := strings.TrimSpace(body[:loc[0]])
	if main == "" {
		// A body that is nothing but a quote stays visible.
		return Split{Main: body}
	}
	return Split{Main: main, Quoted: body[loc[0]:], Found: true}
}

// blockElements end a line of text when building the searchable text of
// an HTML body.
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Blockquote: true, atom.Br: true, atom.Dd: true,
	atom.Div: true, atom.Dl: true, atom.Dt: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true, atom.Hr: true,
	atom.Li: true, atom.Ol: true, atom.P: true, atom.Pre: true, atom.Table: true,
	atom.Td: true, atom.Tr: true, atom.Ul: true,
}

// SplitQuotedHTML splits an HTML body at the first reply attribution found
// in its text. The cut is made at the outermost element that starts with
// the attribution, so a wrapper such as Gmail's gmail_quote div moves to
// Quoted whole and both halves stay well formed. Attributes are never
// searched.
func SplitQuotedHTML(body string) Split {
	mainBody, mainCut := parseAndLocate(body)
	if mainCut == nil {
		return Split{Main: body}
	}
	truncateFrom(mainCut, mainBody)
	if strings.TrimSpace(textOf(mainBody)) == "" {
		return Split{Main: body}
	}
	main, err := renderChildren(mainBody)
	if err != nil {
		return Split{Main: body}
	}

	quotedBody, quotedCut := parseAndLocate(body)
	if quotedCut == nil {
		return Split{Main: body}
	}
	dropBefore(quotedCut, quotedBody)
	quoted, err := renderChildren(quotedBody)
	if err != nil {
		return Split{Main: body}
	}
	return Split{Main: strings.TrimSpace(main), Quoted: strings.TrimSpace(quoted), Found: true}
}

// parseAndLocate parses body and returns the node the quote starts at, or
// nil when the text holds no attribution. It is deterministic, so two
// parses of the same body locate matching nodes.
func parseAndLocate(body string) (bodyNode, cut *html.Node) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, nil
	}
	bodyNode = findElement(doc, atom.Body)
	if bodyNode == nil {
		return nil, nil
	}

	type span struct {
		node       *html.Node
		start, end int
	}
	var (
		text  strings.Builder
		spans []span
		walk  func(n *html.Node)
	)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			start := text.Len()
			text.WriteString(n.Data)
			spans = append(spans, span{n, start, text.Len()})
			return
		case html.ElementNode:
			if blockElements[n.DataAtom] {
				text.WriteByte('\n')
				defer text.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(bodyNode)

	loc := attribution.FindStringIndex(text.String())
	if loc == nil {
		return nil, nil
	}
	var node *html.Node
	for _, sp := range spans {
		if loc[0] >= sp.start && loc[0] < sp.end {
			node = sp.node
			if off := loc[0] - sp.start; off > 0 {
				node = splitText(sp.node, off)
			}
			break
		}
	}
	if node == nil {
		return nil, nil
	}

	cut = node
	for cut.Parent != nil && cut.Parent != bodyNode && !textBefore(cut) {
		cut = cut.Parent
	}
	return bodyNode, cut
}

// splitText cuts a text node at off and returns the new second half.
func splitText(n *html.Node, off int) *html.Node {
	rest := &html.Node{Type: html.TextNode, Data: n.Data[off:]}
	n.Data = n.Data[:off]
	n.Parent.InsertBefore(rest, n.NextSibling)
	return rest
}

// textBefore reports whether a preceding sibling of n carries text.
func textBefore(n *html.Node) bool {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if strings.TrimSpace(textOf(s)) != "" {
			return true
		}
	}
	return false
}

// truncateFrom removes cut and everything after it in document order.
func truncateFrom(cut, root *html.Node) {
	for n := cut; n != root && n.Parent != nil; n = n.Parent {
		for s := n.NextSibling; s != nil; s = n.NextSibling {
			n.Parent.RemoveChild(s)
		}
	}
	cut.Parent.RemoveChild(cut)
}

// dropBefore removes everything before cut in document order, keeping
// its ancestors.
func dropBefore(cut, root *html.Node) {
	for n := cut; n != root && n.Parent != nil; n = n.Parent {
		for s := n.PrevSibling; s != nil; s = n.PrevSibling {
			n.Parent.RemoveChild(s)
		}
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
	}
	return b.String()
}

func renderChildren(n *html.Node) (string, error) {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}
