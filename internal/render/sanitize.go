package render

import "github.com/microcosm-cc/bluemonday"

var allowedElements = []string{
	"p", "br", "strong", "em", "u", "ol", "ul", "li", "a",
	"h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "img", "div", "span",
	"table", "tr", "td", "th", "tbody", "thead",
	"header", "footer", "nav", "section", "article", "center", "font",
	"b", "i", "strike", "hr", "figure", "figcaption",
}

var allowedAttrs = []string{
	"alt", "class", "id", "width", "height", "align", "valign",
	"bgcolor", "color", "border", "cellpadding", "cellspacing",
	"title", "role", "name", "type", "aria-label", "aria-hidden",
}

var allowedStyles = []string{
	"color", "background", "background-color", "font-size", "font-weight",
	"font-family", "font-style", "text-align", "text-decoration",
	"line-height", "width", "max-width", "height", "margin", "padding",
	"border", "border-collapse", "display", "vertical-align",
}

// NewPolicy returns the allow-list used for message bodies. Scripts,
// style elements and event handlers never survive it.
func NewPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedElements...)
	p.AllowAttrs(allowedAttrs...).Globally()
	p.AllowDataAttributes()
	p.AllowStyles(allowedStyles...).Globally()
	p.AllowAttrs("href", "target").OnElements("a")
	p.AllowAttrs("src").OnElements("img")
	p.AllowURLSchemes("http", "https", "mailto", "cid")
	p.AllowDataURIImages()
	p.RequireNoReferrerOnLinks(true)
	return p
}
