// Package render turns provider payload trees into safe HTML and splits
// new content from quoted history.
package render

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"inboxai/models"
)

const (
	// DecodeFailed replaces a body that could not be decoded.
	DecodeFailed = "Failed to decode email content."
	// NotAvailable is shown when a message has no text part at all.
	NotAvailable = "Content not available"
)

var errNoContent = errors.New("no text content")

// decodeBase64URL decodes provider data, with or without padding.
func decodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		// Some senders put standard-alphabet data in the tree.
		if b2, err2 := base64.RawStdEncoding.DecodeString(s); err2 == nil {
			return b2, nil
		}
		return nil, fmt.Errorf("decode base64url: %w", err)
	}
	return b, nil
}

// findPart returns the first leaf with the given mime type, depth first.
func findPart(p *models.MessagePart, mimeType string) *models.MessagePart {
	if p == nil {
		return nil
	}
	if len(p.Parts) == 0 {
		if strings.EqualFold(p.MimeType, mimeType) && p.Data != "" && p.Filename == "" {
			return p
		}
		return nil
	}
	for _, child := range p.Parts {
		if found := findPart(child, mimeType); found != nil {
			return found
		}
	}
	return nil
}

// selectPart picks the body part, preferring html over plain text.
func selectPart(p *models.MessagePart) (*models.MessagePart, bool, error) {
	if p == nil {
		return nil, false, errNoContent
	}
	if len(p.Parts) == 0 {
		if p.Data == "" {
			return nil, false, errNoContent
		}
		return p, !strings.EqualFold(p.MimeType, "text/plain"), nil
	}
	if part := findPart(p, "text/html"); part != nil {
		return part, true, nil
	}
	if part := findPart(p, "text/plain"); part != nil {
		return part, false, nil
	}
	return nil, false, errNoContent
}

// decodedText is the selected part's text after binary and entity decoding.
type decodedText struct {
	text   string
	isHTML bool
}

func decode(p *models.MessagePart) (decodedText, error) {
	part, isHTML, err := selectPart(p)
	if err != nil {
		return decodedText{}, err
	}
	raw, err := decodeBase64URL(part.Data)
	if err != nil {
		return decodedText{}, err
	}
	if isHTML {
		// Markup keeps its entities; the parser and sanitizer decode them.
		return decodedText{text: string(raw), isHTML: true}, nil
	}
	return decodedText{text: html.UnescapeString(string(raw))}, nil
}

var blankLines = regexp.MustCompile(`\n\s*\n`)

// PlainToHTML escapes text and turns blank-line runs into paragraphs and
// single newlines into breaks.
func PlainToHTML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var b strings.Builder
	for _, para := range blankLines.Split(strings.TrimSpace(text), -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i, l := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(l))
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br />"))
		b.WriteString("</p>")
	}
	return b.String()
}
