// Package address parses mailbox addresses into their structured parts.
package address

import (
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"
)

// Address is a parsed mailbox.
type Address struct {
	DisplayName string
	LocalPart   string
	Domain      string
}

// Email returns local@domain.
func (a Address) Email() string {
	if a.Domain == "" {
		return a.LocalPart
	}
	return a.LocalPart + "@" + a.Domain
}

// Display is the display name, falling back to the local part.
func (a Address) Display() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.LocalPart
}

// Parse parses a header value such as `"Ann" <ann@example.com>` or a bare
// address. Encoded words in the display name are decoded.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	a, err := mail.ParseAddress(s)
	if err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	at := strings.LastIndex(a.Address, "@")
	if at <= 0 || at == len(a.Address)-1 {
		return Address{}, fmt.Errorf("parse address %q: missing domain", s)
	}
	return Address{
		DisplayName: strings.Trim(a.Name, `" `),
		LocalPart:   a.Address[:at],
		Domain:      a.Address[at+1:],
	}, nil
}

// ParseList parses a comma separated address list.
func ParseList(s string) ([]Address, error) {
	list, err := mail.ParseAddressList(s)
	if err != nil {
		return nil, fmt.Errorf("parse address list: %w", err)
	}
	out := make([]Address, 0, len(list))
	for _, a := range list {
		p, err := Parse(a.String())
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// DisplayName returns a short human name for a From header, or fallback
// when the header is empty. Unparseable input is returned as is.
func DisplayName(header, fallback string) string {
	if strings.TrimSpace(header) == "" {
		return fallback
	}
	a, err := Parse(header)
	if err != nil {
		return strings.TrimSpace(header)
	}
	return a.Display()
}

// Same compares the mailbox parts exactly, ignoring case.
func Same(a, b Address) bool {
	return a.LocalPart != "" &&
		strings.EqualFold(a.LocalPart, b.LocalPart) &&
		strings.EqualFold(a.Domain, b.Domain)
}

// IsSelf reports whether the From header names the signed-in mailbox.
func IsSelf(from, self string) bool {
	a, err := Parse(from)
	if err != nil {
		return false
	}
	b, err := Parse(self)
	if err != nil {
		return false
	}
	return Same(a, b)
}
