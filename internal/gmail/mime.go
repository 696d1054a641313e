package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"inboxai/models"
)

var replyPrefix = regexp.MustCompile(`(?i)^(re:\s*)+`)

// NormalizeSubject collapses stacked reply prefixes into a single "Re: ".
func NormalizeSubject(s string) string {
	s = strings.TrimSpace(s)
	if replyPrefix.MatchString(s) {
		return replyPrefix.ReplaceAllString(s, "Re: ")
	}
	return s
}

// buildRaw renders msg as an RFC 5322 html message. inReplyTo, when set,
// is the Message-ID the reply threads under.
func buildRaw(msg models.OutgoingMessage, inReplyTo string, now time.Time) ([]byte, error) {
	if msg.FromEmail == "" {
		return nil, fmt.Errorf("missing sender address")
	}
	to, err := mail.ParseAddressList(msg.To)
	if err != nil {
		return nil, fmt.Errorf("parse recipients: %w", err)
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("no recipients")
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Name: msg.FromName, Address: msg.FromEmail}})
	h.SetAddressList("To", to)
	h.SetSubject(NormalizeSubject(msg.Subject))
	h.SetMessageID(uuid.NewString() + "@" + domainOf(msg.FromEmail))
	if inReplyTo != "" {
		h.Set("In-Reply-To", inReplyTo)
		h.Set("References", inReplyTo)
	}
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.HTMLBody); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close body: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeRaw(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func domainOf(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 && at < len(email)-1 {
		return email[at+1:]
	}
	return "localhost"
}
