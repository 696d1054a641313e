package gmail

import (
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"

	"inboxai/internal/address"
	"inboxai/models"
)

const (
	defaultSubject = "(No Subject)"
	defaultSender  = "Unknown Sender"
)

// wireSummary collects the loosely named fields a list row is built from.
// Threads carry their own id while rows address the latest message, and
// some senders set only a Sender header.
type wireSummary struct {
	ID            string
	MessageID     string
	ThreadID      string
	Subject       string
	From          string
	Sender        string
	To            string
	Snippet       string
	Date          string
	LabelIDs      []string
	MessagesCount int
}

func (w wireSummary) normalize() models.EmailSummary {
	id := w.MessageID
	if id == "" {
		id = w.ID
	}
	from := w.From
	if strings.TrimSpace(from) == "" {
		from = w.Sender
	}
	subject := strings.TrimSpace(w.Subject)
	if subject == "" {
		subject = defaultSubject
	}
	count := w.MessagesCount
	if count < 1 {
		count = 1
	}
	s := models.EmailSummary{
		ID:            id,
		ThreadID:      w.ThreadID,
		Subject:       subject,
		Sender:        address.DisplayName(from, defaultSender),
		Recipient:     w.To,
		Snippet:       w.Snippet,
		Date:          w.Date,
		LabelIDs:      append([]string{}, w.LabelIDs...),
		MessagesCount: count,
	}
	if a, err := address.Parse(from); err == nil {
		s.SenderAddress = a.Email()
	}
	if s.ThreadID == "" {
		s.ThreadID = s.ID
	}
	return s
}

// header returns the first header named name, compared case-insensitively.
func header(p *gmailapi.MessagePart, name string) string {
	if p == nil {
		return ""
	}
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// summarizeThread reduces a metadata thread to its latest message.
func summarizeThread(th *gmailapi.Thread) models.EmailSummary {
	w := wireSummary{ID: th.Id, ThreadID: th.Id, Snippet: th.Snippet, MessagesCount: len(th.Messages)}
	if n := len(th.Messages); n > 0 {
		latest := th.Messages[n-1]
		w.MessageID = latest.Id
		w.LabelIDs = latest.LabelIds
		if latest.Snippet != "" {
			w.Snippet = latest.Snippet
		}
		w.Subject = header(latest.Payload, "Subject")
		w.From = header(latest.Payload, "From")
		w.Sender = header(latest.Payload, "Sender")
		w.To = header(latest.Payload, "To")
		w.Date = header(latest.Payload, "Date")
	}
	return w.normalize()
}

func convertPart(p *gmailapi.MessagePart) *models.MessagePart {
	if p == nil {
		return nil
	}
	out := &models.MessagePart{MimeType: p.MimeType, Filename: p.Filename}
	if p.Body != nil {
		out.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		out.Parts = append(out.Parts, convertPart(child))
	}
	return out
}

func convertMessage(m *gmailapi.Message) models.ThreadMessage {
	subject := header(m.Payload, "Subject")
	if strings.TrimSpace(subject) == "" {
		subject = defaultSubject
	}
	from := header(m.Payload, "From")
	if from == "" {
		from = header(m.Payload, "Sender")
	}
	return models.ThreadMessage{
		ID:              m.Id,
		ThreadID:        m.ThreadId,
		Subject:         subject,
		From:            from,
		To:              header(m.Payload, "To"),
		Date:            header(m.Payload, "Date"),
		Snippet:         m.Snippet,
		LabelIDs:        append([]string{}, m.LabelIds...),
		MessageIDHeader: header(m.Payload, "Message-ID"),
		Payload:         convertPart(m.Payload),
	}
}
