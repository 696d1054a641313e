package models

import (
	"encoding/json"
	"slices"
)

// Gmail system labels the UI cares about.
const (
	LabelInbox   = "INBOX"
	LabelUnread  = "UNREAD"
	LabelStarred = "STARRED"
	LabelSent    = "SENT"
	LabelTrash   = "TRASH"
)

// EmailSummary is one row of a mailbox list. LabelIDs is the only source
// of read, starred and category state.
type EmailSummary struct {
	ID            string   `json:"id"`
	ThreadID      string   `json:"threadId"`
	Subject       string   `json:"subject"`
	Sender        string   `json:"sender"`
	SenderAddress string   `json:"senderAddress,omitempty"`
	Recipient     string   `json:"recipient,omitempty"`
	Snippet       string   `json:"snippet"`
	Date          string   `json:"date"`
	LabelIDs      []string `json:"labelIds"`
	MessagesCount int      `json:"messagesCount"`
}

// HasLabel reports whether the summary carries label.
func (e EmailSummary) HasLabel(label string) bool {
	return slices.Contains(e.LabelIDs, label)
}

func (e EmailSummary) Unread() bool  { return e.HasLabel(LabelUnread) }
func (e EmailSummary) Starred() bool { return e.HasLabel(LabelStarred) }

// WithLabels returns a copy with add applied and then remove stripped.
// Label order is preserved and duplicates are never introduced.
func (e EmailSummary) WithLabels(add, remove []string) EmailSummary {
	labels := make([]string, 0, len(e.LabelIDs)+len(add))
	for _, l := range e.LabelIDs {
		if !slices.Contains(remove, l) && !slices.Contains(labels, l) {
			labels = append(labels, l)
		}
	}
	for _, l := range add {
		if !slices.Contains(remove, l) && !slices.Contains(labels, l) {
			labels = append(labels, l)
		}
	}
	e.LabelIDs = labels
	return e
}

// MarshalJSON adds the derived unread/starred flags so templates and
// clients never keep a second copy of that state.
func (e EmailSummary) MarshalJSON() ([]byte, error) {
	type plain EmailSummary
	labels := e.LabelIDs
	if labels == nil {
		labels = []string{}
	}
	p := plain(e)
	p.LabelIDs = labels
	return json.Marshal(struct {
		plain
		Unread  bool `json:"unread"`
		Starred bool `json:"starred"`
	}{p, e.Unread(), e.Starred()})
}

// ListResult is one page returned by the mail provider.
type ListResult struct {
	Emails        []EmailSummary `json:"emails"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

// MessagePart is a node of the raw provider payload tree. Data holds
// base64url encoded bytes.
type MessagePart struct {
	MimeType string         `json:"mimeType"`
	Filename string         `json:"filename,omitempty"`
	Data     string         `json:"data,omitempty"`
	Parts    []*MessagePart `json:"parts,omitempty"`
}

// ThreadMessage is one message of a thread. Body, Main and Quoted are
// filled by the renderer from Payload.
type ThreadMessage struct {
	ID              string       `json:"id"`
	ThreadID        string       `json:"threadId"`
	Subject         string       `json:"subject"`
	From            string       `json:"from"`
	To              string       `json:"to"`
	Date            string       `json:"date"`
	Snippet         string       `json:"snippet"`
	LabelIDs        []string     `json:"labelIds"`
	MessageIDHeader string       `json:"messageIdHeader,omitempty"`
	Payload         *MessagePart `json:"-"`

	Body     string `json:"body"`
	Main     string `json:"main"`
	Quoted   string `json:"quoted,omitempty"`
	HasQuote bool   `json:"hasQuote"`
	FromSelf bool   `json:"fromSelf"`
}

// OutgoingMessage is what the provider adapter sends.
type OutgoingMessage struct {
	FromName  string
	FromEmail string
	To        string
	Subject   string
	HTMLBody  string
	ThreadID  string
}

// ComposeDraft lives only while the compose window is open.
type ComposeDraft struct {
	To                string `json:"to"`
	Subject           string `json:"subject"`
	Body              string `json:"body"`
	InReplyToThreadID string `json:"inReplyToThreadId,omitempty"`
}
