package render

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"inboxai/models"
)

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func enc(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestSplitQuoted(t *testing.T) {
	got := SplitQuoted("Hello\nOn Jan 1, 2024, X wrote:\n> old text")
	want := Split{Main: "Hello", Quoted: "On Jan 1, 2024, X wrote:\n> old text", Found: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("SplitQuoted mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitQuotedCases(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantMain  string
		wantFound bool
	}{
		{"no boundary", "Just a note.", "Just a note.", false},
		{"wrapped attribution", "Sure.\n\nOn Mon, Jan 1, 2024 at 9:00 AM Ann <ann@example.com>\nwrote:\n> hi", "Sure.", true},
		{"quote only stays visible", "On Jan 1 X wrote:\n> hi", "On Jan 1 X wrote:\n> hi", false},
		{"first boundary wins", "A\nOn 1 X wrote:\nB\nOn 2 Y wrote:\nC", "A", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitQuoted(tt.body)
			if got.Main != tt.wantMain || got.Found != tt.wantFound {
				t.Fatalf("SplitQuoted = %+v, want main %q found %v", got, tt.wantMain, tt.wantFound)
			}
			if got.Found && !strings.HasPrefix(got.Quoted, "On ") {
				t.Fatalf("quoted = %q", got.Quoted)
			}
		})
	}
}

func TestSplitQuotedHTML(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Split
	}{
		{
			name: "gmail quote block",
			body: `<div dir="ltr"><div>Thanks!</div><div class="gmail_quote"><div class="gmail_attr">On Tue, Jan 2, 2024 at 10:00 AM Ann &lt;<a href="mailto:ann@example.com">ann@example.com</a>&gt; wrote:<br></div><blockquote>old</blockquote></div></div>`,
			want: Split{
				Main:   `<div dir="ltr"><div>Thanks!</div></div>`,
				Quoted: `<div dir="ltr"><div class="gmail_quote"><div class="gmail_attr">On Tue, Jan 2, 2024 at 10:00 AM Ann &lt;<a href="mailto:ann@example.com">ann@example.com</a>&gt; wrote:<br/></div><blockquote>old</blockquote></div></div>`,
				Found:  true,
			},
		},
		{
			name: "sibling blocks",
			body: `<div>Thanks</div><div>On Tue, Feb 2 Bob wrote:</div><blockquote>x</blockquote>`,
			want: Split{
				Main:   `<div>Thanks</div>`,
				Quoted: `<div>On Tue, Feb 2 Bob wrote:</div><blockquote>x</blockquote>`,
				Found:  true,
			},
		},
		{
			name: "attribution mid paragraph",
			body: `<p>Sounds good. On Mon, Ann wrote: see below</p>`,
			want: Split{
				Main:   `<p>Sounds good. </p>`,
				Quoted: `<p>On Mon, Ann wrote: see below</p>`,
				Found:  true,
			},
		},
		{
			name: "attribute text is not searched",
			body: `<p>See <a title="On Monday Ann wrote: hi" href="https://x">link</a></p>`,
			want: Split{Main: `<p>See <a title="On Monday Ann wrote: hi" href="https://x">link</a></p>`},
		},
		{
			name: "quote only stays visible",
			body: `<div class="gmail_quote">On Jan 1 X wrote:<blockquote>hi</blockquote></div>`,
			want: Split{Main: `<div class="gmail_quote">On Jan 1 X wrote:<blockquote>hi</blockquote></div>`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, SplitQuotedHTML(tt.body)); diff != "" {
				t.Fatalf("SplitQuotedHTML mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderHTMLQuoteIsBalanced(t *testing.T) {
	r := NewRenderer(slogDiscard())
	body := `<div>Thanks!</div><div class="gmail_quote"><div class="gmail_attr">On Tue, Ann wrote:<br></div><blockquote>old</blockquote></div>`
	got := r.Render(&models.MessagePart{MimeType: "text/html", Data: enc(body)})
	if !got.HasQuote {
		t.Fatalf("no quote found: %+v", got)
	}
	if got.Main != "<div>Thanks!</div>" {
		t.Errorf("Main = %q", got.Main)
	}
	for name, s := range map[string]string{"main": got.Main, "quoted": got.Quoted} {
		if o, c := strings.Count(s, "<div"), strings.Count(s, "</div>"); o != c {
			t.Errorf("%s has %d <div> and %d </div>: %q", name, o, c, s)
		}
	}
	if strings.HasPrefix(got.Quoted, "</") {
		t.Errorf("Quoted starts with a closing tag: %q", got.Quoted)
	}
}

func TestRenderHTMLKeepsEscapedMarkup(t *testing.T) {
	r := NewRenderer(slogDiscard())
	got := r.Render(&models.MessagePart{MimeType: "text/html", Data: enc(`<p>use &lt;b&gt; tags</p>`)})
	if got.Body != "<p>use &lt;b&gt; tags</p>" {
		t.Fatalf("Body = %q", got.Body)
	}
}

func TestRenderPrefersHTML(t *testing.T) {
	r := NewRenderer(slogDiscard())
	payload := &models.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*models.MessagePart{
			{MimeType: "text/plain", Data: enc("plain body")},
			{MimeType: "text/html", Data: enc(`<p onclick="x()">Hi</p><script>alert(1)</script>`)},
		},
	}
	got := r.Render(payload)
	if got.Body != "<p>Hi</p>" {
		t.Fatalf("Body = %q", got.Body)
	}
	if got.HasQuote {
		t.Fatalf("unexpected quote")
	}
}

func TestRenderNestedMultipart(t *testing.T) {
	r := NewRenderer(slogDiscard())
	payload := &models.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*models.MessagePart{
			{MimeType: "multipart/alternative", Parts: []*models.MessagePart{
				{MimeType: "text/plain", Data: enc("inner text")},
			}},
			{MimeType: "application/pdf", Filename: "a.pdf", Data: enc("%PDF")},
		},
	}
	if got := r.Render(payload).Body; got != "<p>inner text</p>" {
		t.Fatalf("Body = %q", got)
	}
}

func TestRenderPlainText(t *testing.T) {
	r := NewRenderer(slogDiscard())
	payload := &models.MessagePart{
		MimeType: "text/plain",
		Data:     enc("Tom &amp; <Jerry>\n\nline1\nline2\nOn Jan 1, 2024, X wrote:\n> old"),
	}
	got := r.Render(payload)
	if got.Main != "<p>Tom &amp; &lt;Jerry&gt;</p><p>line1<br />line2</p>" {
		t.Fatalf("Main = %q", got.Main)
	}
	if !got.HasQuote || !strings.HasPrefix(got.Quoted, "<p>On Jan 1, 2024, X wrote:") {
		t.Fatalf("Quoted = %q", got.Quoted)
	}
}

func TestRenderPaddedData(t *testing.T) {
	r := NewRenderer(slogDiscard())
	data := base64.URLEncoding.EncodeToString([]byte("padded?"))
	got := r.Render(&models.MessagePart{MimeType: "text/plain", Data: data})
	if got.Body != "<p>padded?</p>" {
		t.Fatalf("Body = %q", got.Body)
	}
}

func TestRenderFailures(t *testing.T) {
	r := NewRenderer(slogDiscard())
	tests := []struct {
		name    string
		payload *models.MessagePart
		want    string
	}{
		{"nil payload", nil, NotAvailable},
		{"attachments only", &models.MessagePart{MimeType: "multipart/mixed", Parts: []*models.MessagePart{
			{MimeType: "image/png", Filename: "x.png", Data: enc("png")},
		}}, NotAvailable},
		{"bad base64", &models.MessagePart{MimeType: "text/html", Data: "!!!not base64!!!"}, DecodeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Render(tt.payload)
			if !strings.Contains(got.Body, tt.want) || got.Main != got.Body {
				t.Fatalf("Render = %+v, want placeholder %q", got, tt.want)
			}
		})
	}
}

type fakeSource struct {
	msgs []models.ThreadMessage
	err  error
}

func (f fakeSource) GetThread(context.Context, string) ([]models.ThreadMessage, error) {
	return f.msgs, f.err
}

func TestRenderThreadAttributesSender(t *testing.T) {
	r := NewRenderer(slogDiscard())
	src := fakeSource{msgs: []models.ThreadMessage{
		{ID: "1", From: "Ann <ann@example.com>", Payload: &models.MessagePart{MimeType: "text/plain", Data: enc("question")}},
		{ID: "2", From: "Me <me@example.com>", Payload: &models.MessagePart{MimeType: "text/plain", Data: enc("answer")}},
		{ID: "3", From: "Not Me <notme@example.com>", Payload: &models.MessagePart{MimeType: "text/plain", Data: enc("aside")}},
	}}
	got, err := r.RenderThread(context.Background(), src, "t1", "me@example.com")
	if err != nil {
		t.Fatalf("RenderThread: %v", err)
	}
	var self []bool
	for _, m := range got {
		self = append(self, m.FromSelf)
	}
	if diff := cmp.Diff([]bool{false, true, false}, self); diff != "" {
		t.Fatalf("FromSelf mismatch (-want +got):\n%s", diff)
	}
	if got[1].Body != "<p>answer</p>" {
		t.Fatalf("Body = %q", got[1].Body)
	}
}

func TestRenderThreadPropagatesError(t *testing.T) {
	r := NewRenderer(slogDiscard())
	boom := errors.New("boom")
	if _, err := r.RenderThread(context.Background(), fakeSource{err: boom}, "t1", "me@example.com"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
