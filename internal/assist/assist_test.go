package assist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"inboxai/models"
)

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGenerator struct {
	out     string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.out, f.err
}

func TestParseImproved(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Improved
	}{
		{
			name: "template",
			text: "SUBJECT: **[Lunch on Friday]**\nCONTENT:\nHi Ann,\n\nFriday works.\n",
			want: Improved{Subject: "Lunch on Friday", Content: "Hi Ann,\n\nFriday works."},
		},
		{
			name: "leading markup in content",
			text: "SUBJECT: Hello\nCONTENT:\n** Dear team,\nThanks.",
			want: Improved{Subject: "Hello", Content: "Dear team,\nThanks."},
		},
		{
			name: "no template",
			text: "  Just a rewritten body.  ",
			want: Improved{Subject: "Original", Content: "Just a rewritten body."},
		},
		{
			name: "subject only",
			text: "SUBJECT: New subject\nbody without marker",
			want: Improved{Subject: "New subject", Content: "SUBJECT: New subject\nbody without marker"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseImproved(tt.text, "Original")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ParseImproved mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func thread() []models.ThreadMessage {
	return []models.ThreadMessage{
		{From: "Ann <ann@example.com>", To: "me@example.com", Main: "<p>Lunch Friday?</p><script>x()</script>"},
		{From: "Me <me@example.com>", To: "ann@example.com", Body: "<div>Sure, noon?</div>"},
	}
}

func TestGenerateReplyPrompt(t *testing.T) {
	gen := &fakeGenerator{out: "  Noon works.\n"}
	a := New(gen, time.Second, slogDiscard())

	got, err := a.GenerateReply(context.Background(), ReplyRequest{Subject: "Lunch", Self: "me@example.com", Messages: thread()})
	if err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	if got != "Noon works." {
		t.Fatalf("reply = %q", got)
	}
	prompt := gen.prompts[0]
	for _, want := range []string{
		"Subject: Lunch",
		"me@example.com",
		"From: Ann <ann@example.com>\n",
		"From: Me <me@example.com> (you)",
		"Lunch Friday?",
		"Sure, noon?",
		"do not write a reply",
		"the most recent message was sent by you",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "x()") || strings.Contains(prompt, "<p>") {
		t.Errorf("prompt kept markup:\n%s", prompt)
	}
}

func TestGenerateReplyErrors(t *testing.T) {
	a := New(nil, 0, slogDiscard())
	if _, err := a.GenerateReply(context.Background(), ReplyRequest{Messages: thread()}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}

	boom := errors.New("quota")
	a = New(&fakeGenerator{err: boom}, 0, slogDiscard())
	if _, err := a.GenerateReply(context.Background(), ReplyRequest{Messages: thread()}); !errors.Is(err, boom) || !errors.Is(err, ErrModel) {
		t.Fatalf("err = %v", err)
	}
	if _, err := a.GenerateReply(context.Background(), ReplyRequest{}); err == nil {
		t.Fatalf("expected error for empty thread")
	}
}

func TestImproveEmail(t *testing.T) {
	gen := &fakeGenerator{out: "SUBJECT: Better\nCONTENT:\nImproved body"}
	a := New(gen, 0, slogDiscard())
	got, err := a.ImproveEmail(context.Background(), "worse", "<p>draft body</p>")
	if err != nil {
		t.Fatalf("ImproveEmail: %v", err)
	}
	if diff := cmp.Diff(Improved{Subject: "Better", Content: "Improved body"}, got); diff != "" {
		t.Fatalf("ImproveEmail mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(gen.prompts[0], "draft body") || !strings.Contains(gen.prompts[0], "SUBJECT:") {
		t.Fatalf("prompt = %s", gen.prompts[0])
	}
}

func TestHTMLToText(t *testing.T) {
	got := htmlToText("<p>Hi &amp; hello</p><p>Second<br>line</p><style>p{}</style>")
	if got != "Hi & hello\n\nSecond\nline" {
		t.Fatalf("htmlToText = %q", got)
	}
}
