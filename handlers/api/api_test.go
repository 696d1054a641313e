package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"inboxai/internal/assist"
	"inboxai/internal/gmail"
	"inboxai/internal/mailbox"
	"inboxai/internal/render"
	"inboxai/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	mu       sync.Mutex
	pages    map[string]models.ListResult
	listErr  error
	failIDs  map[string]bool
	modified []string
	sent     []models.OutgoingMessage
	thread   []models.ThreadMessage
}

func pageKey(v models.View, c models.Category, token string) string {
	return fmt.Sprintf("%s/%s/%s", v, c, token)
}

func (f *fakeProvider) ListMessages(_ context.Context, v models.View, c models.Category, token string) (models.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return models.ListResult{}, f.listErr
	}
	return f.pages[pageKey(v, c, token)], nil
}

func (f *fakeProvider) GetThread(context.Context, string) ([]models.ThreadMessage, error) {
	return f.thread, nil
}

func (f *fakeProvider) GetMessage(_ context.Context, id string) (models.ThreadMessage, error) {
	for _, m := range f.thread {
		if m.ID == id {
			return m, nil
		}
	}
	return models.ThreadMessage{}, &gmail.APIError{Op: "get message", Status: 404, Message: "Not Found"}
}

func (f *fakeProvider) ModifyLabels(_ context.Context, id string, _, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modified = append(f.modified, id)
	if f.failIDs[id] {
		return errors.New("backend error")
	}
	return nil
}

func (f *fakeProvider) Trash(ctx context.Context, id string) error {
	return f.ModifyLabels(ctx, id, nil, nil)
}

func (f *fakeProvider) Send(_ context.Context, msg models.OutgoingMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return "sent-1", nil
}

type fakeGenerator struct{ out string }

func (g fakeGenerator) Generate(context.Context, string) (string, error) { return g.out, nil }

type fixture struct {
	app      *fiber.App
	provider *fakeProvider
	registry *mailbox.Registry
	token    string
}

func newFixture(t *testing.T, gen assist.Generator) *fixture {
	t.Helper()
	provider := &fakeProvider{pages: map[string]models.ListResult{}, failIDs: map[string]bool{}}
	var states []*mailbox.State
	registry := mailbox.NewRegistry(func(context.Context, string) (*mailbox.State, error) {
		s := mailbox.New(provider,
			mailbox.WithLogger(slogDiscard()),
			mailbox.WithPrefetchRate(0, 1),
		)
		states = append(states, s)
		return s, nil
	})
	t.Cleanup(func() {
		for _, s := range states {
			s.WaitIdle()
		}
	})

	h := NewHandler(registry, render.NewRenderer(slogDiscard()), assist.New(gen, time.Second, slogDiscard()), slogDiscard())
	app := fiber.New()
	h.Register(app.Group("/api", BearerMiddleware(testSecret, nil)))

	token, err := GenerateToken("alice@example.com", "Alice", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{app: app, provider: provider, registry: registry, token: token}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, out
}

func summaries(ids ...string) []models.EmailSummary {
	out := make([]models.EmailSummary, len(ids))
	for i, id := range ids {
		out[i] = models.EmailSummary{ID: id, ThreadID: "t" + id, Subject: "s" + id, LabelIDs: []string{models.LabelInbox, models.LabelUnread}}
	}
	return out
}

func TestTokenValidation(t *testing.T) {
	tok, err := GenerateToken("bob@example.com", "Bob", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ValidateToken(tok, testSecret)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Email != "bob@example.com" || claims.Name != "Bob" {
		t.Errorf("claims = %+v", claims)
	}
	if _, err := ValidateToken(tok, "another-secret-another-secret-xx"); err == nil {
		t.Error("token accepted with the wrong secret")
	}
	expired, _ := GenerateToken("bob@example.com", "Bob", testSecret, -time.Minute)
	if _, err := ValidateToken(expired, testSecret); err == nil {
		t.Error("expired token accepted")
	}
}

func TestBearerMiddleware(t *testing.T) {
	f := newFixture(t, nil)

	f.token = ""
	status, body := f.do(t, "GET", "/api/mailbox/categories", nil)
	if status != 401 || body["reauth"] != true {
		t.Errorf("no token: %d %v", status, body)
	}

	f.token = "garbage"
	status, body = f.do(t, "GET", "/api/mailbox/categories", nil)
	if status != 401 || body["reauth"] != true {
		t.Errorf("bad token: %d %v", status, body)
	}
}

func TestPagingStatusCodes(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.pages[pageKey(models.ViewSent, "", "")] = models.ListResult{Emails: summaries("1", "2"), NextPageToken: "p2"}
	f.provider.pages[pageKey(models.ViewSent, "", "p2")] = models.ListResult{Emails: summaries("3")}

	status, body := f.do(t, "GET", "/api/mailbox/sent", nil)
	if status != 200 || body["page"].(float64) != 1 || body["hasNext"] != true {
		t.Fatalf("open: %d %v", status, body)
	}

	status, _ = f.do(t, "POST", "/api/mailbox/prev", nil)
	if status != 409 {
		t.Errorf("prev on page 1 = %d, want 409", status)
	}

	status, body = f.do(t, "POST", "/api/mailbox/next", nil)
	if status != 200 || body["page"].(float64) != 2 || body["hasNext"] != false {
		t.Fatalf("next: %d %v", status, body)
	}

	status, _ = f.do(t, "POST", "/api/mailbox/next", nil)
	if status != 409 {
		t.Errorf("next on last page = %d, want 409", status)
	}

	status, body = f.do(t, "POST", "/api/mailbox/prev", nil)
	if status != 200 || body["page"].(float64) != 1 {
		t.Errorf("prev: %d %v", status, body)
	}

	status, _ = f.do(t, "GET", "/api/mailbox/spam", nil)
	if status != 400 {
		t.Errorf("unknown view = %d, want 400", status)
	}
}

func TestActiveViewSurvivesLaterRequests(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.pages[pageKey(models.ViewSent, "", "")] = models.ListResult{Emails: summaries("1"), NextPageToken: "p2"}
	f.provider.pages[pageKey(models.ViewSent, "", "p2")] = models.ListResult{Emails: summaries("2")}

	if status, _ := f.do(t, "GET", "/api/mailbox/sent", nil); status != 200 {
		t.Fatalf("open = %d", status)
	}
	for i := 0; i < 5; i++ {
		f.do(t, "GET", "/api/mailbox/zzzz", nil)
	}

	s, err := f.registry.Get(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Active().View; got != models.ViewSent {
		t.Fatalf("active view = %q after unrelated requests, want sent", got)
	}

	status, body := f.do(t, "POST", "/api/mailbox/next", nil)
	if status != 200 || body["view"] != "sent" || body["page"].(float64) != 2 {
		t.Fatalf("next: %d %v", status, body)
	}
}

func TestReauthEvictsState(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.listErr = fmt.Errorf("gmail list: %w", gmail.ErrReauthRequired)

	status, body := f.do(t, "GET", "/api/mailbox/starred", nil)
	if status != 401 || body["reauth"] != true {
		t.Fatalf("got %d %v, want 401 reauth", status, body)
	}
	if f.registry.Len() != 0 {
		t.Errorf("registry still holds %d states", f.registry.Len())
	}
}

func TestBulkMessages(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.pages[pageKey(models.ViewStarred, "", "")] = models.ListResult{Emails: summaries("1", "2", "3")}
	if status, _ := f.do(t, "GET", "/api/mailbox/starred", nil); status != 200 {
		t.Fatalf("open = %d", status)
	}

	status, body := f.do(t, "POST", "/api/emails/mark-read-bulk", map[string]any{"messageIds": []string{"1", "2"}, "markAsRead": true})
	if status != 200 || body["success"] != true || body["message"] != "Successfully marked as read" {
		t.Errorf("bulk read: %d %v", status, body)
	}

	status, body = f.do(t, "POST", "/api/emails/mark-read-bulk", map[string]any{"messageIds": []string{"1"}, "markAsRead": false})
	if body["message"] != "Successfully marked as unread" {
		t.Errorf("bulk unread: %d %v", status, body)
	}

	f.provider.failIDs["3"] = true
	status, body = f.do(t, "POST", "/api/emails/delete", map[string]any{"messageIds": []string{"2", "3"}})
	if status != 200 || body["success"] != false || body["message"] != "Some operations failed" {
		t.Errorf("bulk delete: %d %v", status, body)
	}

	status, _ = f.do(t, "POST", "/api/emails/delete", map[string]any{})
	if status != 400 {
		t.Errorf("missing ids = %d, want 400", status)
	}
}

func TestStarUnknownEmail(t *testing.T) {
	f := newFixture(t, nil)
	status, _ := f.do(t, "POST", "/api/emails/star", map[string]string{"messageId": "nope"})
	if status != 404 {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestComposeLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	if status, _ := f.do(t, "GET", "/api/compose", nil); status != 404 {
		t.Errorf("no draft = %d, want 404", status)
	}

	status, body := f.do(t, "POST", "/api/compose", models.ComposeDraft{Subject: "Re: Re: Lunch", InReplyToThreadID: "t1"})
	if status != 201 || body["subject"] != "Re: Lunch" {
		t.Fatalf("open draft: %d %v", status, body)
	}

	if status, _ := f.do(t, "POST", "/api/compose/send", nil); status != 400 {
		t.Errorf("send without recipient = %d, want 400", status)
	}

	status, body = f.do(t, "PUT", "/api/compose", map[string]string{"to": "bob@example.com", "body": "<p>hi</p>"})
	if status != 200 || body["to"] != "bob@example.com" || body["subject"] != "Re: Lunch" {
		t.Fatalf("update draft: %d %v", status, body)
	}

	status, body = f.do(t, "POST", "/api/compose/send", nil)
	if status != 200 || body["messageId"] != "sent-1" {
		t.Fatalf("send: %d %v", status, body)
	}
	sent := f.provider.sent[0]
	if sent.FromEmail != "alice@example.com" || sent.FromName != "Alice" || sent.ThreadID != "t1" {
		t.Errorf("sent = %+v", sent)
	}

	if status, _ := f.do(t, "GET", "/api/compose", nil); status != 404 {
		t.Errorf("draft after send = %d, want 404", status)
	}
}

func TestAIEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	status, _ := f.do(t, "POST", "/api/ai/improve-email", map[string]string{"subject": "s", "content": "c"})
	if status != 503 {
		t.Errorf("no generator = %d, want 503", status)
	}

	f = newFixture(t, fakeGenerator{out: "SUBJECT: **Better**\nCONTENT:\nPolished body"})
	status, body := f.do(t, "POST", "/api/ai/improve-email", map[string]string{"subject": "s", "content": "c"})
	if status != 200 || body["improvedSubject"] != "Better" || body["improvedContent"] != "Polished body" {
		t.Errorf("improve: %d %v", status, body)
	}

	status, _ = f.do(t, "POST", "/api/ai/improve-email", map[string]string{"subject": "s", "content": "  "})
	if status != 400 {
		t.Errorf("empty content = %d, want 400", status)
	}

	f.provider.thread = []models.ThreadMessage{{ID: "m1", ThreadID: "t1", Subject: "Lunch", From: "Bob <bob@example.com>", To: "alice@example.com"}}
	status, body = f.do(t, "POST", "/api/ai/generate-reply", map[string]string{"threadId": "t1"})
	if status != 200 || body["reply"] == "" {
		t.Errorf("generate reply: %d %v", status, body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", gmail.ErrReauthRequired), 401},
		{&gmail.APIError{Status: 401}, 401},
		{&gmail.APIError{Status: 404}, 404},
		{&gmail.APIError{Status: 429}, 429},
		{mailbox.ErrNoNextPage, 409},
		{mailbox.ErrNoPrevPage, 409},
		{mailbox.ErrNotActive, 409},
		{fmt.Errorf("next: %w", mailbox.ErrSuperseded), 409},
		{mailbox.ErrUnknownEmail, 404},
		{mailbox.ErrNoDraft, 404},
		{fmt.Errorf("gen: %w: %w", assist.ErrModel, errors.New("quota")), 502},
		{assist.ErrUnavailable, 503},
		{fiber.NewError(400, "bad"), 400},
		{errors.New("boom"), 500},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
