package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inboxai.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.Get(&version, "SELECT MAX(version) FROM schema_version"); err != nil {
		t.Fatal(err)
	}
	if version != len(migrations) {
		t.Errorf("schema version = %d, want %d", version, len(migrations))
	}
	var rows int
	if err := s.db.Get(&rows, "SELECT COUNT(*) FROM schema_version"); err != nil {
		t.Fatal(err)
	}
	if rows != len(migrations) {
		t.Errorf("schema_version rows = %d, want %d", rows, len(migrations))
	}
}

func TestUpsertUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertUser(ctx, User{Email: " Alice@Example.com ", Name: "Alice"})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == "" || first.Email != "alice@example.com" {
		t.Fatalf("unexpected user %+v", first)
	}

	second, err := s.UpsertUser(ctx, User{Email: "alice@example.com", Name: "Alice B", AvatarURL: "https://x/a.png"})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("ID changed on upsert: %q -> %q", first.ID, second.ID)
	}
	if second.Name != "Alice B" || second.AvatarURL != "https://x/a.png" {
		t.Errorf("profile not refreshed: %+v", second)
	}

	if _, err := s.GetUser(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser missing: err = %v, want ErrNotFound", err)
	}
}

func TestSaveTokenKeepsRefreshToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.UpsertUser(ctx, User{Email: "alice@example.com"}); err != nil {
		t.Fatal(err)
	}

	exp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := s.SaveToken(ctx, Token{
		UserEmail: "alice@example.com", Provider: "google",
		AccessToken: "a1", RefreshToken: "r1", ExpiresAt: exp,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveToken(ctx, Token{
		UserEmail: "alice@example.com", Provider: "google",
		AccessToken: "a2", ExpiresAt: exp.Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetToken(ctx, "alice@example.com", "google")
	if err != nil {
		t.Fatal(err)
	}
	want := Token{
		UserEmail: "alice@example.com", Provider: "google",
		AccessToken: "a2", RefreshToken: "r1", TokenType: "Bearer",
		ExpiresAt: exp.Add(time.Hour),
	}
	got.UpdatedAt = time.Time{}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("token mismatch (-want +got):\n%s", diff)
	}

	if err := s.DeleteToken(ctx, "alice@example.com", "google"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetToken(ctx, "alice@example.com", "google"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: err = %v, want ErrNotFound", err)
	}
}

func TestSaveTokenRequiresUser(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveToken(context.Background(), Token{UserEmail: "ghost@example.com", Provider: "google", AccessToken: "a"})
	if err == nil {
		t.Fatal("expected foreign key violation for unknown user")
	}
}

func TestSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	if err := s.SetSession(ctx, "live", []byte("v1"), now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSession(ctx, "stale", []byte("v2"), now.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSession(ctx, "forever", []byte("v3"), time.Time{}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSession(ctx, "live", now)
	if err != nil || string(got) != "v1" {
		t.Errorf("live = %q, %v", got, err)
	}
	got, err = s.GetSession(ctx, "stale", now)
	if err != nil || got != nil {
		t.Errorf("stale = %q, %v; want nil", got, err)
	}
	got, err = s.GetSession(ctx, "missing", now)
	if err != nil || got != nil {
		t.Errorf("missing = %q, %v; want nil", got, err)
	}

	if err := s.SetSession(ctx, "live", []byte("v1b"), now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.GetSession(ctx, "live", now); string(got) != "v1b" {
		t.Errorf("overwrite = %q, want v1b", got)
	}

	n, err := s.PurgeExpiredSessions(ctx, now.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if got, _ := s.GetSession(ctx, "forever", now.Add(24*time.Hour)); string(got) != "v3" {
		t.Errorf("forever = %q", got)
	}

	if err := s.ResetSessions(ctx); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.GetSession(ctx, "forever", now); got != nil {
		t.Errorf("after reset = %q, want nil", got)
	}
}
