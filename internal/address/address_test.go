package address

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Address
	}{
		{"ann@example.com", Address{LocalPart: "ann", Domain: "example.com"}},
		{"Ann Lee <ann@example.com>", Address{DisplayName: "Ann Lee", LocalPart: "ann", Domain: "example.com"}},
		{`"Lee, Ann" <ann@Example.COM>`, Address{DisplayName: "Lee, Ann", LocalPart: "ann", Domain: "Example.COM"}},
		{"=?utf-8?B?SsO2cmc=?= <jorg@example.de>", Address{DisplayName: "Jörg", LocalPart: "jorg", Domain: "example.de"}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.in, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "not an address", "<@>"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) succeeded", in)
		}
	}
}

func TestIsSelf(t *testing.T) {
	tests := []struct {
		from, self string
		want       bool
	}{
		{"Bob <bob@example.com>", "bob@example.com", true},
		{"BOB@EXAMPLE.COM", "bob@example.com", true},
		{"Rob <robbob@example.com>", "bob@example.com", false},
		{"bob@example.com.evil.io", "bob@example.com", false},
		{"bob@example.org", "bob@example.com", false},
		{"garbage", "bob@example.com", false},
	}
	for _, tt := range tests {
		if got := IsSelf(tt.from, tt.self); got != tt.want {
			t.Errorf("IsSelf(%q, %q) = %v, want %v", tt.from, tt.self, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("", "Unknown Sender"); got != "Unknown Sender" {
		t.Fatalf("empty = %q", got)
	}
	if got := DisplayName("ann@example.com", "x"); got != "ann" {
		t.Fatalf("bare = %q", got)
	}
	if got := DisplayName("Ann <ann@example.com>", "x"); got != "Ann" {
		t.Fatalf("named = %q", got)
	}
}
